package keymap

import (
	"slices"
	"time"
)

// Kind classifies a sequencer step.
type Kind int

const (
	// Unbound means the token (taken on its own) matches nothing.
	Unbound Kind = iota
	// Pending means the accumulated tokens are a prefix of longer bindings.
	Pending
	// Resolved carries the binding to dispatch.
	Resolved
	// Cancelled means the cancel key discarded a pending prefix.
	Cancelled
	// Discarded means a pending prefix timed out with no binding to resolve.
	Discarded
)

func (k Kind) String() string {
	switch k {
	case Unbound:
		return "unbound"
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Cancelled:
		return "cancelled"
	case Discarded:
		return "discarded"
	}
	return "unknown"
}

// Step is one observable transition of the sequencer.
type Step[H any] struct {
	Kind    Kind
	Tokens  []string
	Binding *Binding[H]
	// Candidates is set for Pending steps.
	Candidates []Candidate
	// Deadline is the zero time when the timeout is disabled.
	Deadline   time.Time
	Generation uint64
}

// Sequencer is the key sequence state machine. It never reads the clock:
// callers pass the current time with every token and call Expire when a
// deadline they scheduled fires, which keeps it deterministic under test.
type Sequencer[H any] struct {
	keys     *Map[H]
	timeout  time.Duration
	pending  []string
	deadline time.Time
	gen      uint64
}

// NewSequencer returns an idle sequencer over keys. A zero timeout waits
// indefinitely for disambiguation.
func NewSequencer[H any](keys *Map[H], timeout time.Duration) *Sequencer[H] {
	return &Sequencer[H]{keys: keys, timeout: timeout}
}

// SetTimeout changes the timeout for subsequent pending states.
func (s *Sequencer[H]) SetTimeout(d time.Duration) { s.timeout = d }

// SetMap swaps the binding set and returns to idle.
func (s *Sequencer[H]) SetMap(keys *Map[H]) {
	s.keys = keys
	s.Reset()
}

// Pending returns the accumulated prefix, nil when idle.
func (s *Sequencer[H]) Pending() []string { return slices.Clone(s.pending) }

// Reset discards any pending prefix.
func (s *Sequencer[H]) Reset() {
	s.pending = nil
	s.deadline = time.Time{}
	s.gen++
}

// Feed processes one token. Usually one step results; when a stale pending
// prefix had already passed its deadline, its expiry is reported first.
func (s *Sequencer[H]) Feed(token string, now time.Time) []Step[H] {
	var steps []Step[H]
	if len(s.pending) != 0 && !s.deadline.IsZero() && !now.Before(s.deadline) {
		steps = append(steps, s.expire())
	}

	if token == CancelToken && len(s.pending) != 0 {
		discarded := s.pending
		s.Reset()
		return append(steps, Step[H]{Kind: Cancelled, Tokens: discarded})
	}

	seq := append(slices.Clone(s.pending), token)
	n := s.keys.find(seq)
	if n == nil && len(s.pending) != 0 {
		s.Reset()
		seq = []string{token}
		n = s.keys.find(seq)
	}
	if n == nil {
		return append(steps, Step[H]{Kind: Unbound, Tokens: seq})
	}

	if len(n.children) == 0 {
		s.Reset()
		return append(steps, Step[H]{Kind: Resolved, Tokens: seq, Binding: n.binding})
	}

	s.pending = seq
	s.gen++
	s.deadline = time.Time{}
	if s.timeout > 0 {
		s.deadline = now.Add(s.timeout)
	}
	return append(steps, Step[H]{
		Kind:       Pending,
		Tokens:     slices.Clone(seq),
		Candidates: s.keys.Candidates(seq),
		Deadline:   s.deadline,
		Generation: s.gen,
	})
}

// Expire resolves the pending prefix if generation still identifies it and
// its deadline has passed. Stale or early calls report false.
func (s *Sequencer[H]) Expire(generation uint64, now time.Time) (Step[H], bool) {
	if len(s.pending) == 0 || generation != s.gen || s.deadline.IsZero() || now.Before(s.deadline) {
		return Step[H]{}, false
	}
	return s.expire(), true
}

// expire resolves the pending prefix itself when it is a binding, else the
// shortest binding that prefixes it, else discards it.
func (s *Sequencer[H]) expire() Step[H] {
	seq := s.pending
	s.Reset()
	if n := s.keys.find(seq); n != nil && n.binding != nil {
		return Step[H]{Kind: Resolved, Tokens: seq, Binding: n.binding}
	}
	for i := 1; i < len(seq); i++ {
		if n := s.keys.find(seq[:i]); n != nil && n.binding != nil {
			return Step[H]{Kind: Resolved, Tokens: seq[:i], Binding: n.binding}
		}
	}
	return Step[H]{Kind: Discarded, Tokens: seq}
}
