package keymap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"gg", []string{"g", "g"}},
		{"<C-W>v", []string{"<C-w>", "v"}},
		{"<esc>", []string{"<Esc>"}},
		{"<ctrl-alt-x>", []string{"<C-M-x>"}},
		{"<Sh-Tab>", []string{"<S-Tab>"}},
		{"<space>x", []string{" ", "x"}},
		{"<f5>", []string{"<F5>"}},
		{"a<b", []string{"a", "<", "b"}},
		{"<nope>", []string{"<", "n", "o", "p", "e", ">"}},
		{"<C-->", []string{"<C-->"}},
		{"é", []string{"é"}},
	} {
		require.Equal(t, tc.want, Parse(tc.in), tc.in)
	}
}

func TestToken(t *testing.T) {
	t.Parallel()

	require.Equal(t, "x", Token("x"))
	require.Equal(t, "<M-x>", Token("x", "M"))
	require.Equal(t, "<C-a>", Token("A", "C"))
	require.Equal(t, "<Up>", Token("up"))
	require.Equal(t, CancelToken, Token("esc"))
	require.Equal(t, "gg", Canonical("gg"))
}

func TestMap_BindReplacesAndCoexists(t *testing.T) {
	t.Parallel()

	m := NewMap[string]()
	m.Bind("s", "short", "a")
	m.Bind("ss", "long", "b")
	m.Bind("s", "short again", "c")
	require.Equal(t, 2, m.Len())

	b, ok := m.Lookup("s")
	require.True(t, ok)
	require.Equal(t, "c", b.Handler)
	require.Equal(t, "short again", b.Description)

	b, ok = m.Lookup("ss")
	require.True(t, ok)
	require.Equal(t, "b", b.Handler)

	_, ok = m.Lookup("sx")
	require.False(t, ok)

	var seqs []string
	for _, b := range m.Bindings() {
		seqs = append(seqs, b.Sequence)
	}
	require.Equal(t, []string{"s", "ss"}, seqs)
}

func TestMap_Candidates(t *testing.T) {
	t.Parallel()

	m := NewMap[int]()
	m.Bind("zn", "info none", 1)
	m.Bind("zs", "info size", 2)
	m.Bind("zxa", "deep a", 3)
	m.Bind("zxb", "deep b", 4)

	cands := m.Candidates([]string{"z"})
	require.Equal(t, []Candidate{
		{Token: "n", Description: "info none", Complete: true, Count: 1},
		{Token: "s", Description: "info size", Complete: true, Count: 1},
		{Token: "x", Count: 2},
	}, cands)
	require.Nil(t, m.Candidates([]string{"q"}))
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func tieBreakMap() *Map[string] {
	m := NewMap[string]()
	m.Bind("s", "single", "s")
	m.Bind("ss", "double", "ss")
	return m
}

func TestSequencer_TieBreakWithinTimeout(t *testing.T) {
	t.Parallel()

	seq := NewSequencer(tieBreakMap(), 500*time.Millisecond)
	steps := seq.Feed("s", t0)
	require.Len(t, steps, 1)
	require.Equal(t, Pending, steps[0].Kind)
	require.Equal(t, t0.Add(500*time.Millisecond), steps[0].Deadline)

	steps = seq.Feed("s", t0.Add(100*time.Millisecond))
	require.Len(t, steps, 1)
	require.Equal(t, Resolved, steps[0].Kind)
	require.Equal(t, "ss", steps[0].Binding.Handler)
	require.Nil(t, seq.Pending())
}

func TestSequencer_TieBreakAfterTimeout(t *testing.T) {
	t.Parallel()

	seq := NewSequencer(tieBreakMap(), 500*time.Millisecond)
	steps := seq.Feed("s", t0)
	gen := steps[0].Generation

	_, ok := seq.Expire(gen, t0.Add(499*time.Millisecond))
	require.False(t, ok)

	step, ok := seq.Expire(gen, t0.Add(500*time.Millisecond))
	require.True(t, ok)
	require.Equal(t, Resolved, step.Kind)
	require.Equal(t, "s", step.Binding.Handler)

	// a second expiry for the same generation is stale
	_, ok = seq.Expire(gen, t0.Add(time.Second))
	require.False(t, ok)
}

func TestSequencer_LateTokenExpiresFirst(t *testing.T) {
	t.Parallel()

	seq := NewSequencer(tieBreakMap(), 500*time.Millisecond)
	seq.Feed("s", t0)
	steps := seq.Feed("s", t0.Add(time.Second))
	require.Len(t, steps, 2)
	require.Equal(t, Resolved, steps[0].Kind)
	require.Equal(t, "s", steps[0].Binding.Handler)
	require.Equal(t, Pending, steps[1].Kind)
}

func TestSequencer_ZeroTimeoutWaits(t *testing.T) {
	t.Parallel()

	seq := NewSequencer(tieBreakMap(), 0)
	steps := seq.Feed("s", t0)
	require.Equal(t, Pending, steps[0].Kind)
	require.True(t, steps[0].Deadline.IsZero())

	_, ok := seq.Expire(steps[0].Generation, t0.Add(time.Hour))
	require.False(t, ok)

	steps = seq.Feed("s", t0.Add(time.Hour))
	require.Len(t, steps, 1)
	require.Equal(t, "ss", steps[0].Binding.Handler)
}

func TestSequencer_CancelKey(t *testing.T) {
	t.Parallel()

	m := tieBreakMap()
	m.Bind("<Esc>", "close", "esc")
	seq := NewSequencer(m, 0)

	seq.Feed("s", t0)
	steps := seq.Feed(CancelToken, t0)
	require.Len(t, steps, 1)
	require.Equal(t, Cancelled, steps[0].Kind)
	require.Equal(t, []string{"s"}, steps[0].Tokens)
	require.Nil(t, seq.Pending())

	// when idle the cancel key resolves its own binding
	steps = seq.Feed(CancelToken, t0)
	require.Equal(t, Resolved, steps[0].Kind)
	require.Equal(t, "esc", steps[0].Binding.Handler)
}

func TestSequencer_MismatchRestartsFresh(t *testing.T) {
	t.Parallel()

	m := NewMap[string]()
	m.Bind("gg", "top", "top")
	m.Bind("G", "bottom", "bottom")
	seq := NewSequencer(m, 0)

	steps := seq.Feed("g", t0)
	require.Equal(t, Pending, steps[0].Kind)

	steps = seq.Feed("G", t0)
	require.Len(t, steps, 1)
	require.Equal(t, Resolved, steps[0].Kind)
	require.Equal(t, "bottom", steps[0].Binding.Handler)

	seq.Feed("g", t0)
	steps = seq.Feed("x", t0)
	require.Equal(t, Unbound, steps[0].Kind)
	require.Equal(t, []string{"x"}, steps[0].Tokens)
	require.Nil(t, seq.Pending())
}

func TestSequencer_ExpireShortestPrefix(t *testing.T) {
	t.Parallel()

	m := NewMap[string]()
	m.Bind("s", "s", "s")
	m.Bind("sab", "sab", "sab")
	m.Bind("gab", "gab", "gab")
	seq := NewSequencer(m, time.Second)

	seq.Feed("s", t0)
	steps := seq.Feed("a", t0)
	step, ok := seq.Expire(steps[0].Generation, t0.Add(time.Second))
	require.True(t, ok)
	require.Equal(t, Resolved, step.Kind)
	require.Equal(t, []string{"s"}, step.Tokens)

	seq.Feed("g", t0)
	steps = seq.Feed("a", t0)
	step, ok = seq.Expire(steps[0].Generation, t0.Add(time.Second))
	require.True(t, ok)
	require.Equal(t, Discarded, step.Kind)
}

func TestSequencer_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() *Map[string] {
		m := NewMap[string]()
		for _, s := range []string{"s", "ss", "sn", "gg", "G", "zn", "<C-w>v", "q"} {
			m.Bind(s, s, s)
		}
		return m
	}
	type ev struct {
		tok string
		at  time.Duration
	}
	stream := []ev{{"s", 0}, {"s", 10}, {"g", 20}, {"g", 30}, {"s", 40}, {"x", 2000}, {"<C-w>", 2100}, {"v", 2200}, {"z", 2300}, {"<Esc>", 2400}, {"q", 2500}}

	run := func() []string {
		seq := NewSequencer(build(), 300*time.Millisecond)
		var out []string
		for _, e := range stream {
			for _, st := range seq.Feed(e.tok, t0.Add(e.at*time.Millisecond)) {
				if st.Kind == Resolved {
					out = append(out, st.Binding.Sequence)
				} else {
					out = append(out, st.Kind.String())
				}
			}
		}
		return out
	}
	first := run()
	for range 5 {
		require.Equal(t, first, run())
	}
	require.Equal(t, []string{"pending", "ss", "pending", "gg", "pending", "s", "unbound", "pending", "<C-w>v", "pending", "cancelled", "q"}, first)
}

func TestWhichKeyLines(t *testing.T) {
	t.Parallel()

	cands := []Candidate{
		{Token: "n", Description: "none", Complete: true, Count: 1},
		{Token: " ", Description: "space", Complete: true, Count: 1},
		{Token: "x", Count: 3},
	}
	lines := WhichKeyLines([]string{"z"}, cands, 20)
	require.Equal(t, "keys: z", lines[0])
	require.Contains(t, lines[1], "n  none")
	joined := ""
	for _, l := range lines[1:] {
		joined += l + "\n"
	}
	require.Contains(t, joined, "<Space>  space")
	require.Contains(t, joined, "x  +3")
	require.Nil(t, WhichKeyLines(nil, nil, 80))
}
