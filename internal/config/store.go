package config

// Store owns the live configuration. It holds the merged tree (including
// keys the typed snapshot does not know about, which scripts may use for
// their own state) and the typed snapshot decoded from it.
type Store struct {
	tree Tree
	cfg  *Config
}

// NewStore returns a store holding the defaults.
func NewStore() *Store {
	cfg := Default()
	return &Store{tree: cfg.Tree(), cfg: cfg}
}

// Config returns the current typed snapshot.
func (s *Store) Config() *Config { return s.cfg }

// Tree returns a deep copy of the merged tree.
func (s *Store) Tree() Tree { return s.tree.Clone() }

// Apply merges overlay into the live configuration. If the merged result
// does not validate, nothing changes and the error is returned.
func (s *Store) Apply(overlay Tree) error {
	if len(overlay) == 0 {
		return nil
	}
	merged := Merge(s.tree, overlay)
	cfg, err := FromTree(merged)
	if err != nil {
		return err
	}
	s.tree, s.cfg = merged, cfg
	return nil
}

// Set replaces the value at a dotted path outright, without merging into
// a table already there. The store is unchanged if the result does not
// validate.
func (s *Store) Set(path string, value any) error {
	tree := s.tree.Clone()
	tree.Set(path, value)
	cfg, err := FromTree(tree)
	if err != nil {
		return err
	}
	s.tree, s.cfg = tree, cfg
	return nil
}

// Clone returns an independent copy, used to stage a document so it can be
// discarded as a whole if it fails part way.
func (s *Store) Clone() *Store {
	return &Store{tree: s.tree.Clone(), cfg: s.cfg}
}

// Replace adopts the state of other, committing a staged document.
func (s *Store) Replace(other *Store) {
	s.tree, s.cfg = other.tree, other.cfg
}
