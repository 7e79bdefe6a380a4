package gc

// internTable maps string content to its single canonical Header, so
// that two equal literals resolve to the same object (spec.md's
// "intern table" testable property). It is protected by the owning
// GC's allocation lock rather than its own mutex, since every mutator
// of the table already holds that lock for the duration of an
// allocation.
type internTable struct {
	byHash map[uint32][]*Header
}

func newInternTable() *internTable {
	return &internTable{byHash: make(map[uint32][]*Header)}
}

// find returns the interned Header equal to s, if any.
func (t *internTable) find(s *OString) (*Header, bool) {
	for _, h := range t.byHash[s.Hash()] {
		if os, ok := h.Payload().(*OString); ok && os.Equals(s) {
			return h, true
		}
	}
	return nil, false
}

// insert registers h (whose payload must be an *OString) as the
// canonical interned object for its content.
func (t *internTable) insert(h *Header) {
	os := h.Payload().(*OString)
	hv := os.Hash()
	t.byHash[hv] = append(t.byHash[hv], h)
}

// forEach visits every interned Header, for the collector's root-marking
// phase — an interned string is kept alive for the process's lifetime
// once interned, independent of any other reachability.
func (t *internTable) forEach(fn func(*Header)) {
	for _, hs := range t.byHash {
		for _, h := range hs {
			fn(h)
		}
	}
}

// updateForwarding rewrites any entry that has since been promoted (and
// so turned into a forwarding stub) to point at its new Header, keeping
// lookups valid after a cycle moves a gen-0 interned string.
func (t *internTable) updateForwarding() {
	for hv, hs := range t.byHash {
		for i, h := range hs {
			if h.moved {
				hs[i] = h.forward
			}
		}
		t.byHash[hv] = hs
	}
}
