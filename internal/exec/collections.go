package exec

import (
	"ovum/internal/gc"
	"ovum/internal/value"
)

// makeList allocates a List instance holding elems, via gc.AllocArray
// the same way any other fixed-length managed array is built — list
// literals and the result of variadic packing both go through this.
func (t *Thread) makeList(elems []value.Value) (value.Value, error) {
	h, err := t.GC.AllocArray(t.Std.List, len(elems))
	if err != nil {
		return value.Null, err
	}
	slots := h.Payload().([]value.Value)
	copy(slots, elems)
	return gc.ValueOf(h), nil
}

// MakeList is makeList's exported form, for hosts (internal/vm) that
// need to build a managed List outside of opcode dispatch.
func (t *Thread) MakeList(elems []value.Value) (value.Value, error) { return t.makeList(elems) }

// listSlots returns the backing element slice of a List instance.
func (t *Thread) listSlots(v value.Value) ([]value.Value, error) {
	if v.Typ != t.Std.List || v.Inst == nil {
		return nil, t.newManagedError(t.Std.TypeError, "not a List instance")
	}
	h := (*gc.Header)(v.Inst)
	return h.Payload().([]value.Value), nil
}

// makeHash allocates a Hash instance from alternating key/value pairs.
// The pairs are stored as one flat []value.Value (so the GC's existing
// "scan every slot" mark logic finds keys as well as values without any
// Hash-specific case) and looked up by linear scan. A Hash never grows:
// an indexer write (storeIndex) replaces the value of a key already
// present, and a write to an absent key raises MemberNotFoundError.
func (t *Thread) makeHash(pairs []value.Value) (value.Value, error) {
	h, err := t.GC.AllocArray(t.Std.Hash, len(pairs))
	if err != nil {
		return value.Null, err
	}
	slots := h.Payload().([]value.Value)
	copy(slots, pairs)
	return gc.ValueOf(h), nil
}

func (t *Thread) hashPairs(v value.Value) ([]value.Value, error) {
	if v.Typ != t.Std.Hash || v.Inst == nil {
		return nil, t.newManagedError(t.Std.TypeError, "not a Hash instance")
	}
	h := (*gc.Header)(v.Inst)
	return h.Payload().([]value.Value), nil
}

func (t *Thread) hashLookup(pairs []value.Value, key value.Value) (value.Value, bool, error) {
	for i := 0; i+1 < len(pairs); i += 2 {
		eq, err := t.equals(pairs[i], key)
		if err != nil {
			return value.Null, false, err
		}
		if eq {
			return pairs[i+1], true, nil
		}
	}
	return value.Null, false, nil
}

func (t *Thread) concatLists(l, r value.Value) (value.Value, error) {
	ls, err := t.listSlots(l)
	if err != nil {
		return value.Null, err
	}
	rs, err := t.listSlots(r)
	if err != nil {
		return value.Null, err
	}
	merged := make([]value.Value, 0, len(ls)+len(rs))
	merged = append(merged, ls...)
	merged = append(merged, rs...)
	return t.makeList(merged)
}

// concatHashes merges r into l "via repeated indexer-set" per spec.md
// §4.4: entries from r overwrite same-keyed entries from l, new keys
// are appended.
func (t *Thread) concatHashes(l, r value.Value) (value.Value, error) {
	lp, err := t.hashPairs(l)
	if err != nil {
		return value.Null, err
	}
	rp, err := t.hashPairs(r)
	if err != nil {
		return value.Null, err
	}
	merged := append([]value.Value(nil), lp...)
	for i := 0; i+1 < len(rp); i += 2 {
		key, val := rp[i], rp[i+1]
		replaced := false
		for j := 0; j+1 < len(merged); j += 2 {
			eq, err := t.equals(merged[j], key)
			if err != nil {
				return value.Null, err
			}
			if eq {
				merged[j+1] = val
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, key, val)
		}
	}
	return t.makeHash(merged)
}
