package exec

import (
	"ovum/internal/initializer"
	"ovum/internal/value"
)

// operatorFor maps the on-disk opcode byte the method initializer
// folded into OpiOperatorL/OpiOperatorS's Operand (see
// initializer.defaultTranslate) back to the overloadable operator slot
// it names, plus whether it's unary. The intermediate pass reuses one
// opcode pair for every arithmetic/bitwise/unary operator rather than
// one per operator, so this mapping is exec's half of that
// compression.
func operatorFor(op initializer.Opcode) (o value.Operator, unary bool, ok bool) {
	switch op {
	case initializer.OpAdd:
		return value.OpAdd, false, true
	case initializer.OpSub:
		return value.OpSub, false, true
	case initializer.OpOr:
		return value.OpOr, false, true
	case initializer.OpXor:
		return value.OpXor, false, true
	case initializer.OpMul:
		return value.OpMul, false, true
	case initializer.OpDiv:
		return value.OpDiv, false, true
	case initializer.OpMod:
		return value.OpMod, false, true
	case initializer.OpAnd:
		return value.OpAnd, false, true
	case initializer.OpPow:
		return value.OpPow, false, true
	case initializer.OpShl:
		return value.OpShl, false, true
	case initializer.OpShr:
		return value.OpShr, false, true
	case initializer.OpHashOp:
		return value.OpHash, false, true
	case initializer.OpDollar:
		return value.OpDollar, true, true
	case initializer.OpPlus:
		return value.OpPlus, true, true
	case initializer.OpNeg:
		return value.OpNeg, true, true
	case initializer.OpNot:
		return value.OpNot, true, true
	}
	return 0, false, false
}

// resolveOperator looks up operator o on t's own operator table,
// walking the base-type chain the same way Type.FindMember does for
// named members — an operator overload is inherited unless overridden.
func resolveOperator(t *value.Type, o value.Operator) *value.Overload {
	for cur := t; cur != nil; cur = cur.Base {
		if ov := cur.Operators[o]; ov != nil {
			return ov
		}
	}
	return nil
}

// applyOperator implements the Operators family: look up the operator
// overload on the left (or, for unary, the sole) operand's type and
// invoke it, per spec.md §4.4.
func (t *Thread) applyOperator(op initializer.Opcode, operands []value.Value) (value.Value, error) {
	o, unary, ok := operatorFor(op)
	if !ok {
		return value.Null, t.newManagedError(t.Std.TypeError, "unrecognized operator")
	}
	left := operands[0]
	if left.Typ == nil {
		return value.Null, t.newManagedError(t.Std.NullReferenceError, "operator on null")
	}
	ov := resolveOperator(left.Typ, o)
	if ov == nil {
		return value.Null, t.newManagedError(t.Std.NoOverloadError, "no operator overload for "+o.String())
	}
	var args []value.Value
	if !unary {
		args = operands[1:]
	}
	return t.Invoke(ov, left, args)
}

// compare invokes the Compare operator and requires an Int result, per
// spec.md §4.4: "Comparison operators require the overload to return an
// Int and throw TypeError otherwise."
func (t *Thread) compare(l, r value.Value) (int64, error) {
	if l.Typ == nil {
		return 0, t.newManagedError(t.Std.NullReferenceError, "compare on null")
	}
	ov := resolveOperator(l.Typ, value.OpCompare)
	if ov == nil {
		return 0, t.newManagedError(t.Std.NoOverloadError, "no <=> overload")
	}
	res, err := t.Invoke(ov, l, []value.Value{r})
	if err != nil {
		return 0, err
	}
	if res.Typ != t.Std.Int {
		return 0, t.newManagedError(t.Std.TypeError, "<=> overload did not return Int")
	}
	return res.AsInt64(), nil
}

// equals invokes the Eq operator, the one comparison-family operator
// with its own slot rather than being derived from Compare.
func (t *Thread) equals(l, r value.Value) (bool, error) {
	if l.Typ == nil {
		return r.Typ == nil, nil
	}
	ov := resolveOperator(l.Typ, value.OpEq)
	if ov == nil {
		return value.IsSameReference(l, r), nil
	}
	res, err := t.Invoke(ov, l, []value.Value{r})
	if err != nil {
		return false, err
	}
	return res.AsBool(), nil
}

// concat implements the special-cased concatenation operator: two
// Lists concatenate into a new List, two Hashes concatenate via
// repeated indexer-set, otherwise both sides are coerced to String and
// concatenated.
func (t *Thread) concat(l, r value.Value) (value.Value, error) {
	if l.Typ == t.Std.List && r.Typ == t.Std.List {
		return t.concatLists(l, r)
	}
	if l.Typ == t.Std.Hash && r.Typ == t.Std.Hash {
		return t.concatHashes(l, r)
	}
	ls, err := t.toDisplayString(l)
	if err != nil {
		return value.Null, err
	}
	rs, err := t.toDisplayString(r)
	if err != nil {
		return value.Null, err
	}
	return t.makeString(ls + rs)
}

// toDisplayString renders v for concatenation: a String instance reads
// back its own units, anything else falls back to its type name —
// there is no user-overridable `toString` slot in this core's operator
// table, so this is the best a minimal host can do.
func (t *Thread) toDisplayString(v value.Value) (string, error) {
	if v.Typ == t.Std.String {
		return t.readString(v)
	}
	if v.Typ == nil {
		return "null", nil
	}
	switch v.Typ {
	case t.Std.Int:
		return formatInt(v.AsInt64()), nil
	case t.Std.Boolean:
		if v.AsBool() {
			return "true", nil
		}
		return "false", nil
	}
	return v.Typ.Name, nil
}
