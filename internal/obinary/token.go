// Package obinary implements the in-scope half of the Ovum module
// system: tokens, versioned module handles, and a registry that
// resolves a module by name and minimum version. The out-of-scope
// binary file parser is replaced by an in-memory Builder (see
// builder.go) that a module-producing frontend (or a test) populates
// directly, in the same population order the original file reader
// used: types, then members, then the string pool.
package obinary

// Token is a 32-bit reference into a module's tables: the high byte
// names the kind of thing referenced, the low 24 bits are an index
// into that kind's table. Values are taken verbatim from the format
// this was ported from, so an externally-produced module file (were
// one ever read) would still decode correctly.
type Token uint32

const (
	tokenKindMask  Token = 0xff000000
	tokenIndexMask Token = 0x00ffffff
)

// TokenKind identifies what a Token's high byte names.
type TokenKind uint8

const (
	KindConstantDef TokenKind = 0x02
	KindFunctionDef TokenKind = 0x04
	KindTypeDef     TokenKind = 0x10
	KindFieldDef    TokenKind = 0x12
	KindMethodDef   TokenKind = 0x14
	KindString      TokenKind = 0x20
	KindModuleRef   TokenKind = 0x40
	KindFunctionRef TokenKind = 0x44
	KindTypeRef     TokenKind = 0x50
	KindFieldRef    TokenKind = 0x52
	KindMethodRef   TokenKind = 0x54
)

// NewToken packs a kind and index into a single Token.
func NewToken(kind TokenKind, index uint32) Token {
	return Token(uint32(kind)<<24) | Token(index)&tokenIndexMask
}

// Kind extracts the token's kind byte.
func (t Token) Kind() TokenKind { return TokenKind(t >> 24) }

// Index extracts the token's table index.
func (t Token) Index() uint32 { return uint32(t & tokenIndexMask) }

// IsDef reports whether the token's kind is one of this module's own
// definitions rather than a reference into another module.
func (t Token) IsDef() bool {
	switch t.Kind() {
	case KindConstantDef, KindFunctionDef, KindTypeDef, KindFieldDef, KindMethodDef:
		return true
	}
	return false
}
