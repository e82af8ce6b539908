// Package succinct defines the items stored in a block and their packed binary form.
//
// Every encoded item starts with a header byte: the top two bits hold the item
// kind and the low six bits the item's length in bytes, header included. The
// second byte is a kind-specific subtype, followed by varint enum codes:
//
//	token       header | token type | code (wordLike or notWordLike)
//	start/end   header | scope kind | code (scopeBits) x (arity-1)
//	graft       header | graft type | code (ids)
package succinct

import (
	"fmt"
	"strings"
)

// Kind is the two-bit item kind tag.
type Kind uint8

const (
	KindToken Kind = iota
	KindStartScope
	KindEndScope
	KindGraft
)

var kindNames = [...]string{"token", "startScope", "endScope", "graft"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsScope reports whether k is a scope boundary.
func (k Kind) IsScope() bool {
	return k == KindStartScope || k == KindEndScope
}

// Token is the payload of a token item.
type Token struct {
	Type TokenType
	Text string
}

// Scope is the payload of a scope boundary item.
type Scope struct {
	Label string
}

// Graft is the payload of a graft item.
type Graft struct {
	Type  string
	SeqID string
}

// Item is one entry of a block stream. Only the payload matching Kind is set.
type Item struct {
	Kind  Kind
	Token Token
	Scope Scope
	Graft Graft
}

// NewToken returns a token item.
func NewToken(tokenType TokenType, text string) Item {
	return Item{Kind: KindToken, Token: Token{Type: tokenType, Text: text}}
}

// StartScope returns a start-scope item.
func StartScope(label string) Item {
	return Item{Kind: KindStartScope, Scope: Scope{Label: label}}
}

// EndScope returns an end-scope item.
func EndScope(label string) Item {
	return Item{Kind: KindEndScope, Scope: Scope{Label: label}}
}

// NewGraft returns a graft item.
func NewGraft(graftType, seqID string) Item {
	return Item{Kind: KindGraft, Graft: Graft{Type: graftType, SeqID: seqID}}
}

// Payload returns the item's main string: token text, scope label or target sequence id.
func (it Item) Payload() string {
	switch it.Kind {
	case KindToken:
		return it.Token.Text
	case KindStartScope, KindEndScope:
		return it.Scope.Label
	case KindGraft:
		return it.Graft.SeqID
	}
	return ""
}

// SubType returns the item's subtype name: token type, "start"/"end" or graft type.
func (it Item) SubType() string {
	switch it.Kind {
	case KindToken:
		return it.Token.Type.String()
	case KindStartScope:
		return "start"
	case KindEndScope:
		return "end"
	case KindGraft:
		return it.Graft.Type
	}
	return ""
}

// IsWordLike reports whether the item is a wordLike token.
func (it Item) IsWordLike() bool {
	return it.Kind == KindToken && it.Token.Type == TokenWordLike
}

func (it Item) String() string {
	return fmt.Sprintf("%s/%s/%s", it.Kind, it.SubType(), it.Payload())
}

// ScopeKindName returns the first component of a scope label.
func (it Item) ScopeKindName() string {
	name, _, _ := strings.Cut(it.Scope.Label, "/")
	return name
}
