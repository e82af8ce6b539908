package succinct

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/juniper-succinct/core/enums"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
)

// TokenType is the subtype byte of a token.
type TokenType uint8

const (
	TokenWordLike TokenType = iota
	TokenPunctuation
	TokenLineSpace
	TokenEOL
	TokenSoftLineBreak
	TokenNoBreakSpace
	TokenBareSlash
	TokenUnknown
)

var tokenTypeNames = [...]string{
	"wordLike", "punctuation", "lineSpace", "eol", "softLineBreak", "noBreakSpace", "bareSlash", "unknown",
}

func (tt TokenType) String() string {
	if int(tt) < len(tokenTypeNames) {
		return tokenTypeNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", uint8(tt))
}

// Category returns the enum holding the text of tokens of this type.
func (tt TokenType) Category() enums.Category {
	if tt == TokenWordLike {
		return enums.WordLike
	}
	return enums.NotWordLike
}

// ParseTokenType maps a subtype name to its TokenType.
func ParseTokenType(name string) (TokenType, error) {
	for i, n := range tokenTypeNames {
		if n == name {
			return TokenType(i), nil
		}
	}
	return 0, fmt.Errorf("token subtype %q: %w", name, errors.ErrInvalidValue)
}

// ScopeKind is the subtype byte of a scope boundary.
type ScopeKind uint8

type scopeKindInfo struct {
	name  string
	arity int
}

// scopeKinds is indexed by ScopeKind. Arity counts every label component,
// the kind name included.
var scopeKinds = [...]scopeKindInfo{
	{"blockTag", 2},
	{"inline", 2},
	{"chapter", 2},
	{"pubChapter", 2},
	{"altChapter", 2},
	{"verses", 2},
	{"verse", 2},
	{"pubVerse", 2},
	{"altVerse", 2},
	{"esbCat", 2},
	{"span", 2},
	{"table", 1},
	{"cell", 4},
	{"milestone", 2},
	{"spanWithAtts", 2},
	{"attribute", 5},
	{"hangingGraft", 1},
	{"orphanTokens", 1},
	{"tTreeNode", 2},
	{"tTreeParent", 2},
	{"tTreeChild", 3},
	{"tTreeContent", 3},
}

var scopeKindsByName = func() map[string]ScopeKind {
	m := make(map[string]ScopeKind, len(scopeKinds))
	for i, info := range scopeKinds {
		m[info.name] = ScopeKind(i)
	}
	return m
}()

const (
	ScopeBlockTag     = ScopeKind(0)
	ScopeChapter      = ScopeKind(2)
	ScopeVerse        = ScopeKind(6)
	ScopeHangingGraft = ScopeKind(16)
	ScopeOrphanTokens = ScopeKind(17)
)

func (sk ScopeKind) String() string {
	if int(sk) < len(scopeKinds) {
		return scopeKinds[sk].name
	}
	return fmt.Sprintf("ScopeKind(%d)", uint8(sk))
}

// Arity returns the number of label components of the kind, or 0 if unknown.
func (sk ScopeKind) Arity() int {
	if int(sk) < len(scopeKinds) {
		return scopeKinds[sk].arity
	}
	return 0
}

// LookupScopeKind returns the kind with the given name.
func LookupScopeKind(name string) (ScopeKind, bool) {
	sk, ok := scopeKindsByName[name]
	return sk, ok
}

// LabelComponents splits a scope label on '/'.
func LabelComponents(label string) []string {
	return strings.Split(label, "/")
}

// ParseScopeLabel validates label against the arity table and returns its kind
// and trailing components.
func ParseScopeLabel(label string) (ScopeKind, []string, error) {
	parts := LabelComponents(label)
	sk, ok := scopeKindsByName[parts[0]]
	if !ok {
		return 0, nil, errors.NewScopeLabel(label, 0, len(parts))
	}
	if len(parts) != sk.Arity() {
		return 0, nil, errors.NewScopeLabel(label, sk.Arity(), len(parts))
	}
	return sk, parts[1:], nil
}

// ValidateItem checks an item before it is recorded or encoded.
func ValidateItem(it Item) error {
	switch it.Kind {
	case KindToken:
		if int(it.Token.Type) >= len(tokenTypeNames) {
			return fmt.Errorf("token type %d: %w", it.Token.Type, errors.ErrInvalidValue)
		}
	case KindStartScope, KindEndScope:
		_, _, err := ParseScopeLabel(it.Scope.Label)
		return err
	case KindGraft:
		if it.Graft.Type == "" || it.Graft.SeqID == "" {
			return fmt.Errorf("graft %q -> %q: %w", it.Graft.Type, it.Graft.SeqID, errors.ErrInvalidValue)
		}
	default:
		return fmt.Errorf("item kind %d: %w", it.Kind, errors.ErrInvalidValue)
	}
	return nil
}

// Recorder receives every enum value an item references.
type Recorder interface {
	Record(category enums.Category, value string) error
}

// RecordItem records the enum values referenced by it.
func RecordItem(r Recorder, it Item) error {
	switch it.Kind {
	case KindToken:
		return r.Record(it.Token.Type.Category(), it.Token.Text)
	case KindStartScope, KindEndScope:
		_, bits, err := ParseScopeLabel(it.Scope.Label)
		if err != nil {
			return err
		}
		for _, b := range bits {
			if err := r.Record(enums.ScopeBits, b); err != nil {
				return err
			}
		}
		return nil
	case KindGraft:
		if err := r.Record(enums.GraftTypes, it.Graft.Type); err != nil {
			return err
		}
		return r.Record(enums.IDs, it.Graft.SeqID)
	}
	return fmt.Errorf("item kind %d: %w", it.Kind, errors.ErrInvalidValue)
}
