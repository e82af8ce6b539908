package succinct

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/juniper-succinct/core/bytearray"
	"github.com/FocuswithJustin/juniper-succinct/core/enums"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
)

// MaxItemLength is the largest item length the header byte can hold.
const MaxItemLength = 0x3F

// Coder resolves enum values to codes and back. *enums.Set implements it.
type Coder interface {
	CodeFor(category enums.Category, value string) (int, error)
	Decode(category enums.Category, code int) (string, error)
}

// HeaderByte packs an item kind and length.
func HeaderByte(kind Kind, length int) (int, error) {
	if length > MaxItemLength {
		return 0, fmt.Errorf("%s item of %d bytes: %w", kind, length, errors.ErrItemTooLarge)
	}
	return int(kind)<<6 | length, nil
}

// Header reads the header and subtype bytes of the item at pos.
func Header(ba *bytearray.ByteArray, pos int) (Kind, int, byte, error) {
	h, err := ba.Byte(pos)
	if err != nil {
		return 0, 0, 0, err
	}
	sub, err := ba.Byte(pos + 1)
	if err != nil {
		return 0, 0, 0, err
	}
	return Kind(h >> 6), int(h & MaxItemLength), sub, nil
}

// EncodeItem appends the packed form of it to ba and returns the number of
// bytes written. Nothing is written when an error is returned.
func EncodeItem(ba *bytearray.ByteArray, it Item, coder Coder) (int, error) {
	scratch := bytearray.New(16)
	if err := scratch.PushByte(0); err != nil {
		return 0, err
	}
	switch it.Kind {
	case KindToken:
		if err := ValidateItem(it); err != nil {
			return 0, err
		}
		code, err := coder.CodeFor(it.Token.Type.Category(), it.Token.Text)
		if err != nil {
			return 0, err
		}
		if err := scratch.PushByte(int(it.Token.Type)); err != nil {
			return 0, err
		}
		if err := scratch.PushVarInt(code); err != nil {
			return 0, err
		}
	case KindStartScope, KindEndScope:
		sk, bits, err := ParseScopeLabel(it.Scope.Label)
		if err != nil {
			return 0, err
		}
		if err := scratch.PushByte(int(sk)); err != nil {
			return 0, err
		}
		for _, b := range bits {
			code, err := coder.CodeFor(enums.ScopeBits, b)
			if err != nil {
				return 0, err
			}
			if err := scratch.PushVarInt(code); err != nil {
				return 0, err
			}
		}
	case KindGraft:
		if err := ValidateItem(it); err != nil {
			return 0, err
		}
		typeCode, err := coder.CodeFor(enums.GraftTypes, it.Graft.Type)
		if err != nil {
			return 0, err
		}
		seqCode, err := coder.CodeFor(enums.IDs, it.Graft.SeqID)
		if err != nil {
			return 0, err
		}
		if err := scratch.PushByte(typeCode); err != nil {
			return 0, fmt.Errorf("graft type %q: %w", it.Graft.Type, err)
		}
		if err := scratch.PushVarInt(seqCode); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("item kind %d: %w", it.Kind, errors.ErrInvalidValue)
	}

	header, err := HeaderByte(it.Kind, scratch.Len())
	if err != nil {
		return 0, err
	}
	if err := scratch.SetByte(0, header); err != nil {
		return 0, err
	}
	ba.PushBytes(scratch.Data())
	return scratch.Len(), nil
}

// EncodeItems encodes every item into a fresh, trimmed ByteArray.
func EncodeItems(items []Item, coder Coder) (*bytearray.ByteArray, error) {
	ba := bytearray.New(len(items) * 4)
	for i, it := range items {
		if _, err := EncodeItem(ba, it, coder); err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, it, err)
		}
	}
	ba.Trim()
	return ba, nil
}

// DecodeItem decodes the item at pos and returns it with its length in bytes.
func DecodeItem(ba *bytearray.ByteArray, pos int, coder Coder) (Item, int, error) {
	kind, length, sub, err := Header(ba, pos)
	if err != nil {
		return Item{}, 0, err
	}
	if length < 2 {
		return Item{}, 0, fmt.Errorf("%s item at %d has length %d: %w", kind, pos, length, errors.ErrOutOfRange)
	}
	view, err := ba.View(pos, length)
	if err != nil {
		return Item{}, 0, err
	}

	switch kind {
	case KindToken:
		tt := TokenType(sub)
		code, _, err := view.VarInt(2)
		if err != nil {
			return Item{}, 0, err
		}
		text, err := coder.Decode(tt.Category(), code)
		if err != nil {
			return Item{}, 0, err
		}
		return NewToken(tt, text), length, nil

	case KindStartScope, KindEndScope:
		sk := ScopeKind(sub)
		arity := sk.Arity()
		if arity == 0 {
			return Item{}, 0, fmt.Errorf("scope kind %d at %d: %w", sub, pos, errors.ErrInvalidValue)
		}
		parts := make([]string, 1, arity)
		parts[0] = sk.String()
		p := 2
		for i := 1; i < arity; i++ {
			code, n, err := view.VarInt(p)
			if err != nil {
				return Item{}, 0, err
			}
			bit, err := coder.Decode(enums.ScopeBits, code)
			if err != nil {
				return Item{}, 0, err
			}
			parts = append(parts, bit)
			p += n
		}
		label := strings.Join(parts, "/")
		if kind == KindStartScope {
			return StartScope(label), length, nil
		}
		return EndScope(label), length, nil

	case KindGraft:
		graftType, err := coder.Decode(enums.GraftTypes, int(sub))
		if err != nil {
			return Item{}, 0, err
		}
		code, _, err := view.VarInt(2)
		if err != nil {
			return Item{}, 0, err
		}
		seqID, err := coder.Decode(enums.IDs, code)
		if err != nil {
			return Item{}, 0, err
		}
		return NewGraft(graftType, seqID), length, nil
	}
	return Item{}, 0, fmt.Errorf("item kind %d at %d: %w", kind, pos, errors.ErrInvalidValue)
}

// DecodeItems decodes a whole stream.
func DecodeItems(ba *bytearray.ByteArray, coder Coder) ([]Item, error) {
	var items []Item
	for pos := 0; pos < ba.Len(); {
		it, n, err := DecodeItem(ba, pos, coder)
		if err != nil {
			return nil, fmt.Errorf("decoding item at %d: %w", pos, err)
		}
		items = append(items, it)
		pos += n
	}
	return items, nil
}

// Walk calls fn with each item of the stream and its byte offset. Returning
// false from fn stops the walk.
func Walk(ba *bytearray.ByteArray, coder Coder, fn func(pos int, it Item) bool) error {
	for pos := 0; pos < ba.Len(); {
		it, n, err := DecodeItem(ba, pos, coder)
		if err != nil {
			return fmt.Errorf("decoding item at %d: %w", pos, err)
		}
		if !fn(pos, it) {
			return nil
		}
		pos += n
	}
	return nil
}
