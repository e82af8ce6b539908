// Package bytearray provides the growable byte buffer that backs every succinct
// stream and enum table.
//
// Integers are written as little-endian 7-bit groups. Unlike LEB128, a byte
// with the high bit set marks the last group of a value; a byte below 128 means
// more groups follow:
//
//	| Value   | Byte 1   | Byte 2   | Byte 3   |
//	| 0       | 10000000 |          |          |
//	| 127     | 11111111 |          |          |
//	| 128     | 00000000 | 10000001 |          |
//	| 16,383  | 01111111 | 11111111 |          |
//	| 16,384  | 00000000 | 00000000 | 10000001 |
//
// Values are limited to four groups (< 2^28).
package bytearray

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
)

const (
	// DefaultCapacity is used when New is called with a non-positive capacity.
	DefaultCapacity = 1024

	// MaxGrowth caps how much capacity a single grow step adds.
	MaxGrowth = 16 * 1024 * 1024

	// MaxVarIntBytes is the longest varint a ByteArray reads or writes.
	MaxVarIntBytes = 4

	// MaxCountedStringLength is the longest string, in UTF-8 bytes, that fits a counted string.
	MaxCountedStringLength = 255
)

// varIntLimits[n] is the first value that needs n+2 bytes.
var varIntLimits = [MaxVarIntBytes]int{1 << 7, 1 << 14, 1 << 21, 1 << 28}

// ByteArray is a resizable byte region with a logical length.
// len(buf) is the logical length and cap(buf) the capacity.
type ByteArray struct {
	buf []byte
}

// New creates an empty ByteArray with the given capacity hint.
func New(capacity int) *ByteArray {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ByteArray{buf: make([]byte, 0, capacity)}
}

// FromBytes creates a ByteArray holding a copy of data, trimmed to its length.
func FromBytes(data []byte) *ByteArray {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &ByteArray{buf: buf}
}

// FromBase64 decodes a standard base64 string into a trimmed ByteArray.
func FromBase64(s string) (*ByteArray, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &errors.ParseError{Format: "base64", Message: err.Error(), Err: errors.ErrInvalidValue}
	}
	return &ByteArray{buf: data}, nil
}

// Len returns the logical length.
func (ba *ByteArray) Len() int {
	return len(ba.buf)
}

// Cap returns the capacity of the backing storage.
func (ba *ByteArray) Cap() int {
	return cap(ba.buf)
}

// Data returns the logical bytes. The slice aliases the buffer and must not be modified.
func (ba *ByteArray) Data() []byte {
	return ba.buf
}

// Clone returns a trimmed copy.
func (ba *ByteArray) Clone() *ByteArray {
	return FromBytes(ba.buf)
}

// View returns a read-only window of n bytes starting at i. The window shares
// storage with ba; reads through it cannot go past i+n.
func (ba *ByteArray) View(i, n int) (*ByteArray, error) {
	if i < 0 || n < 0 || i+n > len(ba.buf) {
		return nil, fmt.Errorf("view %d+%d of %d: %w", i, n, len(ba.buf), errors.ErrOutOfRange)
	}
	return &ByteArray{buf: ba.buf[i : i+n : i+n]}, nil
}

// Byte returns the byte at position i.
func (ba *ByteArray) Byte(i int) (byte, error) {
	if i < 0 || i >= len(ba.buf) {
		return 0, fmt.Errorf("byte %d of %d: %w", i, len(ba.buf), errors.ErrOutOfRange)
	}
	return ba.buf[i], nil
}

// Bytes returns a copy of n bytes starting at position i.
func (ba *ByteArray) Bytes(i, n int) ([]byte, error) {
	if i < 0 || n < 0 || i+n > len(ba.buf) {
		return nil, fmt.Errorf("bytes %d+%d of %d: %w", i, n, len(ba.buf), errors.ErrOutOfRange)
	}
	out := make([]byte, n)
	copy(out, ba.buf[i:i+n])
	return out, nil
}

// SetByte overwrites the byte at position i. Only positions below Len can be set.
func (ba *ByteArray) SetByte(i int, v int) error {
	if v < 0 || v > 255 {
		return fmt.Errorf("byte value %d: %w", v, errors.ErrInvalidValue)
	}
	if i < 0 || i >= len(ba.buf) {
		return fmt.Errorf("set byte %d of %d: %w", i, len(ba.buf), errors.ErrOutOfRange)
	}
	ba.buf[i] = byte(v)
	return nil
}

// SetBytes overwrites len(data) bytes starting at position i.
func (ba *ByteArray) SetBytes(i int, data []byte) error {
	if i < 0 || i+len(data) > len(ba.buf) {
		return fmt.Errorf("set bytes %d+%d of %d: %w", i, len(data), len(ba.buf), errors.ErrOutOfRange)
	}
	copy(ba.buf[i:], data)
	return nil
}

// grow makes room for at least n more bytes. Each step adds the current
// capacity, but never more than MaxGrowth.
func (ba *ByteArray) grow(n int) {
	need := len(ba.buf) + n
	if need <= cap(ba.buf) {
		return
	}
	newCap := cap(ba.buf)
	if newCap == 0 {
		newCap = 16
	}
	for newCap < need {
		newCap += min(newCap, MaxGrowth)
	}
	newBuf := make([]byte, len(ba.buf), newCap)
	copy(newBuf, ba.buf)
	ba.buf = newBuf
}

// PushByte appends a single byte.
func (ba *ByteArray) PushByte(v int) error {
	if v < 0 || v > 255 {
		return fmt.Errorf("byte value %d: %w", v, errors.ErrInvalidValue)
	}
	ba.grow(1)
	ba.buf = append(ba.buf, byte(v))
	return nil
}

// PushBytes appends data.
func (ba *ByteArray) PushBytes(data []byte) {
	ba.grow(len(data))
	ba.buf = append(ba.buf, data...)
}

// VarIntByteLength returns how many bytes PushVarInt writes for v.
func VarIntByteLength(v int) (int, error) {
	if v < 0 {
		return 0, fmt.Errorf("varint %d: %w", v, errors.ErrInvalidValue)
	}
	for n, limit := range varIntLimits {
		if v < limit {
			return n + 1, nil
		}
	}
	return 0, fmt.Errorf("varint %d: %w", v, errors.ErrOverflow)
}

// PushVarInt appends v as a varint.
func (ba *ByteArray) PushVarInt(v int) error {
	n, err := VarIntByteLength(v)
	if err != nil {
		return err
	}
	ba.grow(n)
	for v >= 128 {
		ba.buf = append(ba.buf, byte(v%128))
		v >>= 7
	}
	ba.buf = append(ba.buf, byte(v+128))
	return nil
}

// VarInt reads the varint at position i, returning the value and the number of bytes it occupies.
func (ba *ByteArray) VarInt(i int) (int, int, error) {
	value := 0
	for n := 0; n < MaxVarIntBytes; n++ {
		if i+n < 0 || i+n >= len(ba.buf) {
			return 0, 0, fmt.Errorf("varint at %d of %d: %w", i, len(ba.buf), errors.ErrOutOfRange)
		}
		b := int(ba.buf[i+n])
		if b >= 128 {
			return value + (b-128)<<(7*n), n + 1, nil
		}
		value += b << (7 * n)
	}
	return 0, 0, fmt.Errorf("varint at %d: %w", i, errors.ErrOverflow)
}

// PushCountedString appends a length byte followed by the UTF-8 bytes of s.
func (ba *ByteArray) PushCountedString(s string) error {
	if len(s) > MaxCountedStringLength {
		return fmt.Errorf("counted string of %d bytes: %w", len(s), errors.ErrInvalidValue)
	}
	ba.grow(len(s) + 1)
	ba.buf = append(ba.buf, byte(len(s)))
	ba.buf = append(ba.buf, s...)
	return nil
}

// CountedString reads the counted string at position i, returning the string and the
// number of bytes it occupies including the length byte.
func (ba *ByteArray) CountedString(i int) (string, int, error) {
	n, err := ba.Byte(i)
	if err != nil {
		return "", 0, err
	}
	if i+1+int(n) > len(ba.buf) {
		return "", 0, fmt.Errorf("counted string at %d: %w", i, errors.ErrOutOfRange)
	}
	raw := ba.buf[i+1 : i+1+int(n)]
	if !utf8.Valid(raw) {
		return "", 0, fmt.Errorf("counted string at %d is not UTF-8: %w", i, errors.ErrInvalidValue)
	}
	return string(raw), int(n) + 1, nil
}

// Clear zeroes the storage and resets the length, keeping the capacity.
func (ba *ByteArray) Clear() {
	clear(ba.buf[:cap(ba.buf)])
	ba.buf = ba.buf[:0]
}

// Trim shrinks the capacity to the logical length.
func (ba *ByteArray) Trim() {
	if cap(ba.buf) == len(ba.buf) {
		return
	}
	trimmed := make([]byte, len(ba.buf))
	copy(trimmed, ba.buf)
	ba.buf = trimmed
}

// Base64 returns the standard base64 encoding of the logical bytes.
func (ba *ByteArray) Base64() string {
	return base64.StdEncoding.EncodeToString(ba.buf)
}
