// Package enums implements the string-interning tables shared by every document
// of a docset.
//
// A Table is built in two passes. While recording, each distinct value gets a
// provisional code and a frequency count. SortByFrequency then renumbers the
// values so the most frequent get the smallest (shortest varint) codes, and
// Finalize writes them to the backing ByteArray as counted strings in code order.
// Decoding goes through an offset index built by BuildIndex.
package enums

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/juniper-succinct/core/bytearray"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
)

// Category names one enum table of a docset.
type Category string

const (
	IDs         Category = "ids"
	WordLike    Category = "wordLike"
	NotWordLike Category = "notWordLike"
	ScopeBits   Category = "scopeBits"
	GraftTypes  Category = "graftTypes"
)

// Categories lists every category in serialization order.
var Categories = []Category{IDs, WordLike, NotWordLike, ScopeBits, GraftTypes}

type preEnum struct {
	code      int
	frequency int
}

// Table is the enum for one category.
type Table struct {
	category Category
	buf      *bytearray.ByteArray

	// pre is non-nil while recording.
	pre map[string]*preEnum

	// offsets and codes are nil until BuildIndex.
	offsets []int
	codes   map[string]int
}

// NewTable creates an empty, finalized table.
func NewTable(category Category) *Table {
	return &Table{
		category: category,
		buf:      bytearray.New(512),
	}
}

// LoadTable wraps an existing finalized buffer and builds its index.
func LoadTable(category Category, buf *bytearray.ByteArray) (*Table, error) {
	t := &Table{category: category, buf: buf}
	if err := t.BuildIndex(); err != nil {
		return nil, fmt.Errorf("loading %s enum: %w", category, err)
	}
	return t, nil
}

// Category returns the table's category.
func (t *Table) Category() Category {
	return t.category
}

// Buffer returns the finalized buffer.
func (t *Table) Buffer() *bytearray.ByteArray {
	return t.buf
}

// Recording reports whether a recording pass is in progress.
func (t *Table) Recording() bool {
	return t.pre != nil
}

// IndexBuilt reports whether Decode can be used.
func (t *Table) IndexBuilt() bool {
	return t.offsets != nil
}

// Len returns the number of entries. During recording this includes
// values recorded but not yet finalized.
func (t *Table) Len() int {
	if t.pre != nil {
		return len(t.pre)
	}
	if t.offsets != nil {
		return len(t.offsets)
	}
	n := 0
	for pos := 0; pos < t.buf.Len(); n++ {
		length, err := t.buf.Byte(pos)
		if err != nil {
			break
		}
		pos += int(length) + 1
	}
	return n
}

// BeginRecording starts a recording pass seeded with the finalized entries,
// which keep their codes with a frequency of zero.
func (t *Table) BeginRecording() error {
	values, err := t.scan()
	if err != nil {
		return err
	}
	t.pre = make(map[string]*preEnum, len(values))
	for code, v := range values {
		t.pre[v] = &preEnum{code: code}
	}
	return nil
}

// Record counts one use of value, giving it the next code if it is new.
func (t *Table) Record(value string) error {
	if t.pre == nil {
		return fmt.Errorf("recording %q in %s enum: no recording pass: %w", value, t.category, errors.ErrInternal)
	}
	if len(value) > bytearray.MaxCountedStringLength {
		return fmt.Errorf("%s enum value of %d bytes: %w", t.category, len(value), errors.ErrInvalidValue)
	}
	if pe, ok := t.pre[value]; ok {
		pe.frequency++
		return nil
	}
	t.pre[value] = &preEnum{code: len(t.pre), frequency: 1}
	return nil
}

// Frequency returns the recorded frequency of value, or zero.
func (t *Table) Frequency(value string) int {
	if pe, ok := t.pre[value]; ok {
		return pe.frequency
	}
	return 0
}

// SortByFrequency renumbers recorded values by descending frequency. Ties keep
// their provisional order.
func (t *Table) SortByFrequency() {
	if t.pre == nil {
		return
	}
	entries := t.preEntries()
	sort.SliceStable(entries, func(i, j int) bool {
		return t.pre[entries[i]].frequency > t.pre[entries[j]].frequency
	})
	for code, v := range entries {
		t.pre[v].code = code
	}
}

// Finalize rewrites the buffer from the recorded values in code order and ends
// the recording pass. The index must be rebuilt afterwards.
func (t *Table) Finalize() error {
	if t.pre == nil {
		return nil
	}
	t.buf.Clear()
	for _, v := range t.preEntries() {
		if err := t.buf.PushCountedString(v); err != nil {
			return fmt.Errorf("finalizing %s enum: %w", t.category, err)
		}
	}
	t.buf.Trim()
	t.pre = nil
	t.offsets = nil
	t.codes = nil
	return nil
}

// BuildIndex scans the finalized buffer once, recording the offset of each code.
func (t *Table) BuildIndex() error {
	offsets := []int{}
	codes := map[string]int{}
	for pos := 0; pos < t.buf.Len(); {
		v, n, err := t.buf.CountedString(pos)
		if err != nil {
			return fmt.Errorf("indexing %s enum: %w", t.category, err)
		}
		codes[v] = len(offsets)
		offsets = append(offsets, pos)
		pos += n
	}
	t.offsets = offsets
	t.codes = codes
	return nil
}

// CodeFor returns the code for value, from the recording pass if one is in
// progress and from the index otherwise.
func (t *Table) CodeFor(value string) (int, error) {
	if t.pre != nil {
		if pe, ok := t.pre[value]; ok {
			return pe.code, nil
		}
		return 0, fmt.Errorf("%q in %s enum: %w", value, t.category, errors.ErrUnknownValue)
	}
	if t.codes == nil {
		return 0, fmt.Errorf("%s enum: %w", t.category, errors.ErrIndexNotBuilt)
	}
	code, ok := t.codes[value]
	if !ok {
		return 0, fmt.Errorf("%q in %s enum: %w", value, t.category, errors.ErrUnknownValue)
	}
	return code, nil
}

// Decode returns the value for code.
func (t *Table) Decode(code int) (string, error) {
	if t.offsets == nil {
		return "", fmt.Errorf("%s enum: %w", t.category, errors.ErrIndexNotBuilt)
	}
	if code < 0 || code >= len(t.offsets) {
		return "", fmt.Errorf("code %d in %s enum of %d: %w", code, t.category, len(t.offsets), errors.ErrUnknownValue)
	}
	v, _, err := t.buf.CountedString(t.offsets[code])
	return v, err
}

// Values returns the finalized values in code order.
func (t *Table) Values() ([]string, error) {
	return t.scan()
}

// Clone returns a deep copy that shares nothing with t.
func (t *Table) Clone() *Table {
	c := &Table{category: t.category, buf: t.buf.Clone()}
	if t.pre != nil {
		c.pre = make(map[string]*preEnum, len(t.pre))
		for v, pe := range t.pre {
			cp := *pe
			c.pre[v] = &cp
		}
	}
	if t.offsets != nil {
		c.offsets = append([]int(nil), t.offsets...)
		c.codes = make(map[string]int, len(t.codes))
		for v, code := range t.codes {
			c.codes[v] = code
		}
	}
	return c
}

func (t *Table) scan() ([]string, error) {
	var values []string
	for pos := 0; pos < t.buf.Len(); {
		v, n, err := t.buf.CountedString(pos)
		if err != nil {
			return nil, fmt.Errorf("reading %s enum: %w", t.category, err)
		}
		values = append(values, v)
		pos += n
	}
	return values, nil
}

// preEntries returns the recorded values ordered by code.
func (t *Table) preEntries() []string {
	entries := make([]string, len(t.pre))
	for v, pe := range t.pre {
		entries[pe.code] = v
	}
	return entries
}
