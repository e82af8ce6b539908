package enums

import (
	"fmt"

	"github.com/FocuswithJustin/juniper-succinct/core/bytearray"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
)

// Set holds one Table per category. A docset owns exactly one Set and passes
// it to every operation that records or decodes values.
type Set struct {
	tables map[Category]*Table
}

// NewSet creates a Set with an empty table for every category.
func NewSet() *Set {
	s := &Set{tables: make(map[Category]*Table, len(Categories))}
	for _, c := range Categories {
		t := NewTable(c)
		t.offsets = []int{}
		t.codes = map[string]int{}
		s.tables[c] = t
	}
	return s
}

// LoadSet rebuilds a Set from base64 buffers keyed by category name.
// Missing categories start empty.
func LoadSet(encoded map[string]string) (*Set, error) {
	s := NewSet()
	for name, b64 := range encoded {
		c := Category(name)
		if _, ok := s.tables[c]; !ok {
			return nil, fmt.Errorf("enum %q: %w", name, errors.ErrUnknownCategory)
		}
		ba, err := bytearray.FromBase64(b64)
		if err != nil {
			return nil, fmt.Errorf("enum %q: %w", name, err)
		}
		t, err := LoadTable(c, ba)
		if err != nil {
			return nil, err
		}
		s.tables[c] = t
	}
	return s, nil
}

// Table returns the table for category.
func (s *Set) Table(category Category) (*Table, error) {
	t, ok := s.tables[category]
	if !ok {
		return nil, fmt.Errorf("enum %q: %w", category, errors.ErrUnknownCategory)
	}
	return t, nil
}

// Empty reports whether no table holds any value yet.
func (s *Set) Empty() bool {
	for _, t := range s.tables {
		if t.Len() > 0 {
			return false
		}
	}
	return true
}

// BeginRecording starts a recording pass on every table.
func (s *Set) BeginRecording() error {
	for _, c := range Categories {
		if err := s.tables[c].BeginRecording(); err != nil {
			return err
		}
	}
	return nil
}

// Record counts one use of value in category.
func (s *Set) Record(category Category, value string) error {
	t, err := s.Table(category)
	if err != nil {
		return err
	}
	return t.Record(value)
}

// SortByFrequency renumbers every table by frequency. Only safe before any
// stream has been encoded against the set.
func (s *Set) SortByFrequency() {
	for _, c := range Categories {
		s.tables[c].SortByFrequency()
	}
}

// Finalize ends the recording pass on every table and rebuilds the indexes.
func (s *Set) Finalize() error {
	for _, c := range Categories {
		t := s.tables[c]
		if err := t.Finalize(); err != nil {
			return err
		}
		if !t.IndexBuilt() {
			if err := t.BuildIndex(); err != nil {
				return err
			}
		}
	}
	return nil
}

// CodeFor returns the code of value in category.
func (s *Set) CodeFor(category Category, value string) (int, error) {
	t, err := s.Table(category)
	if err != nil {
		return 0, err
	}
	return t.CodeFor(value)
}

// Decode returns the value of code in category.
func (s *Set) Decode(category Category, code int) (string, error) {
	t, err := s.Table(category)
	if err != nil {
		return "", err
	}
	return t.Decode(code)
}

// Clone returns a deep copy, used to stage changes that may be abandoned.
func (s *Set) Clone() *Set {
	c := &Set{tables: make(map[Category]*Table, len(s.tables))}
	for k, t := range s.tables {
		c.tables[k] = t.Clone()
	}
	return c
}

// Serialize returns each table's finalized buffer as base64, keyed by category name.
func (s *Set) Serialize() map[string]string {
	out := make(map[string]string, len(s.tables))
	for c, t := range s.tables {
		t.buf.Trim()
		out[string(c)] = t.buf.Base64()
	}
	return out
}

// Sizes returns the number of entries per category.
func (s *Set) Sizes() map[Category]int {
	out := make(map[Category]int, len(s.tables))
	for c, t := range s.tables {
		out[c] = t.Len()
	}
	return out
}
