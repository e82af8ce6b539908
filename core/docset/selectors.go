package docset

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
)

// Selector is one named component of a docset id, with the pattern its
// value must match.
type Selector struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// SelectorSchema lists the selectors of every docset, in id order.
type SelectorSchema []Selector

// DefaultSelectorSchema identifies a docset by language code and abbreviation.
var DefaultSelectorSchema = SelectorSchema{
	{Name: "lang", Pattern: `^[a-z]{3}$`},
	{Name: "abbr", Pattern: `^.+$`},
}

// Validate checks that selectors has exactly the schema's names and that
// every value matches its pattern.
func (schema SelectorSchema) Validate(selectors map[string]string) error {
	for _, sel := range schema {
		v, ok := selectors[sel.Name]
		if !ok {
			return &errors.ValidationError{Field: sel.Name, Message: "selector is missing", Err: errors.ErrInvalidValue}
		}
		re, err := regexp.Compile(sel.Pattern)
		if err != nil {
			return fmt.Errorf("selector %s pattern %q: %w", sel.Name, sel.Pattern, errors.ErrInvalidValue)
		}
		if !re.MatchString(v) {
			return &errors.ValidationError{Field: sel.Name, Value: v, Message: "must match " + sel.Pattern, Err: errors.ErrInvalidValue}
		}
	}
	if len(selectors) != len(schema) {
		for name := range selectors {
			if !schema.has(name) {
				return &errors.ValidationError{Field: name, Message: "unknown selector", Err: errors.ErrInvalidValue}
			}
		}
	}
	return nil
}

func (schema SelectorSchema) has(name string) bool {
	for _, sel := range schema {
		if sel.Name == name {
			return true
		}
	}
	return false
}

// ID validates selectors and joins their values with "_" in schema order.
func (schema SelectorSchema) ID(selectors map[string]string) (string, error) {
	if err := schema.Validate(selectors); err != nil {
		return "", err
	}
	parts := make([]string, len(schema))
	for i, sel := range schema {
		parts[i] = selectors[sel.Name]
	}
	return strings.Join(parts, "_"), nil
}
