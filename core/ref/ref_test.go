package ref

import (
	"testing"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Ref
	}{
		{"3", Ref{FromChapter: 3, ToChapter: 3}},
		{"3-5", Ref{FromChapter: 3, ToChapter: 5}},
		{"3:16", Ref{FromChapter: 3, FromVerse: 16, ToChapter: 3, ToVerse: 16, Verses: true}},
		{"3:16-18", Ref{FromChapter: 3, FromVerse: 16, ToChapter: 3, ToVerse: 18, Verses: true}},
		{"3:16-4:2", Ref{FromChapter: 3, FromVerse: 16, ToChapter: 4, ToVerse: 2, Verses: true}},
		{" 1 : 1 ", Ref{FromChapter: 1, FromVerse: 1, ToChapter: 1, ToVerse: 1, Verses: true}},
		{"1:0", Ref{FromChapter: 1, ToChapter: 1, Verses: true}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	inputs := []string{
		"",
		"Gen.1.1",
		"1:",
		":1",
		"1-2:3",
		"1:2-3-4",
		"5-3",
		"2:9-2:3",
		"2:9-4",
		"0",
		"1:a",
		"1.1",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if !errors.Is(err, errors.ErrInvalidReference) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidReference", input, err)
			}
		})
	}
}

func TestString(t *testing.T) {
	for _, input := range []string{"3", "3-5", "3:16", "3:16-18", "3:16-4:2"} {
		r, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", input, err)
		}
		if got := r.String(); got != input {
			t.Errorf("Parse(%q).String() = %q", input, got)
		}
	}
}

func TestContains(t *testing.T) {
	r, err := Parse("3:16-4:2")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		chapter, verse int
		want           bool
	}{
		{3, 15, false},
		{3, 16, true},
		{3, 40, true},
		{4, 1, true},
		{4, 2, true},
		{4, 3, false},
		{5, 1, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.chapter, tt.verse); got != tt.want {
			t.Errorf("Contains(%d, %d) = %v, want %v", tt.chapter, tt.verse, got, tt.want)
		}
	}

	chapters, _ := Parse("2-3")
	if !chapters.Contains(3, 99) || chapters.Contains(4, 1) {
		t.Error("chapter range Contains mismatch")
	}
}
