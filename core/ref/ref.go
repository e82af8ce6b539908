// Package ref parses chapter/verse references within one document.
//
// Supported forms:
//   - "3" (chapter)
//   - "3-5" (chapter range)
//   - "3:16" (verse)
//   - "3:16-18" (verse range within a chapter)
//   - "3:16-4:2" (verse range across chapters)
package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
)

// Ref is a parsed reference. For chapter references the verse fields are zero.
type Ref struct {
	FromChapter int `json:"fromChapter"`
	FromVerse   int `json:"fromVerse,omitempty"`
	ToChapter   int `json:"toChapter"`
	ToVerse     int `json:"toVerse,omitempty"`

	// Verses is true when the reference names verses rather than whole chapters.
	Verses bool `json:"verses"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	From *cvPart `@@`
	To   *cvPart `( "-" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type cvPart struct {
	Chapter int  `@Int`
	Verse   *int `( ":" @Int )?`
}

var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a chapter/verse reference string.
func Parse(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, &errors.ParseError{Format: "reference", Message: "empty reference", Err: errors.ErrInvalidReference}
	}
	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return Ref{}, &errors.ParseError{Format: "reference", Message: fmt.Sprintf("%q: %v", s, err), Err: errors.ErrInvalidReference}
	}

	r := Ref{FromChapter: parsed.From.Chapter, ToChapter: parsed.From.Chapter}
	if parsed.From.Verse != nil {
		r.Verses = true
		r.FromVerse = *parsed.From.Verse
		r.ToVerse = r.FromVerse
	}

	if to := parsed.To; to != nil {
		switch {
		case !r.Verses && to.Verse != nil:
			return Ref{}, &errors.ParseError{Format: "reference", Message: fmt.Sprintf("%q: chapter range ending in a verse", s), Err: errors.ErrInvalidReference}
		case !r.Verses:
			r.ToChapter = to.Chapter
		case to.Verse == nil:
			// C:V-V, the second number is a verse of the same chapter.
			r.ToVerse = to.Chapter
		default:
			r.ToChapter = to.Chapter
			r.ToVerse = *to.Verse
		}
	}

	if r.FromChapter < 1 {
		return Ref{}, &errors.ParseError{Format: "reference", Message: fmt.Sprintf("%q: chapters start at 1", s), Err: errors.ErrInvalidReference}
	}
	if r.ToChapter < r.FromChapter || (r.ToChapter == r.FromChapter && r.ToVerse < r.FromVerse) {
		return Ref{}, &errors.ParseError{Format: "reference", Message: fmt.Sprintf("%q: range ends before it starts", s), Err: errors.ErrInvalidReference}
	}
	return r, nil
}

// IsRange reports whether the reference covers more than one chapter or verse.
func (r Ref) IsRange() bool {
	return r.FromChapter != r.ToChapter || r.FromVerse != r.ToVerse
}

// String returns the canonical form of the reference.
func (r Ref) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(r.FromChapter))
	if r.Verses {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(r.FromVerse))
	}
	if !r.IsRange() {
		return sb.String()
	}
	sb.WriteString("-")
	if !r.Verses {
		sb.WriteString(strconv.Itoa(r.ToChapter))
		return sb.String()
	}
	if r.ToChapter != r.FromChapter {
		sb.WriteString(strconv.Itoa(r.ToChapter))
		sb.WriteString(":")
	}
	sb.WriteString(strconv.Itoa(r.ToVerse))
	return sb.String()
}

// Contains reports whether chapter:verse falls inside the reference. For
// chapter references the verse is ignored.
func (r Ref) Contains(chapter, verse int) bool {
	if chapter < r.FromChapter || chapter > r.ToChapter {
		return false
	}
	if !r.Verses {
		return true
	}
	if chapter == r.FromChapter && verse < r.FromVerse {
		return false
	}
	if chapter == r.ToChapter && verse > r.ToVerse {
		return false
	}
	return true
}
