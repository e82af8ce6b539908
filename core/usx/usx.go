// Package usx turns USX (Unified Scripture XML) documents into parser events.
//
// Mapping:
//   - book code becomes the "id" header
//   - chapter and verse milestones become chapter/N and verse/N scopes
//   - pubnumber and altnumber attributes, and vp, va, ca chars and cp paras,
//     become number sequences grafted after the milestone, which the parser
//     resolves into pubChapter, altChapter, pubVerse and altVerse scopes
//   - verse bridges of more than maxBridge verses open only their first verse
//   - para elements become blocks tagged blockTag/<style>
//   - char elements become span/<style> scopes
//   - note elements become footnote or xref sequences grafted inline
//   - heading and title paras become heading or title sequences grafted onto the next block
//   - text is split into wordLike, punctuation, lineSpace and noBreakSpace tokens
package usx

import (
	"bytes"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/parser"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

var (
	rootExpr = xpath.MustCompile(`/usx`)
	bookExpr = xpath.MustCompile(`/usx/book[@code]`)
)

var (
	headingStyle = regexp.MustCompile(`^(s\d*|ms\d*|mr|sr|r)$`)
	titleStyle   = regexp.MustCompile(`^(mt\d*|mte\d*|imt\d*|h\d*|toc\d*)$`)
	xrefStyle    = regexp.MustCompile(`^(x|ex)$`)
	verseRange   = regexp.MustCompile(`^(\d+)(?:-(\d+))?`)
)

// maxBridge bounds the verse/N scopes opened for a bridge such as 4-6.
const maxBridge = 100

// numberStyles maps char styles holding a number to their graft type.
var numberStyles = map[string]string{
	"vp": "pubVerse",
	"va": "altVerse",
	"ca": "altChapter",
}

// number is a published or alternate chapter or verse number.
type number struct {
	kind  string
	value string
}

// tokenPattern splits text; the submatch that matched picks the token type.
// Words are capped at 63 runes so they always fit an enum entry.
var tokenPattern = regexp.MustCompile(`([\p{L}\p{N}\p{M}\x{2060}]{1,63})|(\x{00A0}+)|(\s+)|(\p{P})|(.)`)

// Producer emits the events of one USX document.
type Producer struct {
	data []byte
	path string
}

// New creates a producer over USX bytes.
func New(data []byte) *Producer {
	return &Producer{data: data}
}

// ReadFile creates a producer over a USX file.
func ReadFile(path string) (*Producer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return &Producer{data: data, path: path}, nil
}

// Named records the file data came from so errors can report it.
func (pr *Producer) Named(path string) *Producer {
	pr.path = path
	return pr
}

// Path returns the source file, if any.
func (pr *Producer) Path() string {
	return pr.path
}

func (pr *Producer) parseError(msg string) error {
	return &errors.ParseError{Format: "usx", Path: pr.path, Message: msg, Err: errors.ErrInvalidInput}
}

// Produce walks the document and feeds p.
func (pr *Producer) Produce(p *parser.Parser) error {
	doc, err := xmlquery.Parse(bytes.NewReader(pr.data))
	if err != nil {
		return pr.parseError(err.Error())
	}
	root := xmlquery.QuerySelector(doc, rootExpr)
	if root == nil {
		return pr.parseError("no usx root element")
	}
	book := xmlquery.QuerySelector(doc, bookExpr)
	if book == nil {
		return pr.parseError("no book element with a code")
	}
	p.SetHeader("id", strings.ToUpper(book.SelectAttr("code")))
	if v := root.SelectAttr("version"); v != "" {
		p.SetHeader("usxVersion", v)
	}

	w := &walker{p: p}
	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		if err := w.top(n); err != nil {
			return err
		}
	}
	return w.finish()
}

type walker struct {
	p *parser.Parser

	chapter        string
	pendingChapter string
	chapterNumbers []number
	verses         []string

	// space is a whitespace run not yet emitted; content tells whether the
	// current block has a token or graft for it to follow.
	space   bool
	content bool
}

func (w *walker) add(it succinct.Item) error {
	if it.Kind == succinct.KindToken {
		w.content = true
	}
	return w.p.AddItem(it)
}

func (w *walker) flushSpace() error {
	defer func() { w.space = false }()
	if w.space && w.content {
		return w.add(succinct.NewToken(succinct.TokenLineSpace, " "))
	}
	return nil
}

func (w *walker) startBlock(style string) error {
	if err := w.p.NewBlock("blockTag/" + style); err != nil {
		return err
	}
	w.space, w.content = false, false
	return nil
}

func (w *walker) top(n *xmlquery.Node) error {
	switch n.Data {
	case "chapter":
		if err := w.closeVerses(); err != nil {
			return err
		}
		if err := w.closeChapter(); err != nil {
			return err
		}
		if num := sanitize(n.SelectAttr("number")); num != "" {
			w.pendingChapter = "chapter/" + num
			w.chapterNumbers = numbers(n, "Chapter")
		}
	case "para":
		style := styleOf(n, "p")
		switch {
		case style == "cp" && w.pendingChapter != "":
			w.chapterNumbers = append(w.chapterNumbers, number{kind: "pubChapter", value: n.InnerText()})
			return nil
		case titleStyle.MatchString(style):
			return w.secondary(n, parser.SeqTitle, "title", style)
		case headingStyle.MatchString(style):
			return w.secondary(n, parser.SeqHeading, "heading", style)
		}
		return w.para(n, style)
	case "table":
		for row := n.FirstChild; row != nil; row = row.NextSibling {
			if row.Type == xmlquery.ElementNode && row.Data == "row" {
				if err := w.para(row, styleOf(row, "tr")); err != nil {
					return err
				}
			}
		}
	case "sidebar":
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode {
				if err := w.top(c); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// para emits a main-sequence block, opening a pending chapter inside it.
func (w *walker) para(n *xmlquery.Node, style string) error {
	if err := w.startBlock(style); err != nil {
		return err
	}
	if err := w.openChapter(); err != nil {
		return err
	}
	return w.inline(n)
}

// secondary emits a para as a one-block heading or title sequence.
func (w *walker) secondary(n *xmlquery.Node, seqType, graftType, style string) error {
	if _, err := w.p.BeginSequence(seqType, graftType); err != nil {
		return err
	}
	if err := w.startBlock(style); err != nil {
		return err
	}
	if err := w.inline(n); err != nil {
		return err
	}
	w.space = false
	return w.p.EndSequence()
}

func (w *walker) inline(n *xmlquery.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		var err error
		switch c.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			err = w.text(c.Data)
		case xmlquery.ElementNode:
			err = w.element(c)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) element(n *xmlquery.Node) error {
	switch n.Data {
	case "verse":
		if err := w.closeVerses(); err != nil {
			return err
		}
		num := n.SelectAttr("number")
		if num == "" {
			return nil
		}
		if err := w.openVerses(num); err != nil {
			return err
		}
		for _, alt := range numbers(n, "Verse") {
			if err := w.graftNumber(alt.kind, func() error { return w.text(alt.value) }); err != nil {
				return err
			}
		}
		return nil
	case "char":
		if kind, ok := numberStyles[styleOf(n, "")]; ok {
			return w.graftNumber(kind, func() error { return w.inline(n) })
		}
		label := "span/" + styleOf(n, "no")
		if err := w.flushSpace(); err != nil {
			return err
		}
		if err := w.add(succinct.StartScope(label)); err != nil {
			return err
		}
		if err := w.inline(n); err != nil {
			return err
		}
		return w.add(succinct.EndScope(label))
	case "note":
		return w.note(n)
	case "ms":
		label := "milestone/" + styleOf(n, "ms")
		if err := w.flushSpace(); err != nil {
			return err
		}
		if err := w.add(succinct.StartScope(label)); err != nil {
			return err
		}
		return w.add(succinct.EndScope(label))
	case "optbreak":
		if err := w.flushSpace(); err != nil {
			return err
		}
		return w.add(succinct.NewToken(succinct.TokenSoftLineBreak, "//"))
	}
	return w.inline(n)
}

func (w *walker) note(n *xmlquery.Node) error {
	style := styleOf(n, "f")
	seqType, graftType := parser.SeqFootnote, "footnote"
	if xrefStyle.MatchString(style) {
		seqType, graftType = parser.SeqXref, "xref"
	}
	if err := w.flushSpace(); err != nil {
		return err
	}
	if _, err := w.p.BeginSequence(seqType, graftType); err != nil {
		return err
	}
	if err := w.startBlock(style); err != nil {
		return err
	}
	if err := w.inline(n); err != nil {
		return err
	}
	if err := w.p.EndSequence(); err != nil {
		return err
	}
	w.space, w.content = false, true
	return nil
}

// openVerses opens verse/N for every verse of a number like "4" or "4-6",
// inside a verses/<number> scope when it is a range.
func (w *walker) openVerses(num string) error {
	if err := w.flushSpace(); err != nil {
		return err
	}
	m := verseRange.FindStringSubmatch(num)
	if m == nil {
		label := "verse/" + sanitize(num)
		w.verses = append(w.verses, label)
		return w.add(succinct.StartScope(label))
	}
	from, _ := strconv.Atoi(m[1])
	to := from
	if m[2] != "" {
		var err error
		if to, err = strconv.Atoi(m[2]); err != nil || to < from || to-from >= maxBridge {
			to = from
		}
		label := "verses/" + sanitize(num)
		w.verses = append(w.verses, label)
		if err := w.add(succinct.StartScope(label)); err != nil {
			return err
		}
	}
	for v := from; v <= to; v++ {
		label := "verse/" + strconv.Itoa(v)
		w.verses = append(w.verses, label)
		if err := w.add(succinct.StartScope(label)); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) closeVerses() error {
	for i := len(w.verses) - 1; i >= 0; i-- {
		if err := w.add(succinct.EndScope(w.verses[i])); err != nil {
			return err
		}
	}
	w.verses = nil
	return nil
}

func (w *walker) openChapter() error {
	if w.pendingChapter == "" {
		return nil
	}
	if err := w.add(succinct.StartScope(w.pendingChapter)); err != nil {
		return err
	}
	w.chapter, w.pendingChapter = w.pendingChapter, ""
	for _, num := range w.chapterNumbers {
		if err := w.graftNumber(num.kind, func() error { return w.text(num.value) }); err != nil {
			return err
		}
	}
	w.chapterNumbers = nil
	return nil
}

func (w *walker) closeChapter() error {
	if w.chapter == "" {
		return nil
	}
	label := w.chapter
	w.chapter = ""
	return w.add(succinct.EndScope(label))
}

// graftNumber emits a one-block number sequence grafted at the current position.
func (w *walker) graftNumber(kind string, fill func() error) error {
	if err := w.flushSpace(); err != nil {
		return err
	}
	content := w.content
	if _, err := w.p.BeginSequence(parser.SeqNumber, kind); err != nil {
		return err
	}
	if err := w.startBlock(kind); err != nil {
		return err
	}
	if err := fill(); err != nil {
		return err
	}
	if err := w.p.EndSequence(); err != nil {
		return err
	}
	w.space, w.content = false, content
	return nil
}

func (w *walker) finish() error {
	if err := w.closeVerses(); err != nil {
		return err
	}
	if err := w.closeChapter(); err != nil {
		return err
	}
	// A chapter with no following para still gets an empty scope pair.
	if err := w.openChapter(); err != nil {
		return err
	}
	return w.closeChapter()
}

func (w *walker) text(s string) error {
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(s, -1) {
		tok := s[m[0]:m[1]]
		var tt succinct.TokenType
		switch {
		case m[2] >= 0:
			tt = succinct.TokenWordLike
		case m[4] >= 0:
			tt = succinct.TokenNoBreakSpace
		case m[6] >= 0:
			w.space = true
			continue
		case m[8] >= 0:
			tt = succinct.TokenPunctuation
		default:
			tt = succinct.TokenUnknown
		}
		if err := w.flushSpace(); err != nil {
			return err
		}
		if err := w.add(succinct.NewToken(tt, tok)); err != nil {
			return err
		}
	}
	return nil
}

func styleOf(n *xmlquery.Node, fallback string) string {
	if s := sanitize(n.SelectAttr("style")); s != "" {
		return s
	}
	return fallback
}

// numbers returns the published and alternate numbers of a chapter or verse
// milestone.
func numbers(n *xmlquery.Node, kind string) []number {
	var out []number
	if v := strings.TrimSpace(n.SelectAttr("pubnumber")); v != "" {
		out = append(out, number{kind: "pub" + kind, value: v})
	}
	if v := strings.TrimSpace(n.SelectAttr("altnumber")); v != "" {
		out = append(out, number{kind: "alt" + kind, value: v})
	}
	return out
}

// sanitize keeps an attribute usable as a single scope label component.
func sanitize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "/", "_")
}
