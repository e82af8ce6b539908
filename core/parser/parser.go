// Package parser accumulates the item stream of a producer (a lexer for USFM,
// USX or another markup) into sequences of blocks, ready to be encoded into a
// docset.
//
// Items arrive one at a time, together with block-boundary and
// sequence-boundary signals. The parser keeps a stack of open sequences:
// starting a sequence grafts it into the current one, and items flow into the
// innermost open sequence until it is ended.
package parser

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

// inlineGraftTypes are grafted into block content; every other graft type
// hangs off a block.
var inlineGraftTypes = map[string]bool{
	"footnote":    true,
	"xref":        true,
	"noteCaller":  true,
	"esbCatGraft": true,
	"pubChapter":  true,
	"altChapter":  true,
	"pubVerse":    true,
	"altVerse":    true,
}

// DefaultCanBeEmpty lists block scopes that survive Tidy without content.
var DefaultCanBeEmpty = map[string]bool{
	"blockTag/b":  true,
	"blockTag/ib": true,
	"blockTag/nb": true,
}

// IsInlineGraft reports whether grafts of this type go into block content.
func IsInlineGraft(graftType string) bool {
	return inlineGraftTypes[graftType]
}

// Parser builds the sequences of one document.
type Parser struct {
	headers   map[string]string
	tags      map[string]bool
	sequences map[string]*Sequence
	order     []string
	stack     []*Sequence
	mainID    string
	newID     func() string
}

// New creates a parser with an empty main sequence.
func New() *Parser {
	p := &Parser{
		headers:   map[string]string{},
		tags:      map[string]bool{},
		sequences: map[string]*Sequence{},
		newID:     NewID,
	}
	main := p.addSequence(SeqMain, "")
	p.mainID = main.ID
	p.stack = []*Sequence{main}
	return p
}

// NewID returns a fresh sequence or document id.
func NewID() string {
	return uuid.New().String()
}

func (p *Parser) addSequence(seqType, id string) *Sequence {
	if id == "" {
		id = p.newID()
	}
	seq := newSequence(id, seqType)
	p.sequences[id] = seq
	p.order = append(p.order, id)
	return seq
}

// MainID returns the id of the main sequence.
func (p *Parser) MainID() string {
	return p.mainID
}

// Main returns the main sequence.
func (p *Parser) Main() *Sequence {
	return p.sequences[p.mainID]
}

// Current returns the innermost open sequence.
func (p *Parser) Current() *Sequence {
	return p.stack[len(p.stack)-1]
}

// Sequence returns the sequence with the given id.
func (p *Parser) Sequence(id string) (*Sequence, bool) {
	s, ok := p.sequences[id]
	return s, ok
}

// Sequences returns every sequence in creation order.
func (p *Parser) Sequences() []*Sequence {
	out := make([]*Sequence, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.sequences[id])
	}
	return out
}

// SetHeader records a document header.
func (p *Parser) SetHeader(key, value string) {
	p.headers[key] = value
}

// Headers returns the document headers.
func (p *Parser) Headers() map[string]string {
	return p.headers
}

// AddTag adds a document tag.
func (p *Parser) AddTag(tag string) {
	p.tags[tag] = true
}

// Tags returns the document tags, sorted.
func (p *Parser) Tags() []string {
	tags := make([]string, 0, len(p.tags))
	for t := range p.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// NewBlock starts a block in the current sequence.
func (p *Parser) NewBlock(label string) error {
	return p.Current().NewBlock(label)
}

// AddItem appends an item to the current sequence.
func (p *Parser) AddItem(it succinct.Item) error {
	return p.Current().AddItem(it)
}

// AddGraft grafts seqID into the current sequence, inline or as a block graft
// depending on graftType.
func (p *Parser) AddGraft(graftType, seqID string) error {
	if IsInlineGraft(graftType) {
		return p.Current().AddItem(succinct.NewGraft(graftType, seqID))
	}
	return p.Current().AddBlockGraft(graftType, seqID)
}

// BeginSequence opens a new sequence of seqType, grafts it into the current
// sequence with graftType and makes it current. It returns the new id.
func (p *Parser) BeginSequence(seqType, graftType string) (string, error) {
	if err := validateSeqType(seqType); err != nil {
		return "", err
	}
	if seqType == SeqMain {
		return "", fmt.Errorf("a document has one main sequence: %w", errors.ErrAlreadyExists)
	}
	seq := p.addSequence(seqType, "")
	if err := p.AddGraft(graftType, seq.ID); err != nil {
		return "", err
	}
	p.stack = append(p.stack, seq)
	return seq.ID, nil
}

// EndSequence closes the current sequence and returns to its parent.
func (p *Parser) EndSequence() error {
	if len(p.stack) == 1 {
		return fmt.Errorf("ending main sequence: %w", errors.ErrInvalidInput)
	}
	p.stack = p.stack[:len(p.stack)-1]
	return nil
}

// Tidy removes empty blocks from every sequence, then drops non-main
// sequences left without blocks along with the grafts pointing at them.
func (p *Parser) Tidy() {
	for _, s := range p.Sequences() {
		s.Tidy(DefaultCanBeEmpty)
	}
	dropped := map[string]bool{}
	var order []string
	for _, id := range p.order {
		s := p.sequences[id]
		if id != p.mainID && len(s.Blocks) == 0 {
			dropped[id] = true
			delete(p.sequences, id)
			continue
		}
		order = append(order, id)
	}
	p.order = order
	if len(dropped) == 0 {
		return
	}
	for _, s := range p.sequences {
		for _, b := range s.Blocks {
			b.Grafts = withoutGraftsTo(b.Grafts, dropped)
			b.Items = withoutGraftsTo(b.Items, dropped)
		}
	}
}

func withoutGraftsTo(items []succinct.Item, dropped map[string]bool) []succinct.Item {
	out := items[:0]
	for _, it := range items {
		if it.Kind == succinct.KindGraft && dropped[it.Graft.SeqID] {
			continue
		}
		out = append(out, it)
	}
	return out
}
