package parser

import (
	"fmt"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

// Sequence types produced by the parser.
const (
	SeqMain         = "main"
	SeqIntroduction = "introduction"
	SeqFootnote     = "footnote"
	SeqXref         = "xref"
	SeqHeading      = "heading"
	SeqTitle        = "title"
	SeqTable        = "table"
	SeqTree         = "tree"
	SeqNumber       = "number"
)

// BlockKind tells a structural block from the placeholders created when items
// or grafts arrive before any block exists.
type BlockKind int

const (
	BlockNormal BlockKind = iota
	BlockOrphanPlaceholder
	BlockHangingGraftPlaceholder
)

func (k BlockKind) String() string {
	switch k {
	case BlockOrphanPlaceholder:
		return "orphanTokens"
	case BlockHangingGraftPlaceholder:
		return "hangingGraft"
	}
	return "normal"
}

// Block is a block under construction.
type Block struct {
	Kind   BlockKind
	Scope  succinct.Item
	Grafts []succinct.Item
	Items  []succinct.Item
}

// IsPlaceholder reports whether the block may be retagged by the next NewBlock.
func (b *Block) IsPlaceholder() bool {
	return b.Kind != BlockNormal
}

// Empty reports whether the block holds neither items nor grafts.
func (b *Block) Empty() bool {
	return len(b.Items) == 0 && len(b.Grafts) == 0
}

// Sequence is an ordered list of blocks under construction.
type Sequence struct {
	ID     string
	Type   string
	Tags   []string
	Blocks []*Block
}

func newSequence(id, seqType string) *Sequence {
	return &Sequence{ID: id, Type: seqType}
}

func placeholder(kind BlockKind) *Block {
	return &Block{Kind: kind, Scope: succinct.StartScope(kind.String())}
}

func (s *Sequence) lastBlock() *Block {
	if len(s.Blocks) == 0 {
		return nil
	}
	return s.Blocks[len(s.Blocks)-1]
}

// NewBlock starts a block whose block scope has the given label. A trailing
// placeholder block is retagged instead of appending a new one.
func (s *Sequence) NewBlock(label string) error {
	if _, _, err := succinct.ParseScopeLabel(label); err != nil {
		return err
	}
	if last := s.lastBlock(); last != nil && last.IsPlaceholder() {
		last.Kind = BlockNormal
		last.Scope = succinct.StartScope(label)
		return nil
	}
	s.Blocks = append(s.Blocks, &Block{Scope: succinct.StartScope(label)})
	return nil
}

// AddItem appends to the content of the last block, creating an orphan
// placeholder if the sequence has no block yet.
func (s *Sequence) AddItem(it succinct.Item) error {
	if err := succinct.ValidateItem(it); err != nil {
		return err
	}
	last := s.lastBlock()
	if last == nil {
		last = placeholder(BlockOrphanPlaceholder)
		s.Blocks = append(s.Blocks, last)
	}
	last.Items = append(last.Items, it)
	return nil
}

// AddBlockGraft hangs a graft off a block. If the last block has no content
// yet the graft attaches to it; otherwise a hanging-graft placeholder is
// opened for the next NewBlock to retag.
func (s *Sequence) AddBlockGraft(graftType, seqID string) error {
	g := succinct.NewGraft(graftType, seqID)
	if err := succinct.ValidateItem(g); err != nil {
		return err
	}
	last := s.lastBlock()
	if last == nil || len(last.Items) > 0 {
		last = placeholder(BlockHangingGraftPlaceholder)
		s.Blocks = append(s.Blocks, last)
	}
	last.Grafts = append(last.Grafts, g)
	return nil
}

// Tidy removes empty blocks, moving the grafts of content-less blocks to the
// next block, or the previous one when there is no next.
func (s *Sequence) Tidy(canBeEmpty map[string]bool) {
	var kept []*Block
	var pending []succinct.Item
	for _, b := range s.Blocks {
		if len(b.Items) == 0 && !canBeEmpty[b.Scope.Scope.Label] {
			pending = append(pending, b.Grafts...)
			continue
		}
		if len(pending) > 0 {
			b.Grafts = append(pending, b.Grafts...)
			pending = nil
		}
		kept = append(kept, b)
	}
	if len(pending) > 0 {
		if len(kept) > 0 {
			prev := kept[len(kept)-1]
			prev.Grafts = append(prev.Grafts, pending...)
		} else {
			b := placeholder(BlockHangingGraftPlaceholder)
			b.Grafts = pending
			kept = append(kept, b)
		}
	}
	s.Blocks = kept
}

// Items returns every item referenced by the sequence: block scopes, block
// grafts and content, in block order.
func (s *Sequence) Items() []succinct.Item {
	var items []succinct.Item
	for _, b := range s.Blocks {
		items = append(items, b.Scope)
		items = append(items, b.Grafts...)
		items = append(items, b.Items...)
	}
	return items
}

// GraftTargets returns the ids of the sequences grafted from s.
func (s *Sequence) GraftTargets() []string {
	var ids []string
	for _, it := range s.Items() {
		if it.Kind == succinct.KindGraft {
			ids = append(ids, it.Graft.SeqID)
		}
	}
	return ids
}

func (s *Sequence) String() string {
	return fmt.Sprintf("%s(%s, %d blocks)", s.Type, s.ID, len(s.Blocks))
}

func validateSeqType(seqType string) error {
	if seqType == "" {
		return fmt.Errorf("sequence type: %w", errors.ErrInvalidValue)
	}
	return nil
}
