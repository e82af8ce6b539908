package parser

import (
	"strings"

	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

// numberGrafts maps the graft type of a number sequence to the scope kind
// whose number it replaces.
var numberGrafts = map[string]string{
	"pubChapter": "chapter",
	"altChapter": "chapter",
	"pubVerse":   "verse",
	"altVerse":   "verse",
}

// ResolveNumbers substitutes number grafts. A published or alternate number
// arrives as a number sequence grafted inline just after the chapter or
// verse scope it qualifies. The graft becomes a start scope labelled with the
// graft type and the sequence text, e.g. pubVerse/2b, whose end is placed
// just before the end of the qualified scope. Number sequences are then
// removed. A number with no text, or with no qualified scope open, is
// dropped.
func (p *Parser) ResolveNumbers() error {
	resolved := map[string]bool{}
	for _, s := range p.Sequences() {
		if s.Type == SeqNumber {
			continue
		}
		for bi, b := range s.Blocks {
			for ii := 0; ii < len(b.Items); ii++ {
				it := b.Items[ii]
				if it.Kind != succinct.KindGraft {
					continue
				}
				kind, ok := numberGrafts[it.Graft.Type]
				target, found := p.sequences[it.Graft.SeqID]
				if !ok || !found || target.Type != SeqNumber {
					continue
				}
				resolved[target.ID] = true

				value := numberText(target)
				anchor, open := s.openScope(kind, bi, ii)
				if value == "" || !open {
					b.Items = append(b.Items[:ii], b.Items[ii+1:]...)
					ii--
					continue
				}
				label := it.Graft.Type + "/" + value
				start := succinct.StartScope(label)
				if err := succinct.ValidateItem(start); err != nil {
					return err
				}
				b.Items[ii] = start
				s.endBefore(anchor, succinct.EndScope(label), bi, ii+1)
			}
		}
	}
	if len(resolved) == 0 {
		return nil
	}

	order := p.order[:0]
	for _, id := range p.order {
		if resolved[id] {
			delete(p.sequences, id)
			continue
		}
		order = append(order, id)
	}
	p.order = order
	return nil
}

// numberText joins the token text of a number sequence into one label
// component.
func numberText(s *Sequence) string {
	var sb strings.Builder
	for _, b := range s.Blocks {
		for _, it := range b.Items {
			if it.Kind == succinct.KindToken {
				sb.WriteString(it.Token.Text)
			}
		}
	}
	text := strings.Join(strings.Fields(sb.String()), " ")
	return strings.ReplaceAll(text, "/", "_")
}

// openScope finds the innermost scope of the given kind open before item ii
// of block bi and returns its label.
func (s *Sequence) openScope(kind string, bi, ii int) (string, bool) {
	for b := bi; b >= 0; b-- {
		items := s.Blocks[b].Items
		last := len(items) - 1
		if b == bi {
			last = ii - 1
		}
		for i := last; i >= 0; i-- {
			it := items[i]
			if !it.Kind.IsScope() || it.ScopeKindName() != kind {
				continue
			}
			if it.Kind == succinct.KindEndScope {
				return "", false
			}
			return it.Scope.Label, true
		}
	}
	return "", false
}

func isNumberEnd(it succinct.Item) bool {
	_, ok := numberGrafts[it.ScopeKindName()]
	return it.Kind == succinct.KindEndScope && ok
}

// endBefore inserts end just before the end of the scope labelled anchor,
// searching from item from of block bi. Without a matching end, end closes
// the last block.
func (s *Sequence) endBefore(anchor string, end succinct.Item, bi, from int) {
	for b := bi; b < len(s.Blocks); b++ {
		blk := s.Blocks[b]
		start := 0
		if b == bi {
			start = from
		}
		for i := start; i < len(blk.Items); i++ {
			it := blk.Items[i]
			if it.Kind != succinct.KindEndScope || it.Scope.Label != anchor {
				continue
			}
			// Ends of numbers opened earlier stay outside this one.
			for i > start && isNumberEnd(blk.Items[i-1]) {
				i--
			}
			blk.Items = append(blk.Items[:i], append([]succinct.Item{end}, blk.Items[i:]...)...)
			return
		}
	}
	last := s.Blocks[len(s.Blocks)-1]
	last.Items = append(last.Items, end)
}
