package docset

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/juniper-succinct/core/bytearray"
	"github.com/FocuswithJustin/juniper-succinct/core/ref"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

// RangesForReference resolves a reference against the main sequence index.
// A single verse yields one range per occurrence of the verse. Ranges of
// chapters or verses yield one range from the first start to the last end.
// Chapters and verses absent from the index are skipped; a reference
// matching nothing yields no ranges.
func (d *Document) RangesForReference(r ref.Ref) ([]Range, error) {
	main := d.Main()
	if err := main.checkIndex(); err != nil {
		return nil, err
	}
	if !r.Verses {
		var found []Range
		for _, ch := range chaptersBetween(main.Chapters, r.FromChapter, r.ToChapter) {
			cr, ok, err := main.ChapterRange(ch)
			if err != nil {
				return nil, err
			}
			if ok {
				found = append(found, cr)
			}
		}
		return spanOf(found), nil
	}

	if !r.IsRange() {
		return main.VerseRanges(r.FromChapter, r.FromVerse)
	}

	var found []Range
	for _, ch := range chaptersBetween(main.ChapterVerses, r.FromChapter, r.ToChapter) {
		buckets, err := main.ChapterVerseRanges(ch)
		if err != nil {
			return nil, err
		}
		for v, occurrences := range buckets {
			if r.Contains(ch, v) {
				found = append(found, occurrences...)
			}
		}
	}
	return spanOf(found), nil
}

// chaptersBetween returns the indexed chapter numbers in from..to, in order.
func chaptersBetween(index map[int]*bytearray.ByteArray, from, to int) []int {
	var out []int
	for ch := range index {
		if ch >= from && ch <= to {
			out = append(out, ch)
		}
	}
	sort.Ints(out)
	return out
}

// spanOf merges ranges into one running from the earliest start to the latest end.
func spanOf(rs []Range) []Range {
	if len(rs) == 0 {
		return nil
	}
	span := rs[0]
	for _, r := range rs[1:] {
		if r.StartBlock < span.StartBlock || (r.StartBlock == span.StartBlock && r.StartItem < span.StartItem) {
			span.StartBlock, span.StartItem, span.NextToken = r.StartBlock, r.StartItem, r.NextToken
		}
		if r.EndBlock > span.EndBlock || (r.EndBlock == span.EndBlock && r.EndItem > span.EndItem) {
			span.EndBlock, span.EndItem = r.EndBlock, r.EndItem
		}
	}
	return []Range{span}
}

// ItemsForReference returns the main sequence items covered by a reference
// such as "3", "3-5", "3:16", "3:16-18" or "3:16-4:2".
func (d *Document) ItemsForReference(reference string, filter Filter) ([]succinct.Item, error) {
	r, err := ref.Parse(reference)
	if err != nil {
		return nil, err
	}
	ranges, err := d.RangesForReference(r)
	if err != nil {
		return nil, err
	}
	var items []succinct.Item
	for _, rg := range ranges {
		got, err := d.Main().RangeItems(rg, d.coder(), filter)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r, err)
		}
		items = append(items, got...)
	}
	return items, nil
}

// BlocksForReference returns the indexes of the main sequence blocks touched
// by a reference, in order.
func (d *Document) BlocksForReference(reference string) ([]int, error) {
	r, err := ref.Parse(reference)
	if err != nil {
		return nil, err
	}
	ranges, err := d.RangesForReference(r)
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var blocks []int
	for _, rg := range ranges {
		for b := rg.StartBlock; b <= rg.EndBlock; b++ {
			if !seen[b] {
				seen[b] = true
				blocks = append(blocks, b)
			}
		}
	}
	sort.Ints(blocks)
	return blocks, nil
}

// TextForReference concatenates the token text covered by a reference.
func (d *Document) TextForReference(reference string) (string, error) {
	items, err := d.ItemsForReference(reference, Filter{Tokens: true})
	if err != nil {
		return "", err
	}
	var out []byte
	for _, it := range items {
		out = append(out, it.Token.Text...)
	}
	return string(out), nil
}
