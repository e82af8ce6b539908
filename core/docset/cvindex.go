package docset

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/FocuswithJustin/juniper-succinct/core/bytearray"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

// Index record types. A record starts with a tag byte holding the type in the
// top two bits, the last-occurrence flag in bit 5 and the record length in
// the low five bits:
//
//	short   tag | startBlock | startItem | endItem | nextToken
//	long    tag | startBlock | startItem | endBlock | endItem | nextToken
//	empty   tag
//
// Short records are used when a span starts and ends in the same block. Empty
// records fill the gaps between verse numbers.
const (
	recordShort = 0
	recordLong  = 1
	recordEmpty = 2

	recordLastFlag = 1 << 5
	recordLenMask  = 0x1F
)

// Range is a span of a sequence's content, from the item at byte offset
// StartItem of block StartBlock through the item at EndItem of block EndBlock.
// NextToken is the number of wordLike tokens in the sequence before the span.
type Range struct {
	StartBlock int `json:"startBlock"`
	StartItem  int `json:"startItem"`
	EndBlock   int `json:"endBlock"`
	EndItem    int `json:"endItem"`
	NextToken  int `json:"nextToken"`
}

func pushRecord(ba *bytearray.ByteArray, r Range, last bool) error {
	scratch := bytearray.New(24)
	if err := scratch.PushByte(0); err != nil {
		return err
	}
	typ := recordLong
	fields := []int{r.StartBlock, r.StartItem, r.EndBlock, r.EndItem, r.NextToken}
	if r.StartBlock == r.EndBlock {
		typ = recordShort
		fields = []int{r.StartBlock, r.StartItem, r.EndItem, r.NextToken}
	}
	for _, v := range fields {
		if err := scratch.PushVarInt(v); err != nil {
			return err
		}
	}
	tag := typ<<6 | scratch.Len()
	if last {
		tag |= recordLastFlag
	}
	if err := scratch.SetByte(0, tag); err != nil {
		return err
	}
	ba.PushBytes(scratch.Data())
	return nil
}

func pushEmptyRecord(ba *bytearray.ByteArray) error {
	return ba.PushByte(recordEmpty<<6 | recordLastFlag | 1)
}

// readRecord decodes the record at pos.
func readRecord(ba *bytearray.ByteArray, pos int) (r Range, last, empty bool, n int, err error) {
	tag, err := ba.Byte(pos)
	if err != nil {
		return r, false, false, 0, err
	}
	typ := int(tag >> 6)
	last = tag&recordLastFlag != 0
	n = int(tag & recordLenMask)
	if n < 1 {
		return r, false, false, 0, fmt.Errorf("index record at %d has length 0: %w", pos, errors.ErrInvalidValue)
	}
	var fields []*int
	switch typ {
	case recordEmpty:
		return r, last, true, n, nil
	case recordShort:
		fields = []*int{&r.StartBlock, &r.StartItem, &r.EndItem, &r.NextToken}
	case recordLong:
		fields = []*int{&r.StartBlock, &r.StartItem, &r.EndBlock, &r.EndItem, &r.NextToken}
	default:
		return r, false, false, 0, fmt.Errorf("index record type %d at %d: %w", typ, pos, errors.ErrInvalidValue)
	}
	p := pos + 1
	for _, f := range fields {
		v, size, err := ba.VarInt(p)
		if err != nil {
			return r, false, false, 0, err
		}
		*f = v
		p += size
	}
	if typ == recordShort {
		r.EndBlock = r.StartBlock
	}
	if p-pos != n {
		return r, false, false, 0, fmt.Errorf("index record at %d: read %d of %d bytes: %w", pos, p-pos, n, errors.ErrInvalidValue)
	}
	return r, last, false, n, nil
}

// decodeChapter reads the single record of a chapter entry.
func decodeChapter(ba *bytearray.ByteArray) (Range, error) {
	r, _, empty, _, err := readRecord(ba, 0)
	if err != nil {
		return r, err
	}
	if empty {
		return r, fmt.Errorf("empty chapter record: %w", errors.ErrInvalidValue)
	}
	return r, nil
}

// decodeVerses reads every verse bucket of a chapter. The slice index is the
// verse number; gaps decode to nil.
func decodeVerses(ba *bytearray.ByteArray) ([][]Range, error) {
	var buckets [][]Range
	var current []Range
	for pos := 0; pos < ba.Len(); {
		r, last, empty, n, err := readRecord(ba, pos)
		if err != nil {
			return nil, err
		}
		if !empty {
			current = append(current, r)
		}
		if last {
			buckets = append(buckets, current)
			current = nil
		}
		pos += n
	}
	return buckets, nil
}

// verseRecords scans the buckets of a chapter up to verse.
func verseRecords(ba *bytearray.ByteArray, verse int) ([]Range, error) {
	bucket := 0
	var current []Range
	for pos := 0; pos < ba.Len(); {
		r, last, empty, n, err := readRecord(ba, pos)
		if err != nil {
			return nil, err
		}
		if bucket == verse && !empty {
			current = append(current, r)
		}
		if last {
			if bucket == verse {
				return current, nil
			}
			bucket++
		}
		pos += n
	}
	return nil, nil
}

// labelNumber returns the number of a chapter or verse label.
func labelNumber(label string) (int, bool) {
	bits := succinct.LabelComponents(label)
	if len(bits) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(bits[1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// buildIndex scans a main sequence for chapter and verse scopes. Verses are
// filed under the most recently started chapter; verses before any chapter
// are not indexed. Spans left open at the end of the sequence close on its
// last item.
func buildIndex(blocks []*Block, coder succinct.Coder) (chapters, chapterVerses map[int]*bytearray.ByteArray, err error) {
	chapterRanges := map[int]*Range{}
	verseRanges := map[int]map[int][]*Range{}
	openChapters := map[int]*Range{}
	openVerses := map[string]*Range{}
	current := -1
	lastBlock, lastItem := 0, 0

	for bi, b := range blocks {
		words := b.NextToken
		err := succinct.Walk(b.C, coder, func(pos int, it succinct.Item) bool {
			lastBlock, lastItem = bi, pos
			switch it.Kind {
			case succinct.KindToken:
				if it.IsWordLike() {
					words++
				}
			case succinct.KindStartScope:
				n, ok := labelNumber(it.Scope.Label)
				if !ok {
					return true
				}
				r := &Range{StartBlock: bi, StartItem: pos, EndBlock: bi, EndItem: pos, NextToken: words}
				switch it.ScopeKindName() {
				case "chapter":
					if _, dup := chapterRanges[n]; !dup {
						chapterRanges[n] = r
						openChapters[n] = r
					}
					current = n
				case "verse":
					if current < 0 {
						return true
					}
					if verseRanges[current] == nil {
						verseRanges[current] = map[int][]*Range{}
					}
					verseRanges[current][n] = append(verseRanges[current][n], r)
					openVerses[it.Scope.Label] = r
				}
			case succinct.KindEndScope:
				n, ok := labelNumber(it.Scope.Label)
				if !ok {
					return true
				}
				switch it.ScopeKindName() {
				case "chapter":
					if r := openChapters[n]; r != nil {
						r.EndBlock, r.EndItem = bi, pos
						delete(openChapters, n)
					}
				case "verse":
					if r := openVerses[it.Scope.Label]; r != nil {
						r.EndBlock, r.EndItem = bi, pos
						delete(openVerses, it.Scope.Label)
					}
				}
			}
			return true
		})
		if err != nil {
			return nil, nil, fmt.Errorf("indexing block %d: %w", bi, err)
		}
	}
	for _, r := range openChapters {
		r.EndBlock, r.EndItem = lastBlock, lastItem
	}
	for _, r := range openVerses {
		r.EndBlock, r.EndItem = lastBlock, lastItem
	}

	chapters = make(map[int]*bytearray.ByteArray, len(chapterRanges))
	for n, r := range chapterRanges {
		ba := bytearray.New(24)
		if err := pushRecord(ba, *r, true); err != nil {
			return nil, nil, err
		}
		ba.Trim()
		chapters[n] = ba
	}

	chapterVerses = make(map[int]*bytearray.ByteArray, len(verseRanges))
	for ch, verses := range verseRanges {
		maxVerse := 0
		for v := range verses {
			if v > maxVerse {
				maxVerse = v
			}
		}
		ba := bytearray.New(8 * (maxVerse + 1))
		for v := 0; v <= maxVerse; v++ {
			occurrences := verses[v]
			if len(occurrences) == 0 {
				if err := pushEmptyRecord(ba); err != nil {
					return nil, nil, err
				}
				continue
			}
			for i, r := range occurrences {
				if err := pushRecord(ba, *r, i == len(occurrences)-1); err != nil {
					return nil, nil, err
				}
			}
		}
		ba.Trim()
		chapterVerses[ch] = ba
	}
	return chapters, chapterVerses, nil
}

// BuildIndex rebuilds the chapter/verse index of a main sequence. Other
// sequences are left unindexed.
func (s *Sequence) BuildIndex(coder succinct.Coder) error {
	if !s.IsMain() {
		return nil
	}
	chapters, chapterVerses, err := buildIndex(s.Blocks, coder)
	if err != nil {
		return fmt.Errorf("sequence %s: %w", s.ID, err)
	}
	s.Chapters, s.ChapterVerses, s.indexed = chapters, chapterVerses, true
	return nil
}

func (s *Sequence) checkIndex() error {
	if !s.indexed {
		return fmt.Errorf("sequence %s: %w", s.ID, errors.ErrIndexNotBuilt)
	}
	return nil
}

// ChapterNumbers returns the indexed chapter numbers in order.
func (s *Sequence) ChapterNumbers() ([]int, error) {
	if err := s.checkIndex(); err != nil {
		return nil, err
	}
	out := make([]int, 0, len(s.Chapters))
	for n := range s.Chapters {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// ChapterRange returns the span of chapter ch. The boolean is false when the
// chapter is not indexed.
func (s *Sequence) ChapterRange(ch int) (Range, bool, error) {
	if err := s.checkIndex(); err != nil {
		return Range{}, false, err
	}
	ba, ok := s.Chapters[ch]
	if !ok {
		return Range{}, false, nil
	}
	r, err := decodeChapter(ba)
	if err != nil {
		return Range{}, false, fmt.Errorf("chapter %d: %w", ch, err)
	}
	return r, true, nil
}

// VerseRanges returns every occurrence of verse v in chapter ch, in document order.
func (s *Sequence) VerseRanges(ch, v int) ([]Range, error) {
	if err := s.checkIndex(); err != nil {
		return nil, err
	}
	ba, ok := s.ChapterVerses[ch]
	if !ok {
		return nil, nil
	}
	rs, err := verseRecords(ba, v)
	if err != nil {
		return nil, fmt.Errorf("chapter %d verse %d: %w", ch, v, err)
	}
	return rs, nil
}

// ChapterVerseRanges returns the occurrences of every verse of chapter ch,
// indexed by verse number.
func (s *Sequence) ChapterVerseRanges(ch int) ([][]Range, error) {
	if err := s.checkIndex(); err != nil {
		return nil, err
	}
	ba, ok := s.ChapterVerses[ch]
	if !ok {
		return nil, nil
	}
	buckets, err := decodeVerses(ba)
	if err != nil {
		return nil, fmt.Errorf("chapter %d: %w", ch, err)
	}
	return buckets, nil
}

// RangeItems returns the content items covered by r.
func (s *Sequence) RangeItems(r Range, coder succinct.Coder, filter Filter) ([]succinct.Item, error) {
	if r.StartBlock < 0 || r.EndBlock >= len(s.Blocks) || r.StartBlock > r.EndBlock {
		return nil, fmt.Errorf("range blocks %d-%d of %d: %w", r.StartBlock, r.EndBlock, len(s.Blocks), errors.ErrOutOfRange)
	}
	var items []succinct.Item
	for bi := r.StartBlock; bi <= r.EndBlock; bi++ {
		err := succinct.Walk(s.Blocks[bi].C, coder, func(pos int, it succinct.Item) bool {
			if bi == r.StartBlock && pos < r.StartItem {
				return true
			}
			if bi == r.EndBlock && pos > r.EndItem {
				return false
			}
			if filter.includes(it.Kind) {
				items = append(items, it)
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", bi, err)
		}
	}
	return items, nil
}
