package docset

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/juniper-succinct/core/bytearray"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/parser"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

var errInvalidBlock = fmt.Errorf("malformed block: %w", errors.ErrInvalidValue)

// Sequence is an encoded, ordered list of blocks.
type Sequence struct {
	ID     string
	Type   string
	Tags   []string
	Blocks []*Block

	// Chapters and ChapterVerses hold the encoded chapter/verse index of a
	// main sequence, keyed by chapter number.
	Chapters      map[int]*bytearray.ByteArray
	ChapterVerses map[int]*bytearray.ByteArray
	indexed       bool
}

// IsMain reports whether s is a main sequence.
func (s *Sequence) IsMain() bool {
	return s.Type == parser.SeqMain
}

// Indexed reports whether the chapter/verse index is current.
func (s *Sequence) Indexed() bool {
	return s.indexed
}

// Block returns block n.
func (s *Sequence) Block(n int) (*Block, error) {
	if n < 0 || n >= len(s.Blocks) {
		return nil, fmt.Errorf("block %d of %d in sequence %s: %w", n, len(s.Blocks), s.ID, errors.ErrOutOfRange)
	}
	return s.Blocks[n], nil
}

// HasTag reports whether the sequence carries tag.
func (s *Sequence) HasTag(tag string) bool {
	return hasTag(s.Tags, tag)
}

// clearIndex drops the chapter/verse index after a structural change.
func (s *Sequence) clearIndex() {
	s.Chapters = nil
	s.ChapterVerses = nil
	s.indexed = false
}

// encodeSequence converts a parsed sequence into blocks, tracking the scopes
// open at each block boundary and the running word count.
func encodeSequence(ps *parser.Sequence, coder succinct.Coder) (*Sequence, error) {
	seq := &Sequence{ID: ps.ID, Type: ps.Type, Tags: sortedTags(ps.Tags)}
	var open []succinct.Item
	nextToken := 0
	for i, pb := range ps.Blocks {
		b, err := encodeBlock(blockParts{
			scope:     pb.Scope,
			grafts:    pb.Grafts,
			items:     pb.Items,
			open:      open,
			nextToken: nextToken,
		}, coder)
		if err != nil {
			return nil, fmt.Errorf("sequence %s block %d: %w", ps.ID, i, err)
		}
		seq.Blocks = append(seq.Blocks, b)
		open = updateOpenScopes(open, pb.Items)
		nextToken += countWordLike(pb.Items)
	}
	return seq, nil
}

// derivedStreams recomputes the open scopes and word counts of blocks. It
// returns replacement blocks sharing the unchanged streams and leaves blocks
// untouched.
func derivedStreams(blocks []*Block, coder succinct.Coder) ([]*Block, error) {
	out := make([]*Block, len(blocks))
	var open []succinct.Item
	nextToken := 0
	for i, b := range blocks {
		items, err := succinct.DecodeItems(b.C, coder)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		os, err := succinct.EncodeItems(open, coder)
		if err != nil {
			return nil, fmt.Errorf("block %d open scopes: %w", i, err)
		}
		out[i] = &Block{BS: b.BS, BG: b.BG, C: b.C, OS: os, IS: b.IS, NextToken: nextToken}
		open = updateOpenScopes(open, items)
		nextToken += countWordLike(items)
	}
	return out, nil
}

// GraftTargets returns the ids of the sequences grafted from s, from block
// grafts and content alike.
func (s *Sequence) GraftTargets(coder succinct.Coder) ([]string, error) {
	var ids []string
	collect := func(_ int, it succinct.Item) bool {
		if it.Kind == succinct.KindGraft {
			ids = append(ids, it.Graft.SeqID)
		}
		return true
	}
	for i, b := range s.Blocks {
		if err := succinct.Walk(b.BG, coder, collect); err != nil {
			return nil, fmt.Errorf("sequence %s block %d: %w", s.ID, i, err)
		}
		if err := succinct.Walk(b.C, coder, collect); err != nil {
			return nil, fmt.Errorf("sequence %s block %d: %w", s.ID, i, err)
		}
	}
	return ids, nil
}

// Text concatenates the token text of the sequence, one line per block.
func (s *Sequence) Text(coder succinct.Coder) (string, error) {
	var out []byte
	for i, b := range s.Blocks {
		if i > 0 {
			out = append(out, '\n')
		}
		err := succinct.Walk(b.C, coder, func(_ int, it succinct.Item) bool {
			if it.Kind == succinct.KindToken {
				out = append(out, it.Token.Text...)
			}
			return true
		})
		if err != nil {
			return "", fmt.Errorf("sequence %s block %d: %w", s.ID, i, err)
		}
	}
	return string(out), nil
}

func sortedTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func hasTag(tags []string, tag string) bool {
	i := sort.SearchStrings(tags, tag)
	return i < len(tags) && tags[i] == tag
}
