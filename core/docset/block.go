package docset

import (
	"fmt"

	"github.com/FocuswithJustin/juniper-succinct/core/bytearray"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

// Block is the unit of storage: five parallel encoded streams and the running
// word count at the start of the block.
type Block struct {
	// BS holds the block's own scope, exactly one start-scope item.
	BS *bytearray.ByteArray
	// BG holds the grafts hung off the block.
	BG *bytearray.ByteArray
	// C holds the block content in order.
	C *bytearray.ByteArray
	// OS holds the scopes already open when the block begins.
	OS *bytearray.ByteArray
	// IS holds the scopes that start within the block.
	IS *bytearray.ByteArray
	// NextToken is the number of wordLike tokens in the sequence before this block.
	NextToken int
}

// Filter selects item kinds. The zero Filter selects everything.
type Filter struct {
	Tokens bool
	Scopes bool
	Grafts bool
}

func (f Filter) includes(k succinct.Kind) bool {
	if !f.Tokens && !f.Scopes && !f.Grafts {
		return true
	}
	switch k {
	case succinct.KindToken:
		return f.Tokens
	case succinct.KindStartScope, succinct.KindEndScope:
		return f.Scopes
	case succinct.KindGraft:
		return f.Grafts
	}
	return false
}

// blockParts is a decoded block.
type blockParts struct {
	scope     succinct.Item
	grafts    []succinct.Item
	items     []succinct.Item
	open      []succinct.Item
	nextToken int
}

// encodeBlock encodes the streams of one block. The included scopes are
// derived from items.
func encodeBlock(parts blockParts, coder succinct.Coder) (*Block, error) {
	bs, err := succinct.EncodeItems([]succinct.Item{parts.scope}, coder)
	if err != nil {
		return nil, fmt.Errorf("block scope: %w", err)
	}
	bg, err := succinct.EncodeItems(parts.grafts, coder)
	if err != nil {
		return nil, fmt.Errorf("block grafts: %w", err)
	}
	c, err := succinct.EncodeItems(parts.items, coder)
	if err != nil {
		return nil, fmt.Errorf("block content: %w", err)
	}
	os, err := succinct.EncodeItems(parts.open, coder)
	if err != nil {
		return nil, fmt.Errorf("open scopes: %w", err)
	}
	is, err := succinct.EncodeItems(includedScopes(parts.items), coder)
	if err != nil {
		return nil, fmt.Errorf("included scopes: %w", err)
	}
	return &Block{BS: bs, BG: bg, C: c, OS: os, IS: is, NextToken: parts.nextToken}, nil
}

// decode reads every stream of the block.
func (b *Block) decode(coder succinct.Coder) (blockParts, error) {
	var parts blockParts
	scope, err := succinct.DecodeItems(b.BS, coder)
	if err != nil {
		return parts, fmt.Errorf("block scope: %w", err)
	}
	if len(scope) != 1 || scope[0].Kind != succinct.KindStartScope {
		return parts, fmt.Errorf("block scope holds %d items: %w", len(scope), errInvalidBlock)
	}
	parts.scope = scope[0]
	if parts.grafts, err = succinct.DecodeItems(b.BG, coder); err != nil {
		return parts, fmt.Errorf("block grafts: %w", err)
	}
	if parts.items, err = succinct.DecodeItems(b.C, coder); err != nil {
		return parts, fmt.Errorf("block content: %w", err)
	}
	if parts.open, err = succinct.DecodeItems(b.OS, coder); err != nil {
		return parts, fmt.Errorf("open scopes: %w", err)
	}
	parts.nextToken = b.NextToken
	return parts, nil
}

// Scope decodes the block scope.
func (b *Block) Scope(coder succinct.Coder) (succinct.Item, error) {
	it, _, err := succinct.DecodeItem(b.BS, 0, coder)
	return it, err
}

// Grafts decodes the block grafts.
func (b *Block) Grafts(coder succinct.Coder) ([]succinct.Item, error) {
	return succinct.DecodeItems(b.BG, coder)
}

// OpenScopes decodes the scopes open at the start of the block.
func (b *Block) OpenScopes(coder succinct.Coder) ([]succinct.Item, error) {
	return succinct.DecodeItems(b.OS, coder)
}

// IncludedScopes decodes the scopes starting within the block.
func (b *Block) IncludedScopes(coder succinct.Coder) ([]succinct.Item, error) {
	return succinct.DecodeItems(b.IS, coder)
}

// Items decodes the block content, keeping the kinds selected by filter.
func (b *Block) Items(coder succinct.Coder, filter Filter) ([]succinct.Item, error) {
	var items []succinct.Item
	err := succinct.Walk(b.C, coder, func(_ int, it succinct.Item) bool {
		if filter.includes(it.Kind) {
			items = append(items, it)
		}
		return true
	})
	return items, err
}

// ItemsWithScopes returns the content items at which all (or, with anyScope,
// at least one) of the required scope labels are open. The block scope and
// the scopes open at block start count as open. A start scope is open at its
// own position and an end scope is still open at its own position.
func (b *Block) ItemsWithScopes(coder succinct.Coder, required []string, anyScope bool) ([]succinct.Item, error) {
	open := map[string]int{}
	scope, err := b.Scope(coder)
	if err != nil {
		return nil, err
	}
	open[scope.Scope.Label]++
	os, err := b.OpenScopes(coder)
	if err != nil {
		return nil, err
	}
	for _, it := range os {
		open[it.Scope.Label]++
	}

	matches := func() bool {
		if len(required) == 0 {
			return true
		}
		n := 0
		for _, label := range required {
			if open[label] > 0 {
				n++
			}
		}
		if anyScope {
			return n > 0
		}
		return n == len(required)
	}

	var items []succinct.Item
	err = succinct.Walk(b.C, coder, func(_ int, it succinct.Item) bool {
		if it.Kind == succinct.KindStartScope {
			open[it.Scope.Label]++
		}
		if matches() {
			items = append(items, it)
		}
		if it.Kind == succinct.KindEndScope && open[it.Scope.Label] > 0 {
			open[it.Scope.Label]--
		}
		return true
	})
	return items, err
}

// WordCount returns the number of wordLike tokens in the block content.
func (b *Block) WordCount(coder succinct.Coder) (int, error) {
	n := 0
	err := succinct.Walk(b.C, coder, func(_ int, it succinct.Item) bool {
		if it.IsWordLike() {
			n++
		}
		return true
	})
	return n, err
}

// Size returns the total encoded size of the block streams.
func (b *Block) Size() int {
	return b.BS.Len() + b.BG.Len() + b.C.Len() + b.OS.Len() + b.IS.Len()
}

func includedScopes(items []succinct.Item) []succinct.Item {
	var out []succinct.Item
	for _, it := range items {
		if it.Kind == succinct.KindStartScope {
			out = append(out, it)
		}
	}
	return out
}

// updateOpenScopes applies the scope boundaries of items to open. An end scope
// closes the most recent open scope with the same label.
func updateOpenScopes(open []succinct.Item, items []succinct.Item) []succinct.Item {
	for _, it := range items {
		switch it.Kind {
		case succinct.KindStartScope:
			open = append(open, it)
		case succinct.KindEndScope:
			for i := len(open) - 1; i >= 0; i-- {
				if open[i].Scope.Label == it.Scope.Label {
					open = append(open[:i:i], open[i+1:]...)
					break
				}
			}
		}
	}
	return open
}

func countWordLike(items []succinct.Item) int {
	n := 0
	for _, it := range items {
		if it.IsWordLike() {
			n++
		}
	}
	return n
}
