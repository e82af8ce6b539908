package docset

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9]+(:.*)?$`)

// ValidateTag checks a document or sequence tag: an alphanumeric name,
// optionally followed by ":" and a value.
func ValidateTag(tag string) error {
	if !tagPattern.MatchString(tag) {
		return &errors.ValidationError{Field: "tag", Value: tag, Message: "must match " + tagPattern.String(), Err: errors.ErrInvalidValue}
	}
	return nil
}

// Document is one book of a docset: headers, tags and its sequences. Its
// streams are encoded against the enums of the owning docset.
type Document struct {
	ID        string
	Headers   map[string]string
	MainID    string
	Tags      []string
	Sequences map[string]*Sequence

	docSet *DocSet
}

// DocSet returns the owning docset.
func (d *Document) DocSet() *DocSet {
	return d.docSet
}

// BookCode returns the "id" header.
func (d *Document) BookCode() string {
	return d.Headers["id"]
}

// Main returns the main sequence.
func (d *Document) Main() *Sequence {
	return d.Sequences[d.MainID]
}

// Sequence returns the sequence with the given id.
func (d *Document) Sequence(id string) (*Sequence, error) {
	s, ok := d.Sequences[id]
	if !ok {
		return nil, errors.NewNotFound("sequence", id)
	}
	return s, nil
}

// SequenceIDs returns the sequence ids, main first and the rest sorted.
func (d *Document) SequenceIDs() []string {
	return sequenceIDs(d.MainID, d.Sequences)
}

func sequenceIDs(mainID string, seqs map[string]*Sequence) []string {
	ids := make([]string, 0, len(seqs))
	for id := range seqs {
		if id != mainID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return append([]string{mainID}, ids...)
}

// HasTag reports whether the document carries tag.
func (d *Document) HasTag(tag string) bool {
	return hasTag(d.Tags, tag)
}

// AddTags adds tags to the document.
func (d *Document) AddTags(tags ...string) error {
	next, err := addTags(d.Tags, tags)
	if err != nil {
		return err
	}
	d.Tags = next
	return nil
}

// RemoveTags removes tags from the document. Absent tags are ignored.
func (d *Document) RemoveTags(tags ...string) {
	d.Tags = removeTags(d.Tags, tags)
}

// AddSequenceTags adds tags to a sequence.
func (d *Document) AddSequenceTags(seqID string, tags ...string) error {
	s, err := d.Sequence(seqID)
	if err != nil {
		return err
	}
	next, err := addTags(s.Tags, tags)
	if err != nil {
		return err
	}
	s.Tags = next
	return nil
}

// RemoveSequenceTags removes tags from a sequence.
func (d *Document) RemoveSequenceTags(seqID string, tags ...string) error {
	s, err := d.Sequence(seqID)
	if err != nil {
		return err
	}
	s.Tags = removeTags(s.Tags, tags)
	return nil
}

func addTags(current, tags []string) ([]string, error) {
	for _, t := range tags {
		if err := ValidateTag(t); err != nil {
			return nil, err
		}
	}
	return sortedTags(append(append([]string(nil), current...), tags...)), nil
}

func removeTags(current, tags []string) []string {
	drop := map[string]bool{}
	for _, t := range tags {
		drop[t] = true
	}
	var out []string
	for _, t := range current {
		if !drop[t] {
			out = append(out, t)
		}
	}
	return out
}

func (d *Document) coder() succinct.Coder {
	return d.docSet.enums
}

// BlockItems decodes the content of block n of a sequence.
func (d *Document) BlockItems(seqID string, n int, filter Filter) ([]succinct.Item, error) {
	b, err := d.block(seqID, n)
	if err != nil {
		return nil, err
	}
	return b.Items(d.coder(), filter)
}

// BlockItemsWithScopes decodes the items of block n at which the required
// scopes are open.
func (d *Document) BlockItemsWithScopes(seqID string, n int, required []string, anyScope bool) ([]succinct.Item, error) {
	b, err := d.block(seqID, n)
	if err != nil {
		return nil, err
	}
	return b.ItemsWithScopes(d.coder(), required, anyScope)
}

func (d *Document) block(seqID string, n int) (*Block, error) {
	s, err := d.Sequence(seqID)
	if err != nil {
		return nil, err
	}
	return s.Block(n)
}

// BuildChapterVerseIndex rebuilds the chapter/verse index of the main sequence.
func (d *Document) BuildChapterVerseIndex() error {
	return d.Main().BuildIndex(d.coder())
}

// Text returns the token text of a sequence.
func (d *Document) Text(seqID string) (string, error) {
	s, err := d.Sequence(seqID)
	if err != nil {
		return "", err
	}
	return s.Text(d.coder())
}

// BlockSpec describes new contents for a block. A nil field leaves that part
// of the block unchanged; an empty, non-nil slice clears it.
type BlockSpec struct {
	BlockScope  *succinct.Item
	BlockGrafts []succinct.Item
	Items       []succinct.Item
}

func (spec BlockSpec) items() []succinct.Item {
	var all []succinct.Item
	if spec.BlockScope != nil {
		all = append(all, *spec.BlockScope)
	}
	all = append(all, spec.BlockGrafts...)
	return append(all, spec.Items...)
}

func (spec BlockSpec) validate() error {
	if spec.BlockScope != nil && spec.BlockScope.Kind != succinct.KindStartScope {
		return &errors.ValidationError{Field: "blockScope", Value: spec.BlockScope.String(), Message: "must be a start scope", Err: errors.ErrInvalidValue}
	}
	for _, g := range spec.BlockGrafts {
		if g.Kind != succinct.KindGraft {
			return &errors.ValidationError{Field: "blockGrafts", Value: g.String(), Message: "must be a graft", Err: errors.ErrInvalidValue}
		}
	}
	for _, it := range spec.items() {
		if err := succinct.ValidateItem(it); err != nil {
			return err
		}
	}
	return nil
}

// stage records values into a copy of the docset enums and returns it. The
// live enums are untouched until the caller commits.
func (d *Document) stage(items []succinct.Item) (*enumsStage, error) {
	return d.docSet.stage(func(r succinct.Recorder) error {
		for _, it := range items {
			if err := succinct.RecordItem(r, it); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceBlock replaces parts of block n of a sequence. Either every stream
// of the block is rewritten or, on error, nothing changes. The chapter/verse
// index of the sequence is cleared.
func (d *Document) ReplaceBlock(seqID string, n int, spec BlockSpec) error {
	s, err := d.Sequence(seqID)
	if err != nil {
		return err
	}
	old, err := s.Block(n)
	if err != nil {
		return err
	}
	if err := spec.validate(); err != nil {
		return err
	}
	parts, err := old.decode(d.coder())
	if err != nil {
		return err
	}
	if spec.BlockScope != nil {
		parts.scope = *spec.BlockScope
	}
	if spec.BlockGrafts != nil {
		parts.grafts = spec.BlockGrafts
	}
	if spec.Items != nil {
		parts.items = spec.Items
	}

	st, err := d.stage(spec.items())
	if err != nil {
		return err
	}
	b, err := encodeBlock(parts, st.enums)
	if err != nil {
		return err
	}
	blocks := append([]*Block(nil), s.Blocks...)
	blocks[n] = b
	blocks, err = derivedStreams(blocks, st.enums)
	if err != nil {
		return err
	}
	st.commit()
	s.Blocks = blocks
	s.clearIndex()
	return nil
}

// InsertBlock inserts an empty block with the given block scope before
// block n. n may equal the block count to append.
func (d *Document) InsertBlock(seqID string, n int, blockScope string) error {
	s, err := d.Sequence(seqID)
	if err != nil {
		return err
	}
	if n < 0 || n > len(s.Blocks) {
		return fmt.Errorf("insert at %d of %d blocks: %w", n, len(s.Blocks), errors.ErrOutOfRange)
	}
	scope := succinct.StartScope(blockScope)
	if err := succinct.ValidateItem(scope); err != nil {
		return err
	}
	st, err := d.stage([]succinct.Item{scope})
	if err != nil {
		return err
	}
	b, err := encodeBlock(blockParts{scope: scope}, st.enums)
	if err != nil {
		return err
	}
	blocks := make([]*Block, 0, len(s.Blocks)+1)
	blocks = append(blocks, s.Blocks[:n]...)
	blocks = append(blocks, b)
	blocks = append(blocks, s.Blocks[n:]...)
	blocks, err = derivedStreams(blocks, st.enums)
	if err != nil {
		return err
	}
	st.commit()
	s.Blocks = blocks
	s.clearIndex()
	return nil
}

// DeleteBlock removes block n of a sequence.
func (d *Document) DeleteBlock(seqID string, n int) error {
	s, err := d.Sequence(seqID)
	if err != nil {
		return err
	}
	if _, err := s.Block(n); err != nil {
		return err
	}
	blocks := make([]*Block, 0, len(s.Blocks)-1)
	blocks = append(blocks, s.Blocks[:n]...)
	blocks = append(blocks, s.Blocks[n+1:]...)
	blocks, err = derivedStreams(blocks, d.coder())
	if err != nil {
		return err
	}
	s.Blocks = blocks
	s.clearIndex()
	return nil
}

// DeleteSequence removes a non-main sequence and every graft pointing at it,
// then rehashes the docset.
func (d *Document) DeleteSequence(seqID string) error {
	if seqID == d.MainID {
		return &errors.ValidationError{Field: "sequence", Value: seqID, Message: "the main sequence cannot be deleted"}
	}
	if _, err := d.Sequence(seqID); err != nil {
		return err
	}
	return d.dropSequences(map[string]bool{seqID: true})
}

// GCSequences deletes every sequence not reachable from the main sequence
// through grafts and returns how many were removed. The docset is rehashed
// when anything was removed.
func (d *Document) GCSequences() (int, error) {
	reachable := map[string]bool{d.MainID: true}
	queue := []string{d.MainID}
	for len(queue) > 0 {
		s := d.Sequences[queue[0]]
		queue = queue[1:]
		targets, err := s.GraftTargets(d.coder())
		if err != nil {
			return 0, err
		}
		for _, id := range targets {
			if _, ok := d.Sequences[id]; ok && !reachable[id] {
				reachable[id] = true
				queue = append(queue, id)
			}
		}
	}
	unreachable := map[string]bool{}
	for id := range d.Sequences {
		if !reachable[id] {
			unreachable[id] = true
		}
	}
	if len(unreachable) == 0 {
		return 0, nil
	}
	if err := d.dropSequences(unreachable); err != nil {
		return 0, err
	}
	return len(unreachable), nil
}

// dropSequences removes the given sequences, strips grafts to them from the
// remaining ones and rehashes the docset. The document is left untouched
// unless every step succeeds.
func (d *Document) dropSequences(drop map[string]bool) error {
	coder := d.coder()
	kept := make(map[string]*Sequence, len(d.Sequences))
	for id, s := range d.Sequences {
		if drop[id] {
			continue
		}
		changed := false
		blocks := make([]*Block, len(s.Blocks))
		for i, b := range s.Blocks {
			parts, err := b.decode(coder)
			if err != nil {
				return fmt.Errorf("sequence %s block %d: %w", id, i, err)
			}
			grafts := withoutGraftsTo(parts.grafts, drop)
			items := withoutGraftsTo(parts.items, drop)
			if len(grafts) == len(parts.grafts) && len(items) == len(parts.items) {
				blocks[i] = b
				continue
			}
			changed = true
			parts.grafts, parts.items = grafts, items
			nb, err := encodeBlock(parts, coder)
			if err != nil {
				return fmt.Errorf("sequence %s block %d: %w", id, i, err)
			}
			blocks[i] = nb
		}
		if changed {
			cp := *s
			cp.Blocks = blocks
			s = &cp
		}
		kept[id] = s
	}

	var views []docView
	for _, other := range d.docSet.Documents() {
		seqs := other.Sequences
		if other == d {
			seqs = kept
		}
		views = append(views, docView{doc: other, seqs: seqs})
	}
	commit, err := d.docSet.planRehash(views)
	if err != nil {
		return err
	}
	commit()
	return nil
}

func withoutGraftsTo(items []succinct.Item, drop map[string]bool) []succinct.Item {
	out := make([]succinct.Item, 0, len(items))
	for _, it := range items {
		if it.Kind == succinct.KindGraft && drop[it.Graft.SeqID] {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Size returns the encoded size of every block stream in the document.
func (d *Document) Size() int {
	n := 0
	for _, s := range d.Sequences {
		for _, b := range s.Blocks {
			n += b.Size()
		}
	}
	return n
}
