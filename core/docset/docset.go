// Package docset stores documents as succinct block streams.
//
// A DocSet groups documents that share one set of enum tables. Each document
// has a main sequence and any number of secondary sequences (footnotes,
// headings, introductions) grafted into it; each sequence is a list of
// blocks, and each block holds five encoded streams:
//
//	bs  the block scope
//	bg  block grafts
//	c   content
//	os  scopes open at the start of the block
//	is  scopes starting within the block
//
// Importing a document records its strings into the docset enums and then
// encodes its streams. The first document of a docset fixes the enum order by
// frequency; later documents append new values. Rehash rebuilds the enums
// from scratch and re-encodes every stream.
package docset

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/juniper-succinct/core/bytearray"
	"github.com/FocuswithJustin/juniper-succinct/core/enums"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/parser"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

// DocSet is a set of documents sharing enum tables.
type DocSet struct {
	ID        string
	Selectors map[string]string

	enums *enums.Set
	docs  map[string]*Document
}

// New creates an empty docset.
func New(id string, selectors map[string]string) *DocSet {
	sel := make(map[string]string, len(selectors))
	for k, v := range selectors {
		sel[k] = v
	}
	return &DocSet{ID: id, Selectors: sel, enums: enums.NewSet(), docs: map[string]*Document{}}
}

// Enums returns the docset's enum tables.
func (ds *DocSet) Enums() *enums.Set {
	return ds.enums
}

// Document returns the document with the given id.
func (ds *DocSet) Document(id string) (*Document, error) {
	d, ok := ds.docs[id]
	if !ok {
		return nil, errors.NewNotFound("document", id)
	}
	return d, nil
}

// DocumentByBook returns the document whose "id" header is bookCode.
func (ds *DocSet) DocumentByBook(bookCode string) (*Document, error) {
	for _, d := range ds.docs {
		if d.BookCode() == bookCode {
			return d, nil
		}
	}
	return nil, errors.NewNotFound("book", bookCode)
}

// Documents returns every document ordered by id.
func (ds *DocSet) Documents() []*Document {
	out := make([]*Document, 0, len(ds.docs))
	for _, d := range ds.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// enumsStage is a copy of the docset enums with pending recordings.
type enumsStage struct {
	ds    *DocSet
	enums *enums.Set
}

func (st *enumsStage) commit() {
	st.ds.enums = st.enums
}

// stage clones the enums, runs record against the clone and finalizes it.
// The clone is sorted by frequency only when the docset had no values yet.
func (ds *DocSet) stage(record func(r succinct.Recorder) error) (*enumsStage, error) {
	clone := ds.enums.Clone()
	fresh := clone.Empty()
	if err := clone.BeginRecording(); err != nil {
		return nil, err
	}
	if err := record(clone); err != nil {
		return nil, err
	}
	if fresh {
		clone.SortByFrequency()
	}
	if err := clone.Finalize(); err != nil {
		return nil, err
	}
	return &enumsStage{ds: ds, enums: clone}, nil
}

// ImportParsed encodes a parsed document into the docset and indexes its main
// sequence. A document whose "id" header matches an existing document is
// rejected. On error the docset is unchanged.
func (ds *DocSet) ImportParsed(p *parser.Parser) (*Document, error) {
	headers := make(map[string]string, len(p.Headers()))
	for k, v := range p.Headers() {
		headers[k] = v
	}
	if book := headers["id"]; book != "" {
		if _, err := ds.DocumentByBook(book); err == nil {
			return nil, fmt.Errorf("book %s in docset %s: %w", book, ds.ID, errors.ErrAlreadyExists)
		}
	}
	for _, t := range p.Tags() {
		if err := ValidateTag(t); err != nil {
			return nil, err
		}
	}

	seqs := p.Sequences()
	st, err := ds.stage(func(r succinct.Recorder) error {
		for _, s := range seqs {
			if err := r.Record(enums.IDs, s.ID); err != nil {
				return err
			}
			for _, it := range s.Items() {
				if err := succinct.RecordItem(r, it); err != nil {
					return fmt.Errorf("sequence %s: %w", s.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:        parser.NewID(),
		Headers:   headers,
		MainID:    p.MainID(),
		Tags:      p.Tags(),
		Sequences: make(map[string]*Sequence, len(seqs)),
		docSet:    ds,
	}
	for _, ps := range seqs {
		s, err := encodeSequence(ps, st.enums)
		if err != nil {
			return nil, err
		}
		doc.Sequences[s.ID] = s
	}
	if err := doc.Main().BuildIndex(st.enums); err != nil {
		return nil, err
	}

	st.commit()
	ds.docs[doc.ID] = doc
	return doc, nil
}

// Import parses the output of producer and imports it.
func (ds *DocSet) Import(producer parser.Producer) (*Document, error) {
	p, err := parser.Parse(producer)
	if err != nil {
		return nil, err
	}
	return ds.ImportParsed(p)
}

// DeleteDocument removes a document and rehashes the docset so the enums no
// longer carry its values.
func (ds *DocSet) DeleteDocument(id string) error {
	if _, ok := ds.docs[id]; !ok {
		return errors.NewNotFound("document", id)
	}
	var views []docView
	for _, d := range ds.Documents() {
		if d.ID != id {
			views = append(views, docView{doc: d, seqs: d.Sequences})
		}
	}
	commit, err := ds.planRehash(views)
	if err != nil {
		return err
	}
	delete(ds.docs, id)
	commit()
	return nil
}

// Rehash rebuilds the enums from the values still referenced by the docset,
// sorted by frequency, and re-encodes every stream. Either every stream is
// replaced or, on error, nothing changes.
func (ds *DocSet) Rehash() error {
	views := make([]docView, 0, len(ds.docs))
	for _, d := range ds.Documents() {
		views = append(views, docView{doc: d, seqs: d.Sequences})
	}
	commit, err := ds.planRehash(views)
	if err != nil {
		return err
	}
	commit()
	return nil
}

// docView is a document together with the sequences it will hold once a
// pending removal is committed.
type docView struct {
	doc  *Document
	seqs map[string]*Sequence
}

// planRehash builds the enums and streams for the given documents without
// touching the docset. The returned commit swaps them in and cannot fail.
func (ds *DocSet) planRehash(views []docView) (func(), error) {
	type decodedSeq struct {
		seq   *Sequence
		parts []blockParts
	}
	var decoded []decodedSeq
	for _, v := range views {
		for _, id := range sequenceIDs(v.doc.MainID, v.seqs) {
			s := v.seqs[id]
			dseq := decodedSeq{seq: s, parts: make([]blockParts, len(s.Blocks))}
			for i, b := range s.Blocks {
				parts, err := b.decode(ds.enums)
				if err != nil {
					return nil, fmt.Errorf("document %s sequence %s block %d: %w", v.doc.ID, id, i, err)
				}
				dseq.parts[i] = parts
			}
			decoded = append(decoded, dseq)
		}
	}

	next := enums.NewSet()
	if err := next.BeginRecording(); err != nil {
		return nil, err
	}
	for _, dseq := range decoded {
		if err := next.Record(enums.IDs, dseq.seq.ID); err != nil {
			return nil, err
		}
		for _, parts := range dseq.parts {
			items := append([]succinct.Item{parts.scope}, parts.grafts...)
			items = append(items, parts.items...)
			for _, it := range items {
				if err := succinct.RecordItem(next, it); err != nil {
					return nil, err
				}
			}
		}
	}
	next.SortByFrequency()
	if err := next.Finalize(); err != nil {
		return nil, err
	}

	// Item offsets change with the codes, so indexed sequences are
	// re-indexed against the new blocks before anything is swapped.
	type index struct {
		chapters, chapterVerses map[int]*bytearray.ByteArray
	}
	blocks := make([][]*Block, len(decoded))
	indexes := make([]*index, len(decoded))
	for i, dseq := range decoded {
		blocks[i] = make([]*Block, len(dseq.parts))
		for j, parts := range dseq.parts {
			b, err := encodeBlock(parts, next)
			if err != nil {
				return nil, fmt.Errorf("sequence %s block %d: %w", dseq.seq.ID, j, err)
			}
			blocks[i][j] = b
		}
		if dseq.seq.IsMain() && dseq.seq.Indexed() {
			chapters, chapterVerses, err := buildIndex(blocks[i], next)
			if err != nil {
				return nil, fmt.Errorf("sequence %s: %w", dseq.seq.ID, err)
			}
			indexes[i] = &index{chapters, chapterVerses}
		}
	}

	return func() {
		ds.enums = next
		for i, dseq := range decoded {
			dseq.seq.Blocks = blocks[i]
			if indexes[i] != nil {
				dseq.seq.Chapters, dseq.seq.ChapterVerses = indexes[i].chapters, indexes[i].chapterVerses
			}
		}
		for _, v := range views {
			v.doc.Sequences = v.seqs
		}
	}, nil
}

// Stats summarizes the storage of a docset.
type Stats struct {
	Documents  int                    `json:"documents"`
	Sequences  int                    `json:"sequences"`
	Blocks     int                    `json:"blocks"`
	BlockBytes int                    `json:"blockBytes"`
	EnumSizes  map[enums.Category]int `json:"enumSizes"`
	EnumBytes  int                    `json:"enumBytes"`
}

// Stats counts documents, sequences and blocks and sums the encoded sizes.
func (ds *DocSet) Stats() Stats {
	st := Stats{Documents: len(ds.docs), EnumSizes: ds.enums.Sizes()}
	for _, d := range ds.docs {
		st.Sequences += len(d.Sequences)
		for _, s := range d.Sequences {
			st.Blocks += len(s.Blocks)
		}
		st.BlockBytes += d.Size()
	}
	for _, c := range enums.Categories {
		if t, err := ds.enums.Table(c); err == nil {
			st.EnumBytes += t.Buffer().Len()
		}
	}
	return st
}
