// Package processor is the entry point for working with docsets.
//
// A Processor owns every docset it has created, imported or loaded and
// serializes all operations on them behind one mutex. With a store attached
// it writes each changed docset through to SQLite and keeps only the most
// recently used docsets decoded in memory; without one the docsets live in
// memory only.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/FocuswithJustin/juniper-succinct/core/cache"
	"github.com/FocuswithJustin/juniper-succinct/core/docset"
	"github.com/FocuswithJustin/juniper-succinct/core/enums"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/parser"
	"github.com/FocuswithJustin/juniper-succinct/core/store"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
	"github.com/FocuswithJustin/juniper-succinct/internal/logging"
)

// Config configures a Processor.
type Config struct {
	// SelectorSchema names the selectors that identify a docset.
	SelectorSchema docset.SelectorSchema

	// CacheSize is the number of decoded docsets kept in memory when a
	// store is attached. Without a store every docset stays in memory.
	CacheSize int
}

// DefaultConfig returns the lang/abbr selector schema and a cache of 16 docsets.
func DefaultConfig() Config {
	return Config{
		SelectorSchema: docset.DefaultSelectorSchema,
		CacheSize:      16,
	}
}

// Processor holds docsets and runs one operation on them at a time.
type Processor struct {
	mu     sync.Mutex
	config Config
	store  *store.Store
	cache  *cache.DocSetCache
}

// New creates a processor. st may be nil.
func New(config Config, st *store.Store) *Processor {
	if config.SelectorSchema == nil {
		config.SelectorSchema = docset.DefaultSelectorSchema
	}
	// Without a store the cache is the only copy, so nothing is evicted.
	size := config.CacheSize
	if st == nil {
		size = 0
	}
	dc := cache.NewDocSetCache(size, func(id string, ds *docset.DocSet) {
		logging.Debug("docset evicted", "docset_id", id, "documents", len(ds.Documents()))
	})
	return &Processor{config: config, store: st, cache: dc}
}

// Config returns the processor configuration.
func (p *Processor) Config() Config {
	return p.config
}

// CacheStats returns statistics of the decoded docset cache.
func (p *Processor) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// docSet returns a cached docset or loads it from the store. Callers hold mu.
func (p *Processor) docSet(ctx context.Context, id string) (*docset.DocSet, error) {
	if ds, ok := p.cache.Get(id); ok {
		return ds, nil
	}
	if p.store == nil {
		return nil, errors.NewNotFound("docSet", id)
	}
	ds, err := p.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	p.cache.Put(ds)
	return ds, nil
}

// exists reports whether id names a cached or stored docset. Callers hold mu.
func (p *Processor) exists(ctx context.Context, id string) (bool, error) {
	if p.cache.Contains(id) {
		return true, nil
	}
	if p.store == nil {
		return false, nil
	}
	_, err := p.store.Get(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// persist writes ds through to the store, if any. Callers hold mu.
func (p *Processor) persist(ctx context.Context, ds *docset.DocSet) error {
	if p.store == nil {
		return nil
	}
	if _, err := p.store.Save(ctx, ds); err != nil {
		return fmt.Errorf("failed to persist docset %s: %w", ds.ID, err)
	}
	return nil
}

// discard drops a docset whose in-memory copy may have diverged from the
// store after a failed operation. Callers hold mu.
func (p *Processor) discard(id string) {
	if p.store != nil {
		p.cache.Remove(id)
	}
}

// CreateDocSet validates selectors and creates an empty docset with the
// derived id. An existing id fails with ErrAlreadyExists.
func (p *Processor) CreateDocSet(ctx context.Context, selectors map[string]string) (*docset.DocSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.config.SelectorSchema.ID(selectors)
	if err != nil {
		return nil, err
	}
	ok, err := p.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, fmt.Errorf("docset %s: %w", id, errors.ErrAlreadyExists)
	}
	ds := docset.New(id, selectors)
	if err := p.persist(ctx, ds); err != nil {
		return nil, err
	}
	p.cache.Put(ds)
	logging.InfoContext(logging.WithDocSet(ctx, id), "docset created")
	return ds, nil
}

// DocSet returns the docset with the given id.
func (p *Processor) DocSet(ctx context.Context, id string) (*docset.DocSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.docSet(ctx, id)
}

// DocSetIDs returns the ids of every cached or stored docset, sorted.
func (p *Processor) DocSetIDs(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := map[string]bool{}
	for _, id := range p.cache.IDs() {
		seen[id] = true
	}
	if p.store != nil {
		entries, err := p.store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			seen[e.ID] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Import adds the documents of producers to the docset identified by
// selectors, creating it when needed. Documents are imported in order; the
// first failure stops the import and the documents already added stay.
func (p *Processor) Import(ctx context.Context, selectors map[string]string, producers ...parser.Producer) ([]*docset.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.config.SelectorSchema.ID(selectors)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithDocSet(ctx, id)
	ds, err := p.docSet(ctx, id)
	created := false
	if errors.Is(err, errors.ErrNotFound) {
		ds, err, created = docset.New(id, selectors), nil, true
		p.cache.Put(ds)
	}
	if err != nil {
		return nil, err
	}

	var docs []*docset.Document
	for _, producer := range producers {
		doc, err := ds.Import(producer)
		if err != nil {
			if created && len(docs) == 0 {
				p.cache.Remove(id)
			} else if len(docs) > 0 {
				if perr := p.persist(ctx, ds); perr != nil {
					logging.ErrorContext(ctx, "failed to persist partial import", "error", perr)
				}
			}
			return docs, err
		}
		blocks := 0
		for _, s := range doc.Sequences {
			blocks += len(s.Blocks)
		}
		logging.DocumentImported(id, doc.ID, len(doc.Sequences), blocks, "book", doc.BookCode())
		docs = append(docs, doc)
	}
	if err := p.persist(ctx, ds); err != nil {
		return docs, err
	}
	if created {
		logging.InfoContext(ctx, "docset created")
	}
	return docs, nil
}

// document resolves a docset and one of its books. Callers hold mu.
func (p *Processor) document(ctx context.Context, docSetID, book string) (*docset.Document, error) {
	ds, err := p.docSet(ctx, docSetID)
	if err != nil {
		return nil, err
	}
	return ds.DocumentByBook(book)
}

// Query returns the main-sequence items of a book matching a reference
// such as "3:16" or "1-2".
func (p *Processor) Query(ctx context.Context, docSetID, book, reference string, filter docset.Filter) ([]succinct.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.document(ctx, docSetID, book)
	if err != nil {
		return nil, err
	}
	return doc.ItemsForReference(reference, filter)
}

// QueryText returns the text of a book matching a reference.
func (p *Processor) QueryText(ctx context.Context, docSetID, book, reference string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.document(ctx, docSetID, book)
	if err != nil {
		return "", err
	}
	return doc.TextForReference(reference)
}

// QueryBlocks returns the main-sequence block numbers matching a reference.
func (p *Processor) QueryBlocks(ctx context.Context, docSetID, book, reference string) ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.document(ctx, docSetID, book)
	if err != nil {
		return nil, err
	}
	return doc.BlocksForReference(reference)
}

// Mutate runs fn against a docset, then rebuilds the chapter/verse index of
// every document whose index the mutation cleared and persists the result.
// When fn fails the cached copy is dropped so the next access reloads the
// stored version.
func (p *Processor) Mutate(ctx context.Context, docSetID string, fn func(ds *docset.DocSet) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx = logging.WithDocSet(ctx, docSetID)
	ds, err := p.docSet(ctx, docSetID)
	if err != nil {
		return err
	}
	if err := fn(ds); err != nil {
		p.discard(docSetID)
		return err
	}
	for _, doc := range ds.Documents() {
		if doc.Main().Indexed() {
			continue
		}
		if err := doc.BuildChapterVerseIndex(); err != nil {
			p.discard(docSetID)
			return fmt.Errorf("failed to reindex document %s: %w", doc.ID, err)
		}
		logging.DebugContext(ctx, "document reindexed", "doc_id", doc.ID)
	}
	return p.persist(ctx, ds)
}

// ReplaceBlock replaces the given parts of block n of a book's sequence.
// An empty seqID selects the main sequence.
func (p *Processor) ReplaceBlock(ctx context.Context, docSetID, book, seqID string, n int, spec docset.BlockSpec) error {
	return p.Mutate(ctx, docSetID, func(ds *docset.DocSet) error {
		doc, err := ds.DocumentByBook(book)
		if err != nil {
			return err
		}
		if seqID == "" {
			seqID = doc.MainID
		}
		return doc.ReplaceBlock(seqID, n, spec)
	})
}

// GCSequences removes the sequences of a book no longer reachable from its
// main sequence and returns how many were removed.
func (p *Processor) GCSequences(ctx context.Context, docSetID, book string) (int, error) {
	var removed int
	err := p.Mutate(ctx, docSetID, func(ds *docset.DocSet) error {
		doc, err := ds.DocumentByBook(book)
		if err != nil {
			return err
		}
		removed, err = doc.GCSequences()
		return err
	})
	return removed, err
}

// Rehash rebuilds the enums of a docset and re-encodes every block.
func (p *Processor) Rehash(ctx context.Context, docSetID string) error {
	return p.Mutate(ctx, docSetID, func(ds *docset.DocSet) error {
		if err := ds.Rehash(); err != nil {
			return err
		}
		sizes := ds.Enums().Sizes()
		for _, c := range enums.Categories {
			logging.EnumsRebuilt(ds.ID, string(c), sizes[c])
		}
		return nil
	})
}

// DeleteDocument removes a book from a docset.
func (p *Processor) DeleteDocument(ctx context.Context, docSetID, book string) error {
	return p.Mutate(ctx, docSetID, func(ds *docset.DocSet) error {
		doc, err := ds.DocumentByBook(book)
		if err != nil {
			return err
		}
		return ds.DeleteDocument(doc.ID)
	})
}

// DeleteDocSet removes a docset from memory and from the store.
func (p *Processor) DeleteDocSet(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cached := p.cache.Remove(id)
	if p.store != nil {
		if err := p.store.Delete(ctx, id); err != nil && !(cached && errors.Is(err, errors.ErrNotFound)) {
			return err
		}
	} else if !cached {
		return errors.NewNotFound("docSet", id)
	}
	logging.InfoContext(logging.WithDocSet(ctx, id), "docset deleted")
	return nil
}

// Export returns the serialized JSON of a docset.
func (p *Processor) Export(ctx context.Context, id string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ds, err := p.docSet(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ds)
}

// Load decodes a serialized docset, checks its selectors and buffers, and
// takes ownership of it, replacing any docset with the same id.
func (p *Processor) Load(ctx context.Context, data []byte) (*docset.DocSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ds, err := docset.LoadJSON(data)
	if err != nil {
		return nil, err
	}
	id, err := p.config.SelectorSchema.ID(ds.Selectors)
	if err != nil {
		return nil, err
	}
	if id != ds.ID {
		return nil, &errors.ValidationError{Field: "id", Value: ds.ID, Message: "does not match selectors " + id, Err: errors.ErrInvalidValue}
	}
	if err := ds.Verify(); err != nil {
		return nil, err
	}
	if err := p.persist(ctx, ds); err != nil {
		return nil, err
	}
	p.cache.Put(ds)
	logging.InfoContext(logging.WithDocSet(ctx, id), "docset loaded", "documents", len(ds.Documents()))
	return ds, nil
}

// Stats summarizes the storage of a docset.
func (p *Processor) Stats(ctx context.Context, id string) (docset.Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ds, err := p.docSet(ctx, id)
	if err != nil {
		return docset.Stats{}, err
	}
	return ds.Stats(), nil
}
