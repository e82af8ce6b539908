package processor

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/FocuswithJustin/juniper-succinct/core/docset"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/store"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
	"github.com/FocuswithJustin/juniper-succinct/core/usx"
)

const ruthUSX = `<usx version="3.0">
  <book code="RUT" style="id"/>
  <chapter number="1" style="c"/>
  <para style="p">
    <verse number="1" style="v"/>There was a famine in the land.<note style="f" caller="+">Hebrew: days.</note>
    <verse number="2" style="v"/>The name of the man was Elimelech.
  </para>
  <chapter number="2" style="c"/>
  <para style="p"><verse number="1" style="v"/>Naomi had a relative.</para>
</usx>`

const jonahUSX = `<usx version="3.0">
  <book code="JON" style="id"/>
  <chapter number="1" style="c"/>
  <para style="p"><verse number="1" style="v"/>The word came to Jonah.</para>
</usx>`

var web = map[string]string{"lang": "eng", "abbr": "web"}

func newStoreProcessor(t *testing.T, cacheSize int) (*Processor, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "succinct.db"))
	if err != nil {
		t.Fatalf("store.Open error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	cfg := DefaultConfig()
	cfg.CacheSize = cacheSize
	return New(cfg, st), st
}

func TestImportAndQuery(t *testing.T) {
	ctx := context.Background()
	p := New(DefaultConfig(), nil)

	docs, err := p.Import(ctx, web, usx.New([]byte(ruthUSX)), usx.New([]byte(jonahUSX)))
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Import returned %d documents, want 2", len(docs))
	}

	tests := []struct {
		book, ref, want string
	}{
		{"RUT", "1:2", "The name of the man was Elimelech."},
		{"RUT", "2", "Naomi had a relative."},
		{"JON", "1:1", "The word came to Jonah."},
	}
	for _, tt := range tests {
		got, err := p.QueryText(ctx, "eng_web", tt.book, tt.ref)
		if err != nil {
			t.Fatalf("QueryText(%s %s) error: %v", tt.book, tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("QueryText(%s %s) = %q, want %q", tt.book, tt.ref, got, tt.want)
		}
	}

	items, err := p.Query(ctx, "eng_web", "RUT", "1:1", docset.Filter{Tokens: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) == 0 || items[0] != succinct.NewToken(succinct.TokenWordLike, "There") {
		t.Errorf("Query(RUT 1:1) tokens = %v", items)
	}

	blocks, err := p.QueryBlocks(ctx, "eng_web", "RUT", "1-2")
	if err != nil || !reflect.DeepEqual(blocks, []int{0, 1}) {
		t.Errorf("QueryBlocks(RUT 1-2) = %v, %v", blocks, err)
	}

	if _, err := p.QueryText(ctx, "eng_web", "RUT", "one"); !errors.Is(err, errors.ErrInvalidReference) {
		t.Errorf("QueryText(bad ref) error = %v, want ErrInvalidReference", err)
	}
	if _, err := p.QueryText(ctx, "eng_kjv", "RUT", "1:1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("QueryText(missing docset) error = %v, want ErrNotFound", err)
	}
}

func TestImportRejectsBadSelectors(t *testing.T) {
	p := New(DefaultConfig(), nil)
	_, err := p.Import(context.Background(), map[string]string{"lang": "english", "abbr": "web"}, usx.New([]byte(ruthUSX)))
	if !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("Import error = %v, want ErrInvalidValue", err)
	}
}

func TestImportFailureLeavesNoDocSet(t *testing.T) {
	ctx := context.Background()
	p := New(DefaultConfig(), nil)
	if _, err := p.Import(ctx, web, usx.New([]byte("<usx/>"))); err == nil {
		t.Fatal("Import of a book-less document succeeded")
	}
	ids, err := p.DocSetIDs(ctx)
	if err != nil || len(ids) != 0 {
		t.Errorf("DocSetIDs = %v, %v, want none", ids, err)
	}
}

func TestCreateDocSet(t *testing.T) {
	ctx := context.Background()
	p := New(DefaultConfig(), nil)
	ds, err := p.CreateDocSet(ctx, web)
	if err != nil {
		t.Fatal(err)
	}
	if ds.ID != "eng_web" {
		t.Errorf("ID = %q, want eng_web", ds.ID)
	}
	if _, err := p.CreateDocSet(ctx, web); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Errorf("second CreateDocSet error = %v, want ErrAlreadyExists", err)
	}
}

func TestReplaceBlockReindexes(t *testing.T) {
	ctx := context.Background()
	p := New(DefaultConfig(), nil)
	if _, err := p.Import(ctx, web, usx.New([]byte(ruthUSX))); err != nil {
		t.Fatal(err)
	}

	items := []succinct.Item{
		succinct.StartScope("chapter/2"),
		succinct.StartScope("verse/1"),
		succinct.NewToken(succinct.TokenWordLike, "Boaz"),
		succinct.EndScope("verse/1"),
		succinct.EndScope("chapter/2"),
	}
	if err := p.ReplaceBlock(ctx, "eng_web", "RUT", "", 1, docset.BlockSpec{Items: items}); err != nil {
		t.Fatalf("ReplaceBlock error: %v", err)
	}
	if got, err := p.QueryText(ctx, "eng_web", "RUT", "2:1"); err != nil || got != "Boaz" {
		t.Errorf("QueryText(2:1) after replace = %q, %v", got, err)
	}

	bad := []succinct.Item{succinct.StartScope("verse/1/2")}
	if err := p.ReplaceBlock(ctx, "eng_web", "RUT", "", 1, docset.BlockSpec{Items: bad}); !errors.Is(err, errors.ErrMalformedScopeLabel) {
		t.Errorf("ReplaceBlock(bad scope) error = %v, want ErrMalformedScopeLabel", err)
	}
	if got, err := p.QueryText(ctx, "eng_web", "RUT", "2:1"); err != nil || got != "Boaz" {
		t.Errorf("QueryText(2:1) after failed replace = %q, %v", got, err)
	}
}

func TestGCSequencesAndRehash(t *testing.T) {
	ctx := context.Background()
	p := New(DefaultConfig(), nil)
	if _, err := p.Import(ctx, web, usx.New([]byte(ruthUSX))); err != nil {
		t.Fatal(err)
	}
	before, err := p.QueryText(ctx, "eng_web", "RUT", "1")
	if err != nil {
		t.Fatal(err)
	}

	removed, err := p.GCSequences(ctx, "eng_web", "RUT")
	if err != nil || removed != 0 {
		t.Errorf("GCSequences = %d, %v, want 0", removed, err)
	}
	if err := p.Rehash(ctx, "eng_web"); err != nil {
		t.Fatalf("Rehash error: %v", err)
	}
	after, err := p.QueryText(ctx, "eng_web", "RUT", "1")
	if err != nil || after != before {
		t.Errorf("QueryText(1) after rehash = %q, %v, want %q", after, err, before)
	}
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	p := New(DefaultConfig(), nil)
	if _, err := p.Import(ctx, web, usx.New([]byte(ruthUSX)), usx.New([]byte(jonahUSX))); err != nil {
		t.Fatal(err)
	}
	if err := p.DeleteDocument(ctx, "eng_web", "RUT"); err != nil {
		t.Fatalf("DeleteDocument error: %v", err)
	}
	if _, err := p.QueryText(ctx, "eng_web", "RUT", "1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("QueryText(deleted book) error = %v, want ErrNotFound", err)
	}
	if got, err := p.QueryText(ctx, "eng_web", "JON", "1:1"); err != nil || got != "The word came to Jonah." {
		t.Errorf("QueryText(JON 1:1) = %q, %v", got, err)
	}
	st, err := p.Stats(ctx, "eng_web")
	if err != nil || st.Documents != 1 {
		t.Errorf("Stats = %+v, %v", st, err)
	}
}

func TestExportLoad(t *testing.T) {
	ctx := context.Background()
	src := New(DefaultConfig(), nil)
	if _, err := src.Import(ctx, web, usx.New([]byte(ruthUSX))); err != nil {
		t.Fatal(err)
	}
	data, err := src.Export(ctx, "eng_web")
	if err != nil {
		t.Fatal(err)
	}

	dst := New(DefaultConfig(), nil)
	if _, err := dst.Load(ctx, data); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got, err := dst.QueryText(ctx, "eng_web", "RUT", "1:1"); err != nil || got != "There was a famine in the land." {
		t.Errorf("QueryText(1:1) after load = %q, %v", got, err)
	}

	strict := New(Config{SelectorSchema: docset.SelectorSchema{{Name: "lang", Pattern: `^[a-z]{3}$`}}}, nil)
	if _, err := strict.Load(ctx, data); !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("Load with other schema error = %v, want ErrInvalidValue", err)
	}
}

func TestStoreWriteThrough(t *testing.T) {
	ctx := context.Background()
	p, st := newStoreProcessor(t, 1)
	if _, err := p.Import(ctx, web, usx.New([]byte(ruthUSX))); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Import(ctx, map[string]string{"lang": "eng", "abbr": "kjv"}, usx.New([]byte(jonahUSX))); err != nil {
		t.Fatal(err)
	}

	entries, err := st.List(ctx)
	if err != nil || len(entries) != 2 {
		t.Fatalf("store List = %v, %v", entries, err)
	}
	if p.CacheStats().Size != 1 {
		t.Errorf("cache size = %d, want 1", p.CacheStats().Size)
	}

	// eng_web was evicted and must come back from the store.
	if got, err := p.QueryText(ctx, "eng_web", "RUT", "2:1"); err != nil || got != "Naomi had a relative." {
		t.Errorf("QueryText after eviction = %q, %v", got, err)
	}

	ids, err := p.DocSetIDs(ctx)
	if err != nil || !reflect.DeepEqual(ids, []string{"eng_kjv", "eng_web"}) {
		t.Errorf("DocSetIDs = %v, %v", ids, err)
	}

	fresh := New(DefaultConfig(), st)
	if got, err := fresh.QueryText(ctx, "eng_kjv", "JON", "1:1"); err != nil || got != "The word came to Jonah." {
		t.Errorf("QueryText from a new processor = %q, %v", got, err)
	}

	if err := p.DeleteDocSet(ctx, "eng_kjv"); err != nil {
		t.Fatalf("DeleteDocSet error: %v", err)
	}
	if _, err := fresh.DocSet(ctx, "eng_kjv"); err != nil {
		t.Errorf("cached copy in another processor should survive: %v", err)
	}
	if _, err := st.Get(ctx, "eng_kjv"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("store Get(deleted) error = %v, want ErrNotFound", err)
	}
	if err := p.DeleteDocSet(ctx, "eng_kjv"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second DeleteDocSet error = %v, want ErrNotFound", err)
	}
}
