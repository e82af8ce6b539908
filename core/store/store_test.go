package store

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/juniper-succinct/core/docset"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/usx"
)

const johnUSX = `<usx version="3.0">
  <book code="JHN" style="id"/>
  <chapter number="1" style="c"/>
  <para style="p"><verse number="1" style="v"/>In the beginning was the Word.</para>
</usx>`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "succinct.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDocSet(t *testing.T, abbr string) *docset.DocSet {
	t.Helper()
	ds := docset.New("eng_"+abbr, map[string]string{"lang": "eng", "abbr": abbr})
	if _, err := ds.Import(usx.New([]byte(johnUSX))); err != nil {
		t.Fatalf("Import error: %v", err)
	}
	return ds
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ds := testDocSet(t, "web")

	e, err := s.Save(ctx, ds)
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	want, _ := json.Marshal(ds)
	if e.ID != "eng_web" || e.Hash != Hash(want) || e.Size != int64(len(want)) || e.Stored == 0 {
		t.Errorf("Save entry = %+v", e)
	}

	loaded, err := s.Load(ctx, "eng_web")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	got, _ := json.Marshal(loaded)
	if !bytes.Equal(got, want) {
		t.Errorf("loaded docset differs:\n%s\n%s", got, want)
	}
	doc, err := loaded.DocumentByBook("JHN")
	if err != nil {
		t.Fatal(err)
	}
	if text, err := doc.TextForReference("1:1"); err != nil || text != "In the beginning was the Word." {
		t.Errorf("TextForReference(1:1) = %q, %v", text, err)
	}
}

func TestSaveUnchanged(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ds := testDocSet(t, "web")

	first, err := s.Save(ctx, ds)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Save(ctx, ds)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("second Save = %+v, want %+v", second, first)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, abbr := range []string{"web", "kjv"} {
		if _, err := s.Save(ctx, testDocSet(t, abbr)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].ID != "eng_kjv" || entries[1].ID != "eng_web" {
		t.Fatalf("List = %+v", entries)
	}

	if err := s.Delete(ctx, "eng_kjv"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := s.Delete(ctx, "eng_kjv"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	if _, err := s.Load(ctx, "eng_kjv"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Load(deleted) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "eng_web"); err != nil {
		t.Errorf("Get(eng_web) error = %v", err)
	}
}

func TestLoadDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.Save(ctx, testDocSet(t, "web")); err != nil {
		t.Fatal(err)
	}

	if _, err := s.db.Exec(`UPDATE docsets SET hash = ? WHERE id = ?`, Hash([]byte("other")), "eng_web"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "eng_web"); !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("Load(bad hash) error = %v, want ErrInvalidValue", err)
	}

	if _, err := s.db.Exec(`UPDATE docsets SET data = ? WHERE id = ?`, []byte("not xz"), "eng_web"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "eng_web"); !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("Load(bad data) error = %v, want ErrInvalidValue", err)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte(`{"blocks":[]}`), 100)
	c, err := compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(c) >= len(data) {
		t.Errorf("compressed %d bytes to %d", len(data), len(c))
	}
	got, err := decompress(c)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("decompress = %d bytes, %v", len(got), err)
	}
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	if info.DriverName == "" || info.Package == "" {
		t.Errorf("GetInfo = %+v", info)
	}
	if info.IsCGO != (info.DriverType == "cgo") {
		t.Errorf("IsCGO = %v for driver type %s", info.IsCGO, info.DriverType)
	}
}
