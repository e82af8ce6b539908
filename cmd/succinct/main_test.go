package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/internal/validation"
)

const genesisUSX = `<usx version="3.0">
  <book code="GEN" style="id"/>
  <chapter number="1" style="c"/>
  <para style="p">
    <verse number="1" style="v"/>In the beginning God created the heavens.
    <verse number="2" style="v"/>The earth was formless.
  </para>
</usx>`

// Test helper functions

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func testGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return &Globals{DB: filepath.Join(t.TempDir(), "succinct.db"), out: &buf}, &buf
}

func importGenesis(t *testing.T, g *Globals) {
	t.Helper()
	path := createTestFile(t, t.TempDir(), "GEN.usx", genesisUSX)
	cmd := &ImportCmd{Paths: []string{path}, Lang: "eng", Abbr: "web"}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("ImportCmd.Run error: %v", err)
	}
}

func TestImportCmd_Run(t *testing.T) {
	g, out := testGlobals(t)
	importGenesis(t, g)

	for _, want := range []string{"Imported: GEN", "DocSet: eng_web"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q lacks %q", out.String(), want)
		}
	}

	bad := &ImportCmd{Paths: []string{createTestFile(t, t.TempDir(), "GEN.usx", genesisUSX)}, Lang: "english", Abbr: "web"}
	if err := bad.Run(g); !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("ImportCmd.Run(bad lang) error = %v, want ErrInvalidValue", err)
	}
}

func TestQueryCmd_Run(t *testing.T) {
	g, out := testGlobals(t)
	importGenesis(t, g)

	tests := []struct {
		name string
		cmd  QueryCmd
		want string
	}{
		{"verse text", QueryCmd{DocSet: "eng_web", Book: "gen", Reference: "1:2"}, "The earth was formless.\n"},
		{"verse items", QueryCmd{DocSet: "eng_web", Book: "GEN", Reference: "1:2", Items: true}, "token/wordLike/The\n"},
		{"with scopes", QueryCmd{DocSet: "eng_web", Book: "GEN", Reference: "1:2", Items: true, Scopes: true}, "startScope/start/verse/2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			if err := tt.cmd.Run(g); err != nil {
				t.Fatalf("QueryCmd.Run error: %v", err)
			}
			if !strings.HasPrefix(out.String(), tt.want) {
				t.Errorf("output = %q, want prefix %q", out.String(), tt.want)
			}
		})
	}

	bad := &QueryCmd{DocSet: "eng_web", Book: "GEN", Reference: "1:x"}
	if err := bad.Run(g); !errors.Is(err, errors.ErrInvalidReference) {
		t.Errorf("QueryCmd.Run(bad ref) error = %v, want ErrInvalidReference", err)
	}
}

func TestListShowRehash(t *testing.T) {
	g, out := testGlobals(t)
	if err := (&ListCmd{}).Run(g); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "No docsets") {
		t.Errorf("empty list output = %q", out.String())
	}

	importGenesis(t, g)
	out.Reset()
	if err := (&ListCmd{}).Run(g); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "eng_web\n  BLAKE3: ") {
		t.Errorf("list output = %q", out.String())
	}

	out.Reset()
	if err := (&ShowCmd{DocSet: "eng_web"}).Run(g); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"lang: eng", "Documents: 1", "wordLike:", "GEN "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("show output %q lacks %q", out.String(), want)
		}
	}

	out.Reset()
	if err := (&RehashCmd{DocSet: "eng_web"}).Run(g); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "Rehashed: eng_web") {
		t.Errorf("rehash output = %q", out.String())
	}
}

func TestExportLoadDelete(t *testing.T) {
	g, out := testGlobals(t)
	importGenesis(t, g)

	exported := filepath.Join(t.TempDir(), "eng_web.json")
	if err := (&ExportCmd{DocSet: "eng_web", Out: exported}).Run(g); err != nil {
		t.Fatalf("ExportCmd.Run error: %v", err)
	}
	if err := (&DeleteCmd{DocSet: "eng_web"}).Run(g); err != nil {
		t.Fatalf("DeleteCmd.Run error: %v", err)
	}
	if err := (&ShowCmd{DocSet: "eng_web"}).Run(g); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ShowCmd.Run(deleted) error = %v, want ErrNotFound", err)
	}

	if err := (&LoadCmd{Path: exported}).Run(g); err != nil {
		t.Fatalf("LoadCmd.Run error: %v", err)
	}
	out.Reset()
	if err := (&QueryCmd{DocSet: "eng_web", Book: "GEN", Reference: "1:1"}).Run(g); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "In the beginning God created the heavens.\n" {
		t.Errorf("query after load = %q", got)
	}

	if err := (&DeleteCmd{DocSet: "eng_web", Book: "gen"}).Run(g); err != nil {
		t.Fatalf("DeleteCmd.Run(book) error: %v", err)
	}
	if err := (&QueryCmd{DocSet: "eng_web", Book: "GEN", Reference: "1:1"}).Run(g); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("QueryCmd.Run(deleted book) error = %v, want ErrNotFound", err)
	}
}

func TestExportStdout(t *testing.T) {
	g, out := testGlobals(t)
	importGenesis(t, g)
	out.Reset()
	if err := (&ExportCmd{DocSet: "eng_web"}).Run(g); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), `{"id":"eng_web"`) {
		t.Errorf("export output starts %q", out.String()[:20])
	}
}

func TestExportToDirectory(t *testing.T) {
	g, out := testGlobals(t)
	importGenesis(t, g)
	dir := t.TempDir()
	if err := (&ExportCmd{DocSet: "eng_web", Out: dir}).Run(g); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "eng_web.json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("export into directory did not write %s: %v", want, err)
	}
	if !strings.Contains(out.String(), "Output: "+want) {
		t.Errorf("export output = %q", out.String())
	}
}

func TestInputTypeChecks(t *testing.T) {
	g, _ := testGlobals(t)
	dir := t.TempDir()
	jsonFile := createTestFile(t, dir, "GEN.usx", `{"id":"eng_web"}`)
	if err := (&ImportCmd{Paths: []string{jsonFile}, Lang: "eng", Abbr: "web"}).Run(g); !errors.Is(err, validation.ErrFileType) {
		t.Errorf("ImportCmd.Run(json) error = %v, want ErrFileType", err)
	}
	usxFile := createTestFile(t, dir, "eng_web.json", genesisUSX)
	if err := (&LoadCmd{Path: usxFile}).Run(g); !errors.Is(err, validation.ErrFileType) {
		t.Errorf("LoadCmd.Run(usx) error = %v, want ErrFileType", err)
	}

	g.DB = "bad\x01.db"
	if err := (&ListCmd{}).Run(g); !errors.Is(err, validation.ErrInvalidCharacter) {
		t.Errorf("ListCmd.Run(bad db path) error = %v, want ErrInvalidCharacter", err)
	}
}

func TestVersionCmd_Run(t *testing.T) {
	g, out := testGlobals(t)
	if err := (&VersionCmd{}).Run(g); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), version) || !strings.Contains(out.String(), "SQLite driver") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestCLIParse(t *testing.T) {
	var cli struct {
		Globals
		Query  QueryCmd  `cmd:""`
		Delete DeleteCmd `cmd:""`
	}
	parser, err := kong.New(&cli, kong.Name("succinct"), kong.Exit(func(int) {}))
	if err != nil {
		t.Fatalf("kong.New error: %v", err)
	}

	ctx, err := parser.Parse([]string{"--db", "x.db", "--log-level", "debug", "query", "eng_web", "GEN", "3:16", "--items"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !strings.HasPrefix(ctx.Command(), "query ") {
		t.Errorf("Command() = %q", ctx.Command())
	}
	if cli.LogLevel != "debug" || cli.Query.Reference != "3:16" || !cli.Query.Items || !strings.HasSuffix(cli.DB, "x.db") {
		t.Errorf("parsed = %+v", cli)
	}

	if _, err := parser.Parse([]string{"delete", "eng_web"}); err != nil {
		t.Errorf("Parse(delete without book) error: %v", err)
	}
	if _, err := parser.Parse([]string{"--log-level", "loud", "delete", "eng_web"}); err == nil {
		t.Error("Parse accepted an unknown log level")
	}
}
