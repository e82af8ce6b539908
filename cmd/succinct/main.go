// Command succinct imports USX scripture into succinct docsets and queries them.
// Docsets are kept in a SQLite database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/juniper-succinct/core/docset"
	"github.com/FocuswithJustin/juniper-succinct/core/enums"
	"github.com/FocuswithJustin/juniper-succinct/core/parser"
	"github.com/FocuswithJustin/juniper-succinct/core/processor"
	"github.com/FocuswithJustin/juniper-succinct/core/store"
	"github.com/FocuswithJustin/juniper-succinct/core/usx"
	"github.com/FocuswithJustin/juniper-succinct/internal/logging"
	"github.com/FocuswithJustin/juniper-succinct/internal/validation"
)

const version = "0.1.0"

// Globals are the flags shared by every command.
type Globals struct {
	DB        string `name:"db" env:"SUCCINCT_DB" default:"succinct.db" help:"SQLite database holding the docsets" type:"path"`
	LogLevel  string `name:"log-level" env:"SUCCINCT_LOG_LEVEL" default:"warn" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" default:"text" enum:"json,text" help:"Log format (json, text)"`

	out io.Writer
}

// CLI defines the command-line interface for succinct.
var CLI struct {
	Globals

	Import  ImportCmd  `cmd:"" help:"Import USX books into a docset"`
	List    ListCmd    `cmd:"" help:"List stored docsets"`
	Show    ShowCmd    `cmd:"" help:"Show the documents and enum sizes of a docset"`
	Query   QueryCmd   `cmd:"" help:"Print the text or items of a chapter/verse reference"`
	Export  ExportCmd  `cmd:"" help:"Write a docset as serialized JSON"`
	Load    LoadCmd    `cmd:"" help:"Load a serialized docset into the database"`
	Rehash  RehashCmd  `cmd:"" help:"Rebuild the enums of a docset"`
	Delete  DeleteCmd  `cmd:"" help:"Delete a docset, or one book of it"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func (g *Globals) stdout() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

// open returns a processor backed by the database. The caller closes the store.
func (g *Globals) open() (*processor.Processor, *store.Store, error) {
	st, err := g.openStore()
	if err != nil {
		return nil, nil, err
	}
	return processor.New(processor.DefaultConfig(), st), st, nil
}

func (g *Globals) openStore() (*store.Store, error) {
	if err := validation.ValidatePath(g.DB); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}
	return store.Open(g.DB)
}

// ImportCmd imports USX files into the docset named by --lang and --abbr.
type ImportCmd struct {
	Paths []string `arg:"" help:"USX files to import" type:"existingfile"`
	Lang  string   `required:"" help:"Three-letter language code"`
	Abbr  string   `required:"" help:"Translation abbreviation"`
}

func (c *ImportCmd) Run(g *Globals) error {
	p, st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	producers := make([]parser.Producer, 0, len(c.Paths))
	for _, path := range c.Paths {
		data, err := validation.ReadInput(path, validation.FileTypeXML)
		if err != nil {
			return err
		}
		producers = append(producers, usx.New(data).Named(path))
	}

	selectors := map[string]string{"lang": c.Lang, "abbr": c.Abbr}
	docs, err := p.Import(context.Background(), selectors, producers...)
	for i, doc := range docs {
		fmt.Fprintf(g.stdout(), "Imported: %s (%s)\n", doc.BookCode(), c.Paths[i])
		fmt.Fprintf(g.stdout(), "  Document: %s\n", doc.ID)
		fmt.Fprintf(g.stdout(), "  Sequences: %d\n", len(doc.Sequences))
	}
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		fmt.Fprintf(g.stdout(), "DocSet: %s\n", docs[0].DocSet().ID)
	}
	return nil
}

// ListCmd lists the docsets in the database.
type ListCmd struct{}

func (c *ListCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.List(context.Background())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(g.stdout(), "No docsets in %s\n", g.DB)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(g.stdout(), "%s\n", e.ID)
		fmt.Fprintf(g.stdout(), "  BLAKE3: %s\n", e.Hash)
		fmt.Fprintf(g.stdout(), "  Size: %d bytes (%d stored)\n", e.Size, e.Stored)
		fmt.Fprintf(g.stdout(), "  Updated: %s\n", e.Updated.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// ShowCmd describes one docset.
type ShowCmd struct {
	DocSet string `arg:"" help:"DocSet id, e.g. eng_web"`
}

func (c *ShowCmd) Run(g *Globals) error {
	p, st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	ds, err := p.DocSet(context.Background(), c.DocSet)
	if err != nil {
		return err
	}
	stats := ds.Stats()
	w := g.stdout()
	fmt.Fprintf(w, "DocSet: %s\n", ds.ID)
	keys := make([]string, 0, len(ds.Selectors))
	for k := range ds.Selectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, ds.Selectors[k])
	}
	fmt.Fprintf(w, "  Documents: %d\n", stats.Documents)
	fmt.Fprintf(w, "  Sequences: %d\n", stats.Sequences)
	fmt.Fprintf(w, "  Blocks: %d (%d bytes)\n", stats.Blocks, stats.BlockBytes)
	fmt.Fprintf(w, "  Enums: %d bytes\n", stats.EnumBytes)
	for _, cat := range enums.Categories {
		fmt.Fprintf(w, "    %s: %d\n", cat, stats.EnumSizes[cat])
	}
	for _, doc := range ds.Documents() {
		chapters, err := doc.Main().ChapterNumbers()
		if err != nil {
			chapters = nil
		}
		fmt.Fprintf(w, "  %s %s: %d sequences, %d chapters\n", doc.BookCode(), doc.ID, len(doc.Sequences), len(chapters))
	}
	return nil
}

// QueryCmd resolves a reference in one book.
type QueryCmd struct {
	DocSet    string `arg:"" help:"DocSet id, e.g. eng_web"`
	Book      string `arg:"" help:"Book code, e.g. GEN"`
	Reference string `arg:"" help:"Reference: C, C-C, C:V, C:V-V or C:V-C:V"`
	Items     bool   `help:"Print decoded items instead of text"`
	Scopes    bool   `help:"With --items, include scope items"`
	Grafts    bool   `help:"With --items, include graft items"`
}

func (c *QueryCmd) Run(g *Globals) error {
	p, st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	book := strings.ToUpper(c.Book)
	if !c.Items {
		text, err := p.QueryText(ctx, c.DocSet, book, c.Reference)
		if err != nil {
			return err
		}
		fmt.Fprintln(g.stdout(), text)
		return nil
	}

	filter := docset.Filter{Tokens: true, Scopes: c.Scopes, Grafts: c.Grafts}
	items, err := p.Query(ctx, c.DocSet, book, c.Reference, filter)
	if err != nil {
		return err
	}
	for _, it := range items {
		fmt.Fprintln(g.stdout(), it.String())
	}
	return nil
}

// ExportCmd writes a docset's serialized JSON.
type ExportCmd struct {
	DocSet string `arg:"" help:"DocSet id, e.g. eng_web"`
	Out    string `short:"o" help:"Output file or directory (default stdout)" type:"path"`
}

func (c *ExportCmd) Run(g *Globals) error {
	p, st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := p.Export(context.Background(), c.DocSet)
	if err != nil {
		return err
	}
	if c.Out == "" {
		_, err = g.stdout().Write(append(data, '\n'))
		return err
	}
	out, err := validation.OutputPath(c.Out, c.DocSet, ".json")
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(g.stdout(), "Exported: %s\n", c.DocSet)
	fmt.Fprintf(g.stdout(), "  Output: %s\n", out)
	fmt.Fprintf(g.stdout(), "  BLAKE3: %s\n", store.Hash(data))
	return nil
}

// LoadCmd loads a serialized docset.
type LoadCmd struct {
	Path string `arg:"" help:"Serialized docset JSON" type:"existingfile"`
}

func (c *LoadCmd) Run(g *Globals) error {
	p, st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := validation.ReadInput(c.Path, validation.FileTypeJSON)
	if err != nil {
		return err
	}
	ds, err := p.Load(context.Background(), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Loaded: %s\n", ds.ID)
	fmt.Fprintf(g.stdout(), "  Documents: %d\n", len(ds.Documents()))
	return nil
}

// RehashCmd rebuilds the enums of a docset.
type RehashCmd struct {
	DocSet string `arg:"" help:"DocSet id, e.g. eng_web"`
}

func (c *RehashCmd) Run(g *Globals) error {
	p, st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := p.Rehash(ctx, c.DocSet); err != nil {
		return err
	}
	stats, err := p.Stats(ctx, c.DocSet)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Rehashed: %s\n", c.DocSet)
	fmt.Fprintf(g.stdout(), "  Enums: %d bytes\n", stats.EnumBytes)
	fmt.Fprintf(g.stdout(), "  Blocks: %d bytes\n", stats.BlockBytes)
	return nil
}

// DeleteCmd deletes a docset or one of its books.
type DeleteCmd struct {
	DocSet string `arg:"" help:"DocSet id, e.g. eng_web"`
	Book   string `arg:"" optional:"" help:"Book code; when given only this book is deleted"`
}

func (c *DeleteCmd) Run(g *Globals) error {
	p, st, err := g.open()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if c.Book == "" {
		if err := p.DeleteDocSet(ctx, c.DocSet); err != nil {
			return err
		}
		fmt.Fprintf(g.stdout(), "Deleted: %s\n", c.DocSet)
		return nil
	}
	book := strings.ToUpper(c.Book)
	if err := p.DeleteDocument(ctx, c.DocSet, book); err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Deleted: %s from %s\n", book, c.DocSet)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	info := store.GetInfo()
	fmt.Fprintf(g.stdout(), "succinct version %s\n", version)
	fmt.Fprintf(g.stdout(), "  SQLite driver: %s (%s)\n", info.DriverType, info.Package)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("succinct"),
		kong.Description("Succinct binary storage for USFM/USX scripture"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))
	err := ctx.Run(&CLI.Globals)
	if err != nil {
		logging.OperationFailed(ctx.Command(), err)
	}
	ctx.FatalIfErrorf(err)
}
