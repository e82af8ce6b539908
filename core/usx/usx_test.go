package usx

import (
	"reflect"
	"testing"

	"github.com/FocuswithJustin/juniper-succinct/core/docset"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/parser"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

const genesisUSX = `<?xml version="1.0" encoding="utf-8"?>
<usx version="3.0">
  <book code="GEN" style="id">World English Bible</book>
  <para style="h">Genesis</para>
  <para style="mt1">The First Book of Moses</para>
  <chapter number="1" style="c" sid="GEN 1"/>
  <para style="s1">The Creation</para>
  <para style="p">
    <verse number="1" style="v" sid="GEN 1:1"/>In the beginning, <char style="nd">God</char> created the heavens.<verse eid="GEN 1:1"/>
    <verse number="2" style="v" sid="GEN 1:2"/>The earth was formless<note caller="+" style="f"><char style="ft">Or, void</char></note>.<verse eid="GEN 1:2"/>
  </para>
  <chapter eid="GEN 1"/>
  <chapter number="2" style="c" sid="GEN 2"/>
  <para style="q1">
    <verse number="1-2" style="v" sid="GEN 2:1-2"/>Thus&#160;finished.<verse eid="GEN 2:1-2"/>
  </para>
  <chapter eid="GEN 2"/>
</usx>`

func TestProduce(t *testing.T) {
	p, err := parser.Parse(New([]byte(genesisUSX)))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got := p.Headers(); got["id"] != "GEN" || got["usxVersion"] != "3.0" {
		t.Errorf("Headers() = %v", got)
	}

	counts := map[string]int{}
	for _, s := range p.Sequences() {
		counts[s.Type]++
	}
	want := map[string]int{parser.SeqMain: 1, parser.SeqTitle: 2, parser.SeqHeading: 1, parser.SeqFootnote: 1}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("sequence types = %v, want %v", counts, want)
	}

	main := p.Main()
	if len(main.Blocks) != 2 {
		t.Fatalf("len(main.Blocks) = %d, want 2", len(main.Blocks))
	}
	first := main.Blocks[0]
	if first.Scope.Scope.Label != "blockTag/p" || len(first.Grafts) != 3 {
		t.Errorf("first block = %s with %d grafts, want blockTag/p with 3", first.Scope.Scope.Label, len(first.Grafts))
	}
	if first.Items[0] != succinct.StartScope("chapter/1") || first.Items[1] != succinct.StartScope("verse/1") {
		t.Errorf("first block opens with %v %v", first.Items[0], first.Items[1])
	}
	last := first.Items[len(first.Items)-1]
	if last != succinct.EndScope("chapter/1") {
		t.Errorf("first block ends with %v, want chapter/1 end", last)
	}

	second := main.Blocks[1]
	opening := []succinct.Item{
		succinct.StartScope("chapter/2"),
		succinct.StartScope("verses/1-2"),
		succinct.StartScope("verse/1"),
		succinct.StartScope("verse/2"),
		succinct.NewToken(succinct.TokenWordLike, "Thus"),
		succinct.NewToken(succinct.TokenNoBreakSpace, "\u00a0"),
	}
	if !reflect.DeepEqual(second.Items[:len(opening)], opening) {
		t.Errorf("second block opens with %v", second.Items[:len(opening)])
	}
}

func TestPublishedNumbers(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []succinct.Item
	}{
		{
			name: "milestone attributes",
			src: `<usx version="3.0">
  <book code="PSA" style="id"/>
  <chapter number="3" style="c" pubnumber="III"/>
  <para style="p"><verse number="1" style="v" altnumber="2"/>LORD.</para>
</usx>`,
			want: []succinct.Item{
				succinct.StartScope("chapter/3"),
				succinct.StartScope("pubChapter/III"),
				succinct.StartScope("verse/1"),
				succinct.StartScope("altVerse/2"),
				succinct.NewToken(succinct.TokenWordLike, "LORD"),
				succinct.NewToken(succinct.TokenPunctuation, "."),
				succinct.EndScope("altVerse/2"),
				succinct.EndScope("verse/1"),
				succinct.EndScope("pubChapter/III"),
				succinct.EndScope("chapter/3"),
			},
		},
		{
			name: "vp and va chars with a cp para",
			src: `<usx version="3.0">
  <book code="EST" style="id"/>
  <chapter number="1" style="c"/>
  <para style="cp">A</para>
  <para style="p"><verse number="1" style="v"/><char style="vp">1a</char>Hear <char style="va">2</char>me.</para>
</usx>`,
			want: []succinct.Item{
				succinct.StartScope("chapter/1"),
				succinct.StartScope("pubChapter/A"),
				succinct.StartScope("verse/1"),
				succinct.StartScope("pubVerse/1a"),
				succinct.NewToken(succinct.TokenWordLike, "Hear"),
				succinct.NewToken(succinct.TokenLineSpace, " "),
				succinct.StartScope("altVerse/2"),
				succinct.NewToken(succinct.TokenWordLike, "me"),
				succinct.NewToken(succinct.TokenPunctuation, "."),
				succinct.EndScope("altVerse/2"),
				succinct.EndScope("pubVerse/1a"),
				succinct.EndScope("verse/1"),
				succinct.EndScope("pubChapter/A"),
				succinct.EndScope("chapter/1"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parser.Parse(New([]byte(tt.src)))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if got := p.Main().Blocks[0].Items; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("items = %v, want %v", got, tt.want)
			}
			for _, s := range p.Sequences() {
				if s.Type == parser.SeqNumber {
					t.Errorf("number sequence %s left after parse", s.ID)
				}
			}
		})
	}
}

func TestVerseBridgeBound(t *testing.T) {
	tests := []struct {
		number string
		want   []string
	}{
		{"4-6", []string{"verses/4-6", "verse/4", "verse/5", "verse/6"}},
		{"1-20000000", []string{"verses/1-20000000", "verse/1"}},
		{"6-4", []string{"verses/6-4", "verse/6"}},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			src := `<usx version="3.0"><book code="GEN" style="id"/><chapter number="1" style="c"/>
<para style="p"><verse number="` + tt.number + `" style="v"/>Text</para></usx>`
			p, err := parser.Parse(New([]byte(src)))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			var got []string
			for _, it := range p.Main().Blocks[0].Items {
				if it.Kind == succinct.KindStartScope && it.ScopeKindName() != "chapter" {
					got = append(got, it.Scope.Label)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("verse scopes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChapterNumberSanitized(t *testing.T) {
	const src = `<usx version="3.0"><book code="GEN" style="id"/><chapter number="1/2" style="c"/>
<para style="p">Text</para></usx>`
	p, err := parser.Parse(New([]byte(src)))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if first := p.Main().Blocks[0].Items[0]; first != succinct.StartScope("chapter/1_2") {
		t.Errorf("first item = %v, want chapter/1_2 start", first)
	}
}

func TestImportAndQuery(t *testing.T) {
	ds := docset.New("eng_web", map[string]string{"lang": "eng", "abbr": "web"})
	d, err := ds.Import(New([]byte(genesisUSX)))
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}

	tests := []struct {
		ref, text string
	}{
		{"1:1", "In the beginning, God created the heavens."},
		{"1:2", "The earth was formless."},
		{"2:1", "Thus\u00a0finished."},
		{"2:2", "Thus\u00a0finished."},
	}
	for _, tt := range tests {
		got, err := d.TextForReference(tt.ref)
		if err != nil {
			t.Fatalf("TextForReference(%s) error: %v", tt.ref, err)
		}
		if got != tt.text {
			t.Errorf("TextForReference(%s) = %q, want %q", tt.ref, got, tt.text)
		}
	}

	for id, s := range d.Sequences {
		if s.Type != parser.SeqFootnote {
			continue
		}
		text, err := d.Text(id)
		if err != nil || text != "Or, void" {
			t.Errorf("footnote text = %q, %v", text, err)
		}
	}

	items, err := d.BlockItemsWithScopes(d.MainID, 0, []string{"span/nd"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 || items[1].Token.Text != "God" {
		t.Errorf("span/nd items = %v", items)
	}
}

func TestTokenize(t *testing.T) {
	p := parser.New()
	w := &walker{p: p}
	if err := w.startBlock("p"); err != nil {
		t.Fatal(err)
	}
	if err := w.text("  Hello,  world! ¶ "); err != nil {
		t.Fatal(err)
	}
	got := p.Main().Blocks[0].Items
	want := []succinct.Item{
		succinct.NewToken(succinct.TokenWordLike, "Hello"),
		succinct.NewToken(succinct.TokenPunctuation, ","),
		succinct.NewToken(succinct.TokenLineSpace, " "),
		succinct.NewToken(succinct.TokenWordLike, "world"),
		succinct.NewToken(succinct.TokenPunctuation, "!"),
		succinct.NewToken(succinct.TokenLineSpace, " "),
		succinct.NewToken(succinct.TokenPunctuation, "¶"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokens = %v, want %v", got, want)
	}
}

func TestProduceErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not xml", `<usx><para></usx>`},
		{"wrong root", `<usfm><book code="GEN"/></usfm>`},
		{"no book", `<usx version="3.0"><para style="p">text</para></usx>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(New([]byte(tt.data)))
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Parse error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(t.TempDir() + "/missing.usx"); err == nil {
		t.Error("ReadFile(missing) succeeded")
	}
}
