package docset

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/juniper-succinct/core/bytearray"
	"github.com/FocuswithJustin/juniper-succinct/core/enums"
	"github.com/FocuswithJustin/juniper-succinct/core/errors"
)

// Serialized is the JSON form of a docset. Every byte stream is base64.
type Serialized struct {
	ID       string                        `json:"id"`
	Metadata Metadata                      `json:"metadata"`
	Enums    map[string]string             `json:"enums"`
	Docs     map[string]SerializedDocument `json:"docs"`
}

// Metadata carries the docset selectors.
type Metadata struct {
	Selectors map[string]string `json:"selectors"`
}

// SerializedDocument is the JSON form of a document.
type SerializedDocument struct {
	Headers   map[string]string             `json:"headers"`
	MainID    string                        `json:"mainId"`
	Tags      []string                      `json:"tags"`
	Sequences map[string]SerializedSequence `json:"sequences"`
}

// SerializedSequence is the JSON form of a sequence. Only main sequences
// carry the chapter/verse index, keyed by chapter number.
type SerializedSequence struct {
	Type          string            `json:"type"`
	Tags          []string          `json:"tags"`
	Blocks        []SerializedBlock `json:"blocks"`
	Chapters      map[string]string `json:"chapters,omitempty"`
	ChapterVerses map[string]string `json:"chapterVerses,omitempty"`
}

// SerializedBlock is the JSON form of a block. NT is the base64 of a single
// varint.
type SerializedBlock struct {
	BS string `json:"bs"`
	BG string `json:"bg"`
	C  string `json:"c"`
	IS string `json:"is"`
	OS string `json:"os"`
	NT string `json:"nt"`
}

// Serialize returns the JSON form of the docset. Streams are written as
// they are, so loading the result reproduces them byte for byte.
func (ds *DocSet) Serialize() (*Serialized, error) {
	out := &Serialized{
		ID:       ds.ID,
		Metadata: Metadata{Selectors: ds.Selectors},
		Enums:    ds.enums.Serialize(),
		Docs:     make(map[string]SerializedDocument, len(ds.docs)),
	}
	for id, d := range ds.docs {
		sd := SerializedDocument{
			Headers:   d.Headers,
			MainID:    d.MainID,
			Tags:      nonNil(d.Tags),
			Sequences: make(map[string]SerializedSequence, len(d.Sequences)),
		}
		for sid, s := range d.Sequences {
			ss, err := serializeSequence(s)
			if err != nil {
				return nil, fmt.Errorf("document %s sequence %s: %w", id, sid, err)
			}
			sd.Sequences[sid] = ss
		}
		out.Docs[id] = sd
	}
	return out, nil
}

func serializeSequence(s *Sequence) (SerializedSequence, error) {
	ss := SerializedSequence{
		Type:   s.Type,
		Tags:   nonNil(s.Tags),
		Blocks: make([]SerializedBlock, len(s.Blocks)),
	}
	for i, b := range s.Blocks {
		nt := bytearray.New(bytearray.MaxVarIntBytes)
		if err := nt.PushVarInt(b.NextToken); err != nil {
			return ss, fmt.Errorf("block %d: %w", i, err)
		}
		nt.Trim()
		ss.Blocks[i] = SerializedBlock{
			BS: b.BS.Base64(),
			BG: b.BG.Base64(),
			C:  b.C.Base64(),
			IS: b.IS.Base64(),
			OS: b.OS.Base64(),
			NT: nt.Base64(),
		}
	}
	if s.IsMain() && s.indexed {
		ss.Chapters = make(map[string]string, len(s.Chapters))
		for n, ba := range s.Chapters {
			ss.Chapters[strconv.Itoa(n)] = ba.Base64()
		}
		ss.ChapterVerses = make(map[string]string, len(s.ChapterVerses))
		for n, ba := range s.ChapterVerses {
			ss.ChapterVerses[strconv.Itoa(n)] = ba.Base64()
		}
	}
	return ss, nil
}

// MarshalJSON encodes the docset in its serialized form.
func (ds *DocSet) MarshalJSON() ([]byte, error) {
	s, err := ds.Serialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// Load rebuilds a docset from its serialized form. Main sequences with a
// serialized index come back indexed; the others must be rebuilt with
// BuildChapterVerseIndex before reference queries.
func Load(s *Serialized) (*DocSet, error) {
	set, err := enums.LoadSet(s.Enums)
	if err != nil {
		return nil, err
	}
	ds := New(s.ID, s.Metadata.Selectors)
	ds.enums = set
	for id, sd := range s.Docs {
		d := &Document{
			ID:        id,
			Headers:   sd.Headers,
			MainID:    sd.MainID,
			Tags:      sortedTags(sd.Tags),
			Sequences: make(map[string]*Sequence, len(sd.Sequences)),
			docSet:    ds,
		}
		if d.Headers == nil {
			d.Headers = map[string]string{}
		}
		for sid, ss := range sd.Sequences {
			seq, err := loadSequence(sid, ss)
			if err != nil {
				return nil, fmt.Errorf("document %s sequence %s: %w", id, sid, err)
			}
			d.Sequences[sid] = seq
		}
		main, ok := d.Sequences[d.MainID]
		if !ok || !main.IsMain() {
			return nil, &errors.ParseError{Format: "docset", Message: fmt.Sprintf("document %s has no main sequence %q", id, d.MainID), Err: errors.ErrInvalidValue}
		}
		ds.docs[id] = d
	}
	return ds, nil
}

func loadSequence(id string, ss SerializedSequence) (*Sequence, error) {
	if ss.Type == "" {
		return nil, &errors.ParseError{Format: "docset", Message: "sequence without type", Err: errors.ErrInvalidValue}
	}
	seq := &Sequence{ID: id, Type: ss.Type, Tags: sortedTags(ss.Tags), Blocks: make([]*Block, len(ss.Blocks))}
	for i, sb := range ss.Blocks {
		b, err := loadBlock(sb)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		seq.Blocks[i] = b
	}
	if seq.IsMain() && ss.Chapters != nil {
		chapters, err := loadIndexMap(ss.Chapters)
		if err != nil {
			return nil, fmt.Errorf("chapters: %w", err)
		}
		chapterVerses, err := loadIndexMap(ss.ChapterVerses)
		if err != nil {
			return nil, fmt.Errorf("chapterVerses: %w", err)
		}
		seq.Chapters, seq.ChapterVerses, seq.indexed = chapters, chapterVerses, true
	}
	return seq, nil
}

func loadBlock(sb SerializedBlock) (*Block, error) {
	var b Block
	streams := []struct {
		dst **bytearray.ByteArray
		src string
	}{
		{&b.BS, sb.BS}, {&b.BG, sb.BG}, {&b.C, sb.C}, {&b.IS, sb.IS}, {&b.OS, sb.OS},
	}
	for _, st := range streams {
		ba, err := bytearray.FromBase64(st.src)
		if err != nil {
			return nil, err
		}
		*st.dst = ba
	}
	nt, err := bytearray.FromBase64(sb.NT)
	if err != nil {
		return nil, err
	}
	b.NextToken, _, err = nt.VarInt(0)
	if err != nil {
		return nil, fmt.Errorf("nt: %w", err)
	}
	return &b, nil
}

func loadIndexMap(m map[string]string) (map[int]*bytearray.ByteArray, error) {
	out := make(map[int]*bytearray.ByteArray, len(m))
	for k, v := range m {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, &errors.ParseError{Format: "docset", Message: fmt.Sprintf("chapter key %q", k), Err: errors.ErrInvalidValue}
		}
		ba, err := bytearray.FromBase64(v)
		if err != nil {
			return nil, err
		}
		out[n] = ba
	}
	return out, nil
}

// LoadJSON parses the JSON form of a docset.
func LoadJSON(data []byte) (*DocSet, error) {
	var s Serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &errors.ParseError{Format: "docset", Message: err.Error(), Err: errors.ErrInvalidValue}
	}
	return Load(&s)
}

// Verify decodes every stream of every block and checks each block scope.
func (ds *DocSet) Verify() error {
	for _, d := range ds.Documents() {
		for _, sid := range d.SequenceIDs() {
			for i, b := range d.Sequences[sid].Blocks {
				if _, err := b.decode(ds.enums); err != nil {
					return fmt.Errorf("document %s sequence %s block %d: %w", d.ID, sid, i, err)
				}
				if _, err := b.IncludedScopes(ds.enums); err != nil {
					return fmt.Errorf("document %s sequence %s block %d: %w", d.ID, sid, i, err)
				}
			}
		}
	}
	return nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
