package parser

import (
	"reflect"
	"testing"

	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

func numberSeq(graftType, text string) Events {
	evs := Events{
		{Type: EventSequence, SubType: SeqNumber, Payload: graftType},
		{Type: EventBlock, Payload: "blockTag/" + graftType},
	}
	if text != "" {
		evs = append(evs, Event{Type: EventToken, SubType: "wordLike", Payload: text})
	}
	return append(evs, Event{Type: EventEndSequence})
}

func TestResolveNumbers(t *testing.T) {
	var evs Events
	evs = append(evs,
		Event{Type: EventBlock, Payload: "blockTag/p"},
		// No verse is open yet, so this number is dropped.
		Event{Type: EventToken, SubType: "wordLike", Payload: "Intro"},
	)
	evs = append(evs, numberSeq("pubVerse", "0")...)
	evs = append(evs,
		Event{Type: EventScope, SubType: "start", Payload: "verse/4"},
	)
	evs = append(evs, numberSeq("pubVerse", "4b")...)
	evs = append(evs, numberSeq("altVerse", "")...)
	evs = append(evs,
		Event{Type: EventToken, SubType: "wordLike", Payload: "Text"},
		Event{Type: EventBlock, Payload: "blockTag/q1"},
		Event{Type: EventToken, SubType: "wordLike", Payload: "More"},
		Event{Type: EventScope, SubType: "end", Payload: "verse/4"},
	)

	p, err := Parse(evs)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	main := p.Main()
	if len(main.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(main.Blocks))
	}
	want := [][]succinct.Item{
		{
			succinct.NewToken(succinct.TokenWordLike, "Intro"),
			succinct.StartScope("verse/4"),
			succinct.StartScope("pubVerse/4b"),
			succinct.NewToken(succinct.TokenWordLike, "Text"),
		},
		{
			succinct.NewToken(succinct.TokenWordLike, "More"),
			succinct.EndScope("pubVerse/4b"),
			succinct.EndScope("verse/4"),
		},
	}
	for i, b := range main.Blocks {
		if !reflect.DeepEqual(b.Items, want[i]) {
			t.Errorf("block %d items = %v, want %v", i, b.Items, want[i])
		}
	}
	if n := len(p.Sequences()); n != 1 {
		t.Errorf("%d sequences after resolution, want only main", n)
	}
}
