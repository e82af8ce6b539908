package parser

import (
	"fmt"

	"github.com/FocuswithJustin/juniper-succinct/core/errors"
	"github.com/FocuswithJustin/juniper-succinct/core/succinct"
)

// Event types of the producer stream.
const (
	EventToken       = "token"
	EventScope       = "scope"
	EventGraft       = "graft"
	EventBlock       = "block"
	EventSequence    = "sequence"
	EventEndSequence = "endSequence"
	EventHeader      = "header"
	EventTag         = "tag"
)

// Event is one record of a producer stream.
//
//	token        SubType: token type        Payload: text
//	scope        SubType: "start" | "end"   Payload: scope label
//	graft        SubType: graft type        Payload: target sequence id
//	block        Payload: block scope label
//	sequence     SubType: sequence type     Payload: graft type
//	endSequence
//	header       SubType: key               Payload: value
//	tag          Payload: tag
type Event struct {
	Type    string `json:"type"`
	SubType string `json:"subType,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// Producer feeds a parser. Lexers for each markup format implement it.
type Producer interface {
	Produce(p *Parser) error
}

// Events is a Producer replaying a recorded event stream.
type Events []Event

// Produce applies every event in order.
func (evs Events) Produce(p *Parser) error {
	for i, ev := range evs {
		if err := p.Apply(ev); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, ev.Type, err)
		}
	}
	return nil
}

// Apply feeds a single event to the parser.
func (p *Parser) Apply(ev Event) error {
	switch ev.Type {
	case EventToken:
		tt, err := succinct.ParseTokenType(ev.SubType)
		if err != nil {
			return err
		}
		return p.AddItem(succinct.NewToken(tt, ev.Payload))
	case EventScope:
		switch ev.SubType {
		case "start":
			return p.AddItem(succinct.StartScope(ev.Payload))
		case "end":
			return p.AddItem(succinct.EndScope(ev.Payload))
		}
		return fmt.Errorf("scope boundary %q: %w", ev.SubType, errors.ErrInvalidValue)
	case EventGraft:
		return p.AddGraft(ev.SubType, ev.Payload)
	case EventBlock:
		return p.NewBlock(ev.Payload)
	case EventSequence:
		_, err := p.BeginSequence(ev.SubType, ev.Payload)
		return err
	case EventEndSequence:
		return p.EndSequence()
	case EventHeader:
		p.SetHeader(ev.SubType, ev.Payload)
		return nil
	case EventTag:
		p.AddTag(ev.Payload)
		return nil
	}
	return fmt.Errorf("event type %q: %w", ev.Type, errors.ErrInvalidValue)
}

// Parse runs producer against a fresh parser, resolves number grafts and
// tidies the result.
func Parse(producer Producer) (*Parser, error) {
	p := New()
	if err := producer.Produce(p); err != nil {
		return nil, err
	}
	if err := p.ResolveNumbers(); err != nil {
		return nil, err
	}
	p.Tidy()
	return p, nil
}
