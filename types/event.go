// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

// Attribute is one key/value pair of an event.
type Attribute struct {
	Key   string `serialize:"true" json:"key"`
	Value string `serialize:"true" json:"value"`
}

// Event is a typed record of a state transition, kept in the block receipt.
type Event struct {
	Module     string      `serialize:"true" json:"module"`
	Type       string      `serialize:"true" json:"type"`
	Attributes []Attribute `serialize:"true" json:"attributes"`
}

func NewEvent(module, typ string, attrs ...Attribute) Event {
	return Event{Module: module, Type: typ, Attributes: attrs}
}

func NewAttribute(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Attribute returns the value of the first attribute named [key].
func (e Event) Attribute(key string) (string, bool) {
	for _, attr := range e.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// EventSink collects the events of one extrinsic.
type EventSink interface {
	Emit(Event)
}

// EventLog is an in-memory EventSink.
type EventLog struct {
	Events []Event
}

func (l *EventLog) Emit(e Event) { l.Events = append(l.Events, e) }

// Reset drops every event recorded so far.
func (l *EventLog) Reset() { l.Events = nil }
