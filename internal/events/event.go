// Package events defines the event model published by a terminal session and
// the in-process bus that fans events out to subscribers.
package events

import (
	"encoding/json"
	"fmt"
)

// Type tags an event on the wire.
type Type string

const (
	// TypeInit is fired once per subscriber at subscription time with the
	// full current screen state.
	TypeInit Type = "init"
	// TypeOutput carries the raw bytes the child wrote since the previous
	// output event, decoded lossily to UTF-8.
	TypeOutput Type = "output"
	// TypeResize is fired after a successful resize command.
	TypeResize Type = "resize"
	// TypeSnapshot is fired after a takeSnapshot command.
	TypeSnapshot Type = "snapshot"
)

// ParseType validates a single event type tag.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeInit, TypeOutput, TypeResize, TypeSnapshot:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// ParseTypes validates a list of event type tags into a filter set.
func ParseTypes(names []string) (map[Type]bool, error) {
	filter := make(map[Type]bool, len(names))
	for _, name := range names {
		t, err := ParseType(name)
		if err != nil {
			return nil, err
		}
		filter[t] = true
	}
	return filter, nil
}

// Event is the envelope every sink serializes: a type tag plus a payload.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// InitData is the payload of an init event.
type InitData struct {
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
	Pid  int    `json:"pid"`
	Text string `json:"text"`
	Seq  string `json:"seq"`
}

// OutputData is the payload of an output event.
type OutputData struct {
	Seq string `json:"seq"`
}

// ResizeData is the payload of a resize event.
type ResizeData struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// SnapshotData is the payload of a snapshot event.
type SnapshotData struct {
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
	Text string `json:"text"`
	Seq  string `json:"seq"`
}

// Marshal renders the event as a single JSON object.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
