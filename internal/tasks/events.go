package tasks

import "encoding/json"

// EventKind names a push event.
type EventKind int

const (
	EventUpdate EventKind = iota
	EventError
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventUpdate:
		return "update"
	case EventError:
		return "error"
	case EventRemoved:
		return "removed"
	default:
		return ""
	}
}

// Event is one message pushed to a client.
type Event struct {
	Kind EventKind
	Data []byte
}

// MarshalJSON encodes the event as a {"event", "data"} frame.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Data  string `json:"data"`
	}{e.Kind.String(), string(e.Data)})
}

func updateEvent(rendered []byte) Event {
	return Event{Kind: EventUpdate, Data: rendered}
}

func errorEvent(err error) Event {
	return Event{Kind: EventError, Data: []byte(err.Error())}
}

func removedEvent() Event {
	return Event{Kind: EventRemoved, Data: []byte("torrent removed")}
}
