package domain

import (
	"encoding/json"
	"fmt"
)

// Wire event type tags. These are the discriminator values carried in the
// "type" field of every pushed frame; server and client share this one set.
const (
	EventTypeJoin      = "join"
	EventTypeUpdate    = "update"
	EventTypeTerminate = "terminate"
	EventTypeRefresh   = "refresh"
)

// Site refresh reasons.
const (
	RefreshReasonSessionCreate = "session:create"
	RefreshReasonSessionUpdate = "session:update"
	RefreshReasonVote          = "vote"
)

// Event is the closed set of push notifications. The concrete types are
// Joined, TopicUpdated, Terminated and SiteRefresh; nothing else implements
// the interface.
type Event interface {
	EventType() string
	isEvent()
}

// Joined signals that a session's participant set changed. Either UserID
// (joiner) or LeaverID is set; clients treat both as "re-fetch participants".
type Joined struct {
	UserID   string `json:"userId,omitempty"`
	LeaverID string `json:"leaverId,omitempty"`
}

func (Joined) EventType() string { return EventTypeJoin }
func (Joined) isEvent()          {}

// TopicUpdated signals that the session's current discussion topic changed.
type TopicUpdated struct {
	CurrentTopicID int `json:"currentTopicId"`
}

func (TopicUpdated) EventType() string { return EventTypeUpdate }
func (TopicUpdated) isEvent()          {}

// Terminated signals that the session has been closed for good. It is
// published exactly once per session and is the last event on that key.
type Terminated struct{}

func (Terminated) EventType() string { return EventTypeTerminate }
func (Terminated) isEvent()          {}

// SiteRefresh tells site-wide subscribers that shared metadata (topics,
// public sessions) changed and a full refetch is due.
type SiteRefresh struct {
	Reason    string `json:"reason"`
	SessionID string `json:"sessionId,omitempty"`
	TopicID   int    `json:"topicId,omitempty"`
}

func (SiteRefresh) EventType() string { return EventTypeRefresh }
func (SiteRefresh) isEvent()          {}

// frame is the wire envelope: {"type": "...", "data": {...}}.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EncodeEvent serializes an event into its wire envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	var data json.RawMessage
	switch ev.(type) {
	case Terminated, *Terminated:
		// terminate carries no payload
	default:
		raw, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		data = raw
	}
	return json.Marshal(frame{Type: ev.EventType(), Data: data})
}

// DecodeEvent parses a wire envelope back into its tagged variant. Unknown
// tags are an error so a version-skewed peer is noticed instead of silently
// ignored.
func DecodeEvent(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse event frame: %w", err)
	}

	switch f.Type {
	case EventTypeJoin:
		var ev Joined
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &ev); err != nil {
				return nil, fmt.Errorf("failed to parse join payload: %w", err)
			}
		}
		return ev, nil
	case EventTypeUpdate:
		var ev TopicUpdated
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &ev); err != nil {
				return nil, fmt.Errorf("failed to parse update payload: %w", err)
			}
		}
		return ev, nil
	case EventTypeTerminate:
		return Terminated{}, nil
	case EventTypeRefresh:
		var ev SiteRefresh
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &ev); err != nil {
				return nil, fmt.Errorf("failed to parse refresh payload: %w", err)
			}
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", f.Type)
	}
}
