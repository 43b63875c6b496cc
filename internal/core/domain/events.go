package domain

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
)

// EventKind names the envelope categories the relay understands.
type EventKind string

const (
	KindIssue EventKind = "issue"
	KindNote  EventKind = "note"
)

// Event is either a StateChange or a Note.
type Event interface {
	Kind() EventKind
	TargetID() ItemID
}

// StateChange reports an issue being opened, closed or reopened.
type StateChange struct {
	Action Action
	Issue  Issue
}

func (e StateChange) Kind() EventKind  { return KindIssue }
func (e StateChange) TargetID() ItemID { return e.Issue.ID }

// Note reports a comment added to an issue.
type Note struct {
	IssueID ItemID
	Body    string
	Author  Author
}

func (e Note) Kind() EventKind  { return KindNote }
func (e Note) TargetID() ItemID { return e.IssueID }

// Envelope is the tracker's native webhook body. The relay forwards it
// unmodified; only viewers decode it.
type Envelope struct {
	ObjectKind       string          `json:"object_kind"`
	EventType        string          `json:"event_type"`
	User             *Author         `json:"user,omitempty"`
	ObjectAttributes json.RawMessage `json:"object_attributes"`
}

// Category returns the event type, falling back to the object kind.
func (e Envelope) Category() EventKind {
	if e.EventType != "" {
		return EventKind(e.EventType)
	}
	return EventKind(e.ObjectKind)
}

type issueAttributes struct {
	ID          ItemID     `json:"id"`
	IID         int64      `json:"iid"`
	State       IssueState `json:"state"`
	Action      Action     `json:"action"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

type noteAttributes struct {
	Note         string `json:"note"`
	NoteableID   ItemID `json:"noteable_id"`
	NoteableType string `json:"noteable_type"`
}

// DecodeEvent parses a broadcast payload into an Event. It returns an error
// wrapping ErrMalformedEvent when the payload cannot be parsed, and
// ErrUnsupportedEvent for well-formed envelopes the board does not react to.
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedEvent, err)
	}
	if len(env.ObjectAttributes) == 0 || string(env.ObjectAttributes) == "null" {
		return nil, fmt.Errorf("%w: missing object_attributes", apperrors.ErrMalformedEvent)
	}

	if env.Category() == KindNote {
		return decodeNote(env)
	}
	return decodeStateChange(env)
}

func decodeNote(env Envelope) (Event, error) {
	var attrs noteAttributes
	if err := json.Unmarshal(env.ObjectAttributes, &attrs); err != nil {
		return nil, fmt.Errorf("%w: note attributes: %v", apperrors.ErrMalformedEvent, err)
	}
	if attrs.NoteableID == "" {
		return nil, fmt.Errorf("%w: note without noteable_id", apperrors.ErrMalformedEvent)
	}
	if attrs.NoteableType != "" && attrs.NoteableType != "Issue" {
		return nil, fmt.Errorf("%w: note on %s", apperrors.ErrUnsupportedEvent, attrs.NoteableType)
	}

	note := Note{IssueID: attrs.NoteableID, Body: attrs.Note}
	if env.User != nil {
		note.Author = *env.User
	}
	return note, nil
}

func decodeStateChange(env Envelope) (Event, error) {
	var attrs issueAttributes
	if err := json.Unmarshal(env.ObjectAttributes, &attrs); err != nil {
		return nil, fmt.Errorf("%w: issue attributes: %v", apperrors.ErrMalformedEvent, err)
	}

	switch attrs.Action {
	case ActionOpen, ActionClose, ActionReopen:
	default:
		return nil, fmt.Errorf("%w: action %q", apperrors.ErrUnsupportedEvent, attrs.Action)
	}
	if attrs.ID == "" {
		return nil, fmt.Errorf("%w: issue event without id", apperrors.ErrMalformedEvent)
	}

	state := attrs.State
	if !state.IsValid() {
		state = attrs.Action.ResultState()
	}

	return StateChange{
		Action: attrs.Action,
		Issue: Issue{
			ID:          attrs.ID,
			IID:         attrs.IID,
			State:       state,
			Title:       attrs.Title,
			Description: attrs.Description,
		},
	}, nil
}
