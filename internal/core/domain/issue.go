package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IssueState represents the lifecycle state reported by the tracker.
type IssueState string

const (
	StateOpened IssueState = "opened"
	StateClosed IssueState = "closed"
)

// IsValid reports whether the state is one the board knows how to place.
func (s IssueState) IsValid() bool {
	return s == StateOpened || s == StateClosed
}

// Inverse returns the opposite lifecycle state.
func (s IssueState) Inverse() IssueState {
	if s == StateClosed {
		return StateOpened
	}
	return StateClosed
}

// Action is the verb carried by an issue webhook event.
type Action string

const (
	ActionOpen   Action = "open"
	ActionClose  Action = "close"
	ActionReopen Action = "reopen"
)

// ToggleAction returns the verb that moves an issue out of its current state.
func ToggleAction(current IssueState) Action {
	if current == StateClosed {
		return ActionReopen
	}
	return ActionClose
}

// ResultState returns the state an issue ends up in after the action.
func (a Action) ResultState() IssueState {
	if a == ActionClose {
		return StateClosed
	}
	return StateOpened
}

// IsMutation reports whether the action can be sent to the tracker as a
// state_event.
func (a Action) IsMutation() bool {
	return a == ActionClose || a == ActionReopen
}

// ItemID is the stable identifier of an issue. The tracker sends numbers,
// but opaque string identifiers are accepted as well.
type ItemID string

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("item id must be a number or string: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

// MarshalJSON writes canonical integer identifiers back as numbers. Any
// other id, including digit strings with a leading zero, stays a string.
func (id ItemID) MarshalJSON() ([]byte, error) {
	if isCanonicalInteger(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ItemID) String() string {
	return string(id)
}

func isCanonicalInteger(s string) bool {
	if s == "" || (s[0] == '0' && s != "0") {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) == -1
}

// Issue is the transient, display-only copy of a tracker issue.
type Issue struct {
	ID          ItemID     `json:"id"`
	IID         int64      `json:"iid"`
	State       IssueState `json:"state"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

// IIDString formats the project-scoped sequence number for URLs.
func (i Issue) IIDString() string {
	return strconv.FormatInt(i.IID, 10)
}

// Author is the label attached to a comment.
type Author struct {
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
}

// MaxCommentBodyLength bounds comments accepted by the relay.
const MaxCommentBodyLength = 10000

// Comment belongs to exactly one issue. It is never stored beyond the
// current view.
type Comment struct {
	ID     ItemID `json:"id"`
	Body   string `json:"body"`
	Author Author `json:"author"`
}

// FilterComments drops comments written by the given author name. An empty
// name disables filtering.
func FilterComments(comments []Comment, botAuthor string) []Comment {
	if botAuthor == "" {
		return comments
	}
	kept := make([]Comment, 0, len(comments))
	for _, c := range comments {
		if c.Author.Name == botAuthor {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
