// Package harvest reconstructs a chat conversation from a live, virtualized message list.
// It scrolls the list to load older content, walks the materialized items, drops items
// already seen in an earlier pass, and turns each remaining item into ordered
// "sender: content" records.
//
// The package depends only on the capability interfaces below. Concrete UI adapters
// (see internal/browser) implement them.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy. Only ErrConnectionLost (and context cancellation) aborts a harvest;
// the others describe conditions that are tolerated locally.
var (
	// ErrConnectionLost means the host window or its list control can no longer be reached.
	ErrConnectionLost = errors.New("connection to host window lost")
	// ErrAffordanceNotFound is returned by a probe when no "load more" control is present.
	ErrAffordanceNotFound = errors.New("load-more affordance not found")
	// ErrListNotFound is returned by a Connector that cannot locate the conversation list.
	ErrListNotFound = errors.New("conversation list not found")
	// ErrMalformedElement marks an item whose text leaves are missing or unreadable.
	ErrMalformedElement = errors.New("malformed element")
)

// MessageRecord is one harvested message. Order is the capture position within a single
// harvest, oldest capture first.
type MessageRecord struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

// String renders the record the way downstream consumers expect it.
func (r MessageRecord) String() string {
	return r.Sender + ": " + r.Content
}

// TextBearingElement exposes displayed text.
type TextBearingElement interface {
	Text(ctx context.Context) (string, error)
}

// Clickable can be activated.
type Clickable interface {
	Click(ctx context.Context) error
}

// Scrollable can be scrolled by a wheel distance. Positive distances move toward older content.
type Scrollable interface {
	Scroll(ctx context.Context, distance int) error
}

// Item is one materialized list item in the external UI tree.
type Item interface {
	TextBearingElement
	// Role is the control role reported by the platform (e.g. "listitem").
	Role() string
	// RuntimeID returns the platform-assigned identifier, if the platform exposes one.
	RuntimeID() (string, bool)
	// TextLeaves returns the item's text-bearing descendants in displayed order.
	TextLeaves(ctx context.Context) ([]TextBearingElement, error)
}

// ListControl is the scrollable conversation list.
type ListControl interface {
	Scrollable
	// Items returns the currently materialized items in on-screen order.
	Items(ctx context.Context) ([]Item, error)
	// ProbeLoadMore waits at most timeout for a "load more" control. It returns
	// ErrAffordanceNotFound when there is none.
	ProbeLoadMore(ctx context.Context, timeout time.Duration) (Clickable, error)
}

// Connector locates the conversation list inside the host window.
type Connector interface {
	LocateConversationList(ctx context.Context) (ListControl, error)
}

// ConnectorFunc adapts a plain function to Connector.
type ConnectorFunc func(ctx context.Context) (ListControl, error)

// LocateConversationList calls f.
func (f ConnectorFunc) LocateConversationList(ctx context.Context) (ListControl, error) {
	return f(ctx)
}

// ElementHandle is a point-in-time view of one list item: its identity inputs and the
// trimmed text of its leaves. It must not outlive the scroll pass that produced it.
type ElementHandle struct {
	RuntimeID string
	Name      string
	Role      string
	Leaves    []string
}

// IdentityKind tells which form an Identity was derived from.
type IdentityKind uint8

const (
	// IdentityRuntime is derived from a platform runtime identifier.
	IdentityRuntime IdentityKind = iota + 1
	// IdentityComposite is derived from displayed name and role. Distinct items with the
	// same text and role collapse into one identity.
	IdentityComposite
)

// Identity is the deduplication key for an element. It is comparable and used directly
// as a map key.
type Identity struct {
	Kind IdentityKind
	Key  string
	Role string
}

// Identity derives the deduplication key, preferring the runtime identifier.
func (h ElementHandle) Identity() Identity {
	if h.RuntimeID != "" {
		return Identity{Kind: IdentityRuntime, Key: h.RuntimeID}
	}
	return Identity{Kind: IdentityComposite, Key: h.Name, Role: h.Role}
}

func (id Identity) String() string {
	if id.Kind == IdentityRuntime {
		return "rt:" + id.Key
	}
	return fmt.Sprintf("name:%q/%s", id.Key, id.Role)
}

// Transcript serializes records as newline-separated "sender: content" lines.
func Transcript(records []MessageRecord) string {
	var sb strings.Builder
	for i, r := range records {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(r.String())
	}
	return sb.String()
}

// Tail returns the last n records, or all of them when n <= 0 or n exceeds the length.
func Tail(records []MessageRecord, n int) []MessageRecord {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[len(records)-n:]
}
