// Package types holds the chat data model and the validated decode step
// that guards the boundary with the backend.
package types

import (
	"fmt"
	"time"
)

// User presence, client-local only.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// Delivery is the confirmation state of a message held by the feed.
// A failed send is removed outright, so there is no failed state here.
type Delivery int

const (
	DeliveryPending Delivery = iota
	DeliveryConfirmed
)

func (d Delivery) String() string {
	if d == DeliveryPending {
		return "pending"
	}
	return "confirmed"
}

// User is a backend user as seen by the client. Immutable for the session
// lifetime once resolved, except Status which never leaves this process.
type User struct {
	ID     string
	Name   string
	Email  string
	Avatar string
	Status string
}

// Channel is a named message stream. MemberCount and UnreadCount are
// display hints; the backend does not report them on list/create.
type Channel struct {
	ID          string
	Name        string
	Description string
	IsPrivate   bool
	MemberCount int
	UnreadCount int
}

// Reaction is one emoji aggregated over the users who applied it.
// Count == len(Users) always.
type Reaction struct {
	Emoji string
	Count int
	Users []string
}

// Message is one entry of the feed. ID is a locally generated temp id
// while Delivery is pending, the server id once confirmed.
type Message struct {
	ID        string
	Content   string
	Timestamp time.Time
	User      User
	Reactions []Reaction
	IsPinned  bool
	PinnedBy  string
	Delivery  Delivery
}

// FieldError reports a required field missing or malformed in a backend
// record.
type FieldError struct {
	Record string
	Field  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s record: missing or invalid field %q", e.Record, e.Field)
}
