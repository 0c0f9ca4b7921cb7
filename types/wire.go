package types

import (
	"time"
)

// Wire records mirror the backend JSON exactly. Channels use snake_case,
// messages keep the camelCase pin fields the backend emits.

type UserRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Status string `json:"status,omitempty"`
}

type ReactionRecord struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

type MessageRecord struct {
	ID        string           `json:"id"`
	Content   string           `json:"content"`
	Timestamp string           `json:"timestamp"`
	User      *UserRecord      `json:"user"`
	Reactions []ReactionRecord `json:"reactions"`
	IsPinned  bool             `json:"isPinned"`
	PinnedBy  string           `json:"pinnedBy,omitempty"`
}

type ChannelRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

// DecodeUser validates a user record. Every field is required: the
// current-user resolution must fail fast on a bad record instead of
// leaving the session half-initialized.
func DecodeUser(rec UserRecord) (User, error) {
	for field, v := range map[string]string{
		"id": rec.ID, "name": rec.Name, "email": rec.Email, "avatar": rec.Avatar,
	} {
		if v == "" {
			return User{}, &FieldError{Record: "user", Field: field}
		}
	}
	status := rec.Status
	if status == "" {
		status = StatusOnline
	}
	return User{
		ID:     rec.ID,
		Name:   rec.Name,
		Email:  rec.Email,
		Avatar: rec.Avatar,
		Status: status,
	}, nil
}

// DecodeMessage validates a message record from history, a send response
// or a new-message event. The timestamp is RFC3339 with or without zone,
// as emitted by the backend's isoformat.
func DecodeMessage(rec MessageRecord) (Message, error) {
	if rec.ID == "" {
		return Message{}, &FieldError{Record: "message", Field: "id"}
	}
	if rec.User == nil {
		return Message{}, &FieldError{Record: "message", Field: "user"}
	}
	user, err := DecodeUser(*rec.User)
	if err != nil {
		return Message{}, err
	}
	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return Message{}, &FieldError{Record: "message", Field: "timestamp"}
	}

	reactions := make([]Reaction, 0, len(rec.Reactions))
	for _, r := range rec.Reactions {
		// The aggregation is server-computed; trust the users set and
		// re-derive the count so the invariant holds locally.
		reactions = append(reactions, Reaction{
			Emoji: r.Emoji,
			Count: len(r.Users),
			Users: append([]string(nil), r.Users...),
		})
	}

	return Message{
		ID:        rec.ID,
		Content:   rec.Content,
		Timestamp: ts,
		User:      user,
		Reactions: reactions,
		IsPinned:  rec.IsPinned,
		PinnedBy:  rec.PinnedBy,
		Delivery:  DeliveryConfirmed,
	}, nil
}

// DecodeChannel validates a channel record. Description may be empty.
func DecodeChannel(rec ChannelRecord) (Channel, error) {
	if rec.ID == "" {
		return Channel{}, &FieldError{Record: "channel", Field: "id"}
	}
	if rec.Name == "" {
		return Channel{}, &FieldError{Record: "channel", Field: "name"}
	}
	return Channel{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		IsPrivate:   rec.IsPrivate,
	}, nil
}

// EncodeMessage renders a message back into its wire form, used by the
// devserver and by tests.
func EncodeMessage(m Message) MessageRecord {
	user := UserRecord{
		ID:     m.User.ID,
		Name:   m.User.Name,
		Email:  m.User.Email,
		Avatar: m.User.Avatar,
		Status: m.User.Status,
	}
	reactions := make([]ReactionRecord, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		reactions = append(reactions, ReactionRecord{
			Emoji: r.Emoji,
			Count: len(r.Users),
			Users: append([]string(nil), r.Users...),
		})
	}
	return MessageRecord{
		ID:        m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
		User:      &user,
		Reactions: reactions,
		IsPinned:  m.IsPinned,
		PinnedBy:  m.PinnedBy,
	}
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// datetime.isoformat() omits the zone for naive UTC timestamps.
	return time.Parse("2006-01-02T15:04:05.999999999", s)
}
