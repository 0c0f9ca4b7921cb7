// Package rest is the HTTP client for the chat backend's REST surface.
package rest

import (
	"context"

	"github.com/Mikemike8/teamchat/types"
)

// CreateUserReq is the body of POST /users.
type CreateUserReq struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// CreateChannelReq is the body of POST /channels.
type CreateChannelReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

// CreateMessageReq is the body of POST /messages.
type CreateMessageReq struct {
	Content   string `json:"content"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

// PinReq is the body of PATCH /messages/{id}/pin.
type PinReq struct {
	IsPinned bool   `json:"is_pinned"`
	UserID   string `json:"user_id"`
}

// ReactionReq is the body of POST /reactions. The backend treats it as a
// toggle: an existing (message, user, emoji) row is removed.
type ReactionReq struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

// API is the backend surface the session consumes.
type API interface {
	ListUsers(ctx context.Context) ([]types.User, error)
	CreateUser(ctx context.Context, req CreateUserReq) (types.User, error)

	ListChannels(ctx context.Context) ([]types.Channel, error)
	CreateChannel(ctx context.Context, req CreateChannelReq) (types.Channel, error)

	ListMessages(ctx context.Context, channelID string) ([]types.Message, error)
	CreateMessage(ctx context.Context, req CreateMessageReq) (types.Message, error)

	PinMessage(ctx context.Context, messageID string, req PinReq) error
	ToggleReaction(ctx context.Context, req ReactionReq) error
}
