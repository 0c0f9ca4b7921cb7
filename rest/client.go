package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Mikemike8/teamchat/types"
)

// Client talks to the chat backend over HTTP. It implements API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ API = (*Client)(nil)

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError is a non-success HTTP response from the backend.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Code, e.Detail)
}

// doRequest performs one HTTP round trip and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, &StatusError{Code: resp.StatusCode, Detail: errResp.Detail}
	}

	return respBody, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]types.User, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/users", nil)
	if err != nil {
		return nil, err
	}

	var recs []types.UserRecord
	if err := json.Unmarshal(respBody, &recs); err != nil {
		return nil, err
	}
	users := make([]types.User, 0, len(recs))
	for _, rec := range recs {
		u, err := types.DecodeUser(rec)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (c *Client) CreateUser(ctx context.Context, req CreateUserReq) (types.User, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/users", req)
	if err != nil {
		return types.User{}, err
	}

	var rec types.UserRecord
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return types.User{}, err
	}
	return types.DecodeUser(rec)
}

func (c *Client) ListChannels(ctx context.Context) ([]types.Channel, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/channels", nil)
	if err != nil {
		return nil, err
	}

	var recs []types.ChannelRecord
	if err := json.Unmarshal(respBody, &recs); err != nil {
		return nil, err
	}
	channels := make([]types.Channel, 0, len(recs))
	for _, rec := range recs {
		ch, err := types.DecodeChannel(rec)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func (c *Client) CreateChannel(ctx context.Context, req CreateChannelReq) (types.Channel, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/channels", req)
	if err != nil {
		return types.Channel{}, err
	}

	var rec types.ChannelRecord
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return types.Channel{}, err
	}
	return types.DecodeChannel(rec)
}

func (c *Client) ListMessages(ctx context.Context, channelID string) ([]types.Message, error) {
	path := "/messages?channel_id=" + url.QueryEscape(channelID)
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var recs []types.MessageRecord
	if err := json.Unmarshal(respBody, &recs); err != nil {
		return nil, err
	}
	msgs := make([]types.Message, 0, len(recs))
	for _, rec := range recs {
		m, err := types.DecodeMessage(rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (c *Client) CreateMessage(ctx context.Context, req CreateMessageReq) (types.Message, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/messages", req)
	if err != nil {
		return types.Message{}, err
	}

	var rec types.MessageRecord
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return types.Message{}, err
	}
	return types.DecodeMessage(rec)
}

func (c *Client) PinMessage(ctx context.Context, messageID string, req PinReq) error {
	_, err := c.doRequest(ctx, http.MethodPatch, "/messages/"+url.PathEscape(messageID)+"/pin", req)
	return err
}

func (c *Client) ToggleReaction(ctx context.Context, req ReactionReq) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/reactions", req)
	return err
}
