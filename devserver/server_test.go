package devserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mikemike8/teamchat/rest"
	"github.com/Mikemike8/teamchat/types"
	wspkg "github.com/Mikemike8/teamchat/ws"
)

func newTestBackend(t *testing.T) (*Server, *rest.Client) {
	t.Helper()
	s := New()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return s, rest.NewClient(srv.URL)
}

func mustUser(t *testing.T, c *rest.Client, email string) types.User {
	t.Helper()
	u, err := c.CreateUser(context.Background(), rest.CreateUserReq{
		Name:   "Alice",
		Email:  email,
		Avatar: "https://x.io/a.png",
	})
	require.NoError(t, err)
	return u
}

func mustChannel(t *testing.T, c *rest.Client, name string) types.Channel {
	t.Helper()
	ch, err := c.CreateChannel(context.Background(), rest.CreateChannelReq{Name: name})
	require.NoError(t, err)
	return ch
}

func TestCreateUserIsGetOrCreate(t *testing.T) {
	_, c := newTestBackend(t)

	first := mustUser(t, c, "alice@example.com")
	second := mustUser(t, c, "alice@example.com")
	assert.Equal(t, first.ID, second.ID, "same email resolves to the same user")

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateChannelRejectsDuplicateName(t *testing.T) {
	_, c := newTestBackend(t)
	mustChannel(t, c, "general")

	_, err := c.CreateChannel(context.Background(), rest.CreateChannelReq{Name: "general"})
	require.Error(t, err)
	var se *rest.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 409, se.Code)
}

func TestMessagesKeepCreationOrder(t *testing.T) {
	_, c := newTestBackend(t)
	u := mustUser(t, c, "alice@example.com")
	ch := mustChannel(t, c, "general")

	for _, content := range []string{"one", "two", "three"} {
		_, err := c.CreateMessage(context.Background(), rest.CreateMessageReq{
			Content: content, ChannelID: ch.ID, UserID: u.ID,
		})
		require.NoError(t, err)
	}

	msgs, err := c.ListMessages(context.Background(), ch.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[2].Content)
}

func TestCreateMessageRequiresKnownUser(t *testing.T) {
	_, c := newTestBackend(t)
	ch := mustChannel(t, c, "general")

	_, err := c.CreateMessage(context.Background(), rest.CreateMessageReq{
		Content: "hi", ChannelID: ch.ID, UserID: "nobody",
	})
	var se *rest.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Code)
}

func TestReactionToggleAggregates(t *testing.T) {
	_, c := newTestBackend(t)
	alice := mustUser(t, c, "alice@example.com")
	bob, err := c.CreateUser(context.Background(), rest.CreateUserReq{Name: "Bob", Email: "bob@example.com", Avatar: "https://x.io/b.png"})
	require.NoError(t, err)
	ch := mustChannel(t, c, "general")
	msg, err := c.CreateMessage(context.Background(), rest.CreateMessageReq{
		Content: "hi", ChannelID: ch.ID, UserID: alice.ID,
	})
	require.NoError(t, err)

	react := func(userID string) {
		require.NoError(t, c.ToggleReaction(context.Background(), rest.ReactionReq{
			MessageID: msg.ID, UserID: userID, Emoji: "👍",
		}))
	}
	react(alice.ID)
	react(bob.ID)

	msgs, err := c.ListMessages(context.Background(), ch.ID)
	require.NoError(t, err)
	require.Len(t, msgs[0].Reactions, 1)
	assert.Equal(t, 2, msgs[0].Reactions[0].Count)
	assert.Len(t, msgs[0].Reactions[0].Users, 2)

	// Second toggle by the same user removes their reaction.
	react(bob.ID)
	msgs, err = c.ListMessages(context.Background(), ch.ID)
	require.NoError(t, err)
	require.Len(t, msgs[0].Reactions, 1)
	assert.Equal(t, []string{alice.ID}, msgs[0].Reactions[0].Users)

	// Removing the last one drops the row entirely.
	react(alice.ID)
	msgs, err = c.ListMessages(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs[0].Reactions)
}

func TestPinAndUnpin(t *testing.T) {
	_, c := newTestBackend(t)
	u := mustUser(t, c, "alice@example.com")
	ch := mustChannel(t, c, "general")
	msg, err := c.CreateMessage(context.Background(), rest.CreateMessageReq{
		Content: "hi", ChannelID: ch.ID, UserID: u.ID,
	})
	require.NoError(t, err)

	require.NoError(t, c.PinMessage(context.Background(), msg.ID, rest.PinReq{IsPinned: true, UserID: u.ID}))
	msgs, _ := c.ListMessages(context.Background(), ch.ID)
	assert.True(t, msgs[0].IsPinned)
	assert.Equal(t, u.ID, msgs[0].PinnedBy)

	require.NoError(t, c.PinMessage(context.Background(), msg.ID, rest.PinReq{IsPinned: false, UserID: u.ID}))
	msgs, _ = c.ListMessages(context.Background(), ch.ID)
	assert.False(t, msgs[0].IsPinned)
	assert.Empty(t, msgs[0].PinnedBy, "unpinning clears the attribution")

	err = c.PinMessage(context.Background(), "missing", rest.PinReq{IsPinned: true, UserID: u.ID})
	var se *rest.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Code)
}

func TestWritesAreBroadcast(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer s.Close()
	c := rest.NewClient(srv.URL)

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(srv.URL, "http", "ws", 1)+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	u := mustUser(t, c, "alice@example.com")
	ch := mustChannel(t, c, "general")
	sent, err := c.CreateMessage(context.Background(), rest.CreateMessageReq{
		Content: "hi", ChannelID: ch.ID, UserID: u.ID,
	})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	ev, err := wspkg.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, wspkg.KindNewMessage, ev.Kind)
	assert.Equal(t, sent.ID, ev.Message.ID)

	require.NoError(t, c.PinMessage(context.Background(), sent.ID, rest.PinReq{IsPinned: true, UserID: u.ID}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err = conn.ReadMessage()
	require.NoError(t, err)
	ev, err = wspkg.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, wspkg.KindMessagePinned, ev.Kind)
	assert.True(t, ev.IsPinned)
}

func TestSeedPreloadsGeneral(t *testing.T) {
	s, c := newTestBackend(t)
	channelID := s.Seed()

	channels, err := c.ListChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "general", channels[0].Name)
	assert.Equal(t, channelID, channels[0].ID)

	msgs, err := c.ListMessages(context.Background(), channelID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Team Bot", msgs[0].User.Name)
}
