// Package client implements the chat client session: current-user
// resolution, the channel directory, the optimistic send pipeline and the
// push-event subscription, all feeding one in-memory message feed.
package client

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/Mikemike8/teamchat/auth"
	"github.com/Mikemike8/teamchat/feed"
	"github.com/Mikemike8/teamchat/rest"
	"github.com/Mikemike8/teamchat/types"
	"github.com/Mikemike8/teamchat/ws"
)

// Config locates the backend for Dial.
type Config struct {
	// BaseURL is the backend REST root, e.g. http://127.0.0.1:8000.
	BaseURL string
	// WSURL is the push-event endpoint. Derived from BaseURL when empty.
	WSURL string
}

// EventSource is the push-event stream a session consumes.
// *ws.Subscriber implements it; tests substitute a scripted source.
type EventSource interface {
	Run(ctx context.Context)
	Events() <-chan ws.Event
}

// Session owns the state of one signed-in chat client: the resolved user,
// the channel directory, and the feed of the currently open channel.
//
// All asynchronous inbound state (push events, history results, write
// outcomes) is applied by a single reducer goroutine, one event at a
// time. Public mutators perform only the synchronous optimistic step and
// hand the network call's result back to the reducer.
type Session struct {
	api      rest.API
	source   EventSource
	feed     *feed.Feed
	composer Composer
	now      func() time.Time

	mu       sync.RWMutex
	user     types.User
	channels []types.Channel
	current  types.Channel
	hasUser  bool
	hasChan  bool
	epoch    uint64

	events  chan event
	cancel  context.CancelFunc
	runCtx  context.Context
	wg      sync.WaitGroup
	started bool
}

// Internal reducer events. One type per asynchronous outcome so every
// mutation stays keyed and self-contained.
type event interface{}

type historyLoaded struct {
	epoch     uint64
	channelID string
	msgs      []types.Message
	err       error
}

type sendDone struct {
	tempID string
	msg    types.Message
	err    error
}

type pinDone struct {
	messageID   string
	wasPinned   bool
	wasPinnedBy string
	err         error
}

type reactionDone struct {
	messageID  string
	emoji      string
	wasPresent bool
	err        error
}

// New builds a session over an explicit backend API and event source.
func New(api rest.API, source EventSource) *Session {
	return &Session{
		api:    api,
		source: source,
		feed:   feed.New(),
		now:    time.Now,
		events: make(chan event, 64),
	}
}

// Dial builds a session for the backend at cfg.BaseURL with the standard
// REST client and websocket subscription.
func Dial(cfg Config) *Session {
	wsURL := cfg.WSURL
	if wsURL == "" {
		wsURL = strings.Replace(cfg.BaseURL, "http", "ws", 1) + "/ws"
	}
	return New(rest.NewClient(cfg.BaseURL), ws.NewSubscriber(wsURL))
}

// Start resolves the current user, loads the channel directory
// (provisioning "general" when the workspace has none), opens the push
// subscription and starts the reducer. It fails fast on a malformed user
// record instead of hanging in a loading state.
//
// The session stops when ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context, id auth.Identity) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("client: session already started")
	}
	s.started = true
	s.mu.Unlock()

	id, err := id.Validate()
	if err != nil {
		return err
	}

	user, err := s.resolveUser(ctx, id)
	if err != nil {
		return fmt.Errorf("client: resolve user: %w", err)
	}

	channels, current, err := s.loadDirectory(ctx)
	if err != nil {
		return fmt.Errorf("client: load channels: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.user = user
	s.hasUser = true
	s.channels = channels
	s.current = current
	s.hasChan = true
	s.epoch = 1
	s.runCtx = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	glog.Infof("client: session started, user=%s channel=%s", user.ID, current.Name)

	s.feed.Clear(current.ID)
	s.loadHistory(1, current.ID)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.source.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.run(runCtx)
	}()
	return nil
}

// Close tears the session down and waits for the subscription and the
// reducer to exit. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// resolveUser finds the backend user for the identity's email, creating
// it on first sign-in.
func (s *Session) resolveUser(ctx context.Context, id auth.Identity) (types.User, error) {
	users, err := s.api.ListUsers(ctx)
	if err != nil {
		return types.User{}, err
	}
	for _, u := range users {
		if u.Email == id.Email {
			return u, nil
		}
	}
	return s.api.CreateUser(ctx, rest.CreateUserReq{
		Name:   id.Name,
		Email:  id.Email,
		Avatar: id.Avatar,
	})
}

// loadDirectory fetches the channel list. An empty workspace gets a
// default "general" channel; otherwise the first listed channel becomes
// current, the server's ordering being display order.
func (s *Session) loadDirectory(ctx context.Context) ([]types.Channel, types.Channel, error) {
	channels, err := s.api.ListChannels(ctx)
	if err != nil {
		return nil, types.Channel{}, err
	}
	if len(channels) == 0 {
		ch, err := s.api.CreateChannel(ctx, rest.CreateChannelReq{
			Name:        "general",
			Description: "Team-wide announcements",
			IsPrivate:   false,
		})
		if err != nil {
			return nil, types.Channel{}, err
		}
		glog.Infof("client: provisioned default channel %s", ch.ID)
		return []types.Channel{ch}, ch, nil
	}
	return channels, channels[0], nil
}

// run is the reducer: the only goroutine that applies asynchronous
// inbound state.
func (s *Session) run(ctx context.Context) {
	pushes := s.source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-pushes:
			if !ok {
				pushes = nil
				continue
			}
			s.applyPush(ev)
		case ev := <-s.events:
			s.apply(ev)
		}
	}
}

// applyPush handles one server push event.
func (s *Session) applyPush(ev ws.Event) {
	pushEvents.WithLabelValues(ev.Kind).Inc()

	switch ev.Kind {
	case ws.KindNewMessage:
		// Idempotent by id: the echo of our own send is dropped when
		// reconciliation already installed the server id.
		s.feed.Append(*ev.Message)
	case ws.KindMessagePinned:
		if !s.feed.ApplyPin(ev.MessageID, ev.IsPinned, ev.PinnedBy) {
			glog.V(5).Infof("client: pin event for unknown message %s, ignored", ev.MessageID)
		}
	case ws.KindReactionUpdated:
		// Aggregation is server-computed; reload the open channel
		// rather than merging.
		s.mu.RLock()
		epoch, channelID, ok := s.epoch, s.current.ID, s.hasChan
		s.mu.RUnlock()
		if ok {
			s.loadHistory(epoch, channelID)
		}
	}
}

// apply handles one internal completion event.
func (s *Session) apply(ev event) {
	switch ev := ev.(type) {
	case historyLoaded:
		s.mu.RLock()
		stale := ev.epoch != s.epoch
		s.mu.RUnlock()
		if stale {
			staleLoadsDiscarded.Inc()
			glog.V(5).Infof("client: discarding stale history for %s", ev.channelID)
			return
		}
		if ev.err != nil {
			glog.Errorf("client: load history for %s: %v", ev.channelID, ev.err)
			return
		}
		s.feed.Replace(ev.channelID, ev.msgs)

	case sendDone:
		if ev.err != nil {
			glog.Errorf("client: send failed, rolling back %s: %v", ev.tempID, ev.err)
			s.feed.Rollback(ev.tempID)
			optimisticReverts.WithLabelValues("send").Inc()
			return
		}
		s.feed.Reconcile(ev.tempID, ev.msg)

	case pinDone:
		if ev.err != nil {
			glog.Errorf("client: pin write for %s failed, reverting: %v", ev.messageID, ev.err)
			s.feed.ApplyPin(ev.messageID, ev.wasPinned, ev.wasPinnedBy)
			optimisticReverts.WithLabelValues("pin").Inc()
		}

	case reactionDone:
		if ev.err != nil {
			glog.Errorf("client: reaction write for %s failed, reverting: %v", ev.messageID, ev.err)
			s.feed.SetReaction(ev.messageID, ev.emoji, s.User().ID, ev.wasPresent)
			optimisticReverts.WithLabelValues("reaction").Inc()
		}
	}
}

// dispatch hands a completion event to the reducer.
func (s *Session) dispatch(ev event) {
	select {
	case s.events <- ev:
	case <-s.runCtx.Done():
	}
}

// loadHistory fetches the channel's messages tagged with the epoch in
// force when the load started. The reducer drops results whose epoch no
// longer matches, so a slow load cannot clobber the next channel's state.
func (s *Session) loadHistory(epoch uint64, channelID string) {
	historyLoads.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		msgs, err := s.api.ListMessages(s.runCtx, channelID)
		s.dispatch(historyLoaded{epoch: epoch, channelID: channelID, msgs: msgs, err: err})
	}()
}

// Send pushes a message through the pipeline: gate, optimistic append,
// background write, reconcile or roll back. The returned temp id
// identifies the pending entry; ok is false when a gate failed and
// nothing was sent.
func (s *Session) Send(content string) (tempID string, ok bool) {
	content = strings.TrimSpace(content)

	s.mu.RLock()
	user, hasUser := s.user, s.hasUser
	channelID, hasChan := s.current.ID, s.hasChan
	s.mu.RUnlock()

	if content == "" || !hasUser || !hasChan {
		return "", false
	}

	tempID = s.feed.AppendOptimistic(content, user, channelID, s.now())
	messagesSent.Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		msg, err := s.api.CreateMessage(s.runCtx, rest.CreateMessageReq{
			Content:   content,
			ChannelID: channelID,
			UserID:    user.ID,
		})
		s.dispatch(sendDone{tempID: tempID, msg: msg, err: err})
	}()
	return tempID, true
}

// Composer returns the session's draft buffer.
func (s *Session) Composer() *Composer {
	return &s.composer
}

// Submit sends the composer draft. The draft is cleared synchronously
// once the gates pass, so the input is free for the next message while
// the write is in flight; a gated no-op keeps the draft.
func (s *Session) Submit() (string, bool) {
	draft := s.composer.Draft()
	tempID, ok := s.Send(draft)
	if ok {
		s.composer.Clear()
	}
	return tempID, ok
}

// TogglePin optimistically flips a message's pin state and confirms it
// with the backend, reverting on failure.
func (s *Session) TogglePin(messageID string) bool {
	s.mu.RLock()
	user, hasUser := s.user, s.hasUser
	s.mu.RUnlock()
	if !hasUser {
		return false
	}

	msg, ok := s.feed.Get(messageID)
	if !ok {
		return false
	}

	pinned := !msg.IsPinned
	pinnedBy := ""
	if pinned {
		pinnedBy = user.ID
	}
	s.feed.ApplyPin(messageID, pinned, pinnedBy)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.api.PinMessage(s.runCtx, messageID, rest.PinReq{
			IsPinned: pinned,
			UserID:   user.ID,
		})
		s.dispatch(pinDone{
			messageID:   messageID,
			wasPinned:   msg.IsPinned,
			wasPinnedBy: msg.PinnedBy,
			err:         err,
		})
	}()
	return true
}

// ToggleReaction optimistically toggles the current user's emoji reaction
// and posts the write, reverting on failure. The authoritative
// aggregation still arrives via the reaction-updated reload.
func (s *Session) ToggleReaction(messageID, emoji string) bool {
	s.mu.RLock()
	user, hasUser := s.user, s.hasUser
	s.mu.RUnlock()
	if !hasUser {
		return false
	}

	applied, found := s.feed.ToggleReaction(messageID, emoji, user.ID)
	if !found {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.api.ToggleReaction(s.runCtx, rest.ReactionReq{
			MessageID: messageID,
			UserID:    user.ID,
			Emoji:     emoji,
		})
		s.dispatch(reactionDone{
			messageID:  messageID,
			emoji:      emoji,
			wasPresent: !applied,
			err:        err,
		})
	}()
	return true
}

// SwitchChannel makes the named channel current, discards the previous
// channel's messages and starts a fresh history load.
func (s *Session) SwitchChannel(channelID string) bool {
	s.mu.Lock()
	var target types.Channel
	found := false
	for _, ch := range s.channels {
		if ch.ID == channelID {
			target = ch
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return false
	}
	s.current = target
	s.hasChan = true
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	glog.V(5).Infof("client: switched to channel %s", target.Name)
	s.feed.Clear(channelID)
	s.loadHistory(epoch, channelID)
	return true
}

var slugSeparators = regexp.MustCompile(`\s+`)

// Slugify lowercases a channel name and replaces whitespace runs with
// hyphens, the form the backend expects.
func Slugify(name string) string {
	return slugSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// CreateChannel creates a channel and makes it current. Unlike sends,
// failure here is returned to the caller: channel creation is an explicit
// user action with nothing optimistic to roll back.
func (s *Session) CreateChannel(ctx context.Context, name, description string, private bool) (types.Channel, error) {
	slug := Slugify(name)
	if slug == "" {
		return types.Channel{}, fmt.Errorf("client: channel name is empty")
	}

	ch, err := s.api.CreateChannel(ctx, rest.CreateChannelReq{
		Name:        slug,
		Description: description,
		IsPrivate:   private,
	})
	if err != nil {
		return types.Channel{}, fmt.Errorf("client: create channel %q: %w", slug, err)
	}

	s.mu.Lock()
	s.channels = append(s.channels, ch)
	s.current = ch
	s.hasChan = true
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	s.feed.Clear(ch.ID)
	s.loadHistory(epoch, ch.ID)
	return ch, nil
}

// User returns the resolved current user.
func (s *Session) User() types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Channels returns the channel directory in display order.
func (s *Session) Channels() []types.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// Current returns the open channel.
func (s *Session) Current() (types.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.hasChan
}

// Messages returns the open channel's feed in display order.
func (s *Session) Messages() []types.Message {
	return s.feed.Messages()
}

// Feed exposes the underlying message store.
func (s *Session) Feed() *feed.Feed {
	return s.feed
}
