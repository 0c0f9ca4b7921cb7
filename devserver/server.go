// Package devserver is an in-memory stand-in for the production chat
// backend: the full REST surface plus the websocket push stream. It backs
// the demo binary and the client integration tests. State lives in maps
// and dies with the process on purpose.
package devserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/pborman/uuid"

	"github.com/Mikemike8/teamchat/types"
	"github.com/Mikemike8/teamchat/ws"
)

// Server holds workspace state and serves the backend API.
type Server struct {
	hub *Hub
	now func() time.Time

	mu       sync.Mutex
	users    map[string]types.UserRecord    // by id
	channels []types.ChannelRecord          // in creation order
	messages map[string][]storedMessage     // channel id -> messages in creation order
	reacts   map[reactionKey]struct{}       // toggled reactions
	pins     map[string]pinState            // message id -> pin state
	byID     map[string]*messageRef         // message id -> location
}

type storedMessage struct {
	id        string
	content   string
	userID    string
	createdAt time.Time
}

type messageRef struct {
	channelID string
	index     int
}

type reactionKey struct {
	messageID string
	userID    string
	emoji     string
}

type pinState struct {
	pinned   bool
	pinnedBy string
}

// New creates an empty backend.
func New() *Server {
	return &Server{
		hub:      NewHub(),
		now:      time.Now,
		users:    make(map[string]types.UserRecord),
		messages: make(map[string][]storedMessage),
		reacts:   make(map[reactionKey]struct{}),
		pins:     make(map[string]pinState),
		byID:     make(map[string]*messageRef),
	}
}

// Handler returns the backend's HTTP routes, /ws included.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", s.createUser).Methods(http.MethodPost)
	r.HandleFunc("/channels", s.listChannels).Methods(http.MethodGet)
	r.HandleFunc("/channels", s.createChannel).Methods(http.MethodPost)
	r.HandleFunc("/messages", s.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages", s.createMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/pin", s.pinMessage).Methods(http.MethodPatch)
	r.HandleFunc("/reactions", s.toggleReaction).Methods(http.MethodPost)
	r.Handle("/ws", s.hub)
	return r
}

// Close drops every push subscription.
func (s *Server) Close() {
	s.hub.Close()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("devserver: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := make([]types.UserRecord, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	s.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Email  string `json:"email"`
		Avatar string `json:"avatar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid user body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Get-or-create by email, as the production backend does.
	for _, u := range s.users {
		if u.Email == req.Email {
			writeJSON(w, http.StatusOK, u)
			return
		}
	}

	name := req.Name
	if name == "" {
		name = req.Email
	}
	u := types.UserRecord{
		ID:     uuid.New(),
		Name:   name,
		Email:  req.Email,
		Avatar: req.Avatar,
		Status: types.StatusOnline,
	}
	s.users[u.ID] = u
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	channels := append([]types.ChannelRecord(nil), s.channels...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, channels)
}

func (s *Server) createChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"is_private"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid channel body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.channels {
		if ch.Name == req.Name {
			writeError(w, http.StatusConflict, "channel name already exists")
			return
		}
	}

	ch := types.ChannelRecord{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
	}
	s.channels = append(s.channels, ch)
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		writeError(w, http.StatusUnprocessableEntity, "channel_id is required")
		return
	}

	s.mu.Lock()
	msgs := s.messages[channelID]
	out := make([]types.MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, s.serializeLocked(m))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content   string `json:"content"`
		ChannelID string `json:"channel_id"`
		UserID    string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Content == "" || req.ChannelID == "" || req.UserID == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid message body")
		return
	}

	s.mu.Lock()
	if _, ok := s.users[req.UserID]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	m := storedMessage{
		id:        uuid.New(),
		content:   req.Content,
		userID:    req.UserID,
		createdAt: s.now(),
	}
	s.messages[req.ChannelID] = append(s.messages[req.ChannelID], m)
	s.byID[m.id] = &messageRef{channelID: req.ChannelID, index: len(s.messages[req.ChannelID]) - 1}
	rec := s.serializeLocked(m)
	s.mu.Unlock()

	s.hub.Broadcast(ws.EncodeNewMessage(rec))
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) pinMessage(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]

	var req struct {
		IsPinned bool   `json:"is_pinned"`
		UserID   string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid pin body")
		return
	}

	s.mu.Lock()
	if _, ok := s.byID[messageID]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	st := pinState{pinned: req.IsPinned}
	if req.IsPinned {
		st.pinnedBy = req.UserID
	}
	s.pins[messageID] = st
	s.mu.Unlock()

	s.hub.Broadcast(ws.EncodeMessagePinned(messageID, st.pinned, st.pinnedBy))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message_id": messageID,
		"is_pinned":  st.pinned,
		"pinned_by":  st.pinnedBy,
	})
}

func (s *Server) toggleReaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID string `json:"message_id"`
		UserID    string `json:"user_id"`
		Emoji     string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.MessageID == "" || req.UserID == "" || req.Emoji == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid reaction body")
		return
	}

	s.mu.Lock()
	if _, ok := s.byID[req.MessageID]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	key := reactionKey{messageID: req.MessageID, userID: req.UserID, emoji: req.Emoji}
	if _, ok := s.reacts[key]; ok {
		delete(s.reacts, key)
	} else {
		s.reacts[key] = struct{}{}
	}
	s.mu.Unlock()

	s.hub.Broadcast(ws.EncodeReactionUpdated())
	writeJSON(w, http.StatusOK, map[string]string{"message_id": req.MessageID})
}

// serializeLocked renders a stored message in wire shape, aggregating
// reactions per emoji from the toggle set.
func (s *Server) serializeLocked(m storedMessage) types.MessageRecord {
	user := s.users[m.userID]

	grouped := make(map[string]*types.ReactionRecord)
	var order []string
	for key := range s.reacts {
		if key.messageID != m.id {
			continue
		}
		g, ok := grouped[key.emoji]
		if !ok {
			g = &types.ReactionRecord{Emoji: key.emoji}
			grouped[key.emoji] = g
			order = append(order, key.emoji)
		}
		g.Users = append(g.Users, key.userID)
		g.Count = len(g.Users)
	}
	sort.Strings(order)

	reactions := make([]types.ReactionRecord, 0, len(order))
	for _, emoji := range order {
		g := grouped[emoji]
		sort.Strings(g.Users)
		reactions = append(reactions, *g)
	}

	st := s.pins[m.id]
	return types.MessageRecord{
		ID:        m.id,
		Content:   m.content,
		Timestamp: m.createdAt.UTC().Format(time.RFC3339Nano),
		User:      &user,
		Reactions: reactions,
		IsPinned:  st.pinned,
		PinnedBy:  st.pinnedBy,
	}
}

// Seed preloads a user, a "general" channel and a greeting message so the
// demo has something to show. Returns the channel id.
func (s *Server) Seed() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := types.UserRecord{
		ID:     uuid.New(),
		Name:   "Team Bot",
		Email:  "bot@teamchat.local",
		Avatar: "https://api.dicebear.com/7.x/notionists/svg?seed=bot",
		Status: types.StatusOnline,
	}
	s.users[u.ID] = u

	ch := types.ChannelRecord{
		ID:          uuid.New(),
		Name:        "general",
		Description: "Team-wide announcements",
	}
	s.channels = append(s.channels, ch)

	m := storedMessage{
		id:        uuid.New(),
		content:   "Welcome to the team workspace!",
		userID:    u.ID,
		createdAt: s.now(),
	}
	s.messages[ch.ID] = append(s.messages[ch.ID], m)
	s.byID[m.id] = &messageRef{channelID: ch.ID, index: 0}
	return ch.ID
}
