// Package feed holds the ordered message log for the channel currently
// open in a session. It is the single source of truth the UI renders.
//
// Every mutation is keyed by message id (or temp id) and idempotent, so
// push events, history loads and send reconciliation may interleave in
// any order without corrupting the log.
package feed

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/Mikemike8/teamchat/types"
)

// Feed is an append-ordered message log with id-keyed lookup.
// At most one entry per id at any time.
type Feed struct {
	mu        sync.RWMutex
	channelID string
	msgs      []types.Message
	index     map[string]int // id -> position in msgs
}

func New() *Feed {
	return &Feed{index: make(map[string]int)}
}

// ChannelID reports the channel the feed currently holds.
func (f *Feed) ChannelID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.channelID
}

// Len reports the number of entries.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.msgs)
}

// Messages returns a copy of the log in display order.
func (f *Feed) Messages() []types.Message {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]types.Message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

// Get returns the entry with the given id.
func (f *Feed) Get(id string) (types.Message, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if i, ok := f.index[id]; ok {
		return f.msgs[i], true
	}
	return types.Message{}, false
}

// Clear drops all entries and binds the feed to a new channel. Called on
// channel switch before the history load starts.
func (f *Feed) Clear(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelID = channelID
	f.msgs = nil
	f.index = make(map[string]int)
}

// Replace installs a server history snapshot for channelID. Pending
// entries for the same channel are kept at the tail: an optimistic send
// in flight during a reload must not vanish. Snapshots for a different
// channel reset the feed entirely.
func (f *Feed) Replace(channelID string, msgs []types.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var pending []types.Message
	if channelID == f.channelID {
		for _, m := range f.msgs {
			if m.Delivery == types.DeliveryPending {
				pending = append(pending, m)
			}
		}
	}

	f.channelID = channelID
	f.msgs = make([]types.Message, 0, len(msgs)+len(pending))
	f.index = make(map[string]int)
	for _, m := range msgs {
		f.appendLocked(m)
	}
	for _, m := range pending {
		f.appendLocked(m)
	}
}

// AppendOptimistic inserts a locally authored message at the tail and
// returns the generated temp id for later reconciliation.
func (f *Feed) AppendOptimistic(content string, author types.User, channelID string, now time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := types.Message{
		ID:        uuid.New(),
		Content:   content,
		Timestamp: now,
		User:      author,
		Reactions: nil,
		IsPinned:  false,
		Delivery:  types.DeliveryPending,
	}
	if channelID != f.channelID {
		f.channelID = channelID
	}
	f.appendLocked(m)
	return m.ID
}

// Append adds a server-confirmed message unless an entry with the same id
// already exists. Returns false on duplicate delivery.
func (f *Feed) Append(m types.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.index[m.ID]; ok {
		glog.V(5).Infof("feed: drop duplicate message %s", m.ID)
		return false
	}
	f.appendLocked(m)
	return true
}

// Reconcile replaces the temp id entry with the server-confirmed record,
// keeping its position: send order is trusted as display order. When the
// broadcast copy already landed (the echo won the race against the write
// response), the temp entry is dropped instead so ids stay unique.
func (f *Feed) Reconcile(tempID string, rec types.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.index[tempID]
	if !ok {
		return false
	}
	if _, dup := f.index[rec.ID]; dup {
		glog.V(5).Infof("feed: server copy of %s already present, dropping temp %s", rec.ID, tempID)
		f.removeLocked(i)
		return true
	}

	m := f.msgs[i]
	m.ID = rec.ID
	m.Timestamp = rec.Timestamp
	m.IsPinned = rec.IsPinned
	m.PinnedBy = rec.PinnedBy
	m.Delivery = types.DeliveryConfirmed
	f.msgs[i] = m

	delete(f.index, tempID)
	f.index[rec.ID] = i
	return true
}

// Rollback removes the temp entry after a failed send.
func (f *Feed) Rollback(tempID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index[tempID]
	if !ok {
		return false
	}
	f.removeLocked(i)
	return true
}

// ApplyPin sets the pin state of a message. Unknown ids are ignored: the
// message belongs to a channel that is not open, or is not loaded yet, and
// the next history load heals the miss.
func (f *Feed) ApplyPin(id string, pinned bool, pinnedBy string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index[id]
	if !ok {
		return false
	}
	f.msgs[i].IsPinned = pinned
	if pinned {
		f.msgs[i].PinnedBy = pinnedBy
	} else {
		f.msgs[i].PinnedBy = ""
	}
	return true
}

// ToggleReaction adds userID under emoji, or removes it when already
// present, mirroring the backend's toggle. Count tracks len(Users).
// Returns whether the user now has the reaction applied.
func (f *Feed) ToggleReaction(id, emoji, userID string) (applied, found bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index[id]
	if !ok {
		return false, false
	}
	present := f.hasReactionLocked(i, emoji, userID)
	f.setReactionLocked(i, emoji, userID, !present)
	return !present, true
}

// SetReaction forces userID's reaction under emoji to present or absent.
// Idempotent; used to revert an optimistic toggle after a failed write
// without double-flipping state a reload already replaced.
func (f *Feed) SetReaction(id, emoji, userID string, present bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index[id]
	if !ok {
		return false
	}
	f.setReactionLocked(i, emoji, userID, present)
	return true
}

func (f *Feed) hasReactionLocked(i int, emoji, userID string) bool {
	for _, r := range f.msgs[i].Reactions {
		if r.Emoji != emoji {
			continue
		}
		for _, u := range r.Users {
			if u == userID {
				return true
			}
		}
	}
	return false
}

func (f *Feed) setReactionLocked(i int, emoji, userID string, present bool) {
	m := &f.msgs[i]
	for ri := range m.Reactions {
		r := &m.Reactions[ri]
		if r.Emoji != emoji {
			continue
		}
		for ui, u := range r.Users {
			if u == userID {
				if !present {
					r.Users = append(r.Users[:ui], r.Users[ui+1:]...)
					r.Count = len(r.Users)
					if r.Count == 0 {
						m.Reactions = append(m.Reactions[:ri], m.Reactions[ri+1:]...)
					}
				}
				return
			}
		}
		if present {
			r.Users = append(r.Users, userID)
			r.Count = len(r.Users)
		}
		return
	}
	if present {
		m.Reactions = append(m.Reactions, types.Reaction{
			Emoji: emoji,
			Count: 1,
			Users: []string{userID},
		})
	}
}

func (f *Feed) appendLocked(m types.Message) {
	f.index[m.ID] = len(f.msgs)
	f.msgs = append(f.msgs, m)
}

func (f *Feed) removeLocked(i int) {
	delete(f.index, f.msgs[i].ID)
	f.msgs = append(f.msgs[:i], f.msgs[i+1:]...)
	for j := i; j < len(f.msgs); j++ {
		f.index[f.msgs[j].ID] = j
	}
}
