package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mikemike8/teamchat/types"
)

var alice = types.User{
	ID:     "u1",
	Name:   "Alice",
	Email:  "alice@example.com",
	Avatar: "https://example.com/a.png",
	Status: types.StatusOnline,
}

func confirmed(id, content string) types.Message {
	return types.Message{
		ID:        id,
		Content:   content,
		Timestamp: time.Unix(1700000000, 0),
		User:      alice,
		Delivery:  types.DeliveryConfirmed,
	}
}

func contents(f *Feed) []string {
	var out []string
	for _, m := range f.Messages() {
		out = append(out, m.Content)
	}
	return out
}

func TestAppendIdempotent(t *testing.T) {
	f := New()
	f.Clear("c1")

	msg := confirmed("srv-1", "hello")
	assert.True(t, f.Append(msg))
	assert.False(t, f.Append(msg), "second delivery of the same id must be dropped")
	assert.Equal(t, 1, f.Len())
}

func TestReconcilePreservesOrder(t *testing.T) {
	f := New()
	f.Clear("c1")

	now := time.Unix(1700000000, 0)
	tempA := f.AppendOptimistic("A", alice, "c1", now)
	tempB := f.AppendOptimistic("B", alice, "c1", now)
	tempC := f.AppendOptimistic("C", alice, "c1", now)

	// Confirmations arrive out of order.
	require.True(t, f.Reconcile(tempC, confirmed("srv-c", "C")))
	require.True(t, f.Reconcile(tempA, confirmed("srv-a", "A")))
	require.True(t, f.Reconcile(tempB, confirmed("srv-b", "B")))

	assert.Equal(t, []string{"A", "B", "C"}, contents(f))
	for _, m := range f.Messages() {
		assert.Equal(t, types.DeliveryConfirmed, m.Delivery)
	}
}

func TestReconcileDropsTempWhenEchoWonRace(t *testing.T) {
	f := New()
	f.Clear("c1")

	temp := f.AppendOptimistic("hello", alice, "c1", time.Now())
	// The broadcast echo lands before the write response.
	require.True(t, f.Append(confirmed("srv-1", "hello")))

	require.True(t, f.Reconcile(temp, confirmed("srv-1", "hello")))
	assert.Equal(t, 1, f.Len(), "store must never hold two entries with one id")
	m, ok := f.Get("srv-1")
	require.True(t, ok)
	assert.Equal(t, "hello", m.Content)
}

func TestRollbackRestoresPriorState(t *testing.T) {
	f := New()
	f.Clear("c1")
	f.Append(confirmed("srv-1", "before"))

	temp := f.AppendOptimistic("doomed", alice, "c1", time.Now())
	require.True(t, f.Rollback(temp))

	assert.Equal(t, []string{"before"}, contents(f))
	assert.False(t, f.Rollback(temp), "rollback is single-shot")
}

func TestPinIdempotent(t *testing.T) {
	f := New()
	f.Clear("c1")
	f.Append(confirmed("srv-1", "hello"))

	require.True(t, f.ApplyPin("srv-1", true, "u1"))
	require.True(t, f.ApplyPin("srv-1", true, "u1"))

	m, ok := f.Get("srv-1")
	require.True(t, ok)
	assert.True(t, m.IsPinned, "double delivery must not toggle the pin off")
	assert.Equal(t, "u1", m.PinnedBy)

	require.True(t, f.ApplyPin("srv-1", false, ""))
	m, _ = f.Get("srv-1")
	assert.False(t, m.IsPinned)
	assert.Empty(t, m.PinnedBy, "pinnedBy is defined iff pinned")
}

func TestPinUnknownMessageIgnored(t *testing.T) {
	f := New()
	f.Clear("c1")
	assert.False(t, f.ApplyPin("elsewhere", true, "u1"))
	assert.Equal(t, 0, f.Len())
}

func TestReactionInvariant(t *testing.T) {
	f := New()
	f.Clear("c1")
	f.Append(confirmed("srv-1", "hello"))

	applied, found := f.ToggleReaction("srv-1", "👍", "u1")
	require.True(t, found)
	assert.True(t, applied)
	_, _ = f.ToggleReaction("srv-1", "👍", "u2")
	applied, _ = f.ToggleReaction("srv-1", "👍", "u1") // remove again
	assert.False(t, applied)

	m, _ := f.Get("srv-1")
	require.Len(t, m.Reactions, 1)
	assert.Equal(t, m.Reactions[0].Count, len(m.Reactions[0].Users))
	assert.Equal(t, []string{"u2"}, m.Reactions[0].Users)

	// Removing the last user removes the reaction row entirely.
	f.ToggleReaction("srv-1", "👍", "u2")
	m, _ = f.Get("srv-1")
	assert.Empty(t, m.Reactions)
}

func TestSetReactionIdempotent(t *testing.T) {
	f := New()
	f.Clear("c1")
	f.Append(confirmed("srv-1", "hello"))

	require.True(t, f.SetReaction("srv-1", "🔥", "u1", true))
	require.True(t, f.SetReaction("srv-1", "🔥", "u1", true))
	m, _ := f.Get("srv-1")
	require.Len(t, m.Reactions, 1)
	assert.Equal(t, 1, m.Reactions[0].Count)

	require.True(t, f.SetReaction("srv-1", "🔥", "u1", false))
	require.True(t, f.SetReaction("srv-1", "🔥", "u1", false))
	m, _ = f.Get("srv-1")
	assert.Empty(t, m.Reactions)
}

func TestReplaceKeepsPendingEntries(t *testing.T) {
	f := New()
	f.Clear("c1")
	temp := f.AppendOptimistic("in flight", alice, "c1", time.Now())

	f.Replace("c1", []types.Message{confirmed("srv-1", "history")})

	assert.Equal(t, []string{"history", "in flight"}, contents(f))
	_, ok := f.Get(temp)
	assert.True(t, ok)
}

func TestReplaceOtherChannelDropsEverything(t *testing.T) {
	f := New()
	f.Clear("c1")
	f.AppendOptimistic("in flight", alice, "c1", time.Now())

	f.Replace("c2", []types.Message{confirmed("srv-9", "other")})

	assert.Equal(t, "c2", f.ChannelID())
	assert.Equal(t, []string{"other"}, contents(f))
}

func TestClearDiscardsOnSwitch(t *testing.T) {
	f := New()
	f.Clear("c1")
	f.Append(confirmed("srv-1", "hello"))

	f.Clear("c2")
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, "c2", f.ChannelID())
}
