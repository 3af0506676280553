package services

import (
	"context"
	"dmchat/internal/core/domain"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestPresence_Register_Broadcasts_And_Bootstraps(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.connect(t, "alice")

	// When bob registers
	bob := f.connect(t, "bob")

	// Then both see the full online set
	online := alice.Events(domain.EventUsersOnline)
	req.NotEmpty(online)
	req.Equal([]string{"alice", "bob"}, decodeData[[]string](t, online[len(online)-1]))
	req.Equal([]string{"alice", "bob"}, decodeData[[]string](t, bob.Events(domain.EventUsersOnline)[0]))

	// And bob received the whole last-seen cache once
	snapshots := bob.Events(domain.EventLastSeenTimes)
	req.Len(snapshots, 1)
	cache := decodeData[map[string]time.Time](t, snapshots[0])
	req.Contains(cache, "alice")
	req.Contains(cache, "bob")

	// And the durable write happened and was announced
	_, ok := f.users.LastSeenOf("bob")
	req.True(ok)
	announced := alice.Events(domain.EventUserLastSeen)
	req.NotEmpty(announced)
	req.Equal("bob", decodeData[domain.UserLastSeen](t, announced[len(announced)-1]).UserID)
}

func TestPresence_Reregister_Supersedes(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	h1 := f.connect(t, "u")

	// When u registers on a second handle
	h2 := f.connect(t, "u")

	// Then lookups resolve to h2 and u is online once
	online := h2.Events(domain.EventUsersOnline)
	req.Equal([]string{"u"}, decodeData[[]string](t, online[len(online)-1]))
	req.NoError(f.loop.Call(context.Background(), func() {
		c, ok := f.registry.Lookup("u")
		req.True(ok)
		req.Equal(h2, c)
	}))

	// And the orphaned handle disconnecting changes nothing
	h2.Reset()
	req.NoError(f.presence.Disconnect(context.Background(), h1))
	f.settle(t)
	req.Empty(h2.Events(domain.EventUsersOnline))
}

func TestPresence_Disconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	before, _ := f.users.LastSeenOf("bob")
	alice.Reset()

	// When bob's socket closes
	time.Sleep(2 * time.Millisecond)
	req.NoError(f.presence.Disconnect(context.Background(), bob))
	f.settle(t)

	// Then alice sees him leave and his last-seen moves forward
	online := alice.Events(domain.EventUsersOnline)
	req.Len(online, 1)
	req.Equal([]string{"alice"}, decodeData[[]string](t, online[0]))
	after, _ := f.users.LastSeenOf("bob")
	req.True(after.After(before))
}

func TestPresence_ForceDisconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.connect(t, "A")
	b := f.connect(t, "B")
	b.Reset()
	start := time.Now()

	// When A is forcefully disconnected
	req.NoError(f.presence.ForceDisconnect(context.Background(), "A"))
	f.settle(t)

	// Then A's last-seen is the disconnect time
	at, ok := f.users.LastSeenOf("A")
	req.True(ok)
	req.False(at.Before(start))

	// And A is absent from the next online broadcast
	online := b.Events(domain.EventUsersOnline)
	req.Len(online, 1)
	req.Equal([]string{"B"}, decodeData[[]string](t, online[0]))

	// And A's socket is closed
	req.True(a.IsClosed())

	// And the later close of that socket is a no-op
	b.Reset()
	req.NoError(f.presence.Disconnect(context.Background(), a))
	f.settle(t)
	req.Empty(b.Events(domain.EventUsersOnline))
}

func TestPresence_ForceDisconnect_Unknown_User(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	b := f.connect(t, "B")
	b.Reset()

	req.NoError(f.presence.ForceDisconnect(context.Background(), "ghost"))
	f.settle(t)

	req.Empty(b.Events(domain.EventUsersOnline))
	_, ok := f.users.LastSeenOf("ghost")
	req.False(ok)
}

func TestPresence_PeriodicRefresh_Isolates_Failures(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.connect(t, "X")
	f.connect(t, "Y")
	beforeY, _ := f.users.LastSeenOf("Y")

	// Given every durable write for X fails
	f.users.Fail("X")

	// When the refresh tick runs
	time.Sleep(2 * time.Millisecond)
	req.NoError(f.presence.PeriodicRefresh(context.Background()))

	// Then Y is still refreshed
	afterY, _ := f.users.LastSeenOf("Y")
	req.True(afterY.After(beforeY))

	// And the cache holds the refresh time for both users
	cache, err := f.presence.Snapshot(context.Background())
	req.NoError(err)
	req.Equal(afterY, cache["Y"])
	req.Equal(afterY, cache["X"])

	// And the loop keeps serving
	f.connect(t, "Z")
}

func TestPresence_Register_Empty_User(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	err := f.presence.Register(context.Background(), "", newFakeClient())

	req.ErrorIs(err, domain.ErrInvalidUserID)
}

func TestPresence_LastSeen_Reads_Store(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	stored := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	req.NoError(f.users.CreateUser(context.Background(), &domain.User{ID: "u1", Username: "u", LastSeen: stored}))

	got, err := f.presence.LastSeen(context.Background(), "u1")
	req.NoError(err)
	req.Equal(stored, got)

	_, err = f.presence.LastSeen(context.Background(), "missing")
	req.ErrorIs(err, domain.ErrUserNotFound)
}

func TestPresence_Rebind_Connection_Touches_Displaced_User(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	w := f.connect(t, "w")
	h := f.connect(t, "a")
	before, ok := f.users.LastSeenOf("a")
	req.True(ok)
	w.Reset()

	// When the connection bound to a registers as b
	time.Sleep(2 * time.Millisecond)
	req.NoError(f.presence.Register(context.Background(), "b", h))
	f.settle(t)

	// Then a leaves the online set
	online := w.Events(domain.EventUsersOnline)
	req.Len(online, 1)
	req.Equal([]string{"b", "w"}, decodeData[[]string](t, online[0]))

	// And a's last-seen moves to the rebind time and is announced
	after, _ := f.users.LastSeenOf("a")
	req.True(after.After(before))
	announced := lo.Map(w.Events(domain.EventUserLastSeen), func(e domain.Envelope, _ int) string {
		return decodeData[domain.UserLastSeen](t, e).UserID
	})
	req.Contains(announced, "a")
	req.Contains(announced, "b")
}

func TestPresence_Slow_Connect_Write_Does_Not_Overtake_Disconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	w := f.connect(t, "w")

	// Given a's connect-time write is slow
	f.users.DelayNext("a", 50*time.Millisecond)
	req.NoError(f.presence.Register(context.Background(), "a", newFakeClient()))

	// When a is disconnected before that write finishes
	time.Sleep(5 * time.Millisecond)
	req.NoError(f.presence.ForceDisconnect(context.Background(), "a"))
	cache, err := f.presence.Snapshot(context.Background())
	req.NoError(err)
	disconnectedAt := cache["a"]
	f.settle(t)

	// Then the writes reached the store in issue order
	applied := f.users.Applied("a")
	req.Len(applied, 2)
	req.True(applied[0].Before(applied[1]))

	// And the stored value is the disconnect time
	stored, ok := f.users.LastSeenOf("a")
	req.True(ok)
	req.True(stored.Equal(disconnectedAt))

	// And the last announcement for a carries the disconnect time
	announced := lo.Filter(w.Events(domain.EventUserLastSeen), func(e domain.Envelope, _ int) bool {
		return decodeData[domain.UserLastSeen](t, e).UserID == "a"
	})
	req.Len(announced, 2)
	last := decodeData[domain.UserLastSeen](t, announced[len(announced)-1])
	req.True(last.Timestamp.Equal(disconnectedAt))
}

func TestPresence_Shutdown_Waits_And_Stops_Writes(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	h := f.connect(t, "a")

	// Given a slow disconnect write in flight
	f.users.DelayNext("a", 30*time.Millisecond)
	req.NoError(f.presence.Disconnect(context.Background(), h))

	// When the service shuts down
	req.NoError(f.presence.Shutdown(context.Background()))

	// Then the in-flight write has landed
	req.Len(f.users.Applied("a"), 2)

	// And later touches only update the cache
	req.NoError(f.presence.Register(context.Background(), "b", newFakeClient()))
	f.settle(t)
	_, ok := f.users.LastSeenOf("b")
	req.False(ok)
	cache, err := f.presence.Snapshot(context.Background())
	req.NoError(err)
	req.Contains(cache, "b")
}
