package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	id string
}

func newClient() *fakeClient { return &fakeClient{id: uuid.NewString()} }

func (c *fakeClient) ID() string                                { return c.id }
func (c *fakeClient) Send(ctx context.Context, data []byte) error { return nil }
func (c *fakeClient) Close()                                    {}

func TestRegistry_Register_One_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	h := newClient()

	// Given no user is connected
	req.Empty(registry.OnlineIDs())

	// When a user registers
	registry.Register("alice", h)

	// Then the user is online and resolves to its client
	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(h, got)
	req.Equal([]string{"alice"}, registry.OnlineIDs())
}

func TestRegistry_Register_Supersedes_Earlier_Client(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	h1, h2 := newClient(), newClient()

	// Given alice registered on a first connection
	registry.Register("alice", h1)

	// When alice registers again on a second connection
	registry.Register("alice", h2)

	// Then the second connection wins and alice is counted once
	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(h2, got)
	req.Equal([]string{"alice"}, registry.OnlineIDs())
	req.Len(registry.Clients(), 1)

	// And the orphaned connection closing does not unbind alice
	_, removed := registry.RemoveByClient(h1)
	req.False(removed)
	got, ok = registry.Lookup("alice")
	req.True(ok)
	req.Equal(h2, got)
}

func TestRegistry_Register_Same_Client_Different_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	h := newClient()

	// Given a connection bound to alice
	_, displaced := registry.Register("alice", h)
	req.False(displaced)

	// When the same connection registers as bob
	prev, displaced := registry.Register("bob", h)

	// Then alice is reported as displaced and only bob is bound to it
	req.True(displaced)
	req.Equal("alice", prev)
	req.Equal([]string{"bob"}, registry.OnlineIDs())
	userID, ok := registry.RemoveByClient(h)
	req.True(ok)
	req.Equal("bob", userID)
	req.Empty(registry.OnlineIDs())
}

func TestRegistry_RemoveByClient(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	h1, h2 := newClient(), newClient()
	registry.Register("alice", h1)
	registry.Register("bob", h2)

	// When alice's connection goes away
	userID, ok := registry.RemoveByClient(h1)

	// Then alice is resolved through the reverse index and removed
	req.True(ok)
	req.Equal("alice", userID)
	req.Equal([]string{"bob"}, registry.OnlineIDs())

	// And removing twice is a no-op
	_, ok = registry.RemoveByClient(h1)
	req.False(ok)
}

func TestRegistry_RemoveByUser(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	h := newClient()
	registry.Register("alice", h)

	// When alice is forcefully removed
	got, ok := registry.RemoveByUser("alice")

	// Then her client is returned and both indexes are cleared
	req.True(ok)
	req.Equal(h, got)
	_, ok = registry.Lookup("alice")
	req.False(ok)
	_, ok = registry.RemoveByClient(h)
	req.False(ok)

	// And an unknown user is a no-op
	_, ok = registry.RemoveByUser("ghost")
	req.False(ok)
}

func TestRegistry_OnlineIDs_Sorted(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register("carol", newClient())
	registry.Register("alice", newClient())
	registry.Register("bob", newClient())

	req.Equal([]string{"alice", "bob", "carol"}, registry.OnlineIDs())
}
