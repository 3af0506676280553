package mongo

import (
	"context"
	"dmchat/internal/config"
	"dmchat/internal/core/domain"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// openTestDB connects to TEST_MONGO_URI or skips.
func openTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	db, err := New(ctx, config.MongoConfig{
		URI:         uri,
		Database:    "dmchat_test_" + uuid.NewString()[:8],
		PingTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})
	return db
}

func TestMessageRepo_MarkSeen_And_Delete(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewMessageRepo(db)

	m1 := domain.NewMessage("a", "b", "one", domain.Attachments{})
	m2 := domain.NewMessage("b", "a", "two", domain.Attachments{})
	req.NoError(repo.CreateMessage(ctx, m1))
	req.NoError(repo.CreateMessage(ctx, m2))

	n, err := repo.MarkSeen(ctx, "a", "b", time.Now())
	req.NoError(err)
	req.EqualValues(1, n)
	n, err = repo.MarkSeen(ctx, "a", "b", time.Now())
	req.NoError(err)
	req.Zero(n)

	owned, err := repo.FilterOwned(ctx, []string{m1.ID, m2.ID}, "a")
	req.NoError(err)
	req.Equal([]string{m1.ID}, owned)

	req.NoError(repo.DeleteMessage(ctx, m1.ID))
	req.ErrorIs(repo.DeleteMessage(ctx, m1.ID), domain.ErrMessageNotFound)

	removed, err := repo.DeleteMessages(ctx, []string{m1.ID, "missing"})
	req.NoError(err)
	req.Empty(removed)

	msgs, err := repo.ListConversation(ctx, "a", "b")
	req.NoError(err)
	req.Len(msgs, 1)
}

func TestUserRepo_Duplicate_And_LastSeen(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)
	u := domain.NewUser("alice", "hash")

	req.NoError(repo.CreateUser(ctx, u))
	req.ErrorIs(repo.CreateUser(ctx, domain.NewUser("alice", "other")), domain.ErrUserAlreadyExists)

	at := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	req.NoError(repo.UpdateLastSeen(ctx, u.ID, at))
	got, err := repo.GetUserByUsername(ctx, "alice")
	req.NoError(err)
	req.True(at.Equal(got.LastSeen))
}
