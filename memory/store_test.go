package memory

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RememberAndRecall(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	req.NoError(store.Remember(ctx, "tavern", "The innkeeper owes the party ten gold pieces"))
	req.NoError(store.Remember(ctx, "tavern", "A dragon sleeps under the mountain"))
	req.NoError(store.Remember(ctx, "dungeon", "The third door on the left is trapped"))

	memories, err := store.Recall(ctx, "tavern", "dragon mountain", 5)
	req.NoError(err)
	req.NotEmpty(memories)
	req.Equal("A dragon sleeps under the mountain", memories[0])
	for _, memory := range memories {
		req.NotContains(memory, "trapped", "annotations never leak across rooms")
	}
}

func TestStore_RecallWithEmptyQuery(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	req.NoError(store.Remember(ctx, "tavern", "first"))
	req.NoError(store.Remember(ctx, "tavern", "second"))

	memories, err := store.Recall(ctx, "tavern", "", 5)
	req.NoError(err)
	req.Len(memories, 2)
}

func TestStore_RecallHonorsLimit(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three", "four"} {
		req.NoError(store.Remember(ctx, "tavern", text))
	}

	memories, err := store.Recall(ctx, "tavern", "", 2)
	req.NoError(err)
	req.Len(memories, 2)
}

func TestStore_RecallUnknownRoom(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)

	memories, err := store.Recall(context.Background(), "ghost", "anything", 5)
	req.NoError(err)
	req.Empty(memories)
}
