package prefstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	_, found, err := store.Get(ctx, "1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Save(ctx, assistant.Preferences{ChatID: "2", Timezone: "Europe/Lisbon", Subscribed: true}))
	require.NoError(t, store.Save(ctx, assistant.Preferences{ChatID: "1", Subscribed: true}))
	require.NoError(t, store.Save(ctx, assistant.Preferences{ChatID: "3"}))
	require.Error(t, store.Save(ctx, assistant.Preferences{}))

	prefs, found, err := store.Get(ctx, "2")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Europe/Lisbon", prefs.Timezone)

	subs, err := store.Subscribers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, subs)

	require.NoError(t, store.Save(ctx, assistant.Preferences{ChatID: "1"}))
	subs, err = store.Subscribers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, subs)
}

func TestValkeyKeys(t *testing.T) {
	t.Parallel()

	store := NewValkeyStore(nil, "")
	require.Equal(t, "assistant:chat:42", store.chatKey("42"))
	require.Equal(t, "assistant:subscribers", store.subscribersKey())
}
