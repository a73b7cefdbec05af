package prefstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
)

var errEmptyChatID = errors.New("chat id cannot be empty")

// ValkeyStore persists chat preferences in a Valkey-compatible database.
// Preferences live under <prefix>:chat:<id> as JSON and subscribed chats in
// the <prefix>:subscribers set.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "assistant"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) Get(ctx context.Context, chatID string) (assistant.Preferences, bool, error) {
	if chatID == "" {
		return assistant.Preferences{}, false, nil
	}
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(s.chatKey(chatID)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return assistant.Preferences{}, false, nil
		}
		return assistant.Preferences{}, false, fmt.Errorf("get preferences: %w", err)
	}
	var prefs assistant.Preferences
	if err := json.Unmarshal([]byte(payload), &prefs); err != nil {
		return assistant.Preferences{}, false, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, true, nil
}

func (s *ValkeyStore) Save(ctx context.Context, prefs assistant.Preferences) error {
	if prefs.ChatID == "" {
		return errEmptyChatID
	}
	payload, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	var membership valkey.Completed
	if prefs.Subscribed {
		membership = s.client.B().Sadd().Key(s.subscribersKey()).Member(prefs.ChatID).Build()
	} else {
		membership = s.client.B().Srem().Key(s.subscribersKey()).Member(prefs.ChatID).Build()
	}
	cmds := valkey.Commands{
		s.client.B().Set().Key(s.chatKey(prefs.ChatID)).Value(string(payload)).Build(),
		membership,
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("save preferences: %w", err)
		}
	}
	return nil
}

func (s *ValkeyStore) Subscribers(ctx context.Context) ([]string, error) {
	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.subscribersKey()).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

func (s *ValkeyStore) chatKey(chatID string) string {
	return fmt.Sprintf("%s:chat:%s", s.prefix, chatID)
}

func (s *ValkeyStore) subscribersKey() string {
	return fmt.Sprintf("%s:subscribers", s.prefix)
}

var _ assistant.PreferenceStore = (*ValkeyStore)(nil)
