package grantrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-assistant/internal/domain/auth"
)

func TestRepositories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		repo func(t *testing.T) auth.GrantRepository
	}{
		{name: "memory", repo: func(*testing.T) auth.GrantRepository { return NewMemoryRepository() }},
		{name: "file", repo: func(t *testing.T) auth.GrantRepository {
			return NewFileRepository(filepath.Join(t.TempDir(), "nested", "token.json"))
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			repo := tt.repo(t)

			_, found, err := repo.Get(ctx)
			require.NoError(t, err)
			require.False(t, found)

			linked := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			grant := auth.Grant{
				Subject:      "sub-1",
				Email:        "me@example.com",
				RefreshToken: "encrypted",
				Scopes:       []string{"openid", "email"},
				LinkedAt:     linked,
				UpdatedAt:    linked,
			}
			require.NoError(t, repo.Save(ctx, grant))

			got, found, err := repo.Get(ctx)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, grant.Subject, got.Subject)
			require.Equal(t, grant.Scopes, got.Scopes)
			require.True(t, got.LinkedAt.Equal(linked))

			require.NoError(t, repo.Delete(ctx))
			require.NoError(t, repo.Delete(ctx))
			_, found, err = repo.Get(ctx)
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

func TestFileRepositoryPermissionsAndCorruption(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token.json")
	repo := NewFileRepository(path)
	require.NoError(t, repo.Save(context.Background(), auth.Grant{Subject: "s", RefreshToken: "r"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, _, err = repo.Get(context.Background())
	require.Error(t, err)
}

func TestMemoryRepositoryCopiesScopes(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	scopes := []string{"a"}
	require.NoError(t, repo.Save(context.Background(), auth.Grant{Subject: "s", Scopes: scopes}))
	scopes[0] = "mutated"

	got, _, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, got.Scopes)
}
