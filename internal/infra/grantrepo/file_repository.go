package grantrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/yanqian/ai-assistant/internal/domain/auth"
)

// FileRepository stores the grant as JSON in a token file. Writes go through
// a temporary file and rename so a crash never leaves a truncated token.
type FileRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileRepository returns a repository backed by path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Get(_ context.Context) (auth.Grant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return auth.Grant{}, false, nil
	}
	if err != nil {
		return auth.Grant{}, false, fmt.Errorf("read token file: %w", err)
	}
	var grant auth.Grant
	if err := json.Unmarshal(data, &grant); err != nil {
		return auth.Grant{}, false, fmt.Errorf("decode token file: %w", err)
	}
	return grant, true, nil
}

func (r *FileRepository) Save(_ context.Context, grant auth.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.MarshalIndent(grant, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func (r *FileRepository) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

var _ auth.GrantRepository = (*FileRepository)(nil)
