package auth

import "context"

// GrantRepository persists the single linked Google grant.
type GrantRepository interface {
	Get(ctx context.Context) (Grant, bool, error)
	Save(ctx context.Context, grant Grant) error
	Delete(ctx context.Context) error
}
