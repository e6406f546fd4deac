package cache

import (
	"context"
	"encoding/json"
	"errors"
)

// CartCache holds rendered cart views keyed by user. Values are opaque JSON;
// the cart service owns the shape. Mutations must Delete their user's entry.
type CartCache interface {
	Get(ctx context.Context, userID string) (json.RawMessage, error)
	Set(ctx context.Context, userID string, view json.RawMessage) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
