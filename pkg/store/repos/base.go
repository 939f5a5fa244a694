package repos

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rzbill/subrelay/pkg/store"
)

// BaseRepo provides JSON encoded records over the string store for one key
// prefix. T is the record struct (e.g. types.Configuration).
type BaseRepo[T any] struct {
	core   store.Store
	prefix string
}

func NewBaseRepo[T any](core store.Store, prefix string) *BaseRepo[T] {
	return &BaseRepo[T]{core: core, prefix: prefix}
}

// Get decodes the record stored at key. The store's not found error is
// passed through.
func (r *BaseRepo[T]) Get(ctx context.Context, key string) (*T, error) {
	raw, err := r.core.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &out, nil
}

// Put encodes obj and stores it at key.
func (r *BaseRepo[T]) Put(ctx context.Context, key string, obj *T) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return r.core.Put(ctx, key, string(raw))
}

func (r *BaseRepo[T]) Delete(ctx context.Context, key string) error {
	return r.core.Delete(ctx, key)
}

// Keys lists the keys under the repo prefix in key order.
func (r *BaseRepo[T]) Keys(ctx context.Context) ([]store.KeyInfo, error) {
	return r.core.List(ctx, r.prefix)
}

// List decodes every record under the repo prefix in key order. Keys that
// vanish between the scan and the read are skipped.
func (r *BaseRepo[T]) List(ctx context.Context) ([]*T, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(keys))
	for _, k := range keys {
		item, err := r.Get(ctx, k.Name)
		if store.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
