package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/approvers/sponsor-linked-role/internal/config"
	"github.com/approvers/sponsor-linked-role/internal/database"
)

// ErrNotFound is returned when a key is absent or its TTL has elapsed.
var ErrNotFound = errors.New("key not found")

// Store is the credential store consumed by the linking flow. Values are
// opaque strings; a zero ttl means the key never expires. Writes are
// last-writer-wins per key. Delete is a no-op for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Open creates the store backend selected by the configuration.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "postgres":
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db), nil
	case "embedded":
		return NewBuntStore(cfg.BuntPath)
	case "valkey":
		return NewValkeyStore(cfg.ValkeyAddr, cfg.ValkeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
