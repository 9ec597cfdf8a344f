package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

// BuntStore is an embedded credential store backed by buntdb. TTLs use the
// engine's native key expiration.
type BuntStore struct {
	db *buntdb.DB
}

// NewBuntStore opens (or creates) the embedded database at path.
// Use ":memory:" for an ephemeral store.
func NewBuntStore(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded store: %w", err)
	}
	return &BuntStore{db: db}, nil
}

// Get returns the value for key.
func (s *BuntStore) Get(_ context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Put stores value under key, overwriting any previous value.
func (s *BuntStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var opts *buntdb.SetOptions
		if ttl > 0 {
			opts = &buntdb.SetOptions{Expires: true, TTL: ttl}
		}
		_, _, err := tx.Set(key, value, opts)
		return err
	})
}

// Delete removes key. Absent keys are not an error.
func (s *BuntStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil
	}
	return err
}

// Close closes the underlying database file.
func (s *BuntStore) Close() error {
	return s.db.Close()
}
