package store

import (
	"context"
	"fmt"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyStore stores credentials in Valkey (Redis-compatible). TTLs map to
// key expiry on the server, so a shared store can back multiple instances.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore creates a Valkey-backed credential store.
// addr example: "127.0.0.1:6379"; prefix namespaces keys.
func NewValkeyStore(addr, prefix string) (*ValkeyStore, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	if prefix == "" {
		prefix = "linkedrole:"
	}
	return &ValkeyStore{client: cli, prefix: prefix}, nil
}

func (s *ValkeyStore) key(k string) string { return s.prefix + k }

// Get returns the value for key.
func (s *ValkeyStore) Get(ctx context.Context, key string) (string, error) {
	res := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build())
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return res.ToString()
}

// Put stores value under key, overwriting any previous value.
func (s *ValkeyStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	var cmd valkey.Completed
	if ttl > 0 {
		cmd = s.client.B().Set().Key(s.key(key)).Value(value).Ex(ttl).Build()
	} else {
		cmd = s.client.B().Set().Key(s.key(key)).Value(value).Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

// Delete removes key. Absent keys are not an error.
func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error()
}

// Close releases the client connections.
func (s *ValkeyStore) Close() {
	s.client.Close()
}
