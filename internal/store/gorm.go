package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/approvers/sponsor-linked-role/internal/models"
)

// GormStore persists credentials in the relational database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a database-backed credential store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the value for key. Rows past their expiry are treated as
// absent even before the purge job removes them.
func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var cred models.Credential
	err := s.db.WithContext(ctx).
		Where("key = ? AND (expires_at IS NULL OR expires_at > ?)", key, time.Now().UTC()).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return cred.Value, nil
}

// Put stores value under key, overwriting any previous value.
func (s *GormStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	now := time.Now().UTC()

	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	cred := models.Credential{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&cred).Error
}

// Delete removes key. Absent keys are not an error.
func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&models.Credential{}).Error
}

// PurgeExpired deletes rows whose TTL has elapsed. Called by the cleanup job.
func (s *GormStore) PurgeExpired() (int64, error) {
	result := s.db.
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now().UTC()).
		Delete(&models.Credential{})
	return result.RowsAffected, result.Error
}

// DB exposes the underlying handle for the cleanup scheduler.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}
