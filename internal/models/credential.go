package models

import "time"

// Credential is one opaque key/value pair in the credential store.
// Keys are namespaced by prefix: "discord:<user id>", "github:<user id>"
// and "state:<token>". ExpiresAt is nil for keys without a TTL.
type Credential struct {
	ID        int        `json:"id" gorm:"primaryKey;autoIncrement"`
	Key       string     `json:"key" gorm:"uniqueIndex;not null;column:key"`
	Value     string     `json:"value" gorm:"not null"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Credential
func (Credential) TableName() string {
	return "credentials"
}
