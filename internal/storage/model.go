package storage

import (
	"context"
	"errors"
)

// Keys of the persisted session entries.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserInfo     = "user_info"
)

var (
	// ErrMissingDatabase indicates that no database handle was supplied.
	ErrMissingDatabase = errors.New("storage: database handle is required")
	// ErrInvalidKey indicates an empty or oversized key.
	ErrInvalidKey = errors.New("storage: invalid key")
)

const maxKeyLength = 190

// KeyValueStore persists small string entries across process restarts.
type KeyValueStore interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put writes all entries atomically.
	Put(ctx context.Context, entries map[string]string) error
	// Delete removes the keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Entry is one persisted key/value pair of client state.
type Entry struct {
	Key              string `gorm:"column:state_key;primaryKey;size:190;not null"`
	Value            string `gorm:"column:state_value;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "client_state"
}

func validateKey(key string) error {
	if key == "" || len(key) > maxKeyLength {
		return ErrInvalidKey
	}
	return nil
}
