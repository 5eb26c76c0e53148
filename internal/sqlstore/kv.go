package sqlstore

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// kvRow is the framework's own key-value table, co-resident with user
// tables in the same per-actor database (spec §3: "key-value store").
type kvRow struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (kvRow) TableName() string { return "actor_kv" }

// ErrKeyNotFound is returned by Get when key has never been set.
var ErrKeyNotFound = errors.New("sqlstore: key not found")

// Get returns the raw bytes stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	var row kvRow
	if err := s.DB.First(&row, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return row.Value, nil
}

// Put upserts key to value.
func (s *Store) Put(key string, value []byte) error {
	return s.DB.Save(&kvRow{Key: key, Value: value}).Error
}

// Delete removes key. A missing key is not an error — deletion is
// idempotent, matching the framework's general "durable state is never
// partially applied" posture.
func (s *Store) Delete(key string) error {
	return s.DB.Delete(&kvRow{}, "key = ?", key).Error
}

// List returns every key currently stored, for diagnostics/schema tooling.
func (s *Store) List() ([]string, error) {
	var keys []string
	if err := s.DB.Model(&kvRow{}).Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}
