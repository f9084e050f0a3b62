// Package localstore is the device-local persisted preference copy: a small
// key/value table in the shared sqlite database.
package localstore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	dbmodel "github.com/AbdouGG/Deep-Code/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KeyShowOutput  = "showOutput"
	KeyEditorTheme = "editorTheme"
)

var ErrNotInitialized = errors.New("local store is not initialized")

type Store struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

// New uses the shared DB. Caller must not close the db through the store.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db, nowFunc: time.Now}, nil
}

// Get returns the raw value of key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrNotInitialized
	}
	var row dbmodel.LocalPref
	err := s.db.WithContext(ctx).Model(&dbmodel.LocalPref{}).Select("value").Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	row := dbmodel.LocalPref{
		Key:       key,
		Value:     value,
		UpdatedAt: s.nowFunc().UTC().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
}

// GetBool parses the stored value. A value that is not a boolean reads as
// missing.
func (s *Store) GetBool(ctx context.Context, key string) (bool, bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, false, err
	}
	v, perr := strconv.ParseBool(strings.TrimSpace(raw))
	if perr != nil {
		return false, false, nil
	}
	return v, true, nil
}

func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	return s.Set(ctx, key, strconv.FormatBool(value))
}

func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	return s.Get(ctx, key)
}
