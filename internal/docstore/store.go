// Package docstore keeps JSON documents addressed by collection and id, with
// merge-write semantics: a write sets only the fields it names.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbmodel "github.com/AbdouGG/Deep-Code/internal/db"
)

var ErrNotFound = errors.New("document not found")

type Store struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db, nowFunc: time.Now}, nil
}

// Get returns the document body and whether the document exists.
func (s *Store) Get(ctx context.Context, collection, id string) (string, bool, error) {
	row, err := s.take(s.db.WithContext(ctx), collection, id)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Body, true, nil
}

// Merge sets fields on the document, creating it when missing. Fields not
// named keep their stored value.
func (s *Store) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	if collection == "" || id == "" {
		return errors.New("collection and id are required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		body := "{}"
		row, err := s.take(tx, collection, id)
		switch {
		case err == nil:
			body = row.Body
		case !errors.Is(err, ErrNotFound):
			return err
		}
		merged, err := MergeJSON(body, fields)
		if err != nil {
			return err
		}
		next := dbmodel.Document{
			Collection: collection,
			DocID:      id,
			Body:       merged,
			UpdatedAt:  s.nowFunc().UTC().Unix(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"body":       next.Body,
				"updated_at": next.UpdatedAt,
			}),
		}).Create(&next).Error
	})
}

func (s *Store) take(tx *gorm.DB, collection, id string) (dbmodel.Document, error) {
	if s == nil || s.db == nil {
		return dbmodel.Document{}, errors.New("document store is not initialized")
	}
	var row dbmodel.Document
	err := tx.Where("collection = ? AND doc_id = ?", collection, id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dbmodel.Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return dbmodel.Document{}, err
	}
	return row, nil
}

// MergeJSON applies fields to body in key order. An invalid body is
// replaced by an empty object.
func MergeJSON(body string, fields map[string]any) (string, error) {
	if !gjson.Valid(body) || !gjson.Parse(body).IsObject() {
		body = "{}"
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var err error
	for _, k := range keys {
		body, err = sjson.Set(body, escapeKey(k), fields[k])
		if err != nil {
			return "", fmt.Errorf("merge field %q: %w", k, err)
		}
	}
	return body, nil
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`, `:`, `\:`)

func escapeKey(k string) string {
	return keyEscaper.Replace(k)
}
