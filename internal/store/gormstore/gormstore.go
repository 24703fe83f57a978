// Package gormstore implements the store contracts on top of gorm.
package gormstore

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"shuttle_tracker/internal/store"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// translate maps gorm errors onto the store sentinels.
// The dialector must be opened with TranslateError for duplicates to be recognised.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrap(store.ErrDuplicate, err.Error())
	}
	return err
}

func paginate(p store.Page) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.Limit > 0 {
			return db.Offset(p.Offset()).Limit(p.Limit)
		}
		return db
	}
}
