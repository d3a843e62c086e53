package database

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("database: record not found")
	ErrDuplicate = errors.New("database: duplicate key")
	// ErrStale means a conditional update matched no row because the
	// guarded column changed since it was read.
	ErrStale = errors.New("database: record changed concurrently")
	// ErrInUse means a delete was refused by a foreign key.
	ErrInUse = errors.New("database: record is still referenced")
)

// Translate maps gorm errors onto the package error values. It relies on
// gorm.Config.TranslateError being enabled.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrInUse
	default:
		return err
	}
}
