package database

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a card was modified by a concurrent review
	ErrConflict = errors.New("concurrent update")
)

// wrapErr maps sql.ErrNoRows to ErrNotFound and adds context to everything else
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
