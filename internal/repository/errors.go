package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a compare-and-set update lost the race.
	ErrConflict = errors.New("concurrent modification")
	// ErrSessionInactive is returned when a write targets a session that has been closed.
	ErrSessionInactive = errors.New("session is not active")
)

// notFound translates pgx.ErrNoRows into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
