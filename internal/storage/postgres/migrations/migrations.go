// Package migrations applies the database schema. Statements are idempotent so
// Apply can run unconditionally at startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		author TEXT NOT NULL,
		genre TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL CHECK (price >= 0),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	// The unique (book_id, user_id) pair is the storage-level guard against
	// two concurrent submissions racing past the service-side existence check.
	`CREATE TABLE IF NOT EXISTS reviews (
		id UUID PRIMARY KEY,
		comment TEXT NOT NULL,
		rating INTEGER NOT NULL DEFAULT 0 CHECK (rating BETWEEN 0 AND 5),
		book_id UUID NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (book_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_books_author ON books (lower(author))`,
	`CREATE INDEX IF NOT EXISTS idx_books_genre ON books (lower(genre))`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_book ON reviews (book_id, created_at)`,
}

// Apply executes all schema statements against db.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
