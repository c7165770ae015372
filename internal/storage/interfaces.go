// Package storage defines the persistence interfaces shared by all backends.
package storage

import (
	"context"
	"errors"

	"github.com/manishdait/book-review-api/internal/domain/book"
	"github.com/manishdait/book-review-api/internal/domain/review"
	"github.com/manishdait/book-review-api/internal/domain/user"
)

// Sentinel errors reported by every backend.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrDuplicate indicates a write violated a uniqueness constraint.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// BookFilter narrows book listings. Empty fields match everything; non-empty
// fields match case-insensitively on any substring.
type BookFilter struct {
	Author string
	Genre  string
}

// UserStore persists user records.
type UserStore interface {
	// CreateUser stores a new user, returning ErrDuplicate when the username
	// or email is already taken.
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
}

// BookStore persists catalog entries.
type BookStore interface {
	CreateBook(ctx context.Context, b book.Book) (book.Book, error)
	GetBook(ctx context.Context, id string) (book.Book, error)
	// ListBooks returns the filtered page in insertion order.
	ListBooks(ctx context.Context, f BookFilter, offset, limit int) ([]book.Book, error)
	CountBooks(ctx context.Context, f BookFilter) (int, error)
}

// ReviewStore persists reviews and enforces the one-review-per-(book, user)
// constraint: CreateReview returns ErrDuplicate when the pair already exists.
type ReviewStore interface {
	CreateReview(ctx context.Context, r review.Review) (review.Review, error)
	GetReview(ctx context.Context, id string) (review.Review, error)
	GetReviewByBookUser(ctx context.Context, bookID, userID string) (review.Review, error)
	// UpdateReview rewrites comment and rating; identity fields and the
	// creation timestamp are preserved.
	UpdateReview(ctx context.Context, r review.Review) (review.Review, error)
	DeleteReview(ctx context.Context, id string) error
	ListReviews(ctx context.Context, bookID string, offset, limit int) ([]review.Review, error)
	CountReviews(ctx context.Context, bookID string) (int, error)
}
