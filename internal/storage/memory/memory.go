// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manishdait/book-review-api/internal/domain/book"
	"github.com/manishdait/book-review-api/internal/domain/review"
	"github.com/manishdait/book-review-api/internal/domain/user"
	"github.com/manishdait/book-review-api/internal/storage"
)

// Store is the in-memory backend. Uniqueness of usernames, emails and
// (book, user) review pairs is enforced under the store mutex, mirroring the
// unique indexes the postgres backend relies on.
type Store struct {
	mu sync.RWMutex

	users           map[string]user.User
	usersByUsername map[string]string
	usersByEmail    map[string]string

	books     map[string]book.Book
	bookOrder []string

	reviews       map[string]review.Review
	reviewByPair  map[string]string
	reviewsByBook map[string][]string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.BookStore = (*Store)(nil)
var _ storage.ReviewStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:           make(map[string]user.User),
		usersByUsername: make(map[string]string),
		usersByEmail:    make(map[string]string),
		books:           make(map[string]book.Book),
		reviews:         make(map[string]review.Review),
		reviewByPair:    make(map[string]string),
		reviewsByBook:   make(map[string][]string),
	}
}

func pairKey(bookID, userID string) string {
	return bookID + "\x00" + userID
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByUsername[u.Username]; taken {
		return user.User{}, storage.ErrDuplicate
	}
	if _, taken := s.usersByEmail[u.Email]; taken {
		return user.User{}, storage.ErrDuplicate
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	s.users[u.ID] = u
	s.usersByUsername[u.Username] = u.ID
	s.usersByEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByUsername[username]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// BookStore implementation ----------------------------------------------------

func (s *Store) CreateBook(_ context.Context, b book.Book) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = time.Now().UTC()

	s.books[b.ID] = b
	s.bookOrder = append(s.bookOrder, b.ID)
	return b, nil
}

func (s *Store) GetBook(_ context.Context, id string) (book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return book.Book{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBooks(_ context.Context, f storage.BookFilter, offset, limit int) ([]book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.matchedBooksLocked(f)
	if offset >= len(matched) {
		return []book.Book{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return append([]book.Book{}, matched[offset:end]...), nil
}

func (s *Store) CountBooks(_ context.Context, f storage.BookFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.matchedBooksLocked(f)), nil
}

func (s *Store) matchedBooksLocked(f storage.BookFilter) []book.Book {
	matched := make([]book.Book, 0, len(s.bookOrder))
	for _, id := range s.bookOrder {
		b := s.books[id]
		if f.Author != "" && !containsFold(b.Author, f.Author) {
			continue
		}
		if f.Genre != "" && !containsFold(b.Genre, f.Genre) {
			continue
		}
		matched = append(matched, b)
	}
	return matched
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ReviewStore implementation --------------------------------------------------

func (s *Store) CreateReview(_ context.Context, r review.Review) (review.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(r.BookID, r.UserID)
	if _, exists := s.reviewByPair[key]; exists {
		return review.Review{}, storage.ErrDuplicate
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	s.reviews[r.ID] = r
	s.reviewByPair[key] = r.ID
	s.reviewsByBook[r.BookID] = append(s.reviewsByBook[r.BookID], r.ID)
	return r, nil
}

func (s *Store) GetReview(_ context.Context, id string) (review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[id]
	if !ok {
		return review.Review{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetReviewByBookUser(_ context.Context, bookID, userID string) (review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.reviewByPair[pairKey(bookID, userID)]
	if !ok {
		return review.Review{}, storage.ErrNotFound
	}
	return s.reviews[id], nil
}

func (s *Store) UpdateReview(_ context.Context, r review.Review) (review.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.reviews[r.ID]
	if !ok {
		return review.Review{}, storage.ErrNotFound
	}

	original.Comment = r.Comment
	original.Rating = r.Rating
	s.reviews[r.ID] = original
	return original, nil
}

func (s *Store) DeleteReview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return storage.ErrNotFound
	}

	delete(s.reviews, id)
	delete(s.reviewByPair, pairKey(r.BookID, r.UserID))

	ids := s.reviewsByBook[r.BookID]
	for i, rid := range ids {
		if rid == id {
			s.reviewsByBook[r.BookID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ListReviews(_ context.Context, bookID string, offset, limit int) ([]review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.reviewsByBook[bookID]
	if offset >= len(ids) {
		return []review.Review{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}

	result := make([]review.Review, 0, end-offset)
	for _, id := range ids[offset:end] {
		result = append(result, s.reviews[id])
	}
	return result, nil
}

func (s *Store) CountReviews(_ context.Context, bookID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.reviewsByBook[bookID]), nil
}
