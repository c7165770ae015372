// Package catalog manages books and their paginated review summaries.
package catalog

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/manishdait/book-review-api/internal/domain/book"
	"github.com/manishdait/book-review-api/internal/domain/review"
	apperrors "github.com/manishdait/book-review-api/internal/errors"
	"github.com/manishdait/book-review-api/internal/logging"
	"github.com/manishdait/book-review-api/internal/storage"
)

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Page describes a requested slice of a listing. Zero or negative values fall
// back to the defaults.
type Page struct {
	Number int
	Limit  int
}

func (p Page) normalized() Page {
	if p.Number <= 0 {
		p.Number = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Limit
}

// Listing is one page of the book catalog.
type Listing struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	Books      []book.Book
}

// ReviewListing is one page of a book's reviews.
type ReviewListing struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	Reviews    []review.Authored
}

// Detail is a single book with its review page and the average rating of that
// page.
type Detail struct {
	Book book.Book
	// AverageRating is the mean rating of the fetched review page only,
	// rounded to one decimal; 0 when the page is empty.
	AverageRating float64
	Reviews       ReviewListing
}

// Service provides catalog operations.
type Service struct {
	books   storage.BookStore
	reviews storage.ReviewStore
	users   storage.UserStore
	log     *logging.Logger
}

// New constructs a catalog service.
func New(books storage.BookStore, reviews storage.ReviewStore, users storage.UserStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("catalog")
	}
	return &Service{
		books:   books,
		reviews: reviews,
		users:   users,
		log:     log,
	}
}

// AddBook validates and persists a new catalog entry.
func (s *Service) AddBook(ctx context.Context, b book.Book) (book.Book, error) {
	b.Title = strings.TrimSpace(b.Title)
	b.Description = strings.TrimSpace(b.Description)
	b.Author = strings.TrimSpace(b.Author)
	b.Genre = strings.TrimSpace(b.Genre)

	if b.Title == "" || b.Description == "" || b.Author == "" || b.Genre == "" {
		return book.Book{}, apperrors.Validation("title, description, author and genre are required")
	}
	if b.Price < 0 {
		return book.Book{}, apperrors.Validation("price must not be negative")
	}

	created, err := s.books.CreateBook(ctx, b)
	if err != nil {
		s.log.WithError(err).Error("book creation failed")
		return book.Book{}, apperrors.Internal("failed to add book", err)
	}

	s.log.WithField("book_id", created.ID).
		WithField("title", created.Title).
		Info("book added")
	return created, nil
}

// ListBooks returns one page of the catalog matching the filter, with totals
// computed over the filtered set.
func (s *Service) ListBooks(ctx context.Context, f storage.BookFilter, page Page) (Listing, error) {
	page = page.normalized()

	total, err := s.books.CountBooks(ctx, f)
	if err != nil {
		s.log.WithError(err).Error("book count failed")
		return Listing{}, apperrors.Internal("failed to fetch books", err)
	}

	books, err := s.books.ListBooks(ctx, f, page.offset(), page.Limit)
	if err != nil {
		s.log.WithError(err).Error("book listing failed")
		return Listing{}, apperrors.Internal("failed to fetch books", err)
	}

	return Listing{
		Page:       page.Number,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: totalPages(total, page.Limit),
		Books:      books,
	}, nil
}

// GetBook fetches a single book with one page of its reviews.
func (s *Service) GetBook(ctx context.Context, id string, reviewPage Page) (Detail, error) {
	b, err := s.books.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Detail{}, apperrors.NotFound("book not found")
		}
		s.log.WithError(err).Error("book lookup failed")
		return Detail{}, apperrors.Internal("failed to fetch book", err)
	}

	reviewPage = reviewPage.normalized()

	total, err := s.reviews.CountReviews(ctx, id)
	if err != nil {
		s.log.WithError(err).Error("review count failed")
		return Detail{}, apperrors.Internal("failed to fetch book", err)
	}

	reviews, err := s.reviews.ListReviews(ctx, id, reviewPage.offset(), reviewPage.Limit)
	if err != nil {
		s.log.WithError(err).Error("review listing failed")
		return Detail{}, apperrors.Internal("failed to fetch book", err)
	}

	authored := make([]review.Authored, 0, len(reviews))
	var sum int
	for _, r := range reviews {
		sum += r.Rating
		authored = append(authored, review.Authored{
			Review:   r,
			Username: s.resolveUsername(ctx, r.UserID),
		})
	}

	var average float64
	if len(reviews) > 0 {
		average = math.Round(float64(sum)/float64(len(reviews))*10) / 10
	}

	return Detail{
		Book:          b,
		AverageRating: average,
		Reviews: ReviewListing{
			Page:       reviewPage.Number,
			Limit:      reviewPage.Limit,
			Total:      total,
			TotalPages: totalPages(total, reviewPage.Limit),
			Reviews:    authored,
		},
	}, nil
}

// resolveUsername maps a user id to its username, empty when unresolvable.
func (s *Service) resolveUsername(ctx context.Context, userID string) string {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return u.Username
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
