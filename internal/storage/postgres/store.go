// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/manishdait/book-review-api/internal/domain/book"
	"github.com/manishdait/book-review-api/internal/domain/review"
	"github.com/manishdait/book-review-api/internal/domain/user"
	"github.com/manishdait/book-review-api/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.BookStore = (*Store)(nil)
var _ storage.ReviewStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// uniqueViolation is the postgres error code for a violated unique constraint.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, storage.ErrDuplicate
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = $1
	`, username))
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// --- BookStore --------------------------------------------------------------

func (s *Store) CreateBook(ctx context.Context, b book.Book) (book.Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, description, author, genre, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.Title, b.Description, b.Author, b.Genre, b.Price, b.CreatedAt)
	if err != nil {
		return book.Book{}, err
	}
	return b, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (book.Book, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, author, genre, price, created_at
		FROM books
		WHERE id = $1
	`, id)

	var b book.Book
	err := row.Scan(&b.ID, &b.Title, &b.Description, &b.Author, &b.Genre, &b.Price, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return book.Book{}, storage.ErrNotFound
	}
	if err != nil {
		return book.Book{}, err
	}
	return b, nil
}

// bookFilterClause builds the WHERE clause for a filter, appending bind
// arguments to args.
func bookFilterClause(f storage.BookFilter, args *[]interface{}) string {
	var conds []string
	if f.Author != "" {
		*args = append(*args, "%"+f.Author+"%")
		conds = append(conds, fmt.Sprintf("author ILIKE $%d", len(*args)))
	}
	if f.Genre != "" {
		*args = append(*args, "%"+f.Genre+"%")
		conds = append(conds, fmt.Sprintf("genre ILIKE $%d", len(*args)))
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (s *Store) ListBooks(ctx context.Context, f storage.BookFilter, offset, limit int) ([]book.Book, error) {
	var args []interface{}
	query := `
		SELECT id, title, description, author, genre, price, created_at
		FROM books` + bookFilterClause(f, &args)

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []book.Book{}
	for rows.Next() {
		var b book.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.Author, &b.Genre, &b.Price, &b.CreatedAt); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *Store) CountBooks(ctx context.Context, f storage.BookFilter) (int, error) {
	var args []interface{}
	query := `SELECT COUNT(*) FROM books` + bookFilterClause(f, &args)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// --- ReviewStore ------------------------------------------------------------

func (s *Store) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, comment, rating, book_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.Comment, r.Rating, r.BookID, r.UserID, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return review.Review{}, storage.ErrDuplicate
		}
		return review.Review{}, err
	}
	return r, nil
}

func (s *Store) GetReview(ctx context.Context, id string) (review.Review, error) {
	return s.scanReview(s.db.QueryRowContext(ctx, `
		SELECT id, comment, rating, book_id, user_id, created_at
		FROM reviews
		WHERE id = $1
	`, id))
}

func (s *Store) GetReviewByBookUser(ctx context.Context, bookID, userID string) (review.Review, error) {
	return s.scanReview(s.db.QueryRowContext(ctx, `
		SELECT id, comment, rating, book_id, user_id, created_at
		FROM reviews
		WHERE book_id = $1 AND user_id = $2
	`, bookID, userID))
}

func (s *Store) scanReview(row *sql.Row) (review.Review, error) {
	var r review.Review
	err := row.Scan(&r.ID, &r.Comment, &r.Rating, &r.BookID, &r.UserID, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Review{}, storage.ErrNotFound
	}
	if err != nil {
		return review.Review{}, err
	}
	return r, nil
}

func (s *Store) UpdateReview(ctx context.Context, r review.Review) (review.Review, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reviews
		SET comment = $2, rating = $3
		WHERE id = $1
	`, r.ID, r.Comment, r.Rating)
	if err != nil {
		return review.Review{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return review.Review{}, storage.ErrNotFound
	}
	return s.GetReview(ctx, r.ID)
}

func (s *Store) DeleteReview(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM reviews
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListReviews(ctx context.Context, bookID string, offset, limit int) ([]review.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, comment, rating, book_id, user_id, created_at
		FROM reviews
		WHERE book_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, bookID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []review.Review{}
	for rows.Next() {
		var r review.Review
		if err := rows.Scan(&r.ID, &r.Comment, &r.Rating, &r.BookID, &r.UserID, &r.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *Store) CountReviews(ctx context.Context, bookID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reviews WHERE book_id = $1
	`, bookID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
