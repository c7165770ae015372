// Package review enforces the per-book-per-user uniqueness and ownership rules
// for review mutation.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/manishdait/book-review-api/internal/domain/review"
	apperrors "github.com/manishdait/book-review-api/internal/errors"
	"github.com/manishdait/book-review-api/internal/logging"
	"github.com/manishdait/book-review-api/internal/storage"
)

// Service provides review submission and owner-gated mutation.
type Service struct {
	books   storage.BookStore
	users   storage.UserStore
	reviews storage.ReviewStore
	log     *logging.Logger
}

// New constructs a review service.
func New(books storage.BookStore, users storage.UserStore, reviews storage.ReviewStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("review")
	}
	return &Service{
		books:   books,
		users:   users,
		reviews: reviews,
		log:     log,
	}
}

// Submit creates a review for bookID owned by userID. At most one review may
// exist per (book, user) pair; the storage layer's unique constraint backs the
// existence pre-check, so a concurrent double submission still surfaces as a
// conflict.
func (s *Service) Submit(ctx context.Context, bookID, userID, comment string, rating int) (review.Authored, error) {
	if err := validateRating(rating); err != nil {
		return review.Authored{}, err
	}

	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return review.Authored{}, apperrors.NotFound("book not found")
		}
		s.log.WithError(err).Error("book lookup failed")
		return review.Authored{}, apperrors.Internal("failed to submit review", err)
	}

	// The guard resolves the caller before dispatch, so a missing user here is
	// an internal inconsistency rather than a client error.
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("review author lookup failed")
		return review.Authored{}, apperrors.Internal("failed to submit review", err)
	}

	if _, err := s.reviews.GetReviewByBookUser(ctx, bookID, userID); err == nil {
		return review.Authored{}, apperrors.Conflict("you have already reviewed this book")
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.log.WithError(err).Error("existing review lookup failed")
		return review.Authored{}, apperrors.Internal("failed to submit review", err)
	}

	created, err := s.reviews.CreateReview(ctx, review.Review{
		Comment: comment,
		Rating:  rating,
		BookID:  bookID,
		UserID:  userID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return review.Authored{}, apperrors.Conflict("you have already reviewed this book")
		}
		s.log.WithError(err).Error("review creation failed")
		return review.Authored{}, apperrors.Internal("failed to submit review", err)
	}

	s.log.WithField("review_id", created.ID).
		WithField("book_id", bookID).
		WithField("user_id", userID).
		Info("review submitted")
	return review.Authored{Review: created, Username: u.Username}, nil
}

// Update rewrites the comment and rating of a review owned by requesterID.
func (s *Service) Update(ctx context.Context, reviewID, requesterID, comment string, rating int) (review.Authored, error) {
	if err := validateRating(rating); err != nil {
		return review.Authored{}, err
	}

	existing, err := s.resolveOwned(ctx, reviewID, requesterID)
	if err != nil {
		return review.Authored{}, err
	}

	existing.Comment = comment
	existing.Rating = rating
	updated, err := s.reviews.UpdateReview(ctx, existing)
	if err != nil {
		s.log.WithError(err).Error("review update failed")
		return review.Authored{}, apperrors.Internal("failed to update review", err)
	}

	s.log.WithField("review_id", reviewID).Info("review updated")
	return review.Authored{Review: updated, Username: s.resolveUsername(ctx, updated.UserID)}, nil
}

// Delete removes a review owned by requesterID and returns its id.
func (s *Service) Delete(ctx context.Context, reviewID, requesterID string) (string, error) {
	if _, err := s.resolveOwned(ctx, reviewID, requesterID); err != nil {
		return "", err
	}

	if err := s.reviews.DeleteReview(ctx, reviewID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperrors.NotFound("review not found")
		}
		s.log.WithError(err).Error("review deletion failed")
		return "", apperrors.Internal("failed to delete review", err)
	}

	s.log.WithField("review_id", reviewID).Info("review deleted")
	return reviewID, nil
}

// resolveOwned loads a review and verifies the requester owns it. Update and
// delete share this single check.
func (s *Service) resolveOwned(ctx context.Context, reviewID, requesterID string) (review.Review, error) {
	r, err := s.reviews.GetReview(ctx, reviewID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return review.Review{}, apperrors.NotFound("review not found")
		}
		s.log.WithError(err).Error("review lookup failed")
		return review.Review{}, apperrors.Internal("failed to resolve review", err)
	}
	if r.UserID != requesterID {
		s.log.WithField("review_id", reviewID).
			WithField("requester_id", requesterID).
			Warn("review mutation rejected: requester is not the owner")
		return review.Review{}, apperrors.Forbidden("you do not own this review")
	}
	return r, nil
}

func (s *Service) resolveUsername(ctx context.Context, userID string) string {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return u.Username
}

func validateRating(rating int) error {
	if rating < review.MinRating || rating > review.MaxRating {
		return apperrors.Validation(fmt.Sprintf("rating must be between %d and %d", review.MinRating, review.MaxRating))
	}
	return nil
}
