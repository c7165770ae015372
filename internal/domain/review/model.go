package review

import "time"

// Rating bounds for a review.
const (
	MinRating = 0
	MaxRating = 5
)

// Review links exactly one user to exactly one book. At most one review may
// exist per (book, user) pair; only the owning user may mutate or delete it.
type Review struct {
	ID        string
	Comment   string
	Rating    int
	BookID    string
	UserID    string
	CreatedAt time.Time
}

// Authored pairs a review with its author's username for read responses.
type Authored struct {
	Review
	Username string
}
