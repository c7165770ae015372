package book

import "time"

// Book is a catalog entry. Books are immutable once created; many reviews may
// reference one book.
type Book struct {
	ID          string
	Title       string
	Description string
	Author      string
	Genre       string
	Price       float64
	CreatedAt   time.Time
}
