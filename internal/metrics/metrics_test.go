package metrics

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/api/v1/signup", "/api/v1/signup"},
		{"/api/v1/login", "/api/v1/login"},
		{"/api/v1/books", "/api/v1/books"},
		{"/api/v1/books/42", "/api/v1/books/:id"},
		{"/api/v1/books/42/reviews", "/api/v1/books/:id/reviews"},
		{"/api/v1/reviews/7", "/api/v1/reviews/:id"},
	}
	for _, tc := range cases {
		if got := canonicalPath(tc.in); got != tc.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
