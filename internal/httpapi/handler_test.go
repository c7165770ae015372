package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/manishdait/book-review-api/internal/middleware"
	"github.com/manishdait/book-review-api/internal/services/catalog"
	"github.com/manishdait/book-review-api/internal/services/identity"
	reviewsvc "github.com/manishdait/book-review-api/internal/services/review"
	"github.com/manishdait/book-review-api/internal/storage/memory"
)

const testTokenKey = "handler-test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := memory.New()

	identitySvc, err := identity.New(store, testTokenKey, nil)
	if err != nil {
		t.Fatalf("identity.New: %v", err)
	}
	catalogSvc := catalog.New(store, store, store, nil)
	reviewSvc := reviewsvc.New(store, store, store, nil)

	return NewRouter(RouterConfig{
		Identity: identitySvc,
		Catalog:  catalogSvc,
		Reviews:  reviewSvc,
		Auth:     middleware.NewAuthMiddleware(testTokenKey, store, nil),
	})
}

func marshal(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(raw)
}

func do(handler http.Handler, method, path, token string, body *bytes.Reader) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func signupUser(t *testing.T, handler http.Handler, username string) string {
	t.Helper()
	rec := do(handler, http.MethodPost, "/api/v1/signup", "", marshal(t, map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "s3cret-pass",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: expected 201, got %d: %s", username, rec.Code, rec.Body.String())
	}
	var session map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if session["username"] != username || session["accessToken"] == "" {
		t.Fatalf("unexpected session payload: %v", session)
	}
	return session["accessToken"]
}

func TestHandlerLifecycle(t *testing.T) {
	handler := newTestRouter(t)

	aliceToken := signupUser(t, handler, "alice")
	bobToken := signupUser(t, handler, "bob")

	// Login returns a fresh session for an existing account.
	rec := do(handler, http.MethodPost, "/api/v1/login", "", marshal(t, map[string]any{
		"username": "alice",
		"password": "s3cret-pass",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Creating a book requires a token.
	bookBody := map[string]any{
		"title":       "Dune",
		"description": "Desert planet epic",
		"author":      "Frank Herbert",
		"genre":       "Sci-Fi",
		"price":       12.5,
	}
	rec = do(handler, http.MethodPost, "/api/v1/books", "", marshal(t, bookBody))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create book: expected 401, got %d", rec.Code)
	}

	rec = do(handler, http.MethodPost, "/api/v1/books", aliceToken, marshal(t, bookBody))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create book: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created bookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal book: %v", err)
	}
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Dune", created.Title)

	// Listing is public and paginated.
	rec = do(handler, http.MethodGet, "/api/v1/books?author=herbert", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list books: expected 200, got %d", rec.Code)
	}
	var listing bookListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("unmarshal listing: %v", err)
	}
	assert.Equal(t, 1, listing.Page)
	assert.Equal(t, 10, listing.Limit)
	assert.Equal(t, 1, listing.TotalBooks)
	assert.Equal(t, 1, listing.TotalPages)
	assert.Len(t, listing.Data, 1)

	// Each user reviews the book once.
	rec = do(handler, http.MethodPost, "/api/v1/books/"+created.ID+"/reviews", aliceToken,
		marshal(t, map[string]any{"comment": "A classic.", "rating": 4}))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit review: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var aliceReview reviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &aliceReview); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}
	assert.Equal(t, "alice", aliceReview.User)
	assert.Equal(t, 4, aliceReview.Rating)
	assert.Equal(t, created.ID, aliceReview.BookID)

	rec = do(handler, http.MethodPost, "/api/v1/books/"+created.ID+"/reviews", bobToken,
		marshal(t, map[string]any{"comment": "Too much sand.", "rating": 2}))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit second review: expected 200, got %d", rec.Code)
	}

	// A second review from the same user conflicts.
	rec = do(handler, http.MethodPost, "/api/v1/books/"+created.ID+"/reviews", aliceToken,
		marshal(t, map[string]any{"comment": "Again.", "rating": 5}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate review: expected 409, got %d", rec.Code)
	}

	// Detail includes the review page and its average rating.
	rec = do(handler, http.MethodGet, "/api/v1/books/"+created.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get book: expected 200, got %d", rec.Code)
	}
	var detail bookDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	assert.Equal(t, created.ID, detail.ID)
	assert.Equal(t, 3.0, detail.AverageRating)
	assert.Equal(t, 2, detail.Reviews.TotalReviews)
	assert.Len(t, detail.Reviews.Data, 2)

	// Only the owner may modify a review.
	rec = do(handler, http.MethodPut, "/api/v1/reviews/"+aliceReview.ID, bobToken,
		marshal(t, map[string]any{"comment": "hijacked", "rating": 0}))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign update: expected 403, got %d", rec.Code)
	}

	rec = do(handler, http.MethodPut, "/api/v1/reviews/"+aliceReview.ID, aliceToken,
		marshal(t, map[string]any{"comment": "A timeless classic.", "rating": 5}))
	if rec.Code != http.StatusOK {
		t.Fatalf("owner update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated reviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("unmarshal updated review: %v", err)
	}
	assert.Equal(t, 5, updated.Rating)
	assert.Equal(t, "A timeless classic.", updated.Comment)

	// Only the owner may delete a review.
	rec = do(handler, http.MethodDelete, "/api/v1/reviews/"+aliceReview.ID, bobToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign delete: expected 403, got %d", rec.Code)
	}

	rec = do(handler, http.MethodDelete, "/api/v1/reviews/"+aliceReview.ID, aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner delete: expected 200, got %d", rec.Code)
	}
	var deleted map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("unmarshal delete response: %v", err)
	}
	assert.Equal(t, aliceReview.ID, deleted["deleted_review"])

	// The review is gone afterwards.
	rec = do(handler, http.MethodDelete, "/api/v1/reviews/"+aliceReview.ID, aliceToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing review: expected 404, got %d", rec.Code)
	}
}

func TestHandlerValidation(t *testing.T) {
	handler := newTestRouter(t)

	// Unknown fields are rejected.
	rec := do(handler, http.MethodPost, "/api/v1/signup", "", marshal(t, map[string]any{
		"username": "carol",
		"password": "pw",
		"isAdmin":  true,
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", rec.Code)
	}

	// Duplicate usernames conflict.
	signupUser(t, handler, "carol")
	rec = do(handler, http.MethodPost, "/api/v1/signup", "", marshal(t, map[string]any{
		"username": "carol",
		"email":    "other@example.com",
		"password": "s3cret-pass",
	}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", rec.Code)
	}

	// Bad credentials are rejected.
	rec = do(handler, http.MethodPost, "/api/v1/login", "", marshal(t, map[string]any{
		"username": "carol",
		"password": "wrong",
	}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", rec.Code)
	}

	// Out-of-range ratings never reach storage.
	token := signupUser(t, handler, "dave")
	rec = do(handler, http.MethodPost, "/api/v1/books", token, marshal(t, map[string]any{
		"title":       "Solaris",
		"description": "Sentient ocean",
		"author":      "Stanislaw Lem",
		"genre":       "Sci-Fi",
		"price":       9.0,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create book: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var b bookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("unmarshal book: %v", err)
	}
	rec = do(handler, http.MethodPost, fmt.Sprintf("/api/v1/books/%s/reviews", b.ID), token,
		marshal(t, map[string]any{"comment": "x", "rating": 6}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("rating out of range: expected 400, got %d", rec.Code)
	}

	// Reviewing an unknown book is a 404.
	rec = do(handler, http.MethodPost, "/api/v1/books/missing/reviews", token,
		marshal(t, map[string]any{"comment": "x", "rating": 3}))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown book review: expected 404, got %d", rec.Code)
	}

	// Unknown book detail is a 404.
	rec = do(handler, http.MethodGet, "/api/v1/books/missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown book: expected 404, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(t)
	rec := do(handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
}
