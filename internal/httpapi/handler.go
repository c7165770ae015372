// Package httpapi exposes the REST surface of the book review service.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/manishdait/book-review-api/internal/domain/book"
	"github.com/manishdait/book-review-api/internal/domain/review"
	apperrors "github.com/manishdait/book-review-api/internal/errors"
	"github.com/manishdait/book-review-api/internal/logging"
	"github.com/manishdait/book-review-api/internal/metrics"
	"github.com/manishdait/book-review-api/internal/middleware"
	"github.com/manishdait/book-review-api/internal/services/catalog"
	"github.com/manishdait/book-review-api/internal/services/identity"
	reviewsvc "github.com/manishdait/book-review-api/internal/services/review"
	"github.com/manishdait/book-review-api/internal/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	identity *identity.Service
	catalog  *catalog.Service
	reviews  *reviewsvc.Service
	log      *logging.Logger
}

// RouterConfig carries the services and middleware the router wires together.
type RouterConfig struct {
	Identity    *identity.Service
	Catalog     *catalog.Service
	Reviews     *reviewsvc.Service
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
	Logger      *logging.Logger
}

// NewRouter returns the fully wired HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	h := &handler{
		identity: cfg.Identity,
		catalog:  cfg.Catalog,
		reviews:  cfg.Reviews,
		log:      log,
	}

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)
	r.Use(h.logRequests)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	limited := func(fn http.HandlerFunc) http.Handler {
		if cfg.RateLimiter == nil {
			return fn
		}
		return cfg.RateLimiter.Handler(fn)
	}
	protected := func(fn http.HandlerFunc) http.Handler {
		return cfg.Auth.Handler(fn)
	}

	api.Handle("/signup", limited(h.signup)).Methods(http.MethodPost)
	api.Handle("/login", limited(h.login)).Methods(http.MethodPost)

	api.Handle("/books", protected(h.addBook)).Methods(http.MethodPost)
	api.HandleFunc("/books", h.listBooks).Methods(http.MethodGet)
	api.HandleFunc("/books/{id}", h.getBook).Methods(http.MethodGet)
	api.Handle("/books/{id}/reviews", protected(h.submitReview)).Methods(http.MethodPost)

	api.Handle("/reviews/{id}", protected(h.updateReview)).Methods(http.MethodPut)
	api.Handle("/reviews/{id}", protected(h.deleteReview)).Methods(http.MethodDelete)

	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Debug("request handled")
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Username    string `json:"username"`
	AccessToken string `json:"accessToken"`
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var payload credentialsRequest
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	session, err := h.identity.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		Username:    session.Username,
		AccessToken: session.AccessToken,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload credentialsRequest
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	session, err := h.identity.Authenticate(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Username:    session.Username,
		AccessToken: session.AccessToken,
	})
}

type bookRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Author      string  `json:"author"`
	Genre       string  `json:"genre"`
	Price       float64 `json:"price"`
}

type bookResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Genre       string    `json:"genre"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toBookResponse(b book.Book) bookResponse {
	return bookResponse{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Author:      b.Author,
		Genre:       b.Genre,
		Price:       b.Price,
		CreatedAt:   b.CreatedAt,
	}
}

func (h *handler) addBook(w http.ResponseWriter, r *http.Request) {
	var payload bookRequest
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	created, err := h.catalog.AddBook(r.Context(), book.Book{
		Title:       payload.Title,
		Description: payload.Description,
		Author:      payload.Author,
		Genre:       payload.Genre,
		Price:       payload.Price,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookResponse(created))
}

type bookListResponse struct {
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalBooks int            `json:"totalBooks"`
	TotalPages int            `json:"totalPages"`
	Data       []bookResponse `json:"data"`
}

func (h *handler) listBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listing, err := h.catalog.ListBooks(r.Context(),
		storage.BookFilter{Author: q.Get("author"), Genre: q.Get("genre")},
		pageFromQuery(q.Get("page"), q.Get("limit")),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]bookResponse, 0, len(listing.Books))
	for _, b := range listing.Books {
		data = append(data, toBookResponse(b))
	}
	writeJSON(w, http.StatusOK, bookListResponse{
		Page:       listing.Page,
		Limit:      listing.Limit,
		TotalBooks: listing.Total,
		TotalPages: listing.TotalPages,
		Data:       data,
	})
}

type reviewResponse struct {
	ID        string    `json:"id"`
	Comment   string    `json:"comment"`
	Rating    int       `json:"rating"`
	BookID    string    `json:"bookId"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

func toReviewResponse(a review.Authored) reviewResponse {
	return reviewResponse{
		ID:        a.ID,
		Comment:   a.Comment,
		Rating:    a.Rating,
		BookID:    a.BookID,
		User:      a.Username,
		CreatedAt: a.CreatedAt,
	}
}

type reviewListResponse struct {
	Page         int              `json:"page"`
	Limit        int              `json:"limit"`
	TotalReviews int              `json:"totalReviews"`
	TotalPages   int              `json:"totalPages"`
	Data         []reviewResponse `json:"data"`
}

type bookDetailResponse struct {
	bookResponse
	AverageRating float64            `json:"averageRating"`
	Reviews       reviewListResponse `json:"reviews"`
}

func (h *handler) getBook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()

	detail, err := h.catalog.GetBook(r.Context(), id, pageFromQuery(q.Get("page"), q.Get("limit")))
	if err != nil {
		writeError(w, err)
		return
	}

	reviews := make([]reviewResponse, 0, len(detail.Reviews.Reviews))
	for _, a := range detail.Reviews.Reviews {
		reviews = append(reviews, toReviewResponse(a))
	}
	writeJSON(w, http.StatusOK, bookDetailResponse{
		bookResponse:  toBookResponse(detail.Book),
		AverageRating: detail.AverageRating,
		Reviews: reviewListResponse{
			Page:         detail.Reviews.Page,
			Limit:        detail.Reviews.Limit,
			TotalReviews: detail.Reviews.Total,
			TotalPages:   detail.Reviews.TotalPages,
			Data:         reviews,
		},
	})
}

type reviewRequest struct {
	Comment string `json:"comment"`
	Rating  int    `json:"rating"`
}

func (h *handler) submitReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("missing identity"))
		return
	}

	var payload reviewRequest
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	created, err := h.reviews.Submit(r.Context(), mux.Vars(r)["id"], userID, payload.Comment, payload.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordReviewCreated()
	writeJSON(w, http.StatusOK, toReviewResponse(created))
}

func (h *handler) updateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("missing identity"))
		return
	}

	var payload reviewRequest
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	updated, err := h.reviews.Update(r.Context(), mux.Vars(r)["id"], userID, payload.Comment, payload.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewResponse(updated))
}

func (h *handler) deleteReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthorized("missing identity"))
		return
	}

	deletedID, err := h.reviews.Delete(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted_review": deletedID})
}

// pageFromQuery parses page/limit query values; the catalog service clamps
// out-of-range results to its defaults.
func pageFromQuery(pageRaw, limitRaw string) catalog.Page {
	p := catalog.Page{}
	if n, err := strconv.Atoi(pageRaw); err == nil {
		p.Number = n
	}
	if n, err := strconv.Atoi(limitRaw); err == nil {
		p.Limit = n
	}
	return p
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": apperrors.Message(err)})
}
