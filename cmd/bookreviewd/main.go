// Command bookreviewd runs the book catalog and review HTTP service.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/manishdait/book-review-api/internal/config"
	"github.com/manishdait/book-review-api/internal/httpapi"
	"github.com/manishdait/book-review-api/internal/logging"
	"github.com/manishdait/book-review-api/internal/middleware"
	"github.com/manishdait/book-review-api/internal/services/catalog"
	"github.com/manishdait/book-review-api/internal/services/identity"
	reviewsvc "github.com/manishdait/book-review-api/internal/services/review"
	"github.com/manishdait/book-review-api/internal/storage"
	"github.com/manishdait/book-review-api/internal/storage/memory"
	"github.com/manishdait/book-review-api/internal/storage/postgres"
	"github.com/manishdait/book-review-api/internal/storage/postgres/migrations"
)

type stores struct {
	users   storage.UserStore
	books   storage.BookStore
	reviews storage.ReviewStore
	closer  func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("bookreviewd", cfg.LogLevel, cfg.LogFormat)

	st, err := openStores(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("datastore setup failed")
	}
	if st.closer != nil {
		defer func() { _ = st.closer() }()
	}

	identitySvc, err := identity.New(st.users, cfg.AccessTokenKey, log.WithField("component", "identity"))
	if err != nil {
		log.WithError(err).Fatal("identity service setup failed")
	}
	catalogSvc := catalog.New(st.books, st.reviews, st.users, log.WithField("component", "catalog"))
	reviewSvc := reviewsvc.New(st.books, st.users, st.reviews, log.WithField("component", "review"))

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log.WithField("component", "ratelimit"))
	limiter.StartCleanup(10 * time.Minute)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Identity:    identitySvc,
		Catalog:     catalogSvc,
		Reviews:     reviewSvc,
		Auth:        middleware.NewAuthMiddleware(cfg.AccessTokenKey, st.users, log.WithField("component", "auth")),
		RateLimiter: limiter,
		Logger:      log.WithField("component", "httpapi"),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	log.Info("server stopped")
}

// openStores connects to Postgres when DATASOURCE_URL is set and falls back
// to the in-memory store otherwise.
func openStores(cfg *config.Config, log *logging.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATASOURCE_URL not set, using in-memory storage")
		mem := memory.New()
		return stores{users: mem, books: mem, reviews: mem}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return stores{}, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return stores{}, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("connected to postgres")
	pg := postgres.New(db)
	return stores{users: pg, books: pg, reviews: pg, closer: db.Close}, nil
}
