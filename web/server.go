// Package web serves the price dashboard and its JSON API.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/model"
)

// ItemTracker is the slice of the tracker the dashboard consumes.
type ItemTracker interface {
	GetAll() map[string]model.ItemData
	GetOne(id string) (*model.ItemData, error)
	UpdateOne(id string) (*model.ItemResult, error)
	Rebuild(items []model.TrackedItem) error
	URL(id string) (string, bool)
}

// ItemRegistry is the slice of the registry the dashboard consumes.
type ItemRegistry interface {
	Items() []model.TrackedItem
	History() []model.HistoryEntry
	Add(name, url string) error
	Remove(url string) error
	Restore(url string) error
}

// Deps carries everything the handlers need.
type Deps struct {
	Tracker  ItemTracker
	Registry ItemRegistry
	ThumbDir string
	// UpdateTrigger fires the scheduler's manual batch update. May be nil.
	UpdateTrigger chan struct{}
	Logger        logger.Logger
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http *http.Server
	log  logger.Logger
}

// New builds the dashboard server (router, middlewares, routes).
func New(addr string, d Deps) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           Router(d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{http: s, log: d.Logger}
}

// Router builds the chi router serving the dashboard page, the JSON API and
// the thumbnail files.
func Router(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	// A single-item update fetches the live page, which can take seconds.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", handleIndex(d))

	r.Route("/api", func(r chi.Router) {
		r.Get("/items", handleGetItems(d))
		r.Post("/items", handleAddItem(d))
		r.Get("/items/{id}", handleGetItem(d))
		r.Delete("/items/{id}", handleRemoveItem(d))
		r.Post("/items/{id}/update", handleUpdateItem(d))
		r.Get("/status", handleStatus(d))
		r.Get("/history", handleHistory(d))
		r.Post("/history/restore", handleRestoreItem(d))
		r.Post("/update", handleUpdateAll(d))
	})

	if d.ThumbDir != "" {
		fs := http.StripPrefix("/thumbnails/", http.FileServer(http.Dir(d.ThumbDir)))
		r.Get("/thumbnails/*", fs.ServeHTTP)
	}

	return r
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.log.Infof("dashboard listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("dashboard shutting down...")
	return s.http.Shutdown(ctx)
}
