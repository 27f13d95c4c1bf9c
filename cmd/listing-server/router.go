package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/paged-listing/pkg/metrics"
	"github.com/Sternrassler/paged-listing/pkg/pagination"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// listing is the part of *pagination.Listing the handlers drive.
type listing interface {
	Name() string
	Snapshot() pagination.Snapshot[item]
	LoadMore() error
	LoadAround(index int) error
	Retry() error
	Refresh() error
}

// itemsResponse is the body of GET /items.
type itemsResponse struct {
	Name       string               `json:"name"`
	Items      []item               `json:"items"`
	Count      int                  `json:"count"`
	Refresh    pagination.LoadState `json:"refresh"`
	Network    pagination.LoadState `json:"network"`
	Generation uint64               `json:"generation"`
	Exhausted  bool                 `json:"exhausted"`
}

// newRouter creates the HTTP router for one listing.
func newRouter(l listing, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	h := &handlers{listing: l, logger: logger}

	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.GetItems)
		r.Post("/more", h.action("load_more", l.LoadMore))
		r.Post("/retry", h.action("retry", l.Retry))
		r.Post("/refresh", h.action("refresh", l.Refresh))
	})

	return r
}

type handlers struct {
	listing listing
	logger  zerolog.Logger
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// GetItems returns the current snapshot. With ?around=N it first reports
// that item N is being shown, which may request the next page.
func (h *handlers) GetItems(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("around"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil || index < 0 {
			writeError(w, http.StatusBadRequest, "around must be a non-negative integer")
			return
		}
		if err := h.listing.LoadAround(index); err != nil {
			h.fail(w, "load_around", err)
			return
		}
	}

	snap := h.listing.Snapshot()
	items := snap.Items
	if items == nil {
		items = []item{}
	}
	writeJSON(w, http.StatusOK, itemsResponse{
		Name:       h.listing.Name(),
		Items:      items,
		Count:      len(items),
		Refresh:    snap.Refresh,
		Network:    snap.Network,
		Generation: snap.Generation,
		Exhausted:  snap.Exhausted,
	})
}

// action accepts a paging command. Commands run asynchronously; the effect
// shows up in later GET /items responses.
func (h *handlers) action(name string, fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			h.fail(w, name, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "action": name})
	}
}

func (h *handlers) fail(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, pagination.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.logger.Error().Err(err).Str("action", action).Msg("Listing action failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs every request with its status at debug level.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Dur("duration", time.Since(start)).
				Msg("Request served")
		})
	}
}
