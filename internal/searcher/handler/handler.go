package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/post-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/tracing"
)

// CacheHeader reports HIT or MISS on search responses.
const CacheHeader = "X-Cache"

type SearchCache interface {
	Search(ctx context.Context, q parser.Query) (*executor.SearchResult, bool, error)
	Invalidate(ctx context.Context) (int64, error)
	Stats() cache.Stats
}

type IndexManager interface {
	Stats() index.Stats
	Optimize() int
	Build(ctx context.Context, source posts.Source) (int, error)
}

type Handler struct {
	cache   SearchCache
	index   IndexManager
	source  posts.Source
	tracker analytics.Tracker
	cfg     config.SearchConfig
	tracing bool
	logger  *slog.Logger
}

// New wires the search endpoints. tracker may be nil.
func New(c SearchCache, idx IndexManager, source posts.Source, tracker analytics.Tracker, cfg config.SearchConfig, tracingEnabled bool) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = parser.DefaultLimit
	}
	return &Handler{
		cache:   c,
		index:   idx,
		source:  source,
		tracker: tracker,
		cfg:     cfg,
		tracing: tracingEnabled,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/search/stats", h.SearchStats)
	mux.HandleFunc("POST /api/v1/index/optimize", h.Optimize)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetRequestID(r.Context())
	ctx, span := tracing.StartSpan(r.Context(), "http.search", requestID)
	log := logger.FromContext(ctx)

	q, err := h.parseQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	span.SetAttr("query", q.Text)

	var (
		result   *executor.SearchResult
		cacheHit bool
	)
	err = tracing.Trace(ctx, "cache.search", func(ctx context.Context) error {
		var err error
		result, cacheHit, err = h.cache.Search(ctx, q)
		tracing.SpanFromContext(ctx).SetAttr("cache_hit", cacheHit)
		return err
	})
	span.End()
	if h.tracing {
		span.Log(log)
	}
	if err != nil {
		log.Error("search failed", "query", q.Text, "error", err)
		h.writeError(w, err)
		return
	}

	latency := time.Since(start)
	log.Info("search completed",
		"query", q.Text,
		"total", result.Total,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency", latency,
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:      analytics.TypeFor(result.Total, cacheHit),
			Query:     q.Text,
			Terms:     result.Terms,
			Total:     result.Total,
			Returned:  len(result.Results),
			Limit:     q.Limit,
			Offset:    q.Offset,
			BoardID:   q.BoardID,
			LatencyMs: float64(latency.Microseconds()) / 1000,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: requestID,
		})
	}
	if cacheHit {
		w.Header().Set(CacheHeader, "HIT")
	} else {
		w.Header().Set(CacheHeader, "MISS")
	}
	h.writeJSON(w, http.StatusOK, result)
}

// SearchStats reports the shape of the index alongside cache counters.
func (h *Handler) SearchStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"index": h.index.Stats(),
		"cache": h.cache.Stats(),
	})
}

func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	removed := h.index.Optimize()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"duplicates_removed": removed,
		"index":              h.index.Stats(),
	})
}

// Rebuild reloads every post into a fresh index and clears cached results.
// The build outlives a disconnected client; it is bounded by the indexer's
// build timeout instead.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	ctx := context.WithoutCancel(r.Context())

	n, err := h.index.Build(ctx, h.source)
	if err != nil {
		log.Error("index rebuild failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "index rebuild failed"})
		return
	}
	invalidated := true
	deleted, err := h.cache.Invalidate(ctx)
	if err != nil {
		invalidated = false
		log.Warn("cache invalidation after rebuild failed", "error", err)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"posts_indexed":      n,
		"cache_invalidated":  invalidated,
		"cache_keys_deleted": deleted,
		"index":              h.index.Stats(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
}

func (h *Handler) parseQuery(r *http.Request) (parser.Query, error) {
	params := r.URL.Query()
	q := parser.Query{
		Text:  params.Get("q"),
		Limit: h.cfg.DefaultLimit,
	}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperrors.Invalidf("limit must be an integer, got %q", raw)
		}
		if h.cfg.MaxLimit > 0 && limit > h.cfg.MaxLimit {
			return q, apperrors.Invalidf("limit must be at most %d, got %d", h.cfg.MaxLimit, limit)
		}
		q.Limit = limit
	}
	if raw := params.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperrors.Invalidf("offset must be an integer, got %q", raw)
		}
		q.Offset = offset
	}
	if raw := params.Get("board_id"); raw != "" {
		boardID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return q, apperrors.Invalidf("board_id must be an integer, got %q", raw)
		}
		q = q.ForBoard(boardID)
	}
	return q, q.Validate()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError exposes client errors verbatim and hides server-side detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := "search failed"
	if status < http.StatusInternalServerError {
		message = err.Error()
	} else if status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout {
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
