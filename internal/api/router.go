package api

import (
	"fmt"
	"net/http"

	"github.com/NamiraNet/voicepost/internal/config"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	CORSOrigins []string
	ForceHTTPS  bool
	RateLimit   config.RateLimitConfig
	Metrics     *Metrics

	// Gatherer serves /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

// NewRouter wraps the API routes in security headers, CORS, request logging,
// the global rate limit and gzip, in that order from the outside in.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	wl := cfg.RateLimit.Whitelist
	globalLimit, err := newLimiter(cfg.RateLimit.Global, wl)
	if err != nil {
		return nil, fmt.Errorf("global rate limit: %w", err)
	}
	uploadLimit, err := newLimiter(cfg.RateLimit.Upload, wl)
	if err != nil {
		return nil, fmt.Errorf("upload rate limit: %w", err)
	}
	transcribeLimit, err := newLimiter(cfg.RateLimit.Transcribe, wl)
	if err != nil {
		return nil, fmt.Errorf("transcribe rate limit: %w", err)
	}
	generateLimit, err := newLimiter(cfg.RateLimit.Generate, wl)
	if err != nil {
		return nil, fmt.Errorf("generate rate limit: %w", err)
	}

	r := mux.NewRouter()
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.instrument)
	}

	// Routes sit on r itself: mux only reports 405 for routes on the router
	// that owns MethodNotAllowedHandler.
	r.Handle("/api/upload", limited(uploadLimit, h.handleUpload)).Methods(http.MethodPost)
	r.Handle("/api/transcribe", limited(transcribeLimit, h.handleTranscribe)).Methods(http.MethodPost)
	r.HandleFunc("/api/transcription/{id}", h.handleGetTranscription).Methods(http.MethodGet)
	r.HandleFunc("/api/transcription/{id}", h.handleUpdateTranscription).Methods(http.MethodPut)
	r.HandleFunc("/api/files/{id}", h.handleDeleteFile).Methods(http.MethodDelete)

	r.Handle("/api/generate-posts", limited(generateLimit, h.handleGeneratePosts)).Methods(http.MethodPost)
	r.Handle("/api/regenerate-post", limited(generateLimit, h.handleRegeneratePost)).Methods(http.MethodPost)
	r.HandleFunc("/api/posts", h.handleListPosts).Methods(http.MethodGet)
	r.HandleFunc("/api/posts/{id}", h.handleGetPost).Methods(http.MethodGet)
	r.HandleFunc("/api/posts/{id}", h.handleDeletePost).Methods(http.MethodDelete)

	r.HandleFunc("/api/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/health/detailed", h.handleHealthDetailed).Methods(http.MethodGet)
	r.HandleFunc("/api/health/models", h.handleHealthModels).Methods(http.MethodGet)
	r.HandleFunc("/api/health/storage", h.handleHealthStorage).Methods(http.MethodGet)
	r.HandleFunc("/api/metrics", h.handleMetrics).Methods(http.MethodGet)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mws := []middleware{
		securityHeaders(cfg.ForceHTTPS),
		cors(cfg.CORSOrigins),
		requestLogging(logger, h.monitor.Requests),
	}
	if globalLimit != nil {
		mws = append(mws, globalLimit.middleware)
	}
	mws = append(mws, func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
	return chain(r, mws...), nil
}
