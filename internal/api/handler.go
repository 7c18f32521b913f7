package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NamiraNet/voicepost/internal/cache"
	"github.com/NamiraNet/voicepost/internal/generation"
	"github.com/NamiraNet/voicepost/internal/model"
	"github.com/NamiraNet/voicepost/internal/monitor"
	"github.com/NamiraNet/voicepost/internal/service"
	"github.com/NamiraNet/voicepost/internal/storage"
	"github.com/NamiraNet/voicepost/internal/upload"
	workerpool "github.com/NamiraNet/voicepost/internal/worker"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	maxJSONBody     = 1 << 20
	defaultPostPage = 20
	healthTimeout   = 5 * time.Second
	multipartSlack  = 1 << 20
)

type HandlerOptions struct {
	Service     *service.Service
	Uploads     *upload.Handler
	Store       *storage.Store
	Pool        *workerpool.WorkerPool
	Guard       *generation.Guard
	Models      *model.Registry
	Cache       cache.DraftCache
	Monitor     *monitor.Monitor
	Version     VersionInfo
	SpeechModel string
	TextModel   string
	Logger      *zap.Logger
}

type Handler struct {
	service     *service.Service
	uploads     *upload.Handler
	store       *storage.Store
	pool        *workerpool.WorkerPool
	guard       *generation.Guard
	models      *model.Registry
	cache       cache.DraftCache
	monitor     *monitor.Monitor
	version     VersionInfo
	speechModel string
	textModel   string
	logger      *zap.Logger
}

func NewHandler(o HandlerOptions) *Handler {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Cache == nil {
		o.Cache = cache.Nop{}
	}
	if o.Monitor == nil {
		o.Monitor = monitor.New()
	}
	if o.Models == nil {
		o.Models = model.NewRegistry()
	}
	return &Handler{
		service:     o.Service,
		uploads:     o.Uploads,
		store:       o.Store,
		pool:        o.Pool,
		guard:       o.Guard,
		models:      o.Models,
		cache:       o.Cache,
		monitor:     o.Monitor,
		version:     o.Version,
		speechModel: o.SpeechModel,
		textModel:   o.TextModel,
		logger:      o.Logger,
	}
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxSize()+multipartSlack)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Warn("Upload without file", zap.Error(err))
		writeError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audio, err := h.uploads.Save(header.Filename, header.Size, file)
	if err != nil {
		var invalid *upload.ValidationError
		if errors.As(err, &invalid) {
			writeJSONStatus(w, ValidationResponse{Status: http.StatusBadRequest, Errors: invalid.Problems}, http.StatusBadRequest)
			return
		}
		h.fail(w, err, "File not found")
		return
	}

	writeJSON(w, UploadResponse{
		FileID:   audio.FileID,
		Status:   audio.Status,
		Filename: audio.Filename,
		Size:     audio.FileSize,
		Format:   audio.Format,
	})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req TranscribeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FileID) == "" {
		writeError(w, "No file_id provided", http.StatusBadRequest)
		return
	}

	t, err := h.service.Transcribe(r.Context(), req.FileID, req.Language)
	if err != nil {
		h.fail(w, err, "File not found")
		return
	}

	writeJSON(w, TranscribeResponse{
		TranscriptionID: t.ID,
		Status:          t.Status,
		Text:            t.Text,
		Language:        t.Language,
		Confidence:      t.Confidence.OverallConfidence,
		ProcessingTime:  t.ProcessingTime,
	})
}

func (h *Handler) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Transcription(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "Transcription not found")
		return
	}
	writeJSON(w, TranscriptionResponse{
		Status:         t.Status,
		Text:           t.Text,
		Language:       t.Language,
		Confidence:     t.Confidence.OverallConfidence,
		ProcessingTime: t.ProcessingTime,
		TranscribedAt:  t.TranscribedAt,
		UpdatedAt:      t.UpdatedAt,
	})
}

func (h *Handler) handleUpdateTranscription(w http.ResponseWriter, r *http.Request) {
	var req UpdateTranscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, "No text provided", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateTranscription(r.Context(), mux.Vars(r)["id"], *req.Text); err != nil {
		h.fail(w, err, "Transcription not found")
		return
	}
	writeJSON(w, MessageResponse{Status: http.StatusOK, Message: "Transcription updated successfully"})
}

func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFile(mux.Vars(r)["id"]); err != nil {
		h.fail(w, err, "File not found")
		return
	}
	writeJSON(w, DeleteResponse{Status: "deleted", Message: "File deleted successfully"})
}

func (h *Handler) handleGeneratePosts(w http.ResponseWriter, r *http.Request) {
	var req GeneratePostsRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.GeneratePosts(r.Context(), service.GenerateRequest{
		TranscriptionID: req.TranscriptionID,
		Platforms:       req.Platforms,
		Tone:            req.Tone,
	})
	if err != nil {
		h.fail(w, err, "Transcription not found")
		return
	}
	writeJSON(w, res)
}

func (h *Handler) handleRegeneratePost(w http.ResponseWriter, r *http.Request) {
	var req RegeneratePostRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Regenerate(r.Context(), service.RegenerateRequest{
		PostID:          req.PostID,
		TranscriptionID: req.TranscriptionID,
		Platform:        req.Platform,
		Tone:            req.Tone,
	})
	if err != nil {
		h.fail(w, err, "Post not found")
		return
	}
	writeJSON(w, res)
}

func (h *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Post(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "Post not found")
		return
	}
	writeJSON(w, PostResponse{Posts: post.Posts, Metadata: post.Metadata})
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPostPage)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	posts, err := h.service.Posts(limit, offset)
	if err != nil {
		h.fail(w, err, "")
		return
	}
	writeJSON(w, PostListResponse{Posts: posts, Count: len(posts), Limit: limit, Offset: offset})
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePost(mux.Vars(r)["id"]); err != nil {
		h.fail(w, err, "Post not found")
		return
	}
	writeJSON(w, DeleteResponse{Status: "deleted", Message: "Post deleted successfully"})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{
		Status:      "healthy",
		Version:     h.version.Version,
		SpeechModel: h.speechModel,
		TextModel:   h.textModel,
		Build:       h.version,
	})
}

func (h *Handler) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	resp := DetailedHealthResponse{
		Status: "healthy",
		System: h.monitor.System(),
		Cache:  h.cacheStatus(r.Context()),
	}
	if h.pool != nil {
		resp.WorkerPool = h.pool.GetStats()
		if !resp.WorkerPool.IsRunning {
			resp.Status = "degraded"
		}
	}
	if h.guard != nil {
		resp.Generation = h.guard.PoolStats()
	}
	writeJSON(w, resp)
}

func (h *Handler) cacheStatus(ctx context.Context) string {
	if _, ok := h.cache.(cache.Nop); ok {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := h.cache.Ping(ctx); err != nil {
		h.logger.Warn("Draft cache ping failed", zap.Error(err))
		return "unavailable"
	}
	return "ok"
}

func (h *Handler) handleHealthModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	statuses := h.models.Status(ctx)
	resp := ModelsHealthResponse{Status: "healthy", Models: statuses}
	for _, s := range statuses {
		if !s.Available {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, resp)
}

func (h *Handler) handleHealthStorage(w http.ResponseWriter, r *http.Request) {
	disk, err := h.monitor.Disk(h.uploads.Dir())
	if err != nil {
		h.logger.Error("Failed to read disk usage", zap.String("path", h.uploads.Dir()), zap.Error(err))
		writeError(w, "Failed to read disk usage", http.StatusInternalServerError)
		return
	}
	summary, err := h.store.Summary()
	if err != nil {
		h.logger.Error("Failed to summarise storage", zap.Error(err))
		writeError(w, "Failed to read storage", http.StatusInternalServerError)
		return
	}
	writeJSON(w, StorageHealthResponse{Disk: disk, Records: summary})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := MetricsResponse{Requests: h.monitor.Requests.Snapshot()}
	if h.pool != nil {
		resp.WorkerPool = h.pool.GetStats()
	}
	if h.guard != nil {
		resp.Generation = h.guard.Stats()
	}
	writeJSON(w, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		h.logger.Warn("Invalid JSON", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps service errors onto status codes. notFound is the message used for
// storage.ErrNotFound, which differs by route.
func (h *Handler) fail(w http.ResponseWriter, err error, notFound string) {
	code, message := statusFor(err, notFound)
	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Int("status", code), zap.Error(err))
	} else {
		h.logger.Warn("Request rejected", zap.Int("status", code), zap.Error(err))
	}
	writeError(w, message, code)
}

func statusFor(err error, notFound string) (int, string) {
	var requestErr *model.RequestError
	switch {
	case errors.Is(err, service.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, service.ErrGenerationTimeout.Error()
	case errors.Is(err, workerpool.ErrPoolClosed), errors.Is(err, workerpool.ErrQueueFull):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	case errors.Is(err, workerpool.ErrNotCompleted):
		return http.StatusGatewayTimeout, "request did not complete in time, please retry"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrNoText),
		errors.Is(err, upload.ErrInvalidFile),
		errors.Is(err, storage.ErrInvalidPost):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &requestErr):
		return http.StatusBadGateway, "model backend unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, data, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSONStatus(w, MessageResponse{Status: code, Message: message}, code)
}
