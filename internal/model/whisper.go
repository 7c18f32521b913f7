package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TaskTranscribe = "transcribe"
	TaskTranslate  = "translate"

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Segment struct {
	ID           int     `json:"id"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
	Words        []Word  `json:"words,omitempty"`
}

type Word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

type ConfidenceMetrics struct {
	OverallConfidence float64 `json:"overall_confidence"`
	WordConfidence    float64 `json:"word_confidence"`
	SegmentCount      int     `json:"segment_count"`
}

// Transcription is what gets persisted for an uploaded file.
type Transcription struct {
	ID             string            `json:"transcription_id"`
	FileID         string            `json:"file_id"`
	Text           string            `json:"text"`
	Language       string            `json:"language"`
	Confidence     ConfidenceMetrics `json:"confidence_metrics"`
	ProcessingTime float64           `json:"processing_time"`
	ModelUsed      string            `json:"model_used"`
	Task           string            `json:"task"`
	Segments       []Segment         `json:"segments"`
	TranscribedAt  time.Time         `json:"transcribed_at"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
	Status         string            `json:"status"`
	Error          string            `json:"error,omitempty"`
}

type TranscribeOptions struct {
	Language string
	Task     string
}

// WhisperClient talks to an OpenAI-compatible audio transcription endpoint
// such as faster-whisper-server or whisper.cpp's server.
type WhisperClient struct {
	endpoint
	model  string
	logger *zap.Logger
}

func NewWhisperClient(url, model string, opts ...ClientOption) *WhisperClient {
	o := applyOptions(opts)
	return &WhisperClient{endpoint: newEndpoint(url, o.httpClient), model: model, logger: o.logger}
}

func (w *WhisperClient) Name() string { return w.model }
func (w *WhisperClient) Kind() Kind { return KindSpeech }

func (w *WhisperClient) Ping(ctx context.Context) error {
	return w.ping(ctx, w.model)
}

type verboseTranscription struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Transcribe uploads the file at path and returns a completed Transcription.
func (w *WhisperClient) Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*Transcription, error) {
	task := opts.Task
	if task == "" {
		task = TaskTranscribe
	}
	route := "/v1/audio/transcriptions"
	switch task {
	case TaskTranscribe:
	case TaskTranslate:
		route = "/v1/audio/translations"
	default:
		return nil, fmt.Errorf("unsupported task %q", task)
	}

	w.logger.Info("Starting transcription", zap.String("file", filepath.Base(path)), zap.String("model", w.model))

	body, contentType, err := w.multipartBody(path, opts.Language)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+route, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	var result verboseTranscription
	if err := w.do(req, "transcription", &result); err != nil {
		w.logger.Error("Transcription failed", zap.String("file", filepath.Base(path)), zap.Error(err))
		return nil, err
	}
	elapsed := time.Since(start)

	language := result.Language
	if language == "" {
		language = "unknown"
	}
	t := &Transcription{
		ID:             uuid.NewString(),
		Text:           strings.TrimSpace(result.Text),
		Language:       language,
		Confidence:     Confidence(result.Segments),
		ProcessingTime: elapsed.Seconds(),
		ModelUsed:      w.model,
		Task:           task,
		Segments:       result.Segments,
		TranscribedAt:  time.Now(),
		Status:         StatusCompleted,
	}
	if t.Segments == nil {
		t.Segments = []Segment{}
	}

	w.logger.Info("Transcription completed",
		zap.Duration("processing_time", elapsed),
		zap.String("language", language),
		zap.Int("segments", len(t.Segments)))
	return t, nil
}

func (w *WhisperClient) multipartBody(path, language string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read audio file: %w", err)
	}

	fields := map[string]string{
		"model":           w.model,
		"response_format": "verbose_json",
		"temperature":     "0",
	}
	if language != "" {
		fields["language"] = language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// Confidence maps each segment's average log probability to exp(p) clamped to
// [0,1] and averages them. Word confidence averages word probabilities when the
// server returned word timestamps.
func Confidence(segments []Segment) ConfidenceMetrics {
	m := ConfidenceMetrics{SegmentCount: len(segments)}
	if len(segments) == 0 {
		return m
	}

	var segSum, wordSum float64
	var words int
	for _, s := range segments {
		segSum += math.Min(1, math.Max(0, math.Exp(s.AvgLogprob)))
		for _, w := range s.Words {
			wordSum += w.Probability
			words++
		}
	}
	m.OverallConfidence = segSum / float64(len(segments))
	if words > 0 {
		m.WordConfidence = wordSum / float64(words)
	}
	return m
}
