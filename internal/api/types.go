package api

import (
	"time"

	"github.com/NamiraNet/voicepost/internal/generation"
	"github.com/NamiraNet/voicepost/internal/model"
	"github.com/NamiraNet/voicepost/internal/monitor"
	"github.com/NamiraNet/voicepost/internal/storage"
	workerpool "github.com/NamiraNet/voicepost/internal/worker"
)

type MessageResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

type UploadResponse struct {
	FileID   string `json:"file_id"`
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Format   string `json:"format"`
}

type ValidationResponse struct {
	Status int      `json:"status"`
	Errors []string `json:"errors"`
}

type TranscribeRequest struct {
	FileID   string `json:"file_id"`
	Language string `json:"language"`
}

type TranscribeResponse struct {
	TranscriptionID string  `json:"transcription_id"`
	Status          string  `json:"status"`
	Text            string  `json:"text"`
	Language        string  `json:"language"`
	Confidence      float64 `json:"confidence"`
	ProcessingTime  float64 `json:"processing_time"`
}

type TranscriptionResponse struct {
	Status         string     `json:"status"`
	Text           string     `json:"text"`
	Language       string     `json:"language"`
	Confidence     float64    `json:"confidence"`
	ProcessingTime float64    `json:"processing_time"`
	TranscribedAt  time.Time  `json:"transcribed_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

type UpdateTranscriptionRequest struct {
	Text *string `json:"text"`
}

type DeleteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type GeneratePostsRequest struct {
	TranscriptionID string   `json:"transcription_id"`
	Platforms       []string `json:"platforms"`
	Tone            string   `json:"tone"`
}

type RegeneratePostRequest struct {
	PostID          string `json:"post_id"`
	TranscriptionID string `json:"transcription_id"`
	Platform        string `json:"platform"`
	Tone            string `json:"tone"`
}

type PostResponse struct {
	Posts    map[string]string    `json:"posts"`
	Metadata storage.PostMetadata `json:"metadata"`
}

type PostListResponse struct {
	Posts  []storage.Post `json:"posts"`
	Count  int            `json:"count"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type HealthResponse struct {
	Status      string      `json:"status"`
	Version     string      `json:"version"`
	SpeechModel string      `json:"speech_model"`
	TextModel   string      `json:"text_model"`
	Build       VersionInfo `json:"build"`
}

type DetailedHealthResponse struct {
	Status     string                     `json:"status"`
	System     monitor.SystemSnapshot     `json:"system"`
	WorkerPool workerpool.WorkerPoolStats `json:"worker_pool"`
	Generation workerpool.WorkerPoolStats `json:"generation_pool"`
	Cache      string                     `json:"cache"`
}

type ModelsHealthResponse struct {
	Status string         `json:"status"`
	Models []model.Status `json:"models"`
}

type StorageHealthResponse struct {
	Disk    monitor.DiskUsage `json:"disk"`
	Records storage.Summary   `json:"records"`
}

type MetricsResponse struct {
	Requests   monitor.RequestSnapshot    `json:"requests"`
	WorkerPool workerpool.WorkerPoolStats `json:"worker_pool"`
	Generation generation.StatsSnapshot   `json:"generation"`
}
