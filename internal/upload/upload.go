package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/NamiraNet/voicepost/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultMaxFileSize int64 = 50 << 20

var (
	ErrInvalidFile = errors.New("invalid audio file")

	SupportedFormats = []string{"mp3", "wav", "m4a", "ogg", "flac"}

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// ValidationError lists every problem found with an upload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid audio file: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidFile
}

type Handler struct {
	dir     string
	maxSize int64
	store   *storage.AudioStore
	logger  *zap.Logger
}

func NewHandler(dir string, maxSize int64, store *storage.AudioStore, logger *zap.Logger) (*Handler, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Handler{dir: dir, maxSize: maxSize, store: store, logger: logger}, nil
}

func (h *Handler) Dir() string { return h.dir }

func (h *Handler) MaxSize() int64 { return h.maxSize }

// Validate checks the name and declared size of an upload before any bytes are
// written.
func (h *Handler) Validate(filename string, size int64) error {
	var problems []string
	if strings.TrimSpace(filename) == "" {
		problems = append(problems, "no filename provided")
	} else if !supported(extension(filename)) {
		problems = append(problems, fmt.Sprintf("unsupported file format, supported formats: %s", strings.Join(SupportedFormats, ", ")))
	}
	if size == 0 {
		problems = append(problems, "file is empty")
	}
	if size > h.maxSize {
		problems = append(problems, fmt.Sprintf("file size (%.1fMB) exceeds maximum allowed size (%.1fMB)", mb(size), mb(h.maxSize)))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Save validates, writes r under a fresh file id and records the metadata.
// Size is re-checked while copying since the declared size can lie.
func (h *Handler) Save(filename string, size int64, r io.Reader) (storage.AudioFile, error) {
	if err := h.Validate(filename, size); err != nil {
		return storage.AudioFile{}, err
	}

	id := uuid.NewString()
	name := sanitize(filepath.Base(filename))
	stored := fmt.Sprintf("%s_%s_%s", id, time.Now().Format("20060102_150405"), name)
	path := filepath.Join(h.dir, stored)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return storage.AudioFile{}, fmt.Errorf("create upload: %w", err)
	}
	written, err := io.Copy(f, io.LimitReader(r, h.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > h.maxSize {
		err = &ValidationError{Problems: []string{fmt.Sprintf("file exceeds maximum allowed size (%.1fMB)", mb(h.maxSize))}}
	}
	if err == nil && written == 0 {
		err = &ValidationError{Problems: []string{"file is empty"}}
	}
	if err != nil {
		os.Remove(path)
		return storage.AudioFile{}, err
	}

	meta := storage.AudioFile{
		FileID:         id,
		Filename:       name,
		StoredFilename: stored,
		FilePath:       path,
		FileSize:       written,
		Format:         extension(name),
		UploadedAt:     time.Now(),
		Status:         "uploaded",
	}
	if err := h.store.Save(meta); err != nil {
		os.Remove(path)
		return storage.AudioFile{}, err
	}
	h.logger.Info("Audio file uploaded", zap.String("file_id", id), zap.Int64("size", written))
	return meta, nil
}

// Delete removes the file and its metadata. A file already missing from disk
// is not an error.
func (h *Handler) Delete(id string) error {
	meta, err := h.store.Get(id)
	if err != nil {
		return err
	}
	if err := os.Remove(meta.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	if err := h.store.Delete(id); err != nil {
		return err
	}
	h.logger.Info("Audio file deleted", zap.String("file_id", id))
	return nil
}

// Cleanup deletes uploads older than age and returns their ids.
func (h *Handler) Cleanup(age time.Duration) ([]string, error) {
	stale, err := h.store.UploadedBefore(time.Now().Add(-age))
	if err != nil {
		return nil, err
	}
	deleted := make([]string, 0, len(stale))
	for _, f := range stale {
		if err := h.Delete(f.FileID); err != nil {
			h.logger.Warn("Failed to delete old upload", zap.String("file_id", f.FileID), zap.Error(err))
			continue
		}
		deleted = append(deleted, f.FileID)
	}
	h.logger.Info("Cleaned up old uploads", zap.Int("count", len(deleted)))
	return deleted, nil
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func supported(ext string) bool {
	for _, f := range SupportedFormats {
		if f == ext {
			return true
		}
	}
	return false
}

func sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "audio"
	}
	return name
}

func mb(n int64) float64 {
	return float64(n) / (1 << 20)
}
