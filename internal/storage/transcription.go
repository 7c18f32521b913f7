package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/NamiraNet/voicepost/internal/model"
)

// TranscriptionStore keeps transcriptions.json keyed by transcription id.
type TranscriptionStore struct {
	file *jsonFile[model.Transcription]
}

func NewTranscriptionStore(dir string) (*TranscriptionStore, error) {
	f, err := newJSONFile[model.Transcription](filepath.Join(dir, "transcriptions.json"))
	if err != nil {
		return nil, err
	}
	return &TranscriptionStore{file: f}, nil
}

func (s *TranscriptionStore) Save(t model.Transcription) error {
	if t.ID == "" {
		return fmt.Errorf("transcription has no id")
	}
	return s.file.update(func(m map[string]model.Transcription) error {
		m[t.ID] = t
		return nil
	})
}

func (s *TranscriptionStore) Get(id string) (model.Transcription, error) {
	var out model.Transcription
	err := s.file.view(func(m map[string]model.Transcription) error {
		t, ok := m[id]
		if !ok {
			return fmt.Errorf("transcription %s: %w", id, ErrNotFound)
		}
		out = t
		return nil
	})
	return out, err
}

// ByFile returns the most recent transcription of an uploaded file.
func (s *TranscriptionStore) ByFile(fileID string) (model.Transcription, error) {
	var out model.Transcription
	err := s.file.view(func(m map[string]model.Transcription) error {
		found := false
		for _, t := range m {
			if t.FileID == fileID && (!found || t.TranscribedAt.After(out.TranscribedAt)) {
				out, found = t, true
			}
		}
		if !found {
			return fmt.Errorf("transcription for file %s: %w", fileID, ErrNotFound)
		}
		return nil
	})
	return out, err
}

func (s *TranscriptionStore) UpdateText(id, text string) error {
	return s.file.update(func(m map[string]model.Transcription) error {
		t, ok := m[id]
		if !ok {
			return fmt.Errorf("transcription %s: %w", id, ErrNotFound)
		}
		now := time.Now()
		t.Text = text
		t.UpdatedAt = &now
		m[id] = t
		return nil
	})
}

// DeleteByFile removes every transcription of fileID and reports how many went.
func (s *TranscriptionStore) DeleteByFile(fileID string) (int, error) {
	n := 0
	err := s.file.update(func(m map[string]model.Transcription) error {
		for id, t := range m {
			if t.FileID == fileID {
				delete(m, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *TranscriptionStore) Count() (int, error) {
	n := 0
	err := s.file.view(func(m map[string]model.Transcription) error {
		n = len(m)
		return nil
	})
	return n, err
}
