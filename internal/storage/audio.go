package storage

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

type AudioFile struct {
	FileID         string    `json:"file_id"`
	Filename       string    `json:"filename"`
	StoredFilename string    `json:"stored_filename"`
	FilePath       string    `json:"file_path"`
	FileSize       int64     `json:"file_size"`
	Format         string    `json:"format"`
	UploadedAt     time.Time `json:"uploaded_at"`
	Status         string    `json:"status"`
}

// AudioStore keeps upload metadata in audio_files.json.
type AudioStore struct {
	file *jsonFile[AudioFile]
}

func NewAudioStore(dir string) (*AudioStore, error) {
	f, err := newJSONFile[AudioFile](filepath.Join(dir, "audio_files.json"))
	if err != nil {
		return nil, err
	}
	return &AudioStore{file: f}, nil
}

func (s *AudioStore) Save(a AudioFile) error {
	return s.file.update(func(m map[string]AudioFile) error {
		m[a.FileID] = a
		return nil
	})
}

func (s *AudioStore) Get(id string) (AudioFile, error) {
	var out AudioFile
	err := s.file.view(func(m map[string]AudioFile) error {
		a, ok := m[id]
		if !ok {
			return fmt.Errorf("audio file %s: %w", id, ErrNotFound)
		}
		out = a
		return nil
	})
	return out, err
}

func (s *AudioStore) Delete(id string) error {
	return s.file.update(func(m map[string]AudioFile) error {
		if _, ok := m[id]; !ok {
			return fmt.Errorf("audio file %s: %w", id, ErrNotFound)
		}
		delete(m, id)
		return nil
	})
}

// UploadedBefore lists files uploaded before t, oldest first.
func (s *AudioStore) UploadedBefore(t time.Time) ([]AudioFile, error) {
	var out []AudioFile
	err := s.file.view(func(m map[string]AudioFile) error {
		for _, a := range m {
			if a.UploadedAt.Before(t) {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, err
}

func (s *AudioStore) Count() (int, error) {
	n := 0
	err := s.file.view(func(m map[string]AudioFile) error {
		n = len(m)
		return nil
	})
	return n, err
}
