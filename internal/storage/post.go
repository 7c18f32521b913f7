package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PostMetadata struct {
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
	ModelUsed      string            `json:"model_used"`
	GenerationTime float64           `json:"generation_time"`
	Outcomes       map[string]string `json:"outcomes,omitempty"`
}

// Post is one generation request: drafts for several platforms in one tone.
type Post struct {
	PostID          string            `json:"post_id"`
	TranscriptionID string            `json:"transcription_id"`
	Platforms       []string          `json:"platforms"`
	Tone            string            `json:"tone"`
	Posts           map[string]string `json:"posts"`
	Metadata        PostMetadata      `json:"metadata"`
}

type PostStats struct {
	TotalPosts        int            `json:"total_posts"`
	FileSize          int64          `json:"file_size"`
	DataFile          string         `json:"data_file"`
	BackupDir         string         `json:"backup_dir"`
	PlatformBreakdown map[string]int `json:"platform_breakdown"`
}

var ErrInvalidPost = errors.New("invalid post")

// PostStore keeps generated_posts.json and writes a timestamped copy to
// backups/ before any update or delete.
type PostStore struct {
	file      *jsonFile[Post]
	backupDir string
	logger    *zap.Logger
}

func NewPostStore(dir string, logger *zap.Logger) (*PostStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := newJSONFile[Post](filepath.Join(dir, "generated_posts.json"))
	if err != nil {
		return nil, err
	}
	return &PostStore{file: f, backupDir: filepath.Join(dir, "backups"), logger: logger}, nil
}

// Save assigns a new id and creation time to p and persists it.
func (s *PostStore) Save(p Post) (string, error) {
	if p.TranscriptionID == "" || p.Tone == "" || p.Posts == nil {
		return "", fmt.Errorf("%w: transcription id, tone and posts are required", ErrInvalidPost)
	}
	p.PostID = uuid.NewString()
	if p.Metadata.CreatedAt.IsZero() {
		p.Metadata.CreatedAt = time.Now()
	}
	if p.Metadata.ModelUsed == "" {
		p.Metadata.ModelUsed = "unknown"
	}

	err := s.file.update(func(m map[string]Post) error {
		m[p.PostID] = p
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("save post: %w", err)
	}
	s.logger.Info("Post saved", zap.String("post_id", p.PostID), zap.String("transcription_id", p.TranscriptionID))
	return p.PostID, nil
}

func (s *PostStore) Get(id string) (Post, error) {
	var out Post
	err := s.file.view(func(m map[string]Post) error {
		p, ok := m[id]
		if !ok {
			return fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		out = p
		return nil
	})
	return out, err
}

// ByTranscription returns the posts for a transcription, newest first.
func (s *PostStore) ByTranscription(transcriptionID string) ([]Post, error) {
	var out []Post
	err := s.file.view(func(m map[string]Post) error {
		for _, p := range m {
			if p.TranscriptionID == transcriptionID {
				out = append(out, p)
			}
		}
		return nil
	})
	sortNewestFirst(out)
	return out, err
}

func (s *PostStore) Latest(transcriptionID string) (Post, error) {
	posts, err := s.ByTranscription(transcriptionID)
	if err != nil {
		return Post{}, err
	}
	if len(posts) == 0 {
		return Post{}, fmt.Errorf("posts for transcription %s: %w", transcriptionID, ErrNotFound)
	}
	return posts[0], nil
}

// Update replaces the draft for one platform, adding the platform if it is new.
func (s *PostStore) Update(id, platform, content string) error {
	return s.file.update(func(m map[string]Post) error {
		p, ok := m[id]
		if !ok {
			return fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		s.backup()

		if _, exists := p.Posts[platform]; !exists {
			p.Platforms = append(p.Platforms, platform)
		}
		posts := make(map[string]string, len(p.Posts)+1)
		for k, v := range p.Posts {
			posts[k] = v
		}
		posts[platform] = content
		p.Posts = posts

		now := time.Now()
		p.Metadata.UpdatedAt = &now
		m[id] = p
		s.logger.Info("Post updated", zap.String("post_id", id), zap.String("platform", platform))
		return nil
	})
}

func (s *PostStore) Delete(id string) error {
	return s.file.update(func(m map[string]Post) error {
		if _, ok := m[id]; !ok {
			return fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		s.backup()
		delete(m, id)
		s.logger.Info("Post deleted", zap.String("post_id", id))
		return nil
	})
}

// List pages through all posts, newest first.
func (s *PostStore) List(limit, offset int) ([]Post, error) {
	var all []Post
	err := s.file.view(func(m map[string]Post) error {
		all = make([]Post, 0, len(m))
		for _, p := range m {
			all = append(all, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(all)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []Post{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (s *PostStore) Stats() (PostStats, error) {
	stats := PostStats{
		DataFile:          s.file.path,
		BackupDir:         s.backupDir,
		PlatformBreakdown: map[string]int{},
	}
	err := s.file.view(func(m map[string]Post) error {
		stats.TotalPosts = len(m)
		for _, p := range m {
			for _, platform := range p.Platforms {
				stats.PlatformBreakdown[platform]++
			}
		}
		return nil
	})
	stats.FileSize = s.file.size()
	return stats, err
}

// backup failures are logged and do not block the write.
func (s *PostStore) backup() {
	path, err := s.file.backup(s.backupDir)
	if err != nil {
		s.logger.Warn("Failed to create backup", zap.Error(err))
		return
	}
	s.logger.Debug("Backup created", zap.String("path", path))
}

func sortNewestFirst(posts []Post) {
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].Metadata.CreatedAt.After(posts[j].Metadata.CreatedAt)
	})
}
