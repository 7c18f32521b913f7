package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/NamiraNet/voicepost/internal/model"
	"go.uber.org/zap/zaptest"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestAudioStore(t *testing.T) {
	s := openStore(t)
	old := AudioFile{FileID: "a", Filename: "old.mp3", UploadedAt: time.Now().Add(-48 * time.Hour)}
	fresh := AudioFile{FileID: "b", Filename: "new.mp3", UploadedAt: time.Now()}
	for _, f := range []AudioFile{old, fresh} {
		if err := s.Audio.Save(f); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Audio.Get("a")
	if err != nil || got.Filename != "old.mp3" {
		t.Fatalf("unexpected get: %+v, %v", got, err)
	}

	stale, err := s.Audio.UploadedBefore(time.Now().Add(-24 * time.Hour))
	if err != nil || len(stale) != 1 || stale[0].FileID != "a" {
		t.Errorf("unexpected stale files %+v, %v", stale, err)
	}

	if err := s.Audio.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Audio.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Audio.Delete("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestTranscriptionStore(t *testing.T) {
	s := openStore(t)
	base := time.Now()
	first := model.Transcription{ID: "t1", FileID: "f", Text: "first", TranscribedAt: base}
	second := model.Transcription{ID: "t2", FileID: "f", Text: "second", TranscribedAt: base.Add(time.Minute)}
	for _, tr := range []model.Transcription{first, second} {
		if err := s.Transcriptions.Save(tr); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := s.Transcriptions.ByFile("f")
	if err != nil || latest.ID != "t2" {
		t.Errorf("expected latest transcription t2, got %+v, %v", latest, err)
	}

	if err := s.Transcriptions.UpdateText("t1", "edited"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Transcriptions.Get("t1")
	if got.Text != "edited" || got.UpdatedAt == nil {
		t.Errorf("update not applied: %+v", got)
	}

	if n, err := s.Transcriptions.DeleteByFile("f"); err != nil || n != 2 {
		t.Errorf("expected 2 deletions, got %d, %v", n, err)
	}
	if _, err := s.Transcriptions.ByFile("f"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Transcriptions.Save(model.Transcription{}); err == nil {
		t.Error("expected an error for a transcription without id")
	}
}

func TestPostStore_Lifecycle(t *testing.T) {
	s := openStore(t)

	id, err := s.Posts.Save(Post{
		TranscriptionID: "t1",
		Platforms:       []string{"linkedin"},
		Tone:            "professional",
		Posts:           map[string]string{"linkedin": "draft"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Posts.Update(id, "twitter", "tweet"); err != nil {
		t.Fatal(err)
	}
	p, err := s.Posts.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Posts["twitter"] != "tweet" || len(p.Platforms) != 2 || p.Metadata.UpdatedAt == nil {
		t.Errorf("update not applied: %+v", p)
	}
	if p.Metadata.ModelUsed != "unknown" {
		t.Errorf("expected default model, got %q", p.Metadata.ModelUsed)
	}

	if err := s.Posts.Delete(id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Posts.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	backups, _ := filepath.Glob(filepath.Join(s.Dir, "backups", "generated_posts_backup_*.json"))
	if len(backups) != 2 {
		t.Errorf("expected a backup before the update and one before the delete, got %d", len(backups))
	}
}

func TestPostStore_SaveValidates(t *testing.T) {
	s := openStore(t)
	if _, err := s.Posts.Save(Post{Tone: "casual"}); !errors.Is(err, ErrInvalidPost) {
		t.Errorf("expected ErrInvalidPost, got %v", err)
	}
}

func TestPostStore_ListAndLatest(t *testing.T) {
	s := openStore(t)
	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		id, err := s.Posts.Save(Post{
			TranscriptionID: "t1",
			Platforms:       []string{"twitter"},
			Tone:            "witty",
			Posts:           map[string]string{"twitter": "x"},
			Metadata:        PostMetadata{CreatedAt: base.Add(time.Duration(i) * time.Minute)},
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	page, err := s.Posts.List(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].PostID != ids[3] || page[1].PostID != ids[2] {
		t.Errorf("unexpected page %+v", page)
	}
	if empty, _ := s.Posts.List(10, 50); len(empty) != 0 {
		t.Errorf("expected empty page, got %d", len(empty))
	}

	latest, err := s.Posts.Latest("t1")
	if err != nil || latest.PostID != ids[4] {
		t.Errorf("expected newest post, got %+v, %v", latest, err)
	}
	if _, err := s.Posts.Latest("none"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	stats, err := s.Posts.Stats()
	if err != nil || stats.TotalPosts != 5 || stats.PlatformBreakdown["twitter"] != 5 || stats.FileSize == 0 {
		t.Errorf("unexpected stats %+v, %v", stats, err)
	}
}

func TestJSONFile_ConcurrentWritesAreSerialised(t *testing.T) {
	s := openStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Posts.Save(Post{TranscriptionID: "t", Tone: "casual", Posts: map[string]string{}})
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(s.Dir, "generated_posts.json"))
	if err != nil {
		t.Fatal(err)
	}
	var records map[string]Post
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("file is not valid JSON: %v", err)
	}
	if len(records) != 20 {
		t.Errorf("expected 20 posts, got %d", len(records))
	}
	leftovers, _ := filepath.Glob(filepath.Join(s.Dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestStore_Summary(t *testing.T) {
	s := openStore(t)
	_ = s.Audio.Save(AudioFile{FileID: "a"})
	sum, err := s.Summary()
	if err != nil || sum.AudioFiles != 1 || sum.Transcriptions != 0 || sum.Posts.TotalPosts != 0 {
		t.Errorf("unexpected summary %+v, %v", sum, err)
	}
}

func TestJSONFile_BackupsDoNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	f, err := newJSONFile[Post](filepath.Join(dir, "posts.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.write(map[string]Post{}); err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		path, err := f.backup(filepath.Join(dir, "backups"))
		if err != nil {
			t.Fatal(err)
		}
		seen[path] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct backups, got %d", len(seen))
	}
	files, _ := filepath.Glob(filepath.Join(dir, "backups", "posts_backup_*.json"))
	if len(files) != 5 {
		t.Errorf("expected 5 backup files on disk, got %d", len(files))
	}
}
