package storage

import "go.uber.org/zap"

// Store groups the three files under one data directory.
type Store struct {
	Audio          *AudioStore
	Transcriptions *TranscriptionStore
	Posts          *PostStore
	Dir            string
}

func Open(dir string, logger *zap.Logger) (*Store, error) {
	audio, err := NewAudioStore(dir)
	if err != nil {
		return nil, err
	}
	transcriptions, err := NewTranscriptionStore(dir)
	if err != nil {
		return nil, err
	}
	posts, err := NewPostStore(dir, logger)
	if err != nil {
		return nil, err
	}
	return &Store{Audio: audio, Transcriptions: transcriptions, Posts: posts, Dir: dir}, nil
}

type Summary struct {
	AudioFiles     int       `json:"audio_files"`
	Transcriptions int       `json:"transcriptions"`
	Posts          PostStats `json:"posts"`
}

func (s *Store) Summary() (Summary, error) {
	var sum Summary
	var err error
	if sum.AudioFiles, err = s.Audio.Count(); err != nil {
		return sum, err
	}
	if sum.Transcriptions, err = s.Transcriptions.Count(); err != nil {
		return sum, err
	}
	sum.Posts, err = s.Posts.Stats()
	return sum, err
}
