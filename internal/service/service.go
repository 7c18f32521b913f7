package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NamiraNet/voicepost/internal/cache"
	"github.com/NamiraNet/voicepost/internal/content"
	"github.com/NamiraNet/voicepost/internal/generation"
	"github.com/NamiraNet/voicepost/internal/model"
	"github.com/NamiraNet/voicepost/internal/notify"
	"github.com/NamiraNet/voicepost/internal/storage"
	"github.com/NamiraNet/voicepost/internal/upload"
	workerpool "github.com/NamiraNet/voicepost/internal/worker"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNoText            = errors.New("no transcription text found")
	ErrGenerationTimeout = errors.New("generation timed out, please retry")
)

type Transcriber interface {
	Transcribe(ctx context.Context, path string, opts model.TranscribeOptions) (*model.Transcription, error)
}

type Drafter interface {
	GenerateForPlatform(ctx context.Context, text, platform string, cfg generation.Config) (generation.Outcome, error)
}

// VariantDrafter drafts one general post per tone.
type VariantDrafter interface {
	GenerateMultiple(ctx context.Context, text string, tones []generation.Tone, base generation.Config) []generation.Outcome
}

type DraftNotifier interface {
	Notify(d notify.Draft)
}

// Options wires a Service. Store, Uploads and Transcriber may be nil for
// text-only use from the CLI.
type Options struct {
	Bridge      *workerpool.Bridge
	Drafter     Drafter
	Transcriber Transcriber
	Store       *storage.Store
	Uploads     *upload.Handler
	Cache       cache.DraftCache
	Notifier    DraftNotifier
	ModelName   string
	Language    string
	Generation  generation.Config
	Logger      *zap.Logger
}

// Service runs transcription and post generation through the main pool.
type Service struct {
	bridge      *workerpool.Bridge
	drafter     Drafter
	transcriber Transcriber
	store       *storage.Store
	uploads     *upload.Handler
	cache       cache.DraftCache
	notifier    DraftNotifier
	modelName   string
	language    string
	defaults    generation.Config
	logger      *zap.Logger
}

func New(o Options) *Service {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Cache == nil {
		o.Cache = cache.Nop{}
	}
	if o.Generation.MaxLength == 0 {
		timeout := o.Generation.Timeout
		o.Generation = generation.DefaultConfig()
		if timeout != 0 {
			o.Generation.Timeout = timeout
		}
	}
	return &Service{
		bridge:      o.Bridge,
		drafter:     o.Drafter,
		transcriber: o.Transcriber,
		store:       o.Store,
		uploads:     o.Uploads,
		cache:       o.Cache,
		notifier:    o.Notifier,
		modelName:   o.ModelName,
		language:    o.Language,
		defaults:    o.Generation,
		logger:      o.Logger,
	}
}

// Transcribe runs the speech model for an uploaded file on the main pool and
// stores the result.
func (s *Service) Transcribe(ctx context.Context, fileID, language string) (model.Transcription, error) {
	audio, err := s.store.Audio.Get(fileID)
	if err != nil {
		return model.Transcription{}, err
	}
	if language == "" {
		language = s.language
	}

	t, err := workerpool.Call(ctx, s.bridge, "transcription", func() (*model.Transcription, error) {
		return s.transcriber.Transcribe(ctx, audio.FilePath, model.TranscribeOptions{Language: language})
	})
	if err != nil {
		return model.Transcription{}, err
	}

	t.FileID = fileID
	if err := s.store.Transcriptions.Save(*t); err != nil {
		return model.Transcription{}, fmt.Errorf("save transcription: %w", err)
	}
	return *t, nil
}

func (s *Service) Transcription(id string) (model.Transcription, error) {
	return s.store.Transcriptions.Get(id)
}

// UpdateTranscription replaces the text and drops drafts cached for the old one.
func (s *Service) UpdateTranscription(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidRequest)
	}
	if err := s.store.Transcriptions.UpdateText(id, text); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("Failed to invalidate cached drafts", zap.String("transcription_id", id), zap.Error(err))
	}
	return nil
}

// DeleteFile removes an upload together with its transcriptions.
func (s *Service) DeleteFile(id string) error {
	if err := s.uploads.Delete(id); err != nil {
		return err
	}
	if n, err := s.store.Transcriptions.DeleteByFile(id); err != nil {
		s.logger.Warn("Failed to delete transcriptions", zap.String("file_id", id), zap.Error(err))
	} else if n > 0 {
		s.logger.Info("Deleted transcriptions", zap.String("file_id", id), zap.Int("count", n))
	}
	return nil
}

type GenerateRequest struct {
	TranscriptionID string
	Platforms       []string
	Tone            string
}

type GenerateResult struct {
	PostID   string            `json:"post_id"`
	Posts    map[string]string `json:"posts"`
	Outcomes map[string]string `json:"outcomes"`
	Status   string            `json:"status"`
}

// GeneratePosts drafts one post per platform for a stored transcription and
// saves them. Platforms that timed out or failed are reported in Outcomes; if
// none succeeded the call fails.
func (s *Service) GeneratePosts(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if req.TranscriptionID == "" {
		return GenerateResult{}, fmt.Errorf("%w: transcription_id is required", ErrInvalidRequest)
	}
	t, err := s.store.Transcriptions.Get(req.TranscriptionID)
	if err != nil {
		return GenerateResult{}, err
	}
	if strings.TrimSpace(t.Text) == "" {
		return GenerateResult{}, ErrNoText
	}

	drafts, err := s.Draft(ctx, req.TranscriptionID, t.Text, req.Platforms, req.Tone)
	if err != nil {
		return GenerateResult{}, err
	}

	posts := drafts.Posts()
	outcomes := drafts.Outcomes()
	if len(posts) == 0 {
		return GenerateResult{}, drafts.Err()
	}

	id, err := s.store.Posts.Save(storage.Post{
		TranscriptionID: req.TranscriptionID,
		Platforms:       drafts.Platforms(),
		Tone:            drafts.Tone(),
		Posts:           posts,
		Metadata: storage.PostMetadata{
			ModelUsed:      s.modelName,
			GenerationTime: drafts.GenerationTime().Seconds(),
			Outcomes:       outcomes,
		},
	})
	if err != nil {
		return GenerateResult{}, err
	}

	s.notifyAll(id, req.TranscriptionID, drafts)

	status := "completed"
	if len(posts) < len(drafts) {
		status = "partial"
	}
	return GenerateResult{PostID: id, Posts: posts, Outcomes: outcomes, Status: status}, nil
}

type RegenerateRequest struct {
	PostID          string
	TranscriptionID string
	Platform        string
	Tone            string
}

type RegenerateResult struct {
	PostID string `json:"post_id"`
	Post   string `json:"post"`
	Status string `json:"status"`
}

// Regenerate drafts one platform again, bypassing the cache, and updates the
// post. Without a post id the newest post of the transcription is updated.
func (s *Service) Regenerate(ctx context.Context, req RegenerateRequest) (RegenerateResult, error) {
	if req.Platform == "" || (req.PostID == "" && req.TranscriptionID == "") {
		return RegenerateResult{}, fmt.Errorf("%w: platform and post_id or transcription_id are required", ErrInvalidRequest)
	}

	var post storage.Post
	var err error
	if req.PostID != "" {
		post, err = s.store.Posts.Get(req.PostID)
	} else {
		post, err = s.store.Posts.Latest(req.TranscriptionID)
	}
	if err != nil {
		return RegenerateResult{}, err
	}

	t, err := s.store.Transcriptions.Get(post.TranscriptionID)
	if err != nil {
		return RegenerateResult{}, err
	}
	if strings.TrimSpace(t.Text) == "" {
		return RegenerateResult{}, ErrNoText
	}

	tone := req.Tone
	if tone == "" {
		tone = post.Tone
	}
	draft, err := s.draftOne(ctx, "", t.Text, req.Platform, tone)
	if err != nil {
		return RegenerateResult{}, err
	}
	if err := draft.Err; err != nil {
		return RegenerateResult{}, err
	}

	if err := s.store.Posts.Update(post.PostID, draft.Platform, draft.Text); err != nil {
		return RegenerateResult{}, err
	}
	s.cacheDraft(ctx, post.TranscriptionID, draft)
	s.notifyAll(post.PostID, post.TranscriptionID, Drafts{draft})
	return RegenerateResult{PostID: post.PostID, Post: draft.Text, Status: "completed"}, nil
}

func (s *Service) Post(id string) (storage.Post, error) {
	return s.store.Posts.Get(id)
}

// Posts pages through saved posts, newest first.
func (s *Service) Posts(limit, offset int) ([]storage.Post, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset cannot be negative", ErrInvalidRequest)
	}
	return s.store.Posts.List(limit, offset)
}

func (s *Service) DeletePost(id string) error {
	return s.store.Posts.Delete(id)
}

// Draft is the outcome of generating for one platform.
type Draft struct {
	Platform string             `json:"platform"`
	Tone     string             `json:"tone"`
	Text     string             `json:"text,omitempty"`
	Hashtags []string           `json:"hashtags,omitempty"`
	Status   generation.Status  `json:"status"`
	Cached   bool               `json:"cached"`
	Elapsed  time.Duration      `json:"-"`
	Err      error              `json:"-"`
	Outcome  generation.Outcome `json:"-"`
}

type Drafts []Draft

func (d Drafts) Posts() map[string]string {
	posts := make(map[string]string, len(d))
	for _, draft := range d {
		if draft.Status == generation.StatusSuccess {
			posts[draft.Platform] = draft.Text
		}
	}
	return posts
}

func (d Drafts) Outcomes() map[string]string {
	outcomes := make(map[string]string, len(d))
	for _, draft := range d {
		outcomes[draft.Platform] = string(draft.Status)
	}
	return outcomes
}

func (d Drafts) Platforms() []string {
	platforms := make([]string, 0, len(d))
	for _, draft := range d {
		platforms = append(platforms, draft.Platform)
	}
	return platforms
}

func (d Drafts) Tone() string {
	if len(d) == 0 {
		return ""
	}
	return d[0].Tone
}

func (d Drafts) GenerationTime() time.Duration {
	var total time.Duration
	for _, draft := range d {
		total += draft.Elapsed
	}
	return total
}

// Err summarises why no draft succeeded. Timeouts win over other failures so
// callers can tell the client to retry.
func (d Drafts) Err() error {
	var first error
	for _, draft := range d {
		if errors.Is(draft.Err, ErrGenerationTimeout) {
			return draft.Err
		}
		if first == nil {
			first = draft.Err
		}
	}
	if first == nil {
		first = errors.New("no drafts generated")
	}
	return first
}

// Draft generates text for every platform in tone. scope keys the draft cache;
// an empty scope skips it. Scheduling errors from the pool abort the whole call.
func (s *Service) Draft(ctx context.Context, scope, text string, platforms []string, tone string) (Drafts, error) {
	if len(platforms) == 0 {
		platforms = content.Platforms()
	}
	if tone == "" {
		tone = string(generation.ToneProfessional)
	}
	seen := make(map[string]bool, len(platforms))
	unique := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if _, err := content.Template(p, tone); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}

	drafts := make(Drafts, 0, len(unique))
	for _, p := range unique {
		draft, err := s.draftOne(ctx, scope, text, p, tone)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

// draftOne returns a non-nil error only for failures that are not about this
// draft: the pool rejecting work, the bridge giving up, or bad input.
func (s *Service) draftOne(ctx context.Context, scope, text, platform, tone string) (Draft, error) {
	platform = strings.ToLower(platform)
	draft := Draft{Platform: platform, Tone: tone}

	if scope != "" {
		cached, ok, err := s.cache.Get(ctx, cache.Key(scope, platform, tone))
		if err != nil {
			s.logger.Warn("Draft cache unavailable", zap.Error(err))
		}
		if ok {
			draft.Text, draft.Status, draft.Cached = cached, generation.StatusSuccess, true
			draft.Hashtags = content.ExtractHashtags(cached)
			return draft, nil
		}
	}

	parsed, err := generation.ParseTone(tone)
	if err != nil {
		return draft, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	cfg := s.defaults
	cfg.Tone = parsed

	outcome, err := workerpool.Call(ctx, s.bridge, "generate:"+platform, func() (generation.Outcome, error) {
		return s.drafter.GenerateForPlatform(ctx, text, platform, cfg)
	})
	if err != nil {
		if errors.Is(err, content.ErrTemplateNotFound) || errors.Is(err, generation.ErrEmptyContent) || errors.Is(err, generation.ErrInvalidTimeout) {
			return draft, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return draft, err
	}

	draft.apply(outcome)
	if scope != "" && draft.Status == generation.StatusSuccess {
		s.cacheDraft(ctx, scope, draft)
	}
	return draft, nil
}

func (d *Draft) apply(outcome generation.Outcome) {
	d.Outcome = outcome
	d.Status = outcome.Status()
	switch o := outcome.(type) {
	case generation.Success:
		d.Text, d.Elapsed = o.Text, o.GenerationTime
		d.Hashtags = content.ExtractHashtags(o.Text)
	case generation.Timeout:
		d.Elapsed = o.Elapsed
		d.Err = fmt.Errorf("%s: %w", d.Platform, ErrGenerationTimeout)
	case generation.Failure:
		d.Err = fmt.Errorf("%s: %w", d.Platform, o.Err)
	}
}

// VariantPlatform labels drafts that target no particular platform.
const VariantPlatform = "general"

// Variants drafts one general post per tone through the main pool. Any of the
// tones accepted by generation.ParseTone may be used.
func (s *Service) Variants(ctx context.Context, text string, tones []string) (Drafts, error) {
	vd, ok := s.drafter.(VariantDrafter)
	if !ok {
		return nil, errors.New("drafter cannot generate tone variants")
	}
	if len(tones) == 0 {
		return nil, fmt.Errorf("%w: at least one tone is required", ErrInvalidRequest)
	}
	parsed := make([]generation.Tone, 0, len(tones))
	for _, t := range tones {
		tone, err := generation.ParseTone(t)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		parsed = append(parsed, tone)
	}

	outcomes, err := workerpool.Call(ctx, s.bridge, "variants", func() ([]generation.Outcome, error) {
		return vd.GenerateMultiple(ctx, text, parsed, s.defaults), nil
	})
	if err != nil {
		return nil, err
	}

	drafts := make(Drafts, 0, len(outcomes))
	for i, outcome := range outcomes {
		d := Draft{Platform: VariantPlatform, Tone: string(parsed[i])}
		d.apply(outcome)
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func (s *Service) cacheDraft(ctx context.Context, scope string, d Draft) {
	if err := s.cache.Set(ctx, cache.Key(scope, d.Platform, d.Tone), d.Text); err != nil {
		s.logger.Warn("Failed to cache draft", zap.String("platform", d.Platform), zap.Error(err))
	}
}

func (s *Service) notifyAll(postID, transcriptionID string, drafts Drafts) {
	if s.notifier == nil {
		return
	}
	now := time.Now()
	for _, d := range drafts {
		if d.Status != generation.StatusSuccess {
			continue
		}
		s.notifier.Notify(notify.Draft{
			PostID:          postID,
			TranscriptionID: transcriptionID,
			Platform:        d.Platform,
			Tone:            d.Tone,
			Text:            d.Text,
			GeneratedAt:     now,
		})
	}
}
