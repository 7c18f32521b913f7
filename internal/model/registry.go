package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	KindText   Kind = "text"
	KindSpeech Kind = "speech"
)

var (
	ErrModelNotFound = errors.New("model not registered")
	ErrDuplicate     = errors.New("model already registered")
)

// Model is anything the registry can report on.
type Model interface {
	Name() string
	Kind() Kind
	Ping(ctx context.Context) error
}

type Status struct {
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Registry holds the models the process was configured with.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

func (r *Registry) Register(m Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[m.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, m.Name())
	}
	r.models[m.Name()] = m
	return nil
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.models[name]
	delete(r.models, name)
	return ok
}

func (r *Registry) Get(name string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return m, nil
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status pings every model concurrently. The result is sorted by name.
func (r *Registry) Status(ctx context.Context) []Status {
	r.mu.RLock()
	models := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	r.mu.RUnlock()

	statuses := make([]Status, len(models))
	var wg sync.WaitGroup
	for i, m := range models {
		wg.Add(1)
		go func(i int, m Model) {
			defer wg.Done()
			s := Status{Name: m.Name(), Kind: m.Kind(), Available: true}
			if err := m.Ping(ctx); err != nil {
				s.Available = false
				s.Error = err.Error()
			}
			statuses[i] = s
		}(i, m)
	}
	wg.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

type clientOptions struct {
	httpClient *http.Client
	logger     *zap.Logger
}

type ClientOption func(*clientOptions)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.httpClient = &http.Client{Timeout: d} }
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

func applyOptions(opts []ClientOption) clientOptions {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}
