package downloader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Settings holds the connection details of one configured client.
type Settings struct {
	Name               string
	Kind               Kind
	URL                string
	Username           string
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Factory opens a Client for the given settings.
type Factory func(ctx context.Context, s Settings) (Client, error)

// Registry builds named clients from their settings and caches them.
type Registry struct {
	mu        sync.Mutex
	factories map[Kind]Factory
	settings  map[string]Settings
	clients   map[string]Client
}

// NewRegistry creates a registry for the given client settings.
func NewRegistry(settings []Settings) *Registry {
	r := &Registry{
		factories: make(map[Kind]Factory),
		settings:  make(map[string]Settings, len(settings)),
		clients:   make(map[string]Client),
	}
	for _, s := range settings {
		r.settings[s.Name] = s
	}
	return r
}

// Register associates a factory with a client kind.
func (r *Registry) Register(kind Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Names returns the configured client names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.settings))
	for name := range r.settings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the client registered under name, opening it on first use.
func (r *Registry) Get(ctx context.Context, name string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[name]; ok {
		return c, nil
	}

	s, ok := r.settings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, name)
	}

	f, ok := r.factories[s.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, s.Kind)
	}

	c, err := f(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("open downloader %s: %w", name, err)
	}

	r.clients[name] = c
	return c, nil
}
