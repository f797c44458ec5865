package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrSlugRequired indicates a blank rule slug.
	ErrSlugRequired = errors.New("rule slug is required")
	// ErrSlugRegistered indicates a slug registered twice.
	ErrSlugRegistered = errors.New("rule slug is already registered")
	// ErrFactoryRequired indicates a nil factory.
	ErrFactoryRequired = errors.New("rule factory is required")
)

// Factory builds a configuration for one rule.
type Factory func() Configuration

// Registry resolves rule slugs to configurations. Each factory runs once at
// registration; lookups share the built configuration. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Configuration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]Configuration)}
}

// Register builds the configuration for slug and stores it. The factory's
// configuration id must equal the slug.
func (r *Registry) Register(slug string, factory Factory) error {
	if r == nil {
		return errors.New("registry is required")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ErrSlugRequired
	}
	if factory == nil {
		return fmt.Errorf("%s: %w", slug, ErrFactoryRequired)
	}
	cfg := factory()
	if cfg.ID() != slug {
		return fmt.Errorf("rule slug %s builds configuration %q", slug, cfg.ID())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.configs[slug]; exists {
		return fmt.Errorf("%s: %w", slug, ErrSlugRegistered)
	}
	r.configs[slug] = cfg
	return nil
}

// Lookup returns the configuration registered for slug.
func (r *Registry) Lookup(slug string) (Configuration, bool) {
	if r == nil {
		return Configuration{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[strings.TrimSpace(slug)]
	return cfg, ok
}

// Slugs returns the registered slugs in sorted order.
func (r *Registry) Slugs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	slugs := make([]string, 0, len(r.configs))
	for slug := range r.configs {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry holding the built-in rules.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for slug, factory := range map[string]Factory{
			SlugSkillAssessment:   SkillAssessment,
			SlugValueNavigation:   ValueNavigation,
			SlugCareerPersonality: CareerPersonality,
		} {
			if err := defaultRegistry.Register(slug, factory); err != nil {
				panic(err)
			}
		}
	})
	return defaultRegistry
}
