package specialty

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

//go:embed catalogue/*.yaml
var builtin embed.FS

// catalogueGlob matches catalogue files at any depth.
const catalogueGlob = "**/*.{yaml,yml}"

// Registry is a read-only lookup of specialty catalogues.
// Registration is expected at startup; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]*Config)}
}

// NewDefaultRegistry creates a registry holding the built-in catalogues.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadFS(builtin); err != nil {
		return nil, fmt.Errorf("load built-in catalogue: %w", err)
	}
	return r, nil
}

// Register validates and adds a catalogue, replacing any previous entry
// for the same specialty code.
func (r *Registry) Register(cfg *Config) error {
	for id, tmpl := range cfg.Templates {
		if tmpl == nil {
			return &ConfigurationError{Specialty: cfg.Specialty, Reason: fmt.Sprintf("template %q is empty", id)}
		}
		tmpl.ID = id
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Specialty] = cfg
	return nil
}

// Parse decodes a single YAML catalogue document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	return &cfg, nil
}

// LoadFS registers every catalogue file found in fsys.
func (r *Registry) LoadFS(fsys fs.FS) error {
	matches, err := doublestar.Glob(fsys, catalogueGlob)
	if err != nil {
		return fmt.Errorf("glob catalogue files: %w", err)
	}
	sort.Strings(matches)

	for _, path := range matches {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := r.Register(cfg); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// LoadDir registers every catalogue file under dir.
func (r *Registry) LoadDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat catalogue dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("catalogue path %s is not a directory", dir)
	}
	return r.LoadFS(os.DirFS(dir))
}

// Config returns the catalogue for a specialty code.
func (r *Registry) Config(code string) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[code]
	if !ok {
		return nil, &ConfigurationError{Specialty: code, Reason: "unknown specialty"}
	}
	return cfg, nil
}

// Has reports whether a specialty is registered.
func (r *Registry) Has(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.configs[code]
	return ok
}

// Specialties returns registered specialty codes in sorted order.
func (r *Registry) Specialties() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.configs))
	for code := range r.configs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
