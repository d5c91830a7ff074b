// Package registry keeps the set of note collection names that currently have
// stored chunks, persisted as a small JSON file so it survives restarts.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type fileFormat struct {
	Collections []string `json:"collections"`
}

// Registry is a persisted set of collection names. Safe for concurrent use.
type Registry struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	names map[string]struct{}

	// persistMu serializes writers of the backing file.
	persistMu sync.Mutex
}

// New returns an empty registry backed by path. Call Load to read existing state.
func New(path string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		path:   path,
		logger: logger.With("component", "registry"),
		names:  make(map[string]struct{}),
	}
}

// Load replaces the in-memory set with the file contents. A missing or
// malformed file yields an empty set and is logged, never returned.
func (r *Registry) Load() {
	names := make(map[string]struct{})
	defer func() {
		r.mu.Lock()
		r.names = names
		r.mu.Unlock()
	}()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("registry file not found, starting empty", "path", r.path)
		return
	}
	if err != nil {
		r.logger.Warn("failed to read registry file, starting empty", "path", r.path, "error", err)
		return
	}

	var parsed struct {
		Collections *[]string `json:"collections"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		r.logger.Warn("malformed registry file, starting empty", "path", r.path, "error", err)
		return
	}
	if parsed.Collections == nil {
		r.logger.Warn("registry file has no collections key, starting empty", "path", r.path)
		return
	}
	for _, name := range *parsed.Collections {
		names[name] = struct{}{}
	}
	r.logger.Info("registry loaded", "path", r.path, "collections", len(names))
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Add registers name and persists. Adding a present name is a no-op.
func (r *Registry) Add(name string) error {
	r.mu.Lock()
	if _, ok := r.names[name]; ok {
		r.mu.Unlock()
		return nil
	}
	r.names[name] = struct{}{}
	r.mu.Unlock()
	return r.Persist()
}

// Remove unregisters name and persists. Removing an absent name is not an error.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	delete(r.names, name)
	r.mu.Unlock()
	return r.Persist()
}

// Replace swaps the whole set and persists.
func (r *Registry) Replace(names []string) error {
	next := make(map[string]struct{}, len(names))
	for _, name := range names {
		next[name] = struct{}{}
	}
	r.mu.Lock()
	r.names = next
	r.mu.Unlock()
	return r.Persist()
}

// List returns a sorted snapshot of the registered names.
func (r *Registry) List() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Persist writes the current set to disk atomically (temp file + rename).
func (r *Registry) Persist() error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	data, err := json.MarshalIndent(fileFormat{Collections: r.List()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace registry file: %w", err)
	}
	return nil
}
