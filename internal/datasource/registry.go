package datasource

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the registered datasource roots and their file listings.
// Roots are absolute, slash-separated and end with "/".
type Registry struct {
	mu     sync.RWMutex
	roots  map[string][]string
	opts   ListOptions
	logger *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(opts ListOptions, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		roots:  make(map[string][]string),
		opts:   opts,
		logger: logger,
	}
}

// RootKey normalises a directory path into its registry key.
func RootKey(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve datasource path: %w", err)
	}
	key := filepath.ToSlash(abs)
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return key, nil
}

// Add enumerates dir eagerly and registers it, replacing any previous listing
// of the same root. Returns the root key.
func (r *Registry) Add(dir string) (string, error) {
	key, err := RootKey(dir)
	if err != nil {
		return "", err
	}
	files, err := ListRelativeFilesWithOptions(filepath.FromSlash(key), r.opts)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.roots[key] = files
	r.mu.Unlock()

	r.logger.Info("datasource added", zap.String("root", key), zap.Int("files", len(files)))
	return key, nil
}

// Refresh re-enumerates a registered root.
func (r *Registry) Refresh(root string) error {
	r.mu.RLock()
	_, ok := r.roots[root]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("datasource not registered: %s", root)
	}

	files, err := ListRelativeFilesWithOptions(filepath.FromSlash(root), r.opts)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roots[root]; ok {
		r.roots[root] = files
	}
	r.logger.Debug("datasource refreshed", zap.String("root", root), zap.Int("files", len(files)))
	return nil
}

// Remove unregisters a root. Returns false when it was not registered.
func (r *Registry) Remove(root string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roots[root]; !ok {
		return false
	}
	delete(r.roots, root)
	return true
}

// Snapshot returns a copy of the root -> files map.
func (r *Registry) Snapshot() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.roots))
	for k, v := range r.roots {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Roots returns the registered roots, sorted.
func (r *Registry) Roots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roots := make([]string, 0, len(r.roots))
	for k := range r.roots {
		roots = append(roots, k)
	}
	sort.Strings(roots)
	return roots
}
