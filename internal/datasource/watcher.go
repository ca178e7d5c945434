package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher batches events before refreshing.
const DefaultDebounce = 500 * time.Millisecond

// Watcher keeps registry listings current: a create, remove or rename under a
// watched root re-enumerates that root after a debounce period.
type Watcher struct {
	registry  *Registry
	watcher   *fsnotify.Watcher
	logger    *zap.Logger
	debounce  time.Duration
	onRefresh func(root string)

	mu      sync.Mutex
	roots   []string        // watched roots, OS path form with trailing separator
	pending map[string]bool // root keys awaiting refresh

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher feeding registry. debounce <= 0 uses
// DefaultDebounce.
func NewWatcher(registry *Registry, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		registry: registry,
		watcher:  fw,
		logger:   logger,
		debounce: debounce,
		pending:  make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// OnRefresh sets a callback run after a root has been re-enumerated.
func (w *Watcher) OnRefresh(fn func(root string)) {
	w.onRefresh = fn
}

// Watch adds every non-hidden directory under a registered root.
func (w *Watcher) Watch(root string) error {
	dir := filepath.FromSlash(root)
	matcher := compileMatcher(dir, w.registry.opts)

	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		if rel != "." && matcher.MatchesPath(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Warn("failed to watch directory", zap.String("dir", p), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk datasource: %w", err)
	}

	w.mu.Lock()
	w.roots = append(w.roots, withSep(dir))
	w.mu.Unlock()
	return nil
}

// Start begins processing events.
func (w *Watcher) Start() {
	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
}

// Stop stops the watcher and waits for its goroutines.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	root := w.rootOf(event.Name)
	if root == "" {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
		}
	}

	w.mu.Lock()
	w.pending[filepath.ToSlash(root)] = true
	w.mu.Unlock()
}

// rootOf returns the watched root containing p, or "".
func (w *Watcher) rootOf(p string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.roots {
		if strings.HasPrefix(p, r) {
			return r
		}
	}
	return ""
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	roots := make([]string, 0, len(w.pending))
	for r := range w.pending {
		roots = append(roots, r)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	for _, r := range roots {
		if err := w.registry.Refresh(r); err != nil {
			w.logger.Warn("datasource refresh failed", zap.String("root", r), zap.Error(err))
			continue
		}
		if w.onRefresh != nil {
			w.onRefresh(r)
		}
	}
}

func withSep(dir string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir
	}
	return dir + string(filepath.Separator)
}
