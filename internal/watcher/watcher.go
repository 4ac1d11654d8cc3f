// Package watcher keeps the catalog in sync with seed files on disk.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/novellize/novellize/pkg/utils"
)

const defaultDebounce = 500 * time.Millisecond

// Handler reacts to seed file changes.
type Handler interface {
	FileChanged(ctx context.Context, path string)
	FileRemoved(ctx context.Context, path string)
}

// HandlerFuncs adapts two functions to a Handler. Nil functions are skipped.
type HandlerFuncs struct {
	OnChange func(ctx context.Context, path string)
	OnRemove func(ctx context.Context, path string)
}

// FileChanged calls OnChange.
func (h HandlerFuncs) FileChanged(ctx context.Context, path string) {
	if h.OnChange != nil {
		h.OnChange(ctx, path)
	}
}

// FileRemoved calls OnRemove.
func (h HandlerFuncs) FileRemoved(ctx context.Context, path string) {
	if h.OnRemove != nil {
		h.OnRemove(ctx, path)
	}
}

// Options selects what to watch.
type Options struct {
	Roots      []string
	Extensions []string // empty matches every file
	Recursive  bool
	Debounce   time.Duration
}

// Watcher watches seed directories and forwards debounced file events.
type Watcher struct {
	handler    Handler
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	roots     []string
	rootPaths map[string][]string // root -> directories added to fsnotify
	pending   map[string]*time.Timer
	fsw       *fsnotify.Watcher
	ctx       context.Context
	started   bool
	done      chan struct{}
	stopOnce  sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = utils.LoggerOrNop(l) }
}

// New creates a watcher. Nothing is watched until Start.
func New(opts Options, handler Handler, options ...Option) *Watcher {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	roots := make([]string, 0, len(opts.Roots))
	for _, r := range opts.Roots {
		roots = append(roots, filepath.Clean(r))
	}
	w := &Watcher{
		handler:    handler,
		extensions: opts.Extensions,
		recursive:  opts.Recursive,
		debounce:   debounce,
		logger:     zap.NewNop(),
		roots:      roots,
		rootPaths:  make(map[string][]string),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Start begins watching. Missing roots are created. It returns once the roots
// are registered; events are processed until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.mu.Unlock()
			return err
		}
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching catalog directories",
		zap.Strings("roots", w.Directories()),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if matchExtension(path, w.extensions) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if matchExtension(path, w.extensions) {
			w.schedule(path)
		}
	}
}

// handleNewDirectory watches a directory created under a root and imports the
// seed files already inside it.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	root := w.rootForLocked(dir)
	w.mu.Unlock()
	if fsw == nil || !w.recursive {
		return
	}

	added := w.walkDirs(dir, fsw)
	w.mu.Lock()
	if root != "" {
		w.rootPaths[root] = append(w.rootPaths[root], added...)
	}
	w.mu.Unlock()
	w.syncDirectory(dir)
}

// walkDirs registers dir and its subdirectories.
func (w *Watcher) walkDirs(dir string, fsw *fsnotify.Watcher) []string {
	var added []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		added = append(added, path)
		return nil
	})
	return added
}

// schedule coalesces events per path. When the debounce window closes the file
// is imported if it exists and withdrawn otherwise.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			w.handler.FileRemoved(ctx, path)
			return
		}
		w.handler.FileChanged(ctx, path)
	})
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rootForLocked(path) != ""
}

func (w *Watcher) rootForLocked(path string) string {
	for _, root := range w.roots {
		if inDir(root, path) {
			return root
		}
	}
	return ""
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// AddDirectory starts watching root and, when syncExisting is set, imports the
// seed files it already holds. Adding a watched root is a no-op.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	for _, r := range w.roots {
		if r == abs {
			w.mu.Unlock()
			return nil
		}
	}
	if w.fsw != nil {
		if err := w.addRootLocked(abs); err != nil {
			w.mu.Unlock()
			return err
		}
	}
	w.roots = append(w.roots, abs)
	started := w.started
	w.mu.Unlock()

	w.logger.Info("catalog directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting && started {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if !w.recursive {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		w.rootPaths[root] = []string{root}
		return nil
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}
	w.rootPaths[root] = paths
	return nil
}

// RemoveDirectory stops watching root. Novels already imported from it stay in
// the catalog.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := -1
	for i, r := range w.roots {
		if r == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if w.fsw != nil {
		for _, p := range w.rootPaths[abs] {
			_ = w.fsw.Remove(p)
		}
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	w.logger.Info("catalog directory removed", zap.String("path", abs))
	return nil
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles imports every matching file under the watched roots, in
// lexical order. Call it after Start.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

func (w *Watcher) syncDirectory(root string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExtension(path, w.extensions) {
			w.handler.FileChanged(ctx, path)
		}
		return ctx.Err()
	})
}

// Stop stops watching and drops pending events.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
