package skills

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/openskills/skillagent/pkg/logger"
	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

// DefaultDebounce is how long the watcher waits for the filesystem to settle
// before re-discovering.
const DefaultDebounce = 250 * time.Millisecond

// Watcher re-discovers a repository when its skill directories change.
type Watcher struct {
	repo     *Repository
	debounce time.Duration
	onReload func([]skilltypes.Metadata, error)

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnReload registers a callback invoked after every re-discovery.
func WithOnReload(fn func([]skilltypes.Metadata, error)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher creates a watcher for repo.
func NewWatcher(repo *Repository, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		repo:     repo,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start installs the watches and processes events in the background until
// ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	w.fsw = fsw
	w.addWatches(ctx)

	go w.loop(ctx)
	return nil
}

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// addWatches watches every root, each immediate subdirectory and the
// references tree beneath it. Adding a path twice is a no-op.
func (w *Watcher) addWatches(ctx context.Context) {
	for _, root := range w.repo.Dirs() {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		w.add(ctx, root)
		for _, entry := range entries {
			dir := filepath.Join(root, entry.Name())
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				continue
			}
			w.add(ctx, dir)
			_ = filepath.WalkDir(filepath.Join(dir, referencesDirName), func(p string, d os.DirEntry, err error) error {
				if err == nil && d.IsDir() {
					w.add(ctx, p)
				}
				return nil
			})
		}
	}
}

func (w *Watcher) add(ctx context.Context, path string) {
	if err := w.fsw.Add(path); err != nil {
		logger.G(ctx).WithField(logger.FieldPath, path).WithError(err).Debug("failed to watch directory")
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.fsw.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.G(ctx).WithField(logger.FieldPath, event.Name).WithField("op", event.Op.String()).Debug("skill files changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.G(ctx).WithError(err).Warn("skill watcher error")

		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	metadata, err := w.repo.Discover(ctx, true)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to reload skills")
	} else {
		logger.G(ctx).WithField("count", len(metadata)).Info("reloaded skills")
	}
	w.addWatches(ctx)

	if w.onReload != nil {
		w.onReload(metadata, err)
	}
}
