package controller

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/nvr-ai/yolodrop/images"
)

// DefaultSettle is how long a dropped file must stay unchanged before it is processed.
const DefaultSettle = 500 * time.Millisecond

// Watcher feeds image files that appear in a drop directory to a Controller.
type Watcher struct {
	// Dir is the watched directory.
	Dir string
	// Controller processes each settled file.
	Controller *Controller
	// Settle is the quiet period after the last write; <= 0 uses DefaultSettle.
	Settle time.Duration
	// OnResult, when set, receives every processed file.
	OnResult func(FileResult)

	fs *fsnotify.Watcher
}

// NewWatcher starts watching dir.
//
// Arguments:
//   - dir: The drop directory.
//   - c: The controller to run on new files.
//
// Returns:
//   - *Watcher: The watcher; call Run to process events and Close when done.
//   - error: An error if the directory cannot be watched.
func NewWatcher(dir string, c *Controller) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}
	return &Watcher{Dir: dir, Controller: c, fs: fs}, nil
}

// Run processes settled files one at a time until ctx is cancelled or the watcher is closed.
//
// Returns:
//   - error: ctx.Err() on cancellation, nil when the watcher was closed.
func (w *Watcher) Run(ctx context.Context) error {
	settle := w.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	lg := w.Controller.logger()
	lg.Printf("👀 watching %s", w.Dir)

	pending := map[string]time.Time{}
	// Results saved into the watched directory must not be fed back in.
	written := map[string]bool{}
	tick := settle / 2
	if tick <= 0 {
		tick = settle
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if written[absPath(ev.Name)] {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				if images.IsSupportedExtension(ev.Name) {
					pending[ev.Name] = time.Now()
				}
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				delete(pending, ev.Name)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			lg.Printf("⚠️ watch error: %v", err)

		case now := <-ticker.C:
			for _, path := range settled(pending, now, settle) {
				delete(pending, path)
				res := w.Controller.ProcessFile(ctx, path)
				for _, out := range []string{res.Saved.ImagePath, res.Saved.CSVPath} {
					if out != "" {
						written[absPath(out)] = true
					}
				}
				if w.OnResult != nil {
					w.OnResult(res)
				}
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
	}
}

// settled returns the pending paths quiet for at least settle, sorted by name.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
