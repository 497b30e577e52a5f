package gen

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/olehluchkiv/llimpl/internal/resolver"
)

// DefaultDebounce is how long Watch waits after the last change to a stub
// before regenerating it.
const DefaultDebounce = 200 * time.Millisecond

// WatchDirs returns the directories holding stubs, plus extra, deduplicated.
func WatchDirs(stubs []string, extra ...string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, s := range stubs {
		add(filepath.Dir(s))
	}
	for _, d := range extra {
		add(d)
	}
	sort.Strings(dirs)
	return dirs
}

// Watch regenerates stub files in dirs when they are written or created,
// calling done after every run. It returns when ctx is cancelled.
func (r *Runner) Watch(ctx context.Context, dirs []string, debounce time.Duration, done func(*Report, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return errors.Wrapf(err, "watch %s", d)
		}
	}
	r.logger.Info("watching for stub changes", zap.Strings("dirs", dirs))

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !resolver.IsStub(ev.Name) || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			r.logger.Debug("stub changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			pending[ev.Name] = true
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			stubs := make([]string, 0, len(pending))
			for p := range pending {
				stubs = append(stubs, p)
			}
			clear(pending)
			sort.Strings(stubs)

			report, err := r.Run(ctx, stubs)
			if err != nil {
				r.logger.Error("regeneration failed", zap.Strings("stubs", stubs), zap.Error(err))
			}
			if done != nil {
				done(report, err)
			}
		}
	}
}
