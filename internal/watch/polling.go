package watch

import (
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

// pollingWatcher diffs content fingerprints on a timer. Fallback for
// filesystems where fsnotify cannot operate.
type pollingWatcher struct {
	root     string
	interval time.Duration
	events   chan Change
	done     chan struct{}
	closeMu  sync.Once
	wg       sync.WaitGroup
	prints   map[string]uint64
	logger   log.Logger
}

func newPolling(root string, interval time.Duration, logger log.Logger) (*pollingWatcher, error) {
	w := &pollingWatcher{
		root:     root,
		interval: interval,
		events:   make(chan Change, 64),
		done:     make(chan struct{}),
		logger:   logger,
	}
	w.prints = w.scan()

	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *pollingWatcher) Events() <-chan Change { return w.events }

func (w *pollingWatcher) Close() error {
	w.closeMu.Do(func() {
		close(w.done)
		w.wg.Wait()
		close(w.events)
	})
	return nil
}

func (w *pollingWatcher) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.diff()
		}
	}
}

func (w *pollingWatcher) diff() {
	current := w.scan()
	for path, print := range current {
		if old, ok := w.prints[path]; !ok || old != print {
			w.emit(Change{Path: path, Kind: KindModify})
		}
	}
	for path := range w.prints {
		if _, ok := current[path]; !ok {
			w.emit(Change{Path: path, Kind: KindRemove})
		}
	}
	w.prints = current
}

// scan fingerprints every regular file under root with FNV-1a.
func (w *pollingWatcher) scan() map[string]uint64 {
	prints := make(map[string]uint64)
	_ = filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.root && ignored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if print, err := fingerprint(path); err == nil {
			prints[filepath.ToSlash(rel)] = print
		}
		return nil
	})
	return prints
}

func fingerprint(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := fnv.New64a()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func (w *pollingWatcher) emit(c Change) {
	select {
	case w.events <- c:
	case <-w.done:
	default:
		w.logger.Debug("watch event dropped", "path", c.Path)
	}
}
