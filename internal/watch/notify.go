package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

// notifyWatcher is the fsnotify-backed Watcher. Directories are added
// recursively; new directories are picked up from create events.
type notifyWatcher struct {
	root    string
	fw      *fsnotify.Watcher
	events  chan Change
	done    chan struct{}
	closeMu sync.Once
	wg      sync.WaitGroup
	logger  log.Logger
}

func newNotify(root string, logger log.Logger) (*notifyWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &notifyWatcher{
		root:   root,
		fw:     fw,
		events: make(chan Change, 64),
		done:   make(chan struct{}),
		logger: logger,
	}
	if err := w.addRecursive(root); err != nil {
		fw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *notifyWatcher) Events() <-chan Change { return w.events }

func (w *notifyWatcher) Close() error {
	var err error
	w.closeMu.Do(func() {
		close(w.done)
		err = w.fw.Close()
		w.wg.Wait()
		close(w.events)
	})
	return err
}

func (w *notifyWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			w.logger.Debug("watch add failed", "path", path, "error", err)
		}
		return nil
	})
}

func (w *notifyWatcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watch error", "error", err)
		}
	}
}

func (w *notifyWatcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || ignored(filepath.Base(ev.Name)) {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.emit(Change{Path: rel, Kind: KindRemove})
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(ev.Name)
			return
		}
		w.emit(Change{Path: rel, Kind: KindModify})
	case ev.Op.Has(fsnotify.Write):
		w.emit(Change{Path: rel, Kind: KindModify})
	}
}

// emit drops the change when the subscriber is not keeping up; the next
// poll of the workspace snapshot catches anything missed here.
func (w *notifyWatcher) emit(c Change) {
	select {
	case w.events <- c:
	case <-w.done:
	default:
		w.logger.Debug("watch event dropped", "path", c.Path)
	}
}
