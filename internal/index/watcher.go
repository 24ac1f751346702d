package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/velocity/internal/apperr"
	"github.com/starford/velocity/internal/models"
	"github.com/starford/velocity/internal/storage"
)

const (
	// moveWindow is how long a Rename waits for the Create of its destination.
	moveWindow = 100 * time.Millisecond
	// reconcileDelay debounces full rescans after an event queue overflow
	// or a directory move.
	reconcileDelay = 200 * time.Millisecond
)

// ChangeFunc is called after every index mutation the watcher applies.
type ChangeFunc func(models.Change)

// EventKind is the logical kind of a filesystem event.
type EventKind int

const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
	EventMoved
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventMoved:
		return "moved"
	}
	return "unknown"
}

// Event is a filesystem change in notebook terms. Dest is only set for moves.
type Event struct {
	Kind EventKind
	Path string
	Dest string
}

// Watcher translates fsnotify events under the notebook directory into
// index mutations. It never assumes it is the only writer: every event is
// applied so that replaying it, or seeing it after the façade already made
// the same change, leaves the index as it is.
type Watcher struct {
	idx    *Index
	store  storage.Provider
	logger *slog.Logger
	notify ChangeFunc

	fsw       *fsnotify.Watcher
	closeOnce sync.Once
	closeErr  error

	// Owned by the Run goroutine.
	pendingMove    string
	moveTimer      *time.Timer
	moveCh         <-chan time.Time
	reconcileTimer *time.Timer
	reconcileCh    <-chan time.Time
}

// NewWatcher registers the notebook tree with fsnotify. Events that happen
// after it returns are delivered to Run.
func NewWatcher(idx *Index, store storage.Provider, logger *slog.Logger, notify ChangeFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create: %w", err)
	}
	w := &Watcher{
		idx:    idx,
		store:  store,
		logger: logger,
		notify: notify,
		fsw:    fsw,
	}
	if err := w.addDirsRecursive(store.Root()); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watcher: watch %s: %w", store.Root(), err)
	}
	return w, nil
}

// Close releases the fsnotify handle. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fsw.Close()
	})
	return w.closeErr
}

// Run processes events until ctx is cancelled, then closes the watcher.
// It returns nil after cancellation and an error wrapping
// apperr.ErrWatchFailure when fsnotify stops delivering on its own.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	defer w.stopTimers()

	w.logger.Info("watcher: started", slog.String("root", w.store.Root()))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-w.moveCh:
			w.flushMove()

		case <-w.reconcileCh:
			w.reconcile()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return w.streamClosed(ctx)
			}
			w.dispatch(ev)

		case watchErr, ok := <-w.fsw.Errors:
			if !ok {
				return w.streamClosed(ctx)
			}
			if errors.Is(watchErr, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watcher: event queue overflow, rescanning")
				w.scheduleReconcile()
				continue
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) streamClosed(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	w.logger.Error("watcher: notification stream closed unexpectedly")
	return fmt.Errorf("%w: fsnotify stream closed", apperr.ErrWatchFailure)
}

func (w *Watcher) stopTimers() {
	if w.moveTimer != nil {
		w.moveTimer.Stop()
	}
	if w.reconcileTimer != nil {
		w.reconcileTimer.Stop()
	}
}

// dispatch maps one raw fsnotify event onto logical events.
func (w *Watcher) dispatch(ev fsnotify.Event) {
	path := ev.Name

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			if w.pendingMove != "" {
				w.flushMove()
			}
			w.watchNewDir(path)
			return
		}
		if src := w.pendingMove; src != "" {
			w.clearMove()
			w.apply(Event{Kind: EventMoved, Path: src, Dest: path})
			return
		}
		w.apply(Event{Kind: EventCreated, Path: path})

	case ev.Has(fsnotify.Write):
		w.apply(Event{Kind: EventModified, Path: path})

	case ev.Has(fsnotify.Remove):
		w.apply(Event{Kind: EventDeleted, Path: path})

	case ev.Has(fsnotify.Rename):
		// fsnotify fires Rename on the old path only; the new path arrives
		// as a separate Create if it stays inside a watched directory.
		if w.pendingMove != "" {
			w.flushMove()
		}
		w.pendingMove = path
		if w.moveTimer == nil {
			w.moveTimer = time.NewTimer(moveWindow)
			w.moveCh = w.moveTimer.C
		} else {
			w.moveTimer.Reset(moveWindow)
		}
	}
}

func (w *Watcher) clearMove() {
	w.pendingMove = ""
	if w.moveTimer != nil {
		w.moveTimer.Stop()
	}
}

// flushMove gives up on pairing the pending Rename and treats it as a delete.
func (w *Watcher) flushMove() {
	src := w.pendingMove
	if src == "" {
		return
	}
	w.clearMove()
	w.apply(Event{Kind: EventDeleted, Path: src})
	if _, _, ok := w.store.Resolve(src); !ok {
		// Probably a directory. Its watches still report the old path, and
		// whatever it became is picked up by the reconcile.
		w.unwatchTree(src)
		w.scheduleReconcile()
	}
}

// unwatchTree drops the watches on path and every directory below it.
func (w *Watcher) unwatchTree(path string) {
	prefix := path + string(filepath.Separator)
	for _, p := range w.fsw.WatchList() {
		if p == path || strings.HasPrefix(p, prefix) {
			_ = w.fsw.Remove(p)
		}
	}
}

func (w *Watcher) scheduleReconcile() {
	if w.reconcileTimer == nil {
		w.reconcileTimer = time.NewTimer(reconcileDelay)
		w.reconcileCh = w.reconcileTimer.C
	} else {
		w.reconcileTimer.Reset(reconcileDelay)
	}
}

// apply is the single path by which filesystem events reach the index.
func (w *Watcher) apply(ev Event) {
	switch ev.Kind {
	case EventCreated, EventModified:
		w.upsertPath(ev.Path)
	case EventDeleted:
		w.removePath(ev.Path)
	case EventMoved:
		w.movePath(ev.Path, ev.Dest)
	}
}

func (w *Watcher) emit(c models.Change) {
	if w.notify != nil {
		w.notify(c)
	}
}

func (w *Watcher) upsertPath(path string) {
	title, ext, ok := w.store.Resolve(path)
	if !ok {
		return
	}
	mt, err := w.store.ModTime(title, ext)
	if err != nil {
		w.logger.Debug("watcher: stat failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	w.upsert(title, ext, mt)
}

func (w *Watcher) upsert(title, ext string, mt time.Time) {
	existing, exists := w.idx.Get(title)
	if exists && existing.Extension != ext {
		if _, err := w.store.ModTime(existing.Title, existing.Extension); err == nil {
			w.logger.Debug("watcher: title taken by another file",
				slog.String("title", title),
				slog.String("extension", ext),
				slog.String("indexed", existing.Extension))
			return
		}
	}
	kind := models.ChangeUpdated
	if !exists {
		kind = models.ChangeCreated
	}
	if w.idx.Upsert(models.NewNote(w.store.Root(), title, ext, mt)) {
		w.logger.Debug("watcher: indexed", slog.String("title", title), slog.String("op", kind))
		w.emit(models.Change{Kind: kind, Title: title})
	}
}

func (w *Watcher) removePath(path string) {
	title, ext, ok := w.store.Resolve(path)
	if !ok {
		w.removeDir(path)
		return
	}
	existing, exists := w.idx.Get(title)
	if !exists || existing.Extension != ext {
		return
	}
	if _, err := w.store.ModTime(title, ext); err == nil {
		// Recreated since the event was queued (e.g. an editor's
		// delete-and-write save); a later Create/Write refreshes it.
		return
	}
	if w.idx.Remove(title) {
		w.logger.Debug("watcher: deleted", slog.String("title", title))
		w.emit(models.Change{Kind: models.ChangeDeleted, Title: title})
	}
}

// removeDir drops every indexed note below a directory that went away.
func (w *Watcher) removeDir(path string) {
	rel, err := filepath.Rel(w.store.Root(), path)
	if err != nil || rel == "." {
		return
	}
	for _, n := range w.idx.Under(rel) {
		if _, err := os.Stat(n.Path()); err == nil {
			continue
		}
		if w.idx.Remove(n.Title) {
			w.logger.Debug("watcher: deleted with directory", slog.String("title", n.Title))
			w.emit(models.Change{Kind: models.ChangeDeleted, Title: n.Title})
		}
	}
}

func (w *Watcher) movePath(src, dst string) {
	srcTitle, _, srcOK := w.store.Resolve(src)
	dstTitle, dstExt, dstOK := w.store.Resolve(dst)

	if !srcOK || !dstOK {
		w.removePath(src)
		w.upsertPath(dst)
		return
	}

	mt, err := w.store.ModTime(dstTitle, dstExt)
	if err != nil {
		w.logger.Debug("watcher: stat failed", slog.String("path", dst), slog.String("error", err.Error()))
		w.removePath(src)
		return
	}
	changed, err := w.idx.Rename(srcTitle, models.NewNote(w.store.Root(), dstTitle, dstExt, mt))
	if err != nil {
		w.logger.Debug("watcher: rename conflict, splitting move",
			slog.String("from", srcTitle),
			slog.String("to", dstTitle),
			slog.String("error", err.Error()))
		w.removePath(src)
		w.upsertPath(dst)
		return
	}
	if changed {
		w.logger.Debug("watcher: renamed", slog.String("from", srcTitle), slog.String("to", dstTitle))
		w.emit(models.Change{Kind: models.ChangeRenamed, Title: dstTitle, OldTitle: srcTitle})
	}
}

// watchNewDir starts watching a directory created at runtime and indexes
// notes that were already written into it.
func (w *Watcher) watchNewDir(path string) {
	if w.store.SkipDir(path) {
		return
	}
	if err := w.addDirsRecursive(path); err != nil {
		w.logger.Warn("watcher: add new dir failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: watching new dir", slog.String("path", path))

	metas, err := w.store.ListDir(path)
	if err != nil {
		w.logger.Warn("watcher: list new dir failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	for _, m := range metas {
		w.upsert(m.Title, m.Extension, m.ModifiedAt)
	}
}

func (w *Watcher) reconcile() {
	changes, err := Sync(w.idx, w.store, w.logger)
	if err != nil {
		w.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
		return
	}
	for _, c := range changes {
		w.emit(c)
	}
}

// addDirsRecursive adds root and all its non-excluded subdirectories.
func (w *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root && errors.Is(err, fs.ErrPermission) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.store.SkipDir(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
