// Package notebook is the consumer-facing façade over a directory of notes.
// It owns the index and the watcher goroutine that keeps it current.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/starford/velocity/internal/apperr"
	"github.com/starford/velocity/internal/checksum"
	"github.com/starford/velocity/internal/index"
	"github.com/starford/velocity/internal/models"
	"github.com/starford/velocity/internal/storage"
)

// Config describes the notebook directory and which files in it are notes.
type Config struct {
	Path       string
	Extension  string
	Extensions []string
	Exclude    []string
	// SearchMaxContentBytes limits content matching to files up to this
	// size; zero means no limit.
	SearchMaxContentBytes int64
}

// Option is a functional option for Open.
type Option func(*NoteBook)

// WithLogger sets the logger used by the notebook and its watcher.
func WithLogger(l *slog.Logger) Option {
	return func(nb *NoteBook) {
		nb.logger = l
	}
}

// WithOnChange registers a subscriber before the watcher starts.
func WithOnChange(fn func(models.Change)) Option {
	return func(nb *NoteBook) {
		nb.subs[nb.nextSub] = fn
		nb.nextSub++
	}
}

// watchLoop is the part of index.Watcher the notebook drives.
type watchLoop interface {
	Run(ctx context.Context) error
}

// NoteBook coordinates storage, the index and the watcher.
type NoteBook struct {
	store      *storage.FS
	idx        *index.Index
	logger     *slog.Logger
	maxContent int64
	newWatcher func() (watchLoop, error)

	subsMu  sync.Mutex
	subs    map[int]func(models.Change)
	nextSub int

	// mu serializes mutating calls and guards the lifecycle fields below.
	mu      sync.Mutex
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
	healthy error
}

// Open scans the notebook directory, creating it if needed, and starts
// watching it.
func Open(cfg Config, opts ...Option) (*NoteBook, error) {
	nb := &NoteBook{
		idx:        index.New(),
		logger:     slog.Default(),
		maxContent: cfg.SearchMaxContentBytes,
		subs:       make(map[int]func(models.Change)),
	}
	nb.newWatcher = nb.fsWatcher
	for _, opt := range opts {
		opt(nb)
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("notebook: create dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Path, storage.Options{
		Extension:  cfg.Extension,
		Extensions: cfg.Extensions,
		Exclude:    cfg.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("notebook: %w", err)
	}
	nb.store = store

	// Watch before scanning so nothing written in between is missed.
	if err := nb.startWatcher(); err != nil {
		return nil, err
	}
	if _, err := index.Sync(nb.idx, store, nb.logger); err != nil {
		nb.Close()
		return nil, fmt.Errorf("notebook: initial scan: %w", err)
	}

	nb.logger.Info("notebook: opened",
		slog.String("path", store.Root()),
		slog.Int("notes", nb.idx.Len()))
	return nb, nil
}

func (nb *NoteBook) fsWatcher() (watchLoop, error) {
	return index.NewWatcher(nb.idx, nb.store, nb.logger, func(c models.Change) { nb.publish(c) })
}

// startWatcher launches the watcher goroutine; the caller holds mu or has
// not yet published nb.
func (nb *NoteBook) startWatcher() error {
	w, err := nb.newWatcher()
	if err != nil {
		return fmt.Errorf("notebook: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	nb.cancel, nb.done, nb.healthy = cancel, done, nil

	go func() {
		err := w.Run(ctx)
		if err == nil {
			close(done)
			return
		}
		nb.logger.Error("notebook: watcher failed, index no longer follows the directory",
			slog.String("error", err.Error()))
		nb.mu.Lock()
		nb.healthy = err
		nb.mu.Unlock()
		// done is closed before subscribers hear about the failure, so a
		// subscriber may call Rescan.
		close(done)
		nb.publish(models.Change{Kind: models.ChangeDegraded})
	}()
	return nil
}

// Subscribe registers fn to be called after every visible index change,
// from whichever goroutine made it. It returns a function that removes the
// subscription.
func (nb *NoteBook) Subscribe(fn func(models.Change)) func() {
	nb.subsMu.Lock()
	id := nb.nextSub
	nb.subs[id] = fn
	nb.nextSub++
	nb.subsMu.Unlock()

	return func() {
		nb.subsMu.Lock()
		delete(nb.subs, id)
		nb.subsMu.Unlock()
	}
}

// publish delivers changes to every subscriber. It must not be called with
// mu held.
func (nb *NoteBook) publish(changes ...models.Change) {
	if len(changes) == 0 {
		return
	}
	nb.subsMu.Lock()
	fns := make([]func(models.Change), 0, len(nb.subs))
	for _, fn := range nb.subs {
		fns = append(fns, fn)
	}
	nb.subsMu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// Root returns the canonical notebook directory.
func (nb *NoteBook) Root() string { return nb.store.Root() }

// DefaultExtension returns the extension given to new notes.
func (nb *NoteBook) DefaultExtension() string { return nb.store.DefaultExtension() }

// Extensions returns the recognized note extensions.
func (nb *NoteBook) Extensions() []string { return nb.store.Extensions() }

// Excluded returns the file and directory names that are never notes.
func (nb *NoteBook) Excluded() []string { return nb.store.Excluded() }

// Create adds an empty note (or adopts an existing, not yet indexed file)
// and indexes it before returning.
func (nb *NoteBook) Create(rawTitle string) (models.Note, error) {
	var changes []models.Change
	defer func() { nb.publish(changes...) }()
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if nb.closed {
		return models.Note{}, apperr.ErrClosed
	}

	title, ext, err := nb.store.ParseTitle(rawTitle, "")
	if err != nil {
		return models.Note{}, err
	}
	if nb.idx.Has(title) {
		return models.Note{}, fmt.Errorf("notebook: create %q: %w", title, apperr.ErrDuplicateTitle)
	}
	if err := nb.store.Create(title, ext); err != nil {
		return models.Note{}, err
	}
	mt, err := nb.store.ModTime(title, ext)
	if err != nil {
		return models.Note{}, err
	}

	n := models.NewNote(nb.store.Root(), title, ext, mt)
	if nb.idx.Upsert(n) {
		changes = append(changes, models.Change{Kind: models.ChangeCreated, Title: title})
	}
	nb.logger.Debug("notebook: created", slog.String("title", title), slog.String("extension", ext))
	return n, nil
}

// Rename moves a note to a new title. The new title keeps the old extension
// unless it names a recognized one itself.
func (nb *NoteBook) Rename(oldTitle, newTitle string) (models.Note, error) {
	var changes []models.Change
	defer func() { nb.publish(changes...) }()
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if nb.closed {
		return models.Note{}, apperr.ErrClosed
	}

	cur, ok := nb.idx.Get(oldTitle)
	if !ok {
		return models.Note{}, fmt.Errorf("notebook: rename %q: %w", oldTitle, apperr.ErrNotFound)
	}
	title, ext, err := nb.store.ParseTitle(newTitle, cur.Extension)
	if err != nil {
		return models.Note{}, err
	}
	if title == cur.Title && ext == cur.Extension {
		return cur, nil
	}
	if title != cur.Title && nb.idx.Has(title) {
		return models.Note{}, fmt.Errorf("notebook: rename %q to %q: %w", oldTitle, title, apperr.ErrDuplicateTitle)
	}
	if err := nb.store.Move(cur.Title, cur.Extension, title, ext); err != nil {
		return models.Note{}, err
	}
	mt, err := nb.store.ModTime(title, ext)
	if err != nil {
		mt = cur.ModifiedAt
	}

	n := models.NewNote(nb.store.Root(), title, ext, mt)
	changed, err := nb.idx.Rename(cur.Title, n)
	if err != nil {
		return models.Note{}, err
	}
	if changed {
		changes = append(changes, models.Change{Kind: models.ChangeRenamed, Title: title, OldTitle: cur.Title})
	}
	nb.logger.Debug("notebook: renamed", slog.String("from", cur.Title), slog.String("to", title))
	return n, nil
}

// Delete removes a note file and its index entry. A file that is already
// gone from disk only loses its index entry.
func (nb *NoteBook) Delete(title string) error {
	var changes []models.Change
	defer func() { nb.publish(changes...) }()
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if nb.closed {
		return apperr.ErrClosed
	}

	cur, ok := nb.idx.Get(title)
	if !ok {
		return fmt.Errorf("notebook: delete %q: %w", title, apperr.ErrNotFound)
	}
	if err := nb.store.Delete(cur.Title, cur.Extension); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if nb.idx.Remove(cur.Title) {
		changes = append(changes, models.Change{Kind: models.ChangeDeleted, Title: cur.Title})
	}
	nb.logger.Debug("notebook: deleted", slog.String("title", cur.Title))
	return nil
}

// Write replaces the content of an existing note. When ifMatch is set it
// must equal the checksum of the current content.
func (nb *NoteBook) Write(title string, content []byte, ifMatch string) (models.Note, error) {
	var changes []models.Change
	defer func() { nb.publish(changes...) }()
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if nb.closed {
		return models.Note{}, apperr.ErrClosed
	}

	cur, ok := nb.idx.Get(title)
	if !ok {
		return models.Note{}, fmt.Errorf("notebook: write %q: %w", title, apperr.ErrNotFound)
	}
	if ifMatch != "" {
		raw, err := nb.store.Read(cur.Title, cur.Extension)
		if err != nil {
			return models.Note{}, err
		}
		// Checksums are taken over decoded content, as Read returns it.
		if !checksum.Matches(ifMatch, []byte(models.DecodeContent(raw))) {
			return models.Note{}, fmt.Errorf("notebook: write %q: %w", title, apperr.ErrConflict)
		}
	}
	if err := nb.store.Write(cur.Title, cur.Extension, content); err != nil {
		return models.Note{}, err
	}
	mt, err := nb.store.ModTime(cur.Title, cur.Extension)
	if err != nil {
		return models.Note{}, err
	}

	n := models.NewNote(nb.store.Root(), cur.Title, cur.Extension, mt)
	if nb.idx.Upsert(n) {
		changes = append(changes, models.Change{Kind: models.ChangeUpdated, Title: cur.Title})
	}
	return n, nil
}

// List returns every note, most recently modified first.
func (nb *NoteBook) List() []models.Note {
	return nb.idx.Snapshot()
}

// Search returns the notes matching query, most recently modified first.
func (nb *NoteBook) Search(query string) []models.Note {
	return index.Search(nb.idx.Snapshot(), query, nb.maxContent, nb.logger)
}

// Get looks a note up by title.
func (nb *NoteBook) Get(title string) (models.Note, bool) {
	return nb.idx.Get(title)
}

// Read returns the decoded content of a note. A file that exists but cannot
// be read yields empty content rather than an error.
func (nb *NoteBook) Read(title string) (models.Note, string, error) {
	n, ok := nb.idx.Get(title)
	if !ok {
		return models.Note{}, "", fmt.Errorf("notebook: read %q: %w", title, apperr.ErrNotFound)
	}
	raw, err := nb.store.Read(n.Title, n.Extension)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Note{}, "", fmt.Errorf("notebook: read %q: %w", title, apperr.ErrNotFound)
		}
		nb.logger.Warn("notebook: read failed", slog.String("title", title), slog.String("error", err.Error()))
		return n, "", nil
	}
	return n, models.DecodeContent(raw), nil
}

// Rescan reconciles the index with the directory. After a watch failure it
// also restarts the watcher.
func (nb *NoteBook) Rescan() error {
	var changes []models.Change
	defer func() { nb.publish(changes...) }()
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if nb.closed {
		return apperr.ErrClosed
	}

	if nb.healthy != nil {
		<-nb.done
		if err := nb.startWatcher(); err != nil {
			return err
		}
		nb.logger.Info("notebook: watcher restarted")
	}

	synced, err := index.Sync(nb.idx, nb.store, nb.logger)
	if err != nil {
		return fmt.Errorf("notebook: rescan: %w", err)
	}
	changes = synced
	return nil
}

// Health returns nil while the watcher is running and an error wrapping
// apperr.ErrWatchFailure once it has died.
func (nb *NoteBook) Health() error {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	return nb.healthy
}

// Close stops the watcher and waits for it to exit; no index mutation
// happens after Close returns. Later mutating calls fail with
// apperr.ErrClosed. Close is idempotent.
func (nb *NoteBook) Close() error {
	nb.mu.Lock()
	nb.closed = true
	cancel, done := nb.cancel, nb.done
	nb.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
