package notebook

import "context"

type loopFunc func(ctx context.Context) error

func (f loopFunc) Run(ctx context.Context) error { return f(ctx) }

// WithWatchLoop replaces the filesystem watcher with run.
func WithWatchLoop(run func(ctx context.Context) error) Option {
	return func(nb *NoteBook) {
		nb.newWatcher = func() (watchLoop, error) { return loopFunc(run), nil }
	}
}
