package optimistic

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
)

const (
	DefaultFailureTitle   = "Update failed"
	DefaultFailureMessage = "Something went wrong. Please try again."
)

// Patch returns the updated entity. It receives a copy, so T should be a value
// type: patching through a pointer would also change the snapshot.
type Patch[T Entity] func(T) T

// RemoteFunc performs the write the optimistic change stands in for. It closes
// over everything it needs.
type RemoteFunc func(ctx context.Context) error

// Outcome is a remote result that reports failure in-band instead of through
// the error return.
type Outcome interface {
	Err() error
}

// FromOutcome adapts a remote returning a result object to a RemoteFunc.
func FromOutcome[R Outcome](fn func(ctx context.Context) (R, error)) RemoteFunc {
	return func(ctx context.Context) error {
		res, err := fn(ctx)
		if err != nil {
			return err
		}
		return res.Err()
	}
}

// CacheKey is a composite cache bucket key. The coordinator never looks inside.
type CacheKey = []string

type Invalidator interface {
	Invalidate(ctx context.Context, key CacheKey) error
}

type Options struct {
	// Invalidate lists cache buckets to drop after the remote call succeeds.
	Invalidate []CacheKey
	// OnSuccess runs after invalidation. Its error is returned as-is.
	OnSuccess func(ctx context.Context) error
	// SuccessMessage, when set, is sent to the notifier on success.
	SuccessMessage string
	FailureTitle   string
	DefaultMessage string
}

type settings struct {
	invalidator Invalidator
	notifier    Notifier
	logger      *slog.Logger
}

type Option func(*settings)

func WithInvalidator(inv Invalidator) Option {
	return func(s *settings) { s.invalidator = inv }
}

func WithNotifier(n Notifier) Option {
	return func(s *settings) { s.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

type Coordinator[T Entity] struct {
	store    Store[T]
	settings settings
	updating atomic.Bool
}

func New[T Entity](store Store[T], opts ...Option) *Coordinator[T] {
	s := settings{
		notifier: NotifierFunc(func(Notification) {}),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(&s)
	}
	return &Coordinator[T]{store: store, settings: s}
}

// Pending reports whether an update is in flight. There is a single flag per
// coordinator, so with overlapping updates it clears when the first one ends.
func (c *Coordinator[T]) Pending() bool {
	return c.updating.Load()
}

// Update applies patch to the entity with the given id, runs remote, and on
// failure restores that entity to its previous value and notifies once.
//
// An unknown id returns ErrNotFound without touching the store or calling
// remote. A failed remote returns *RemoteError. Errors from opts.OnSuccess are
// returned unchanged.
func (c *Coordinator[T]) Update(ctx context.Context, id string, patch Patch[T], remote RemoteFunc, opts Options) error {
	items := c.store.Load()
	idx := indexOf(items, id)
	if idx < 0 {
		return ErrNotFound
	}

	snapshot := items[idx]
	items[idx] = patch(snapshot)
	c.store.Save(items)

	c.updating.Store(true)
	defer c.updating.Store(false)

	if err := invoke(ctx, remote); err != nil {
		c.revert(id, snapshot)
		c.settings.notifier.Notify(Notification{
			Level:   LevelError,
			Title:   firstNonEmpty(opts.FailureTitle, DefaultFailureTitle),
			Message: failureMessage(err, opts.DefaultMessage),
		})
		c.settings.logger.Warn("optimistic update reverted", "id", id, "error", err)
		return &RemoteError{ID: id, Cause: err}
	}

	for _, key := range opts.Invalidate {
		if c.settings.invalidator == nil {
			c.settings.logger.Debug("no invalidator configured", "key", strings.Join(key, ":"))
			continue
		}
		if err := c.settings.invalidator.Invalidate(ctx, key); err != nil {
			c.settings.logger.Warn("cache invalidation failed", "key", strings.Join(key, ":"), "error", err)
		}
	}

	if opts.SuccessMessage != "" {
		c.settings.notifier.Notify(Notification{Level: LevelInfo, Message: opts.SuccessMessage})
	}

	if opts.OnSuccess != nil {
		return opts.OnSuccess(ctx)
	}
	return nil
}

func (c *Coordinator[T]) revert(id string, snapshot T) {
	items := c.store.Load()
	if i := indexOf(items, id); i >= 0 {
		items[i] = snapshot
		c.store.Save(items)
	}
}

func invoke(ctx context.Context, remote RemoteFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return remote(ctx)
}

func failureMessage(err error, fallback string) string {
	fallback = firstNonEmpty(fallback, DefaultFailureMessage)

	var pe *panicError
	if errors.As(err, &pe) {
		return fallback
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
