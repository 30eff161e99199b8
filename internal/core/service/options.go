package service

import (
	"io"
	"log/slog"
	"time"

	"github.com/rl1809/mall-cart/internal/port"
)

type options struct {
	log      *slog.Logger
	now      func() time.Time
	replay   port.MutationCache
	events   port.EventPublisher
	observer port.BatchObserver
}

type Option func(*options)

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithClock overrides the time used for publication checks and event stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithMutationCache(c port.MutationCache) Option {
	return func(o *options) { o.replay = c }
}

func WithEventPublisher(p port.EventPublisher) Option {
	return func(o *options) { o.events = p }
}

func WithBatchObserver(ob port.BatchObserver) Option {
	return func(o *options) { o.observer = ob }
}

func buildOptions(opts []Option) options {
	o := options{
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
