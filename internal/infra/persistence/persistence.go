// Package persistence holds the options and load policy shared by the durable
// document store backends (file, sqlite, postgres).
package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"procurement/internal/infra/persistence/memory"
	"procurement/internal/logger"
	"procurement/pkg/domain"
)

// Options configures a durable backend.
type Options struct {
	Engine *domain.RulesEngine
	Logger *logger.Logger
	Clock  func() time.Time
	IDs    func() uuid.UUID
}

// Option mutates Options.
type Option func(*Options)

// WithRulesEngine sets the engine evaluated on every transaction.
func WithRulesEngine(engine *domain.RulesEngine) Option {
	return func(o *Options) { o.Engine = engine }
}

// WithLogger sets the logger used for load recovery and save failures.
func WithLogger(log *logger.Logger) Option {
	return func(o *Options) { o.Logger = log }
}

// WithClock overrides the transaction clock.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Clock = now }
}

// WithIDGenerator overrides id assignment for new entities.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(o *Options) { o.IDs = gen }
}

// Apply resolves opts over the defaults.
func Apply(opts ...Option) Options {
	o := Options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// NewMemoryStore builds the in-memory store a backend embeds, wiring commit as
// its persistence hook.
func (o Options) NewMemoryStore(commit memory.CommitFunc) *memory.Store {
	return memory.NewStore(o.Engine,
		memory.WithCommitHook(commit),
		memory.WithClock(o.Clock),
		memory.WithIDGenerator(o.IDs),
	)
}

// DecodeOrReset parses a persisted payload. Payloads that cannot be parsed or
// that are structurally corrupt are discarded: the failure is logged at warn
// level and a fresh document is returned with reset set, so the caller saves
// it before serving requests.
func DecodeOrReset(ctx context.Context, log *logger.Logger, source string, payload []byte) (doc domain.Document, reset bool) {
	doc, err := domain.UnmarshalDocument(payload)
	if err != nil {
		Discard(ctx, log, source, err)
		return domain.NewDocument(), true
	}
	return doc, false
}

// Discard logs that the persisted document at source is being replaced by a
// fresh one.
func Discard(ctx context.Context, log *logger.Logger, source string, cause error) {
	if log == nil {
		log = logger.Nop()
	}
	ctx = log.WithFields(ctx, map[string]any{
		"source": source,
		"error":  cause.Error(),
	})
	log.Warn(ctx, "stored document unreadable, starting with an empty document")
}
