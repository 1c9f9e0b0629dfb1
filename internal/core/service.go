package core

import (
	"context"
	"errors"
	"time"

	"procurement/internal/blob"
	"procurement/internal/logger"
	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

// Service is the procurement service boundary. Every mutation runs inside a
// single store transaction and returns only after the store has persisted the
// resulting document.
type Service struct {
	store   PersistentStore
	blobs   blob.Store
	log     *logger.Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger.
func WithLogger(log *logger.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetricsRecorder sets the recorder notified after every operation.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer sets the tracer wrapping every operation.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the clock used for backup names.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBlobStore enables Backup and ListBackups.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(s *Service) { s.blobs = store }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	svc := &Service{
		store:   store,
		log:     logger.Nop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// run wraps an operation with tracing, metrics and logging.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx = s.log.WithOperation(ctx, op)
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	span.End(err)

	switch {
	case err == nil:
		s.log.Debug(ctx, "operation completed")
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		s.log.Info(s.log.WithField(ctx, "reason", err.Error()), "operation rejected")
	default:
		s.log.Error(ctx, "operation failed", err)
	}
	return err
}

// transact runs fn in a store transaction and maps store failures onto the
// error taxonomy.
func (s *Service) transact(ctx context.Context, fn func(Transaction) error) error {
	_, err := s.store.RunInTransaction(ctx, fn)
	return translateError(err)
}

func (s *Service) view(ctx context.Context, fn func(TransactionView) error) error {
	return translateError(s.store.View(ctx, fn))
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "rule violation").WithDetails(violation.Result.Violations)
	}
	var notFound domain.ErrNotFound
	if errors.As(err, &notFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, string(notFound.Entity)+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transaction failed")
}
