package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	pkgerrors "procurement/pkg/errors"
)

// Span outcomes, derived from the operation's error.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNotFound = "not_found"
	OutcomeCanceled = "canceled"
	OutcomeFailed   = "failed"
)

// SpanRecord is one finished service operation.
type SpanRecord struct {
	Operation string
	Outcome   string
	Code      pkgerrors.Code
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// SpanRecorder is a Tracer that keeps finished spans and, when given a
// writer, emits each one as a JSON line.
type SpanRecorder struct {
	mu    sync.Mutex
	spans []SpanRecord
	out   *zerolog.Logger
	now   func() time.Time
}

// NewSpanRecorder returns a recorder writing JSON lines to w; nil w only
// retains spans.
func NewSpanRecorder(w io.Writer) *SpanRecorder {
	r := &SpanRecorder{now: time.Now}
	if w != nil {
		out := zerolog.New(w)
		r.out = &out
	}
	return r
}

// Start implements Tracer.
func (r *SpanRecorder) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &recordedSpan{recorder: r, operation: operation, started: r.now()}
}

// Spans returns a copy of the finished spans in completion order.
func (r *SpanRecorder) Spans() []SpanRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SpanRecord(nil), r.spans...)
}

func (r *SpanRecorder) finish(rec SpanRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, rec)
	if r.out == nil {
		return
	}
	event := r.out.Log().
		Str("span", rec.Operation).
		Str("outcome", rec.Outcome).
		Time("started_at", rec.StartedAt).
		Float64("duration_ms", float64(rec.Duration)/float64(time.Millisecond))
	if rec.Code != "" {
		event = event.Str("code", string(rec.Code))
	}
	if rec.Error != "" {
		event = event.Str("error", rec.Error)
	}
	event.Send()
}

type recordedSpan struct {
	recorder  *SpanRecorder
	operation string
	started   time.Time
}

func (s *recordedSpan) End(err error) {
	rec := SpanRecord{
		Operation: s.operation,
		Outcome:   outcomeOf(err),
		StartedAt: s.started.UTC(),
		Duration:  s.recorder.now().Sub(s.started),
	}
	if err != nil {
		rec.Error = err.Error()
		if coded := pkgerrors.As(err); coded != nil {
			rec.Code = coded.Code()
		}
	}
	s.recorder.finish(rec)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		return OutcomeRejected
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return OutcomeNotFound
	default:
		return OutcomeFailed
	}
}
