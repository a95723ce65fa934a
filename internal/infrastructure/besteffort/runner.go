// Package besteffort runs calls to soft collaborators: a failure is recorded
// and reported, but never returned to the caller.
package besteffort

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/observability/telemetry"
)

// Failure describes one swallowed collaborator error.
type Failure struct {
	Collaborator string
	Op           string
	Err          error
	At           time.Time
	Fields       []zap.Field
}

// Runner executes soft collaborator calls.
type Runner struct {
	log      *zap.Logger
	failures chan Failure
}

// NewRunner creates a runner whose failure channel holds up to buffer entries.
// When the buffer is full new failures are dropped from the channel but still logged.
func NewRunner(log *zap.Logger, buffer int) *Runner {
	if buffer < 0 {
		buffer = 0
	}
	return &Runner{
		log:      log,
		failures: make(chan Failure, buffer),
	}
}

// Do runs fn and reports whether it succeeded. fields are attached to the log
// entry so the call can be retried by hand.
func (r *Runner) Do(ctx context.Context, collaborator, op string, fn func(ctx context.Context) error, fields ...zap.Field) bool {
	err := fn(ctx)
	if err == nil {
		telemetry.CollaboratorCallsTotal.WithLabelValues(collaborator, op, "ok").Inc()
		return true
	}

	telemetry.CollaboratorCallsTotal.WithLabelValues(collaborator, op, "error").Inc()
	telemetry.SoftFailuresTotal.WithLabelValues(collaborator, op).Inc()

	logFields := append([]zap.Field{
		zap.String("collaborator", collaborator),
		zap.String("op", op),
		zap.Error(err),
	}, fields...)
	r.log.Warn("Best-effort collaborator call failed", logFields...)

	select {
	case r.failures <- Failure{Collaborator: collaborator, Op: op, Err: err, At: time.Now(), Fields: fields}:
	default:
	}
	return false
}

// Failures exposes swallowed failures for operational follow-up.
func (r *Runner) Failures() <-chan Failure {
	return r.failures
}

// Drain logs failures from the channel until ctx is done.
func (r *Runner) Drain(ctx context.Context, handle func(Failure)) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-r.failures:
			handle(f)
		}
	}
}
