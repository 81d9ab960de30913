package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/felixgeelhaar/hopper/internal/eventlog"
	"github.com/felixgeelhaar/hopper/internal/retry"
	"github.com/felixgeelhaar/hopper/internal/telemetry"
)

// retryOptions reports every retry to the event log and the retry counter.
func (e *Engine) retryOptions(operation string, role eventlog.Role) retry.Option {
	cfg := e.cfg.Retry
	cfg.OnRetry = func(a retry.Attempt) {
		e.metrics.Retries.WithLabelValues(operation).Inc()
		e.events.Warnf(role, "%s call failed (attempt %d), retrying in %s: %v",
			operation, a.Number, a.Delay.Round(time.Millisecond), a.Err)
	}
	return retry.WithConfig(cfg)
}

// consult invokes one oracle through the retry wrapper inside a span.
func consult[T any](ctx context.Context, e *Engine, name string, role eventlog.Role, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := telemetry.StartOracleSpan(ctx, name)
	defer span.End()

	start := e.now()
	value, err := retry.Do(ctx, fn, e.retryOptions(name, role))
	elapsed := e.now().Sub(start)

	e.metrics.OracleCalls.WithLabelValues(name, strconv.FormatBool(err == nil)).Inc()
	e.metrics.OracleLatency.WithLabelValues(name).Observe(elapsed.Seconds())
	telemetry.RecordDuration(span, "oracle", elapsed)
	if err != nil {
		telemetry.RecordError(span, err)
		return value, err
	}
	telemetry.RecordSuccess(span)
	return value, nil
}

// fetch invokes the source provider through the retry wrapper.
func fetch[T any](ctx context.Context, e *Engine, operation string, fn func(context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, fn, e.retryOptions("source."+operation, eventlog.RoleScanner))
}
