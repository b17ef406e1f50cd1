package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/stacklok/npm-sync/internal/otel"
	"github.com/stacklok/npm-sync/internal/telemetry"
)

// TracerName is the name of the tracer used for job spans
const TracerName = "github.com/stacklok/npm-sync/queue"

const (
	defaultPollInterval = time.Second
	defaultVisibility   = time.Minute
	defaultBackoff      = time.Second
	defaultMaxBackoff   = 5 * time.Minute
	// settleTimeout bounds the store update after a handler returns
	settleTimeout = 10 * time.Second
)

// Handler processes one job. Returning an error wrapped with
// backoff.Permanent fails the job without further retries.
type Handler func(ctx context.Context, job *Job) error

// RetryHinter is implemented by errors that carry an upstream retry delay,
// such as an HTTP 429 with Retry-After
type RetryHinter interface {
	RetryAfter() time.Duration
}

// ConsumerConfig configures a Consumer
type ConsumerConfig struct {
	Queue       string
	Concurrency int
	// RateMax jobs may start per RatePeriod across all workers; 0 disables the limit
	RateMax      int
	RatePeriod   time.Duration
	Backoff      time.Duration
	MaxBackoff   time.Duration
	Jitter       float64
	Visibility   time.Duration
	PollInterval time.Duration
	KeepDone     int
	KeepFailed   int
}

// Consumer runs a bounded pool of workers that claim jobs from one queue
type Consumer struct {
	store   Store
	handler Handler
	cfg     ConsumerConfig
	limiter *rate.Limiter
	clock   clock.Clock
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// ConsumerOption configures a Consumer
type ConsumerOption func(*Consumer)

// WithClock replaces the wall clock, used by tests
func WithClock(clk clock.Clock) ConsumerOption {
	return func(c *Consumer) {
		c.clock = clk
	}
}

// WithMetrics records job outcomes
func WithMetrics(m *telemetry.Metrics) ConsumerOption {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// WithTracer records a span per handled job
func WithTracer(t trace.Tracer) ConsumerOption {
	return func(c *Consumer) {
		c.tracer = t
	}
}

// NewConsumer creates a consumer for cfg.Queue
func NewConsumer(store Store, handler Handler, cfg ConsumerConfig, opts ...ConsumerOption) *Consumer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = defaultVisibility
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateMax > 0 && cfg.RatePeriod > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RatePeriod/time.Duration(cfg.RateMax)), cfg.RateMax)
	}

	c := &Consumer{
		store:   store,
		handler: handler,
		cfg:     cfg,
		limiter: limiter,
		clock:   clock.WallClock,
		logger:  slog.With("component", "queue-consumer", "queue", cfg.Queue),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Queue returns the name of the consumed queue
func (c *Consumer) Queue() string {
	return c.cfg.Queue
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight job has been settled
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("Starting queue consumer", "concurrency", c.cfg.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.work(ctx)
		}()
	}
	wg.Wait()

	c.logger.Info("Queue consumer stopped")
}

func (c *Consumer) work(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := c.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			c.logger.Error("Failed to process job", "error", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
		case <-c.clock.After(c.cfg.PollInterval):
		}
	}
}

// ProcessNext claims and settles at most one job. It reports whether a job
// was claimed.
func (c *Consumer) ProcessNext(ctx context.Context) (bool, error) {
	job, err := c.store.Claim(ctx, c.cfg.Queue, c.cfg.Visibility)
	if err != nil || job == nil {
		return false, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		// shutting down before the job started; hand it back untouched
		c.record(ctx, telemetry.OutcomeReleased)
		return true, c.store.Release(context.WithoutCancel(ctx), job)
	}

	// an in-flight job runs to completion even if shutdown starts, bounded
	// by its visibility window
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Visibility)
	defer cancel()

	runCtx, span := otel.StartSpan(runCtx, c.tracer, "queue.Process", trace.WithAttributes(
		otel.AttrQueueName.String(c.cfg.Queue),
		otel.AttrJobAttempt.Int(job.Attempts),
	))
	defer span.End()

	logger := c.logger.With("job_id", job.ID, "key", job.Key, "attempt", job.Attempts)
	handlerErr := c.handler(runCtx, job)
	otel.RecordError(span, handlerErr)

	// the handler may have used up the visibility window
	settleCtx, cancelSettle := context.WithTimeout(context.WithoutCancel(runCtx), settleTimeout)
	defer cancelSettle()
	return true, c.settle(settleCtx, logger, job, handlerErr)
}

func (c *Consumer) settle(ctx context.Context, logger *slog.Logger, job *Job, handlerErr error) error {
	if handlerErr == nil {
		c.record(ctx, telemetry.OutcomeCompleted)
		if err := c.store.Complete(ctx, job); err != nil {
			return err
		}
		c.trim(ctx, StateCompleted, c.cfg.KeepDone)
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(handlerErr, &permanent) || job.Attempts >= job.MaxAttempts {
		logger.Error("Job failed", "error", handlerErr, "permanent", permanent != nil)
		c.record(ctx, telemetry.OutcomeFailed)
		if err := c.store.Fail(ctx, job, handlerErr.Error()); err != nil {
			return err
		}
		c.trim(ctx, StateFailed, c.cfg.KeepFailed)
		return nil
	}

	delay := c.RetryDelay(job.Attempts, handlerErr)
	logger.Warn("Job failed, retrying", "error", handlerErr, "delay", delay)
	c.record(ctx, telemetry.OutcomeRetried)
	return c.store.Retry(ctx, job, c.clock.Now().Add(delay), handlerErr.Error())
}

// RetryDelay returns the wait before the next attempt after the given number
// of attempts. A retry hint carried by err takes precedence.
func (c *Consumer) RetryDelay(attempts int, err error) time.Duration {
	var hinter RetryHinter
	if errors.As(err, &hinter) {
		if d := hinter.RetryAfter(); d > 0 {
			return d
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.Backoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = c.cfg.Jitter
	delay := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func (c *Consumer) trim(ctx context.Context, state State, keep int) {
	if keep <= 0 {
		return
	}
	if _, err := c.store.Trim(ctx, c.cfg.Queue, state, keep); err != nil {
		c.logger.Warn("Failed to trim job history", "state", state, "error", err)
	}
}

func (c *Consumer) record(ctx context.Context, outcome string) {
	c.metrics.RecordJob(ctx, c.cfg.Queue, outcome)
}
