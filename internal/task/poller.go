package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/cenkalti/backoff/v4"

	"github.com/chanjing-ai/chanjing-sdk/internal/api"
)

// Errors surfaced by the poller.
var (
	// ErrTaskFailed indicates the platform reported a terminal failure.
	// The wrapped message is the platform's own.
	ErrTaskFailed = errors.New("task failed")
	// ErrTimeout indicates the task did not reach a terminal state before
	// the deadline. The task remains queryable by id.
	ErrTimeout = errors.New("task did not finish before the deadline")
)

// Defaults applied by Config.withDefaults.
const (
	defaultInitialInterval      = 2 * time.Second
	defaultMaxInterval          = 15 * time.Second
	defaultDeadline             = 10 * time.Minute
	defaultMaxConsecutiveErrors = 5
	intervalMultiplier          = 1.5
)

// Config bounds one poll loop.
type Config struct {
	// InitialInterval is the first wait between polls; the interval grows
	// from there up to MaxInterval.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Deadline bounds the whole loop.
	Deadline time.Duration
	// MaxConsecutiveErrors is the number of failed polls tolerated in a
	// row before the last error is surfaced.
	MaxConsecutiveErrors int
}

func (c Config) withDefaults() Config {
	if c.InitialInterval <= 0 {
		c.InitialInterval = defaultInitialInterval
	}

	if c.MaxInterval <= 0 {
		c.MaxInterval = defaultMaxInterval
	}

	if c.Deadline <= 0 {
		c.Deadline = defaultDeadline
	}

	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = defaultMaxConsecutiveErrors
	}

	return c
}

// Poller drives submitted tasks to a terminal state.
type Poller struct {
	client *api.Client
	log    *logger.Logger
}

// NewPoller creates a Poller on top of client.
func NewPoller(client *api.Client, log *logger.Logger) *Poller {
	return &Poller{client: client, log: log}
}

// Poll queries t's status until it is terminal, the deadline passes, or ctx
// is cancelled. onProgress may be nil; when set it is invoked synchronously
// with non-decreasing percentages and never after a terminal result has
// been returned. On success the task's artifact is returned and the task
// reflects the terminal state.
func (p *Poller) Poll(
	ctx context.Context,
	t *Task,
	stage string,
	cfg Config,
	onProgress ProgressFunc,
) (*Artifact, error) {
	cfg = cfg.withDefaults()

	d, err := describe(t.Capability)
	if err != nil {
		return nil, err
	}

	interval := backoff.NewExponentialBackOff()
	interval.InitialInterval = cfg.InitialInterval
	interval.MaxInterval = cfg.MaxInterval
	interval.Multiplier = intervalMultiplier
	interval.RandomizationFactor = 0
	interval.MaxElapsedTime = 0 // the deadline below bounds the loop

	deadline := time.NewTimer(cfg.Deadline)
	defer deadline.Stop()

	consecutiveErrors := 0
	pollCount := 0

	for {
		waitErr := waitNextPoll(ctx, deadline, interval.NextBackOff())
		if waitErr != nil {
			if errors.Is(waitErr, errDeadlinePassed) {
				return nil, fmt.Errorf(
					"%w: %s task %s still %s after %s",
					ErrTimeout,
					t.Capability,
					t.ID,
					t.Status,
					cfg.Deadline,
				)
			}

			return nil, fmt.Errorf("polling %s task %s: %w", t.Capability, t.ID, waitErr)
		}

		pollCount++

		raw, queryErr := d.query(ctx, p.client, t.ID)
		if queryErr != nil {
			// The transport layer has already retried transient
			// failures; here we tolerate a bounded run of failed
			// polls without losing observed progress.
			if !errors.Is(queryErr, api.ErrTransport) {
				return nil, queryErr
			}

			consecutiveErrors++

			if consecutiveErrors >= cfg.MaxConsecutiveErrors {
				return nil, fmt.Errorf(
					"polling %s task %s failed %d times in a row: %w",
					t.Capability,
					t.ID,
					consecutiveErrors,
					queryErr,
				)
			}

			p.log.Warn(
				"Poll for %s task %s failed (%d/%d): %v",
				t.Capability,
				t.ID,
				consecutiveErrors,
				cfg.MaxConsecutiveErrors,
				queryErr,
			)

			continue
		}

		consecutiveErrors = 0

		snap, decodeErr := d.decodeStatus(t.ID, raw, pollCount)
		if decodeErr != nil {
			return nil, decodeErr
		}

		p.apply(t, snap, stage, onProgress)

		switch t.Status {
		case StatusSucceeded:
			return t.Result, nil
		case StatusFailed:
			return nil, failure(t.Message)
		default:
		}
	}
}

// errDeadlinePassed distinguishes the overall deadline from other wait
// outcomes inside the loop.
var errDeadlinePassed = errors.New("poll deadline passed")

// waitNextPoll sleeps for the next poll interval, aborting promptly when
// the context is cancelled or the overall deadline fires.
func waitNextPoll(ctx context.Context, deadline *time.Timer, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deadline.C:
		return errDeadlinePassed
	case <-timer.C:
		return nil
	}
}

// apply folds a snapshot into the task, clamping status and progress so the
// observed sequence never moves backward, and reports progress changes.
// A status regression from the server is a protocol anomaly: it is logged
// and ignored, never surfaced to the caller.
func (p *Poller) apply(t *Task, snap Snapshot, stage string, onProgress ProgressFunc) {
	if snap.Status.rank() < t.Status.rank() {
		p.log.Warn(
			"Status regression for %s task %s: %s -> %s (ignored)",
			t.Capability,
			t.ID,
			t.Status,
			snap.Status,
		)
	} else {
		t.Status = snap.Status
	}

	progress := snap.Progress
	if t.Status == StatusSucceeded {
		progress = 100
	}

	if progress < t.Progress {
		progress = t.Progress
	}

	if progress > 100 {
		progress = 100
	}

	changed := progress != t.Progress || (snap.Message != "" && snap.Message != t.Message)
	t.Progress = progress

	if snap.Message != "" {
		t.Message = snap.Message
	}

	if t.Status == StatusSucceeded {
		t.Result = snap.Artifact
	}

	if t.Status == StatusFailed {
		return // failures are reported through the returned error
	}

	if onProgress != nil && changed {
		onProgress(stage, t.Progress, t.Message)
	}
}

// failure wraps a terminal failure message, annotating billing problems.
func failure(message string) error {
	if message == "" {
		message = "unknown error"
	}

	if hint := api.BillingHint(message); hint != "" {
		message = hint
	}

	return fmt.Errorf("%w: %s", ErrTaskFailed, message)
}
