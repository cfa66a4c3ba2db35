// Package poller detects generation completion by watching the output
// storage location. The service's own long-running-operation status
// endpoint returns not-found errors for the operation names it issues, so
// the appearance of the artifact in the bucket is the only reliable
// completion signal.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mpallares/veoctl/internal/storage"
)

// State represents where the poller is in its lifecycle.
type State string

const (
	// StatePolling indicates the poller is still waiting for the artifact.
	StatePolling State = "POLLING"
	// StateFound indicates a matching artifact appeared.
	StateFound State = "FOUND"
	// StateTimedOut indicates the attempt budget ran out with no match.
	StateTimedOut State = "TIMED_OUT"
)

// IsTerminal returns true if the state is a terminal state.
func (s State) IsTerminal() bool {
	return s == StateFound || s == StateTimedOut
}

// Defaults for the polling loop: one listing every 15 seconds, capped at
// 240 attempts (a 60-minute ceiling).
const (
	DefaultInterval    = 15 * time.Second
	DefaultMaxAttempts = 240
	DefaultExtension   = ".mp4"
)

// Lister is the single storage capability the poller needs. Substituting a
// scripted implementation makes the loop unit-testable.
type Lister interface {
	List(ctx context.Context, loc storage.Location, ext string) ([]storage.Object, error)
}

// Outcome is the result of one polling run.
type Outcome struct {
	// State is StateFound or StateTimedOut.
	State State
	// Artifact is the first matching object in listing order. Only set
	// when State is StateFound.
	Artifact storage.Object
	// Attempts is the number of listing calls performed.
	Attempts int
	// Elapsed is the wall-clock time from start to resolution.
	Elapsed time.Duration
}

// Poller watches a storage location for the generation artifact.
type Poller struct {
	store       Lister
	interval    time.Duration
	maxAttempts int
	ext         string
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	logger      *slog.Logger
}

// Option is a function that configures a Poller.
type Option func(*Poller)

// WithInterval sets the fixed interval between listing attempts.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithExtension sets the artifact extension filter.
func WithExtension(ext string) Option {
	return func(p *Poller) {
		if ext != "" {
			p.ext = ext
		}
	}
}

// WithSleep replaces the inter-attempt sleep. Tests inject a no-op.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		p.sleep = fn
	}
}

// WithClock replaces the wall clock. Tests inject a fake.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

// WithLogger sets the logger for per-attempt progress lines.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// New creates a Poller watching through the given store.
func New(store Lister, opts ...Option) *Poller {
	p := &Poller{
		store:       store,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		ext:         DefaultExtension,
		sleep:       sleepContext,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls the location until a matching artifact appears or the attempt
// budget is exhausted. State transitions: Polling→Found on a match,
// Polling→Polling after a sleep while attempts remain, Polling→TimedOut
// when the budget runs out. A listing error or context cancellation aborts
// the run with the error.
func (p *Poller) Wait(ctx context.Context, loc storage.Location) (Outcome, error) {
	start := p.now()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		objects, err := p.store.List(ctx, loc, p.ext)
		if err != nil {
			return Outcome{State: StatePolling, Attempts: attempt, Elapsed: p.now().Sub(start)},
				fmt.Errorf("poller: list %s: %w", loc, err)
		}

		if len(objects) > 0 {
			outcome := Outcome{
				State:    StateFound,
				Artifact: objects[0],
				Attempts: attempt,
				Elapsed:  p.now().Sub(start),
			}
			p.logger.Info("artifact found",
				slog.String("location", outcome.Artifact.Location.String()),
				slog.Int("attempt", attempt),
				slog.String("elapsed", FormatElapsed(outcome.Elapsed)),
			)
			return outcome, nil
		}

		if attempt == p.maxAttempts {
			break
		}

		p.logger.Debug("no artifact yet",
			slog.String("location", loc.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.maxAttempts),
		)

		if err := p.sleep(ctx, p.interval); err != nil {
			return Outcome{State: StatePolling, Attempts: attempt, Elapsed: p.now().Sub(start)},
				fmt.Errorf("poller: %w", err)
		}
	}

	return Outcome{
		State:    StateTimedOut,
		Attempts: p.maxAttempts,
		Elapsed:  p.now().Sub(start),
	}, nil
}

// FormatElapsed renders a duration as a minutes/seconds breakdown with
// seconds rounded up.
func FormatElapsed(d time.Duration) string {
	total := int(math.Ceil(d.Seconds()))
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%dm %02ds", total/60, total%60)
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
