package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpallares/veoctl/internal/storage"
)

// scriptedLister returns empty listings until the configured attempt, then
// yields its objects. It records every call.
type scriptedLister struct {
	foundOnAttempt int
	objects        []storage.Object
	err            error
	calls          int
}

func (l *scriptedLister) List(_ context.Context, _ storage.Location, _ string) ([]storage.Object, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if l.foundOnAttempt > 0 && l.calls >= l.foundOnAttempt {
		return l.objects, nil
	}
	return nil, nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func testLocation() storage.Location {
	return storage.Location{Scheme: "s3", Bucket: "bucket", Key: "out", Kind: storage.KindPrefix}
}

func artifact(key string) storage.Object {
	return storage.Object{
		Location: storage.Location{Scheme: "s3", Bucket: "bucket", Key: key, Kind: storage.KindObject},
		Size:     1024,
	}
}

func TestState_IsTerminal(t *testing.T) {
	assert.False(t, StatePolling.IsTerminal())
	assert.True(t, StateFound.IsTerminal())
	assert.True(t, StateTimedOut.IsTerminal())
}

func TestWait_FoundOnKthAttempt(t *testing.T) {
	lister := &scriptedLister{
		foundOnAttempt: 3,
		objects:        []storage.Object{artifact("out/clip.mp4")},
	}

	// Fake time only moves while the poller sleeps
	now := time.Unix(0, 0)
	p := New(lister,
		WithInterval(15*time.Second),
		WithSleep(func(_ context.Context, d time.Duration) error {
			now = now.Add(d)
			return nil
		}),
		WithClock(func() time.Time { return now }),
	)

	outcome, err := p.Wait(context.Background(), testLocation())
	require.NoError(t, err)

	assert.Equal(t, StateFound, outcome.State)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, "out/clip.mp4", outcome.Artifact.Location.Key)
	assert.Equal(t, 3, lister.calls, "no further listing calls after the match")
	// Two sleeps before the third listing
	assert.Equal(t, 30*time.Second, outcome.Elapsed)
}

func TestWait_FirstMatchInListingOrderWins(t *testing.T) {
	lister := &scriptedLister{
		foundOnAttempt: 1,
		objects: []storage.Object{
			artifact("out/a.mp4"),
			artifact("out/b.mp4"),
		},
	}

	p := New(lister, WithSleep(noSleep))
	outcome, err := p.Wait(context.Background(), testLocation())
	require.NoError(t, err)
	assert.Equal(t, "out/a.mp4", outcome.Artifact.Location.Key)
}

func TestWait_TimedOutAfterBudget(t *testing.T) {
	lister := &scriptedLister{} // never finds anything

	var sleeps int
	p := New(lister,
		WithMaxAttempts(5),
		WithSleep(func(_ context.Context, _ time.Duration) error {
			sleeps++
			return nil
		}),
	)

	outcome, err := p.Wait(context.Background(), testLocation())
	require.NoError(t, err)

	assert.Equal(t, StateTimedOut, outcome.State)
	assert.Equal(t, 5, outcome.Attempts)
	assert.Equal(t, 5, lister.calls)
	// No sleep after the final attempt
	assert.Equal(t, 4, sleeps)
}

func TestWait_ListErrorAborts(t *testing.T) {
	listErr := errors.New("boom")
	lister := &scriptedLister{err: listErr}

	p := New(lister, WithSleep(noSleep))
	_, err := p.Wait(context.Background(), testLocation())
	require.Error(t, err)
	assert.ErrorIs(t, err, listErr)
	assert.Equal(t, 1, lister.calls)
}

func TestWait_ContextCancelledDuringSleep(t *testing.T) {
	lister := &scriptedLister{}

	ctx, cancel := context.WithCancel(context.Background())
	p := New(lister,
		WithMaxAttempts(10),
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	_, err := p.Wait(ctx, testLocation())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, lister.calls)
}

func TestWait_DefaultBudget(t *testing.T) {
	lister := &scriptedLister{}

	p := New(lister, WithSleep(noSleep))
	outcome, err := p.Wait(context.Background(), testLocation())
	require.NoError(t, err)

	assert.Equal(t, StateTimedOut, outcome.State)
	assert.Equal(t, DefaultMaxAttempts, outcome.Attempts)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{"zero", 0, "0m 00s"},
		{"seconds round up", 44*time.Second + 200*time.Millisecond, "0m 45s"},
		{"exact minute", time.Minute, "1m 00s"},
		{"minutes and seconds", 3*time.Minute + 15*time.Second, "3m 15s"},
		{"an hour", time.Hour, "60m 00s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatElapsed(tt.d))
		})
	}
}
