package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todaycal/internal/feed"
	"todaycal/internal/ics"
)

const doc = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:a\r\n" +
	"SUMMARY:A\r\n" +
	"DTSTART:20261021T010000Z\r\n" +
	"DTEND:20261021T020000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type sourceFunc func(ctx context.Context) ([]byte, error)

func (f sourceFunc) Raw(ctx context.Context) ([]byte, error) { return f(ctx) }

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ObserveRefresh(result string, _ int, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func (o *recordingObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.results...)
}

var fixedNow = time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)

func newRefresher(src feed.Source, obs Observer) *Refresher {
	return New(src, Options{
		Location: time.UTC,
		Timeout:  time.Second,
		Observer: obs,
		Now:      func() time.Time { return fixedNow },
	})
}

func TestRefresh_Success(t *testing.T) {
	obs := &recordingObserver{}
	r := newRefresher(sourceFunc(func(context.Context) ([]byte, error) {
		return []byte(doc), nil
	}), obs)

	assert.True(t, r.State().Loading)

	require.NoError(t, r.Refresh(context.Background()))

	st := r.State()
	assert.False(t, st.Loading)
	assert.NoError(t, st.Err)
	require.Len(t, st.Events, 1)
	assert.Equal(t, "A", st.Events[0].Title)
	assert.Equal(t, fixedNow, st.UpdatedAt)
	assert.Equal(t, []string{"success"}, obs.snapshot())
}

func TestRefresh_FailureClearsEvents(t *testing.T) {
	var fail atomic.Bool
	r := newRefresher(sourceFunc(func(context.Context) ([]byte, error) {
		if fail.Load() {
			return nil, feed.ErrNotConfigured
		}
		return []byte(doc), nil
	}), nil)

	require.NoError(t, r.Refresh(context.Background()))
	require.Len(t, r.State().Events, 1)

	fail.Store(true)
	err := r.Refresh(context.Background())
	assert.ErrorIs(t, err, feed.ErrNotConfigured)

	st := r.State()
	assert.Nil(t, st.Events)
	assert.ErrorIs(t, st.Err, feed.ErrNotConfigured)
	assert.False(t, st.Loading)
}

func TestRefresh_ParseError(t *testing.T) {
	r := newRefresher(sourceFunc(func(context.Context) ([]byte, error) {
		return []byte("<html>oops</html>"), nil
	}), nil)

	err := r.Refresh(context.Background())

	var perr *ics.ParseError
	assert.True(t, errors.As(err, &perr))
	assert.Nil(t, r.State().Events)
}

func TestRefresh_NewerRefreshCancelsOlder(t *testing.T) {
	started := make(chan struct{})
	var calls atomic.Int32
	obs := &recordingObserver{}

	r := newRefresher(sourceFunc(func(ctx context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []byte(doc), nil
	}), obs)

	firstErr := make(chan error, 1)
	go func() { firstErr <- r.Refresh(context.Background()) }()
	<-started

	require.NoError(t, r.Refresh(context.Background()))

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("first refresh was not cancelled")
	}

	st := r.State()
	assert.NoError(t, st.Err)
	assert.Len(t, st.Events, 1)
	assert.ElementsMatch(t, []string{"success", "superseded"}, obs.snapshot())
}

func TestRefresh_Deadline(t *testing.T) {
	r := New(sourceFunc(func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), Options{Location: time.UTC, Timeout: 20 * time.Millisecond})

	err := r.Refresh(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, r.State().Err, context.DeadlineExceeded)
}

func TestStart_RunsInitialRefreshAndStops(t *testing.T) {
	var calls atomic.Int32
	r := New(sourceFunc(func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(doc), nil
	}), Options{Location: time.UTC, Schedule: "@every 1h"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	assert.Error(t, r.Start(ctx), "second Start must fail")

	require.Eventually(t, func() bool { return !r.State().Loading }, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, r.State().Events, 1)
	assert.Equal(t, int32(1), calls.Load())

	r.Stop()
	r.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	r := New(sourceFunc(func(context.Context) ([]byte, error) { return nil, nil }), Options{Schedule: "every now and then"})
	assert.Error(t, r.Start(context.Background()))
}

func TestStop_DiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	r := newRefresher(sourceFunc(func(ctx context.Context) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}), nil)

	done := make(chan error, 1)
	go func() { done <- r.Refresh(context.Background()) }()
	<-started

	r.Stop()

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.True(t, r.State().Loading)
}

func TestStop_ReleasesContextWatcher(t *testing.T) {
	src := sourceFunc(func(context.Context) ([]byte, error) { return []byte(doc), nil })
	r := New(src, Options{Location: time.UTC, Schedule: "@every 1h"})

	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	require.NoError(t, r.Start(first))
	r.Stop()

	second, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()
	require.NoError(t, r.Start(second))

	// Cancelling the first run's context must not stop the second run.
	cancelFirst()
	assert.Never(t, func() bool {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.cron == nil
	}, 200*time.Millisecond, 10*time.Millisecond)

	r.Stop()
}

func TestInterval(t *testing.T) {
	tests := []struct {
		schedule string
		want     time.Duration
	}{
		{"*/5 * * * *", 5 * time.Minute},
		{"0 * * * *", time.Hour},
		{"@every 90s", 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			got, err := Interval(tt.schedule, fixedNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Interval("every now and then", fixedNow)
	assert.Error(t, err)
}

func TestRefresher_IntervalUsesSchedule(t *testing.T) {
	r := New(sourceFunc(func(context.Context) ([]byte, error) { return nil, nil }), Options{
		Schedule: "*/15 * * * *",
		Now:      func() time.Time { return fixedNow },
	})
	assert.Equal(t, 15*time.Minute, r.Interval())
}
