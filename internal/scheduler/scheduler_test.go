package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weathera/internal/weather"
	"github.com/stretchr/testify/require"
)

type recordingFetcher struct {
	mu   sync.Mutex
	seen []string
	fail string
}

func (f *recordingFetcher) FetchAndStore(_ context.Context, loc weather.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, loc.City)
	if loc.City == f.fail {
		return errors.New("upstream down")
	}
	return nil
}

func TestFetchAllVisitsEveryLocation(t *testing.T) {
	f := &recordingFetcher{fail: "Kudus"}
	var failures atomic.Int32

	FetchAll(context.Background(), []weather.Location{{City: "Jepara"}, {City: "Kudus"}, {City: "Semarang"}}, f,
		func(err error) {
			if err != nil {
				failures.Add(1)
			}
		})

	require.ElementsMatch(t, []string{"Jepara", "Kudus", "Semarang"}, f.seen)
	require.Equal(t, int32(1), failures.Load())
}

type countingSweeper struct {
	sweeps atomic.Int32
}

func (c *countingSweeper) Sweep() int { c.sweeps.Add(1); return 0 }
func (c *countingSweeper) Len() int   { return 0 }

func TestSchedulerRunsJobs(t *testing.T) {
	s := New()
	sweeper := &countingSweeper{}
	f := &recordingFetcher{}

	require.NoError(t, s.SweepLimiter(sweeper, time.Hour, nil))
	require.NoError(t, s.PollWeather([]weather.Location{{City: "Jepara"}}, time.Hour, f, nil))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return sweeper.sweeps.Load() >= 1 && len(f.seen) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollWeatherWithoutLocationsIsNoop(t *testing.T) {
	s := New()
	require.NoError(t, s.PollWeather(nil, time.Minute, &recordingFetcher{}, nil))
	require.Zero(t, s.jobs)
}
