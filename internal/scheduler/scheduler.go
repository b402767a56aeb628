package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/i474232898/weathera/internal/weather"
	"github.com/rs/zerolog/log"
)

// Fetcher stores a fresh reading for one location.
type Fetcher interface {
	FetchAndStore(ctx context.Context, loc weather.Location) error
}

// Sweeper evicts expired rate-limit windows.
type Sweeper interface {
	Sweep() int
	Len() int
}

// Scheduler runs the periodic background jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      int
}

// New creates a new Scheduler.
func New() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{scheduler: s}
}

// Every schedules fn every interval, starting immediately.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		log.Warn().Str("job", name).Msg("scheduler: non-positive interval; job not scheduled")
		return nil
	}
	if _, err := s.scheduler.Every(interval).Tag(name).Do(fn); err != nil {
		return err
	}
	s.jobs++
	log.Info().Str("job", name).Dur("interval", interval).Msg("scheduler: job scheduled")
	return nil
}

// PollWeather schedules a fetch of every location each interval. onResult,
// if set, is called once per location fetch.
func (s *Scheduler) PollWeather(locations []weather.Location, interval time.Duration, fetcher Fetcher, onResult func(error)) error {
	if len(locations) == 0 {
		log.Info().Msg("scheduler: no locations configured; weather polling disabled")
		return nil
	}
	return s.Every("weather-poll", interval, func() {
		FetchAll(context.Background(), locations, fetcher, onResult)
	})
}

// SweepLimiter schedules limiter sweeps each interval. onSweep, if set,
// receives the number of windows left.
func (s *Scheduler) SweepLimiter(limiter Sweeper, interval time.Duration, onSweep func(remaining int)) error {
	return s.Every("rate-limit-sweep", interval, func() {
		removed := limiter.Sweep()
		remaining := limiter.Len()
		log.Debug().Int("removed", removed).Int("remaining", remaining).Msg("scheduler: rate limit windows swept")
		if onSweep != nil {
			onSweep(remaining)
		}
	})
}

// FetchAll fetches every location concurrently and waits for all of them.
func FetchAll(ctx context.Context, locations []weather.Location, fetcher Fetcher, onResult func(error)) {
	log.Debug().Int("locations", len(locations)).Msg("scheduler: running weather fetch job")

	var wg sync.WaitGroup
	for _, loc := range locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			err := fetcher.FetchAndStore(ctx, loc)
			if err != nil {
				log.Warn().Err(err).Str("location", loc.Key()).Msg("scheduler: fetch failed")
			}
			if onResult != nil {
				onResult(err)
			}
		}()
	}
	wg.Wait()
	log.Debug().Msg("scheduler: completed weather fetch job")
}

// Start starts the underlying scheduler.
func (s *Scheduler) Start() {
	if s.jobs == 0 {
		log.Info().Msg("scheduler: nothing to schedule")
		return
	}
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
