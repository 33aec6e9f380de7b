// Package sweeperworker periodically evicts idle appointment sessions and expired
// in-memory notifications.
package sweeperworker

import (
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

type sessionEvictor interface {
	EvictIdle(ttl time.Duration) []string
}

type notificationSweeper interface {
	Sweep(now time.Time) int
	Forget(sessionID string)
}

// Result counts what one pass removed.
type Result struct {
	Sessions      int
	Notifications int
}

// Sweeper runs the cleanup on a gocron schedule.
type Sweeper struct {
	sessions sessionEvictor
	feed     notificationSweeper
	idleTTL  time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *logging.Logger

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

func New(sessions sessionEvictor, logger *logging.Logger) *Sweeper {
	if sessions == nil {
		panic("sweeper: session registry required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		sessions: sessions,
		idleTTL:  30 * time.Minute,
		interval: time.Minute,
		now:      time.Now,
		logger:   logger,
	}
}

// WithFeed also sweeps an in-memory notification feed.
func (s *Sweeper) WithFeed(feed notificationSweeper) *Sweeper {
	s.feed = feed
	return s
}

func (s *Sweeper) WithIdleTTL(d time.Duration) *Sweeper {
	if d > 0 {
		s.idleTTL = d
	}
	return s
}

func (s *Sweeper) WithInterval(d time.Duration) *Sweeper {
	if d > 0 {
		s.interval = d
	}
	return s
}

// RunOnce performs a single pass.
func (s *Sweeper) RunOnce() Result {
	evicted := s.sessions.EvictIdle(s.idleTTL)
	res := Result{Sessions: len(evicted)}
	if s.feed != nil {
		for _, id := range evicted {
			s.feed.Forget(id)
		}
		res.Notifications = s.feed.Sweep(s.now())
	}
	if res.Sessions > 0 || res.Notifications > 0 {
		s.logger.Info("sweeper: pass complete", "sessions_evicted", res.Sessions, "notifications_expired", res.Notifications)
	}
	return res
}

// Start schedules RunOnce every interval in the background.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return errors.New("sweeper: already started")
	}
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(s.interval).Do(func() { s.RunOnce() }); err != nil {
		return err
	}
	scheduler.StartAsync()
	s.scheduler = scheduler
	s.logger.Info("sweeper: started", "interval", s.interval.String(), "idle_ttl", s.idleTTL.String())
	return nil
}

// Stop halts the schedule. It is safe to call when not started.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return
	}
	s.scheduler.Stop()
	s.scheduler = nil
}
