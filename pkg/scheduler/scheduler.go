// Package scheduler runs the fixed-interval heartbeat and manages OS-level
// cron entries as opaque text lines.
package scheduler

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// HeartbeatFunc is invoked on every heartbeat tick.
type HeartbeatFunc func(ctx context.Context)

// Scheduler drives the periodic heartbeat.
type Scheduler struct {
	cron        *cron.Cron
	interval    time.Duration
	onHeartbeat HeartbeatFunc
	logger      zerolog.Logger

	mu            sync.RWMutex
	lastHeartbeat time.Time
}

// New creates a scheduler firing the callback every interval.
func New(interval time.Duration, onHeartbeat HeartbeatFunc, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		interval:    interval,
		onHeartbeat: onHeartbeat,
		logger:      logger.With().Str("module", "scheduler").Logger(),
	}
}

// Start schedules the heartbeat and starts the cron runner.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %s", s.interval)
	}

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.heartbeat); err != nil {
		return fmt.Errorf("failed to schedule heartbeat: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Dur("interval", s.interval).Msg("Heartbeat scheduled")
	return nil
}

// Stop stops the cron runner and waits for a running heartbeat to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) heartbeat() {
	s.mu.Lock()
	s.lastHeartbeat = time.Now().UTC()
	s.mu.Unlock()

	if s.onHeartbeat != nil {
		s.onHeartbeat(context.Background())
	}
}

// LastHeartbeat returns the time of the most recent tick, or ok=false if
// none has fired yet.
func (s *Scheduler) LastHeartbeat() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHeartbeat, !s.lastHeartbeat.IsZero()
}

// AddCron appends one line to the user's crontab. Unix only; returns false
// on any failure.
func (s *Scheduler) AddCron(expr, cmd string) bool {
	if runtime.GOOS == "windows" {
		return false
	}

	lines := s.ListCron()
	lines = append(lines, fmt.Sprintf("%s %s", expr, cmd))

	c := exec.Command("crontab", "-")
	c.Stdin = strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := c.Run(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to install crontab")
		return false
	}
	return true
}

// ListCron returns the current crontab lines. Unix only; returns nil on
// any failure.
func (s *Scheduler) ListCron() []string {
	if runtime.GOOS == "windows" {
		return nil
	}

	out, err := exec.Command("crontab", "-l").Output()
	if err != nil {
		return nil
	}

	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
