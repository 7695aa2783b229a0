package board

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "famboard/internal/log"
)

const (
	minuteTick     = "* * * * *"
	refreshTimeout = 2 * time.Minute
)

// Scheduler runs the periodic calendar refresh and the minute tick that
// moves the now indicator.
type Scheduler struct {
	board *Board
	cron  *cron.Cron
	ctx   context.Context
}

// NewScheduler registers the jobs; nothing runs until Start. ctx bounds every
// refresh the scheduler triggers.
func NewScheduler(ctx context.Context, b *Board) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(b.loc))
	s := &Scheduler{board: b, cron: c, ctx: ctx}

	if _, err := c.AddFunc(b.cfg.RefreshCron, s.refresh); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", b.cfg.RefreshCron, err)
	}
	if _, err := c.AddFunc(minuteTick, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) refresh() {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, refreshTimeout)
	defer cancel()
	if err := s.board.Refresh(ctx); err != nil {
		appLog.Warn("scheduled refresh finished with errors", "err", err)
	}
}

func (s *Scheduler) tick() {
	snap := s.board.Rebuild()
	appLog.Debug("minute tick", "generated_at", snap.GeneratedAt)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	appLog.Info("scheduler started", "refresh", s.board.cfg.RefreshCron)
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
