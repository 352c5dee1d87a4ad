package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"quadplan/domain"
	"quadplan/engine"
)

// ReminderNotifier receives tasks whose reminder fired. Implementations fan
// the notification out (queue, pub/sub); delivery is best effort.
type ReminderNotifier interface {
	NotifyReminders(ctx context.Context, scope string, tasks []domain.Task) error
}

// ReminderPoller periodically scans every loaded engine for reminders that
// came due since the previous scan and hands them to the notifier.
type ReminderPoller struct {
	sessions *Sessions
	notifier ReminderNotifier
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
}

func NewReminderPoller(sessions *Sessions, notifier ReminderNotifier, interval time.Duration, logger *log.Logger) *ReminderPoller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderPoller{
		sessions: sessions,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run blocks until the context is cancelled.
func (p *ReminderPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scanOnce(ctx)
		}
	}
}

func (p *ReminderPoller) scanOnce(ctx context.Context) {
	now := p.now()
	p.sessions.Each(func(scope string, eng *engine.Engine) {
		due := eng.PollReminders(now)
		if len(due) == 0 || p.notifier == nil {
			return
		}
		if err := p.notifier.NotifyReminders(ctx, scope, due); err != nil && p.logger != nil {
			p.logger.WithError(err).WithField("scope", scope).Warn("reminder notification failed")
		}
	})
}
