package engine

import (
	"time"

	"quadplan/domain"
)

// PollReminders returns the active tasks whose reminder fell inside the
// trailing window since the previous scan and advances the window to now.
// The first scan only anchors the window. Reminders elapsing while no scan
// runs are silently missed; there is no catch-up backlog.
func (e *Engine) PollReminders(now time.Time) []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastReminderScan.IsZero() {
		e.lastReminderScan = now
		return nil
	}
	from := e.lastReminderScan
	e.lastReminderScan = now

	var due []domain.Task
	for _, t := range e.tasks {
		if t.Done || t.ReminderAt == 0 {
			continue
		}
		if reminderInWindow(t.ReminderAt, from, now) {
			due = append(due, *t)
		}
	}
	return due
}

// DueBetween filters tasks whose reminder falls in (from, until]. It is the
// pure form of the reminder scan, usable by external delivery code.
func DueBetween(tasks []domain.Task, from, until time.Time) []domain.Task {
	var due []domain.Task
	for _, t := range tasks {
		if t.Done || t.ReminderAt == 0 {
			continue
		}
		if reminderInWindow(t.ReminderAt, from, until) {
			due = append(due, t)
		}
	}
	return due
}

func reminderInWindow(at int64, from, until time.Time) bool {
	return at > from.UnixMilli() && at <= until.UnixMilli()
}
