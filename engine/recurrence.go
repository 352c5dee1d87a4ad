package engine

import (
	"time"

	"quadplan/domain"
)

// spawnNext derives the follow-up instance of a just-completed recurring
// task. It returns nil when the task does not recur, has no due date, or the
// next date cannot be computed; the completion transition has already
// happened and is never rolled back here.
func (e *Engine) spawnNext(task *domain.Task) *domain.Task {
	if task.Recurrence == "" || task.Recurrence == domain.RecurrenceNone || task.DueDate == "" {
		return nil
	}
	next, ok := nextDueDate(task.DueDate, task.Recurrence)
	if !ok {
		return nil
	}

	spawned := &domain.Task{
		ID:         e.newID(),
		BoardID:    task.BoardID,
		Quadrant:   task.Quadrant,
		Title:      task.Title,
		Notes:      task.Notes,
		Order:      e.nextOrder(task.BoardID, task.Quadrant),
		CreatedAt:  e.nowMillis(),
		DueDate:    next,
		ReminderAt: task.ReminderAt,
		Tags:       append([]string(nil), task.Tags...),
		Recurrence: task.Recurrence,
	}
	if len(spawned.Tags) == 0 {
		spawned.Tags = nil
	}
	e.tasks = append(e.tasks, spawned)
	out := *spawned
	return &out
}

// nextDueDate advances a due date by one recurrence period. Monthly keeps
// the day of month, clamped to the last valid day of the target month.
func nextDueDate(due string, r domain.Recurrence) (string, bool) {
	d, err := time.Parse(domain.DateLayout, due)
	if err != nil {
		return "", false
	}
	switch r {
	case domain.RecurrenceDaily:
		d = d.AddDate(0, 0, 1)
	case domain.RecurrenceWeekly:
		d = d.AddDate(0, 0, 7)
	case domain.RecurrenceMonthly:
		d = addMonthClamped(d)
	default:
		return "", false
	}
	return d.Format(domain.DateLayout), true
}

func addMonthClamped(d time.Time) time.Time {
	year, month, day := d.Date()
	if last := daysIn(year, month+1); day > last {
		day = last
	}
	return time.Date(year, month+1, day, 0, 0, 0, 0, time.UTC)
}

// daysIn relies on time.Date normalizing day zero of the following month to
// the last day of the requested one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
