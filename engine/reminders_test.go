package engine

import (
	"testing"
	"time"

	"quadplan/domain"
)

func TestPollRemindersWindow(t *testing.T) {
	e := newTestEngine(boardSnapshot())
	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	add := func(title string, at time.Time) domain.Task {
		task, err := e.AddTask(AddTaskParams{
			BoardID:    "b1",
			Quadrant:   domain.QuadrantQ1,
			Title:      title,
			ReminderAt: at.UnixMilli(),
		})
		if err != nil {
			t.Fatalf("add %s: %v", title, err)
		}
		return *task
	}

	inWindow := add("in window", base.Add(30*time.Second))
	add("after window", base.Add(5*time.Minute))
	add("before anchor", base.Add(-time.Minute))
	noReminder := mustAdd(t, e, "b1", domain.QuadrantQ1, "no reminder")
	doneTask := add("completed", base.Add(40*time.Second))
	e.Complete(doneTask.ID)

	// First scan only anchors the window.
	if due := e.PollReminders(base); due != nil {
		t.Fatalf("expected first scan to report nothing, got %v", due)
	}

	due := e.PollReminders(base.Add(time.Minute))
	if len(due) != 1 || due[0].ID != inWindow.ID {
		t.Fatalf("expected only the in-window reminder, got %#v", due)
	}

	// A second scan over the same window reports nothing again.
	if due := e.PollReminders(base.Add(2 * time.Minute)); due != nil {
		t.Fatalf("expected drained window, got %v", due)
	}
	_ = noReminder
}

func TestDueBetween(t *testing.T) {
	from := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	until := from.Add(time.Minute)

	tasks := []domain.Task{
		{ID: "edge", ReminderAt: until.UnixMilli()},
		{ID: "at-from", ReminderAt: from.UnixMilli()},
		{ID: "done", ReminderAt: from.Add(time.Second).UnixMilli(), Done: true},
		{ID: "none"},
	}

	due := DueBetween(tasks, from, until)
	if len(due) != 1 || due[0].ID != "edge" {
		t.Fatalf("expected half-open window (from, until], got %#v", due)
	}
}
