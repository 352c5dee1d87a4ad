package engine

import (
	"testing"

	"quadplan/domain"
)

func addRecurring(t *testing.T, e *Engine, due string, r domain.Recurrence) domain.Task {
	t.Helper()
	task, err := e.AddTask(AddTaskParams{
		BoardID:    "b1",
		Quadrant:   domain.QuadrantQ2,
		Title:      "water plants",
		Tags:       "home,chores",
		DueDate:    due,
		ReminderAt: 1700000000000,
		Recurrence: r,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	return *task
}

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		name string
		due  string
		r    domain.Recurrence
		want string
	}{
		{name: "daily rolls into next month", due: "2024-01-31", r: domain.RecurrenceDaily, want: "2024-02-01"},
		{name: "daily plain", due: "2024-03-10", r: domain.RecurrenceDaily, want: "2024-03-11"},
		{name: "weekly", due: "2024-02-26", r: domain.RecurrenceWeekly, want: "2024-03-04"},
		{name: "monthly clamps to leap february", due: "2024-01-31", r: domain.RecurrenceMonthly, want: "2024-02-29"},
		{name: "monthly clamps to plain february", due: "2025-01-31", r: domain.RecurrenceMonthly, want: "2025-02-28"},
		{name: "monthly clamps 31 to 30", due: "2024-03-31", r: domain.RecurrenceMonthly, want: "2024-04-30"},
		{name: "monthly across year boundary", due: "2024-12-31", r: domain.RecurrenceMonthly, want: "2025-01-31"},
		{name: "monthly keeps mid-month day", due: "2024-04-15", r: domain.RecurrenceMonthly, want: "2024-05-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nextDueDate(tt.due, tt.r)
			if !ok {
				t.Fatalf("nextDueDate(%s, %s) failed", tt.due, tt.r)
			}
			if got != tt.want {
				t.Fatalf("nextDueDate(%s, %s) = %s, want %s", tt.due, tt.r, got, tt.want)
			}
		})
	}

	if _, ok := nextDueDate("not-a-date", domain.RecurrenceDaily); ok {
		t.Fatalf("expected malformed date to fail")
	}
	if _, ok := nextDueDate("2024-01-31", domain.RecurrenceNone); ok {
		t.Fatalf("expected none recurrence to yield nothing")
	}
}

func TestCompleteSpawnsNextInstance(t *testing.T) {
	e := newTestEngine(boardSnapshot())
	mustAdd(t, e, "b1", domain.QuadrantQ2, "sibling")
	task := addRecurring(t, e, "2024-01-31", domain.RecurrenceDaily)

	done, spawned := e.Complete(task.ID)
	if done == nil || spawned == nil {
		t.Fatalf("expected completion and spawn, got %v / %v", done, spawned)
	}
	if spawned.ID == task.ID {
		t.Fatalf("spawned task must get a fresh id")
	}
	if spawned.DueDate != "2024-02-01" {
		t.Fatalf("expected next due 2024-02-01, got %s", spawned.DueDate)
	}
	if spawned.Done || spawned.CompletedAt != 0 {
		t.Fatalf("spawned task must start active: %#v", spawned)
	}
	if spawned.Title != task.Title || spawned.Recurrence != task.Recurrence || spawned.ReminderAt != task.ReminderAt {
		t.Fatalf("spawned task must clone title, recurrence and reminder: %#v", spawned)
	}
	if len(spawned.Tags) != 2 || spawned.Tags[0] != "home" || spawned.Tags[1] != "chores" {
		t.Fatalf("spawned task must clone tags, got %v", spawned.Tags)
	}
	if spawned.BoardID != task.BoardID || spawned.Quadrant != task.Quadrant {
		t.Fatalf("spawned task must land on the same board and quadrant")
	}

	// Appended at the end of the quadrant: sibling kept order 0.
	assertSequence(t, e, domain.QuadrantQ2, "sibling", "water plants")
	assertDenseOrders(t, e, domain.QuadrantQ2)
}

func TestCompleteMonthlyRecurring(t *testing.T) {
	e := newTestEngine(boardSnapshot())
	task := addRecurring(t, e, "2024-01-31", domain.RecurrenceMonthly)

	_, spawned := e.Complete(task.ID)
	if spawned == nil || spawned.DueDate != "2024-02-29" {
		t.Fatalf("expected leap-year clamp to 2024-02-29, got %#v", spawned)
	}
}

func TestCompleteDoesNotSpawnWithoutDueDate(t *testing.T) {
	e := newTestEngine(boardSnapshot())
	task, err := e.AddTask(AddTaskParams{
		BoardID:    "b1",
		Quadrant:   domain.QuadrantQ1,
		Title:      "no due date",
		Recurrence: domain.RecurrenceWeekly,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	done, spawned := e.Complete(task.ID)
	if done == nil {
		t.Fatalf("expected completion to succeed")
	}
	if spawned != nil {
		t.Fatalf("expected no spawn without a due date, got %#v", spawned)
	}
}

func TestCompleteSucceedsWhenNextDateFails(t *testing.T) {
	e := newTestEngine(boardSnapshot())
	task := addRecurring(t, e, "2024-02-10", domain.RecurrenceDaily)

	// Corrupt the due date after creation; the completion must still land.
	e.mu.Lock()
	e.task(task.ID).DueDate = "garbage"
	e.mu.Unlock()

	done, spawned := e.Complete(task.ID)
	if done == nil || !done.Done {
		t.Fatalf("expected completion despite bad due date, got %#v", done)
	}
	if spawned != nil {
		t.Fatalf("expected spawn to be skipped, got %#v", spawned)
	}
}
