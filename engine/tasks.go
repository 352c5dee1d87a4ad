package engine

import (
	"strings"
	"time"

	"quadplan/domain"
)

// AddTaskParams carries the fields of an add-task command. Tags is the raw
// comma-separated string as typed by the user.
type AddTaskParams struct {
	BoardID    string
	Quadrant   domain.Quadrant
	Title      string
	Notes      string
	Tags       string
	DueDate    string
	ReminderAt int64
	Recurrence domain.Recurrence
}

// AddTask appends a new active task at the end of the target quadrant.
// Validation failures leave the store unchanged; an unknown board id is a
// no-op returning (nil, nil).
func (e *Engine) AddTask(p AddTaskParams) (*domain.Task, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, domain.Validationf("title", "title required")
	}
	if !p.Quadrant.Valid() {
		return nil, domain.Validationf("quadrant", "unknown quadrant")
	}
	if !p.Recurrence.Valid() {
		return nil, domain.Validationf("recurrence", "unknown recurrence")
	}
	if p.DueDate != "" {
		if _, err := time.Parse(domain.DateLayout, p.DueDate); err != nil {
			return nil, domain.Validationf("dueDate", "invalid date")
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.board(p.BoardID) == nil {
		return nil, nil
	}

	recurrence := p.Recurrence
	if recurrence == "" {
		recurrence = domain.RecurrenceNone
	}
	task := &domain.Task{
		ID:         e.newID(),
		BoardID:    p.BoardID,
		Quadrant:   p.Quadrant,
		Title:      title,
		Notes:      p.Notes,
		Order:      len(e.activePartition(p.BoardID, p.Quadrant)),
		CreatedAt:  e.nowMillis(),
		DueDate:    p.DueDate,
		ReminderAt: p.ReminderAt,
		Tags:       domain.ParseTags(p.Tags),
		Recurrence: recurrence,
	}
	e.tasks = append(e.tasks, task)
	out := *task
	return &out, nil
}

// EditTaskParams updates only the fields that are set. Identity, board,
// order and completion state are never editable.
type EditTaskParams struct {
	Title      *string
	Notes      *string
	Tags       *string
	DueDate    *string
	ReminderAt *int64
	Recurrence *domain.Recurrence
}

// EditTask mutates a task in place. Unknown ids are a no-op returning
// (nil, nil).
func (e *Engine) EditTask(id string, p EditTaskParams) (*domain.Task, error) {
	var title string
	if p.Title != nil {
		title = strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, domain.Validationf("title", "title required")
		}
	}
	if p.DueDate != nil && *p.DueDate != "" {
		if _, err := time.Parse(domain.DateLayout, *p.DueDate); err != nil {
			return nil, domain.Validationf("dueDate", "invalid date")
		}
	}
	if p.Recurrence != nil && !p.Recurrence.Valid() {
		return nil, domain.Validationf("recurrence", "unknown recurrence")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	task := e.task(id)
	if task == nil {
		return nil, nil
	}

	if p.Title != nil {
		task.Title = title
	}
	if p.Notes != nil {
		task.Notes = *p.Notes
	}
	if p.Tags != nil {
		task.Tags = domain.ParseTags(*p.Tags)
	}
	if p.DueDate != nil {
		task.DueDate = *p.DueDate
	}
	if p.ReminderAt != nil {
		task.ReminderAt = *p.ReminderAt
	}
	if p.Recurrence != nil {
		if *p.Recurrence == "" {
			task.Recurrence = domain.RecurrenceNone
		} else {
			task.Recurrence = *p.Recurrence
		}
	}
	out := *task
	return &out, nil
}

// DeleteTask permanently removes a task from either the active or archived
// partition. Unknown ids are a no-op.
func (e *Engine) DeleteTask(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, t := range e.tasks {
		if t.ID != id {
			continue
		}
		boardID, quadrant, active := t.BoardID, t.Quadrant, !t.Done
		e.tasks = append(e.tasks[:i], e.tasks[i+1:]...)
		if active {
			e.renumberPartition(boardID, quadrant)
		}
		return true
	}
	return false
}

// Complete transitions an active task to the archive and, for recurring
// tasks with a due date, spawns the next instance at the end of the same
// quadrant. A failed next-date computation never blocks the completion
// itself. Returns the completed task and the spawned one, if any.
func (e *Engine) Complete(id string) (*domain.Task, *domain.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task := e.task(id)
	if task == nil || task.Done {
		return nil, nil
	}
	task.Done = true
	task.CompletedAt = e.nowMillis()
	e.renumberPartition(task.BoardID, task.Quadrant)

	spawned := e.spawnNext(task)
	done := *task
	return &done, spawned
}

// Restore moves a completed task back to the active partition, appended at
// the end of its original quadrant with a fresh order.
func (e *Engine) Restore(id string) *domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	task := e.task(id)
	if task == nil || !task.Done {
		return nil
	}
	task.Order = e.nextOrder(task.BoardID, task.Quadrant)
	task.Done = false
	task.CompletedAt = 0
	out := *task
	return &out
}
