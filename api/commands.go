package api

import (
	"errors"

	"github.com/bytedance/sonic"

	"quadplan/domain"
	"quadplan/engine"
)

// Per-command outcome statuses. Validation failures and unknown ids are
// reported per command so one bad entry never fails the rest of the batch.
const (
	statusApplied = "applied"
	statusNoop    = "noop"
	statusSkipped = "skipped"
	statusInvalid = "invalid"
)

type commandResult struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Status         string `json:"status"`
	EntityID       string `json:"entityId,omitempty"`
	Field          string `json:"field,omitempty"`
	Error          string `json:"error,omitempty"`
}

type createBoardPayload struct {
	Name     string `json:"name"`
	Activate bool   `json:"activate,omitempty"`
}

type entityIDPayload struct {
	ID string `json:"id"`
}

type addTaskPayload struct {
	BoardID    string            `json:"boardId"`
	Quadrant   domain.Quadrant   `json:"quadrant"`
	Title      string            `json:"title"`
	Notes      string            `json:"notes,omitempty"`
	Tags       string            `json:"tags,omitempty"`
	DueDate    string            `json:"dueDate,omitempty"`
	ReminderAt int64             `json:"reminderAt,omitempty"`
	Recurrence domain.Recurrence `json:"recurrence,omitempty"`
}

type editTaskPayload struct {
	ID         string             `json:"id"`
	Title      *string            `json:"title,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
	Tags       *string            `json:"tags,omitempty"`
	DueDate    *string            `json:"dueDate,omitempty"`
	ReminderAt *int64             `json:"reminderAt,omitempty"`
	Recurrence *domain.Recurrence `json:"recurrence,omitempty"`
}

type moveTaskPayload struct {
	ID       string          `json:"id"`
	Quadrant domain.Quadrant `json:"quadrant"`
	Index    *int            `json:"index,omitempty"`
}

type shiftTaskPayload struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
}

type preferencesPayload struct {
	TasksPerQuadrant *int  `json:"tasksPerQuadrant,omitempty"`
	ShowDoneTasks    *bool `json:"showDoneTasks,omitempty"`
}

// applyCommand executes one command against the scope's engine. The engine
// applies each command atomically; this only translates wire payloads.
func applyCommand(eng *engine.Engine, cmd domain.Command) commandResult {
	res := commandResult{IdempotencyKey: cmd.IdempotencyKey}

	switch cmd.Type {
	case "create-board":
		var p createBoardPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		board, err := eng.CreateBoard(p.Name, p.Activate)
		return outcome(res, board.ID, err, true)

	case "delete-board":
		var p entityIDPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		return outcome(res, p.ID, nil, eng.DeleteBoard(p.ID))

	case "set-active-board":
		var p entityIDPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		return outcome(res, p.ID, nil, eng.SetActiveBoard(p.ID))

	case "add-task":
		var p addTaskPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		task, err := eng.AddTask(engine.AddTaskParams{
			BoardID:    p.BoardID,
			Quadrant:   p.Quadrant,
			Title:      p.Title,
			Notes:      p.Notes,
			Tags:       p.Tags,
			DueDate:    p.DueDate,
			ReminderAt: p.ReminderAt,
			Recurrence: p.Recurrence,
		})
		id := ""
		if task != nil {
			id = task.ID
		}
		return outcome(res, id, err, task != nil)

	case "edit-task":
		var p editTaskPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		task, err := eng.EditTask(p.ID, engine.EditTaskParams{
			Title:      p.Title,
			Notes:      p.Notes,
			Tags:       p.Tags,
			DueDate:    p.DueDate,
			ReminderAt: p.ReminderAt,
			Recurrence: p.Recurrence,
		})
		return outcome(res, p.ID, err, task != nil)

	case "delete-task":
		var p entityIDPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		return outcome(res, p.ID, nil, eng.DeleteTask(p.ID))

	case "complete-task":
		var p entityIDPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		done, spawned := eng.Complete(p.ID)
		id := p.ID
		if spawned != nil {
			id = spawned.ID
		}
		return outcome(res, id, nil, done != nil)

	case "restore-task":
		var p entityIDPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		return outcome(res, p.ID, nil, eng.Restore(p.ID) != nil)

	case "move-task":
		var p moveTaskPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		index := -1
		if p.Index != nil {
			index = *p.Index
		}
		moved, err := eng.Move(p.ID, p.Quadrant, index)
		return outcome(res, p.ID, err, moved)

	case "shift-task":
		var p shiftTaskPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		return outcome(res, p.ID, nil, eng.Shift(p.ID, p.Direction))

	case "update-preferences":
		var p preferencesPayload
		if !decode(cmd, &p, &res) {
			return res
		}
		eng.UpdatePreferences(engine.PreferencesPatch{
			TasksPerQuadrant: p.TasksPerQuadrant,
			ShowDoneTasks:    p.ShowDoneTasks,
		})
		return outcome(res, "", nil, true)

	default:
		res.Status = statusInvalid
		res.Error = "unknown command type"
		return res
	}
}

func decode(cmd domain.Command, payload any, res *commandResult) bool {
	if err := sonic.Unmarshal(cmd.Data, payload); err != nil {
		res.Status = statusInvalid
		res.Error = "invalid payload"
		return false
	}
	return true
}

func outcome(res commandResult, entityID string, err error, applied bool) commandResult {
	if err != nil {
		res.Status = statusInvalid
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			res.Field = verr.Field
			res.Error = verr.Message
		} else {
			res.Error = err.Error()
		}
		return res
	}
	if !applied {
		res.Status = statusNoop
		return res
	}
	res.Status = statusApplied
	res.EntityID = entityID
	return res
}
