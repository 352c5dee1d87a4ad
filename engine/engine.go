package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quadplan/domain"
)

const defaultBoardName = "My Board"

// Engine owns the boards, tasks and preferences of one user scope and applies
// every command synchronously. The mutex serializes callers so the state
// machine always observes one command at a time.
//
// Tasks are held in insertion order. Display sequence within an active
// quadrant partition is "order ascending, insertion position as tie-break",
// produced with a stable sort, so renders are deterministic even if a
// persisted snapshot carried duplicate order values.
type Engine struct {
	mu     sync.Mutex
	boards []domain.Board
	tasks  []*domain.Task
	prefs  domain.Preferences

	lastReminderScan time.Time

	now   func() time.Time
	newID func() string
}

// New builds an engine from a loaded snapshot, repairing whatever the
// snapshot got wrong: tasks referencing unknown boards are pruned, unknown
// quadrants and recurrences are defaulted, a default board is synthesized
// when none exist, the active board falls back to the first board and every
// active partition is renumbered densely.
func New(snap domain.Snapshot) *Engine {
	e := &Engine{
		now:   time.Now,
		newID: uuid.NewString,
	}

	seen := make(map[string]struct{}, len(snap.Boards))
	for _, b := range snap.Boards {
		b.Name = strings.TrimSpace(b.Name)
		if b.ID == "" || b.Name == "" {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		e.boards = append(e.boards, b)
	}
	if len(e.boards) == 0 {
		e.boards = append(e.boards, domain.Board{ID: e.newID(), Name: defaultBoardName})
	}

	for _, t := range snap.Tasks {
		t.Title = strings.TrimSpace(t.Title)
		if t.ID == "" || t.Title == "" {
			continue
		}
		if _, ok := seen[t.BoardID]; !ok {
			continue
		}
		if !t.Quadrant.Valid() {
			t.Quadrant = domain.QuadrantQ1
		}
		if !t.Recurrence.Valid() {
			t.Recurrence = domain.RecurrenceNone
		}
		task := t
		e.tasks = append(e.tasks, &task)
	}

	e.prefs = snap.Preferences
	if _, ok := seen[e.prefs.ActiveBoardID]; !ok {
		e.prefs.ActiveBoardID = e.boards[0].ID
	}
	if e.prefs.TasksPerQuadrant < 0 {
		e.prefs.TasksPerQuadrant = 0
	}

	for _, b := range e.boards {
		for _, q := range domain.Quadrants {
			e.renumberPartition(b.ID, q)
		}
	}
	return e
}

// Snapshot returns a deep copy of the current state for persistence or reads.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		Boards:      make([]domain.Board, len(e.boards)),
		Tasks:       make([]domain.Task, 0, len(e.tasks)),
		Preferences: e.prefs,
	}
	copy(snap.Boards, e.boards)
	for _, t := range e.tasks {
		task := *t
		if len(t.Tags) > 0 {
			task.Tags = append([]string(nil), t.Tags...)
		}
		snap.Tasks = append(snap.Tasks, task)
	}
	return snap
}

// CreateBoard adds a named board. The new board only becomes active when
// activate is set.
func (e *Engine) CreateBoard(name string, activate bool) (domain.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Board{}, domain.Validationf("name", "name required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	board := domain.Board{ID: e.newID(), Name: name}
	e.boards = append(e.boards, board)
	if activate {
		e.prefs.ActiveBoardID = board.ID
	}
	return board, nil
}

// DeleteBoard removes a board and every task on it. Deleting the active
// board activates the first remaining one; deleting the last board leaves a
// fresh default board so the board set is never empty. Unknown ids are a
// no-op and return false.
func (e *Engine) DeleteBoard(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, b := range e.boards {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	e.boards = append(e.boards[:idx], e.boards[idx+1:]...)

	kept := e.tasks[:0]
	for _, t := range e.tasks {
		if t.BoardID != id {
			kept = append(kept, t)
		}
	}
	e.tasks = kept

	if len(e.boards) == 0 {
		e.boards = append(e.boards, domain.Board{ID: e.newID(), Name: defaultBoardName})
	}
	if e.prefs.ActiveBoardID == id {
		e.prefs.ActiveBoardID = e.boards[0].ID
	}
	return true
}

// SetActiveBoard selects the board used by default views. Unknown ids are a
// no-op.
func (e *Engine) SetActiveBoard(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.boards {
		if b.ID == id {
			e.prefs.ActiveBoardID = id
			return true
		}
	}
	return false
}

// PreferencesPatch updates only the fields that are set.
type PreferencesPatch struct {
	TasksPerQuadrant *int
	ShowDoneTasks    *bool
}

// UpdatePreferences applies a partial preferences update.
func (e *Engine) UpdatePreferences(p PreferencesPatch) domain.Preferences {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.TasksPerQuadrant != nil && *p.TasksPerQuadrant >= 0 {
		e.prefs.TasksPerQuadrant = *p.TasksPerQuadrant
	}
	if p.ShowDoneTasks != nil {
		e.prefs.ShowDoneTasks = *p.ShowDoneTasks
	}
	return e.prefs
}

func (e *Engine) board(id string) *domain.Board {
	for i := range e.boards {
		if e.boards[i].ID == id {
			return &e.boards[i]
		}
	}
	return nil
}

func (e *Engine) task(id string) *domain.Task {
	for _, t := range e.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}
