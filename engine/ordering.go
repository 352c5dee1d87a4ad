package engine

import (
	"sort"

	"quadplan/domain"
)

// Directions accepted by Shift.
const (
	ShiftUp   = "up"
	ShiftDown = "down"
)

// Move places an active task at targetIndex of the target quadrant's display
// sequence. A negative index, or one at or past the end, appends. Both
// affected partitions are renumbered densely in one pass, so order values
// never collide. Unknown or archived tasks are a no-op returning false.
func (e *Engine) Move(id string, target domain.Quadrant, targetIndex int) (bool, error) {
	if !target.Valid() {
		return false, domain.Validationf("quadrant", "unknown quadrant")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	task := e.task(id)
	if task == nil || task.Done {
		return false, nil
	}
	source := task.Quadrant

	others := e.activePartition(task.BoardID, target)
	if source == target {
		others = withoutTask(others, id)
	}
	idx := targetIndex
	if idx < 0 || idx > len(others) {
		idx = len(others)
	}

	task.Quadrant = target
	for i, t := range others[:idx] {
		t.Order = i
	}
	task.Order = idx
	for i, t := range others[idx:] {
		t.Order = idx + 1 + i
	}

	if source != target {
		e.renumberPartition(task.BoardID, source)
	}
	return true, nil
}

// Shift swaps an active task with its neighbor in display order. Only the
// two order values are exchanged; the rest of the partition is untouched.
// Returns false at the boundary or for unknown/archived tasks.
func (e *Engine) Shift(id string, direction string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	task := e.task(id)
	if task == nil || task.Done {
		return false
	}

	partition := e.activePartition(task.BoardID, task.Quadrant)
	pos := -1
	for i, t := range partition {
		if t.ID == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}

	var neighbor *domain.Task
	switch direction {
	case ShiftUp:
		if pos == 0 {
			return false
		}
		neighbor = partition[pos-1]
	case ShiftDown:
		if pos == len(partition)-1 {
			return false
		}
		neighbor = partition[pos+1]
	default:
		return false
	}

	task.Order, neighbor.Order = neighbor.Order, task.Order
	return true
}

// activePartition returns the active tasks of one (board, quadrant)
// partition in display order: order ascending, insertion position breaking
// ties via the stable sort.
func (e *Engine) activePartition(boardID string, q domain.Quadrant) []*domain.Task {
	var partition []*domain.Task
	for _, t := range e.tasks {
		if !t.Done && t.BoardID == boardID && t.Quadrant == q {
			partition = append(partition, t)
		}
	}
	sort.SliceStable(partition, func(i, j int) bool {
		return partition[i].Order < partition[j].Order
	})
	return partition
}

// renumberPartition reassigns dense orders 0..n-1 preserving the current
// display sequence.
func (e *Engine) renumberPartition(boardID string, q domain.Quadrant) {
	for i, t := range e.activePartition(boardID, q) {
		t.Order = i
	}
}

// nextOrder is the append rule: one past the highest active order, or 0 for
// an empty partition.
func (e *Engine) nextOrder(boardID string, q domain.Quadrant) int {
	next := 0
	for _, t := range e.tasks {
		if !t.Done && t.BoardID == boardID && t.Quadrant == q && t.Order >= next {
			next = t.Order + 1
		}
	}
	return next
}

func withoutTask(tasks []*domain.Task, id string) []*domain.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
