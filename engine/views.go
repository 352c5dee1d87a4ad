package engine

import (
	"sort"
	"strings"

	"quadplan/domain"
)

// ArchiveMarker replaces the quadrant name for completed tasks in search
// results.
const ArchiveMarker = "Archive"

// SearchResult pairs a matching task with its resolved board and quadrant
// names.
type SearchResult struct {
	Task     domain.Task `json:"task"`
	Board    string      `json:"board"`
	Quadrant string      `json:"quadrant"`
}

// Search performs a case-insensitive substring match against titles and tags
// of every task on every board, active and archived alike. Results come back
// in underlying storage order; there is no relevance ranking. The view is
// recomputed from scratch on every call.
func (e *Engine) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	names := make(map[string]string, len(e.boards))
	for _, b := range e.boards {
		names[b.ID] = b.Name
	}

	var results []SearchResult
	for _, t := range e.tasks {
		if !matches(t, q) {
			continue
		}
		quadrant := t.Quadrant.Label()
		if t.Done {
			quadrant = ArchiveMarker
		}
		task := *t
		if len(t.Tags) > 0 {
			task.Tags = append([]string(nil), t.Tags...)
		}
		results = append(results, SearchResult{
			Task:     task,
			Board:    names[t.BoardID],
			Quadrant: quadrant,
		})
	}
	return results
}

func matches(t *domain.Task, q string) bool {
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// DistinctTags returns the lexicographically sorted set of tags present on
// one board, restricted to either active or archived tasks.
func (e *Engine) DistinctTags(boardID string, archived bool) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := make(map[string]struct{})
	for _, t := range e.tasks {
		if t.BoardID != boardID || t.Done != archived {
			continue
		}
		for _, tag := range t.Tags {
			set[tag] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// ArchiveSort selects the archive view's sort key.
type ArchiveSort string

const (
	ArchiveSortCompletedAt ArchiveSort = "completedAt"
	ArchiveSortQuadrant    ArchiveSort = "quadrant"
	ArchiveSortTitle       ArchiveSort = "title"
)

// Archive projects the completed tasks of one board, optionally filtered to
// an exact tag, sorted by the requested key. completedAt sorts newest first;
// quadrant and title sort ascending. Ties keep the stable original order.
func (e *Engine) Archive(boardID string, key ArchiveSort, tag string) []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Task
	for _, t := range e.tasks {
		if !t.Done || t.BoardID != boardID {
			continue
		}
		if tag != "" && !t.HasTag(tag) {
			continue
		}
		task := *t
		if len(t.Tags) > 0 {
			task.Tags = append([]string(nil), t.Tags...)
		}
		out = append(out, task)
	}

	switch key {
	case ArchiveSortQuadrant:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Quadrant < out[j].Quadrant })
	case ArchiveSortTitle:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt > out[j].CompletedAt })
	}
	return out
}
