package domain

import "strings"

// DateLayout is the wire format for due dates.
const DateLayout = "2006-01-02"

// Quadrant identifies one of the four fixed priority categories of a board.
type Quadrant string

const (
	QuadrantQ1 Quadrant = "q1"
	QuadrantQ2 Quadrant = "q2"
	QuadrantQ3 Quadrant = "q3"
	QuadrantQ4 Quadrant = "q4"
)

// Quadrants lists the fixed quadrants in display order.
var Quadrants = [4]Quadrant{QuadrantQ1, QuadrantQ2, QuadrantQ3, QuadrantQ4}

var quadrantLabels = map[Quadrant]string{
	QuadrantQ1: "Do",
	QuadrantQ2: "Plan",
	QuadrantQ3: "Delegate",
	QuadrantQ4: "Drop",
}

// Valid reports whether q is one of the four fixed quadrants.
func (q Quadrant) Valid() bool {
	_, ok := quadrantLabels[q]
	return ok
}

// Label returns the display name of the quadrant.
func (q Quadrant) Label() string {
	return quadrantLabels[q]
}

// Recurrence is the policy that spawns a follow-up task on completion.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Valid reports whether r is a known recurrence policy. The empty string is
// accepted and treated as none.
func (r Recurrence) Valid() bool {
	switch r {
	case "", RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Task represents a single board item.
type Task struct {
	ID          string     `json:"id"`
	BoardID     string     `json:"boardId"`
	Quadrant    Quadrant   `json:"quadrant"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Order       int        `json:"order"`
	Done        bool       `json:"done,omitempty"`
	CreatedAt   int64      `json:"createdAt"`
	CompletedAt int64      `json:"completedAt,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	ReminderAt  int64      `json:"reminderAt,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Recurrence  Recurrence `json:"recurrence,omitempty"`
}

// HasTag reports whether the task carries the given tag.
func (t Task) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// ParseTags splits a free-form comma-separated tag string into a trimmed,
// de-duplicated list preserving first-occurrence order.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	tags := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
