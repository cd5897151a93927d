package models

import (
	"time"
)

// DefaultColor is the neutral gray given to tasks that never picked a color.
const DefaultColor uint32 = 0xFFD3D3D3

// DeadlineLayout is the YYYY/MM/DD form deadlines are stored in.
const DeadlineLayout = "2006/01/02"

// Task represents a to-do item in the local store.
// An ID of 0 means the task has not been persisted yet.
type Task struct {
	ID         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Title      string `json:"title" gorm:"not null"`
	Deadline   string `json:"deadline" gorm:"not null"`
	Importance int    `json:"importance" gorm:"not null"`
	Progress   int    `json:"progress" gorm:"not null"`
	IsDone     bool   `json:"isDone" gorm:"column:is_done;not null"`
	Color      uint32 `json:"color" gorm:"not null"`
}

// TableName specifies the table name for Task Model
func (Task) TableName() string {
	return "tasks"
}

// NewTask returns an unsaved task with the default progress, state and color.
func NewTask(title, deadline string, priority TaskPriority) Task {
	return Task{
		Title:      title,
		Deadline:   deadline,
		Importance: priority.Level(),
		Color:      DefaultColor,
	}
}

// Priority resolves the stored importance level.
func (t Task) Priority() (TaskPriority, error) {
	return PriorityFromLevel(t.Importance)
}

// Toggled flips IsDone and moves Progress to 100 or 0 to match.
func (t Task) Toggled() Task {
	t.IsDone = !t.IsDone
	if t.IsDone {
		t.Progress = 100
	} else {
		t.Progress = 0
	}
	return t
}

// FormatDeadline renders a calendar date in the stored deadline form.
func FormatDeadline(d time.Time) string {
	return d.Format(DeadlineLayout)
}

// ParseDeadline parses a stored deadline. The empty string means "unset" and
// yields the zero time with ok=false.
func ParseDeadline(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(DeadlineLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
