package models

import (
	"errors"
	"fmt"
)

// ErrUnknownPriority is returned when a level maps to no TaskPriority.
var ErrUnknownPriority = errors.New("unknown task priority")

// TaskPriority represents the importance of a task
type TaskPriority int

const (
	// PriorityNone is not a stored level; it means "no priority selected".
	PriorityNone   TaskPriority = 0
	PriorityHigh   TaskPriority = 1
	PriorityMedium TaskPriority = 2
	PriorityLow    TaskPriority = 3
)

// Priorities lists every valid priority in level order.
var Priorities = []TaskPriority{PriorityHigh, PriorityMedium, PriorityLow}

// PriorityFromLevel returns the priority whose level matches, or ErrUnknownPriority.
func PriorityFromLevel(level int) (TaskPriority, error) {
	for _, p := range Priorities {
		if p.Level() == level {
			return p, nil
		}
	}
	return PriorityNone, fmt.Errorf("%w: level %d", ErrUnknownPriority, level)
}

func (p TaskPriority) Level() int {
	return int(p)
}

// Label returns the display label.
func (p TaskPriority) Label() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return ""
	}
}

func (p TaskPriority) String() string {
	if l := p.Label(); l != "" {
		return l
	}
	return fmt.Sprintf("TaskPriority(%d)", int(p))
}
