package viewmodel

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
	"github.com/suzukibelltree/SampleToDoApp/internal/models"
	"github.com/suzukibelltree/SampleToDoApp/internal/repository"
)

// EditTaskState is one of EditTaskLoading, EditTaskEdit or EditTaskSuccess.
type EditTaskState interface {
	isEditTaskState()
}

type EditTaskLoading struct{}

// EditTaskEdit holds the local copy of the task being edited.
type EditTaskEdit struct {
	ID         int64
	Title      string
	Deadline   string
	Importance models.TaskPriority
	Color      uint32
	Progress   int
	IsDone     bool
}

type EditTaskSuccess struct{}

func (EditTaskLoading) isEditTaskState() {}
func (EditTaskEdit) isEditTaskState()    {}
func (EditTaskSuccess) isEditTaskState() {}

// Task is the full replacement record for the edited task.
func (e EditTaskEdit) Task() models.Task {
	return models.Task{
		ID:         e.ID,
		Title:      e.Title,
		Deadline:   e.Deadline,
		Importance: e.Importance.Level(),
		Progress:   e.Progress,
		IsDone:     e.IsDone,
		Color:      e.Color,
	}
}

// EditTask backs the edit form of an existing task.
//
// The task is read once on construction. If the read fails the view model
// stays in EditTaskLoading and the failure is logged. A failed save leaves
// the edits in place.
type EditTask struct {
	id    int64
	repo  repository.TasksRepository
	scope *flow.Scope
	state *flow.StateFlow[EditTaskState]
}

func NewEditTask(ctx context.Context, repo repository.TasksRepository, id int64, log logrus.FieldLogger) *EditTask {
	e := &EditTask{
		id:    id,
		repo:  repo,
		scope: flow.NewScope(ctx, logging.Component(log, "edittask").WithField("task_id", id)),
		state: flow.NewStateFlow[EditTaskState](EditTaskLoading{}),
	}
	e.scope.Launch("load task", e.load)
	return e
}

func (e *EditTask) load(ctx context.Context) error {
	task, err := flow.First(ctx, e.repo.LoadTaskByID(e.id))
	if err != nil {
		return err
	}
	priority, err := task.Priority()
	if err != nil {
		return err
	}
	e.state.UpdateIf(func(s EditTaskState) (EditTaskState, bool) {
		if _, ok := s.(EditTaskLoading); !ok {
			return s, false
		}
		return EditTaskEdit{
			ID:         task.ID,
			Title:      task.Title,
			Deadline:   task.Deadline,
			Importance: priority,
			Color:      task.Color,
			Progress:   task.Progress,
			IsDone:     task.IsDone,
		}, true
	})
	return nil
}

func (e *EditTask) TaskID() int64 {
	return e.id
}

func (e *EditTask) UIState() flow.StateView[EditTaskState] {
	return e.state
}

func (e *EditTask) edit(fn func(EditTaskEdit) EditTaskEdit) bool {
	return e.state.UpdateIf(func(s EditTaskState) (EditTaskState, bool) {
		cur, ok := s.(EditTaskEdit)
		if !ok {
			return s, false
		}
		return fn(cur), true
	})
}

func (e *EditTask) UpdateTitle(title string) {
	e.edit(func(cur EditTaskEdit) EditTaskEdit {
		cur.Title = title
		return cur
	})
}

func (e *EditTask) UpdateDeadline(deadline string) {
	e.edit(func(cur EditTaskEdit) EditTaskEdit {
		cur.Deadline = deadline
		return cur
	})
}

// UpdateImportance sets the priority by level; unknown levels are rejected.
func (e *EditTask) UpdateImportance(level int) error {
	priority, err := models.PriorityFromLevel(level)
	if err != nil {
		return err
	}
	e.edit(func(cur EditTaskEdit) EditTaskEdit {
		cur.Importance = priority
		return cur
	})
	return nil
}

func (e *EditTask) UpdateColor(color uint32) {
	e.edit(func(cur EditTaskEdit) EditTaskEdit {
		cur.Color = color
		return cur
	})
}

// UpdateProgress clamps p to [0,100]; the task counts as done exactly at 100.
func (e *EditTask) UpdateProgress(p int) {
	p = min(max(p, 0), 100)
	e.edit(func(cur EditTaskEdit) EditTaskEdit {
		cur.Progress = p
		cur.IsDone = p == 100
		return cur
	})
}

func (e *EditTask) ToggleIsDone() {
	e.edit(func(cur EditTaskEdit) EditTaskEdit {
		toggled := cur.Task().Toggled()
		cur.IsDone = toggled.IsDone
		cur.Progress = toggled.Progress
		return cur
	})
}

// SaveTask writes the edited task in the background and moves to
// EditTaskSuccess once the write lands. It reports false, doing nothing,
// outside EditTaskEdit or once the view model is closed.
func (e *EditTask) SaveTask() bool {
	cur, ok := e.state.Value().(EditTaskEdit)
	if !ok {
		return false
	}
	task := cur.Task()
	return e.scope.Launch("save task", func(ctx context.Context) error {
		if err := e.repo.UpdateTask(ctx, task); err != nil {
			return err
		}
		e.state.Set(EditTaskSuccess{})
		return nil
	})
}

func (e *EditTask) Close() {
	e.scope.Close()
}
