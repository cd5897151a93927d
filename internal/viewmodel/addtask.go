package viewmodel

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
	"github.com/suzukibelltree/SampleToDoApp/internal/models"
	"github.com/suzukibelltree/SampleToDoApp/internal/repository"
)

// AddTaskState is one of AddTaskInput, AddTaskSaving or AddTaskSuccess.
type AddTaskState interface {
	isAddTaskState()
}

// AddTaskInput is the form being filled in.
type AddTaskInput struct {
	Title      string
	Deadline   string
	Importance models.TaskPriority
	Color      uint32
}

type AddTaskSaving struct{}

type AddTaskSuccess struct{}

func (AddTaskInput) isAddTaskState()   {}
func (AddTaskSaving) isAddTaskState()  {}
func (AddTaskSuccess) isAddTaskState() {}

// NewAddTaskInput returns the blank form.
func NewAddTaskInput() AddTaskInput {
	return AddTaskInput{
		Importance: models.PriorityMedium,
		Color:      models.DefaultColor,
	}
}

// Task builds the unsaved task the form describes.
func (in AddTaskInput) Task() models.Task {
	task := models.NewTask(in.Title, in.Deadline, in.Importance)
	task.Color = in.Color
	return task
}

// AddTask backs the new task form.
type AddTask struct {
	repo  repository.TasksRepository
	scope *flow.Scope
	state *flow.StateFlow[AddTaskState]
}

func NewAddTask(ctx context.Context, repo repository.TasksRepository, log logrus.FieldLogger) *AddTask {
	return &AddTask{
		repo:  repo,
		scope: flow.NewScope(ctx, logging.Component(log, "addtask")),
		state: flow.NewStateFlow[AddTaskState](NewAddTaskInput()),
	}
}

func (a *AddTask) UIState() flow.StateView[AddTaskState] {
	return a.state
}

// editInput applies fn when the form is in the Input state and reports
// whether it did.
func (a *AddTask) editInput(fn func(AddTaskInput) AddTaskInput) bool {
	return a.state.UpdateIf(func(s AddTaskState) (AddTaskState, bool) {
		in, ok := s.(AddTaskInput)
		if !ok {
			return s, false
		}
		return fn(in), true
	})
}

func (a *AddTask) UpdateTitle(title string) {
	a.editInput(func(in AddTaskInput) AddTaskInput {
		in.Title = title
		return in
	})
}

func (a *AddTask) UpdateDeadline(deadline string) {
	a.editInput(func(in AddTaskInput) AddTaskInput {
		in.Deadline = deadline
		return in
	})
}

// UpdateImportance sets the priority by level. An unknown level is rejected
// with models.ErrUnknownPriority and leaves the form unchanged.
func (a *AddTask) UpdateImportance(level int) error {
	priority, err := models.PriorityFromLevel(level)
	if err != nil {
		return err
	}
	a.editInput(func(in AddTaskInput) AddTaskInput {
		in.Importance = priority
		return in
	})
	return nil
}

func (a *AddTask) UpdateColor(color uint32) {
	a.editInput(func(in AddTaskInput) AddTaskInput {
		in.Color = color
		return in
	})
}

// InputTask returns the task described by the form, or false when the form
// is no longer in the Input state.
func (a *AddTask) InputTask() (models.Task, bool) {
	in, ok := a.state.Value().(AddTaskInput)
	if !ok {
		return models.Task{}, false
	}
	return in.Task(), true
}

// SaveTask moves to Saving before returning and inserts task in the
// background. Success ends in AddTaskSuccess; a failed insert resets the form
// to a blank AddTaskInput. Repeated calls each insert. It reports false, with
// the state left as it was, once the view model is closed.
func (a *AddTask) SaveTask(task models.Task) bool {
	var prev AddTaskState
	a.state.Update(func(s AddTaskState) AddTaskState {
		prev = s
		return AddTaskSaving{}
	})
	return a.launchInsert(task, prev)
}

// SaveInput saves the task the form describes. Reading the form and leaving
// Input happen in one step, so of several concurrent calls exactly one
// inserts. It reports false when the form was not in Input or the view model
// is closed.
func (a *AddTask) SaveInput() bool {
	var (
		task models.Task
		prev AddTaskState
	)
	moved := a.state.UpdateIf(func(s AddTaskState) (AddTaskState, bool) {
		in, ok := s.(AddTaskInput)
		if !ok {
			return s, false
		}
		task, prev = in.Task(), in
		return AddTaskSaving{}, true
	})
	if !moved {
		return false
	}
	return a.launchInsert(task, prev)
}

func (a *AddTask) launchInsert(task models.Task, prev AddTaskState) bool {
	started := a.scope.Launch("save task", func(ctx context.Context) error {
		if _, err := a.repo.InsertTask(ctx, task); err != nil {
			a.state.Set(NewAddTaskInput())
			return err
		}
		a.state.Set(AddTaskSuccess{})
		return nil
	})
	if !started {
		a.state.UpdateIf(func(s AddTaskState) (AddTaskState, bool) {
			if _, saving := s.(AddTaskSaving); !saving {
				return s, false
			}
			return prev, true
		})
	}
	return started
}

func (a *AddTask) Close() {
	a.scope.Close()
}
