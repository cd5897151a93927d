package viewmodel

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
	"github.com/suzukibelltree/SampleToDoApp/internal/models"
	"github.com/suzukibelltree/SampleToDoApp/internal/repository"
)

// HomeState is one of HomeLoading or HomeSuccess.
type HomeState interface {
	isHomeState()
}

// HomeLoading is shown until both task lists have been read once.
type HomeLoading struct{}

// HomeSuccess carries the task lists filtered by SelectedPriority.
// IsEmpty reports that no tasks exist at all, regardless of the filter.
type HomeSuccess struct {
	FinishedTasks    []models.Task
	UnfinishedTasks  []models.Task
	SelectedPriority models.TaskPriority
	IsEmpty          bool
}

func (HomeLoading) isHomeState() {}
func (HomeSuccess) isHomeState() {}

// Home backs the task list screen.
type Home struct {
	repo             repository.TasksRepository
	scope            *flow.Scope
	selectedPriority *flow.StateFlow[models.TaskPriority]
	state            flow.StateView[HomeState]
}

func NewHome(ctx context.Context, repo repository.TasksRepository, log logrus.FieldLogger) *Home {
	h := &Home{
		repo:             repo,
		scope:            flow.NewScope(ctx, logging.Component(log, "home")),
		selectedPriority: flow.NewStateFlow(models.PriorityNone),
	}

	combined := flow.Combine3(
		repo.GetFinishedTasks(),
		repo.GetUnfinishedTasks(),
		flow.Flow[models.TaskPriority](h.selectedPriority),
		buildHomeState,
	)
	h.state = flow.StateIn[HomeState](h.scope, "home state", combined, HomeLoading{}, nil)
	return h
}

func buildHomeState(finished, unfinished []models.Task, priority models.TaskPriority) HomeState {
	return HomeSuccess{
		FinishedTasks:    FilterByPriority(finished, priority),
		UnfinishedTasks:  FilterByPriority(unfinished, priority),
		SelectedPriority: priority,
		IsEmpty:          len(finished) == 0 && len(unfinished) == 0,
	}
}

// FilterByPriority keeps the tasks at priority; PriorityNone keeps everything.
func FilterByPriority(tasks []models.Task, priority models.TaskPriority) []models.Task {
	if priority == models.PriorityNone {
		return tasks
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Importance == priority.Level() {
			out = append(out, t)
		}
	}
	return out
}

func (h *Home) UIState() flow.StateView[HomeState] {
	return h.state
}

func (h *Home) SelectedPriority() flow.StateView[models.TaskPriority] {
	return h.selectedPriority
}

func (h *Home) DeleteTask(task models.Task) {
	h.scope.Launch("delete task", func(ctx context.Context) error {
		return h.repo.DeleteTask(ctx, task)
	})
}

// SwitchTask flips the task between done and not done.
func (h *Home) SwitchTask(task models.Task) {
	h.scope.Launch("switch task", func(ctx context.Context) error {
		return h.repo.UpdateTask(ctx, task.Toggled())
	})
}

// FilterTasks selects the priority to show; PriorityNone clears the filter.
func (h *Home) FilterTasks(priority models.TaskPriority) {
	h.selectedPriority.Set(priority)
}

func (h *Home) Close() {
	h.scope.Close()
}
