package viewmodel

import (
	"context"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
	"github.com/suzukibelltree/SampleToDoApp/internal/models"
	"github.com/suzukibelltree/SampleToDoApp/internal/repository"
)

// DailyState is one of DailyLoading, DailySuccess or DailyError.
type DailyState interface {
	isDailyState()
}

type DailyLoading struct{}

// DailySuccess holds the unfinished tasks grouped by deadline, groups in
// ascending deadline order. IsEmpty is true exactly when Groups is empty.
type DailySuccess struct {
	Groups  []DeadlineGroup
	IsEmpty bool
}

// DailyError is published when the unfinished-tasks stream fails.
type DailyError struct {
	Message string
}

func (DailyLoading) isDailyState() {}
func (DailySuccess) isDailyState() {}
func (DailyError) isDailyState()   {}

// DeadlineGroup is every task sharing one deadline string, in store order.
type DeadlineGroup struct {
	Deadline string
	Tasks    []models.Task
}

// Daily backs the screen listing unfinished tasks by deadline.
type Daily struct {
	repo  repository.TasksRepository
	scope *flow.Scope
	state flow.StateView[DailyState]
}

func NewDaily(ctx context.Context, repo repository.TasksRepository, log logrus.FieldLogger) *Daily {
	d := &Daily{
		repo:  repo,
		scope: flow.NewScope(ctx, logging.Component(log, "daily")),
	}

	grouped := flow.Map(repo.GetUnfinishedTasks(), func(tasks []models.Task) DailyState {
		groups := GroupByDeadline(tasks)
		return DailySuccess{Groups: groups, IsEmpty: len(groups) == 0}
	})
	d.state = flow.StateIn[DailyState](d.scope, "daily state", grouped, DailyLoading{}, func(err error) (DailyState, bool) {
		return DailyError{Message: err.Error()}, true
	})
	return d
}

// GroupByDeadline buckets tasks by their deadline string. Groups are sorted by
// plain string comparison, which is chronological for the yyyy/MM/dd layout.
func GroupByDeadline(tasks []models.Task) []DeadlineGroup {
	buckets := make(map[string][]models.Task)
	for _, t := range tasks {
		buckets[t.Deadline] = append(buckets[t.Deadline], t)
	}

	groups := make([]DeadlineGroup, 0, len(buckets))
	for _, deadline := range slices.Sorted(maps.Keys(buckets)) {
		groups = append(groups, DeadlineGroup{Deadline: deadline, Tasks: buckets[deadline]})
	}
	return groups
}

func (d *Daily) UIState() flow.StateView[DailyState] {
	return d.state
}

func (d *Daily) DeleteTask(task models.Task) {
	d.scope.Launch("delete task", func(ctx context.Context) error {
		return d.repo.DeleteTask(ctx, task)
	})
}

func (d *Daily) SwitchTask(task models.Task) {
	d.scope.Launch("switch task", func(ctx context.Context) error {
		return d.repo.UpdateTask(ctx, task.Toggled())
	})
}

func (d *Daily) Close() {
	d.scope.Close()
}
