package repository

import (
	"context"

	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/models"
	"github.com/suzukibelltree/SampleToDoApp/internal/store"
)

// TasksRepository is what view models read and write tasks through.
type TasksRepository interface {
	InsertTask(ctx context.Context, task models.Task) (int64, error)
	DeleteTask(ctx context.Context, task models.Task) error
	UpdateTask(ctx context.Context, task models.Task) error
	GetAllTasks() flow.Flow[[]models.Task]
	GetUnfinishedTasks() flow.Flow[[]models.Task]
	GetFinishedTasks() flow.Flow[[]models.Task]
	LoadTaskByID(id int64) flow.Flow[models.Task]
}

// TaskRepository serves TasksRepository from a TaskStore. It keeps no state
// of its own; filtered flows are recomputed from the full table on every change.
type TaskRepository struct {
	store *store.TaskStore
}

func NewTaskRepository(s *store.TaskStore) *TaskRepository {
	return &TaskRepository{store: s}
}

var _ TasksRepository = (*TaskRepository)(nil)

func (r *TaskRepository) InsertTask(ctx context.Context, task models.Task) (int64, error) {
	return r.store.Insert(ctx, task)
}

func (r *TaskRepository) DeleteTask(ctx context.Context, task models.Task) error {
	return r.store.Delete(ctx, task)
}

func (r *TaskRepository) UpdateTask(ctx context.Context, task models.Task) error {
	return r.store.Update(ctx, task)
}

func (r *TaskRepository) GetAllTasks() flow.Flow[[]models.Task] {
	return r.store.QueryAll()
}

// GetUnfinishedTasks emits the tasks whose IsDone is false.
func (r *TaskRepository) GetUnfinishedTasks() flow.Flow[[]models.Task] {
	return flow.Map(r.store.QueryAll(), func(tasks []models.Task) []models.Task {
		return FilterDone(tasks, false)
	})
}

// GetFinishedTasks emits the tasks whose IsDone is true.
func (r *TaskRepository) GetFinishedTasks() flow.Flow[[]models.Task] {
	return flow.Map(r.store.QueryAll(), func(tasks []models.Task) []models.Task {
		return FilterDone(tasks, true)
	})
}

func (r *TaskRepository) LoadTaskByID(id int64) flow.Flow[models.Task] {
	return r.store.QueryByID(id)
}

// FilterDone returns the tasks whose IsDone equals done, keeping their order.
func FilterDone(tasks []models.Task, done bool) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsDone == done {
			out = append(out, t)
		}
	}
	return out
}
