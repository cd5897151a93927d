package viewmodel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/suzukibelltree/SampleToDoApp/internal/database"
	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/models"
	"github.com/suzukibelltree/SampleToDoApp/internal/repository"
	"github.com/suzukibelltree/SampleToDoApp/internal/store"
	"github.com/suzukibelltree/SampleToDoApp/internal/testutil"
)

type MockTasksRepository struct {
	mock.Mock
}

var _ repository.TasksRepository = (*MockTasksRepository)(nil)

func (m *MockTasksRepository) InsertTask(ctx context.Context, task models.Task) (int64, error) {
	args := m.Called(ctx, task)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTasksRepository) DeleteTask(ctx context.Context, task models.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockTasksRepository) UpdateTask(ctx context.Context, task models.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockTasksRepository) GetAllTasks() flow.Flow[[]models.Task] {
	return m.Called().Get(0).(flow.Flow[[]models.Task])
}

func (m *MockTasksRepository) GetUnfinishedTasks() flow.Flow[[]models.Task] {
	return m.Called().Get(0).(flow.Flow[[]models.Task])
}

func (m *MockTasksRepository) GetFinishedTasks() flow.Flow[[]models.Task] {
	return m.Called().Get(0).(flow.Flow[[]models.Task])
}

func (m *MockTasksRepository) LoadTaskByID(id int64) flow.Flow[models.Task] {
	return m.Called(id).Get(0).(flow.Flow[models.Task])
}

// chanFlow emits whatever is sent on ch until ch is closed.
func chanFlow[T any](ch <-chan T) flow.Flow[T] {
	return flow.FlowFunc[T](func(ctx context.Context, emit func(T) error) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				if err := emit(v); err != nil {
					return err
				}
			}
		}
	})
}

func newRepository(t *testing.T) *repository.TaskRepository {
	t.Helper()
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return repository.NewTaskRepository(store.New(db))
}
