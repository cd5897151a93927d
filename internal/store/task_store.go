// Package store persists tasks and publishes every change of the tasks table
// to the flows returned by QueryAll and QueryByID.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/suzukibelltree/SampleToDoApp/internal/cache"
	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
	"github.com/suzukibelltree/SampleToDoApp/internal/models"
)

// TaskStore is the durable home of Task records.
//
// Writes are full-record replacements; the store does not enforce the
// IsDone/Progress convention. Collection queries are ordered by id ascending.
type TaskStore struct {
	db *gorm.DB

	// changes is bumped after every committed write; query flows re-run on it.
	changes *flow.StateFlow[uint64]

	cacheMu sync.Mutex // orders lookup-cache fills against invalidation
	lookups cache.TaskCache

	retries uint
	log     *logrus.Entry
}

// Option configures a TaskStore.
type Option func(*TaskStore)

// WithCache serves point lookups from c.
func WithCache(c cache.TaskCache) Option {
	return func(s *TaskStore) { s.lookups = c }
}

// WithWriteRetries sets how many attempts a write gets when the database is busy.
func WithWriteRetries(n int) Option {
	return func(s *TaskStore) {
		if n > 0 {
			s.retries = uint(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *TaskStore) { s.log = logging.Component(log, "store") }
}

// New returns a store over a migrated database.
func New(db *gorm.DB, opts ...Option) *TaskStore {
	s := &TaskStore{
		db:      db,
		changes: flow.NewStateFlow[uint64](0),
		lookups: cache.New(cache.Options{}),
		retries: 1,
		log:     logging.Component(nil, "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert persists a new task and returns the id assigned to it.
func (s *TaskStore) Insert(ctx context.Context, task models.Task) (int64, error) {
	err := s.write(ctx, "insert", func(tx *gorm.DB) error {
		return tx.Create(&task).Error
	})
	if err != nil {
		return 0, err
	}
	return task.ID, nil
}

// Update replaces the row matching task.ID. It returns ErrTaskNotFound when
// no such row exists.
func (s *TaskStore) Update(ctx context.Context, task models.Task) error {
	var found bool
	err := s.write(ctx, "update", func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]any{
			"title":      task.Title,
			"deadline":   task.Deadline,
			"importance": task.Importance,
			"progress":   task.Progress,
			"is_done":    task.IsDone,
			"color":      task.Color,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			found = true
			return nil
		}
		// MySQL reports changed rows, not matched ones, so an unchanged
		// record looks the same as a missing one here.
		var n int64
		if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Count(&n).Error; err != nil {
			return err
		}
		found = n > 0
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes the row matching task.ID. Deleting a missing row is a no-op.
func (s *TaskStore) Delete(ctx context.Context, task models.Task) error {
	return s.write(ctx, "delete", func(tx *gorm.DB) error {
		return tx.Delete(&models.Task{}, task.ID).Error
	})
}

// QueryAll emits the full table, ordered by id, now and after every change.
func (s *TaskStore) QueryAll() flow.Flow[[]models.Task] {
	return flow.FlowFunc[[]models.Task](func(ctx context.Context, emit func([]models.Task) error) error {
		return s.changes.Collect(ctx, func(uint64) error {
			tasks, err := s.list(ctx)
			if err != nil {
				return err
			}
			return emit(tasks)
		})
	})
}

// QueryByID emits the matching task now and after every change. The flow
// fails with ErrTaskNotFound as soon as no row matches.
func (s *TaskStore) QueryByID(id int64) flow.Flow[models.Task] {
	return flow.FlowFunc[models.Task](func(ctx context.Context, emit func(models.Task) error) error {
		return s.changes.Collect(ctx, func(uint64) error {
			task, err := s.find(ctx, id)
			if err != nil {
				return err
			}
			return emit(task)
		})
	})
}

func (s *TaskStore) list(ctx context.Context) ([]models.Task, error) {
	tasks := []models.Task{}
	if err := s.db.WithContext(ctx).Order("id").Find(&tasks).Error; err != nil {
		return nil, &StorageError{Op: "query all", Err: errors.WithStack(err)}
	}
	return tasks, nil
}

func (s *TaskStore) find(ctx context.Context, id int64) (models.Task, error) {
	if task, ok := s.lookups.Get(id); ok {
		return task, nil
	}

	before := s.changes.Value()
	var task models.Task
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Task{}, errors.Wrapf(ErrTaskNotFound, "id %d", id)
	}
	if err != nil {
		return models.Task{}, &StorageError{Op: "query by id", Err: errors.WithStack(err)}
	}

	s.cacheMu.Lock()
	if s.changes.Value() == before {
		s.lookups.Put(task)
	}
	s.cacheMu.Unlock()
	return task, nil
}

func (s *TaskStore) write(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	err := retry.Do(
		func() error { return fn(s.db.WithContext(ctx)) },
		retry.Context(ctx),
		retry.Attempts(s.retries),
		retry.Delay(20*time.Millisecond),
		retry.RetryIf(isBusy),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.log.WithError(err).WithField("op", op).Warn("write failed")
		return &StorageError{Op: op, Err: errors.WithStack(err)}
	}

	s.cacheMu.Lock()
	s.lookups.Invalidate()
	s.changes.Update(func(v uint64) uint64 { return v + 1 })
	s.cacheMu.Unlock()
	return nil
}
