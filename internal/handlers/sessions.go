package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
	"github.com/suzukibelltree/SampleToDoApp/internal/realtime"
	"github.com/suzukibelltree/SampleToDoApp/internal/repository"
	"github.com/suzukibelltree/SampleToDoApp/internal/viewmodel"
)

const (
	KindAdd  = "add"
	KindEdit = "edit"
)

// Session is one open add or edit form. Exactly one of Add and Edit is set.
type Session struct {
	ID   string
	Kind string
	Add  *viewmodel.AddTask
	Edit *viewmodel.EditTask

	scope *flow.Scope
}

// State encodes the form's current state.
func (s *Session) State() StateResponse {
	if s.Add != nil {
		return EncodeAddTaskState(s.Add.UIState().Value())
	}
	return EncodeEditTaskState(s.Edit.UIState().Value())
}

func (s *Session) close() {
	s.scope.Close()
	if s.Add != nil {
		s.Add.Close()
	}
	if s.Edit != nil {
		s.Edit.Close()
	}
}

// Sessions owns the open form sessions. Each session publishes its state on
// the websocket topic named by its id. A session lives until it is removed,
// it outlives ttl, or size newer sessions push it out.
type Sessions struct {
	ctx   context.Context
	repo  repository.TasksRepository
	hub   *realtime.Hub
	log   logrus.FieldLogger
	items *expirable.LRU[string, *Session]
}

func NewSessions(ctx context.Context, repo repository.TasksRepository, hub *realtime.Hub, size int, ttl time.Duration, log logrus.FieldLogger) *Sessions {
	s := &Sessions{
		ctx:  ctx,
		repo: repo,
		hub:  hub,
		log:  logging.Component(log, "sessions"),
	}
	s.items = expirable.NewLRU[string, *Session](size, func(id string, sess *Session) {
		sess.close()
		hub.Drop(id)
	}, ttl)
	return s
}

func (s *Sessions) NewAddTask() *Session {
	sess := &Session{ID: uuid.NewString(), Kind: KindAdd}
	sess.scope = flow.NewScope(s.ctx, s.log)
	sess.Add = viewmodel.NewAddTask(s.ctx, s.repo, s.log)
	sess.scope.Launch("publish", func(ctx context.Context) error {
		return realtime.Publish[viewmodel.AddTaskState](ctx, s.hub, sess.ID, sess.Add.UIState(), withTopic(sess.ID, EncodeAddTaskState))
	})
	s.items.Add(sess.ID, sess)
	return sess
}

func (s *Sessions) NewEditTask(taskID int64) *Session {
	sess := &Session{ID: uuid.NewString(), Kind: KindEdit}
	sess.scope = flow.NewScope(s.ctx, s.log)
	sess.Edit = viewmodel.NewEditTask(s.ctx, s.repo, taskID, s.log)
	sess.scope.Launch("publish", func(ctx context.Context) error {
		return realtime.Publish[viewmodel.EditTaskState](ctx, s.hub, sess.ID, sess.Edit.UIState(), withTopic(sess.ID, EncodeEditTaskState))
	})
	s.items.Add(sess.ID, sess)
	return sess
}

func (s *Sessions) Get(id string) (*Session, bool) {
	return s.items.Get(id)
}

// Remove closes the session and reports whether it existed.
func (s *Sessions) Remove(id string) bool {
	return s.items.Remove(id)
}

func (s *Sessions) Len() int {
	return s.items.Len()
}

// Close closes every open session.
func (s *Sessions) Close() {
	s.items.Purge()
}
