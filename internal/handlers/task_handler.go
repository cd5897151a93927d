package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
	"github.com/suzukibelltree/SampleToDoApp/internal/models"
	"github.com/suzukibelltree/SampleToDoApp/internal/realtime"
	"github.com/suzukibelltree/SampleToDoApp/internal/repository"
	"github.com/suzukibelltree/SampleToDoApp/internal/viewmodel"
)

// Websocket topics of the two list screens. Form sessions publish on their id.
const (
	TopicHome  = "home"
	TopicDaily = "daily"
)

// FilterRequest selects the Home priority filter; 0 clears it.
type FilterRequest struct {
	Priority int `json:"priority"`
}

// CreateSessionRequest opens an add form, or an edit form for TaskID.
type CreateSessionRequest struct {
	Kind   string `json:"kind" binding:"required,oneof=add edit"`
	TaskID int64  `json:"taskId"`
}

// UpdateSessionRequest carries the form fields to change. Absent fields are
// left alone. Progress and ToggleDone apply to edit sessions only.
type UpdateSessionRequest struct {
	Title      *string `json:"title"`
	Deadline   *string `json:"deadline"`
	Importance *int    `json:"importance"`
	Color      *uint32 `json:"color"`
	Progress   *int    `json:"progress"`
	ToggleDone bool    `json:"toggleDone"`
}

// SessionResponse describes an open form session.
type SessionResponse struct {
	ID    string        `json:"id"`
	Kind  string        `json:"kind"`
	State StateResponse `json:"state"`
}

// TaskHandler serves the screens of the app over HTTP. It owns the Home and
// Daily view models, the open form sessions and the publishers feeding the
// websocket hub.
type TaskHandler struct {
	home     *viewmodel.Home
	daily    *viewmodel.Daily
	sessions *Sessions
	hub      *realtime.Hub
	scope    *flow.Scope
	log      *logrus.Entry
}

// SessionOptions bounds the form sessions a TaskHandler keeps open.
type SessionOptions struct {
	Max int
	TTL time.Duration
}

func NewTaskHandler(ctx context.Context, repo repository.TasksRepository, hub *realtime.Hub, opts SessionOptions, log logrus.FieldLogger) *TaskHandler {
	entry := logging.Component(log, "server")
	scope := flow.NewScope(ctx, entry)
	h := &TaskHandler{
		home:     viewmodel.NewHome(scope.Context(), repo, log),
		daily:    viewmodel.NewDaily(scope.Context(), repo, log),
		sessions: NewSessions(scope.Context(), repo, hub, opts.Max, opts.TTL, log),
		hub:      hub,
		scope:    scope,
		log:      entry,
	}
	scope.Launch("publish home", func(ctx context.Context) error {
		return realtime.Publish[viewmodel.HomeState](ctx, hub, TopicHome, h.home.UIState(), withTopic(TopicHome, EncodeHomeState))
	})
	scope.Launch("publish daily", func(ctx context.Context) error {
		return realtime.Publish[viewmodel.DailyState](ctx, hub, TopicDaily, h.daily.UIState(), withTopic(TopicDaily, EncodeDailyState))
	})
	return h
}

// Close closes every session and view model and stops publishing.
func (h *TaskHandler) Close() {
	h.sessions.Close()
	h.scope.Close()
	h.home.Close()
	h.daily.Close()
}

// GetHome handles GET /api/home
func (h *TaskHandler) GetHome(c *gin.Context) {
	c.JSON(http.StatusOK, EncodeHomeState(h.home.UIState().Value()))
}

// FilterHome handles POST /api/home/filter
func (h *TaskHandler) FilterHome(c *gin.Context) {
	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	priority := models.PriorityNone
	if req.Priority != 0 {
		p, err := models.PriorityFromLevel(req.Priority)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		priority = p
	}
	h.home.FilterTasks(priority)
	c.JSON(http.StatusOK, gin.H{"selectedPriority": priority.Level()})
}

// HomeDeleteTask handles POST /api/home/delete
func (h *TaskHandler) HomeDeleteTask(c *gin.Context) {
	h.taskCommand(c, "delete", h.home.DeleteTask)
}

// HomeSwitchTask handles POST /api/home/switch
func (h *TaskHandler) HomeSwitchTask(c *gin.Context) {
	h.taskCommand(c, "switch", h.home.SwitchTask)
}

// GetDaily handles GET /api/daily
func (h *TaskHandler) GetDaily(c *gin.Context) {
	c.JSON(http.StatusOK, EncodeDailyState(h.daily.UIState().Value()))
}

// DailyDeleteTask handles POST /api/daily/delete
func (h *TaskHandler) DailyDeleteTask(c *gin.Context) {
	h.taskCommand(c, "delete", h.daily.DeleteTask)
}

// DailySwitchTask handles POST /api/daily/switch
func (h *TaskHandler) DailySwitchTask(c *gin.Context) {
	h.taskCommand(c, "switch", h.daily.SwitchTask)
}

// taskCommand binds the task in the body and hands it to run. The outcome
// reaches clients through the screen state.
func (h *TaskHandler) taskCommand(c *gin.Context, name string, run func(models.Task)) {
	var task models.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if task.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Task ID is required"})
		return
	}
	run(task)
	c.JSON(http.StatusAccepted, gin.H{"command": name, "id": task.ID})
}

// CreateSession handles POST /api/sessions
func (h *TaskHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var sess *Session
	switch req.Kind {
	case KindAdd:
		sess = h.sessions.NewAddTask()
	case KindEdit:
		if req.TaskID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "taskId is required for edit sessions"})
			return
		}
		sess = h.sessions.NewEditTask(req.TaskID)
	}
	h.log.WithFields(logrus.Fields{"session": sess.ID, "kind": sess.Kind}).Info("session opened")
	c.JSON(http.StatusCreated, SessionResponse{ID: sess.ID, Kind: sess.Kind, State: sess.State()})
}

// GetSession handles GET /api/sessions/:id
func (h *TaskHandler) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SessionResponse{ID: sess.ID, Kind: sess.Kind, State: sess.State()})
}

var errEditOnly = errors.New("progress and toggleDone apply to edit sessions only")

// UpdateSession handles PATCH /api/sessions/:id
// Updates arriving after the form left its input or edit state are ignored.
func (h *TaskHandler) UpdateSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Importance != nil {
		if _, err := models.PriorityFromLevel(*req.Importance); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	switch {
	case sess.Add != nil:
		if req.Progress != nil || req.ToggleDone {
			c.JSON(http.StatusBadRequest, gin.H{"error": errEditOnly.Error()})
			return
		}
		applyAddUpdate(sess.Add, req)
	case sess.Edit != nil:
		applyEditUpdate(sess.Edit, req)
	}
	c.JSON(http.StatusOK, SessionResponse{ID: sess.ID, Kind: sess.Kind, State: sess.State()})
}

func applyAddUpdate(add *viewmodel.AddTask, req UpdateSessionRequest) {
	if req.Title != nil {
		add.UpdateTitle(*req.Title)
	}
	if req.Deadline != nil {
		add.UpdateDeadline(*req.Deadline)
	}
	if req.Importance != nil {
		_ = add.UpdateImportance(*req.Importance) // validated by the caller
	}
	if req.Color != nil {
		add.UpdateColor(*req.Color)
	}
}

func applyEditUpdate(edit *viewmodel.EditTask, req UpdateSessionRequest) {
	if req.Title != nil {
		edit.UpdateTitle(*req.Title)
	}
	if req.Deadline != nil {
		edit.UpdateDeadline(*req.Deadline)
	}
	if req.Importance != nil {
		_ = edit.UpdateImportance(*req.Importance) // validated by the caller
	}
	if req.Color != nil {
		edit.UpdateColor(*req.Color)
	}
	if req.Progress != nil {
		edit.UpdateProgress(*req.Progress)
	}
	if req.ToggleDone {
		edit.ToggleIsDone()
	}
}

// SaveSession handles POST /api/sessions/:id/save
// The save runs in the background; clients follow it on the session topic.
func (h *TaskHandler) SaveSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	switch {
	case sess.Add != nil:
		if !sess.Add.SaveInput() {
			c.JSON(http.StatusConflict, gin.H{"error": "Task is already being saved"})
			return
		}
	case sess.Edit != nil:
		if !sess.Edit.SaveTask() {
			c.JSON(http.StatusConflict, gin.H{"error": "Task is not being edited"})
			return
		}
	}
	c.JSON(http.StatusAccepted, SessionResponse{ID: sess.ID, Kind: sess.Kind, State: sess.State()})
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *TaskHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if !h.sessions.Remove(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	h.log.WithField("session", id).Info("session closed")
	c.JSON(http.StatusOK, gin.H{"message": "Session closed successfully", "id": id})
}

func (h *TaskHandler) session(c *gin.Context) (*Session, bool) {
	sess, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return sess, true
}

// hasTopic reports whether topic is one a websocket client may follow.
func (h *TaskHandler) hasTopic(topic string) bool {
	if topic == TopicHome || topic == TopicDaily {
		return true
	}
	_, ok := h.sessions.Get(topic)
	return ok
}
