package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/suzukibelltree/SampleToDoApp/internal/database"
	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/models"
	"github.com/suzukibelltree/SampleToDoApp/internal/realtime"
	"github.com/suzukibelltree/SampleToDoApp/internal/repository"
	"github.com/suzukibelltree/SampleToDoApp/internal/store"
	"github.com/suzukibelltree/SampleToDoApp/internal/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

type testEnv struct {
	router  *gin.Engine
	handler *TaskHandler
	repo    *repository.TaskRepository
	hub     *realtime.Hub
}

func setupTest(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	repo := repository.NewTaskRepository(store.New(db))
	hub := realtime.NewHub(nil)
	h := NewTaskHandler(context.Background(), repo, hub, SessionOptions{Max: 8, TTL: time.Minute}, nil)
	t.Cleanup(h.Close)

	r := gin.New()
	api := r.Group("/api")
	api.GET("/home", h.GetHome)
	api.POST("/home/filter", h.FilterHome)
	api.POST("/home/delete", h.HomeDeleteTask)
	api.POST("/home/switch", h.HomeSwitchTask)
	api.GET("/daily", h.GetDaily)
	api.POST("/daily/delete", h.DailyDeleteTask)
	api.POST("/daily/switch", h.DailySwitchTask)
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.PATCH("/sessions/:id", h.UpdateSession)
	api.POST("/sessions/:id/save", h.SaveSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	api.GET("/ws/:topic", h.WebSocket)

	return testEnv{router: r, handler: h, repo: repo, hub: hub}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decodedState mirrors StateResponse with Data left raw for typed decoding.
type decodedState struct {
	Topic string          `json:"topic"`
	State string          `json:"state"`
	Data  json.RawMessage `json:"data"`
}

type decodedSession struct {
	ID    string       `json:"id"`
	Kind  string       `json:"kind"`
	State decodedState `json:"state"`
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (e testEnv) eventuallyHome(t *testing.T, cond func(HomeData) bool) HomeData {
	t.Helper()
	var last HomeData
	require.Eventually(t, func() bool {
		st := decode[decodedState](t, e.do(t, http.MethodGet, "/api/home", nil).Body.Bytes())
		if st.State != stateSuccess {
			return false
		}
		last = decode[HomeData](t, st.Data)
		return cond(last)
	}, waitFor, tick)
	return last
}

func TestHome_StateAndCommands(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	id, err := env.repo.InsertTask(ctx, models.NewTask("Write report", "2025/01/10", models.PriorityHigh))
	require.NoError(t, err)
	task, err := flow.First(ctx, env.repo.LoadTaskByID(id))
	require.NoError(t, err)

	home := env.eventuallyHome(t, func(d HomeData) bool { return len(d.UnfinishedTasks) == 1 })
	require.False(t, home.IsEmpty)
	require.Equal(t, "Write report", home.UnfinishedTasks[0].Title)
	require.Empty(t, home.FinishedTasks)

	w := env.do(t, http.MethodPost, "/api/home/switch", task)
	require.Equal(t, http.StatusAccepted, w.Code)
	home = env.eventuallyHome(t, func(d HomeData) bool { return len(d.FinishedTasks) == 1 })
	require.True(t, home.FinishedTasks[0].IsDone)
	require.Equal(t, 100, home.FinishedTasks[0].Progress)

	w = env.do(t, http.MethodPost, "/api/home/filter", FilterRequest{Priority: models.PriorityLow.Level()})
	require.Equal(t, http.StatusOK, w.Code)
	home = env.eventuallyHome(t, func(d HomeData) bool { return d.SelectedPriority == models.PriorityLow.Level() })
	require.Empty(t, home.FinishedTasks)
	require.False(t, home.IsEmpty)

	w = env.do(t, http.MethodPost, "/api/home/filter", FilterRequest{Priority: 9})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/home/delete", task)
	require.Equal(t, http.StatusAccepted, w.Code)
	env.eventuallyHome(t, func(d HomeData) bool { return d.IsEmpty })
}

func TestTaskCommand_RequiresID(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodPost, "/api/home/delete", map[string]any{"title": "no id"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/daily/switch", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDaily_State(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	_, err := env.repo.InsertTask(ctx, models.NewTask("b", "2025/02/02", models.PriorityLow))
	require.NoError(t, err)
	_, err = env.repo.InsertTask(ctx, models.NewTask("a", "2025/02/01", models.PriorityLow))
	require.NoError(t, err)

	var daily DailyData
	require.Eventually(t, func() bool {
		st := decode[decodedState](t, env.do(t, http.MethodGet, "/api/daily", nil).Body.Bytes())
		if st.State != stateSuccess {
			return false
		}
		daily = decode[DailyData](t, st.Data)
		return len(daily.Groups) == 2
	}, waitFor, tick)

	require.Equal(t, "2025/02/01", daily.Groups[0].Deadline)
	require.Equal(t, "a", daily.Groups[0].Tasks[0].Title)
	require.Equal(t, "2025/02/02", daily.Groups[1].Deadline)
}

func TestAddSession_Lifecycle(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{Kind: KindAdd})
	require.Equal(t, http.StatusCreated, w.Code)
	sess := decode[decodedSession](t, w.Body.Bytes())
	require.NotEmpty(t, sess.ID)
	require.Equal(t, stateInput, sess.State.State)
	input := decode[AddTaskInputData](t, sess.State.Data)
	require.Equal(t, models.PriorityMedium.Level(), input.Importance)
	require.Equal(t, models.DefaultColor, input.Color)

	path := "/api/sessions/" + sess.ID
	title, deadline, importance := "Plan trip", "2025/04/01", models.PriorityHigh.Level()
	w = env.do(t, http.MethodPatch, path, UpdateSessionRequest{Title: &title, Deadline: &deadline, Importance: &importance})
	require.Equal(t, http.StatusOK, w.Code)
	input = decode[AddTaskInputData](t, decode[decodedSession](t, w.Body.Bytes()).State.Data)
	require.Equal(t, AddTaskInputData{Title: title, Deadline: deadline, Importance: importance, Color: models.DefaultColor}, input)

	progress := 50
	w = env.do(t, http.MethodPatch, path, UpdateSessionRequest{Progress: &progress})
	require.Equal(t, http.StatusBadRequest, w.Code)

	bad := 0
	w = env.do(t, http.MethodPatch, path, UpdateSessionRequest{Importance: &bad})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, path+"/save", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		got := decode[decodedSession](t, env.do(t, http.MethodGet, path, nil).Body.Bytes())
		return got.State.State == stateSuccess
	}, waitFor, tick)

	w = env.do(t, http.MethodPost, path+"/save", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	tasks, err := flow.First(context.Background(), env.repo.GetAllTasks())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "Plan trip", tasks[0].Title)
	require.Equal(t, models.PriorityHigh.Level(), tasks[0].Importance)

	w = env.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddSession_ConcurrentSavesInsertOnce(t *testing.T) {
	env := setupTest(t)

	sess := decode[decodedSession](t, env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{Kind: KindAdd}).Body.Bytes())
	path := "/api/sessions/" + sess.ID
	title := "Only once"
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPatch, path, UpdateSessionRequest{Title: &title}).Code)

	const callers = 8
	codes := make(chan int, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path+"/save", nil))
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for code := range codes {
		counts[code]++
	}
	require.Equal(t, map[int]int{http.StatusAccepted: 1, http.StatusConflict: callers - 1}, counts)

	require.Eventually(t, func() bool {
		got := decode[decodedSession](t, env.do(t, http.MethodGet, path, nil).Body.Bytes())
		return got.State.State == stateSuccess
	}, waitFor, tick)
	tasks, err := flow.First(context.Background(), env.repo.GetAllTasks())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, title, tasks[0].Title)
}

func TestEditSession_Lifecycle(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	id, err := env.repo.InsertTask(ctx, models.NewTask("Clean garage", "2025/05/05", models.PriorityLow))
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{Kind: KindEdit, TaskID: id})
	require.Equal(t, http.StatusCreated, w.Code)
	sess := decode[decodedSession](t, w.Body.Bytes())
	path := "/api/sessions/" + sess.ID

	require.Eventually(t, func() bool {
		got := decode[decodedSession](t, env.do(t, http.MethodGet, path, nil).Body.Bytes())
		return got.State.State == stateEdit
	}, waitFor, tick)

	progress := 100
	w = env.do(t, http.MethodPatch, path, UpdateSessionRequest{Progress: &progress})
	require.Equal(t, http.StatusOK, w.Code)
	edit := decode[EditTaskData](t, decode[decodedSession](t, w.Body.Bytes()).State.Data)
	require.True(t, edit.IsDone)
	require.Equal(t, id, edit.ID)

	w = env.do(t, http.MethodPatch, path, UpdateSessionRequest{ToggleDone: true})
	require.Equal(t, http.StatusOK, w.Code)
	edit = decode[EditTaskData](t, decode[decodedSession](t, w.Body.Bytes()).State.Data)
	require.False(t, edit.IsDone)
	require.Zero(t, edit.Progress)

	title := "Clean the garage"
	w = env.do(t, http.MethodPatch, path, UpdateSessionRequest{Title: &title})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, path+"/save", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool {
		got := decode[decodedSession](t, env.do(t, http.MethodGet, path, nil).Body.Bytes())
		return got.State.State == stateSuccess
	}, waitFor, tick)

	saved, err := flow.First(ctx, env.repo.LoadTaskByID(id))
	require.NoError(t, err)
	require.Equal(t, "Clean the garage", saved.Title)
}

func TestCreateSession_Validation(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodPost, "/api/sessions", map[string]any{"kind": "delete"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{Kind: KindEdit})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/sessions/unknown", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_OldestIsClosedWhenFull(t *testing.T) {
	hub := realtime.NewHub(nil)
	repo := new(repository.TaskRepository)
	sessions := NewSessions(context.Background(), repo, hub, 1, time.Minute, nil)
	defer sessions.Close()

	first := sessions.NewAddTask()
	second := sessions.NewAddTask()

	_, ok := sessions.Get(first.ID)
	require.False(t, ok)
	_, ok = sessions.Get(second.ID)
	require.True(t, ok)
	require.Equal(t, 1, sessions.Len())
	_, ok = hub.Latest(first.ID)
	require.False(t, ok)
}

func TestWebSocket_ReplaysCurrentState(t *testing.T) {
	env := setupTest(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/" + TopicHome
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, err = env.repo.InsertTask(context.Background(), models.NewTask("Ping", "", models.PriorityMedium))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		msg := decode[decodedState](t, raw)
		require.Equal(t, TopicHome, msg.Topic)
		if msg.State != stateSuccess {
			continue
		}
		if home := decode[HomeData](t, msg.Data); len(home.UnfinishedTasks) == 1 {
			require.Equal(t, "Ping", home.UnfinishedTasks[0].Title)
			return
		}
	}
}

type stubClient struct {
	mu     sync.Mutex
	closed bool
}

func (c *stubClient) Send([]byte) bool { return true }

func (c *stubClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *stubClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestSubscribe_ClosesClientOfDroppedSession(t *testing.T) {
	env := setupTest(t)

	sess := env.handler.sessions.NewAddTask()
	require.True(t, env.handler.sessions.Remove(sess.ID))

	late := &stubClient{}
	require.False(t, env.handler.subscribe(sess.ID, late))
	require.True(t, late.isClosed())
	require.Zero(t, env.hub.Clients(sess.ID))

	live := env.handler.sessions.NewAddTask()
	c := &stubClient{}
	require.True(t, env.handler.subscribe(live.ID, c))
	require.Equal(t, 1, env.hub.Clients(live.ID))
	require.False(t, c.isClosed())

	require.True(t, env.handler.sessions.Remove(live.ID))
	require.True(t, c.isClosed())
	require.Zero(t, env.hub.Clients(live.ID))

	home := &stubClient{}
	require.True(t, env.handler.subscribe(TopicHome, home))
	env.hub.Unregister(TopicHome, home)
}

func TestWebSocket_UnknownTopic(t *testing.T) {
	env := setupTest(t)
	w := env.do(t, http.MethodGet, "/api/ws/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
