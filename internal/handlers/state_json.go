package handlers

import (
	"fmt"

	"github.com/suzukibelltree/SampleToDoApp/internal/models"
	"github.com/suzukibelltree/SampleToDoApp/internal/viewmodel"
)

// StateResponse is the JSON shape of every screen state, over HTTP and on
// websocket topics. State names the variant; Data carries its fields.
type StateResponse struct {
	Topic string `json:"topic,omitempty"`
	State string `json:"state"`
	Data  any    `json:"data,omitempty"`
}

type HomeData struct {
	FinishedTasks    []models.Task `json:"finishedTasks"`
	UnfinishedTasks  []models.Task `json:"unfinishedTasks"`
	SelectedPriority int           `json:"selectedPriority"`
	IsEmpty          bool          `json:"isEmpty"`
}

type DeadlineGroupData struct {
	Deadline string        `json:"deadline"`
	Tasks    []models.Task `json:"tasks"`
}

type DailyData struct {
	Groups  []DeadlineGroupData `json:"groups"`
	IsEmpty bool                `json:"isEmpty"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type AddTaskInputData struct {
	Title      string `json:"title"`
	Deadline   string `json:"deadline"`
	Importance int    `json:"importance"`
	Color      uint32 `json:"color"`
}

type EditTaskData struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Deadline   string `json:"deadline"`
	Importance int    `json:"importance"`
	Color      uint32 `json:"color"`
	Progress   int    `json:"progress"`
	IsDone     bool   `json:"isDone"`
}

const (
	stateLoading = "loading"
	stateSuccess = "success"
	stateError   = "error"
	stateInput   = "input"
	stateSaving  = "saving"
	stateEdit    = "edit"
)

func EncodeHomeState(s viewmodel.HomeState) StateResponse {
	switch s := s.(type) {
	case viewmodel.HomeLoading:
		return StateResponse{State: stateLoading}
	case viewmodel.HomeSuccess:
		return StateResponse{State: stateSuccess, Data: HomeData{
			FinishedTasks:    nonNil(s.FinishedTasks),
			UnfinishedTasks:  nonNil(s.UnfinishedTasks),
			SelectedPriority: s.SelectedPriority.Level(),
			IsEmpty:          s.IsEmpty,
		}}
	default:
		panic(fmt.Sprintf("unhandled home state %T", s))
	}
}

func EncodeDailyState(s viewmodel.DailyState) StateResponse {
	switch s := s.(type) {
	case viewmodel.DailyLoading:
		return StateResponse{State: stateLoading}
	case viewmodel.DailySuccess:
		groups := make([]DeadlineGroupData, 0, len(s.Groups))
		for _, g := range s.Groups {
			groups = append(groups, DeadlineGroupData{Deadline: g.Deadline, Tasks: nonNil(g.Tasks)})
		}
		return StateResponse{State: stateSuccess, Data: DailyData{Groups: groups, IsEmpty: s.IsEmpty}}
	case viewmodel.DailyError:
		return StateResponse{State: stateError, Data: ErrorData{Message: s.Message}}
	default:
		panic(fmt.Sprintf("unhandled daily state %T", s))
	}
}

func EncodeAddTaskState(s viewmodel.AddTaskState) StateResponse {
	switch s := s.(type) {
	case viewmodel.AddTaskInput:
		return StateResponse{State: stateInput, Data: AddTaskInputData{
			Title:      s.Title,
			Deadline:   s.Deadline,
			Importance: s.Importance.Level(),
			Color:      s.Color,
		}}
	case viewmodel.AddTaskSaving:
		return StateResponse{State: stateSaving}
	case viewmodel.AddTaskSuccess:
		return StateResponse{State: stateSuccess}
	default:
		panic(fmt.Sprintf("unhandled add task state %T", s))
	}
}

func EncodeEditTaskState(s viewmodel.EditTaskState) StateResponse {
	switch s := s.(type) {
	case viewmodel.EditTaskLoading:
		return StateResponse{State: stateLoading}
	case viewmodel.EditTaskEdit:
		return StateResponse{State: stateEdit, Data: EditTaskData{
			ID:         s.ID,
			Title:      s.Title,
			Deadline:   s.Deadline,
			Importance: s.Importance.Level(),
			Color:      s.Color,
			Progress:   s.Progress,
			IsDone:     s.IsDone,
		}}
	case viewmodel.EditTaskSuccess:
		return StateResponse{State: stateSuccess}
	default:
		panic(fmt.Sprintf("unhandled edit task state %T", s))
	}
}

func nonNil(tasks []models.Task) []models.Task {
	if tasks == nil {
		return []models.Task{}
	}
	return tasks
}

// withTopic tags an encoder's output with the websocket topic it is sent on.
func withTopic[S any](topic string, encode func(S) StateResponse) func(S) any {
	return func(s S) any {
		resp := encode(s)
		resp.Topic = topic
		return resp
	}
}
