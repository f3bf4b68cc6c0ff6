package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studyTracker/internal/handlers"
	"studyTracker/internal/handlers/dto"
	"studyTracker/internal/middleware"
	"studyTracker/internal/models/course"
	"studyTracker/internal/models/task"
	"studyTracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskService - мок сервиса
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskService) ListTasks(ctx context.Context, userID uuid.UUID) ([]*task.Task, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskService) GetTask(ctx context.Context, userID, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) CreateTask(ctx context.Context, userID uuid.UUID, title string, options ...task.TaskOption) (*task.Task, error) {
	args := m.Called(ctx, userID, title, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) UpdateTask(ctx context.Context, userID, id uuid.UUID, options ...task.TaskOption) (*task.Task, error) {
	args := m.Called(ctx, userID, id, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockTaskService) ToggleTask(ctx context.Context, userID, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) ListOverdueTasks(ctx context.Context, userID uuid.UUID) ([]*task.Task, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

var _ handlers.Service = (*MockTaskService)(nil)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// newRequest собирает запрос так, как его видит обработчик за роутером:
// с параметром id от chi и пользователем от middleware аутентификации
func newRequest(method, target, body string, userID uuid.UUID, id string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)

	ctx := req.Context()
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	if userID != uuid.Nil {
		ctx = middleware.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

func sampleTask(id, userID uuid.UUID) *task.Task {
	due := testNow.Add(-time.Hour)
	courseID := uuid.New()
	return &task.Task{
		ID:        id,
		Title:     "Read chapter 3",
		DueDate:   &due,
		Priority:  task.PriorityHigh,
		UserID:    userID,
		CourseID:  &courseID,
		Course:    &course.Course{ID: courseID, Title: "Algorithms", Code: "CS101"},
		CreatedAt: testNow.Add(-48 * time.Hour),
	}
}

func TestTaskHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name: "success - healthy",
			setupMock: func(m *MockTaskService) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "error - unhealthy",
			setupMock: func(m *MockTaskService) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("service unavailable"))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()

			handler.HealthCheck(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), "study-tracker")
			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_ListTasks(t *testing.T) {
	userID := uuid.New()

	t.Run("success - returns owner tasks with course", func(t *testing.T) {
		mockService := new(MockTaskService)
		tasks := []*task.Task{sampleTask(uuid.New(), userID), sampleTask(uuid.New(), userID)}
		mockService.On("ListTasks", mock.Anything, userID).Return(tasks, nil)

		handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})
		w := httptest.NewRecorder()
		handler.ListTasks(w, newRequest(http.MethodGet, "/tasks", "", userID, ""))

		require.Equal(t, http.StatusOK, w.Code)
		var response []dto.TaskResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		require.Len(t, response, 2)
		require.NotNil(t, response[0].Course)
		assert.Equal(t, "CS101", response[0].Course.Code)
		assert.True(t, response[0].IsOverdue)
		mockService.AssertExpectations(t)
	})

	t.Run("success - empty list is an empty array", func(t *testing.T) {
		mockService := new(MockTaskService)
		mockService.On("ListTasks", mock.Anything, userID).Return([]*task.Task{}, nil)

		handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})
		w := httptest.NewRecorder()
		handler.ListTasks(w, newRequest(http.MethodGet, "/tasks", "", userID, ""))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("error - no user", func(t *testing.T) {
		mockService := new(MockTaskService)
		handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})
		w := httptest.NewRecorder()
		handler.ListTasks(w, newRequest(http.MethodGet, "/tasks", "", uuid.Nil, ""))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "ListTasks", mock.Anything, mock.Anything)
	})

	t.Run("error - store failure hides details", func(t *testing.T) {
		mockService := new(MockTaskService)
		mockService.On("ListTasks", mock.Anything, userID).
			Return(nil, service.NewInternal("list", errors.New("pq: connection refused")))

		handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})
		w := httptest.NewRecorder()
		handler.ListTasks(w, newRequest(http.MethodGet, "/tasks", "", userID, ""))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Server error")
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestTaskHandler_PostTask(t *testing.T) {
	userID := uuid.New()
	taskID := uuid.New()

	tests := []struct {
		name           string
		requestBody    string
		contentType    string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name:        "success - create task",
			requestBody: `{"title": "Read chapter 3", "due_date": "2025-03-12T09:00:00Z", "priority": "High"}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, userID, "Read chapter 3",
					mock.MatchedBy(func(opts []task.TaskOption) bool { return len(opts) == 2 })).
					Return(&task.Task{
						ID:        taskID,
						Title:     "Read chapter 3",
						Priority:  task.PriorityHigh,
						UserID:    userID,
						CreatedAt: testNow,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "success - content type with charset",
			requestBody: `{"title": "Read chapter 3"}`,
			contentType: "application/json; charset=utf-8",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, userID, "Read chapter 3",
					mock.MatchedBy(func(opts []task.TaskOption) bool { return len(opts) == 0 })).
					Return(&task.Task{ID: taskID, Title: "Read chapter 3", Priority: task.PriorityMedium, UserID: userID}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "error - invalid content type",
			requestBody:    `{}`,
			contentType:    "text/plain",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:           "error - invalid JSON",
			requestBody:    `{invalid json}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - missing title",
			requestBody:    `{"priority": "Low"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - unknown priority",
			requestBody:    `{"title": "Read chapter 3", "priority": "Urgent"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "error - service error",
			requestBody: `{"title": "Read chapter 3"}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, userID, "Read chapter 3", mock.Anything).
					Return(nil, errors.New("service error"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})

			req := newRequest(http.MethodPost, "/tasks", tt.requestBody, userID, "")
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			handler.PostTask(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusCreated {
				var response dto.TaskResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
				assert.Equal(t, "Read chapter 3", response.Title)
				assert.Equal(t, userID, response.UserID)
				assert.False(t, response.Completed)
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_GetTaskByID(t *testing.T) {
	userID := uuid.New()
	taskID := uuid.New()

	tests := []struct {
		name           string
		taskID         string
		setupMock      func(*MockTaskService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "success - get task",
			taskID: taskID.String(),
			setupMock: func(m *MockTaskService) {
				m.On("GetTask", mock.Anything, userID, taskID).Return(sampleTask(taskID, userID), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "Read chapter 3",
		},
		{
			name:           "error - invalid UUID",
			taskID:         "invalid-uuid",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - nil UUID",
			taskID:         uuid.Nil.String(),
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "error - task not found or not owned",
			taskID: taskID.String(),
			setupMock: func(m *MockTaskService) {
				m.On("GetTask", mock.Anything, userID, taskID).
					Return(nil, service.NewNotFound("task", taskID.String()))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "Task not found",
		},
		{
			name:   "error - service error",
			taskID: taskID.String(),
			setupMock: func(m *MockTaskService) {
				m.On("GetTask", mock.Anything, userID, taskID).
					Return(nil, errors.New("internal error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})

			w := httptest.NewRecorder()
			handler.GetTaskByID(w, newRequest(http.MethodGet, "/tasks/"+tt.taskID, "", userID, tt.taskID))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_UpdateTaskByID(t *testing.T) {
	userID := uuid.New()
	taskID := uuid.New()

	// applied применяет пришедшие в сервис опции к копии исходной задачи
	applied := func(opts []task.TaskOption) *task.Task {
		base := sampleTask(taskID, userID)
		base.Apply(opts...)
		return base
	}

	tests := []struct {
		name           string
		taskID         string
		requestBody    string
		contentType    string
		optsCheck      func(t *testing.T, updated *task.Task)
		serviceErr     error
		expectedStatus int
	}{
		{
			name:        "success - only title changes",
			taskID:      taskID.String(),
			requestBody: `{"title": "Read chapter 4"}`,
			contentType: "application/json",
			optsCheck: func(t *testing.T, updated *task.Task) {
				assert.Equal(t, "Read chapter 4", updated.Title)
				assert.Equal(t, task.PriorityHigh, updated.Priority)
				assert.NotNil(t, updated.DueDate)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "success - null keeps stored value",
			taskID:      taskID.String(),
			requestBody: `{"title": null, "due_date": null, "course_id": null}`,
			contentType: "application/json",
			optsCheck: func(t *testing.T, updated *task.Task) {
				assert.Equal(t, "Read chapter 3", updated.Title)
				assert.NotNil(t, updated.DueDate)
				assert.NotNil(t, updated.CourseID)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "success - empty string overwrites",
			taskID:      taskID.String(),
			requestBody: `{"title": ""}`,
			contentType: "application/json",
			optsCheck: func(t *testing.T, updated *task.Task) {
				assert.Equal(t, "", updated.Title)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "success - ownership and completion are ignored",
			taskID:      taskID.String(),
			requestBody: `{"user_id": "` + uuid.NewString() + `", "completed": true, "priority": "Low"}`,
			contentType: "application/json",
			optsCheck: func(t *testing.T, updated *task.Task) {
				assert.Equal(t, userID, updated.UserID)
				assert.False(t, updated.Completed)
				assert.Equal(t, task.PriorityLow, updated.Priority)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "error - invalid content type",
			taskID:         taskID.String(),
			requestBody:    `{}`,
			contentType:    "text/plain",
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:           "error - invalid UUID",
			taskID:         "invalid-uuid",
			requestBody:    `{}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - invalid JSON",
			taskID:         taskID.String(),
			requestBody:    `{invalid json}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - unknown priority",
			taskID:         taskID.String(),
			requestBody:    `{"priority": "Urgent"}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - not found",
			taskID:         taskID.String(),
			requestBody:    `{"title": "Read chapter 4"}`,
			contentType:    "application/json",
			serviceErr:     service.NewNotFound("task", taskID.String()),
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)

			var received []task.TaskOption
			callsService := tt.optsCheck != nil || tt.serviceErr != nil
			if callsService {
				call := mockService.On("UpdateTask", mock.Anything, userID, taskID, mock.Anything).
					Run(func(args mock.Arguments) {
						received = args.Get(3).([]task.TaskOption)
					})
				if tt.serviceErr != nil {
					call.Return(nil, tt.serviceErr)
				} else {
					call.Return(sampleTask(taskID, userID), nil)
				}
			}

			handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})

			req := newRequest(http.MethodPatch, "/tasks/"+tt.taskID, tt.requestBody, userID, tt.taskID)
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			handler.UpdateTaskByID(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.optsCheck != nil {
				tt.optsCheck(t, applied(received))
			}
			if !callsService {
				mockService.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_DeleteTaskByID(t *testing.T) {
	userID := uuid.New()
	taskID := uuid.New()

	tests := []struct {
		name           string
		taskID         string
		setupMock      func(*MockTaskService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "success - delete task",
			taskID: taskID.String(),
			setupMock: func(m *MockTaskService) {
				m.On("DeleteTask", mock.Anything, userID, taskID).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"message":"Task deleted successfully"}`,
		},
		{
			name:           "error - invalid UUID",
			taskID:         "invalid-uuid",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "error - not found",
			taskID: taskID.String(),
			setupMock: func(m *MockTaskService) {
				m.On("DeleteTask", mock.Anything, userID, taskID).
					Return(service.NewNotFound("task", taskID.String()))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:   "error - service error",
			taskID: taskID.String(),
			setupMock: func(m *MockTaskService) {
				m.On("DeleteTask", mock.Anything, userID, taskID).
					Return(errors.New("internal error"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})

			w := httptest.NewRecorder()
			handler.DeleteTaskByID(w, newRequest(http.MethodDelete, "/tasks/"+tt.taskID, "", userID, tt.taskID))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_ToggleTask(t *testing.T) {
	userID := uuid.New()
	taskID := uuid.New()

	t.Run("success - returns toggled task", func(t *testing.T) {
		toggled := sampleTask(taskID, userID)
		toggled.Completed = true

		mockService := new(MockTaskService)
		mockService.On("ToggleTask", mock.Anything, userID, taskID).Return(toggled, nil)

		handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})
		w := httptest.NewRecorder()
		handler.ToggleTask(w, newRequest(http.MethodPatch, "/tasks/"+taskID.String()+"/toggle", "", userID, taskID.String()))

		require.Equal(t, http.StatusOK, w.Code)
		var response dto.TaskResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.True(t, response.Completed)
		assert.False(t, response.IsOverdue)
		mockService.AssertExpectations(t)
	})

	t.Run("error - foreign task is not found", func(t *testing.T) {
		mockService := new(MockTaskService)
		mockService.On("ToggleTask", mock.Anything, userID, taskID).
			Return(nil, service.NewNotFound("task", taskID.String()))

		handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})
		w := httptest.NewRecorder()
		handler.ToggleTask(w, newRequest(http.MethodPatch, "/tasks/"+taskID.String()+"/toggle", "", userID, taskID.String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Task not found")
	})
}

func TestTaskHandler_GetOverdueTasks(t *testing.T) {
	userID := uuid.New()

	mockService := new(MockTaskService)
	mockService.On("ListOverdueTasks", mock.Anything, userID).
		Return([]*task.Task{sampleTask(uuid.New(), userID)}, nil)

	handler := handlers.NewTaskHandler(mockService, fixedClock{testNow})
	w := httptest.NewRecorder()
	handler.GetOverdueTasks(w, newRequest(http.MethodGet, "/tasks/overdue", "", userID, ""))

	require.Equal(t, http.StatusOK, w.Code)
	var response []dto.TaskResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response, 1)
	assert.True(t, response[0].IsOverdue)
	mockService.AssertExpectations(t)
}
