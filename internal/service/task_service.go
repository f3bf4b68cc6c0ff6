package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studyTracker/internal/logger"
	"studyTracker/internal/metrics"
	"studyTracker/internal/models/task"
	repo "studyTracker/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// здесь происходит проверка владельца и ошибок бизнес-логики

const resourceTask = "task"

type TaskService struct {
	repo  TaskRepository
	clock Clock
}

func NewTaskService(repo TaskRepository, clock Clock) *TaskService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TaskService{
		repo:  repo,
		clock: clock,
	}
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *TaskService) ListTasks(ctx context.Context, userID uuid.UUID) (tasks []*task.Task, err error) {
	defer s.observe("list", time.Now(), &err)

	tasks, err = s.repo.GetAllByOwner(ctx, userID)
	if err != nil {
		return nil, s.classify("list", uuid.Nil, err)
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, id uuid.UUID) (t *task.Task, err error) {
	defer s.observe("get", time.Now(), &err)

	return s.getOwned(ctx, "get", userID, id)
}

func (s *TaskService) CreateTask(ctx context.Context, userID uuid.UUID, title string, options ...task.TaskOption) (t *task.Task, err error) {
	defer s.observe("create", time.Now(), &err)

	t = &task.Task{
		ID:        uuid.New(),
		Title:     title,
		Priority:  task.PriorityMedium,
		Completed: false,
		UserID:    userID,
		CreatedAt: s.clock.Now(),
	}
	t.Apply(options...)

	if !t.Priority.Valid() {
		return nil, NewValidationError("priority", "must be one of Low, Medium, High")
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, s.classify("create", t.ID, err)
	}

	logger.Info("Service: Задача создана",
		zap.String("task_id", t.ID.String()),
		zap.String("user_id", userID.String()))
	return t, nil
}

// UpdateTask применяет только переданные опции, остальные поля остаются как были
func (s *TaskService) UpdateTask(ctx context.Context, userID, id uuid.UUID, options ...task.TaskOption) (t *task.Task, err error) {
	defer s.observe("update", time.Now(), &err)

	t, err = s.getOwned(ctx, "update", userID, id)
	if err != nil {
		return nil, err
	}

	t.Apply(options...)
	if !t.Priority.Valid() {
		return nil, NewValidationError("priority", "must be one of Low, Medium, High")
	}

	now := s.clock.Now()
	t.UpdatedAt = &now

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, s.classify("update", id, err)
	}
	return t, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, userID, id uuid.UUID) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if _, err := s.getOwned(ctx, "delete", userID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return s.classify("delete", id, err)
	}

	logger.Info("Service: Задача удалена", zap.String("task_id", id.String()))
	return nil
}

// ToggleTask - единственное место, где меняется флаг выполнения
func (s *TaskService) ToggleTask(ctx context.Context, userID, id uuid.UUID) (t *task.Task, err error) {
	defer s.observe("toggle", time.Now(), &err)

	t, err = s.getOwned(ctx, "toggle", userID, id)
	if err != nil {
		return nil, err
	}

	t.Completed = !t.Completed
	now := s.clock.Now()
	t.UpdatedAt = &now

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, s.classify("toggle", id, err)
	}
	return t, nil
}

// ListOverdueTasks берёт "сейчас" из часов сервиса, клиент время не передаёт
func (s *TaskService) ListOverdueTasks(ctx context.Context, userID uuid.UUID) (tasks []*task.Task, err error) {
	defer s.observe("overdue", time.Now(), &err)

	tasks, err = s.repo.GetOverdueByOwner(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, s.classify("overdue", uuid.Nil, err)
	}
	return tasks, nil
}

func (s *TaskService) getOwned(ctx context.Context, operation string, userID, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.GetByIDAndOwner(ctx, id, userID)
	if err != nil {
		return nil, s.classify(operation, id, err)
	}
	return t, nil
}

func (s *TaskService) classify(operation string, id uuid.UUID, err error) *BusinessError {
	if errors.Is(err, repo.ErrNotFound) {
		logger.Info("Service: Задача не найдена",
			zap.String("operation", operation),
			zap.String("target_id", id.String()))
		return NewNotFound(resourceTask, id.String())
	}

	logger.Error("Service: Ошибка хранилища", err, zap.String("operation", operation))
	return NewInternal(operation, err)
}

func (s *TaskService) observe(operation string, start time.Time, errp *error) {
	status := "success"
	var busErr *BusinessError
	switch {
	case *errp == nil:
	case errors.As(*errp, &busErr) && busErr.Code == CodeNotFound:
		status = "not_found"
	case errors.As(*errp, &busErr) && busErr.Code == CodeValidation:
		status = "invalid"
	default:
		status = "error"
	}
	metrics.Observe(operation, status, start)
}
