package handlers

import (
	"context"

	"studyTracker/internal/models/task"

	"github.com/google/uuid"
)

// Service - то, что обработчикам нужно от слоя бизнес-логики.
// Каждый вызов, кроме HealthCheck, выполняется от имени пользователя userID.
type Service interface {
	HealthCheck(ctx context.Context) error
	ListTasks(ctx context.Context, userID uuid.UUID) ([]*task.Task, error)
	GetTask(ctx context.Context, userID, id uuid.UUID) (*task.Task, error)
	CreateTask(ctx context.Context, userID uuid.UUID, title string, options ...task.TaskOption) (*task.Task, error)
	UpdateTask(ctx context.Context, userID, id uuid.UUID, options ...task.TaskOption) (*task.Task, error)
	DeleteTask(ctx context.Context, userID, id uuid.UUID) error
	ToggleTask(ctx context.Context, userID, id uuid.UUID) (*task.Task, error)
	ListOverdueTasks(ctx context.Context, userID uuid.UUID) ([]*task.Task, error)
}
