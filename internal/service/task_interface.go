package service

import (
	"context"
	"time"

	"studyTracker/internal/models/task"

	"github.com/google/uuid"
)

// TaskRepository: каждый запрос к задачам фильтруется по владельцу на стороне хранилища.
// Списки отдаются упорядоченными по task.CompareByDueDate и с прикреплённым курсом.
type TaskRepository interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, t *task.Task) error
	Update(ctx context.Context, t *task.Task) error
	GetByIDAndOwner(ctx context.Context, id, owner uuid.UUID) (*task.Task, error)
	GetAllByOwner(ctx context.Context, owner uuid.UUID) ([]*task.Task, error)
	GetOverdueByOwner(ctx context.Context, owner uuid.UUID, now time.Time) ([]*task.Task, error)
	Delete(ctx context.Context, id, owner uuid.UUID) error
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
