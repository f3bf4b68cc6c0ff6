package task

import (
	"time"

	"github.com/google/uuid"
)

// TaskOption меняет одно изменяемое поле задачи.
// Владелец и флаг выполнения через опции не меняются.
type TaskOption func(*Task)

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDueDate(dueDate time.Time) TaskOption {
	return func(task *Task) {
		task.DueDate = &dueDate
	}
}

// WithPriority не проверяет значение, недопустимый приоритет отклоняет сервис
func WithPriority(priority Priority) TaskOption {
	return func(task *Task) {
		task.Priority = priority
	}
}

// WithCourse меняет ссылку на курс; прикреплённые данные старого курса сбрасываются,
// хранилище подтянет новые при сохранении.
func WithCourse(courseID uuid.UUID) TaskOption {
	return func(task *Task) {
		if task.CourseID != nil && *task.CourseID == courseID {
			return
		}
		task.CourseID = &courseID
		task.Course = nil
	}
}

// Apply применяет опции по порядку, nil-опции пропускаются
func (t *Task) Apply(options ...TaskOption) {
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
}
