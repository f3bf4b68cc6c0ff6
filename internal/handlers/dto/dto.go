package dto

import (
	"time"

	"studyTracker/internal/models/course"
	"studyTracker/internal/models/task"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title    string     `json:"title" validate:"required,max=255"`
	DueDate  *time.Time `json:"due_date"`
	Priority string     `json:"priority" validate:"omitempty,oneof=Low Medium High"`
	CourseID *uuid.UUID `json:"course_id"`
}

func (r CreateTaskRequest) Options() []task.TaskOption {
	options := []task.TaskOption{}
	if r.DueDate != nil {
		options = append(options, task.WithDueDate(*r.DueDate))
	}
	if r.Priority != "" {
		options = append(options, task.WithPriority(task.Priority(r.Priority)))
	}
	if r.CourseID != nil {
		options = append(options, task.WithCourse(*r.CourseID))
	}
	return options
}

// UpdateTaskRequest - частичное обновление.
// Поле без ключа или с null оставляет сохранённое значение, любое переданное значение
// (в том числе пустая строка) его заменяет.
type UpdateTaskRequest struct {
	Title    Optional[string]    `json:"title" validate:"omitempty,max=255"`
	DueDate  Optional[time.Time] `json:"due_date"`
	Priority Optional[string]    `json:"priority" validate:"omitempty,oneof=Low Medium High"`
	CourseID Optional[uuid.UUID] `json:"course_id"`
}

func (r UpdateTaskRequest) Options() []task.TaskOption {
	options := []task.TaskOption{}
	if r.Title.Present() {
		options = append(options, task.WithTitle(r.Title.Value))
	}
	if r.DueDate.Present() {
		options = append(options, task.WithDueDate(r.DueDate.Value))
	}
	if r.Priority.Present() {
		options = append(options, task.WithPriority(task.Priority(r.Priority.Value)))
	}
	if r.CourseID.Present() {
		options = append(options, task.WithCourse(r.CourseID.Value))
	}
	return options
}

type CourseResponse struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Code  string    `json:"code"`
}

type TaskResponse struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	DueDate   *time.Time      `json:"due_date"`
	Priority  string          `json:"priority"`
	Completed bool            `json:"completed"`
	UserID    uuid.UUID       `json:"user_id"`
	CourseID  *uuid.UUID      `json:"course_id"`
	Course    *CourseResponse `json:"course,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
	IsOverdue bool            `json:"is_overdue"`
}

func FromTask(t *task.Task, now time.Time) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		Title:     t.Title,
		DueDate:   t.DueDate,
		Priority:  string(t.Priority),
		Completed: t.Completed,
		UserID:    t.UserID,
		CourseID:  t.CourseID,
		Course:    fromCourse(t.Course),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		IsOverdue: t.IsOverdue(now),
	}
}

func FromTaskList(tasks []*task.Task, now time.Time) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t, now)
	}
	return result
}

func fromCourse(c *course.Course) *CourseResponse {
	if c == nil {
		return nil
	}
	return &CourseResponse{
		ID:    c.ID,
		Title: c.Title,
		Code:  c.Code,
	}
}
