package task

import (
	"bytes"
	"time"

	"studyTracker/internal/models/course"

	"github.com/google/uuid"
)

type Task struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	Title     string         `json:"title" db:"title"`
	DueDate   *time.Time     `json:"due_date,omitempty" db:"due_date"`
	Priority  Priority       `json:"priority" db:"priority"`
	Completed bool           `json:"completed" db:"completed"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	CourseID  *uuid.UUID     `json:"course_id,omitempty" db:"course_id"`
	Course    *course.Course `json:"course,omitempty" db:"-"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty" db:"updated_at,omitempty"`
}

type Priority string

const PriorityLow Priority = "Low"
const PriorityMedium Priority = "Medium"
const PriorityHigh Priority = "High"

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// IsOverdue: не выполнена и дедлайн строго раньше now
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

func (t *Task) OwnedBy(userID uuid.UUID) bool {
	return t.UserID == userID
}

// CompareByDueDate задаёт порядок выдачи списков: дедлайн по возрастанию,
// задачи без дедлайна в конце (как ASC NULLS LAST в PostgreSQL),
// при равенстве по времени создания и id.
func CompareByDueDate(a, b *Task) int {
	switch {
	case a.DueDate == nil && b.DueDate != nil:
		return 1
	case a.DueDate != nil && b.DueDate == nil:
		return -1
	case a.DueDate != nil && b.DueDate != nil:
		if c := a.DueDate.Compare(*b.DueDate); c != 0 {
			return c
		}
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

// Clone возвращает глубокую копию, хранилища не должны отдавать наружу свои указатели
func (t *Task) Clone() *Task {
	cp := *t
	if t.DueDate != nil {
		due := *t.DueDate
		cp.DueDate = &due
	}
	if t.CourseID != nil {
		courseID := *t.CourseID
		cp.CourseID = &courseID
	}
	if t.Course != nil {
		c := *t.Course
		cp.Course = &c
	}
	if t.UpdatedAt != nil {
		updated := *t.UpdatedAt
		cp.UpdatedAt = &updated
	}
	return &cp
}
