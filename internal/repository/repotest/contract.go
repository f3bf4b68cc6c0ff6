// Package repotest - общие проверки для всех реализаций хранилища задач.
// Каждая реализация прогоняет Run со своей фабрикой.
package repotest

import (
	"context"
	"testing"
	"time"

	"studyTracker/internal/models/course"
	"studyTracker/internal/models/task"
	repo "studyTracker/internal/repository"
	"studyTracker/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Store interface {
	service.TaskRepository
	CreateCourse(ctx context.Context, c *course.Course) error
}

// Factory возвращает пустое хранилище для одного подтеста
type Factory func(t *testing.T) Store

// базовое время без долей секунды: не все хранилища держат наносекунды
var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

func newTask(owner uuid.UUID, title string, due *time.Time, created time.Duration) *task.Task {
	return &task.Task{
		ID:        uuid.New(),
		Title:     title,
		DueDate:   due,
		Priority:  task.PriorityMedium,
		UserID:    owner,
		CreatedAt: base.Add(created),
	}
}

func titles(tasks []*task.Task) []string {
	res := make([]string, len(tasks))
	for i, t := range tasks {
		res[i] = t.Title
	}
	return res
}

func Run(t *testing.T, newStore Factory) {
	t.Run("create and get with course", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		owner := uuid.New()

		c := &course.Course{ID: uuid.New(), Title: "Algorithms", Code: "CS201"}
		require.NoError(t, s.CreateCourse(ctx, c))

		tk := newTask(owner, "Problem set", at(24*time.Hour), 0)
		tk.Priority = task.PriorityHigh
		tk.CourseID = &c.ID
		require.NoError(t, s.Create(ctx, tk))
		require.NotNil(t, tk.Course, "созданная задача возвращается с курсом")

		got, err := s.GetByIDAndOwner(ctx, tk.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, "Problem set", got.Title)
		assert.Equal(t, task.PriorityHigh, got.Priority)
		assert.False(t, got.Completed)
		assert.Equal(t, owner, got.UserID)
		require.NotNil(t, got.DueDate)
		assert.True(t, base.Add(24*time.Hour).Equal(*got.DueDate))
		require.NotNil(t, got.Course)
		assert.Equal(t, "CS201", got.Course.Code)
	})

	t.Run("course upsert", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		owner := uuid.New()

		c := &course.Course{ID: uuid.New(), Title: "Algebra", Code: "MATH1"}
		require.NoError(t, s.CreateCourse(ctx, c))
		require.NoError(t, s.CreateCourse(ctx, &course.Course{ID: c.ID, Title: "Linear Algebra", Code: "MATH210"}))

		tk := newTask(owner, "Exercises", nil, 0)
		tk.CourseID = &c.ID
		require.NoError(t, s.Create(ctx, tk))

		got, err := s.GetByIDAndOwner(ctx, tk.ID, owner)
		require.NoError(t, err)
		require.NotNil(t, got.Course)
		assert.Equal(t, "MATH210", got.Course.Code)
	})

	t.Run("foreign owner sees nothing", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		owner, stranger := uuid.New(), uuid.New()

		tk := newTask(owner, "Private", at(-time.Hour), 0)
		require.NoError(t, s.Create(ctx, tk))

		_, err := s.GetByIDAndOwner(ctx, tk.ID, stranger)
		assert.ErrorIs(t, err, repo.ErrNotFound)

		hijack := tk.Clone()
		hijack.UserID = stranger
		hijack.Title = "Hijacked"
		assert.ErrorIs(t, s.Update(ctx, hijack), repo.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, tk.ID, stranger), repo.ErrNotFound)

		list, err := s.GetAllByOwner(ctx, stranger)
		require.NoError(t, err)
		assert.Empty(t, list)

		got, err := s.GetByIDAndOwner(ctx, tk.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, "Private", got.Title)
	})

	t.Run("missing id", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.GetByIDAndOwner(ctx, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, repo.ErrNotFound)
		assert.ErrorIs(t, s.Update(ctx, newTask(uuid.New(), "ghost", nil, 0)), repo.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, uuid.New(), uuid.New()), repo.ErrNotFound)
	})

	t.Run("update keeps owner and refreshes course", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		owner := uuid.New()

		first := &course.Course{ID: uuid.New(), Title: "History", Code: "HIS100"}
		second := &course.Course{ID: uuid.New(), Title: "Physics", Code: "PHY100"}
		require.NoError(t, s.CreateCourse(ctx, first))
		require.NoError(t, s.CreateCourse(ctx, second))

		tk := newTask(owner, "Essay", at(time.Hour), 0)
		tk.CourseID = &first.ID
		require.NoError(t, s.Create(ctx, tk))

		tk.Apply(task.WithTitle("Lab"), task.WithCourse(second.ID))
		tk.Completed = true
		updatedAt := base.Add(2 * time.Hour)
		tk.UpdatedAt = &updatedAt
		require.NoError(t, s.Update(ctx, tk))
		require.NotNil(t, tk.Course)
		assert.Equal(t, "PHY100", tk.Course.Code)

		got, err := s.GetByIDAndOwner(ctx, tk.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, "Lab", got.Title)
		assert.True(t, got.Completed)
		assert.Equal(t, owner, got.UserID)
		require.NotNil(t, got.UpdatedAt)
		assert.True(t, updatedAt.Equal(*got.UpdatedAt))
	})

	t.Run("list ordering puts missing due dates last", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		owner := uuid.New()

		for _, tk := range []*task.Task{
			newTask(owner, "no due", nil, 0),
			newTask(owner, "in two days", at(48*time.Hour), 0),
			newTask(owner, "tomorrow newer", at(24*time.Hour), time.Minute),
			newTask(owner, "tomorrow older", at(24*time.Hour), 0),
			newTask(owner, "yesterday", at(-24*time.Hour), 0),
			newTask(uuid.New(), "someone else", at(-48*time.Hour), 0),
		} {
			require.NoError(t, s.Create(ctx, tk))
		}

		list, err := s.GetAllByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, []string{"yesterday", "tomorrow older", "tomorrow newer", "in two days", "no due"}, titles(list))
	})

	t.Run("overdue predicate", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		owner, other := uuid.New(), uuid.New()

		done := newTask(owner, "late but done", at(-2*time.Hour), 0)
		done.Completed = true
		for _, tk := range []*task.Task{
			newTask(owner, "late", at(-time.Hour), 0),
			newTask(owner, "very late", at(-48*time.Hour), 0),
			newTask(owner, "due now", at(0), 0),
			newTask(owner, "future", at(time.Hour), 0),
			newTask(owner, "no due", nil, 0),
			newTask(other, "other late", at(-time.Hour), 0),
			done,
		} {
			require.NoError(t, s.Create(ctx, tk))
		}

		overdue, err := s.GetOverdueByOwner(ctx, owner, base)
		require.NoError(t, err)
		assert.Equal(t, []string{"very late", "late"}, titles(overdue))

		count, err := s.CountOverdue(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("delete is final", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		owner := uuid.New()

		c := &course.Course{ID: uuid.New(), Title: "Chemistry", Code: "CHE100"}
		require.NoError(t, s.CreateCourse(ctx, c))
		tk := newTask(owner, "Old notes", nil, 0)
		tk.CourseID = &c.ID
		require.NoError(t, s.Create(ctx, tk))

		require.NoError(t, s.Delete(ctx, tk.ID, owner))
		_, err := s.GetByIDAndOwner(ctx, tk.ID, owner)
		assert.ErrorIs(t, err, repo.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, tk.ID, owner), repo.ErrNotFound)

		// курс удаление задачи не трогает
		another := newTask(owner, "New notes", nil, 0)
		another.CourseID = &c.ID
		require.NoError(t, s.Create(ctx, another))
		require.NotNil(t, another.Course)
	})
}
