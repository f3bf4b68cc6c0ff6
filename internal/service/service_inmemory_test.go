package service_test

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"studyTracker/internal/models/task"
	"studyTracker/internal/repository/task/inmemory"
	"studyTracker/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверки поведения сервиса на настоящем in-memory хранилище
// со случайно сгенерированными задачами нескольких пользователей.

func seedRandomTasks(t *testing.T, svc *service.TaskService, rng *rand.Rand, users []uuid.UUID, n int) map[uuid.UUID][]*task.Task {
	t.Helper()
	ctx := context.Background()
	priorities := []task.Priority{task.PriorityLow, task.PriorityMedium, task.PriorityHigh}
	byUser := make(map[uuid.UUID][]*task.Task)

	for i := 0; i < n; i++ {
		user := users[rng.IntN(len(users))]
		var options []task.TaskOption
		if rng.IntN(4) != 0 {
			offset := time.Duration(rng.IntN(240)-120) * time.Hour
			options = append(options, task.WithDueDate(testNow.Add(offset)))
		}
		options = append(options, task.WithPriority(priorities[rng.IntN(len(priorities))]))

		created, err := svc.CreateTask(ctx, user, "task", options...)
		require.NoError(t, err)
		if rng.IntN(3) == 0 {
			created, err = svc.ToggleTask(ctx, user, created.ID)
			require.NoError(t, err)
		}
		byUser[user] = append(byUser[user], created)
	}
	return byUser
}

func TestTaskService_OwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))
	svc := service.NewTaskService(inmemory.NewTaskStorage(), fixedClock{testNow})

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	byUser := seedRandomTasks(t, svc, rng, users, 60)

	for _, owner := range users {
		listed, err := svc.ListTasks(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, listed, len(byUser[owner]))
		for _, tk := range listed {
			assert.Equal(t, owner, tk.UserID)
		}

		for _, other := range users {
			if other == owner {
				continue
			}
			for _, foreign := range byUser[other] {
				_, err := svc.GetTask(ctx, owner, foreign.ID)
				requireCode(t, err, service.CodeNotFound)
				_, err = svc.UpdateTask(ctx, owner, foreign.ID, task.WithTitle("stolen"))
				requireCode(t, err, service.CodeNotFound)
				_, err = svc.ToggleTask(ctx, owner, foreign.ID)
				requireCode(t, err, service.CodeNotFound)
				requireCode(t, svc.DeleteTask(ctx, owner, foreign.ID), service.CodeNotFound)
			}
		}
	}

	// после всех попыток чужие задачи не изменились
	for owner, tasks := range byUser {
		for _, before := range tasks {
			after, err := svc.GetTask(ctx, owner, before.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Title, after.Title)
			assert.Equal(t, before.Completed, after.Completed)
		}
	}
}

func TestTaskService_OverduePredicate(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(3, 4))
	svc := service.NewTaskService(inmemory.NewTaskStorage(), fixedClock{testNow})

	users := []uuid.UUID{uuid.New(), uuid.New()}
	byUser := seedRandomTasks(t, svc, rng, users, 80)

	for _, owner := range users {
		var expected []uuid.UUID
		for _, tk := range byUser[owner] {
			if !tk.Completed && tk.DueDate != nil && tk.DueDate.Before(testNow) {
				expected = append(expected, tk.ID)
			}
		}

		overdue, err := svc.ListOverdueTasks(ctx, owner)
		require.NoError(t, err)

		got := make([]uuid.UUID, len(overdue))
		for i, tk := range overdue {
			got[i] = tk.ID
		}
		assert.ElementsMatch(t, expected, got)
		assert.True(t, slices.IsSortedFunc(overdue, task.CompareByDueDate))
	}
}

func TestTaskService_ListOrdering(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(5, 6))
	svc := service.NewTaskService(inmemory.NewTaskStorage(), fixedClock{testNow})

	user := uuid.New()
	seedRandomTasks(t, svc, rng, []uuid.UUID{user}, 40)

	listed, err := svc.ListTasks(ctx, user)
	require.NoError(t, err)
	assert.True(t, slices.IsSortedFunc(listed, task.CompareByDueDate))

	// задачи без дедлайна идут последними
	seenNil := false
	for _, tk := range listed {
		if tk.DueDate == nil {
			seenNil = true
			continue
		}
		assert.False(t, seenNil, "задача с дедлайном после задачи без дедлайна")
	}
}

func TestTaskService_PartialUpdateIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := service.NewTaskService(inmemory.NewTaskStorage(), fixedClock{testNow})
	user := uuid.New()
	due := testNow.Add(72 * time.Hour)

	created, err := svc.CreateTask(ctx, user, "Essay", task.WithDueDate(due), task.WithPriority(task.PriorityLow))
	require.NoError(t, err)

	options := []task.TaskOption{task.WithPriority(task.PriorityHigh)}
	once, err := svc.UpdateTask(ctx, user, created.ID, options...)
	require.NoError(t, err)
	twice, err := svc.UpdateTask(ctx, user, created.ID, options...)
	require.NoError(t, err)

	assert.Equal(t, "Essay", once.Title)
	assert.Equal(t, due, *once.DueDate)
	assert.Equal(t, task.PriorityHigh, once.Priority)
	assert.Equal(t, once.Title, twice.Title)
	assert.Equal(t, once.Priority, twice.Priority)
	assert.Equal(t, *once.DueDate, *twice.DueDate)
}

func TestTaskService_ToggleTwiceRestores(t *testing.T) {
	ctx := context.Background()
	svc := service.NewTaskService(inmemory.NewTaskStorage(), fixedClock{testNow})
	user := uuid.New()

	created, err := svc.CreateTask(ctx, user, "Flashcards")
	require.NoError(t, err)

	_, err = svc.ToggleTask(ctx, user, created.ID)
	require.NoError(t, err)
	restored, err := svc.ToggleTask(ctx, user, created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.Completed, restored.Completed)
	assert.Equal(t, created.Title, restored.Title)
	assert.Equal(t, created.Priority, restored.Priority)
}

func TestTaskService_DeleteIsFinal(t *testing.T) {
	ctx := context.Background()
	svc := service.NewTaskService(inmemory.NewTaskStorage(), fixedClock{testNow})
	user := uuid.New()

	created, err := svc.CreateTask(ctx, user, "Old notes")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTask(ctx, user, created.ID))

	_, err = svc.GetTask(ctx, user, created.ID)
	requireCode(t, err, service.CodeNotFound)
	requireCode(t, svc.DeleteTask(ctx, user, created.ID), service.CodeNotFound)

	listed, err := svc.ListTasks(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
