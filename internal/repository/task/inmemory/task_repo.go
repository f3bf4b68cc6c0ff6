package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"studyTracker/internal/logger"
	"studyTracker/internal/models/course"
	"studyTracker/internal/models/task"
	repo "studyTracker/internal/repository"

	"github.com/google/uuid"
)

// TaskStorage хранит задачи и справочник курсов в памяти.
// Наружу отдаются только копии, чтобы вызывающий не мог поменять хранилище в обход Update.
type TaskStorage struct {
	storage map[uuid.UUID]*task.Task
	courses map[uuid.UUID]*course.Course
	mtx     *sync.RWMutex
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[uuid.UUID]*task.Task),
		courses: make(map[uuid.UUID]*course.Course),
		mtx:     &sync.RWMutex{},
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func (s *TaskStorage) CreateCourse(ctx context.Context, c *course.Course) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	cp := *c
	s.courses[c.ID] = &cp
	return nil
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now()
	}

	s.storage[taskToCreate.ID] = s.detach(taskToCreate)
	taskToCreate.Course = s.courseFor(taskToCreate)
	return nil
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existed, ok := s.storage[taskToUpdate.ID]
	if !ok || !existed.OwnedBy(taskToUpdate.UserID) {
		return repo.ErrNotFound
	}

	if taskToUpdate.UpdatedAt == nil {
		now := time.Now()
		taskToUpdate.UpdatedAt = &now
	}

	s.storage[taskToUpdate.ID] = s.detach(taskToUpdate)
	taskToUpdate.Course = s.courseFor(taskToUpdate)
	return nil
}

func (s *TaskStorage) GetByIDAndOwner(ctx context.Context, id, owner uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.storage[id]
	if !ok || !taskToGet.OwnedBy(owner) {
		return nil, repo.ErrNotFound
	}
	return s.attach(taskToGet), nil
}

func (s *TaskStorage) GetAllByOwner(ctx context.Context, owner uuid.UUID) ([]*task.Task, error) {
	return s.filter(func(t *task.Task) bool {
		return t.OwnedBy(owner)
	}), nil
}

func (s *TaskStorage) GetOverdueByOwner(ctx context.Context, owner uuid.UUID, now time.Time) ([]*task.Task, error) {
	return s.filter(func(t *task.Task) bool {
		return t.OwnedBy(owner) && t.IsOverdue(now)
	}), nil
}

// полное удаление, мягкого удаления у задач нет
func (s *TaskStorage) Delete(ctx context.Context, id, owner uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existed, ok := s.storage[id]
	if !ok || !existed.OwnedBy(owner) {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	return nil
}

func (s *TaskStorage) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	count := 0
	for _, t := range s.storage {
		if t.IsOverdue(now) {
			count++
		}
	}
	return count, nil
}

func (s *TaskStorage) filter(match func(*task.Task) bool) []*task.Task {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Task{}
	for _, t := range s.storage {
		if match(t) {
			res = append(res, s.attach(t))
		}
	}

	slices.SortStableFunc(res, task.CompareByDueDate)
	return res
}

// detach готовит копию для хранения: курс хранится отдельно и подставляется при чтении
func (s *TaskStorage) detach(t *task.Task) *task.Task {
	stored := t.Clone()
	stored.Course = nil
	return stored
}

func (s *TaskStorage) attach(t *task.Task) *task.Task {
	res := t.Clone()
	res.Course = s.courseFor(t)
	return res
}

func (s *TaskStorage) courseFor(t *task.Task) *course.Course {
	if t.CourseID == nil {
		return nil
	}
	c, ok := s.courses[*t.CourseID]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}
