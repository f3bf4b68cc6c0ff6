package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studyTracker/internal/logger"
	"studyTracker/internal/models/course"
	"studyTracker/internal/models/task"
	repo "studyTracker/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type courseRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Title     string    `gorm:"size:255;not null"`
	Code      string    `gorm:"size:64;not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
}

func (courseRecord) TableName() string {
	return "courses"
}

type taskRecord struct {
	ID        string        `gorm:"primaryKey;size:36"`
	Title     string        `gorm:"not null"`
	DueDate   *time.Time    `gorm:"index:idx_tasks_user_due,priority:2"`
	Priority  string        `gorm:"size:16;not null;default:Medium"`
	Completed bool          `gorm:"not null;default:false"`
	UserID    string        `gorm:"size:36;not null;index:idx_tasks_user_due,priority:1"`
	CourseID  *string       `gorm:"size:36"`
	Course    *courseRecord `gorm:"foreignKey:CourseID;constraint:OnDelete:SET NULL"`
	CreatedAt time.Time     `gorm:"not null"`
	UpdatedAt *time.Time    `gorm:"autoUpdateTime:false"`
}

func (taskRecord) TableName() string {
	return "tasks"
}

// Storage - реализация хранилища задач поверх GORM и SQLite.
// Время хранится в UTC: SQLite сравнивает даты как строки.
type Storage struct {
	db *gorm.DB
}

func New(path string) (*Storage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Error("Repository: Не удалось открыть SQLite", err)
		return nil, fmt.Errorf("открытие SQLite: %w", err)
	}

	storage, err := newStorage(db)
	if err != nil {
		return nil, err
	}
	logger.Info("Repository: SQLite готова", zap.String("path", path))
	return storage, nil
}

// newStorage настраивает соединение и схему, при любой ошибке закрывает db
func newStorage(db *gorm.DB) (*Storage, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("получение *sql.DB: %w", err)
	}
	// одно соединение: :memory: у каждого соединения своя база, а запись в SQLite всё равно последовательная
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("включение внешних ключей: %w", err)
	}

	if err := db.AutoMigrate(&courseRecord{}, &taskRecord{}); err != nil {
		logger.Error("Repository: Ошибка миграции SQLite", err)
		_ = sqlDB.Close()
		return nil, fmt.Errorf("миграция SQLite: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("получение *sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) CreateCourse(ctx context.Context, c *course.Course) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	record := courseRecord{
		ID:        c.ID.String(),
		Title:     c.Title,
		Code:      c.Code,
		CreatedAt: c.CreatedAt.UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "code"}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("добавление курса: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now()
	}

	record := toRecord(taskToCreate)
	// Select("*") чтобы completed=false не заменялся значением по умолчанию
	if err := s.db.WithContext(ctx).Select("*").Omit("Course").Create(record).Error; err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err)
		return fmt.Errorf("добавление задачи: %w", err)
	}

	return s.reload(ctx, taskToCreate)
}

func (s *Storage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	record := toRecord(taskToUpdate)
	if record.UpdatedAt == nil {
		now := time.Now().UTC()
		record.UpdatedAt = &now
	}

	result := s.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("id = ? AND user_id = ?", record.ID, record.UserID).
		Updates(map[string]any{
			"title":      record.Title,
			"due_date":   record.DueDate,
			"priority":   record.Priority,
			"completed":  record.Completed,
			"course_id":  record.CourseID,
			"updated_at": record.UpdatedAt,
		})
	if err := result.Error; err != nil {
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}

	return s.reload(ctx, taskToUpdate)
}

func (s *Storage) GetByIDAndOwner(ctx context.Context, id, owner uuid.UUID) (*task.Task, error) {
	var record taskRecord
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("id = ? AND user_id = ?", id.String(), owner.String()).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err)
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return fromRecord(&record)
}

func (s *Storage) GetAllByOwner(ctx context.Context, owner uuid.UUID) ([]*task.Task, error) {
	return s.find(s.db.WithContext(ctx).Where("user_id = ?", owner.String()))
}

func (s *Storage) GetOverdueByOwner(ctx context.Context, owner uuid.UUID, now time.Time) ([]*task.Task, error) {
	return s.find(s.db.WithContext(ctx).
		Where("user_id = ? AND completed = ? AND due_date IS NOT NULL AND due_date < ?", owner.String(), false, now.UTC()))
}

func (s *Storage) Delete(ctx context.Context, id, owner uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id.String(), owner.String()).
		Delete(&taskRecord{})
	if err := result.Error; err != nil {
		logger.Error("Repository: Не удалось удалить задачу", err)
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("completed = ? AND due_date IS NOT NULL AND due_date < ?", false, now.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("подсчёт просроченных задач: %w", err)
	}
	return int(count), nil
}

func (s *Storage) find(query *gorm.DB) ([]*task.Task, error) {
	var records []taskRecord
	err := query.
		Preload("Course").
		Order("due_date IS NULL").
		Order("due_date ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err)
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	tasks := make([]*task.Task, 0, len(records))
	for i := range records {
		t, err := fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// reload перечитывает задачу вместе с курсом после записи
func (s *Storage) reload(ctx context.Context, t *task.Task) error {
	stored, err := s.GetByIDAndOwner(ctx, t.ID, t.UserID)
	if err != nil {
		return err
	}
	*t = *stored
	return nil
}

func toRecord(t *task.Task) *taskRecord {
	record := &taskRecord{
		ID:        t.ID.String(),
		Title:     t.Title,
		Priority:  string(t.Priority),
		Completed: t.Completed,
		UserID:    t.UserID.String(),
		CreatedAt: t.CreatedAt.UTC(),
	}
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		record.DueDate = &due
	}
	if t.CourseID != nil {
		courseID := t.CourseID.String()
		record.CourseID = &courseID
	}
	if t.UpdatedAt != nil {
		updated := t.UpdatedAt.UTC()
		record.UpdatedAt = &updated
	}
	return record
}

func fromRecord(record *taskRecord) (*task.Task, error) {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return nil, fmt.Errorf("разбор id задачи: %w", err)
	}
	userID, err := uuid.Parse(record.UserID)
	if err != nil {
		return nil, fmt.Errorf("разбор id пользователя: %w", err)
	}

	t := &task.Task{
		ID:        id,
		Title:     record.Title,
		DueDate:   record.DueDate,
		Priority:  task.Priority(record.Priority),
		Completed: record.Completed,
		UserID:    userID,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}

	if record.CourseID != nil {
		courseID, err := uuid.Parse(*record.CourseID)
		if err != nil {
			return nil, fmt.Errorf("разбор id курса: %w", err)
		}
		t.CourseID = &courseID
	}

	if record.Course != nil {
		courseID, err := uuid.Parse(record.Course.ID)
		if err != nil {
			return nil, fmt.Errorf("разбор id курса: %w", err)
		}
		t.Course = &course.Course{
			ID:        courseID,
			Title:     record.Course.Title,
			Code:      record.Course.Code,
			CreatedAt: record.Course.CreatedAt,
		}
	}
	return t, nil
}
