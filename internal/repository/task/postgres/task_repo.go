package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"studyTracker/internal/logger"
	"studyTracker/internal/models/course"
	"studyTracker/internal/models/task"
	repo "studyTracker/internal/repository"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const slowQuery = 100 * time.Millisecond

// колонки задачи и прикреплённого курса, порядок совпадает со scanTask
const taskColumns = `t.id, t.title, t.due_date, t.priority, t.completed, t.user_id, t.course_id,
		t.created_at, t.updated_at, c.id, c.title, c.code, c.created_at`

const courseJoin = `LEFT JOIN courses c ON c.id = t.course_id`

// сортировка списков, NULL дедлайны в конце
const orderByDueDate = `ORDER BY t.due_date ASC NULLS LAST, t.created_at ASC, t.id ASC`

type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

func New(ctx context.Context, connString string, pc PoolConfig) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = 5 * time.Minute
	if pc.MaxConns > 0 {
		config.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		config.MinConns = pc.MinConns
	}
	if pc.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool, connString: connString}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

// CreateCourse добавляет курс или обновляет название и код существующего с тем же id
func (s *Storage) CreateCourse(ctx context.Context, c *course.Course) error {
	query := `INSERT INTO courses (id, title, code, created_at)
				VALUES ($1, $2, $3, COALESCE($4, NOW()))
				ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, code = EXCLUDED.code
				RETURNING created_at`

	var createdAt *time.Time
	if !c.CreatedAt.IsZero() {
		createdAt = &c.CreatedAt
	}

	if err := s.pool.QueryRow(ctx, query, c.ID, c.Title, c.Code, createdAt).Scan(&c.CreatedAt); err != nil {
		logger.Error("Repository: Не удалось добавить курс", err)
		return fmt.Errorf("добавление курса: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()
	defer warnIfSlow("create", start)

	query := `WITH t AS (
				INSERT INTO tasks
					(id, title, due_date, priority, completed, user_id, course_id, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING *
			)
			SELECT ` + taskColumns + ` FROM t ` + courseJoin

	createdAt := taskToCreate.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	created, err := scanTask(s.pool.QueryRow(ctx, query,
		taskToCreate.ID,
		taskToCreate.Title,
		taskToCreate.DueDate,
		taskToCreate.Priority,
		taskToCreate.Completed,
		taskToCreate.UserID,
		taskToCreate.CourseID,
		createdAt,
	))
	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	*taskToCreate = *created
	return nil
}

// Update пишет изменяемые поля; условие по владельцу повторяется и здесь
func (s *Storage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	start := time.Now()
	defer warnIfSlow("update", start)

	query := `WITH t AS (
				UPDATE tasks
				SET title = $1,
					due_date = $2,
					priority = $3,
					completed = $4,
					course_id = $5,
					updated_at = COALESCE($6, NOW())
				WHERE id = $7 AND user_id = $8
				RETURNING *
			)
			SELECT ` + taskColumns + ` FROM t ` + courseJoin

	updated, err := scanTask(s.pool.QueryRow(ctx, query,
		taskToUpdate.Title,
		taskToUpdate.DueDate,
		taskToUpdate.Priority,
		taskToUpdate.Completed,
		taskToUpdate.CourseID,
		taskToUpdate.UpdatedAt,
		taskToUpdate.ID,
		taskToUpdate.UserID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("Repository: Задача исчезла до обновления",
				zap.String("task_id", taskToUpdate.ID.String()))
			return repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}

	*taskToUpdate = *updated
	return nil
}

func (s *Storage) GetByIDAndOwner(ctx context.Context, id, owner uuid.UUID) (*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("get_by_id", start)

	query := `SELECT ` + taskColumns + `
				FROM tasks t ` + courseJoin + `
				WHERE t.id = $1 AND t.user_id = $2`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id, owner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return t, nil
}

func (s *Storage) GetAllByOwner(ctx context.Context, owner uuid.UUID) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
				FROM tasks t ` + courseJoin + `
				WHERE t.user_id = $1
				` + orderByDueDate

	return s.queryTasks(ctx, "get_all", query, owner)
}

func (s *Storage) GetOverdueByOwner(ctx context.Context, owner uuid.UUID, now time.Time) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
				FROM tasks t ` + courseJoin + `
				WHERE t.user_id = $1
					AND t.completed = FALSE
					AND t.due_date < $2
				` + orderByDueDate

	return s.queryTasks(ctx, "get_overdue", query, owner, now)
}

// полное удаление из БД
func (s *Storage) Delete(ctx context.Context, id, owner uuid.UUID) error {
	start := time.Now()
	defer warnIfSlow("delete", start)

	query := `DELETE FROM tasks
				WHERE id = $1 AND user_id = $2`

	tag, err := s.pool.Exec(ctx, query, id, owner)
	if err != nil {
		logger.Error("Repository: Полное удаление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	defer warnIfSlow("count_overdue", start)

	query := `SELECT COUNT(*) FROM tasks
				WHERE completed = FALSE AND due_date < $1`

	var count int
	if err := s.pool.QueryRow(ctx, query, now).Scan(&count); err != nil {
		logger.Error("Repository: Не удалось посчитать просроченные задачи", err)
		return 0, fmt.Errorf("подсчёт просроченных задач: %w", err)
	}
	return count, nil
}

func (s *Storage) queryTasks(ctx context.Context, operation, query string, args ...any) ([]*task.Task, error) {
	start := time.Now()
	defer warnIfSlow(operation, start)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Error("Repository: Ошибка сканирования задачи", err)
			return nil, fmt.Errorf("сканирование задачи: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return tasks, nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	var (
		courseID        *uuid.UUID
		courseTitle     *string
		courseCode      *string
		courseCreatedAt *time.Time
	)

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.DueDate,
		&t.Priority,
		&t.Completed,
		&t.UserID,
		&t.CourseID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&courseID,
		&courseTitle,
		&courseCode,
		&courseCreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if courseID != nil {
		c := &course.Course{ID: *courseID}
		if courseTitle != nil {
			c.Title = *courseTitle
		}
		if courseCode != nil {
			c.Code = *courseCode
		}
		if courseCreatedAt != nil {
			c.CreatedAt = *courseCreatedAt
		}
		t.Course = c
	}
	return t, nil
}

func warnIfSlow(operation string, start time.Time) {
	if elapsed := time.Since(start); elapsed > slowQuery {
		logger.Warn("Repository: Медленный запрос",
			zap.String("operation", operation),
			zap.Duration("ms", elapsed))
	}
}

func (s *Storage) Migrate(ctx context.Context) error {
	logger.Info("Repository: Применение миграций")

	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка применения миграций", err)
		return fmt.Errorf("применение миграций: %w", err)
	}

	logger.Info("Repository: Миграции применены")
	return nil
}

func (s *Storage) Down(ctx context.Context) error {
	logger.Info("Repository: Откат миграций")

	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка отката миграций", err)
		return fmt.Errorf("откат миграций: %w", err)
	}

	logger.Info("Repository: Миграции откачены")
	return nil
}

func (s *Storage) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("чтение миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(s.connString))
	if err != nil {
		logger.Error("Repository: Не удалось подготовить миграции", err)
		return nil, fmt.Errorf("подготовка миграций: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("Repository: Ошибка закрытия источника миграций", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("Repository: Ошибка закрытия соединения миграций", zap.Error(dbErr))
	}
}

// golang-migrate регистрирует драйвер pgx/v5 под схемой pgx5://
func migrateURL(connString string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}
