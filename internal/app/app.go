package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"studyTracker/internal/auth"
	"studyTracker/internal/config"
	"studyTracker/internal/handlers"
	"studyTracker/internal/logger"
	"studyTracker/internal/models/course"
	"studyTracker/internal/repository/task/inmemory"
	"studyTracker/internal/repository/task/postgres"
	"studyTracker/internal/repository/task/sqlite"
	"studyTracker/internal/service"
	"studyTracker/internal/worker"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository - хранилище задач вместе со справочником курсов
type Repository interface {
	service.TaskRepository
	CreateCourse(ctx context.Context, c *course.Course) error
}

type App struct {
	config     *config.Config
	server     *http.Server
	handler    http.Handler
	repository Repository
	service    *service.TaskService
	tokens     *auth.JWTManager
	worker     *worker.OverdueWorker
	shutdowns  []func() // выполняются в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return nil, fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	tp := initTracing()
	a.shutdowns = append(a.shutdowns, func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error("Ошибка остановки трассировки", err)
		}
	})

	if err := a.initRepository(ctx); err != nil {
		a.Shutdown()
		return nil, err
	}
	if err := a.seedCourses(ctx); err != nil {
		a.Shutdown()
		return nil, err
	}

	clock := service.SystemClock{}
	a.service = service.NewTaskService(a.repository, clock)
	a.tokens = auth.NewJWTManager(auth.JWTConfig{
		SecretKey:           a.config.Auth.Secret,
		AccessTokenDuration: a.config.Auth.TokenTTL,
		Issuer:              a.config.Auth.Issuer,
	})

	taskHandler := handlers.NewTaskHandler(a.service, clock)
	a.handler = NewRouter(taskHandler, a.tokens, a.config.Server)

	if a.config.Worker.Enabled {
		a.worker = worker.NewOverdueWorker(a.repository, clock, a.config.Worker.Interval)
	}

	logger.Info("Приложение инициализировано",
		zap.String("repository", a.config.Repository.Type),
		zap.Bool("worker", a.worker != nil))
	return a, nil
}

func (a *App) initRepository(ctx context.Context) error {
	switch a.config.Repository.Type {
	case config.RepositoryPostgres:
		storage, err := postgres.New(ctx, a.config.Database.URL, postgres.PoolConfig{
			MaxConns:        int32(a.config.Database.MaxConnections),
			MinConns:        int32(a.config.Database.MinConnections),
			MaxConnIdleTime: a.config.Database.IdleTimeout,
		})
		if err != nil {
			return fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		a.shutdowns = append(a.shutdowns, storage.Close)

		if err := storage.Migrate(ctx); err != nil {
			return fmt.Errorf("миграции PostgreSQL: %w", err)
		}
		a.repository = storage

	case config.RepositorySqlite:
		storage, err := sqlite.New(a.config.Sqlite.Path)
		if err != nil {
			return fmt.Errorf("открытие SQLite: %w", err)
		}
		a.shutdowns = append(a.shutdowns, func() {
			if err := storage.Close(); err != nil {
				logger.Error("Ошибка закрытия SQLite", err)
			}
		})
		a.repository = storage

	case config.RepositoryInMemory:
		a.repository = inmemory.NewTaskStorage()

	default:
		return fmt.Errorf("неизвестный тип репозитория: %q", a.config.Repository.Type)
	}
	return nil
}

func (a *App) seedCourses(ctx context.Context) error {
	for _, cc := range a.config.Courses {
		id, err := uuid.Parse(cc.ID)
		if err != nil {
			return fmt.Errorf("id курса %q: %w", cc.ID, err)
		}
		if err := a.repository.CreateCourse(ctx, &course.Course{ID: id, Title: cc.Title, Code: cc.Code}); err != nil {
			return fmt.Errorf("заполнение справочника курсов: %w", err)
		}
	}
	if len(a.config.Courses) > 0 {
		logger.Info("Справочник курсов заполнен", zap.Int("count", len(a.config.Courses)))
	}
	return nil
}

// Handler отдаёт собранный роутер, нужен тестам и для встраивания
func (a *App) Handler() http.Handler {
	return a.handler
}

// Tokens выпускает и проверяет токены доступа этого приложения
func (a *App) Tokens() *auth.JWTManager {
	return a.tokens
}

// Run обслуживает запросы, пока не отменён ctx, затем корректно останавливает сервер
func (a *App) Run(ctx context.Context) error {
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           a.handler,
		ReadTimeout:       a.config.Server.ReadTimeout,
		ReadHeaderTimeout: a.config.Server.ReadTimeout,
		WriteTimeout:      a.config.Server.WriteTimeout,
	}

	if a.worker != nil {
		workerCtx, cancel := context.WithCancel(ctx)
		a.shutdowns = append(a.shutdowns, cancel)
		go a.worker.Start(workerCtx)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.Shutdown()
		return fmt.Errorf("запуск сервера: %w", err)
	case <-ctx.Done():
		logger.Info("Получен сигнал остановки")
	}

	timeout := a.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error("Ошибка остановки сервера", err)
	}
	a.Shutdown()
	return err
}

func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
