package worker

import (
	"context"
	"fmt"
	"time"

	"studyTracker/internal/logger"
	"studyTracker/internal/metrics"
	"studyTracker/internal/service"

	"go.uber.org/zap"
)

const defaultInterval = 5 * time.Minute

// OverdueCounter - часть хранилища, нужная воркеру
type OverdueCounter interface {
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}

// OverdueWorker периодически считает просроченные задачи всех пользователей
// и публикует число в метрике. Задачи он не меняет: просроченность вычисляется при чтении.
type OverdueWorker struct {
	repo     OverdueCounter
	clock    service.Clock
	interval time.Duration
}

func NewOverdueWorker(repo OverdueCounter, clock service.Clock, interval time.Duration) *OverdueWorker {
	if interval <= 0 {
		interval = defaultInterval
	}
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &OverdueWorker{
		repo:     repo,
		clock:    clock,
		interval: interval,
	}
}

func (w *OverdueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: Фоновая проверка запущена", zap.Duration("interval", w.interval))
	w.Check(ctx)

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая проверка останавливается")
			return
		}
	}
}

// Check делает один проход; при ошибке хранилища метрика остаётся прежней
func (w *OverdueWorker) Check(ctx context.Context) (int, error) {
	start := time.Now()

	count, err := w.repo.CountOverdue(ctx, w.clock.Now())
	if err != nil {
		logger.Warn("Worker: Ошибка подсчёта просроченных задач", zap.Error(err))
		return 0, fmt.Errorf("подсчёт просроченных задач: %w", err)
	}

	metrics.OverdueTasks.Set(float64(count))
	logger.Info("Worker: Завершение проверки задач",
		zap.Duration("ms", time.Since(start)),
		zap.Int("overdue", count))
	return count, nil
}
