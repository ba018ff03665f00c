package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arbd/internal/models"
)

// KillSwitchBackoff - пауза цикла при взведённом kill switch, не зависит от интервала стратегии
const KillSwitchBackoff = 10 * time.Second

// Strategy - конкретная стратегия, которую гоняет Loop
type Strategy interface {
	// Kind возвращает тип стратегии
	Kind() models.StrategyKind

	// Interval - пауза между итерациями опроса
	Interval() time.Duration

	// Discover один раз при старте определяет цели опроса (символы, пары, маршруты).
	// Ошибка фатальна для этой стратегии.
	Discover(ctx context.Context) ([]string, error)

	// Evaluate опрашивает площадки по цели, обновляет стор, проверяет сигнал и при необходимости исполняет.
	// Ошибка логируется, итерация продолжается со следующей цели.
	Evaluate(ctx context.Context, target string) error
}

// Loop - цикл одной стратегии: Discovering → Polling до отмены контекста
type Loop struct {
	strategy Strategy
	risk     *RiskEngine
	logger   *zap.Logger

	// backoff при kill switch; в тестах уменьшается
	backoff time.Duration
}

// NewLoop создаёт цикл стратегии
func NewLoop(strategy Strategy, risk *RiskEngine, logger *zap.Logger) *Loop {
	return &Loop{
		strategy: strategy,
		risk:     risk,
		logger:   logger.Named("loop").With(zap.String("strategy", string(strategy.Kind()))),
		backoff:  KillSwitchBackoff,
	}
}

// Run выполняет discovery и затем опрос до отмены контекста.
// Возвращает ошибку только при неудачном discovery; отмена контекста - nil.
func (l *Loop) Run(ctx context.Context) error {
	kind := string(l.strategy.Kind())

	targets, err := l.strategy.Discover(ctx)
	if err != nil {
		return fmt.Errorf("%s discovery failed: %w", kind, err)
	}
	l.logger.Info("Strategy loop started",
		zap.Strings("targets", targets),
		zap.Duration("interval", l.strategy.Interval()))

	StrategyRunning.WithLabelValues(kind).Set(1)
	defer StrategyRunning.WithLabelValues(kind).Set(0)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if l.risk.IsKillSwitchActive() {
			l.logger.Warn("Kill switch active, pausing strategy loop", zap.Duration("backoff", l.backoff))
			if !sleepCtx(ctx, l.backoff) {
				return nil
			}
			continue
		}

		l.poll(ctx, targets)

		if !sleepCtx(ctx, l.strategy.Interval()) {
			return nil
		}
	}
}

// poll - одна итерация над всеми целями
func (l *Loop) poll(ctx context.Context, targets []string) {
	kind := string(l.strategy.Kind())
	start := time.Now()
	defer func() {
		PollDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	for _, target := range targets {
		if ctx.Err() != nil {
			return
		}
		if err := l.strategy.Evaluate(ctx, target); err != nil {
			EvaluationErrors.WithLabelValues(kind).Inc()
			l.logger.Error("Error checking opportunity",
				zap.String("target", target),
				zap.Error(err))
		}
	}
}

// sleepCtx ждёт d или отмены контекста; false - контекст отменён
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// ============================================================
// Runner - запуск всех включённых стратегий
// ============================================================

// Runner запускает по горутине на стратегию и фоновые задачи.
// Ошибка одной стратегии логируется и не затрагивает остальные.
type Runner struct {
	loops  []*Loop
	tasks  []namedTask
	logger *zap.Logger
}

type namedTask struct {
	name string
	run  func(ctx context.Context)
}

// NewRunner создаёт пустой Runner
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger.Named("runner")}
}

// Add добавляет цикл стратегии
func (r *Runner) Add(l *Loop) {
	r.loops = append(r.loops, l)
}

// AddTask добавляет фоновую задачу, работающую до отмены контекста
func (r *Runner) AddTask(name string, run func(ctx context.Context)) {
	r.tasks = append(r.tasks, namedTask{name: name, run: run})
}

// Len - число циклов стратегий
func (r *Runner) Len() int {
	return len(r.loops)
}

// Run блокирует до завершения всех циклов и задач (обычно - до отмены контекста)
func (r *Runner) Run(ctx context.Context) error {
	if len(r.loops) == 0 {
		return fmt.Errorf("no strategy loops to run")
	}

	var g errgroup.Group

	for _, l := range r.loops {
		l := l
		g.Go(func() error {
			if err := l.Run(ctx); err != nil {
				// изоляция: ошибка не отменяет остальные стратегии
				r.logger.Error("Strategy stopped", zap.String("strategy", string(l.strategy.Kind())), zap.Error(err))
			}
			return nil
		})
	}

	for _, t := range r.tasks {
		t := t
		g.Go(func() error {
			t.run(ctx)
			r.logger.Debug("Background task stopped", zap.String("task", t.name))
			return nil
		})
	}

	return g.Wait()
}
