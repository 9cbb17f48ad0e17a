// Package scheduler 提供显式注册、可取消、可手动触发的周期任务，
// 替代散落各处的定时器。时钟可注入，测试可以推进虚拟时间。
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"FundAgent/internal/errors"
	"FundAgent/pkg/logger"
)

// Clock 抽象时间来源。
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker 抽象周期触发源。
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()               { t.ticker.Stop() }

// Task 是一个已注册的周期任务。
type Task struct {
	Name     string
	Interval time.Duration
	LastRun  time.Time
	Runs     int
}

type handle struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
	trigger  chan struct{}

	mu      sync.Mutex
	lastRun time.Time
	runs    int
}

// Scheduler 管理一组周期任务的生命周期。
type Scheduler struct {
	clock   Clock
	log     *slog.Logger
	mu      sync.Mutex
	tasks   map[string]*handle
	order   []string
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option 配置调度器。
type Option func(*Scheduler)

// WithClock 注入自定义时钟。
func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// New 创建调度器。
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock: realClock{},
		log:   logger.Named("scheduler"),
		tasks: make(map[string]*handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every 注册一个周期任务。必须在 Start 之前完成注册。
func (s *Scheduler) Every(name string, interval time.Duration, fn func(context.Context)) error {
	if name == "" || interval <= 0 || fn == nil {
		return errors.New(errors.CodeInvalidArgument, "周期任务的名称、间隔与执行体都不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New(errors.CodeInvalidArgument, "调度器启动后不能再注册任务")
	}
	if _, exists := s.tasks[name]; exists {
		return errors.New(errors.CodeInvalidArgument, "任务名称重复: "+name)
	}
	s.tasks[name] = &handle{
		name:     name,
		interval: interval,
		fn:       fn,
		trigger:  make(chan struct{}, 1),
	}
	s.order = append(s.order, name)
	return nil
}

// Start 为每个任务启动独立的循环，任务间互不阻塞。
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, name := range s.order {
		task := s.tasks[name]
		ticker := s.clock.NewTicker(task.interval)
		s.wg.Add(1)
		go s.run(runCtx, task, ticker)
	}
	s.mu.Unlock()

	s.log.Info("调度器已启动", slog.Int("tasks", len(s.order)))
}

func (s *Scheduler) run(ctx context.Context, task *handle, ticker Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.execute(ctx, task)
		case <-task.trigger:
			s.execute(ctx, task)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, task *handle) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("周期任务发生 panic",
				slog.String("task", task.name), slog.Any("panic", r))
		}
	}()

	task.fn(ctx)

	task.mu.Lock()
	task.lastRun = s.clock.Now()
	task.runs++
	task.mu.Unlock()
}

// Trigger 在计划之外立刻触发一次任务。同名触发已排队时直接合并。
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return errors.New(errors.CodeNotFound, "未注册的任务: "+name)
	}
	select {
	case task.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Tasks 返回全部任务的快照，按注册顺序排列。
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Task, 0, len(s.order))
	for _, name := range s.order {
		task := s.tasks[name]
		task.mu.Lock()
		snapshot = append(snapshot, Task{
			Name:     task.name,
			Interval: task.interval,
			LastRun:  task.lastRun,
			Runs:     task.runs,
		})
		task.mu.Unlock()
	}
	return snapshot
}

// Stop 取消全部任务并等待循环退出。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
