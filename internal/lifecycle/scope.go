// Package lifecycle runs the foreground work of one command and unwinds the
// resources it opened, last opened first.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTeardownTimeout bounds each teardown step.
const DefaultTeardownTimeout = 5 * time.Second

type step struct {
	name string
	fn   func(context.Context) error
}

// Scope owns the tasks of one command invocation (a headless exec or a TUI
// session) and the teardown steps for what they opened.
type Scope struct {
	logger  *slog.Logger
	timeout time.Duration

	mu       sync.Mutex
	tasks    []step
	teardown []step
}

func NewScope(logger *slog.Logger) *Scope {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scope{
		logger:  logger.With("module", "lifecycle"),
		timeout: DefaultTeardownTimeout,
	}
}

// SetTeardownTimeout overrides the per-step bound; d <= 0 means no bound.
func (s *Scope) SetTeardownTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// Go registers a foreground task. The first task to fail cancels the rest.
func (s *Scope) Go(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, step{name: name, fn: fn})
	s.mu.Unlock()
}

// OnTeardown registers a step that runs after every task has returned.
// Steps run in reverse registration order.
func (s *Scope) OnTeardown(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.teardown = append(s.teardown, step{name: name, fn: fn})
	s.mu.Unlock()
}

// Run starts all tasks and waits for them, then tears down. It returns the
// first task error joined with every teardown error. Cancellation of ctx is
// not an error.
func (s *Scope) Run(ctx context.Context) error {
	s.mu.Lock()
	tasks := append([]step(nil), s.tasks...)
	teardown := append([]step(nil), s.teardown...)
	timeout := s.timeout
	s.mu.Unlock()

	taskErr := s.runTasks(ctx, tasks)

	var teardownErr error
	for i := len(teardown) - 1; i >= 0; i-- {
		if err := s.runStep(teardown[i], timeout); err != nil {
			teardownErr = errors.Join(teardownErr, err)
		}
	}
	return errors.Join(taskErr, teardownErr)
}

func (s *Scope) runTasks(ctx context.Context, tasks []step) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
		wg       sync.WaitGroup
	)
	for _, t := range tasks {
		wg.Add(1)
		go func(t step) {
			defer wg.Done()
			err := t.fn(runCtx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			once.Do(func() {
				firstErr = fmt.Errorf("%s: %w", t.name, err)
				s.logger.Warn("task failed", "task", t.name, "err", err)
				cancel()
			})
		}(t)
	}
	wg.Wait()
	return firstErr
}

func (s *Scope) runStep(st step, timeout time.Duration) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	err := st.fn(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("teardown step failed", "step", st.name, "err", err)
		return fmt.Errorf("teardown %s: %w", st.name, err)
	}
	s.logger.Debug("teardown step done", "step", st.name, "elapsed", time.Since(start).String())
	return nil
}
