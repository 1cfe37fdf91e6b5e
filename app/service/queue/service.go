package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/do"
)

const bufferSize = 64

var (
	ErrQueueFull = errors.New("conversation queue is full")
	ErrClosed    = errors.New("queue is shut down")
)

var _ do.Shutdownable = (*Service)(nil)

// Service runs jobs one at a time per key. Each key with pending work gets its own worker
// goroutine, which exits as soon as its queue drains.
type Service struct {
	mu      sync.Mutex
	workers map[string]*worker
	wg      sync.WaitGroup
	closed  bool
}

type worker struct {
	jobs    chan job
	pending int
}

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(), nil
}

func NewService() *Service {
	return &Service{
		workers: make(map[string]*worker),
	}
}

// Do runs fn after every job queued earlier for the same key has finished and waits for it.
// When ctx ends first Do returns ctx.Err(); a job that has not started yet is then skipped.
func (s *Service) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	j := job{
		ctx:  ctx,
		fn:   fn,
		done: make(chan error, 1),
	}

	if err := s.enqueue(key, j); err != nil {
		return err
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) enqueue(key string, j job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	w, ok := s.workers[key]
	if !ok {
		w = &worker{jobs: make(chan job, bufferSize)}
		s.workers[key] = w

		s.wg.Add(1)
		go s.run(key, w)
	}

	select {
	case w.jobs <- j:
		w.pending++
		return nil
	default:
		slog.Warn("Conversation queue is full", "key", key)
		return ErrQueueFull
	}
}

func (s *Service) run(key string, w *worker) {
	defer s.wg.Done()

	for j := range w.jobs {
		j.done <- s.execute(j)

		s.mu.Lock()
		w.pending--
		if w.pending == 0 {
			delete(s.workers, key)
			close(w.jobs)
		}
		s.mu.Unlock()
	}
}

func (s *Service) execute(j job) (err error) {
	if err = j.ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			slog.Error("Queued job panicked", "panic", r)
		}
	}()

	return j.fn(j.ctx)
}

// Shutdown rejects new jobs and waits for queued ones to finish.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()

	return nil
}
