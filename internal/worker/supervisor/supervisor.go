package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WorkFunc is one unit of job work. It must return promptly once ctx is
// cancelled; cancellation is cooperative, there is no hard kill.
type WorkFunc func(ctx context.Context, generation uint64)

// HandleInfo is a snapshot of one registered job handle.
type HandleInfo struct {
	JobID      string
	Generation uint64
	Finished   bool
}

type handle struct {
	jobID      string
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	finishedAt time.Time // zero until the work function returns
}

// Supervisor is an in-process registry of running jobs: one goroutine per
// active job, a mutex-guarded handle map as the single point of shared
// mutable state, and a periodic reaper for finished entries.
//
// Each submission for a job id is assigned an increasing generation.
// A resubmission cancels and replaces the previous handle; the superseded
// goroutine keeps running until its next checkpoint, but IsCurrent lets it
// discover it has been replaced and suppress further writes.
type Supervisor struct {
	mu          sync.Mutex
	handles     map[string]*handle
	generations map[string]uint64
	retention   time.Duration
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// New creates a Supervisor that retains finished handles for the given
// duration before the reaper removes them.
func New(retention time.Duration, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		handles:     make(map[string]*handle),
		generations: make(map[string]uint64),
		retention:   retention,
		logger:      logger,
	}
}

// Submit registers and starts a worker goroutine for jobID, cancelling and
// replacing any existing handle. It returns the generation assigned to the
// new worker.
func (s *Supervisor) Submit(ctx context.Context, jobID string, work WorkFunc) uint64 {
	s.mu.Lock()
	if existing, ok := s.handles[jobID]; ok {
		existing.cancel()
		s.logger.Info("Replacing registered job handle",
			slog.String("job_id", jobID),
			slog.Uint64("superseded_generation", existing.generation),
		)
	}

	s.generations[jobID]++
	generation := s.generations[jobID]

	jobCtx, cancel := context.WithCancel(ctx)
	h := &handle{
		jobID:      jobID,
		generation: generation,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.handles[jobID] = h
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			h.finishedAt = time.Now()
			s.mu.Unlock()
			close(h.done)
			cancel()
		}()
		work(jobCtx, generation)
	}()

	s.logger.Info("Job worker started",
		slog.String("job_id", jobID),
		slog.Uint64("generation", generation),
	)

	return generation
}

// Get returns a snapshot of the handle registered for jobID.
func (s *Supervisor) Get(jobID string) (*HandleInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[jobID]
	if !ok {
		return nil, false
	}
	return &HandleInfo{
		JobID:      h.jobID,
		Generation: h.generation,
		Finished:   !h.finishedAt.IsZero(),
	}, true
}

// Cancel signals the current worker for jobID to stop. The goroutine is not
// forcibly killed; it exits at its next checkpoint. Returns false when no
// handle is registered.
func (s *Supervisor) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[jobID]
	if !ok {
		return false
	}
	h.cancel()

	s.logger.Info("Job cancellation requested",
		slog.String("job_id", jobID),
		slog.Uint64("generation", h.generation),
	)
	return true
}

// IsCurrent reports whether generation is still the latest one assigned to
// jobID. Superseded workers use this to discard their writes. Generations
// survive handle reaping, so a stale worker can never be mistaken for a
// fresh one.
func (s *Supervisor) IsCurrent(jobID string, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[jobID] == generation
}

// Running returns the number of registered handles whose work has not
// finished yet.
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, h := range s.handles {
		if h.finishedAt.IsZero() {
			n++
		}
	}
	return n
}

// StartReaper launches the periodic reaper. It stops when ctx is cancelled.
func (s *Supervisor) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.ReapOnce(time.Now()); removed > 0 {
					s.logger.Debug("Reaped finished job handles",
						slog.Int("removed", removed),
					)
				}
			}
		}
	}()
}

// ReapOnce removes handles whose work finished before now minus the
// retention window. It returns the number of removed handles.
func (s *Supervisor) ReapOnce(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for jobID, h := range s.handles {
		if h.finishedAt.IsZero() {
			continue
		}
		if now.Sub(h.finishedAt) >= s.retention {
			delete(s.handles, jobID)
			removed++
		}
	}
	return removed
}

// Wait blocks until every worker goroutine has returned. Used during
// graceful shutdown after the base context has been cancelled.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
