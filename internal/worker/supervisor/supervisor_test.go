package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhldev/extraction-be/shared/logger"
)

func newSupervisor(retention time.Duration) *Supervisor {
	return New(retention, logger.NewDefault().Logger)
}

func waitFinished(t *testing.T, s *Supervisor, jobID string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		info, ok := s.Get(jobID)
		if ok && info.Finished {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job %s did not finish in time", jobID)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSubmitRunsWork(t *testing.T) {
	s := newSupervisor(time.Hour)

	done := make(chan uint64, 1)
	gen := s.Submit(context.Background(), "job-1", func(ctx context.Context, generation uint64) {
		done <- generation
	})

	assert.Equal(t, uint64(1), gen)
	select {
	case got := <-done:
		assert.Equal(t, gen, got)
	case <-time.After(time.Second):
		t.Fatal("work was not executed")
	}

	waitFinished(t, s, "job-1")
	info, ok := s.Get("job-1")
	require.True(t, ok)
	assert.True(t, info.Finished)
	assert.Equal(t, gen, info.Generation)
}

func TestResubmitCancelsAndReplacesPrevious(t *testing.T) {
	s := newSupervisor(time.Hour)

	firstCancelled := make(chan struct{})
	gen1 := s.Submit(context.Background(), "job-1", func(ctx context.Context, generation uint64) {
		<-ctx.Done()
		close(firstCancelled)
	})

	gen2 := s.Submit(context.Background(), "job-1", func(ctx context.Context, generation uint64) {})

	select {
	case <-firstCancelled:
	case <-time.After(time.Second):
		t.Fatal("previous worker was not cancelled")
	}

	assert.Equal(t, uint64(1), gen1)
	assert.Equal(t, uint64(2), gen2)
	assert.False(t, s.IsCurrent("job-1", gen1))
	assert.True(t, s.IsCurrent("job-1", gen2))

	info, ok := s.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, gen2, info.Generation)
}

func TestCancel(t *testing.T) {
	s := newSupervisor(time.Hour)

	stopped := make(chan struct{})
	s.Submit(context.Background(), "job-1", func(ctx context.Context, generation uint64) {
		<-ctx.Done()
		close(stopped)
	})

	require.True(t, s.Cancel("job-1"))
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not observe cancellation")
	}

	assert.False(t, s.Cancel("missing-job"))
}

func TestReaper(t *testing.T) {
	s := newSupervisor(time.Minute)

	s.Submit(context.Background(), "job-1", func(ctx context.Context, generation uint64) {})
	waitFinished(t, s, "job-1")

	// Within retention: handle survives.
	assert.Equal(t, 0, s.ReapOnce(time.Now()))
	_, ok := s.Get("job-1")
	assert.True(t, ok)

	// Past retention: handle is removed, generation survives.
	assert.Equal(t, 1, s.ReapOnce(time.Now().Add(2*time.Minute)))
	_, ok = s.Get("job-1")
	assert.False(t, ok)
	assert.True(t, s.IsCurrent("job-1", 1))

	// A fresh submission continues the generation sequence.
	gen := s.Submit(context.Background(), "job-1", func(ctx context.Context, generation uint64) {})
	assert.Equal(t, uint64(2), gen)
}

func TestReaperSkipsRunningWork(t *testing.T) {
	s := newSupervisor(0)

	release := make(chan struct{})
	s.Submit(context.Background(), "job-1", func(ctx context.Context, generation uint64) {
		<-release
	})

	assert.Equal(t, 0, s.ReapOnce(time.Now().Add(time.Hour)))
	assert.Equal(t, 1, s.Running())

	close(release)
	waitFinished(t, s, "job-1")
	assert.Equal(t, 0, s.Running())
}

func TestConcurrentSubmissionsAreIndependent(t *testing.T) {
	s := newSupervisor(time.Hour)

	var count atomic.Int32
	for i := 0; i < 20; i++ {
		jobID := "job-" + string(rune('a'+i))
		s.Submit(context.Background(), jobID, func(ctx context.Context, generation uint64) {
			count.Add(1)
		})
	}

	s.Wait()
	assert.Equal(t, int32(20), count.Load())
}
