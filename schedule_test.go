package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinsantoro/warframesync/workflow"
	"github.com/justinsantoro/warframesync/workspace"
)

type fakeRunner struct {
	mu    sync.Mutex
	runs  map[string]int
	fails map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, d workspace.Descriptor, task workflow.Task) (bool, error) {
	f.mu.Lock()
	f.runs[d.Directory]++
	err := f.fails[d.Directory]
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return true, task(ctx, workspace.ExecutionContext{Repository: d})
}

func (f *fakeRunner) count(dir string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[dir]
}

func job(dir string) Job {
	return Job{
		Repository: workspace.Descriptor{URL: "https://example/" + dir, Directory: dir, Branch: "develop"},
		Task:       func(context.Context, workspace.ExecutionContext) error { return nil },
	}
}

func TestRunOnceJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeRunner{runs: map[string]int{}, fails: map[string]error{"wiki": boom}}
	s := NewScheduler(r, time.Hour, nil, job("blog"), job("wiki"))

	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "wiki@develop")
	assert.Equal(t, 1, r.count("blog"))
	assert.Equal(t, 1, r.count("wiki"))
}

func TestRunOnceSucceeds(t *testing.T) {
	r := &fakeRunner{runs: map[string]int{}}
	s := NewScheduler(r, time.Hour, nil, job("blog"))
	assert.NoError(t, s.RunOnce(context.Background()))
}

func TestStartTicksUntilCancelled(t *testing.T) {
	r := &fakeRunner{runs: map[string]int{}, fails: map[string]error{"wiki": workflow.ErrRunInProgress}}
	s := NewScheduler(r, 10*time.Millisecond, nil, job("blog"), job("wiki"))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return r.count("blog") >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	stopped := r.count("blog")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, r.count("blog"), "no runs after Wait returns")
	assert.GreaterOrEqual(t, r.count("wiki"), 3, "skipped runs do not stop the schedule")
}
