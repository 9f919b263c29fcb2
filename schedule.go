package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justinsantoro/warframesync/workflow"
)

//Scheduler runs every job through the workflow on a fixed interval
type Scheduler struct {
	runner   Runner
	jobs     []Job
	interval time.Duration
	log      *zap.SugaredLogger
	wg       sync.WaitGroup
}

func NewScheduler(runner Runner, interval time.Duration, log *zap.SugaredLogger, jobs ...Job) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{runner: runner, jobs: jobs, interval: interval, log: log}
}

//Start runs all jobs right away and then on every tick until ctx is done.
//A job still running when the next tick fires is skipped for that tick.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, j := range s.jobs {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.run(ctx, j)
		}()
	}
}

//Wait blocks until the ticker loop and every in-flight run have returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

//RunOnce runs every job a single time and returns all of their errors
func (s *Scheduler) RunOnce(ctx context.Context) error {
	errs := make([]error, len(s.jobs))
	var eg errgroup.Group
	for i, j := range s.jobs {
		i, j := i, j
		eg.Go(func() error {
			if err := s.run(ctx, j); err != nil {
				errs[i] = fmt.Errorf("%s: %w", j.Repository, err)
			}
			return nil
		})
	}
	_ = eg.Wait()
	return errors.Join(errs...)
}

func (s *Scheduler) run(ctx context.Context, j Job) error {
	log := s.log.With("repository", j.Repository.Directory)
	published, err := s.runner.Run(ctx, j.Repository, j.Task)
	switch {
	case errors.Is(err, workflow.ErrRunInProgress):
		log.Debugw("previous run still in progress, skipping")
		return err
	case err != nil:
		log.Errorw("run failed", "error", err)
		return err
	case published:
		log.Infow("published new data")
	default:
		log.Debugw("no changes")
	}
	return nil
}
