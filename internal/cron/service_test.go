package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/moodegoozy/sofra-core/pkg/logger"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	registry := NewRegistry(&testJob{name: "success"}, &testJob{name: "fail", err: errors.New("boom")})
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{},
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx := context.Background()
	if err := service.runCycle(ctx); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	for i, job := range registry.Jobs() {
		tj, ok := job.(*testJob)
		if !ok {
			t.Fatalf("job %d type mismatch", i)
		}
		if tj.runs != 1 {
			t.Fatalf("expected job %q to run once, ran %d", tj.name, tj.runs)
		}
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job := &testJob{name: "skipped"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped while lock held, ran %d", job.runs)
	}
}

func TestRegistryIgnoresNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &testJob{name: "only"})
	registry.Register(nil)
	jobs := registry.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Name() != "only" {
		t.Fatalf("unexpected job %q", jobs[0].Name())
	}
}
