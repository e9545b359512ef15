package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestRegisterTaskDuplicate(t *testing.T) {
	s := newTestScheduler(t)

	cfg := TaskConfig{
		ID:   "sweep",
		Name: "Sweep",
		Cron: "*/15 * * * *",
		Func: func(ctx context.Context) error { return nil },
	}

	if err := s.RegisterTask(cfg); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}
	if err := s.RegisterTask(cfg); err == nil {
		t.Error("expected error for duplicate task id")
	}
}

func TestRegisterTaskBadCron(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RegisterTask(TaskConfig{
		ID:   "bad",
		Name: "Bad",
		Cron: "not a cron",
		Func: func(ctx context.Context) error { return nil },
	})
	if err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	done := make(chan struct{})

	err := s.RegisterTask(TaskConfig{
		ID:   "sweep",
		Name: "Sweep",
		Cron: "0 0 1 1 *",
		Func: func(ctx context.Context) error {
			runs.Add(1)
			close(done)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("sweep"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}

	if runs.Load() != 1 {
		t.Errorf("expected 1 run, got %d", runs.Load())
	}
}

func TestRunNowUnknownTask(t *testing.T) {
	s := newTestScheduler(t)

	if err := s.RunNow("missing"); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestSingleFlight(t *testing.T) {
	s := newTestScheduler(t)

	var running atomic.Int32
	var overlaps atomic.Int32
	block := make(chan struct{})
	started := make(chan struct{})

	err := s.RegisterTask(TaskConfig{
		ID:   "slow",
		Name: "Slow",
		Cron: "0 0 1 1 *",
		Func: func(ctx context.Context) error {
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			started <- struct{}{}
			<-block
			running.Add(-1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("slow"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	<-started

	// Second trigger while the first run blocks must be refused.
	if err := s.RunNow("slow"); err == nil {
		t.Error("expected error while task is running")
	}

	close(block)

	if overlaps.Load() != 0 {
		t.Errorf("task overlapped with itself %d times", overlaps.Load())
	}
}

func TestTaskReceivesBaseContext(t *testing.T) {
	s := newTestScheduler(t)

	type key struct{}
	baseCtx := context.WithValue(context.Background(), key{}, "seekarr")
	gotValue := make(chan any, 1)

	err := s.RegisterTask(TaskConfig{
		ID:         "ctx",
		Name:       "Ctx",
		Cron:       "0 0 1 1 *",
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			gotValue <- ctx.Value(key{})
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.Start(baseCtx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case v := <-gotValue:
		if v != "seekarr" {
			t.Errorf("task did not receive base context, got %v", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunOnStart task did not run")
	}
}

func TestListTasks(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RegisterTask(TaskConfig{
		ID:          "sweep",
		Name:        "Sweep",
		Description: "desc",
		Cron:        "*/15 * * * *",
		Func:        func(ctx context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	tasks := s.ListTasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].ID != "sweep" || tasks[0].Cron != "*/15 * * * *" {
		t.Errorf("unexpected task info: %+v", tasks[0])
	}

	if _, err := s.GetTask("sweep"); err != nil {
		t.Errorf("GetTask failed: %v", err)
	}
	if _, err := s.GetTask("nope"); err == nil {
		t.Error("expected error for unknown task")
	}
}
