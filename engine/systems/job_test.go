package systems

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
)

func TestNewJobSystemValidatesArguments(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("expected ErrNoWorkers, got %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Errorf("expected ErrNegativeChannelSize, got %v", err)
	}
}

func TestJobSystemRunsGeneralJobsOnWorkers(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		js.Submit(jobs.JobTask{
			JobType: jobs.JobTypeGeneral,
			EntryPoint: func() error {
				ran.Add(1)
				return nil
			},
			OnComplete: func(err error) {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				wg.Done()
			},
		})
	}
	wg.Wait()
	if ran.Load() != 10 {
		t.Errorf("expected 10 jobs to run, got %d", ran.Load())
	}
	if js.PendingMainTasks() != 0 {
		t.Error("general jobs must not reach the main queue")
	}
}

func TestJobSystemDefersMainThreadJobsToUpdate(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	ran := 0
	for i := 0; i < 3; i++ {
		js.Submit(jobs.JobTask{
			JobType:    jobs.JobTypeGPUResource,
			EntryPoint: func() error { ran++; return nil },
		})
	}
	if ran != 0 {
		t.Fatalf("main thread jobs ran before Update: %d", ran)
	}
	if js.PendingMainTasks() != 3 {
		t.Fatalf("expected 3 pending jobs, got %d", js.PendingMainTasks())
	}
	if n := js.Update(); n != 3 || ran != 3 {
		t.Errorf("expected Update to run 3 jobs, ran %d (reported %d)", ran, n)
	}
	if js.Update() != 0 {
		t.Error("expected an empty queue")
	}
}

func TestJobSystemUpdateLeavesJobsQueuedByJobsForNextCall(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	second := false
	js.Submit(jobs.JobTask{
		JobType: jobs.JobTypeGPUResource,
		EntryPoint: func() error {
			js.Submit(jobs.JobTask{
				JobType:    jobs.JobTypeGPUResource,
				EntryPoint: func() error { second = true; return nil },
			})
			return nil
		},
	})
	js.Update()
	if second {
		t.Fatal("job queued during Update ran in the same call")
	}
	js.Update()
	if !second {
		t.Error("expected the second job to run on the next Update")
	}
}

func TestJobSystemSubmitDoesNotBlock(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	gate := make(chan struct{})
	var wg sync.WaitGroup
	submitted := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			js.Submit(jobs.JobTask{
				JobType:    jobs.JobTypeResourceLoad,
				EntryPoint: func() error { <-gate; return nil },
				OnComplete: func(error) { wg.Done() },
			})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked on a busy worker")
	}
	close(gate)
	wg.Wait()
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestJobSystemRecoversPanics(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	result := make(chan error, 1)
	js.Submit(jobs.JobTask{
		JobType:    jobs.JobTypeGeneral,
		EntryPoint: func() error { panic("boom") },
		OnComplete: func(err error) { result <- err },
	})
	select {
	case err := <-result:
		if err == nil {
			t.Error("expected the panic to surface as an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never completed")
	}
}

func TestJobSystemPump(t *testing.T) {
	js, err := NewJobSystem(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	done := make(chan struct{})
	// worker job that hands over to the main thread, which closes done
	js.Submit(jobs.JobTask{
		JobType: jobs.JobTypeGeneral,
		EntryPoint: func() error {
			js.Submit(jobs.JobTask{
				JobType:    jobs.JobTypeGPUResource,
				EntryPoint: func() error { close(done); return nil },
			})
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := js.Pump(ctx, done); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	if err := js.Pump(short, make(chan struct{})); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestJobSystemShutdownDrainsAndRejects(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	if err != nil {
		t.Fatal(err)
	}

	var mainRan atomic.Int32
	for i := 0; i < 5; i++ {
		js.Submit(jobs.JobTask{
			JobType: jobs.JobTypeResourceLoad,
			EntryPoint: func() error {
				time.Sleep(time.Millisecond)
				return nil
			},
			OnComplete: func(error) {
				js.Submit(jobs.JobTask{
					JobType:    jobs.JobTypeGPUResource,
					EntryPoint: func() error { mainRan.Add(1); return nil },
				})
			},
		})
	}
	if err := js.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if mainRan.Load() != 5 {
		t.Errorf("expected every follow-up main job to run, got %d", mainRan.Load())
	}

	var got error
	js.Submit(jobs.JobTask{
		JobType:    jobs.JobTypeGPUResource,
		EntryPoint: func() error { t.Error("job ran after shutdown"); return nil },
		OnComplete: func(err error) { got = err },
	})
	if !errors.Is(got, core.ErrJobSystemClosed) {
		t.Errorf("expected ErrJobSystemClosed, got %v", got)
	}
	if err := js.Shutdown(); !errors.Is(err, core.ErrJobSystemClosed) {
		t.Errorf("expected second Shutdown to fail, got %v", err)
	}
}
