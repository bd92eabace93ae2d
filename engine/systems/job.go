package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-loader/engine/containers"
	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
)

// JobSystem runs general jobs on a pool of worker goroutines and keeps
// GPU resource jobs in a queue drained by the main thread through Update or
// Pump. Submit never blocks.
type JobSystem struct {
	numWorkers int
	jobQueue   chan jobs.JobTask
	wg         sync.WaitGroup
	overflow   sync.WaitGroup

	// guards the two closed flags; held for reading while submitting
	stateMutex    sync.RWMutex
	workersClosed bool
	mainClosed    bool

	mainMutex  sync.Mutex
	mainQueue  *containers.RingQueue[jobs.JobTask]
	mainNotify chan struct{}
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan jobs.JobTask, channelSize),
		mainQueue:  containers.NewGrowableRingQueue[jobs.JobTask](64),
		mainNotify: make(chan struct{}, 1),
	}

	js.start()
	core.LogDebug("job system started with %d workers", numWorkers)

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

// run executes a job on the current goroutine. Panics are turned into the
// job's error so a broken job cannot take a worker down.
func (js *JobSystem) run(job jobs.JobTask) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job %s panicked: %v", job.ID, r)
			}
		}()
		if job.EntryPoint == nil {
			return nil
		}
		return job.EntryPoint()
	}()
	if err != nil {
		core.LogDebug("%s job %s failed: %s", job.JobType, job.ID, err)
	}
	if job.OnComplete != nil {
		job.OnComplete(err)
	}
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt jobs.JobTask) {
	js.stateMutex.RLock()
	if jt.JobType.MainThread() {
		if js.mainClosed {
			js.stateMutex.RUnlock()
			js.reject(jt)
			return
		}
		js.mainMutex.Lock()
		// growable queue, never full
		_ = js.mainQueue.Enqueue(jt)
		js.mainMutex.Unlock()
		js.stateMutex.RUnlock()

		select {
		case js.mainNotify <- struct{}{}:
		default:
		}
		return
	}

	if js.workersClosed {
		js.stateMutex.RUnlock()
		js.reject(jt)
		return
	}
	select {
	case js.jobQueue <- jt:
	default:
		// AddWorkNonBlocking: hand the send over to a goroutine when the
		// queue is full.
		js.overflow.Add(1)
		go func() {
			defer js.overflow.Done()
			js.jobQueue <- jt
		}()
	}
	js.stateMutex.RUnlock()
}

func (js *JobSystem) reject(jt jobs.JobTask) {
	core.LogWarn("job system closed, dropping %s job %s", jt.JobType, jt.ID)
	if jt.OnComplete != nil {
		jt.OnComplete(core.ErrJobSystemClosed)
	}
}

/**
 * @brief Updates the job system. Should happen once an update cycle, on the
 * main thread. Runs the main thread jobs queued so far and reports how many
 * ran. Jobs queued by those jobs wait for the next call.
 */
func (js *JobSystem) Update() int {
	js.mainMutex.Lock()
	n := js.mainQueue.Len()
	js.mainMutex.Unlock()

	for i := 0; i < n; i++ {
		js.mainMutex.Lock()
		job, err := js.mainQueue.Dequeue()
		js.mainMutex.Unlock()
		if err != nil {
			return i
		}
		js.run(job)
	}
	return n
}

// Pump runs main thread jobs as they arrive until done is closed or ctx ends.
// It must be called from the main thread.
func (js *JobSystem) Pump(ctx context.Context, done <-chan struct{}) error {
	for {
		js.Update()
		select {
		case <-done:
			js.Update()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-js.mainNotify:
		}
	}
}

// PendingMainTasks is the number of jobs waiting for the main thread.
func (js *JobSystem) PendingMainTasks() int {
	js.mainMutex.Lock()
	defer js.mainMutex.Unlock()
	return js.mainQueue.Len()
}

/**
 * @brief Shuts the job system down. Workers finish the queued jobs, then the
 * main thread queue is drained on the caller, which must be the main thread.
 * Jobs submitted afterwards complete with core.ErrJobSystemClosed.
 */
func (js *JobSystem) Shutdown() error {
	js.stateMutex.Lock()
	if js.workersClosed {
		js.stateMutex.Unlock()
		return core.ErrJobSystemClosed
	}
	js.workersClosed = true
	js.stateMutex.Unlock()

	js.overflow.Wait()
	close(js.jobQueue)
	js.wg.Wait()

	for js.Update() > 0 {
	}

	js.stateMutex.Lock()
	js.mainClosed = true
	js.stateMutex.Unlock()
	// anything that slipped in before the flag flipped
	for js.Update() > 0 {
	}

	core.LogDebug("job system shut down")
	return nil
}
