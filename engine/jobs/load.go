package jobs

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

// Load carries one create request through the provider pipeline. Providers
// claim the resource with Start, do their decode work, and end with Commit or
// Fail. Whatever happens the resource goes terminal before the delegate runs,
// and the delegate returns before the handle resolves.
type Load struct {
	Location resources.StorageLocation
	Path     string
	Resource resources.Resource
	Delegate resources.AsyncLoadDelegate
	Handle   *resources.LoadHandle

	async     bool
	scheduler Scheduler
	started   time.Time
	logger    *log.Logger
}

// NewLoad prepares a blocking request. Every step runs on the caller.
func NewLoad(provider string, location resources.StorageLocation, path string, out resources.Resource) *Load {
	return newLoad(provider, location, path, out, nil, nil)
}

// NewAsyncLoad prepares a request whose decode work runs on the scheduler's
// workers and whose build and completion run on its main thread.
func NewAsyncLoad(provider string, s Scheduler, location resources.StorageLocation, path string, delegate resources.AsyncLoadDelegate, out resources.Resource) *Load {
	l := newLoad(provider, location, path, out, delegate, s)
	l.async = true
	return l
}

func newLoad(provider string, location resources.StorageLocation, path string, out resources.Resource, delegate resources.AsyncLoadDelegate, s Scheduler) *Load {
	handle := resources.NewLoadHandle(out)
	return &Load{
		Location:  location,
		Path:      path,
		Resource:  out,
		Delegate:  delegate,
		Handle:    handle,
		scheduler: s,
		started:   time.Now(),
		logger:    core.LogWith("provider", provider, "path", path, "request", handle.ID()),
	}
}

func (l *Load) Async() bool {
	return l.async
}

func (l *Load) Logger() *log.Logger {
	return l.logger
}

// Start claims the resource. When it is not NotLoaded the request is
// rejected: the resource is left alone, the handle resolves with
// core.ErrResourceInUse and, for async requests, the delegate still runs once
// on the main thread.
func (l *Load) Start() bool {
	if l.Resource == nil {
		l.reject(fmt.Errorf("%w: nil resource", core.ErrResourceInUse))
		return false
	}
	if err := l.Resource.BeginLoad(l.Location, l.Path); err != nil {
		l.reject(err)
		return false
	}
	l.logger.Debug("load started", "location", l.Location)
	return true
}

func (l *Load) reject(err error) {
	l.logger.Warn("load request rejected", "err", err)
	if !l.async {
		l.Handle.Resolve(err)
		return
	}
	l.scheduler.Submit(JobTask{
		ID:         l.Handle.ID(),
		JobType:    JobTypeGPUResource,
		EntryPoint: func() error { return err },
		OnComplete: func(error) {
			l.notify()
			l.Handle.Resolve(err)
		},
	})
}

// Decode runs work off the main thread for async requests and inline
// otherwise. A failing or panicking work function fails the load; next runs
// only on success, on the same goroutine as work.
func (l *Load) Decode(work func() error, next func()) {
	l.Handle.SetStage(resources.StageDecoding)
	if !l.async {
		if err := safely(work); err != nil {
			l.Fail(err)
			return
		}
		next()
		return
	}
	l.scheduler.Submit(JobTask{
		ID:         l.Handle.ID(),
		JobType:    JobTypeResourceLoad,
		EntryPoint: func() error { return safely(work) },
		OnComplete: func(err error) {
			if err != nil {
				l.Fail(err)
				return
			}
			next()
		},
	})
}

// Build runs build on the thread owning the graphics context and commits its
// outcome. Async requests are re-queued as a main thread job.
func (l *Load) Build(build func() error) {
	l.Handle.SetStage(resources.StageBuilding)
	if !l.async {
		l.Commit(safely(build))
		return
	}
	l.scheduler.Submit(JobTask{
		ID:         l.Handle.ID(),
		JobType:    JobTypeGPUResource,
		EntryPoint: func() error { return safely(build) },
		OnComplete: l.Commit,
	})
}

// Fail commits err. Async requests hop to the main thread first so the
// delegate never runs on a worker.
func (l *Load) Fail(err error) {
	if !l.async {
		l.Commit(err)
		return
	}
	l.scheduler.Submit(JobTask{
		ID:         l.Handle.ID(),
		JobType:    JobTypeGPUResource,
		EntryPoint: func() error { return err },
		OnComplete: l.Commit,
	})
}

// Commit sets the terminal state, then runs the delegate, then resolves the
// handle. For async requests it must run on the main thread. Internal
// resources skip the events and metrics, their owner reports for them.
func (l *Load) Commit(err error) {
	if !l.Resource.Finish(err) {
		l.logger.Error("load committed twice", "state", l.Resource.LoadState())
	}
	elapsed := time.Since(l.started)

	switch {
	case isInternal(l.Resource):
		l.logger.Debug("internal load finished", "err", err, "elapsed", elapsed)
	case err != nil:
		core.MetricsResourceLoaded(elapsed, false)
		l.logger.Error("load failed", "err", err, "elapsed", elapsed)
		core.EventFire(core.EventCodeResourceFailed, l.Resource, l.event(err))
	default:
		core.MetricsResourceLoaded(elapsed, true)
		l.logger.Debug("load finished", "elapsed", elapsed)
		core.EventFire(core.EventCodeResourceLoaded, l.Resource, l.event(nil))
	}

	l.notify()
	l.Handle.Resolve(err)
}

func (l *Load) event(err error) core.EventContext {
	id := l.Resource.Identity()
	return core.EventContext{Path: id.Path, Location: uint8(id.Location), ResourceType: int(id.Type), Err: err}
}

func isInternal(r resources.Resource) bool {
	i, ok := r.(interface{ Internal() bool })
	return ok && i.Internal()
}

func (l *Load) notify() {
	if l.Delegate == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("load delegate panicked", "panic", r)
		}
	}()
	l.Delegate(l.Resource)
}

func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", core.ErrBuildFailure, r)
		}
	}()
	return fn()
}
