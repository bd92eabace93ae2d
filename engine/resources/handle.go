package resources

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// AsyncLoadDelegate is told, on the main thread, that a load request reached
// its end. The resource state is terminal by then.
type AsyncLoadDelegate func(Resource)

// Stage is the pipeline step an async request is in.
type Stage int32

const (
	StageQueued Stage = iota
	StageDecoding
	StageBuilding
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageDecoding:
		return "decoding"
	case StageBuilding:
		return "building"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// LoadHandle is the single-shot result of an async request. It resolves
// exactly once, after the resource state is terminal and after the
// delegate has returned.
type LoadHandle struct {
	id       uuid.UUID
	resource Resource
	stage    atomic.Int32

	once sync.Once
	done chan struct{}
	err  error
}

func NewLoadHandle(r Resource) *LoadHandle {
	return &LoadHandle{
		id:       uuid.New(),
		resource: r,
		done:     make(chan struct{}),
	}
}

// ID identifies the request in log lines.
func (h *LoadHandle) ID() string {
	return h.id.String()
}

func (h *LoadHandle) Resource() Resource {
	return h.resource
}

func (h *LoadHandle) Stage() Stage {
	return Stage(h.stage.Load())
}

func (h *LoadHandle) SetStage(s Stage) {
	h.stage.Store(int32(s))
}

// Done is closed when the handle resolves.
func (h *LoadHandle) Done() <-chan struct{} {
	return h.done
}

// Err is the outcome; only meaningful after Done is closed.
func (h *LoadHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the handle resolves or ctx ends. Note that async
// builds run on the main thread, so waiting on the main thread without
// pumping it never returns before ctx does.
func (h *LoadHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve completes the handle. Only the first call has an effect; it
// reports whether this call was that one.
func (h *LoadHandle) Resolve(err error) bool {
	resolved := false
	h.once.Do(func() {
		h.err = err
		h.stage.Store(int32(StageDone))
		close(h.done)
		resolved = true
	})
	return resolved
}
