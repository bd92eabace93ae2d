package jobs

/** @brief Describes a type of job */
type JobType int

const (
	/**
	 * @brief A general job that does not have any specific thread requirements.
	 * This means it matters little which job thread this job runs on.
	 */
	JobTypeGeneral JobType = 0x02
	/**
	 * @brief A resource loading job. Runs on the worker pool like general jobs;
	 * kept apart so loads can be told from other work in logs.
	 */
	JobTypeResourceLoad JobType = 0x04
	/**
	 * @brief Jobs touching the graphics context. They run on the main thread,
	 * the one pumping the job system's main queue.
	 */
	JobTypeGPUResource JobType = 0x08
)

func (t JobType) String() string {
	switch t {
	case JobTypeGeneral:
		return "general"
	case JobTypeResourceLoad:
		return "resource-load"
	case JobTypeGPUResource:
		return "gpu-resource"
	}
	return "unknown"
}

// MainThread reports whether jobs of this type are pinned to the main thread.
func (t JobType) MainThread() bool {
	return t == JobTypeGPUResource
}

/**
 * @brief Describes a job to be run.
 */
type JobTask struct {
	/** @brief Used to tag log lines. Optional. */
	ID string
	/** @brief The type of job. Used to determine which thread the job executes on. */
	JobType JobType
	/** @brief Invoked when the job starts. Required. */
	EntryPoint func() error
	/** @brief Invoked with the outcome of EntryPoint, on the same thread. Optional. */
	OnComplete func(err error)
}

// Scheduler runs every submitted job exactly once, on a worker or on the main
// thread depending on its JobType.
type Scheduler interface {
	Submit(job JobTask)
}
