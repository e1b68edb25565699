package enum

type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailure RunStatus = "failure"
	// RunStatusSkipped is returned when a trigger is rejected because
	// another run already holds the single-flight lock.
	RunStatusSkipped RunStatus = "skipped"
)

func (t RunStatus) String() string {
	return string(t)
}

type JobTrigger string

const (
	JobTriggerScheduled JobTrigger = "scheduled"
	JobTriggerManual    JobTrigger = "manual"
)

func (t JobTrigger) String() string {
	return string(t)
}
