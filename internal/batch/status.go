package batch

// BatchStatus is the lifecycle status of a job or step execution.
type BatchStatus string

const (
	StatusStarting  BatchStatus = "STARTING"
	StatusStarted   BatchStatus = "STARTED"
	StatusStopping  BatchStatus = "STOPPING"
	StatusStopped   BatchStatus = "STOPPED"
	StatusCompleted BatchStatus = "COMPLETED"
	StatusFailed    BatchStatus = "FAILED"
	StatusAbandoned BatchStatus = "ABANDONED"
	StatusUnknown   BatchStatus = "UNKNOWN"
)

func (s BatchStatus) String() string {
	if s == "" {
		return string(StatusUnknown)
	}
	return string(s)
}

// IsTerminal reports whether no further transitions are expected.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped, StatusAbandoned:
		return true
	default:
		return false
	}
}

// ExitStatus is the exit code a step hands back to the engine.
type ExitStatus string

const (
	ExitExecuting ExitStatus = "EXECUTING"
	ExitCompleted ExitStatus = "COMPLETED"
	ExitNoop      ExitStatus = "NOOP"
	ExitFailed    ExitStatus = "FAILED"
	ExitStopped   ExitStatus = "STOPPED"
	ExitUnknown   ExitStatus = "UNKNOWN"
)

// Code returns the exit code, mapping an unset status to UNKNOWN.
func (e ExitStatus) Code() string {
	if e == "" {
		return string(ExitUnknown)
	}
	return string(e)
}
