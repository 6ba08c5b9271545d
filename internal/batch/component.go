package batch

// ComponentKind is the capability tag of a pipeline component offered for instrumentation.
type ComponentKind int

const (
	// KindOther components expose no listener extension point.
	KindOther ComponentKind = iota
	// KindSimpleStep components accept step and chunk listeners.
	KindSimpleStep
	// KindPartitionStep components delegate to child steps and accept step listeners only.
	KindPartitionStep
	// KindJob components accept job listeners.
	KindJob
)

func (k ComponentKind) String() string {
	switch k {
	case KindSimpleStep:
		return "simple-step"
	case KindPartitionStep:
		return "partition-step"
	case KindJob:
		return "job"
	default:
		return "other"
	}
}

// JobListenerRegistrar is the job listener extension point.
type JobListenerRegistrar interface {
	RegisterJobListener(JobListener) error
}

// StepListenerRegistrar is the step execution listener extension point.
type StepListenerRegistrar interface {
	RegisterStepListener(StepListener) error
}

// ChunkListenerRegistrar is the chunk listener extension point.
type ChunkListenerRegistrar interface {
	RegisterChunkListener(ChunkListener) error
}

// Component describes a pipeline element at assembly time. Kind decides which
// of the registrars are populated; the constructors below keep the two in sync.
type Component struct {
	Name   string
	Kind   ComponentKind
	Jobs   JobListenerRegistrar
	Steps  StepListenerRegistrar
	Chunks ChunkListenerRegistrar
}

// SimpleStep describes a chunk-oriented step.
func SimpleStep[T interface {
	StepListenerRegistrar
	ChunkListenerRegistrar
}](name string, step T) Component {
	return Component{Name: name, Kind: KindSimpleStep, Steps: step, Chunks: step}
}

// PartitionStep describes a step that fans out to child step executions.
func PartitionStep(name string, step StepListenerRegistrar) Component {
	return Component{Name: name, Kind: KindPartitionStep, Steps: step}
}

// Job describes a job definition.
func Job(name string, job JobListenerRegistrar) Component {
	return Component{Name: name, Kind: KindJob, Jobs: job}
}

// Other describes a component that cannot be instrumented.
func Other(name string) Component {
	return Component{Name: name, Kind: KindOther}
}
