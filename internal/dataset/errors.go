package dataset

import "fmt"

// IncompleteDatasetError reports an agent stream that is empty where the
// synchronization engine needs data to establish a horizon or interpolate.
type IncompleteDatasetError struct {
	AgentID int
	Stream  string // "pose", "odometry" or "measurement"
}

func (e *IncompleteDatasetError) Error() string {
	return fmt.Sprintf("incomplete dataset: agent %d has an empty %s stream", e.AgentID, e.Stream)
}

// PreconditionError reports a derivation or simulation step run before its
// required predecessor step.
type PreconditionError struct {
	Op       string // the step that was attempted
	Requires string // what must happen first
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violated: %s requires %s", e.Op, e.Requires)
}

// DegenerateSampleError reports a statistics computation over too few data
// points for sample variance or quartiles to be defined.
type DegenerateSampleError struct {
	AgentID int
	Channel string
	N       int
}

func (e *DegenerateSampleError) Error() string {
	return fmt.Sprintf("degenerate sample: agent %d %s error channel has %d point(s), need at least 2",
		e.AgentID, e.Channel, e.N)
}
