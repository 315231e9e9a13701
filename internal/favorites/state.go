package favorites

// RunState is the phase of the current (or last) reconcile run. A run always
// moves Idle → Fetching → Filtering → Batching → Done and is not resumable:
// an aborted run simply reports its count (possibly 0) and ends in Done.
type RunState int32

const (
	StateIdle RunState = iota
	StateFetching
	StateFiltering
	StateBatching
	StateDone
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateFiltering:
		return "filtering"
	case StateBatching:
		return "batching"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
