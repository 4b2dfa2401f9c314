package syncrun

import "fmt"

// State is the driver's position in a run.
//
//	Idle -> FetchingPage(1) -> Reconciling(1) -> FetchingPage(2) -> ... -> Done
//	FetchingPage(n>1) fails -> PageFailed(n) -> FetchingPage(n+1)
//	FetchingPage(1) fails   -> Aborted
type State int

const (
	StateIdle State = iota
	StateFetchingPage
	StateReconciling
	StatePageFailed
	StateDone
	StateAborted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingPage:
		return "fetching_page"
	case StateReconciling:
		return "reconciling"
	case StatePageFailed:
		return "page_failed"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether a run ends in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateCancelled
}

// Transition is one state change, with the page it concerns (0 for none).
type Transition struct {
	State State
	Page  int
}

func (t Transition) String() string {
	if t.Page == 0 {
		return t.State.String()
	}
	return fmt.Sprintf("%s(%d)", t.State, t.Page)
}
