package engine

// State is the position of a compilation in the convergence loop.
type State int

const (
	Evaluating State = iota
	LayingOut
	Comparing
	Converged
	Diverged
	Aborted
)

func (s State) String() string {
	switch s {
	case Evaluating:
		return "evaluating"
	case LayingOut:
		return "laying-out"
	case Comparing:
		return "comparing"
	case Converged:
		return "converged"
	case Diverged:
		return "diverged"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further pass follows s.
func (s State) Terminal() bool {
	return s == Converged || s == Diverged || s == Aborted
}

// Transition is one recorded state change.
type Transition struct {
	Pass  int
	State State
}
