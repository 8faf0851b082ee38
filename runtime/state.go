package runtime

// State is a step of the instance lifecycle.
type State int

const (
	// Constructed: render root and store exist, nothing is loaded.
	Constructed State = iota
	// Loading: the module is being built or fetched from the cache.
	Loading
	// MountedInitial: the constructor ran and the first pass is rendering.
	MountedInitial
	// Updating is the steady state: writes schedule reconciliation passes.
	Updating
	// Degraded is terminal. The instance shows DegradedMessage and never
	// reconciles again.
	Degraded
	// Disconnected is terminal. The instance has released its handle,
	// listeners and subscriptions.
	Disconnected
)

var stateNames = [...]string{"constructed", "loading", "mounted-initial", "updating", "degraded", "disconnected"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s has no outgoing transitions.
func (s State) Terminal() bool {
	return s == Degraded || s == Disconnected
}

// live reports whether writes in state s should schedule a pass.
func (s State) live() bool {
	return s == MountedInitial || s == Updating
}
