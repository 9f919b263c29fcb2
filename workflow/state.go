package workflow

//State is the position of a run in the workflow
type State int

const (
	Uninitialized State = iota
	Cloned
	Clean
	RunningTask
	Dirty
	Published
	Discarded
	Failed
)

var stateNames = [...]string{
	Uninitialized: "uninitialized",
	Cloned:        "cloned",
	Clean:         "clean",
	RunningTask:   "running-task",
	Dirty:         "dirty",
	Published:     "published",
	Discarded:     "discarded",
	Failed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) result() string {
	switch s {
	case Published:
		return resultPublished
	case Clean:
		return resultUnchanged
	case Discarded:
		return resultDiscarded
	default:
		return resultFailed
	}
}
