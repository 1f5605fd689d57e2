package stream

// State is the lifecycle state of a Session
type State int32

const (
	// Idle is a Session with no capture running
	Idle State = iota
	// Starting is a Session loading its detector and opening its source
	Starting
	// Running is a Session with its capture loop running
	Running
	// Stopping is a Session waiting for its capture loop to exit
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}
