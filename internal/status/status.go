package status

// Status is the visual state of a download control.
type Status = int32

const (
	Idle Status = iota
	Loading
	Success
	Exists
	Failed
)
