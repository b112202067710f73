package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	FileStarted Type = iota + 1
	FileCompleted
	FileFailed
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	FileStarted:   "FileStarted",
	FileCompleted: "FileCompleted",
	FileFailed:    "FileFailed",
	VerifyOK:      "VerifyOK",
	VerifyFailed:  "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single per-file event from the batch driver.
type Event struct {
	Type      Type
	Timestamp time.Time
	Src       string
	Dst       string
	Size      int64         // bytes copied (FileCompleted)
	Elapsed   time.Duration // wall time of the copy (FileCompleted)
	Error     error
}
