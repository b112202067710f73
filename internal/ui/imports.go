package ui

import "github.com/nicokoch/fastcopy/internal/event"

// Re-export event types for convenience.
type Event = event.Event

const (
	FileStarted   = event.FileStarted
	FileCompleted = event.FileCompleted
	FileFailed    = event.FileFailed
	VerifyOK      = event.VerifyOK
	VerifyFailed  = event.VerifyFailed
)
