// Package domain defines the core domain models for the segmenter.
package domain

// RunStatus represents the status of a segmentation run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusDone    RunStatus = "DONE"
	RunStatusFailed  RunStatus = "FAILED"
)

// EventType represents the type of an event pushed to subscribers.
type EventType string

const (
	EventTypeRunDone   EventType = "run_done"
	EventTypeRunFailed EventType = "run_failed"
)
