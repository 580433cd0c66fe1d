package domain

import "time"

// Run is one upload-and-invoke cycle.
type Run struct {
	RunID      string     `json:"run_id"`
	Filename   string     `json:"filename"`
	UploadPath string     `json:"upload_path"`
	Status     RunStatus  `json:"status"`
	ExitCode   int        `json:"exit_code"`
	Artifact   string     `json:"artifact,omitempty"` // run-relative path, e.g. exp3/result.jpg
	FileURL    string     `json:"file_url,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunEvent is broadcast to event stream subscribers when a run finishes.
type RunEvent struct {
	Type  EventType `json:"type"`
	Ts    int64     `json:"ts"` // Unix milliseconds
	RunID string    `json:"run_id"`
	File  string    `json:"file,omitempty"`
	Error string    `json:"error,omitempty"`
}

// OutputFile is the newest artifact as exposed to clients.
type OutputFile struct {
	URL     string
	Run     string
	Name    string
	ModTime time.Time
}
