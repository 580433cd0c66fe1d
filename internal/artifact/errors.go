package artifact

import "errors"

var (
	ErrNoRunDirectories = errors.New("no run directories found")
	ErrNoArtifacts      = errors.New("no artifacts found in run directory")
)
