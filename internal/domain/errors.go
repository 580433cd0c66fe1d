package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFilename    = errors.New("invalid filename")
	ErrUploadRejected     = errors.New("upload rejected")
	ErrToolFailed         = errors.New("segmentation tool failed")
	ErrToolTimeout        = errors.New("segmentation tool timed out")
	ErrWorkerStopped      = errors.New("segmentation worker stopped")
	ErrProcessingFailed   = errors.New("segmentation produced no output directory")
	ErrNoArtifactProduced = errors.New("segmentation produced no images")
	ErrNoOutputDirs       = errors.New("no output directories")
	ErrNoOutputImages     = errors.New("no processed images in the latest directory")
)

// ToolExitError reports a non-zero exit from the segmentation tool.
type ToolExitError struct {
	ExitCode int
	Output   string
}

func (e *ToolExitError) Error() string {
	return fmt.Sprintf("segmentation tool exited with code %d", e.ExitCode)
}

func (e *ToolExitError) Is(target error) bool {
	return target == ErrToolFailed
}

// RejectedError lists the policy violations that blocked an upload.
type RejectedError struct {
	Reasons []string
}

func (e *RejectedError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrUploadRejected.Error()
	}
	return ErrUploadRejected.Error() + ": " + strings.Join(e.Reasons, "; ")
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrUploadRejected
}
