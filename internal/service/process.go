package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/xiaot623/gogo/segmenter/internal/artifact"
	"github.com/xiaot623/gogo/segmenter/internal/domain"
	"github.com/xiaot623/gogo/segmenter/internal/invoker"
	"github.com/xiaot623/gogo/segmenter/internal/upload"
	"github.com/xiaot623/gogo/segmenter/policy"
)

// ProcessUpload stores an upload, runs the segmentation tool on it and
// resolves the artifact it produced. The returned run is non-nil whenever the
// upload was accepted, including on processing failures.
func (s *Service) ProcessUpload(ctx context.Context, in domain.Upload) (*domain.Run, error) {
	// 1. Validate filename and admission policy
	name, err := upload.SanitizeFilename(in.Filename)
	if err != nil {
		return nil, err
	}
	if err := s.admit(ctx, name, in); err != nil {
		return nil, err
	}

	// 2. Persist the upload under its own directory
	run := &domain.Run{
		RunID:     "run_" + uuid.New().String(),
		Filename:  name,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now(),
	}
	uploadPath, err := s.uploads.Save(run.RunID, name, in.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}
	run.UploadPath = uploadPath

	// 3. Invoke the tool and resolve its output as one worker job, so no
	// other run can create a newer run directory in between
	log.Printf("Processing %s (run %s)", name, run.RunID)
	runCtx := ctx
	if s.config.ToolTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.ToolTimeout)
		defer cancel()
	}

	err = s.worker.Do(runCtx, func(ctx context.Context, runner invoker.Runner) error {
		if err := s.invoke(ctx, runner, run); err != nil {
			return err
		}
		art, err := s.artifacts.Latest(ctx)
		if err != nil {
			return translateUploadError(err)
		}
		run.Artifact = art.RelPath()
		run.FileURL = s.ArtifactURL(art)
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrWorkerStopped) && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", domain.ErrToolTimeout, s.config.ToolTimeout)
		}
		s.finish(run, err)
		return run, err
	}

	s.finish(run, nil)
	return run, nil
}

func (s *Service) admit(ctx context.Context, name string, in domain.Upload) error {
	if s.policyEngine == nil {
		return nil
	}
	res, err := s.policyEngine.Evaluate(ctx, policy.Input{
		Filename:    name,
		Extension:   strings.ToLower(filepath.Ext(name)),
		Size:        in.Size,
		ContentType: in.ContentType,
		MaxSize:     s.config.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if !res.Allowed() {
		return &domain.RejectedError{Reasons: res.Violations}
	}
	return nil
}

func (s *Service) invoke(ctx context.Context, runner invoker.Runner, run *domain.Run) error {
	outputDir, err := filepath.Abs(s.config.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	args := invoker.ExpandArgs(s.config.ToolArgsTemplate, invoker.Params{
		Script:        s.config.ToolScript,
		Weights:       s.config.WeightsPath,
		Source:        run.UploadPath,
		Project:       outputDir,
		ImageSize:     s.config.ImageSize,
		LineThickness: s.config.LineThickness,
		Confidence:    s.config.Confidence,
	})

	res, err := runner.Run(ctx, s.config.ToolCommand, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrToolFailed, err)
	}

	run.ExitCode = res.ExitCode
	if res.ExitCode != 0 {
		if s.config.FailOnToolExit {
			return &domain.ToolExitError{ExitCode: res.ExitCode, Output: res.Output}
		}
		log.Warnf("Tool exited with code %d for run %s, continuing", res.ExitCode, run.RunID)
	}
	return nil
}

// translateUploadError maps resolver failures to upload failures.
func translateUploadError(err error) error {
	switch {
	case errors.Is(err, artifact.ErrNoRunDirectories):
		return domain.ErrProcessingFailed
	case errors.Is(err, artifact.ErrNoArtifacts):
		return domain.ErrNoArtifactProduced
	default:
		return err
	}
}

// finish stamps the run and notifies subscribers.
func (s *Service) finish(run *domain.Run, err error) {
	now := time.Now()
	run.EndedAt = &now

	event := domain.RunEvent{
		Ts:    now.UnixMilli(),
		RunID: run.RunID,
	}
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		event.Type = domain.EventTypeRunFailed
		event.Error = run.Error
		log.Warnf("Run %s failed: %v", run.RunID, err)
	} else {
		run.Status = domain.RunStatusDone
		event.Type = domain.EventTypeRunDone
		event.File = run.FileURL
		log.Printf("Run %s produced %s in %s", run.RunID, run.Artifact, now.Sub(run.StartedAt))
	}

	if s.notifier != nil {
		if err := s.notifier.BroadcastJSON(event); err != nil {
			log.Warnf("Failed to broadcast run event %s: %v", run.RunID, err)
		}
	}
}
