// Package service implements upload processing and artifact lookup.
package service

import (
	"context"

	"github.com/xiaot623/gogo/segmenter/internal/artifact"
	"github.com/xiaot623/gogo/segmenter/internal/config"
	"github.com/xiaot623/gogo/segmenter/internal/upload"
	"github.com/xiaot623/gogo/segmenter/policy"
)

// Notifier receives run events. The event hub implements it.
type Notifier interface {
	BroadcastJSON(v interface{}) error
}

// Service wires the upload store, tool worker and artifact store together.
type Service struct {
	config       *config.Config
	uploads      *upload.Store
	artifacts    *artifact.Store
	worker       *Worker
	policyEngine *policy.Engine
	notifier     Notifier
}

// New creates a service. notifier may be nil.
func New(cfg *config.Config, uploads *upload.Store, artifacts *artifact.Store, worker *Worker, policyEngine *policy.Engine, notifier Notifier) *Service {
	return &Service{
		config:       cfg,
		uploads:      uploads,
		artifacts:    artifacts,
		worker:       worker,
		policyEngine: policyEngine,
		notifier:     notifier,
	}
}

// RunWorker runs the tool worker until ctx is done.
func (s *Service) RunWorker(ctx context.Context) error {
	return s.worker.Run(ctx)
}
