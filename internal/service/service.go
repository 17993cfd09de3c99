// Package service implements the session orchestrator: ownership checks,
// per-session serialization and the analysis/response pipeline of a chat turn.
package service

import (
	"context"
	"sync"

	"github.com/xiaot623/gogo/therapy/internal/config"
	"github.com/xiaot623/gogo/therapy/internal/dispatch"
	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/ledger"
	"github.com/xiaot623/gogo/therapy/internal/pipeline"
	"github.com/xiaot623/gogo/therapy/internal/repository"
)

// SafetyClassifier maps an analysis to a safety level.
type SafetyClassifier interface {
	Classify(ctx context.Context, a domain.Analysis) domain.SafetyLevel
}

type Service struct {
	store      repository.Store
	ledger     *ledger.Ledger
	analyzer   pipeline.Analyzer
	responder  pipeline.Responder
	classifier SafetyClassifier
	publisher  dispatch.Publisher
	config     *config.Config

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(store repository.Store, analyzer pipeline.Analyzer, responder pipeline.Responder, classifier SafetyClassifier, publisher dispatch.Publisher, cfg *config.Config) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Service{
		store:      store,
		ledger:     ledger.New(store),
		analyzer:   analyzer,
		responder:  responder,
		classifier: classifier,
		publisher:  publisher,
		config:     cfg,
		inFlight:   make(map[string]struct{}),
	}
}

type noopPublisher struct{}

func (noopPublisher) Dispatch(context.Context, domain.SessionEvent) {}
