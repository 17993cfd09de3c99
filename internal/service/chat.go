package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
	"github.com/xiaot623/gogo/therapy/internal/pipeline"
)

// SendResult is the outcome of one chat turn.
type SendResult struct {
	Reply     string
	Analysis  domain.Analysis
	Metadata  domain.MessageMetadata
	Degraded  bool
	UserMsg   domain.Message
	ReplyMsg  domain.Message
	SessionID string
}

// SendMessage runs one turn: analysis, safety classification and reply
// generation, then appends the user message and the reply as one unit.
//
// A failed analysis is replaced by the neutral analysis. A failed generation is
// replaced by the fallback reply; the result is still persisted and returned,
// together with an error wrapping domain.ErrGeneration. A session closed while
// the turn is in flight rejects the commit with domain.ErrConflict.
func (s *Service) SendMessage(ctx context.Context, sessionID, userID, text string) (*SendResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}

	session, err := s.authorize(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.SessionStatusClosed {
		return nil, fmt.Errorf("%w: session is closed", domain.ErrConflict)
	}

	if !s.tryAcquire(sessionID) {
		logging.Info().Str("session_id", sessionID).Msg("session busy, rejecting message")
		return nil, domain.ErrConflict
	}
	defer s.release(sessionID)

	log := logging.With().Str("session_id", sessionID).Str("user_id", userID).Logger()
	log.Info().Int("length", len(text)).Msg("processing message")

	tc, err := s.store.GetTherapyContext(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load therapy context, continuing without it")
		tc = domain.TherapyContext{Memory: map[string]any{}, Goals: []domain.Goal{}}
	}

	s.emitMessageEvent(ctx, session, text, tc)

	analysis, err := s.analyzer.Analyze(ctx, pipeline.AnalysisInput{
		Message: text,
		Memory:  tc.Memory,
		Goals:   tc.Goals,
	})
	if err != nil {
		log.Warn().Err(err).Msg("analysis failed, using neutral analysis")
		analysis = domain.NeutralAnalysis()
	}

	safety := domain.SafetyLevelStandard
	if s.classifier != nil {
		safety = s.classifier.Classify(ctx, analysis)
	}
	if safety != domain.SafetyLevelStandard {
		log.Warn().Str("safety_level", string(safety)).Float64("risk_level", analysis.RiskLevel).Msg("elevated safety level")
	}

	reply, genErr := s.responder.Respond(ctx, pipeline.ResponseInput{
		Message:      text,
		Analysis:     analysis,
		Memory:       tc.Memory,
		Goals:        tc.Goals,
		SystemPrompt: s.config.SystemPrompt,
		SafetyLevel:  safety,
	})
	degraded := genErr != nil
	if degraded {
		log.Error().Err(genErr).Msg("response generation failed, using fallback reply")
		reply = pipeline.FallbackReply
	}

	analysisCopy := analysis
	metadata := domain.MessageMetadata{
		Analysis:    &analysisCopy,
		Technique:   analysis.RecommendedApproach,
		Progress:    analysis.Progress(),
		SafetyLevel: safety,
		Fallback:    degraded,
	}
	if goal, ok := tc.ActiveGoal(); ok {
		metadata.Goal = goal.Title
	}

	// The turn is committed even if the caller has gone away.
	appended, err := s.ledger.Append(context.WithoutCancel(ctx), sessionID,
		domain.Message{Role: domain.RoleUser, Content: text},
		domain.Message{Role: domain.RoleAssistant, Content: reply, Metadata: &metadata},
	)
	if errors.Is(err, domain.ErrConflict) {
		log.Info().Msg("session closed while processing, turn discarded")
		return nil, err
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to persist turn")
		return nil, err
	}

	result := &SendResult{
		Reply:     reply,
		Analysis:  analysis,
		Metadata:  metadata,
		Degraded:  degraded,
		UserMsg:   appended[0],
		ReplyMsg:  appended[1],
		SessionID: sessionID,
	}
	log.Info().Bool("degraded", degraded).Str("safety_level", string(safety)).Msg("message processed")

	if degraded {
		return result, fmt.Errorf("reply degraded: %w", genErr)
	}
	return result, nil
}

// emitMessageEvent publishes the turn to collaborators before the stages run.
func (s *Service) emitMessageEvent(ctx context.Context, session *domain.Session, text string, tc domain.TherapyContext) {
	history, err := s.store.GetMessages(ctx, session.SessionID)
	if err != nil {
		logging.Warn().Err(err).Str("session_id", session.SessionID).Msg("failed to load history for event")
		history = []domain.Message{}
	}

	s.publisher.Dispatch(ctx, domain.SessionEvent{
		Name: domain.EventSessionMessage,
		Data: domain.SessionEventData{
			SessionID:    session.SessionID,
			UserID:       session.UserID,
			Message:      text,
			History:      history,
			Memory:       tc.Memory,
			Goals:        tc.Goals,
			SystemPrompt: s.config.SystemPrompt,
			Timestamp:    time.Now().UTC(),
		},
	})
}
