package session

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kyc-service/internal/webhook"
	id "kyc-service/pkg/domain"
	dErrors "kyc-service/pkg/domain-errors"
	"kyc-service/pkg/platform/sentinel"
	"kyc-service/pkg/requestcontext"
)

// Notifier is the webhook seam. Completion events are fired after the status
// transition commits, never before.
type Notifier interface {
	Notify(ctx context.Context, orgID id.OrgID, eventType string, payload any)
}

// SetNotifier wires the webhook notifier. Optional; without one, completion
// events are simply not emitted.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// CompleteInput is the scoring worker's callback body.
type CompleteInput struct {
	SessionID      id.SessionID `json:"sessionId"`
	LivenessScore  *float64     `json:"livenessScore"`
	FaceMatchScore *float64     `json:"faceMatchScore"`
	ReasonCodes    []string     `json:"reasonCodes"`
	ManualReview   bool         `json:"manualReview"`
}

// CompletionEvent is the webhook payload for a finalized session.
type CompletionEvent struct {
	SessionID      id.SessionID `json:"sessionId"`
	Status         Status       `json:"status"`
	LivenessScore  *float64     `json:"livenessScore"`
	FaceMatchScore *float64     `json:"faceMatchScore"`
	ReasonCodes    []string     `json:"reasonCodes"`
	ManualReview   bool         `json:"manualReview"`
}

// Complete applies a scoring callback: decide pass/fail, transition the
// session, upsert the result row keyed by session, then notify subscribers.
//
// The status transition commits before the result row is written, so a
// rejected callback persists nothing and a result row can only ever exist for
// a PASSED or FAILED session.
//
// The operation is idempotent. A re-sent callback overwrites the same result
// row and either re-applies the same status (a no-op) or flips PASSED ↔ FAILED
// when the worker re-scored. Every applied callback re-notifies; receivers see
// at-least-once delivery. A session that lapsed to EXPIRED before the callback
// arrived is left untouched and the callback rejected with a conflict.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (*Session, *Result, error) {
	ctx, span := s.tracer.Start(ctx, "session.Complete",
		trace.WithAttributes(attribute.String("session.id", in.SessionID.String())))
	defer span.End()

	sess, err := s.sessions.FindByID(ctx, in.SessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}

	decided := Decide(in.LivenessScore)
	now := requestcontext.Now(ctx)

	updated, err := s.sessions.Execute(ctx, in.SessionID,
		func(cur *Session) error {
			if cur.Status == StatusExpired {
				return dErrors.New(dErrors.CodeConflict, "session expired before scoring completed")
			}
			if cur.Status != decided && !cur.Status.CanTransitionTo(decided) {
				return dErrors.New(dErrors.CodeConflict,
					fmt.Sprintf("session is %s and cannot be finalized", cur.Status))
			}
			return nil
		},
		func(cur *Session) {
			cur.Status = decided
			cur.UpdatedAt = now
		},
	)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.results.Upsert(ctx, &Result{
		ID:             id.NewResultID(),
		SessionID:      in.SessionID,
		LivenessScore:  in.LivenessScore,
		FaceMatchScore: in.FaceMatchScore,
		ReasonCodes:    in.ReasonCodes,
		ManualReview:   in.ManualReview,
		FinalizedAt:    now,
	})
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist result")
	}

	s.metrics.Finalized(string(decided))
	s.logger.InfoContext(ctx, "session finalized",
		"session_id", in.SessionID.String(),
		"status", decided,
		"manual_review", in.ManualReview,
	)

	if s.notifier != nil {
		event := CompletionEvent{
			SessionID:      in.SessionID,
			Status:         decided,
			LivenessScore:  in.LivenessScore,
			FaceMatchScore: in.FaceMatchScore,
			ReasonCodes:    in.ReasonCodes,
			ManualReview:   in.ManualReview,
		}
		// Detach from the request so a slow receiver cannot block or cancel
		// the callback response.
		go s.notifier.Notify(context.WithoutCancel(ctx), sess.OrgID, webhook.EventSessionCompleted, event)
	}
	return updated, result, nil
}
