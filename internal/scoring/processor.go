package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"kyc-service/internal/dispatch"
	id "kyc-service/pkg/domain"
)

// Reporter is the callback seam, satisfied by CallbackClient.
type Reporter interface {
	Report(ctx context.Context, sessionID id.SessionID, v Verdict) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	scorer   Scorer
	reporter Reporter
	logger   *slog.Logger
}

func NewProcessor(scorer Scorer, reporter Reporter, logger *slog.Logger) *Processor {
	return &Processor{scorer: scorer, reporter: reporter, logger: logger}
}

// Handler registers the scoring job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(dispatch.TaskScoreSession, p.handleScore)
	return mux
}

func (p *Processor) handleScore(ctx context.Context, task *asynq.Task) error {
	var payload dispatch.ScorePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads never become valid; don't let asynq retry them.
		return fmt.Errorf("decode score payload: %v: %w", err, asynq.SkipRetry)
	}

	verdict, err := p.scorer.Score(ctx, payload.SessionID, payload.Prompts)
	if err != nil {
		p.logger.ErrorContext(ctx, "scoring failed",
			"session_id", payload.SessionID.String(), "error", err)
		return fmt.Errorf("score session %s: %w", payload.SessionID, err)
	}

	if err := p.reporter.Report(ctx, payload.SessionID, verdict); err != nil {
		p.logger.ErrorContext(ctx, "completion callback failed",
			"session_id", payload.SessionID.String(), "error", err)
		return fmt.Errorf("report session %s: %w", payload.SessionID, err)
	}

	p.logger.InfoContext(ctx, "session scored",
		"session_id", payload.SessionID.String(),
		"liveness_score", verdict.LivenessScore,
		"manual_review", verdict.ManualReview,
	)
	return nil
}
