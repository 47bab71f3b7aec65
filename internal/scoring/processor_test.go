package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-service/internal/dispatch"
	id "kyc-service/pkg/domain"
)

type fakeReporter struct {
	reported []id.SessionID
	verdicts []Verdict
	err      error
}

func (f *fakeReporter) Report(_ context.Context, sessionID id.SessionID, v Verdict) error {
	if f.err != nil {
		return f.err
	}
	f.reported = append(f.reported, sessionID)
	f.verdicts = append(f.verdicts, v)
	return nil
}

func newTestProcessor(reporter Reporter) *Processor {
	return NewProcessor(NewStubScorer(), reporter, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func scoreTask(t *testing.T, payload dispatch.ScorePayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(dispatch.TaskScoreSession, data)
}

func TestHandleScoreReportsVerdict(t *testing.T) {
	reporter := &fakeReporter{}
	processor := newTestProcessor(reporter)
	sessionID := id.NewSessionID()

	err := processor.handleScore(context.Background(), scoreTask(t, dispatch.ScorePayload{
		SessionID: sessionID,
		Prompts:   []string{"look_left"},
	}))
	require.NoError(t, err)

	require.Len(t, reporter.reported, 1)
	assert.Equal(t, sessionID, reporter.reported[0])
}

func TestHandleScoreMalformedPayloadSkipsRetry(t *testing.T) {
	processor := newTestProcessor(&fakeReporter{})

	err := processor.handleScore(context.Background(), asynq.NewTask(dispatch.TaskScoreSession, []byte("garbage")))

	assert.ErrorIs(t, err, asynq.SkipRetry, "malformed payloads must not be retried")
}

func TestHandleScoreCallbackFailurePropagates(t *testing.T) {
	reporter := &fakeReporter{err: errors.New("api unreachable")}
	processor := newTestProcessor(reporter)

	err := processor.handleScore(context.Background(), scoreTask(t, dispatch.ScorePayload{
		SessionID: id.NewSessionID(),
		Prompts:   []string{"blink"},
	}))

	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry, "transient failures stay retryable")
}
