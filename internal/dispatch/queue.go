// Package dispatch publishes scoring jobs to the worker queue. One message per
// session; the session service enforces the at-most-once invariant.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	id "kyc-service/pkg/domain"
	"kyc-service/pkg/platform/sentinel"
)

// TaskScoreSession is scheduled when a session's evidence set becomes complete.
const TaskScoreSession = "kyc:score"

// ScorePayload is the queue message contract with the scoring worker.
type ScorePayload struct {
	SessionID id.SessionID `json:"sessionId"`
	Prompts   []string     `json:"prompts"`
}

// Dispatcher is the seam the session service publishes through.
type Dispatcher interface {
	Enqueue(ctx context.Context, sessionID id.SessionID, prompts []string) error
}

// QueueDispatcher publishes scoring jobs via asynq.
type QueueDispatcher struct {
	client *asynq.Client
}

func NewQueueDispatcher(client *asynq.Client) *QueueDispatcher {
	return &QueueDispatcher{client: client}
}

func (d *QueueDispatcher) Enqueue(ctx context.Context, sessionID id.SessionID, prompts []string) error {
	data, err := json.Marshal(ScorePayload{SessionID: sessionID, Prompts: prompts})
	if err != nil {
		return fmt.Errorf("marshal score payload: %w", err)
	}
	task := asynq.NewTask(TaskScoreSession, data)
	if _, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("%w: enqueue score task: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}
