package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kyc-service/pkg/domain"
	dErrors "kyc-service/pkg/domain-errors"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifiedEvent
	done   chan struct{}
}

type notifiedEvent struct {
	orgID     id.OrgID
	eventType string
	payload   any
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 16)}
}

func (f *fakeNotifier) Notify(_ context.Context, orgID id.OrgID, eventType string, payload any) {
	f.mu.Lock()
	f.events = append(f.events, notifiedEvent{orgID: orgID, eventType: eventType, payload: payload})
	f.mu.Unlock()
	f.done <- struct{}{}
}

func (f *fakeNotifier) wait(t *testing.T) notifiedEvent {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

func score(v float64) *float64 { return &v }

func TestCompletePasses(t *testing.T) {
	env := newTestEnv(t)
	notifier := newFakeNotifier()
	env.service.SetNotifier(notifier)
	sess := env.createSession(t)
	completeSession(t, env, sess.ID)

	updated, result, err := env.service.Complete(env.ctx(), CompleteInput{
		SessionID:      sess.ID,
		LivenessScore:  score(0.92),
		FaceMatchScore: score(0.88),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, updated.Status)
	assert.Equal(t, 0.92, *result.LivenessScore)

	event := notifier.wait(t)
	assert.Equal(t, env.orgID, event.orgID)
	assert.Equal(t, "kyc.session.completed", event.eventType)
	completion, ok := event.payload.(CompletionEvent)
	require.True(t, ok)
	assert.Equal(t, StatusPassed, completion.Status)
}

func TestCompleteFailsBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	completeSession(t, env, sess.ID)

	updated, _, err := env.service.Complete(env.ctx(), CompleteInput{
		SessionID:     sess.ID,
		LivenessScore: score(0.42),
		ReasonCodes:   []string{"liveness_below_threshold"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, updated.Status)
}

func TestCompleteWithoutScoreFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	completeSession(t, env, sess.ID)

	updated, result, err := env.service.Complete(env.ctx(), CompleteInput{SessionID: sess.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, updated.Status)
	assert.Nil(t, result.LivenessScore)
}

func TestCompleteIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	notifier := newFakeNotifier()
	env.service.SetNotifier(notifier)
	sess := env.createSession(t)
	completeSession(t, env, sess.ID)

	in := CompleteInput{SessionID: sess.ID, LivenessScore: score(0.8)}
	_, first, err := env.service.Complete(env.ctx(), in)
	require.NoError(t, err)
	notifier.wait(t)

	updated, second, err := env.service.Complete(env.ctx(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, updated.Status)
	assert.Equal(t, first.ID, second.ID, "result row identity is stable across replays")

	// Replays re-notify; delivery is at-least-once.
	notifier.wait(t)
}

func TestCompleteFlipsOnRescore(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	completeSession(t, env, sess.ID)

	_, _, err := env.service.Complete(env.ctx(), CompleteInput{SessionID: sess.ID, LivenessScore: score(0.9)})
	require.NoError(t, err)

	updated, result, err := env.service.Complete(env.ctx(), CompleteInput{SessionID: sess.ID, LivenessScore: score(0.1)})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, updated.Status)
	assert.Equal(t, 0.1, *result.LivenessScore)
}

func TestCompleteRejectsExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	completeSession(t, env, sess.ID)

	// The session lapsed before the callback arrived.
	_, err := env.store.Execute(env.ctx(), sess.ID, nil, func(cur *Session) {
		cur.Status = StatusExpired
	})
	require.NoError(t, err)

	_, _, err = env.service.Complete(env.ctx(), CompleteInput{SessionID: sess.ID, LivenessScore: score(0.9)})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	got, err := env.store.FindByID(env.ctx(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status, "expired sessions stay expired")

	_, _, err = env.service.GetResult(env.ctx(), sess.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound),
		"a rejected callback must not leave a result behind")
}

func TestCompleteRejectsSessionNotProcessing(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	_, _, err := env.service.Complete(env.ctx(), CompleteInput{SessionID: sess.ID, LivenessScore: score(0.9)})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict),
		"a callback for a session that never dispatched is rejected")

	got, err := env.store.FindByID(env.ctx(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	_, _, err = env.service.GetResult(env.ctx(), sess.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound),
		"a result exists only for a finalized session")
}

func TestCompleteUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.service.Complete(env.ctx(), CompleteInput{SessionID: id.NewSessionID(), LivenessScore: score(0.9)})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
