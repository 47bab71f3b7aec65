package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kyc-service/internal/dispatch"
	"kyc-service/internal/evidence"
	"kyc-service/internal/session/metrics"
	id "kyc-service/pkg/domain"
	dErrors "kyc-service/pkg/domain-errors"
	"kyc-service/pkg/platform/sentinel"
	"kyc-service/pkg/requestcontext"
)

// Service drives the verification pipeline. All externally visible operations
// enforce organization isolation: touching a session owned by another
// organization is forbidden.
type Service struct {
	sessions   Store
	evidence   EvidenceStore
	results    ResultStore
	blobs      evidence.BlobStore
	dispatcher dispatch.Dispatcher
	guard      DispatchGuard
	notifier   Notifier
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	sessionTTL time.Duration
}

func NewService(
	sessions Store,
	evidenceStore EvidenceStore,
	results ResultStore,
	blobs evidence.BlobStore,
	dispatcher dispatch.Dispatcher,
	guard DispatchGuard,
	logger *slog.Logger,
	m *metrics.Metrics,
	sessionTTL time.Duration,
) *Service {
	return &Service{
		sessions:   sessions,
		evidence:   evidenceStore,
		results:    results,
		blobs:      blobs,
		dispatcher: dispatcher,
		guard:      guard,
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer("kyc-service/session"),
		sessionTTL: sessionTTL,
	}
}

// CreateSession opens a new verification attempt for the caller's
// organization. The session starts PENDING with a fixed deadline. A caller may
// supply a custom challenge script; absent or empty scripts fall back to the
// default, and the prompts later drive the scoring dispatch.
func (s *Service) CreateSession(ctx context.Context, userRef string, script *ChallengeScript) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.Create")
	defer span.End()

	orgID, ok := requestcontext.OrgID(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "organization claim required")
	}
	now := requestcontext.Now(ctx)

	challenge := DefaultChallengeScript()
	if script != nil && len(script.Prompts) > 0 {
		challenge = *script
		if challenge.SegmentSeconds <= 0 {
			challenge.SegmentSeconds = DefaultChallengeScript().SegmentSeconds
		}
	}

	sess := &Session{
		ID:              id.NewSessionID(),
		OrgID:           orgID,
		UserRef:         userRef,
		Status:          StatusPending,
		ChallengeScript: challenge,
		ExpiresAt:       now.Add(s.sessionTTL),
		CreatedBy:       requestcontext.Subject(ctx),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}

	s.metrics.SessionCreated()
	span.SetAttributes(attribute.String("session.id", sess.ID.String()))
	s.logger.InfoContext(ctx, "session created",
		"session_id", sess.ID.String(),
		"org_id", orgID.String(),
		"expires_at", sess.ExpiresAt,
	)
	return sess, nil
}

// GetSession returns a session owned by the caller's organization.
func (s *Service) GetSession(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.Get")
	defer span.End()
	return s.loadOwned(ctx, sessionID)
}

// SubmitInput describes one evidence upload.
type SubmitInput struct {
	SessionID id.SessionID
	MediaType string
	Filename  string
	MimeType  string
	Body      io.Reader
}

// SubmitEvidence ingests one evidence upload and advances the session.
//
// The completeness gate fires inside the store's Execute callback, under the
// session lock, so of any number of concurrent uploads exactly one observes
// the UPLOADING → PROCESSING edge. Only that caller dispatches the scoring
// job, and the dispatch guard extends the once-only guarantee across replicas.
// A failed publish is compensated by stepping the session back to UPLOADING
// and releasing the guard, so a retry upload can fire the gate again.
//
// Uploads arriving while the session is already PROCESSING (a retried id_back
// after the gate fired) are accepted and recorded but never dispatch a second
// job. Terminal sessions reject further evidence.
func (s *Service) SubmitEvidence(ctx context.Context, in SubmitInput) (*Evidence, *Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.SubmitEvidence",
		trace.WithAttributes(attribute.String("session.id", in.SessionID.String())))
	defer span.End()
	start := time.Now()

	mediaType, ok := ParseMediaType(in.MediaType)
	if !ok {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown media type %q", in.MediaType))
	}
	if !mediaType.AllowsMime(in.MimeType) {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("mime type %q not allowed for %s", in.MimeType, mediaType))
	}

	sess, err := s.loadOwned(ctx, in.SessionID)
	if err != nil {
		return nil, nil, err
	}
	now := requestcontext.Now(ctx)
	if sess.Status == StatusExpired || (!sess.Status.IsTerminal() && sess.Expired(now)) {
		return nil, nil, s.expire(ctx, in.SessionID)
	}
	if sess.Status.IsTerminal() {
		return nil, nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("session is %s and no longer accepts evidence", sess.Status))
	}

	obj, err := s.blobs.Save(ctx, in.SessionID.String(), in.Filename, in.MimeType, in.Body)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "evidence storage failed")
	}

	ev := &Evidence{
		ID:          id.NewEvidenceID(),
		SessionID:   in.SessionID,
		MediaType:   mediaType,
		StoragePath: obj.Path,
		MimeType:    obj.MimeType,
		Checksum:    obj.Checksum,
		SizeBytes:   obj.SizeBytes,
		Status:      EvidenceAccepted,
		UploadedAt:  now,
	}
	if err := s.evidence.Append(ctx, ev); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record evidence")
	}

	types, err := s.evidence.TypesBySession(ctx, in.SessionID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence set")
	}
	complete := Complete(types)

	// fired is set inside mutate, under the session lock. Of concurrent
	// submits that each see a complete evidence set, only the one that
	// observes Status != PROCESSING when the lock is held flips the edge.
	fired := false
	updated, err := s.sessions.Execute(ctx, in.SessionID,
		func(cur *Session) error {
			if cur.Status.IsTerminal() {
				return dErrors.New(dErrors.CodeConflict,
					fmt.Sprintf("session is %s and no longer accepts evidence", cur.Status))
			}
			if cur.Expired(now) {
				return dErrors.New(dErrors.CodeExpired, "session expired")
			}
			return nil
		},
		func(cur *Session) {
			cur.Attempts++
			cur.UpdatedAt = now
			if cur.Status == StatusPending {
				cur.Status = StatusUploading
			}
			if complete && cur.Status == StatusUploading {
				cur.Status = StatusProcessing
				fired = true
			}
		},
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeExpired) {
			return nil, nil, s.expire(ctx, in.SessionID)
		}
		return nil, nil, err
	}

	if fired {
		if err := s.dispatchScoring(ctx, updated); err != nil {
			return nil, nil, err
		}
	}

	s.metrics.EvidenceUploaded(string(mediaType), ev.SizeBytes, time.Since(start))
	s.logger.InfoContext(ctx, "evidence accepted",
		"session_id", in.SessionID.String(),
		"media_type", mediaType,
		"size_bytes", ev.SizeBytes,
		"status", updated.Status,
	)
	return ev, updated, nil
}

// GetResult returns the scoring result for a session owned by the caller's
// organization.
func (s *Service) GetResult(ctx context.Context, sessionID id.SessionID) (*Result, *Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.GetResult")
	defer span.End()

	sess, err := s.loadOwned(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.results.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "result not available")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load result")
	}
	return result, sess, nil
}

// dispatchScoring publishes the scoring job for a session whose gate just
// fired. The guard is released and the status stepped back on publish failure.
func (s *Service) dispatchScoring(ctx context.Context, sess *Session) error {
	acquired, err := s.guard.Acquire(ctx, sess.ID)
	if err != nil {
		s.metrics.DispatchAttempt("guard_error")
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "dispatch guard unavailable")
	}
	if !acquired {
		// Another replica already published for this session.
		s.metrics.DispatchAttempt("duplicate")
		return nil
	}

	if err := s.dispatcher.Enqueue(ctx, sess.ID, sess.ChallengeScript.Prompts); err != nil {
		s.metrics.DispatchAttempt("error")
		if relErr := s.guard.Release(ctx, sess.ID); relErr != nil {
			s.logger.ErrorContext(ctx, "dispatch guard release failed",
				"session_id", sess.ID.String(), "error", relErr)
		}
		if _, compErr := s.sessions.Execute(ctx, sess.ID,
			func(cur *Session) error {
				if cur.Status != StatusProcessing {
					return dErrors.New(dErrors.CodeConflict, "session no longer processing")
				}
				return nil
			},
			func(cur *Session) {
				cur.Status = StatusUploading
				cur.UpdatedAt = requestcontext.Now(ctx)
			},
		); compErr != nil {
			s.logger.ErrorContext(ctx, "dispatch compensation failed",
				"session_id", sess.ID.String(), "error", compErr)
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "scoring dispatch failed")
	}

	s.metrics.DispatchAttempt("ok")
	s.logger.InfoContext(ctx, "scoring job dispatched", "session_id", sess.ID.String())
	return nil
}

// expire lazily marks the session EXPIRED and returns the client-facing error.
// The transition races with nothing: EXPIRED is reachable from every
// non-terminal state and terminal sessions are left alone.
func (s *Service) expire(ctx context.Context, sessionID id.SessionID) error {
	_, err := s.sessions.Execute(ctx, sessionID,
		func(cur *Session) error {
			if cur.Status.IsTerminal() {
				return dErrors.New(dErrors.CodeExpired, "session expired")
			}
			return nil
		},
		func(cur *Session) {
			cur.Status = StatusExpired
			cur.UpdatedAt = requestcontext.Now(ctx)
		},
	)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeExpired) {
		s.logger.ErrorContext(ctx, "lazy expiry failed",
			"session_id", sessionID.String(), "error", err)
	}
	return dErrors.New(dErrors.CodeExpired, "session expired")
}

func (s *Service) loadOwned(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	orgID, ok := requestcontext.OrgID(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "organization claim required")
	}
	sess, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if sess.OrgID != orgID {
		return nil, dErrors.New(dErrors.CodeForbidden, "session belongs to another organization")
	}
	return sess, nil
}
