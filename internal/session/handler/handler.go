package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kyc-service/internal/platform/middleware"
	"kyc-service/internal/session"
	"kyc-service/internal/transport/http/shared"
	id "kyc-service/pkg/domain"
	dErrors "kyc-service/pkg/domain-errors"
	"kyc-service/pkg/requestcontext"
)

// WorkerTokenHeader authenticates the scoring worker on the internal callback
// route. The value is compared in constant time.
const WorkerTokenHeader = "X-Kyc-Worker-Token"

// maxUploadBytes caps a single evidence upload.
const maxUploadBytes = 32 << 20

// Service defines the interface for session pipeline operations.
type Service interface {
	CreateSession(ctx context.Context, userRef string, script *session.ChallengeScript) (*session.Session, error)
	GetSession(ctx context.Context, sessionID id.SessionID) (*session.Session, error)
	SubmitEvidence(ctx context.Context, in session.SubmitInput) (*session.Evidence, *session.Session, error)
	GetResult(ctx context.Context, sessionID id.SessionID) (*session.Result, *session.Session, error)
	Complete(ctx context.Context, in session.CompleteInput) (*session.Session, *session.Result, error)
}

// Handler serves the session pipeline endpoints.
type Handler struct {
	logger      *slog.Logger
	sessions    Service
	workerToken string
}

func New(sessions Service, workerToken string, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, sessions: sessions, workerToken: workerToken}
}

// Register registers the client-facing routes on the authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/kyc/sessions", h.handleCreate)
	r.Get("/api/v1/kyc/sessions/{sessionID}", h.handleGet)
	r.Post("/api/v1/kyc/sessions/{sessionID}/media", h.handleSubmitMedia)
	r.Get("/api/v1/kyc/sessions/{sessionID}/result", h.handleGetResult)
}

// RegisterInternal registers the worker callback route. The caller mounts it
// outside the JWT-authenticated router; the worker token is the only guard.
func (h *Handler) RegisterInternal(r chi.Router) {
	r.Post("/internal/kyc/sessions/{sessionID}/complete", h.handleComplete)
}

type createRequest struct {
	UserRef         string                   `json:"userRef"`
	ChallengeScript *session.ChallengeScript `json:"challengeScript"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorized(w, ctx, "kyc.session:create", "DEV") {
		return
	}

	var req createRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	sess, err := h.sessions.CreateSession(ctx, req.UserRef, req.ChallengeScript)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requestcontext.HasScope(ctx, "kyc.session:create") && !requestcontext.HasScope(ctx, "kyc.result:read") {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient scope"))
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleSubmitMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorized(w, ctx, "kyc.media:upload", "DEV") {
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file part is required"))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	ev, sess, err := h.sessions.SubmitEvidence(ctx, session.SubmitInput{
		SessionID: sessionID,
		MediaType: r.FormValue("mediaType"),
		Filename:  header.Filename,
		MimeType:  mimeType,
		Body:      file,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "evidence rejected",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"evidence":      ev,
		"sessionStatus": sess.Status,
	})
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requestcontext.HasScope(ctx, "kyc.result:read") {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient scope"))
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	result, sess, err := h.sessions.GetResult(ctx, sessionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"result": result,
		"status": sess.Status,
	})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.Header.Get(WorkerTokenHeader)
	if h.workerToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.workerToken)) != 1 {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid worker token"))
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var in session.CompleteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	in.SessionID = sessionID

	sess, result, err := h.sessions.Complete(ctx, in)
	if err != nil {
		h.logger.WarnContext(ctx, "completion callback rejected",
			"session_id", sessionID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"status": sess.Status,
		"result": result,
	})
}

// authorized checks the scope and, when requiredRole is non-empty, the role
// rank. It writes the error response itself and returns false on failure.
func (h *Handler) authorized(w http.ResponseWriter, ctx context.Context, scope, requiredRole string) bool {
	if !requestcontext.HasScope(ctx, scope) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient scope"))
		return false
	}
	if requiredRole != "" && !middleware.RoleAtLeast(requestcontext.Role(ctx), requiredRole) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
		return false
	}
	return true
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return id.SessionID{}, false
	}
	return sessionID, true
}
