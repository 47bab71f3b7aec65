// Package session implements the verification session pipeline: lifecycle,
// evidence intake with the completeness gate, scoring dispatch, and result
// finalization.
package session

import (
	"encoding/json"
	"time"

	id "kyc-service/pkg/domain"
)

// Status is the session lifecycle state.
//
// Transitions are monotonic: PENDING → UPLOADING → PROCESSING → PASSED|FAILED.
// EXPIRED is reachable from any non-terminal state once the deadline passes.
// PASSED, FAILED and EXPIRED are terminal, with two deliberate exceptions
// encoded in CanTransitionTo:
//   - PROCESSING → UPLOADING compensates a failed queue publish so a session
//     is never stuck claiming PROCESSING with no job behind it
//   - PASSED ↔ FAILED may flip when the worker re-sends a callback; the result
//     upsert keeps repeated callbacks idempotent at the data level
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusUploading  Status = "UPLOADING"
	StatusProcessing Status = "PROCESSING"
	StatusPassed     Status = "PASSED"
	StatusFailed     Status = "FAILED"
	StatusExpired    Status = "EXPIRED"
)

// IsTerminal reports whether no further client activity is expected.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusExpired
}

// CanTransitionTo encodes the allowed state machine edges.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusExpired {
		return !s.IsTerminal()
	}
	switch s {
	case StatusPending:
		return next == StatusUploading
	case StatusUploading:
		return next == StatusProcessing
	case StatusProcessing:
		// Uploading only as compensation for a failed dispatch.
		return next == StatusPassed || next == StatusFailed || next == StatusUploading
	case StatusPassed:
		return next == StatusFailed
	case StatusFailed:
		return next == StatusPassed
	default:
		return false
	}
}

// MediaType classifies an evidence upload.
type MediaType string

const (
	MediaIDFront     MediaType = "id_front"
	MediaIDBack      MediaType = "id_back"
	MediaSelfieVideo MediaType = "selfie_video"
	MediaSelfieFrame MediaType = "selfie_frame"
)

// ParseMediaType validates a client-supplied media type.
func ParseMediaType(s string) (MediaType, bool) {
	switch MediaType(s) {
	case MediaIDFront, MediaIDBack, MediaSelfieVideo, MediaSelfieFrame:
		return MediaType(s), true
	}
	return "", false
}

// AllowsMime reports whether the declared mime type is acceptable for this
// media type. Document sides accept JPEG or PNG stills, the selfie video must
// be MP4, and the selfie frame a JPEG.
func (m MediaType) AllowsMime(mime string) bool {
	switch m {
	case MediaIDFront, MediaIDBack:
		return mime == "image/jpeg" || mime == "image/png"
	case MediaSelfieVideo:
		return mime == "video/mp4"
	case MediaSelfieFrame:
		return mime == "image/jpeg"
	}
	return false
}

// ChallengeScript is the ordered liveness prompt list issued during capture.
type ChallengeScript struct {
	Prompts        []string `json:"prompts"`
	SegmentSeconds int      `json:"segmentSeconds"`
}

// DefaultChallengeScript is the canonical 4-prompt liveness script.
func DefaultChallengeScript() ChallengeScript {
	return ChallengeScript{
		Prompts:        []string{"look_left", "look_right", "look_up", "look_down"},
		SegmentSeconds: 2,
	}
}

// ParseChallengeScript decodes a stored script, falling back to the default
// when the stored form cannot be parsed or names no prompts. Capture must
// always have a script to drive, so parse failures never surface.
func ParseChallengeScript(raw []byte) ChallengeScript {
	var script ChallengeScript
	if err := json.Unmarshal(raw, &script); err != nil || len(script.Prompts) == 0 {
		return DefaultChallengeScript()
	}
	if script.SegmentSeconds <= 0 {
		script.SegmentSeconds = DefaultChallengeScript().SegmentSeconds
	}
	return script
}

// Session is the aggregate root of one verification attempt.
type Session struct {
	ID              id.SessionID    `json:"id"`
	OrgID           id.OrgID        `json:"organizationId"`
	UserRef         string          `json:"userRef,omitempty"`
	Status          Status          `json:"status"`
	ChallengeScript ChallengeScript `json:"challengeScript"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	Attempts        int             `json:"attempts"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Expired reports whether the session deadline has passed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// EvidenceStatus tracks a single upload. Accepted is the only state the
// pipeline produces today; rejected uploads never get a record.
type EvidenceStatus string

const EvidenceAccepted EvidenceStatus = "accepted"

// Evidence is one accepted upload belonging to a session. Multiple records of
// the same media type may exist (retries); completeness counts types, not rows.
type Evidence struct {
	ID          id.EvidenceID  `json:"id"`
	SessionID   id.SessionID   `json:"sessionId"`
	MediaType   MediaType      `json:"mediaType"`
	StoragePath string         `json:"storagePath"`
	MimeType    string         `json:"mimeType"`
	Checksum    string         `json:"checksum"`
	SizeBytes   int64          `json:"sizeBytes"`
	Status      EvidenceStatus `json:"status"`
	UploadedAt  time.Time      `json:"uploadedAt"`
}

// Result is the worker's verdict, at most one per session. Repeated callbacks
// overwrite fields in place.
type Result struct {
	ID             id.ResultID  `json:"id"`
	SessionID      id.SessionID `json:"sessionId"`
	LivenessScore  *float64     `json:"livenessScore"`
	FaceMatchScore *float64     `json:"faceMatchScore"`
	ReasonCodes    []string     `json:"reasonCodes"`
	ManualReview   bool         `json:"manualReview"`
	FinalizedAt    time.Time    `json:"finalizedAt"`
}

// PassThreshold is the minimum liveness score for an automatic pass.
const PassThreshold = 0.7

// Decide applies the pass/fail policy: a session passes only when a liveness
// score is present and meets the threshold. Absent scores fail closed.
func Decide(livenessScore *float64) Status {
	if livenessScore != nil && *livenessScore >= PassThreshold {
		return StatusPassed
	}
	return StatusFailed
}

// Complete reports whether the evidence set satisfies the completeness gate:
// both document sides plus at least one selfie artifact.
func Complete(types map[MediaType]bool) bool {
	return types[MediaIDFront] && types[MediaIDBack] &&
		(types[MediaSelfieVideo] || types[MediaSelfieFrame])
}
