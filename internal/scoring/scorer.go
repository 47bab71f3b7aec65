// Package scoring is the worker side of the pipeline: it consumes dispatched
// scoring jobs, produces a verdict, and reports it back over the internal
// completion callback.
package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	id "kyc-service/pkg/domain"
)

// Verdict is the scorer's output, mirrored into the completion callback.
type Verdict struct {
	LivenessScore  float64
	FaceMatchScore float64
	ReasonCodes    []string
	ManualReview   bool
}

// Scorer produces a verdict for a session. The liveness model is an external
// system in production; the stub below stands in for it.
type Scorer interface {
	Score(ctx context.Context, sessionID id.SessionID, prompts []string) (Verdict, error)
}

// StubScorer derives a deterministic verdict from the session ID so repeated
// runs of the same job always report the same scores. Useful for local stacks
// and integration tests until a real model endpoint is wired in.
type StubScorer struct {
	// PassThreshold mirrors the finalizer's policy so reason codes line up
	// with the decided status.
	PassThreshold float64
}

func NewStubScorer() *StubScorer {
	return &StubScorer{PassThreshold: 0.7}
}

func (s *StubScorer) Score(_ context.Context, sessionID id.SessionID, prompts []string) (Verdict, error) {
	sum := sha256.Sum256([]byte(sessionID.String()))
	liveness := scoreFromBytes(sum[0:8])
	faceMatch := scoreFromBytes(sum[8:16])

	v := Verdict{
		LivenessScore:  liveness,
		FaceMatchScore: faceMatch,
	}
	if liveness < s.PassThreshold {
		v.ReasonCodes = append(v.ReasonCodes, "liveness_below_threshold")
	}
	if len(prompts) == 0 {
		v.ReasonCodes = append(v.ReasonCodes, "no_challenge_prompts")
		v.ManualReview = true
	}
	// Borderline scores go to a human regardless of outcome.
	if diff := liveness - s.PassThreshold; diff > -0.05 && diff < 0.05 {
		v.ManualReview = true
	}
	return v, nil
}

// scoreFromBytes maps 8 hash bytes onto [0, 1).
func scoreFromBytes(b []byte) float64 {
	if len(b) != 8 {
		panic(fmt.Sprintf("scoreFromBytes: need 8 bytes, got %d", len(b)))
	}
	return float64(binary.BigEndian.Uint64(b)) / float64(^uint64(0))
}
