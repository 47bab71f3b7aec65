package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	id "kyc-service/pkg/domain"
)

// workerTokenHeader must match the API server's internal route guard.
const workerTokenHeader = "X-Kyc-Worker-Token"

// CallbackClient reports verdicts to the API server's internal completion
// route. Failures propagate to asynq, which retries the whole job; the
// completion endpoint is idempotent so replays are safe.
type CallbackClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewCallbackClient(baseURL, token string) *CallbackClient {
	return &CallbackClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type completeRequest struct {
	LivenessScore  *float64 `json:"livenessScore"`
	FaceMatchScore *float64 `json:"faceMatchScore"`
	ReasonCodes    []string `json:"reasonCodes"`
	ManualReview   bool     `json:"manualReview"`
}

// Report posts the verdict for a session.
func (c *CallbackClient) Report(ctx context.Context, sessionID id.SessionID, v Verdict) error {
	body, err := json.Marshal(completeRequest{
		LivenessScore:  &v.LivenessScore,
		FaceMatchScore: &v.FaceMatchScore,
		ReasonCodes:    v.ReasonCodes,
		ManualReview:   v.ManualReview,
	})
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}

	url := fmt.Sprintf("%s/internal/kyc/sessions/%s/complete", c.baseURL, sessionID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(workerTokenHeader, c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("callback rejected: status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
