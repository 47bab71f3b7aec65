package scoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kyc-service/pkg/domain"
)

func TestCallbackClientReport(t *testing.T) {
	sessionID := id.NewSessionID()
	var gotPath, gotToken string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Kyc-Worker-Token")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewCallbackClient(srv.URL, "token-123")
	err := client.Report(context.Background(), sessionID, Verdict{
		LivenessScore:  0.85,
		FaceMatchScore: 0.9,
		ReasonCodes:    []string{"ok"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/internal/kyc/sessions/"+sessionID.String()+"/complete", gotPath)
	assert.Equal(t, "token-123", gotToken)
	assert.Equal(t, 0.85, gotBody["livenessScore"])
	assert.Equal(t, 0.9, gotBody["faceMatchScore"])
}

func TestCallbackClientRejectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conflict", http.StatusConflict)
	}))
	defer srv.Close()

	client := NewCallbackClient(srv.URL, "token-123")
	err := client.Report(context.Background(), id.NewSessionID(), Verdict{LivenessScore: 0.5})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}

func TestCallbackClientConnectionFailure(t *testing.T) {
	client := NewCallbackClient("http://127.0.0.1:1", "token-123")

	err := client.Report(context.Background(), id.NewSessionID(), Verdict{})
	assert.Error(t, err)
}
