package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-service/internal/webhook"
	id "kyc-service/pkg/domain"
	"kyc-service/pkg/testutil"
)

func newTestRouter() (chi.Router, *webhook.Service) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := webhook.NewService(webhook.NewInMemoryStore(), logger)
	router := chi.NewRouter()
	New(svc, logger).Register(router)
	return router, svc
}

func adminScopes() []string { return []string{"kyc.webhook:write", "kyc.webhook:read"} }

func TestRegisterEndpoint(t *testing.T) {
	router, _ := newTestRouter()
	orgID := id.NewOrgID()

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/kyc/webhooks", webhook.RegisterInput{
		URL:    "https://example.com/hooks",
		Secret: "s",
	})
	req = testutil.WithAuth(req, orgID, adminScopes(), "ADMIN")

	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	e := testutil.UnmarshalResponse[webhook.Endpoint](t, rr)
	assert.Equal(t, orgID, e.OrgID)
	assert.Equal(t, []string{webhook.EventSessionCompleted}, e.EventTypes)
}

func TestRegisterEndpointNeverEchoesSecret(t *testing.T) {
	router, _ := newTestRouter()

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/kyc/webhooks", webhook.RegisterInput{
		URL:    "https://example.com/hooks",
		Secret: "super-secret",
	})
	req = testutil.WithAuth(req, id.NewOrgID(), adminScopes(), "ADMIN")

	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	assert.NotContains(t, rr.Body.String(), "super-secret")
}

func TestRegisterEndpointAuthz(t *testing.T) {
	router, _ := newTestRouter()
	body := webhook.RegisterInput{URL: "https://example.com/hooks"}

	t.Run("missing scope", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/kyc/webhooks", body)
		req = testutil.WithAuth(req, id.NewOrgID(), []string{"kyc.session:create"}, "ADMIN")
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusForbidden, "forbidden")
	})

	t.Run("insufficient role", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/kyc/webhooks", body)
		req = testutil.WithAuth(req, id.NewOrgID(), adminScopes(), "DEV")
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusForbidden, "forbidden")
	})

	t.Run("owner outranks admin requirement", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/kyc/webhooks", body)
		req = testutil.WithAuth(req, id.NewOrgID(), adminScopes(), "OWNER")
		testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusCreated)
	})

	t.Run("wildcard scope", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/kyc/webhooks", body)
		req = testutil.WithAuth(req, id.NewOrgID(), []string{"kyc.*"}, "ADMIN")
		testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusCreated)
	})

	t.Run("no organization claim", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/kyc/webhooks", body)
		testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusForbidden)
	})
}

func TestListEndpoints(t *testing.T) {
	router, svc := newTestRouter()
	orgID := id.NewOrgID()
	_, err := svc.Register(testutil.WithOrg(testutil.NewRequest(t, http.MethodGet, "/"), orgID).Context(), orgID,
		webhook.RegisterInput{URL: "https://example.com/hooks"})
	require.NoError(t, err)

	t.Run("readonly role can list", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/api/v1/kyc/webhooks")
		req = testutil.WithAuth(req, orgID, []string{"kyc.webhook:read"}, "READONLY")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[map[string][]webhook.Endpoint](t, rr)
		assert.Len(t, (*resp)["endpoints"], 1)
	})

	t.Run("other org sees nothing", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/api/v1/kyc/webhooks")
		req = testutil.WithAuth(req, id.NewOrgID(), []string{"kyc.webhook:read"}, "READONLY")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[map[string][]webhook.Endpoint](t, rr)
		assert.Empty(t, (*resp)["endpoints"])
	})
}

func TestDeactivateEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	orgID := id.NewOrgID()
	e, err := svc.Register(testutil.NewRequest(t, http.MethodGet, "/").Context(), orgID,
		webhook.RegisterInput{URL: "https://example.com/hooks"})
	require.NoError(t, err)

	req := testutil.NewRequest(t, http.MethodDelete, "/api/v1/kyc/webhooks/"+e.ID.String())
	req = testutil.WithAuth(req, orgID, adminScopes(), "ADMIN")
	testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusNoContent)

	req = testutil.NewRequest(t, http.MethodDelete, "/api/v1/kyc/webhooks/not-a-uuid")
	req = testutil.WithAuth(req, orgID, adminScopes(), "ADMIN")
	testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusBadRequest)
}
