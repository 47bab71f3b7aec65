package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-service/internal/webhook/metrics"
	id "kyc-service/pkg/domain"
)

type receivedDelivery struct {
	body      []byte
	signature string
}

// receiver is a test webhook endpoint capturing deliveries.
type receiver struct {
	mu         sync.Mutex
	deliveries []receivedDelivery
	status     int
	server     *httptest.Server
}

func newReceiver(status int) *receiver {
	r := &receiver{status: status}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.deliveries = append(r.deliveries, receivedDelivery{
			body:      body,
			signature: req.Header.Get(SignatureHeader),
		})
		r.mu.Unlock()
		w.WriteHeader(r.status)
	}))
	return r
}

func (r *receiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

func (r *receiver) last() receivedDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deliveries[len(r.deliveries)-1]
}

func newTestNotifier(store Store) *Notifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewNotifier(store, logger, metrics.New(prometheus.NewRegistry()), 4, 5*time.Second)
}

func registerEndpoint(t *testing.T, store Store, orgID id.OrgID, url, secret string, events []string) *Endpoint {
	t.Helper()
	e := &Endpoint{
		ID:         id.NewEndpointID(),
		OrgID:      orgID,
		URL:        url,
		Secret:     secret,
		EventTypes: events,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), e))
	return e
}

func TestNotifySignsEnvelope(t *testing.T) {
	rcv := newReceiver(http.StatusOK)
	defer rcv.server.Close()
	store := NewInMemoryStore()
	orgID := id.NewOrgID()
	registerEndpoint(t, store, orgID, rcv.server.URL, "topsecret", []string{EventSessionCompleted})

	notifier := newTestNotifier(store)
	notifier.Notify(context.Background(), orgID, EventSessionCompleted, map[string]string{"hello": "world"})

	require.Equal(t, 1, rcv.count())
	got := rcv.last()
	assert.Equal(t, Sign("topsecret", got.body), got.signature,
		"signature covers the exact bytes on the wire")

	var envelope Envelope
	require.NoError(t, json.Unmarshal(got.body, &envelope))
	assert.Equal(t, EventSessionCompleted, envelope.Event)
	assert.False(t, envelope.Timestamp.IsZero())
}

func TestNotifyOmitsSignatureWithoutSecret(t *testing.T) {
	rcv := newReceiver(http.StatusOK)
	defer rcv.server.Close()
	store := NewInMemoryStore()
	orgID := id.NewOrgID()
	registerEndpoint(t, store, orgID, rcv.server.URL, "", []string{EventSessionCompleted})

	newTestNotifier(store).Notify(context.Background(), orgID, EventSessionCompleted, nil)

	require.Equal(t, 1, rcv.count())
	assert.Empty(t, rcv.last().signature)
}

func TestNotifySkipsUnsubscribedEndpoints(t *testing.T) {
	subscribed := newReceiver(http.StatusOK)
	defer subscribed.server.Close()
	other := newReceiver(http.StatusOK)
	defer other.server.Close()

	store := NewInMemoryStore()
	orgID := id.NewOrgID()
	registerEndpoint(t, store, orgID, subscribed.server.URL, "s", []string{EventSessionCompleted})
	registerEndpoint(t, store, orgID, other.server.URL, "s", []string{"kyc.other.event"})

	newTestNotifier(store).Notify(context.Background(), orgID, EventSessionCompleted, nil)

	assert.Equal(t, 1, subscribed.count())
	assert.Equal(t, 0, other.count())
}

func TestNotifyWildcardSubscription(t *testing.T) {
	rcv := newReceiver(http.StatusOK)
	defer rcv.server.Close()
	store := NewInMemoryStore()
	orgID := id.NewOrgID()
	registerEndpoint(t, store, orgID, rcv.server.URL, "s", []string{Wildcard})

	newTestNotifier(store).Notify(context.Background(), orgID, EventSessionCompleted, nil)

	assert.Equal(t, 1, rcv.count())
}

func TestNotifyIsolatesOrganizations(t *testing.T) {
	rcv := newReceiver(http.StatusOK)
	defer rcv.server.Close()
	store := NewInMemoryStore()
	registerEndpoint(t, store, id.NewOrgID(), rcv.server.URL, "s", []string{EventSessionCompleted})

	newTestNotifier(store).Notify(context.Background(), id.NewOrgID(), EventSessionCompleted, nil)

	assert.Equal(t, 0, rcv.count())
}

func TestNotifyFailuresDoNotAffectOtherEndpoints(t *testing.T) {
	failing := newReceiver(http.StatusInternalServerError)
	defer failing.server.Close()
	healthy := newReceiver(http.StatusOK)
	defer healthy.server.Close()

	store := NewInMemoryStore()
	orgID := id.NewOrgID()
	registerEndpoint(t, store, orgID, failing.server.URL, "s", []string{EventSessionCompleted})
	registerEndpoint(t, store, orgID, healthy.server.URL, "s", []string{EventSessionCompleted})

	// Notify returns normally; failures are logged, not surfaced.
	newTestNotifier(store).Notify(context.Background(), orgID, EventSessionCompleted, nil)

	assert.Equal(t, 1, failing.count(), "failing endpoint was attempted once, no retry")
	assert.Equal(t, 1, healthy.count())
}

func TestNotifySkipsDeactivatedEndpoints(t *testing.T) {
	rcv := newReceiver(http.StatusOK)
	defer rcv.server.Close()
	store := NewInMemoryStore()
	orgID := id.NewOrgID()
	e := registerEndpoint(t, store, orgID, rcv.server.URL, "s", []string{EventSessionCompleted})
	require.NoError(t, store.Deactivate(context.Background(), e.ID))

	newTestNotifier(store).Notify(context.Background(), orgID, EventSessionCompleted, nil)

	assert.Equal(t, 0, rcv.count())
}
