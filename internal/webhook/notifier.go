package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"kyc-service/internal/webhook/metrics"
	id "kyc-service/pkg/domain"
)

// Envelope is the wire shape of every notification.
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Notifier delivers events to an organization's active, subscribed endpoints.
//
// Delivery is best-effort, fire-and-forget, no retry: a failing endpoint is
// logged and counted, never surfaced to the caller and never allowed to affect
// other endpoints or roll back pipeline state. Duplicate worker callbacks
// re-notify; receivers must treat deliveries as at-least-once.
type Notifier struct {
	store   Store
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	// maxInFlight bounds the per-notification fan-out.
	maxInFlight int
}

func NewNotifier(store Store, logger *slog.Logger, m *metrics.Metrics, workers int, timeout time.Duration) *Notifier {
	if workers <= 0 {
		workers = 4
	}
	return &Notifier{
		store:       store,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		metrics:     m,
		maxInFlight: workers,
	}
}

// Notify delivers eventType with payload to every matching endpoint of the
// organization. It blocks until all deliveries finish or fail; callers on a
// request path should invoke it from a background goroutine.
func (n *Notifier) Notify(ctx context.Context, orgID id.OrgID, eventType string, payload any) {
	endpoints, err := n.store.ListActiveByOrg(ctx, orgID)
	if err != nil {
		n.logger.ErrorContext(ctx, "webhook endpoint lookup failed",
			"org_id", orgID.String(),
			"event", eventType,
			"error", err,
		)
		return
	}

	body, err := json.Marshal(Envelope{Event: eventType, Timestamp: time.Now().UTC(), Data: payload})
	if err != nil {
		n.logger.ErrorContext(ctx, "webhook envelope marshal failed", "event", eventType, "error", err)
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(n.maxInFlight)
	for _, ep := range endpoints {
		if !ep.Subscribed(eventType) {
			continue
		}
		ep := ep
		g.Go(func() error {
			n.deliver(ctx, ep, eventType, body)
			return nil // failures are absorbed; the group only bounds concurrency
		})
	}
	_ = g.Wait()
}

func (n *Notifier) deliver(ctx context.Context, ep *Endpoint, eventType string, body []byte) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		n.logDeliveryFailure(ctx, ep, eventType, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(ep.Secret, body))
	}
	// No secret means no signature header: an intentionally weaker mode for
	// integrators who have not configured one yet.

	resp, err := n.client.Do(req)
	if err != nil {
		n.logDeliveryFailure(ctx, ep, eventType, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.metrics.ObserveDelivery("error", time.Since(start))
		n.logger.WarnContext(ctx, "webhook delivery rejected",
			"endpoint_id", ep.ID.String(),
			"event", eventType,
			"status", resp.StatusCode,
		)
		return
	}
	n.metrics.ObserveDelivery("ok", time.Since(start))
}

func (n *Notifier) logDeliveryFailure(ctx context.Context, ep *Endpoint, eventType string, err error) {
	n.metrics.ObserveDelivery("error", 0)
	n.logger.WarnContext(ctx, "webhook delivery failed",
		"endpoint_id", ep.ID.String(),
		"event", eventType,
		"error", err,
	)
}
