// Package webhook maintains the per-organization endpoint registry and
// delivers signed event notifications.
package webhook

import (
	"time"

	id "kyc-service/pkg/domain"
)

// EventSessionCompleted is emitted when a verification session reaches a
// pass/fail outcome.
const EventSessionCompleted = "kyc.session.completed"

// Wildcard subscribes an endpoint to every event type.
const Wildcard = "*"

// Endpoint is a registered webhook receiver. Deletion is soft: Active=false
// removes it from delivery without losing the audit trail.
type Endpoint struct {
	ID         id.EndpointID `json:"id"`
	OrgID      id.OrgID      `json:"organizationId"`
	URL        string        `json:"url"`
	Secret     string        `json:"-"`
	EventTypes []string      `json:"eventTypes"`
	Active     bool          `json:"active"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Subscribed reports whether the endpoint wants the given event type.
func (e *Endpoint) Subscribed(eventType string) bool {
	for _, t := range e.EventTypes {
		if t == eventType || t == Wildcard {
			return true
		}
	}
	return false
}
