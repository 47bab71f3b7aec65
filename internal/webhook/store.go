package webhook

import (
	"context"

	id "kyc-service/pkg/domain"
)

// Store persists endpoint registrations.
type Store interface {
	Create(ctx context.Context, e *Endpoint) error
	FindByID(ctx context.Context, endpointID id.EndpointID) (*Endpoint, error)
	// ListActiveByOrg returns only active endpoints; soft-deleted ones are
	// invisible to the notifier.
	ListActiveByOrg(ctx context.Context, orgID id.OrgID) ([]*Endpoint, error)
	Deactivate(ctx context.Context, endpointID id.EndpointID) error
}
