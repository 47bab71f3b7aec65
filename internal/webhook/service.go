package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	id "kyc-service/pkg/domain"
	dErrors "kyc-service/pkg/domain-errors"
	"kyc-service/pkg/platform/sentinel"
	strutil "kyc-service/pkg/platform/strings"
	"kyc-service/pkg/requestcontext"
)

// Service manages endpoint registrations for an organization.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// RegisterInput is the caller-supplied part of a registration.
type RegisterInput struct {
	URL        string   `json:"url"`
	Secret     string   `json:"secret"`
	EventTypes []string `json:"eventTypes"`
}

// Register creates an active endpoint for the organization. Omitted event
// types default to session completion.
func (s *Service) Register(ctx context.Context, orgID id.OrgID, in RegisterInput) (*Endpoint, error) {
	if err := validateEndpointURL(in.URL); err != nil {
		return nil, err
	}
	events := strutil.DedupeAndTrim(in.EventTypes)
	if len(events) == 0 {
		events = []string{EventSessionCompleted}
	}

	e := &Endpoint{
		ID:         id.NewEndpointID(),
		OrgID:      orgID,
		URL:        in.URL,
		Secret:     in.Secret,
		EventTypes: events,
		Active:     true,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register endpoint")
	}

	s.logger.InfoContext(ctx, "webhook endpoint registered",
		"endpoint_id", e.ID.String(),
		"org_id", orgID.String(),
		"events", e.EventTypes,
	)
	return e, nil
}

// List returns the organization's active endpoints.
func (s *Service) List(ctx context.Context, orgID id.OrgID) ([]*Endpoint, error) {
	endpoints, err := s.store.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list endpoints")
	}
	return endpoints, nil
}

// Deactivate soft-deletes an endpoint. Endpoints of other organizations are
// reported as not found rather than forbidden.
func (s *Service) Deactivate(ctx context.Context, orgID id.OrgID, endpointID id.EndpointID) error {
	e, err := s.store.FindByID(ctx, endpointID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "endpoint not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load endpoint")
	}
	if e.OrgID != orgID {
		return dErrors.New(dErrors.CodeNotFound, "endpoint not found")
	}

	if err := s.store.Deactivate(ctx, endpointID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "endpoint not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate endpoint")
	}

	s.logger.InfoContext(ctx, "webhook endpoint deactivated",
		"endpoint_id", endpointID.String(),
		"org_id", orgID.String(),
	)
	return nil
}

func validateEndpointURL(raw string) error {
	if raw == "" {
		return dErrors.New(dErrors.CodeBadRequest, "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid endpoint url %q", raw))
	}
	return nil
}
