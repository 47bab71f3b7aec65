// Package domain holds typed identifiers shared across modules.
//
// IDs are distinct named types over uuid.UUID so a SessionID can never be
// passed where an OrgID is expected. Parse functions reject empty, malformed,
// and nil UUIDs at the boundary.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type (
	// SessionID identifies a verification session.
	SessionID uuid.UUID
	// OrgID identifies the organization that owns a session or endpoint.
	OrgID uuid.UUID
	// EvidenceID identifies a single uploaded evidence record.
	EvidenceID uuid.UUID
	// ResultID identifies a finalized verification result.
	ResultID uuid.UUID
	// EndpointID identifies a registered webhook endpoint.
	EndpointID uuid.UUID
)

func parse(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("%s is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", kind, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s must not be the nil UUID", kind)
	}
	return u, nil
}

func NewSessionID() SessionID   { return SessionID(uuid.New()) }
func NewOrgID() OrgID           { return OrgID(uuid.New()) }
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }
func NewResultID() ResultID     { return ResultID(uuid.New()) }
func NewEndpointID() EndpointID { return EndpointID(uuid.New()) }

func ParseSessionID(s string) (SessionID, error) {
	u, err := parse("session id", s)
	return SessionID(u), err
}

func ParseOrgID(s string) (OrgID, error) {
	u, err := parse("organization id", s)
	return OrgID(u), err
}

func ParseEvidenceID(s string) (EvidenceID, error) {
	u, err := parse("evidence id", s)
	return EvidenceID(u), err
}

func ParseResultID(s string) (ResultID, error) {
	u, err := parse("result id", s)
	return ResultID(u), err
}

func ParseEndpointID(s string) (EndpointID, error) {
	u, err := parse("endpoint id", s)
	return EndpointID(u), err
}

func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id OrgID) String() string      { return uuid.UUID(id).String() }
func (id EvidenceID) String() string { return uuid.UUID(id).String() }
func (id ResultID) String() string   { return uuid.UUID(id).String() }
func (id EndpointID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id OrgID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ResultID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EndpointID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id SessionID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id OrgID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id EvidenceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ResultID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id EndpointID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *OrgID) UnmarshalText(b []byte) error {
	parsed, err := ParseOrgID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EvidenceID) UnmarshalText(b []byte) error {
	parsed, err := ParseEvidenceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ResultID) UnmarshalText(b []byte) error {
	parsed, err := ParseResultID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EndpointID) UnmarshalText(b []byte) error {
	parsed, err := ParseEndpointID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
