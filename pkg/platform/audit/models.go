// Package audit captures key engine actions for traceability. Events are
// transport-agnostic so stores and sinks can fan out.
package audit

import (
	"context"
	"time"
)

// Event is emitted from domain logic to capture key actions. Raw UVCIs never
// appear in events; only their revocation hashes do.
type Event struct {
	Timestamp time.Time `json:"timestamp"`

	// Action is one of the Event* constants.
	Action string `json:"action"`

	// SubjectHash is the revocation hash of the certificate the event is
	// about, when one is involved.
	SubjectHash string `json:"subject_hash,omitempty"`

	// Region the action was scoped to, when regional.
	Region string `json:"region,omitempty"`

	// Outcome carries the verdict for validation events.
	Outcome string `json:"outcome,omitempty"`

	// Reason carries the failure classification or disabled-path marker.
	Reason string `json:"reason,omitempty"`

	// RequestID is the correlation ID from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	// Validation events
	EventCertificateValidated AuditEvent = "certificate_validated"
	EventCertificateRejected  AuditEvent = "certificate_rejected"
	EventStatusDerived        AuditEvent = "status_derived"

	// Revocation events
	EventRevocationHit      AuditEvent = "revocation_hit"
	EventRevocationSkipped  AuditEvent = "revocation_check_skipped"
	EventRevocationDegraded AuditEvent = "revocation_check_degraded"

	// Rule lifecycle events
	EventRuleSetReplaced   AuditEvent = "rule_set_replaced"
	EventValueSetsReplaced AuditEvent = "value_sets_replaced"
	EventRefreshAborted    AuditEvent = "refresh_aborted"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
