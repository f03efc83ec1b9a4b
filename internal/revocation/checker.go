// Package revocation answers "is this certificate revoked?" with a two-tier
// strategy: an online index when the service is reachable, and a locally
// cached offline set when the holder enabled it.
package revocation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"veripass/internal/certificate"
	audit "veripass/pkg/platform/audit"
	"veripass/pkg/platform/sentinel"
)

var isRevokedDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "veripass_is_certificate_revoked_duration_ms",
	Help:    "Latency of certificate revocation checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 100},
})

// Index answers hash-membership questions against a revocation index.
type Index interface {
	Contains(ctx context.Context, hash string) (bool, error)
}

// AuditPublisher records the explicitly-disabled code path.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Checker performs the two-tier revocation check.
type Checker struct {
	online  Index
	offline *OfflineStore

	// offlineEnabled reflects the holder preference; consulted per check
	// so a settings change applies without restart.
	offlineEnabled func() bool

	auditPublisher AuditPublisher
	logger         *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithOnlineIndex wires the online revocation index.
func WithOnlineIndex(index Index) Option {
	return func(c *Checker) {
		c.online = index
	}
}

// WithOfflineStore wires the cached offline revocation set together with the
// holder preference gate.
func WithOfflineStore(store *OfflineStore, enabled func() bool) Option {
	return func(c *Checker) {
		c.offline = store
		c.offlineEnabled = enabled
	}
}

// WithAuditPublisher wires audit emission.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(c *Checker) {
		c.auditPublisher = publisher
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker constructs a Checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// hashesFor returns the lookup keys tried against an index, most specific
// first.
func hashesFor(cert certificate.Certificate) []string {
	uvci := cert.DGC.UVCI()
	country := cert.DGC.CountryCode()
	return []string{
		certificate.RevocationCountryHash(uvci, country),
		certificate.RevocationHash(uvci),
	}
}

// IsRevoked checks the certificate against the configured tiers. When the
// online index is unreachable and offline mode is off, the check fails with
// a recoverable error instead of silently reporting "not revoked". With
// neither tier configured the check is advisory-off: it reports not revoked
// through an explicit, audited code path.
func (c *Checker) IsRevoked(ctx context.Context, cert certificate.Certificate) (bool, error) {
	start := time.Now()
	defer func() {
		isRevokedDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	offlineOn := c.offline != nil && c.offlineEnabled != nil && c.offlineEnabled()

	if c.online != nil {
		revoked, err := c.checkOnline(ctx, cert)
		if err == nil {
			return revoked, nil
		}
		if !offlineOn {
			return false, fmt.Errorf("online revocation check: %w: %w", sentinel.ErrUnavailable, err)
		}
		c.logger.WarnContext(ctx, "online revocation check failed, falling back to offline set",
			"error", err,
		)
		c.emit(ctx, audit.EventRevocationDegraded, cert, "online index unreachable")
	}

	if offlineOn {
		return c.checkOffline(cert), nil
	}

	if c.online == nil {
		// Deliberate default: revocation is advisory unless a tier is
		// actively configured. Audited so the skip is traceable.
		c.logger.InfoContext(ctx, "revocation check skipped, no tier configured")
		c.emit(ctx, audit.EventRevocationSkipped, cert, "no revocation tier configured")
	}
	return false, nil
}

func (c *Checker) checkOnline(ctx context.Context, cert certificate.Certificate) (bool, error) {
	for _, hash := range hashesFor(cert) {
		found, err := c.online.Contains(ctx, hash)
		if err != nil {
			return false, err
		}
		if found {
			c.emit(ctx, audit.EventRevocationHit, cert, "online index")
			return true, nil
		}
	}
	return false, nil
}

func (c *Checker) checkOffline(cert certificate.Certificate) bool {
	for _, hash := range hashesFor(cert) {
		if c.offline.Contains(hash) {
			c.emit(context.Background(), audit.EventRevocationHit, cert, "offline set")
			return true
		}
	}
	return false
}

func (c *Checker) emit(ctx context.Context, action audit.AuditEvent, cert certificate.Certificate, reason string) {
	if c.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Action:      string(action),
		SubjectHash: certificate.RevocationHash(cert.DGC.UVCI()),
		Reason:      reason,
	}
	if err := c.auditPublisher.Emit(ctx, event); err != nil {
		c.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
