package certificate

import "time"

// Temporal windows used by renewal and reissue hinting.
const (
	// ExpirySoonWindow is how far ahead of technical expiry the holder
	// should start seeing renewal hints.
	ExpirySoonWindow = 28 * 24 * time.Hour

	// expiredBucketBoundary splits elapsed-since-expiry into the two
	// messaging buckets.
	expiredBucketBoundary = 90 * 24 * time.Hour
)

// Certificate is a decoded health certificate: the web-token claims around a
// DGC payload. Instances arrive from an upstream COSE/CBOR decoder that has
// already verified the trust chain.
type Certificate struct {
	Issuer    string    `json:"iss"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	DGC       DGC       `json:"dgc"`
}

// IsExpired reports whether the certificate's technical expiry has passed.
func (c Certificate) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ExpiresSoon reports whether expiry lies ahead but within window. Expired
// certificates are never "expiring soon"; the two states are disjoint.
func (c Certificate) ExpiresSoon(now time.Time, window time.Duration) bool {
	remaining := c.ExpiresAt.Sub(now)
	return remaining > 0 && remaining <= window
}

// ExpiredMoreThan90Days reports expiry older than the 90-day boundary.
func (c Certificate) ExpiredMoreThan90Days(now time.Time) bool {
	if !c.IsExpired(now) {
		return false
	}
	return now.Sub(c.ExpiresAt) > expiredBucketBoundary
}

// ExpiredForLessOrEqual90Days reports expiry within the 90-day boundary.
// For any expired certificate exactly one of the two bucket predicates holds.
func (c Certificate) ExpiredForLessOrEqual90Days(now time.Time) bool {
	if !c.IsExpired(now) {
		return false
	}
	return now.Sub(c.ExpiresAt) <= expiredBucketBoundary
}

// UVCILocation parses the location token out of the certificate's UVCI.
func (c Certificate) UVCILocation() (Location, bool) {
	return ParseUVCILocation(c.DGC.UVCI())
}
