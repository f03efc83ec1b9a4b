package certificate

import "context"

// TriState is a flag whose absence of information is distinct from false.
// The zero value is explicitly "unknown" so freshly decoded certificates
// never masquerade as checked.
type TriState uint8

const (
	StateUnknown TriState = iota
	StateYes
	StateNo
)

func (s TriState) String() string {
	switch s {
	case StateYes:
		return "yes"
	case StateNo:
		return "no"
	default:
		return "unknown"
	}
}

// MarshalText lets JSON carry the name instead of the ordinal.
func (s TriState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TriState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "yes":
		*s = StateYes
	case "no":
		*s = StateNo
	default:
		*s = StateUnknown
	}
	return nil
}

// Extended wraps a Certificate with the mutable flags owned by the
// persistence layer. The validation engine reads flags and requests updates
// through a Repository; it never owns the storage.
type Extended struct {
	Certificate

	// Revoked and Invalid are populated as side effects of validation
	// flows; unknown means the respective check never ran.
	Revoked TriState `json:"revoked"`
	Invalid TriState `json:"invalid"`

	// ExpiryAlertShown marks that the holder already saw the renewal hint
	// for this certificate.
	ExpiryAlertShown bool `json:"expiryAlertShown"`

	// ReissueInitialSeen / ReissueNewBadgeSeen track the reissue offer
	// lifecycle for this certificate.
	ReissueInitialSeen  bool `json:"reissueInitialSeen"`
	ReissueNewBadgeSeen bool `json:"reissueNewBadgeSeen"`
}

// IsInvalid reports whether any recorded flag marks the certificate unusable.
// An unknown flag contributes nothing; only an asserted state counts.
func (e Extended) IsInvalid(nowExpired bool) bool {
	return e.Revoked == StateYes || e.Invalid == StateYes || nowExpired
}

// Repository is the persistence contract for extended certificates. The
// engine depends on this interface only; implementations live with the
// storage layer.
type Repository interface {
	// List returns all stored certificates.
	List(ctx context.Context) ([]Extended, error)
	// SetFlags persists the mutable flags of the certificate identified by
	// its UVCI.
	SetFlags(ctx context.Context, uvci string, update FlagUpdate) error
}

// FlagUpdate carries partial flag mutations; nil fields stay untouched.
type FlagUpdate struct {
	Revoked             *TriState
	Invalid             *TriState
	ExpiryAlertShown    *bool
	ReissueInitialSeen  *bool
	ReissueNewBadgeSeen *bool
}
