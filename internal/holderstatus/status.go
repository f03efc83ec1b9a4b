// Package holderstatus derives one aggregate status for a holder from their
// whole certificate collection: immunization completeness, mask obligation,
// booster eligibility and reissue candidates.
package holderstatus

// Completion is the immunization completeness of a holder.
type Completion uint8

const (
	// CompletionInvalid means the holder's current certificates are all
	// revoked, expired or flagged invalid. Terminal; rule outcomes do not
	// apply.
	CompletionInvalid Completion = iota
	// CompletionIncomplete means no vaccination-cycle variant passed.
	CompletionIncomplete
	// CompletionComplete means a cycle variant passed; Status.RuleVariant
	// names it.
	CompletionComplete
)

func (c Completion) String() string {
	switch c {
	case CompletionComplete:
		return "complete"
	case CompletionIncomplete:
		return "incomplete"
	default:
		return "invalid"
	}
}

// MarshalText lets JSON responses carry the name instead of the ordinal.
func (c Completion) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Completion) UnmarshalText(text []byte) error {
	switch string(text) {
	case "complete":
		*c = CompletionComplete
	case "incomplete":
		*c = CompletionIncomplete
	default:
		*c = CompletionInvalid
	}
	return nil
}

// MaskRequirement is the region's mask obligation for the holder. Unavailable
// means the mask rules could not be consulted; it is never defaulted to
// either required or optional.
type MaskRequirement uint8

const (
	MaskUnavailable MaskRequirement = iota
	MaskRequired
	MaskNotRequired
)

func (m MaskRequirement) String() string {
	switch m {
	case MaskRequired:
		return "required"
	case MaskNotRequired:
		return "not_required"
	default:
		return "unavailable"
	}
}

// MarshalText lets JSON responses carry the name instead of the ordinal.
func (m MaskRequirement) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MaskRequirement) UnmarshalText(text []byte) error {
	switch string(text) {
	case "required":
		*m = MaskRequired
	case "not_required":
		*m = MaskNotRequired
	default:
		*m = MaskUnavailable
	}
	return nil
}

// BoosterState is the holder's position in the booster notification flow.
// The machine only moves forward: none to new when the holder first
// qualifies, new to qualified on acknowledgment, never back.
type BoosterState string

const (
	BoosterNone      BoosterState = "none"
	BoosterNew       BoosterState = "new"
	BoosterQualified BoosterState = "qualified"
)

// ReissueCandidates counts certificates nearing technical expiry whose
// reissue badge the holder has not acknowledged yet, split by kind.
type ReissueCandidates struct {
	Vaccination int `json:"vaccination"`
	Recovery    int `json:"recovery"`
}

// Status is the derived aggregate for one holder.
type Status struct {
	Completion Completion `json:"completion"`

	// RuleVariant is the identifier of the cycle rule that passed. Empty
	// unless Completion is complete.
	RuleVariant string `json:"ruleVariant,omitempty"`

	Mask    MaskRequirement   `json:"mask"`
	Booster BoosterState      `json:"booster"`
	Reissue ReissueCandidates `json:"reissue"`
}
