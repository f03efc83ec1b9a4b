package validation

import (
	"fmt"
	"strings"

	"veripass/internal/certificate"
)

// Stage names the pipeline step that produced an outcome.
type Stage string

const (
	StageMaskRulesAvailable Stage = "mask_rules_available"
	StageRevocation         Stage = "revocation"
	StageDomesticRules      Stage = "domestic_rules"
	StageEntryRules         Stage = "entry_rules"
	StageMaskRules          Stage = "mask_rules"
)

// MaskRulesNotAvailableError means no mask rules exist for the requested
// region, so no verdict can be given at all.
type MaskRulesNotAvailableError struct {
	Token  *certificate.Extended
	Region string
}

func (e *MaskRulesNotAvailableError) Error() string {
	return fmt.Sprintf("mask rules not available for region %q", e.Region)
}

// RevokedError means the certificate is on a revocation list.
type RevokedError struct {
	Token *certificate.Extended
}

func (e *RevokedError) Error() string {
	return "certificate is revoked"
}

// RulesFailedError is a functional failure: at least one rule evaluated
// cleanly and rejected the certificate.
type RulesFailedError struct {
	Token       *certificate.Extended
	Stage       Stage
	FailedRules []string
}

func (e *RulesFailedError) Error() string {
	return fmt.Sprintf("%s rejected certificate (rules: %s)", e.Stage, strings.Join(e.FailedRules, ", "))
}

// TechnicalError is a non-functional failure: a rule could not be evaluated,
// or no rule matched where at least one was required.
type TechnicalError struct {
	Token *certificate.Extended
	Stage Stage
	Cause error
}

func (e *TechnicalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s could not evaluate certificate: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s could not evaluate certificate", e.Stage)
}

func (e *TechnicalError) Unwrap() error { return e.Cause }

// NeedsMaskError means the certificate is valid but the holder still has to
// wear a mask in the requested region.
type NeedsMaskError struct {
	Token  *certificate.Extended
	Region string
}

func (e *NeedsMaskError) Error() string {
	return fmt.Sprintf("holder needs a mask in region %q", e.Region)
}
