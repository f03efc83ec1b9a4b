package httptransport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"veripass/internal/certificate"
	"veripass/internal/rules"
	"veripass/internal/validation"
	"veripass/pkg/domainerr"
	"veripass/pkg/platform/httputil"
	"veripass/pkg/platform/sentinel"
	"veripass/pkg/requestcontext"
)

//go:generate mockgen -source=handlers_validation.go -destination=mocks/validation-mocks.go -package=mocks ValidationService

// ValidationService runs one certificate through the verification pipeline.
type ValidationService interface {
	Validate(ctx context.Context, token *certificate.Extended, region string) (*certificate.Extended, error)
}

// RuleSource supplies the current rule-set snapshot for availability queries.
type RuleSource interface {
	Current() *rules.Set
}

// ValidationHandler exposes the validation pipeline over HTTP.
type ValidationHandler struct {
	validation ValidationService
	ruleSource RuleSource
	country    string
	staleAfter time.Duration
}

func NewValidationHandler(service ValidationService, ruleSource RuleSource, country string) *ValidationHandler {
	return &ValidationHandler{
		validation: service,
		ruleSource: ruleSource,
		country:    country,
		staleAfter: 24 * time.Hour,
	}
}

type validateRequest struct {
	Certificate certificate.Extended `json:"certificate"`
	Region      string               `json:"region"`
}

type validateResponse struct {
	Outcome     string               `json:"outcome"`
	Reason      string               `json:"reason,omitempty"`
	FailedRules []string             `json:"failedRules,omitempty"`
	Certificate certificate.Extended `json:"certificate"`
}

func (h *ValidationHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Region == "" {
		httputil.WriteError(w, domainerr.New(domainerr.CodeBadRequest, "region is required"))
		return
	}
	if req.Certificate.DGC.UVCI() == "" {
		httputil.WriteError(w, domainerr.New(domainerr.CodeBadRequest, "certificate has no entries"))
		return
	}

	token, err := h.validation.Validate(r.Context(), &req.Certificate, req.Region)
	resp := validateResponse{Certificate: req.Certificate}
	if token != nil {
		resp.Certificate = *token
	}

	switch outcome := outcomeOf(err); outcome {
	case "":
		resp.Outcome = "passed"
	case "error":
		if errors.Is(err, sentinel.ErrUnavailable) {
			httputil.WriteError(w, domainerr.Wrap(domainerr.CodeUnavailable, "rules not loaded", err))
		} else {
			httputil.WriteError(w, err)
		}
		return
	default:
		resp.Outcome = outcome
		resp.Reason = err.Error()
		var failed *validation.RulesFailedError
		if errors.As(err, &failed) {
			resp.FailedRules = failed.FailedRules
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// outcomeOf names the typed validation outcome of err. Empty means passed,
// "error" means err is not a verdict at all.
func outcomeOf(err error) string {
	if err == nil {
		return ""
	}
	var (
		notAvailable *validation.MaskRulesNotAvailableError
		revoked      *validation.RevokedError
		failed       *validation.RulesFailedError
		technical    *validation.TechnicalError
		needsMask    *validation.NeedsMaskError
	)
	switch {
	case errors.As(err, &notAvailable):
		return "mask_rules_not_available"
	case errors.As(err, &revoked):
		return "revoked"
	case errors.As(err, &failed):
		return "failed_functional"
	case errors.As(err, &needsMask):
		return "needs_mask"
	case errors.As(err, &technical):
		return "failed_technical"
	default:
		return "error"
	}
}

type availabilityResponse struct {
	Country   string          `json:"country"`
	Region    string          `json:"region,omitempty"`
	Available map[string]bool `json:"available"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
	Stale     bool            `json:"stale"`
}

func (h *ValidationHandler) handleRuleAvailability(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	country := r.URL.Query().Get("country")
	if country == "" {
		country = h.country
	}

	set := h.ruleSource.Current()
	resp := availabilityResponse{
		Country:   country,
		Region:    region,
		Available: map[string]bool{},
		Stale:     set.Stale(requestcontext.Now(r.Context()), h.staleAfter),
	}
	for _, typ := range []rules.LogicType{
		rules.TypeDomesticAcceptance,
		rules.TypeDomesticInvalidation,
		rules.TypeEUInvalidation,
		rules.TypeEntry,
		rules.TypeMask,
		rules.TypeBoosterEligibility,
		rules.TypeVaccinationCycle,
	} {
		resp.Available[string(typ)] = set.Available(typ, country, region)
	}
	if updatedAt := set.UpdatedAt(); !updatedAt.IsZero() {
		resp.UpdatedAt = &updatedAt
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
