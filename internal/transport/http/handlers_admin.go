package httptransport

import (
	"context"
	"net/http"
	"time"

	"veripass/internal/rules"
	"veripass/pkg/domainerr"
	"veripass/pkg/platform/httputil"
	"veripass/pkg/requestcontext"
)

//go:generate mockgen -source=handlers_admin.go -destination=mocks/admin-mocks.go -package=mocks RuleAdminService

// RuleAdminService replaces the rule and value-set snapshots on behalf of an
// operator.
type RuleAdminService interface {
	ReplaceRules(ctx context.Context, all []rules.Rule) (int, error)
	ReplaceValueSets(ctx context.Context, sets map[string][]string) int
}

// RevocationSink receives a wholesale replacement of the offline revocation
// hash set.
type RevocationSink interface {
	Replace(hashes []string, updatedAt time.Time)
}

// AdminHandler exposes the JWT-protected administrative endpoints.
type AdminHandler struct {
	admin       RuleAdminService
	revocations RevocationSink
}

func NewAdminHandler(service RuleAdminService, revocations RevocationSink) *AdminHandler {
	return &AdminHandler{admin: service, revocations: revocations}
}

type replaceRulesRequest struct {
	Rules []rules.Rule `json:"rules"`
}

type replaceRulesResponse struct {
	Accepted int `json:"accepted"`
}

func (h *AdminHandler) handleReplaceRules(w http.ResponseWriter, r *http.Request) {
	var req replaceRulesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(req.Rules) == 0 {
		httputil.WriteError(w, domainerr.New(domainerr.CodeBadRequest, "rules are required"))
		return
	}

	accepted, err := h.admin.ReplaceRules(r.Context(), req.Rules)
	if err != nil {
		httputil.WriteError(w, domainerr.Wrap(domainerr.CodeBadRequest, err.Error(), err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, replaceRulesResponse{Accepted: accepted})
}

type replaceValueSetsRequest struct {
	ValueSets map[string][]string `json:"valueSets"`
}

func (h *AdminHandler) handleReplaceValueSets(w http.ResponseWriter, r *http.Request) {
	var req replaceValueSetsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(req.ValueSets) == 0 {
		httputil.WriteError(w, domainerr.New(domainerr.CodeBadRequest, "valueSets are required"))
		return
	}

	accepted := h.admin.ReplaceValueSets(r.Context(), req.ValueSets)
	httputil.WriteJSON(w, http.StatusOK, replaceRulesResponse{Accepted: accepted})
}

type replaceRevocationsRequest struct {
	Hashes []string `json:"hashes"`
}

func (h *AdminHandler) handleReplaceRevocations(w http.ResponseWriter, r *http.Request) {
	var req replaceRevocationsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Hashes == nil {
		httputil.WriteError(w, domainerr.New(domainerr.CodeBadRequest, "hashes are required"))
		return
	}

	h.revocations.Replace(req.Hashes, requestcontext.Now(r.Context()))
	httputil.WriteJSON(w, http.StatusOK, replaceRulesResponse{Accepted: len(req.Hashes)})
}
