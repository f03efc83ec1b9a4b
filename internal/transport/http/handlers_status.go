package httptransport

import (
	"context"
	"net/http"
	"time"

	"veripass/internal/certificate"
	"veripass/internal/holderstatus"
	"veripass/pkg/domainerr"
	"veripass/pkg/platform/httputil"
	"veripass/pkg/requestcontext"
)

//go:generate mockgen -source=handlers_status.go -destination=mocks/status-mocks.go -package=mocks StatusService

// StatusService derives holder statuses and drives the booster flow.
type StatusService interface {
	DeriveStatus(ctx context.Context, certs []certificate.Extended, region string, now time.Time) holderstatus.Status
	AcknowledgeBooster(ctx context.Context, holderKey string) error
}

// StatusHandler exposes multi-certificate status derivation over HTTP.
type StatusHandler struct {
	status StatusService
}

func NewStatusHandler(service StatusService) *StatusHandler {
	return &StatusHandler{status: service}
}

type statusRequest struct {
	Certificates []certificate.Extended `json:"certificates"`
	Region       string                 `json:"region"`
}

type holderStatus struct {
	HolderKey string              `json:"holderKey"`
	Status    holderstatus.Status `json:"status"`
}

type statusResponse struct {
	Holders []holderStatus `json:"holders"`
}

// handleDeriveStatus accepts a mixed certificate collection, partitions it by
// holder and derives one status per holder.
func (h *StatusHandler) handleDeriveStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Region == "" {
		httputil.WriteError(w, domainerr.New(domainerr.CodeBadRequest, "region is required"))
		return
	}
	if len(req.Certificates) == 0 {
		httputil.WriteError(w, domainerr.New(domainerr.CodeBadRequest, "certificates are required"))
		return
	}

	now := requestcontext.Now(r.Context())
	resp := statusResponse{Holders: []holderStatus{}}
	for _, group := range holderstatus.Partition(req.Certificates) {
		resp.Holders = append(resp.Holders, holderStatus{
			HolderKey: group[0].DGC.HolderKey(),
			Status:    h.status.DeriveStatus(r.Context(), group, req.Region, now),
		})
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

type boosterAckRequest struct {
	HolderKey string `json:"holderKey"`
}

func (h *StatusHandler) handleAcknowledgeBooster(w http.ResponseWriter, r *http.Request) {
	var req boosterAckRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.HolderKey == "" {
		httputil.WriteError(w, domainerr.New(domainerr.CodeBadRequest, "holderKey is required"))
		return
	}

	if err := h.status.AcknowledgeBooster(r.Context(), req.HolderKey); err != nil {
		httputil.WriteError(w, domainerr.Wrap(domainerr.CodeInternal, "acknowledge booster", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
