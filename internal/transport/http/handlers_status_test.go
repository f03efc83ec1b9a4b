package httptransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"veripass/internal/certificate"
	"veripass/internal/holderstatus"
	"veripass/internal/transport/http/mocks"
)

func newStatusRouter(t *testing.T) (*mocks.MockStatusService, chi.Router) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockStatusService(ctrl)

	router := chi.NewRouter()
	handler := NewStatusHandler(mockService)
	router.Post("/v1/holders/status", handler.handleDeriveStatus)
	router.Post("/v1/holders/booster/ack", handler.handleAcknowledgeBooster)
	return mockService, router
}

func TestStatusHandler_DeriveStatus(t *testing.T) {
	t.Run("partitions by holder and derives per group - 200", func(t *testing.T) {
		mockService, router := newStatusRouter(t)

		erika := *validToken()
		hans := *validToken()
		hans.DGC.Name.StandardizedFamilyName = "SCHMIDT"
		hans.DGC.Name.StandardizedGivenName = "HANS"
		hans.DGC.Vaccinations[0].UVCI = "URN:UVCI:01DE:TEST/43"

		mockService.EXPECT().
			DeriveStatus(gomock.Any(), gomock.Any(), "BW", gomock.Any()).
			Return(holderstatus.Status{Completion: holderstatus.CompletionComplete, RuleVariant: "CYCLE-DE-0001"})
		mockService.EXPECT().
			DeriveStatus(gomock.Any(), gomock.Any(), "BW", gomock.Any()).
			Return(holderstatus.Status{Completion: holderstatus.CompletionIncomplete})

		body, err := json.Marshal(map[string]any{
			"certificates": []certificate.Extended{erika, hans},
			"region":       "BW",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/v1/holders/status", strings.NewReader(string(body)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got statusResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		require.Len(t, got.Holders, 2)
		assert.NotEqual(t, got.Holders[0].HolderKey, got.Holders[1].HolderKey)
	})

	t.Run("returns 400 without certificates", func(t *testing.T) {
		mockService, router := newStatusRouter(t)
		mockService.EXPECT().DeriveStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		req := httptest.NewRequest(http.MethodPost, "/v1/holders/status",
			strings.NewReader(`{"certificates":[],"region":"BW"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns 400 without region", func(t *testing.T) {
		mockService, router := newStatusRouter(t)
		mockService.EXPECT().DeriveStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		body, err := json.Marshal(map[string]any{"certificates": []certificate.Extended{*validToken()}})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/v1/holders/status", strings.NewReader(string(body)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStatusHandler_AcknowledgeBooster(t *testing.T) {
	t.Run("acknowledges - 204", func(t *testing.T) {
		mockService, router := newStatusRouter(t)
		mockService.EXPECT().AcknowledgeBooster(gomock.Any(), "holder-key-1").Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/holders/booster/ack",
			strings.NewReader(`{"holderKey":"holder-key-1"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("returns 400 without holder key", func(t *testing.T) {
		mockService, router := newStatusRouter(t)
		mockService.EXPECT().AcknowledgeBooster(gomock.Any(), gomock.Any()).Times(0)

		req := httptest.NewRequest(http.MethodPost, "/v1/holders/booster/ack", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
