package vehicle

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Get serves GET /registry/vehicles/{plate}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetVehicle(r.Context(), r.PathValue("plate"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

// List serves GET /registry/citizens/{key}/vehicles.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.ListVehicles(r.Context(), r.PathValue("key"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, vs)
}
