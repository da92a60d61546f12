package property

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

// Get serves GET /registry/properties/{address}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProperty(r.Context(), r.PathValue("address"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// List serves GET /registry/citizens/{key}/properties.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProperties(r.Context(), r.PathValue("key"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ps)
}
