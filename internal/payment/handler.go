package payment

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

// Get serves GET /registry/codes/{code}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	pc, err := h.svc.GetCode(r.Context(), r.PathValue("code"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pc)
}

// List serves GET /registry/citizens/{key}/codes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	codes, err := h.svc.ListCodes(r.Context(), r.PathValue("key"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, codes)
}
