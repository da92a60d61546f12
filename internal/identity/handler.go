package identity

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/httpx"
)

// Handler exposes read-only identity lookups to operators.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Get serves GET /registry/citizens/{key}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, id)
}
