package license

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

// List serves GET /registry/citizens/{key}/licenses.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ls, err := h.svc.ListLicenses(r.Context(), r.PathValue("key"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ls)
}

// Classes serves GET /registry/license-classes.
func (h *Handler) Classes(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.svc.Classes())
}
