package handler

import (
	"net/http"

	"csi_locks/internal/app/service"
	"csi_locks/internal/common"

	"github.com/go-chi/chi/v5"
)

type BundleHandler struct {
	bundleService *service.BundleService
	limitCreate   func(http.Handler) http.Handler
}

// NewBundleHandler wraps instance creation in limitCreate when it is non-nil.
func NewBundleHandler(bs *service.BundleService, limitCreate func(http.Handler) http.Handler) *BundleHandler {
	return &BundleHandler{bundleService: bs, limitCreate: orPassthrough(limitCreate)}
}

func (h *BundleHandler) RegisterRoutes(r chi.Router) {
	r.With(h.limitCreate).Post("/", h.createBundle) // POST /api/v1/instances
	r.Get("/{instanceID}", h.getBundle) // GET /api/v1/instances/{id}
}

func (h *BundleHandler) createBundle(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBundleRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.bundleService.CreateBundle(r.Context(), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *BundleHandler) getBundle(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.bundleService.GetBundle(r.Context(), chi.URLParam(r, "instanceID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, bundle)
}

func orPassthrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}
