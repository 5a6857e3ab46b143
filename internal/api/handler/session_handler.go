package handler

import (
	"net/http"

	"csi_locks/internal/api/middleware"
	"csi_locks/internal/app/service"
	"csi_locks/internal/common"
	"csi_locks/internal/common/security"

	"github.com/go-chi/chi/v5"
)

type SessionHandler struct {
	sessionService *service.SessionService
	guard          *security.TokenGuard
	requireToken   bool
	limitCreate    func(http.Handler) http.Handler
}

func NewSessionHandler(ss *service.SessionService, guard *security.TokenGuard, requireToken bool, limitCreate func(http.Handler) http.Handler) *SessionHandler {
	return &SessionHandler{sessionService: ss, guard: guard, requireToken: requireToken, limitCreate: orPassthrough(limitCreate)}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.With(h.limitCreate).Post("/", h.createSession)
	r.Route("/{sessionID}", func(sr chi.Router) {
		sr.Use(middleware.SessionToken(h.guard, h.requireToken))
		sr.Get("/", h.getSession)
		sr.Post("/heartbeat", h.heartbeat)
		sr.Post("/focus", h.focus)
		sr.Post("/answer", h.answer)
	})
}

func (h *SessionHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.sessionService.CreateSession(r.Context(), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	status := http.StatusCreated
	if resp.AlreadyActive {
		status = http.StatusOK
	}
	common.RespondWithJSON(w, status, resp)
}

func (h *SessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessionService.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) heartbeat(w http.ResponseWriter, r *http.Request) {
	resp, err := h.sessionService.Heartbeat(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) focus(w http.ResponseWriter, r *http.Request) {
	var req service.FocusRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.sessionService.RecordFocus(r.Context(), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

// answer reports policy rejections (flagged, expired, unknown lock) as
// 200 {ok:false, reason}; only a missing session is an HTTP error.
func (h *SessionHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.sessionService.SubmitAnswer(r.Context(), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}
