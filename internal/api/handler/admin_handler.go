package handler

import (
	"net/http"
	"time"

	"csi_locks/internal/api/middleware"
	"csi_locks/internal/app/realtime"
	"csi_locks/internal/app/service"
	"csi_locks/internal/common"
	"csi_locks/pkg/logger"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	// Dashboards are authenticated by admin secret or token, not by origin.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type AdminHandler struct {
	adminService *service.AdminService
	authService  *service.AuthService
	tokenAuth    *jwtauth.JWTAuth
	hub          *realtime.Hub
}

func NewAdminHandler(as *service.AdminService, auth *service.AuthService, tokenAuth *jwtauth.JWTAuth, hub *realtime.Hub) *AdminHandler {
	return &AdminHandler{adminService: as, authService: auth, tokenAuth: tokenAuth, hub: hub}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(ar chi.Router) {
		ar.Use(jwtauth.Verifier(h.tokenAuth))
		ar.Use(middleware.AdminAuthenticator(h.authService))

		ar.Get("/ws", h.stream) // long-lived; no request timeout

		ar.Group(func(rest chi.Router) {
			rest.Use(chiMiddleware.Timeout(60 * time.Second))
			rest.Get("/sessions", h.listSessions)
			rest.Get("/sessions/{sessionID}", h.getSession)
			rest.Post("/sessions/{sessionID}/flag", h.flagSession)
		})
	})
}

func (h *AdminHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.adminService.ListActiveSessions(r.Context())
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) getSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.adminService.GetSessionDetail(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) flagSession(w http.ResponseWriter, r *http.Request) {
	var req service.FlagSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	req.FlaggedBy, _ = middleware.GetAdminSubjectFromContext(r.Context())

	resp, err := h.adminService.FlagSession(r.Context(), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

// stream upgrades to a websocket and relays session events until the client
// disconnects.
func (h *AdminHandler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
