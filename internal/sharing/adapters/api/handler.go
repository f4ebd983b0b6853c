package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"locshare/internal/common/contextx"
	"locshare/internal/common/jwt"
	"locshare/internal/common/logger"
	commonws "locshare/internal/common/ws"
	"locshare/internal/sharing/app"
	"locshare/internal/sharing/domain"
	"locshare/internal/sharing/permission"
)

// Handler is the authenticated REST surface for read-side lookups: the
// caller's own last position, a friend's position (permission gated), and
// the set of currently connected users.
type Handler struct {
	log    *logger.Logger
	jwtMgr *jwt.Manager
	repo   *app.Repository
	perms  *permission.Manager
	hub    *commonws.Hub
}

func NewHandler(log *logger.Logger, jwtMgr *jwt.Manager, repo *app.Repository, perms *permission.Manager, hub *commonws.Hub) *Handler {
	return &Handler{log: log, jwtMgr: jwtMgr, repo: repo, perms: perms, hub: hub}
}

type locationResponse struct {
	UserID   string                `json:"user_id"`
	Location domain.LocationRecord `json:"location"`
}

type connectionsResponse struct {
	Connected []string `json:"connected"`
}

// Router returns the handler's routes, each behind the JWT middleware.
func (h *Handler) Router() http.Handler {
	auth := jwt.AuthMiddlewareFunc(h.jwtMgr)
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/", auth(h.locationsPrefixHandler))
	mux.HandleFunc("/connections", auth(h.handleConnections))
	return mux
}

func (h *Handler) locationsPrefixHandler(w http.ResponseWriter, r *http.Request) {
	ctx := contextx.WithNewRequestID(r.Context())

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID := claims.Subject

	target := strings.Trim(strings.TrimPrefix(r.URL.Path, "/locations/"), "/")
	if target == "" {
		http.NotFound(w, r)
		return
	}

	// "me" and the caller's own id read the user's own record; anything else
	// is a friend lookup gated on an active grant
	if target == "me" || target == userID {
		loc, err := h.repo.OwnLocation(ctx, userID)
		if err != nil {
			h.writeLookupError(ctx, w, userID, userID, err)
			return
		}
		h.writeJSON(ctx, w, locationResponse{UserID: userID, Location: loc.ToRecord()})
		return
	}

	if !h.perms.SharingActive(ctx, target) {
		http.Error(w, "permission denied", http.StatusForbidden)
		return
	}

	loc, err := h.repo.FriendLocation(ctx, target)
	if err != nil {
		h.writeLookupError(ctx, w, userID, target, err)
		return
	}
	h.writeJSON(ctx, w, locationResponse{UserID: target, Location: loc.ToRecord()})
}

func (h *Handler) handleConnections(w http.ResponseWriter, r *http.Request) {
	ctx := contextx.WithNewRequestID(r.Context())

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	connected := h.hub.ListConnected()
	sort.Strings(connected)
	h.writeJSON(ctx, w, connectionsResponse{Connected: connected})
}

func (h *Handler) writeLookupError(ctx context.Context, w http.ResponseWriter, userID, targetID string, err error) {
	if errors.Is(err, domain.ErrNoLocation) {
		http.Error(w, "no location", http.StatusNotFound)
		return
	}
	h.log.Error(ctx, "location_lookup_failed", "Failed to read location", err, map[string]any{
		"user_id":   userID,
		"target_id": targetID,
	})
	http.Error(w, "lookup failed", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error(ctx, "response_encode_failed", "Failed to encode response body", err, nil)
	}
}
