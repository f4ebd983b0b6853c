package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"locshare/internal/common/contextx"
	"locshare/internal/common/jwt"
	"locshare/internal/common/logger"
	commonws "locshare/internal/common/ws"
	"locshare/internal/sharing/app"
	"locshare/internal/sharing/domain"
	"locshare/internal/sharing/permission"
)

const (
	authWindow   = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	ctrlTimeout  = 5 * time.Second
	maxFrameSize = 1 << 20 // 1 MiB
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway is the WebSocket surface of the sharing engine. Clients
// authenticate with a first-frame JWT, then exchange typed JSON envelopes:
// inbound location_update, sharing, permission and get_location; outbound
// friend_locations snapshots and per-request replies.
type Gateway struct {
	log    *logger.Logger
	hub    *commonws.Hub
	jwtMgr *jwt.Manager
	svc    *app.Service
	perms  *permission.Manager
	repo   *app.Repository
}

func NewGateway(log *logger.Logger, hub *commonws.Hub, jwtMgr *jwt.Manager, svc *app.Service, perms *permission.Manager, repo *app.Repository) *Gateway {
	return &Gateway{log: log, hub: hub, jwtMgr: jwtMgr, svc: svc, perms: perms, repo: repo}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type serverMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HandleClient upgrades the connection, runs the auth phase, then serves the
// read loop and the friend location feed until the client goes away.
func (g *Gateway) HandleClient(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error(r.Context(), "ws_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()

	// ---------------- AUTH PHASE ----------------
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(authWindow))

	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		g.log.Error(r.Context(), "ws_auth_timeout", "Client disconnected before authentication", err, nil)
		_ = conn.WriteJSON(serverMessage{Type: "auth_error", Error: "authentication timeout: send auth message within 5 seconds"})
		return
	}
	if msgType != websocket.TextMessage {
		_ = conn.WriteJSON(serverMessage{Type: "auth_error", Error: "auth message must be in text format"})
		return
	}

	res, err := jwt.ValidateWSAuth(firstFrame, g.jwtMgr)
	if err != nil {
		g.log.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
		_ = conn.WriteJSON(serverMessage{Type: "auth_error", Error: "authentication failed: invalid token"})
		return
	}
	userID := res.Claims.Subject

	// every operation on this connection carries the authenticated identity
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = contextx.WithUserID(contextx.WithNewRequestID(ctx), userID)

	if err := conn.WriteJSON(serverMessage{Type: "auth_success", Message: "authenticated"}); err != nil {
		return
	}
	g.log.Info(ctx, "ws_auth_success", "Client WebSocket authenticated", map[string]any{"user_id": userID})

	g.hub.Add(ctx, userID, conn)
	defer g.hub.Remove(ctx, userID, conn)

	// ---------------- KEEP-ALIVE ----------------
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pingTicker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout)); err != nil {
					// close to unblock the reader; goroutine exits
					_ = conn.Close()
					return
				}
			}
		}
	}()

	// ---------------- FRIEND FEED ----------------
	feed := &feedHandle{}
	g.startFriendFeed(ctx, feed, userID)
	defer feed.stop()

	// ---------------- READ LOOP ----------------
	for {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Error(ctx, "ws_unexpected_close", "Connection closed unexpectedly", err, map[string]any{"user_id": userID})
			} else {
				g.log.Info(ctx, "ws_connection_closed", "Connection closed", map[string]any{"user_id": userID})
			}
			return
		}

		var msg envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "bad json"})
			continue
		}

		switch msg.Type {
		case "location_update":
			g.handleLocationUpdate(ctx, userID, msg.Data)

		case "sharing":
			g.handleSharing(ctx, userID, msg.Data)

		case "permission":
			if g.handlePermission(ctx, userID, msg.Data) {
				// the authorized set may have changed; rebuild the feed
				g.startFriendFeed(ctx, feed, userID)
			}

		case "get_location":
			g.handleGetLocation(ctx, userID, msg.Data)

		default:
			_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

func (g *Gateway) handleLocationUpdate(ctx context.Context, userID string, data json.RawMessage) {
	var record domain.LocationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "invalid location payload"})
		return
	}

	if err := g.svc.Broadcast(ctx, record.ToLocation()); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidLocation):
			_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "invalid location"})
		case errors.Is(err, domain.ErrSharingDisabled):
			_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "sharing disabled"})
		default:
			g.log.Error(ctx, "ws_broadcast_failed", "Failed to broadcast location", err, map[string]any{"user_id": userID})
			_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "broadcast failed"})
		}
		return
	}
	_ = g.hub.Send(userID, serverMessage{Type: "ack", Message: "location_update"})
}

func (g *Gateway) handleSharing(ctx context.Context, userID string, data json.RawMessage) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "invalid sharing payload"})
		return
	}

	var err error
	if req.Enabled {
		err = g.svc.EnableSharing(ctx)
	} else {
		err = g.svc.DisableSharing(ctx)
	}
	if err != nil {
		g.log.Error(ctx, "ws_sharing_toggle_failed", "Failed to toggle sharing", err, map[string]any{"user_id": userID, "enabled": req.Enabled})
		_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "sharing update failed"})
		return
	}
	_ = g.hub.Send(userID, serverMessage{Type: "ack", Message: "sharing"})
}

// handlePermission applies a permission action and reports whether it
// succeeded, so the caller can rebuild the friend feed.
func (g *Gateway) handlePermission(ctx context.Context, userID string, data json.RawMessage) bool {
	var req struct {
		Action   string `json:"action"`
		FriendID string `json:"friend_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.FriendID == "" {
		_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "invalid permission payload"})
		return false
	}

	var err error
	switch req.Action {
	case "request":
		err = g.perms.Request(ctx, req.FriendID)
	case "grant":
		err = g.perms.Grant(ctx, req.FriendID)
	case "deny":
		err = g.perms.Deny(ctx, req.FriendID)
	case "revoke":
		err = g.perms.Revoke(ctx, req.FriendID)
	default:
		_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "unknown permission action"})
		return false
	}

	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "invalid permission transition"})
		} else {
			g.log.Error(ctx, "ws_permission_failed", "Permission update failed", err, map[string]any{
				"user_id":   userID,
				"friend_id": req.FriendID,
				"action":    req.Action,
			})
			_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "permission update failed"})
		}
		return false
	}

	_ = g.hub.Send(userID, serverMessage{Type: "ack", Message: "permission"})
	return true
}

func (g *Gateway) handleGetLocation(ctx context.Context, userID string, data json.RawMessage) {
	var req struct {
		FriendID string `json:"friend_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.FriendID == "" {
		_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "invalid get_location payload"})
		return
	}

	if !g.perms.SharingActive(ctx, req.FriendID) {
		_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "permission denied"})
		return
	}

	loc, err := g.repo.FriendLocation(ctx, req.FriendID)
	if err != nil {
		if errors.Is(err, domain.ErrNoLocation) {
			_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "no location"})
		} else {
			g.log.Error(ctx, "ws_get_location_failed", "Failed to read friend location", err, map[string]any{
				"user_id":   userID,
				"friend_id": req.FriendID,
			})
			_ = g.hub.Send(userID, serverMessage{Type: "error", Error: "lookup failed"})
		}
		return
	}

	_ = g.hub.Send(userID, struct {
		Type     string                `json:"type"`
		FriendID string                `json:"friend_id"`
		Location domain.LocationRecord `json:"location"`
	}{Type: "friend_location", FriendID: req.FriendID, Location: loc.ToRecord()})
}

// feedHandle tracks the cancel func of the current friend feed so it can be
// torn down and rebuilt when the authorized set changes.
type feedHandle struct {
	cancel context.CancelFunc
}

func (f *feedHandle) stop() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// startFriendFeed (re)subscribes to every friend currently authorized to
// share with this user and pushes merged snapshots over the connection.
func (g *Gateway) startFriendFeed(ctx context.Context, feed *feedHandle, userID string) {
	feed.stop()

	authorized := g.perms.AuthorizedFriends(ctx)
	if len(authorized) == 0 {
		return
	}
	friendIDs := make([]string, 0, len(authorized))
	for id := range authorized {
		friendIDs = append(friendIDs, id)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	updates, err := g.svc.SubscribeFriends(feedCtx, friendIDs)
	if err != nil {
		cancel()
		g.log.Error(ctx, "ws_feed_failed", "Failed to subscribe to friend locations", err, map[string]any{
			"user_id": userID,
			"friends": len(friendIDs),
		})
		return
	}
	feed.cancel = cancel

	go func() {
		for snapshot := range updates {
			wire := make(map[string]domain.LocationRecord, len(snapshot))
			for id, loc := range snapshot {
				wire[id] = loc.ToRecord()
			}
			if err := g.hub.Send(userID, struct {
				Type      string                           `json:"type"`
				Locations map[string]domain.LocationRecord `json:"locations"`
			}{Type: "friend_locations", Locations: wire}); err != nil {
				g.log.Error(feedCtx, "ws_feed_send_failed", "Failed to push friend locations", err, map[string]any{"user_id": userID})
				return
			}
		}
	}()
}
