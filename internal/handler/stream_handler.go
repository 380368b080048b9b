package handler

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/internal/service"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamSendBuffer = 32
	streamReadLimit  = 512

	messageSnapshot     = "snapshot"
	messageCallProgress = "call_progress"
)

type snapshotSource interface {
	All() []service.Snapshot
	Subscribe() (<-chan service.Snapshot, func())
}

type callStream interface {
	OnProgress(fn service.CallProgressFunc)
	Current(actorID string) (dto.CallSessionView, bool)
	Teardown(actorID string)
}

type streamMessage struct {
	Type       string               `json:"type"`
	Collection string               `json:"collection,omitempty"`
	Version    uint64               `json:"version,omitempty"`
	At         *time.Time           `json:"at,omitempty"`
	Data       interface{}          `json:"data,omitempty"`
	Session    *dto.CallSessionView `json:"session,omitempty"`
}

type streamClient struct {
	actor models.Actor
	send  chan streamMessage
}

// enqueue never blocks; a client that cannot keep up loses messages.
func (c *streamClient) enqueue(msg streamMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

// StreamHandler pushes collection snapshots and call progress over websockets.
// When an actor's last connection closes, their call session is torn down.
type StreamHandler struct {
	snapshots snapshotSource
	calls     callStream
	upgrader  websocket.Upgrader
	logger    *zap.Logger

	mu      sync.Mutex
	clients map[string]map[*streamClient]struct{}
}

// NewStreamHandler constructs StreamHandler and subscribes it to call progress.
func NewStreamHandler(snapshots snapshotSource, calls callStream, allowedOrigins []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &StreamHandler{
		snapshots: snapshots,
		calls:     calls,
		logger:    logger,
		clients:   make(map[string]map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
	calls.OnProgress(h.progress)
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[origin] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// Snapshots godoc
// @Summary Live snapshot stream
// @Description Websocket. Sends every collection on connect, then each change and the caller's call timer.
// @Tags Realtime
// @Security BearerAuth
// @Param access_token query string false "Token for clients that cannot set headers"
// @Success 101
// @Failure 401 {object} response.Envelope
// @Router /ws/snapshots [get]
func (h *StreamHandler) Snapshots(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("actor_id", actor.ID), zap.Error(err))
		return
	}

	updates, unsubscribe := h.snapshots.Subscribe()
	client := &streamClient{actor: actor, send: make(chan streamMessage, streamSendBuffer)}
	h.register(client)
	defer func() {
		unsubscribe()
		h.unregister(client)
		_ = conn.Close()
	}()

	for _, snap := range h.snapshots.All() {
		if msg, ok := snapshotMessage(actor, snap); ok {
			client.enqueue(msg)
		}
	}
	if view, ok := h.calls.Current(actor.ID); ok {
		client.enqueue(progressMessage(view))
	}

	done := make(chan struct{})
	go readPump(conn, done)
	h.writePump(conn, client, updates, done)
}

func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, client *streamClient, updates <-chan service.Snapshot, done <-chan struct{}) {
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	write := func(msg streamMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("websocket write failed", zap.String("actor_id", client.actor.ID), zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if msg, ok := snapshotMessage(client.actor, snap); ok && !write(msg) {
				return
			}
		case msg := <-client.send:
			if !write(msg) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) register(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.actor.ID]
	if !ok {
		set = make(map[*streamClient]struct{})
		h.clients[client.actor.ID] = set
	}
	set[client] = struct{}{}
}

func (h *StreamHandler) unregister(client *streamClient) {
	h.mu.Lock()
	set := h.clients[client.actor.ID]
	delete(set, client)
	last := len(set) == 0
	if last {
		delete(h.clients, client.actor.ID)
	}
	h.mu.Unlock()

	if last {
		h.calls.Teardown(client.actor.ID)
	}
}

func (h *StreamHandler) progress(actorID string, view dto.CallSessionView) {
	msg := progressMessage(view)
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[actorID] {
		client.enqueue(msg)
	}
}

func progressMessage(view dto.CallSessionView) streamMessage {
	return streamMessage{Type: messageCallProgress, Session: &view}
}

// snapshotMessage scopes a snapshot to what actor may see.
func snapshotMessage(actor models.Actor, snap service.Snapshot) (streamMessage, bool) {
	data := snap.Data
	switch snap.Collection {
	case changefeed.CollectionSystemLogs:
		if !actor.Admin() {
			return streamMessage{}, false
		}
	case changefeed.CollectionLeads:
		if leads, ok := data.([]models.Lead); ok && !actor.Admin() {
			data = visibleLeads(actor, leads)
		}
	case changefeed.CollectionStaff:
		if staff, ok := data.([]models.Staff); ok && !actor.Admin() {
			data = visibleStaff(actor, staff)
		}
	}
	at := snap.At
	return streamMessage{Type: messageSnapshot, Collection: snap.Collection, Version: snap.Version, At: &at, Data: data}, true
}

func visibleLeads(actor models.Actor, leads []models.Lead) []models.Lead {
	out := make([]models.Lead, 0)
	for _, lead := range leads {
		switch actor.Role {
		case models.RoleDepartmentHead:
			if lead.AssignedHeadID != nil && *lead.AssignedHeadID == actor.ID {
				out = append(out, lead)
			}
		case models.RoleTeacher:
			if lead.AssignedTeacherID != nil && *lead.AssignedTeacherID == actor.ID {
				out = append(out, lead)
			}
		}
	}
	return out
}

// visibleStaff gives teachers only their own row and hides challenge facts from non-auditors.
func visibleStaff(actor models.Actor, staff []models.Staff) []models.Staff {
	out := make([]models.Staff, 0, len(staff))
	for i := range staff {
		member := staff[i]
		switch {
		case actor.Role == models.RoleTeacher:
			if member.ID == actor.ID {
				out = append(out, member.WithRedactedChallenge())
			}
		case actor.CanAudit(&member):
			out = append(out, member)
		default:
			out = append(out, member.WithRedactedChallenge())
		}
	}
	return out
}
