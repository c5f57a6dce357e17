package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/request"
	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/response"
	"github.com/glory2yahpub/marketplace/internal/api/middleware"
	"github.com/glory2yahpub/marketplace/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type ChatService interface {
	GetNegotiation(ctx context.Context, negotiationID, caller string, admin bool) (domain.Negotiation, error)
	SendMessage(ctx context.Context, negotiationID, sender, body string) (domain.Message, error)
	ListMessages(ctx context.Context, negotiationID, caller string) ([]domain.Message, error)
}

type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	identity string
	room     string
}

type roomMessage struct {
	room    string
	payload []byte
}

// ChatHandler relays negotiation messages between the buyer and seller.
// Messages are persisted through the service first and then fanned out to
// every socket open on the same negotiation.
type ChatHandler struct {
	svc      ChatService
	upgrader websocket.Upgrader

	roomsMutex sync.RWMutex
	rooms      map[string]map[*Client]struct{}

	broadcast  chan roomMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewChatHandler(svc ChatService, allowedOrigins []string) *ChatHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &ChatHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		rooms:      make(map[string]map[*Client]struct{}),
		broadcast:  make(chan roomMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns room membership until ctx is done.
func (h *ChatHandler) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.roomsMutex.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]struct{})
			}
			h.rooms[client.room][client] = struct{}{}
			h.roomsMutex.Unlock()
		case client := <-h.unregister:
			h.roomsMutex.Lock()
			h.drop(client)
			h.roomsMutex.Unlock()
		case msg := <-h.broadcast:
			h.roomsMutex.Lock()
			for client := range h.rooms[msg.room] {
				select {
				case client.send <- msg.payload:
				default:
					h.drop(client)
				}
			}
			h.roomsMutex.Unlock()
		}
	}
}

// drop must be called with roomsMutex held.
func (h *ChatHandler) drop(client *Client) {
	members, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, ok := members[client]; !ok {
		return
	}
	delete(members, client)
	close(client.send)
	if len(members) == 0 {
		delete(h.rooms, client.room)
	}
}

func (h *ChatHandler) closeAll() {
	h.roomsMutex.Lock()
	defer h.roomsMutex.Unlock()

	for _, members := range h.rooms {
		for client := range members {
			h.drop(client)
		}
	}
}

func (h *ChatHandler) publish(msg domain.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("failed to encode chat message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- roomMessage{room: msg.NegotiationID, payload: payload}:
	default:
		zap.L().Warn("chat broadcast queue full, message not relayed", zap.String("negotiation_id", msg.NegotiationID))
	}
}

// HandleWebSocket godoc
// @Summary Open the live message stream of a negotiation
// @Description Upgrades to a websocket. Clients send {"body": "..."} frames and receive every
// @Description message posted on the negotiation. Browsers may pass the token as ?token=.
// @Tags negotiations,chat
// @Param id path string true "Negotiation ID"
// @Success 101 {string} string "Switching Protocols to WebSocket"
// @Failure 401 {object} response.Err
// @Failure 403 {object} response.Err
// @Failure 404 {object} response.Err
// @Router /negotiations/{id}/ws [get]
// @Security BearerAuth
func (h *ChatHandler) HandleWebSocket(ctx *gin.Context) {
	identity := middleware.Identity(ctx)
	n, err := h.svc.GetNegotiation(ctx.Request.Context(), ctx.Param("id"), identity, false)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleWebSocket -> h.svc.GetNegotiation", err))
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, 256),
		identity: identity,
		room:     n.ID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

type inboundFrame struct {
	Body string `json:"body"`
}

func (c *Client) readPump(h *ChatHandler) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Warn("websocket closed unexpectedly", zap.String("negotiation_id", c.room), zap.Error(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.reply(h, map[string]string{"type": "error", "message": "malformed frame"})
			continue
		}

		msg, err := h.svc.SendMessage(context.Background(), c.room, c.identity, frame.Body)
		if err != nil {
			rendered := response.FromService("readPump -> h.svc.SendMessage", err)
			c.reply(h, map[string]string{"type": "error", "message": rendered.ErrorMsg})
			continue
		}
		h.publish(msg)
	}
}

// reply queues a frame for this client only. Clients already dropped by the
// hub are skipped since their send channel is closed.
func (c *Client) reply(h *ChatHandler, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}

	h.roomsMutex.RLock()
	defer h.roomsMutex.RUnlock()
	if _, ok := h.rooms[c.room][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleListMessages godoc
// @Summary List the messages of a negotiation
// @Tags negotiations,chat
// @Produce json
// @Param id path string true "Negotiation ID"
// @Success 200 {array} domain.Message
// @Failure 403 {object} response.Err
// @Failure 404 {object} response.Err
// @Router /negotiations/{id}/messages [get]
// @Security BearerAuth
func (h *ChatHandler) HandleListMessages(ctx *gin.Context) {
	msgs, err := h.svc.ListMessages(ctx.Request.Context(), ctx.Param("id"), middleware.Identity(ctx))
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandleListMessages -> h.svc.ListMessages", err))
		return
	}

	ctx.JSON(http.StatusOK, msgs)
}

// HandlePostMessage godoc
// @Summary Post a message on a negotiation
// @Tags negotiations,chat
// @Accept json
// @Produce json
// @Param id path string true "Negotiation ID"
// @Param request body request.MessageRequest true "message"
// @Success 201 {object} domain.Message
// @Failure 400 {object} response.Err
// @Failure 403 {object} response.Err
// @Failure 404 {object} response.Err
// @Router /negotiations/{id}/messages [post]
// @Security BearerAuth
func (h *ChatHandler) HandlePostMessage(ctx *gin.Context) {
	var req request.MessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	msg, err := h.svc.SendMessage(ctx.Request.Context(), ctx.Param("id"), middleware.Identity(ctx), req.Body)
	if err != nil {
		response.RenderErr(ctx, response.FromService("HandlePostMessage -> h.svc.SendMessage", err))
		return
	}
	h.publish(msg)

	ctx.JSON(http.StatusCreated, msg)
}
