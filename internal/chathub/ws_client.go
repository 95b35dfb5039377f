package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"meetsync/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	inboundBuffer  = 64
	eventTimeout   = 15 * time.Second
)

// ClientOptions задають розміри буферів зʼєднання. Нульові значення замінюються дефолтними.
type ClientOptions struct {
	SendBuffer int
	ReadLimit  int64
}

// WebSocketClient реалізує Client поверх зʼєднання gorilla/websocket.
//
// Одне зʼєднання обслуговують три горутини: readPump декодує фрейми у вхідну чергу,
// dispatchLoop по одному передає їх у хаб, writePump пише по фрейму на кожну подію.
// Тому події одного зʼєднання обробляються в порядку надходження.
type WebSocketClient struct {
	ID       string
	Identity models.Identity
	Conn     *websocket.Conn
	Hub      *ManagerService

	send    chan models.OutboundEvent
	inbound chan models.InboundEvent

	mu        sync.Mutex
	closed    bool
	readLimit int64
	log       zerolog.Logger
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, ident models.Identity, opts ClientOptions) *WebSocketClient {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = maxMessageSize
	}

	id := uuid.NewString()
	return &WebSocketClient{
		ID:        id,
		Identity:  ident,
		Conn:      conn,
		Hub:       hub,
		send:      make(chan models.OutboundEvent, opts.SendBuffer),
		inbound:   make(chan models.InboundEvent, inboundBuffer),
		readLimit: opts.ReadLimit,
		log:       hub.log.With().Str("conn_id", id).Str("user_id", ident.UserID).Logger(),
	}
}

func (c *WebSocketClient) GetID() string                { return c.ID }
func (c *WebSocketClient) GetIdentity() models.Identity { return c.Identity }
func (c *WebSocketClient) GetUserID() string            { return c.Identity.UserID }

func (c *WebSocketClient) Send(evt models.OutboundEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// Close зупиняє writePump, той закриває сокет, і readPump теж завершується.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.dispatchLoop()
	go c.readPump()
}

func (c *WebSocketClient) readPump() {
	defer func() {
		close(c.inbound)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("error reading message")
			}
			return
		}

		var evt models.InboundEvent
		if err := json.Unmarshal(message, &evt); err != nil || evt.Type == "" {
			c.Send(models.OutboundEvent{Type: models.EventError, Data: errorData(withMessage(ErrInvalidPayload, "frame is not an event envelope"))})
			continue
		}
		c.inbound <- evt
	}
}

// dispatchLoop працює, доки readPump не закриє вхідну чергу, а потім прибирає
// за зʼєднанням так само, як при явному leave.
func (c *WebSocketClient) dispatchLoop() {
	for evt := range c.inbound {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		c.Hub.Dispatch(ctx, c, evt)
		cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	c.Hub.Disconnect(ctx, c)
	c.Close()
	c.Hub.Unregister(c)
	c.log.Debug().Msg("connection closed")
}

// writePump пише один JSON-фрейм на подію і періодично пінгує клієнта.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteJSON(evt); err != nil {
				c.log.Debug().Err(err).Str("event", string(evt.Type)).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
