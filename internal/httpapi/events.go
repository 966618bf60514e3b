package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"taskd/pkg/types"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 512

	// Completions buffered per client before it is dropped as too slow.
	clientBuffer = 64
)

// upgrader accepts any origin; CORS policy applies to the JSON routes only.
var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// hub fans completion events out to websocket clients.
type hub struct {
	ctx        context.Context
	clients    map[*client]bool
	broadcast  chan types.CompletionEvent
	register   chan *client
	unregister chan *client
}

type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan types.CompletionEvent
}

// newHub returns a hub that stops when ctx ends.
func newHub(ctx context.Context) *hub {
	return &hub{
		ctx:        ctx,
		clients:    make(map[*client]bool),
		broadcast:  make(chan types.CompletionEvent, clientBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// publish never blocks; it runs on the control loop.
func (h *hub) publish(ev types.CompletionEvent) {
	select {
	case h.broadcast <- ev:
	default:
		zlog.Warn().Str("job_id", ev.JobID).Msg("event hub saturated; completion not streamed")
	}
}

func (h *hub) run() {
	defer func() {
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		eventClients.Set(0)
	}()
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = true
			eventClients.Set(float64(len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			eventClients.Set(float64(len(h.clients)))
		case ev := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- ev:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			eventClients.Set(float64(len(h.clients)))
		}
	}
}

// serveEvents upgrades the request and streams completions until the client
// goes away or the hub stops.
func (h *hub) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Debug().Err(err).Msg("events upgrade failed")
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan types.CompletionEvent, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump discards client frames and detects disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zlog.Debug().Err(err).Msg("events client closed")
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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
