package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 3 * time.Second

	// Send pings with this period. Must be less than the client's
	// read deadline.
	pingPeriod = 20 * time.Second

	sendQueue = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Local development server; cross-origin pages are expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans push events out to every connected client. Clients never send
// application frames; the read side only services control messages and
// connection teardown.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*conn
}

type conn struct {
	id   string
	ws   *websocket.Conn
	hub  *Hub
	data chan []byte

	closeOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*conn)}
}

// ServeHTTP upgrades the request and registers the subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("hub: upgrade error: %v", err)
		return
	}

	c := &conn{
		id:   uuid.New(),
		ws:   wsConn,
		hub:  h,
		data: make(chan []byte, sendQueue),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	glog.V(5).Infof("hub: subscription %s connected from %s", c.id, r.RemoteAddr)

	go c.sendLoop()
	go c.recvLoop()
}

// Broadcast queues one frame for every subscription. A subscriber that
// cannot keep up is dropped rather than allowed to stall the rest.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		select {
		case c.data <- frame:
		default:
			glog.Errorf("hub: subscription %s too slow, dropping", c.id)
			c.close()
		}
	}
}

// Close tears down every subscription.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
		c.ws.Close()

		c.hub.mu.Lock()
		delete(c.hub.conns, c.id)
		c.hub.mu.Unlock()
		glog.V(5).Infof("hub: subscription %s closed", c.id)
	})
}

// recvLoop exists to run the websocket read pump: it surfaces close
// frames and pong handling, and drops anything else.
func (c *conn) recvLoop() {
	defer c.close()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *conn) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.data:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				glog.V(5).Infof("hub: write to %s failed: %v", c.id, err)
				return
			}
		case <-pingTicker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
