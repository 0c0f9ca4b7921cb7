package ws

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Time allowed to read the next ping from the server.
	pingWait = 35 * time.Second

	// Reconnect backoff bounds.
	minBackoff = time.Second
	maxBackoff = 30 * time.Second

	readLimit = 1 << 20
)

var reconnects = promauto.NewCounter(prometheus.CounterOpts{
	Name: "teamchat_ws_reconnects_total",
	Help: "Websocket reconnect attempts after a lost connection",
})

// Subscriber maintains one long-lived subscription to the server's push
// stream, scoped to a whole session. Connection loss is handled here with
// backoff and never surfaced to the consumer; frames that fail to decode
// are logged and dropped.
type Subscriber struct {
	url    string
	events chan Event
	dialer *websocket.Dialer

	mu      sync.Mutex
	started bool
}

// NewSubscriber prepares a subscription to the given ws:// URL.
// Run must be called to start it.
func NewSubscriber(url string) *Subscriber {
	return &Subscriber{
		url:    url,
		events: make(chan Event, 64),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Events is the stream of decoded push events. Closed when Run returns.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Run connects and reads until ctx is cancelled, reconnecting on any
// transport failure. It is an error to call Run twice.
func (s *Subscriber) Run(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		panic("ws: Subscriber.Run called twice")
	}
	s.started = true
	s.mu.Unlock()

	defer close(s.events)

	backoff := minBackoff
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if !first {
			reconnects.Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
		first = false

		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			glog.Errorf("ws: dial %s: %v", s.url, err)
			continue
		}
		glog.V(5).Infof("ws: connected to %s", s.url)
		backoff = minBackoff

		s.readLoop(ctx, conn)
		conn.Close()
	}
}

// readLoop drains conn until a read error or ctx cancellation. The server
// pings on an interval; each ping extends the read deadline, so a silent
// peer is detected and the connection recycled.
func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		// gorilla's default handler replies with a pong; keep that.
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(3*time.Second))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				glog.Errorf("ws: read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			glog.Errorf("ws: unexpected message type: %d", msgType)
			continue
		}

		ev, err := Decode(data)
		if err != nil {
			glog.Errorf("ws: %v", err)
			continue
		}

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
