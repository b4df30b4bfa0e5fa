package healthapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// NotificationType labels an outbound WebSocket push.
type NotificationType string

const (
	NotifyClassification   NotificationType = "classification"
	NotifyExitTransition    NotificationType = "exit_rule_transition"
	NotifyOCOStateChange    NotificationType = "oco_state_change"
	NotifyPlanTrigger       NotificationType = "plan_trigger"
	NotifyLossCutterAction  NotificationType = "loss_cutter_action"
)

// Notification is one outbound WebSocket push (§6.6 classification/exit-
// rule-transition/OCO-state-change/plan-trigger/loss-cut payloads).
type Notification struct {
	Type      NotificationType `json:"type"`
	Symbol    string           `json:"symbol,omitempty"`
	Payload   any              `json:"payload"`
	Timestamp int64            `json:"timestamp"`
}

// client is one connected WebSocket subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub manages outbound WebSocket subscribers and fans out notifications.
// Grounded on the teacher's internal/api/websocket.go Hub/Client
// register/unregister/broadcast select loop, narrowed from channel-keyed
// subscriptions to a flat broadcast (every connected client wants the same
// small set of notification types here).
type Hub struct {
	logger     *zap.Logger
	mu         sync.RWMutex
	clients    map[*client]bool
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
}

// NewHub creates a Hub; call Run in its own goroutine to start it.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger.Named("healthapi.hub"),
		clients:    make(map[*client]bool),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run drives the hub's event loop until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer: drop rather than block the hub.
					h.logger.Warn("dropping notification for slow websocket client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Close stops the hub's event loop.
func (h *Hub) Close() {
	close(h.done)
}

// Notify fans out one notification to every connected subscriber.
func (h *Hub) Notify(n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Warn("notification marshal failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("hub broadcast channel full, dropping notification", zap.String("type", string(n.Type)))
	}
}

// ClientCount returns the number of currently connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 32)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
