package telemetry

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"fwautotune/pkg/autotune"
	"fwautotune/pkg/gains"
	"fwautotune/pkg/log"
)

// wireRecord is the JSON shape pushed to ground-station clients: the
// §4.6 record plus a monotonically increasing sequence number.
type wireRecord struct {
	Seq         uint64  `json:"seq"`
	TimestampUS uint64  `json:"ts_us"`
	Axis        string  `json:"axis"`
	State       string  `json:"state"`
	Actuator    float32 `json:"actuator"`
	DesiredRate float32 `json:"desired_rate"`
	ActualRate  float32 `json:"actual_rate"`
	FFSingle    float32 `json:"ff_single"`
	FF          float32 `json:"ff"`
	P           float32 `json:"p"`
	I           float32 `json:"i"`
	D           float32 `json:"d"`
	Action      string  `json:"action"`
	RMaxPos     int16   `json:"rmax_pos"`
	Tau         float32 `json:"tau"`
}

// WSBroadcaster is a pure-transport autotune.Sink: it fans out every
// telemetry record to whatever ground-station clients are currently
// connected over a websocket, and drops the record silently if nobody is
// listening. It carries no domain logic of its own.
type WSBroadcaster struct {
	log      *log.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int64]*wsClient
	nextID  int64

	seq atomic.Uint64
}

// NewWSBroadcaster builds a broadcaster logging through logger.
func NewWSBroadcaster(logger *log.Logger) *WSBroadcaster {
	return &WSBroadcaster{
		log:     logger.WithPrefix("telemetry.ws"),
		clients: make(map[int64]*wsClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleUpgrade upgrades an HTTP request to a websocket connection and
// registers the new client as a broadcast recipient.
func (b *WSBroadcaster) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	c := newWSClient(id, conn)
	b.clients[id] = c
	b.mu.Unlock()

	b.log.WithField("client", id).Info("ground station connected")

	go c.writePump()
	go func() {
		c.readPump()
		b.removeClient(id)
	}()
}

func (b *WSBroadcaster) removeClient(id int64) {
	b.mu.Lock()
	delete(b.clients, id)
	b.mu.Unlock()
	b.log.WithField("client", id).Info("ground station disconnected")
}

// broadcast fans msg out to every connected client, dropping it for any
// client whose send buffer is already full rather than blocking.
func (b *WSBroadcaster) broadcast(msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.clients {
		c.send(msg)
	}
}

func (b *WSBroadcaster) WriteBlock(r autotune.Record) {
	b.broadcast(wireRecord{
		Seq:         b.seq.Add(1),
		TimestampUS: r.TimestampUS,
		Axis:        r.Axis.String(),
		State:       r.State.String(),
		Actuator:    r.Actuator,
		DesiredRate: r.DesiredRate,
		ActualRate:  r.ActualRate,
		FFSingle:    r.FFSingle,
		FF:          r.FF,
		P:           r.P,
		I:           r.I,
		D:           r.D,
		Action:      r.Action.String(),
		RMaxPos:     r.RMaxPos,
		Tau:         r.Tau,
	})
}

func (b *WSBroadcaster) NotifyAction(axis gains.Axis, action gains.Action) {
	b.broadcast(map[string]any{"event": "action", "axis": axis.String(), "action": action.String()})
}

func (b *WSBroadcaster) NotifySave(axis gains.Axis) {
	b.broadcast(map[string]any{"event": "save", "axis": axis.String()})
}

// wsClient is a buffered send channel drained by a write pump, with
// ping/pong keepalive and a read pump whose only job is to notice the
// connection going away (ground station clients don't send anything
// this broadcaster acts on).
type wsClient struct {
	id     int64
	conn   *websocket.Conn
	sendCh chan any
	done   chan struct{}
	mu     sync.Mutex
}

func newWSClient(id int64, conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:     id,
		conn:   conn,
		sendCh: make(chan any, 64),
		done:   make(chan struct{}),
	}
}

func (c *wsClient) send(msg any) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		// buffer full: drop rather than block the broadcast loop.
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

func (c *wsClient) readPump() {
	defer c.close()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
