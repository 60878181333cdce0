// Package websocket adapts gorilla websocket connections to the room.Conn
// contract: non-blocking ordered sends, and a close that flushes what was
// queued before it.
package websocket

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"studyroom-relay/internal/logger"
	"studyroom-relay/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	closeGrace     = 2 * time.Second
	maxMessageSize = 1 << 20
)

var (
	ErrConnectionClosed = errors.New("websocket: connection closed")
	ErrSendBufferFull   = errors.New("websocket: send buffer full")
)

type closeFrame struct {
	code   int
	reason string
}

type outbound struct {
	frame models.Frame
	close *closeFrame
}

// Connection is one upgraded socket. Only the write loop writes data frames;
// the owner runs ReadPump on its own goroutine.
type Connection struct {
	id  string
	ws  *websocket.Conn
	log *logger.Logger

	send      chan outbound
	closing   chan struct{}
	closeOnce sync.Once

	stop       chan struct{}
	stopOnce   sync.Once
	writerDone chan struct{}
}

func NewConnection(ws *websocket.Conn, sendBuffer int, log *logger.Logger) *Connection {
	if sendBuffer <= 0 {
		sendBuffer = 128
	}
	if log == nil {
		log = logger.Nop()
	}
	id := uuid.NewString()
	return &Connection{
		id:         id,
		ws:         ws,
		log:        log.With("conn", id),
		send:       make(chan outbound, sendBuffer),
		closing:    make(chan struct{}),
		stop:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (c *Connection) ID() string { return c.id }

// Start launches the write loop. Call it once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send queues f without blocking.
func (c *Connection) Send(f models.Frame) error {
	select {
	case <-c.closing:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- outbound{frame: f}:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close queues a close frame behind every frame already sent. If the queue
// is full the close frame jumps it and the backlog is abandoned.
func (c *Connection) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.closing)
		select {
		case c.send <- outbound{close: &closeFrame{code: code, reason: reason}}:
		default:
			c.log.Warn("ws.close_backlogged", "code", code)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
			_ = c.ws.SetReadDeadline(time.Now().Add(closeGrace))
			c.stopOnce.Do(func() { close(c.stop) })
		}
	})
}

// ReadPump reads frames until the socket fails or closes, handing each to
// deliver. It returns the error that ended the read.
func (c *Connection) ReadPump(deliver func(models.Frame) error) error {
	c.ws.SetReadLimit(maxMessageSize)
	c.extendRead()
	c.ws.SetPongHandler(func(string) error {
		c.extendRead()
		return nil
	})

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		c.extendRead()

		f := models.TextFrame(data)
		if typ == websocket.BinaryMessage {
			f = models.BinaryFrame(data)
		}
		if err := deliver(f); err != nil {
			return err
		}
	}
}

// Release closes normally if nothing else did, waits briefly for the writer
// to flush, then frees the socket.
func (c *Connection) Release() {
	c.Close(models.CloseNormal, "")
	select {
	case <-c.writerDone:
	case <-time.After(writeWait):
	}
	c.stopOnce.Do(func() { close(c.stop) })
	_ = c.ws.Close()
}

// extendRead pushes the read deadline out, unless a close is pending.
func (c *Connection) extendRead() {
	select {
	case <-c.closing:
		return
	default:
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
	}()

	for {
		select {
		case <-c.stop:
			return

		case out := <-c.send:
			if out.close != nil {
				c.writeClose(out.close)
				return
			}
			if err := c.write(out.frame); err != nil {
				c.log.Debug("ws.write_failed", "err", err)
				_ = c.ws.Close()
				return
			}

		case <-ticker.C:
			if err := c.writePing(); err != nil {
				c.log.Debug("ws.ping_failed", "err", err)
				_ = c.ws.Close()
				return
			}
		}
	}
}

func (c *Connection) write(f models.Frame) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	typ := websocket.TextMessage
	if f.Binary {
		typ = websocket.BinaryMessage
	}
	return c.ws.WriteMessage(typ, f.Data)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// writeClose sends the close frame and gives the peer closeGrace to answer
// before the read pump times out.
func (c *Connection) writeClose(cf *closeFrame) {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(cf.code, cf.reason)); err != nil {
		c.log.Debug("ws.close_failed", "code", cf.code, "err", err)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(closeGrace))
}

// Upgrader turns HTTP requests into started Connections.
type Upgrader struct {
	upgrader   websocket.Upgrader
	sendBuffer int
	log        *logger.Logger
}

// NewUpgrader accepts browser origins in allowed; "*" accepts any origin.
// Requests without an Origin header (non-browser clients) are always let in.
func NewUpgrader(allowed []string, sendBuffer int, log *logger.Logger) *Upgrader {
	return &Upgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range allowed {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
		sendBuffer: sendBuffer,
		log:        log,
	}
}

// Upgrade completes the handshake and starts the write loop. On failure the
// upgrader has already replied to the client.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c := NewConnection(ws, u.sendBuffer, u.log)
	c.Start()
	return c, nil
}

// IsUpgrade reports whether r asks for a websocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// ExpectedClose reports whether err is an ordinary end of a session rather
// than a transport failure worth logging.
func ExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		models.CloseKicked,
		models.CloseBanned,
	)
}
