package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/app/orch"
	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

type Controller struct {
	Orch       *orch.Orchestrator
	ReadLimit  int64
	PingPeriod time.Duration
	Guesses    *RateLimiter
}

func NewController(o *orch.Orchestrator, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		Orch:       o,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		Guesses:    NewRateLimiter(20, 10*time.Second),
	}
}

// Conn is one client's signal endpoint: a websocket plus a bounded send
// queue. TrySend never blocks; a full queue is reported as backpressure
// and left to policy.
type Conn struct {
	conn WSConn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewConn(ws WSConn) *Conn {
	return &Conn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades an already-authenticated request and runs the
// connection until it drops. The identity was fixed by the gate and cannot
// change for the connection's lifetime.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	val, ok := c.Get("user")
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	user := val.(*domain.User)

	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", user.Username).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := NewConn(ws)
	sess := core.NewMemberSession(user, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Bind(sid, sess, cancel)

	if err := ctl.Orch.Dir.EnsureUser(ctx, user); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("ensure user")
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, user, conn)

	// The fresh connection sits in the lobby; give it the room list.
	ctl.unicastRoomsList(ctx, conn)
}
