package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid core.SessionID, user *domain.User, c *Conn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.handleDisconnect(sid, user, c)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * ctl.PingPeriod))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * ctl.PingPeriod))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(ctx, sid, user, c, data)
		}
	}
}

// handleEvent dispatches one inbound frame. Unknown types and malformed
// payloads are dropped: a stray client event must never corrupt room state.
func (ctl *Controller) handleEvent(ctx context.Context, sid core.SessionID, user *domain.User, c *Conn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join-room":
		ctl.handleJoinRoom(ctx, sid, user, c, data)
	case "leave-room":
		ctl.handleLeaveRoom(ctx, sid, user, c)
	case "start-game":
		ctl.handleStartGame(ctx, sid, user, data)
	case "set-word":
		ctl.handleSetWord(sid, user, data)
	case "draw":
		ctl.handleDraw(sid, data)
	case "clear-canvas":
		ctl.handleClearCanvas(sid)
	case "guess":
		ctl.handleGuess(sid, user, c, data)
	case "next-round":
		ctl.handleNextRound(sid, data)
	case "end-game":
		ctl.handleEndGame(ctx, sid)
	case "chat":
		ctl.handleChat(sid, user, data)
	case "ping":
		ctl.sendJSON(c, map[string]any{"type": "pong"})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

// handleDisconnect treats a dropped connection exactly like an explicit
// leave, then unbinds the session. Teardown runs on its own context: the
// connection's one is already canceled when a kick brought us here.
func (ctl *Controller) handleDisconnect(sid core.SessionID, user *domain.User, c *Conn) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctl.leaveCurrentRoom(cleanupCtx, sid, user)
	ctl.Orch.Registry.Unbind(sid)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", user.Username).Msg("user disconnected")
}

func (ctl *Controller) sendJSON(c *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *Conn, msg string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": msg})
}

// broadcastGroup fans a message out to every member of the room, sender
// included. Frames are queued in call order, so per-room effects reach all
// members in the order the state machine applied them.
func (ctl *Controller) broadcastGroup(roomID domain.RoomID, v any) {
	group, ok := ctl.Orch.Rooms.Get(roomID)
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	res := group.BroadcastAll(b)
	ctl.Orch.HandleBackpressure(roomID, res)
}

// broadcastOthers is broadcastGroup with sender exclusion.
func (ctl *Controller) broadcastOthers(roomID domain.RoomID, from core.SessionID, v any) {
	group, ok := ctl.Orch.Rooms.Get(roomID)
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	res := group.Broadcast(from, b)
	ctl.Orch.HandleBackpressure(roomID, res)
}

// broadcastLobby reaches every authenticated connection, the default group
// each of them joined at the gate.
func (ctl *Controller) broadcastLobby(v any, exclude core.SessionID) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("lobby marshal")
		return
	}
	for _, snap := range ctl.Orch.Registry.All() {
		if snap.SID == exclude {
			continue
		}
		_ = snap.Session.Signal().TrySend(b)
	}
}
