package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/directory"
	"github.com/dkeye/Sketch/internal/domain"
)

func (ctl *Controller) handleJoinRoom(ctx context.Context, sid core.SessionID, user *domain.User, c *Conn, data []byte) {
	type joinPayload struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == 0 {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	// Joining while already in a room is an implicit leave: its side
	// effects, player-left included, complete before the join proceeds.
	ctl.leaveCurrentRoom(ctx, sid, user)

	if err := ctl.Orch.Join(ctx, sid, p.RoomID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Int64("room", int64(p.RoomID)).Msg("join rejected")
		switch err {
		case directory.ErrRoomFull:
			ctl.sendError(c, "room is full")
		case directory.ErrRoomNotJoinable:
			ctl.sendError(c, "game already started or ended")
		case directory.ErrNotFound:
			ctl.sendError(c, "room not found")
		default:
			ctl.sendError(c, "join failed")
		}
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Int64("room", int64(p.RoomID)).Msg("join")

	ctl.sendJSON(c, struct {
		Type    string        `json:"type"`
		RoomID  domain.RoomID `json:"roomId"`
		Success bool          `json:"success"`
	}{"room-joined", p.RoomID, true})

	ctl.broadcastRoster(ctx, p.RoomID)

	ctl.broadcastOthers(p.RoomID, sid, struct {
		Type string      `json:"type"`
		User domain.User `json:"user"`
	}{"player-joined", *user})

	ctl.broadcastRoomsList(ctx)

	// Late-join sync: one snapshot, unicast, no stroke replay. The drawing
	// itself is not retained server-side, only the textual round state.
	ctl.Orch.Games.Do(p.RoomID, func(s *core.Session) {
		snap := s.Snapshot(user.Username)
		ctl.sendJSON(c, struct {
			Type string `json:"type"`
			core.StateSnapshot
		}{"state-sync", snap})
	})
}

func (ctl *Controller) handleLeaveRoom(ctx context.Context, sid core.SessionID, user *domain.User, c *Conn) {
	if !ctl.leaveCurrentRoom(ctx, sid, user) {
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "room-left"})
}

// leaveCurrentRoom runs the whole leave flow: membership teardown, then
// the player-left and roster notifications to whoever remains.
func (ctl *Controller) leaveCurrentRoom(ctx context.Context, sid core.SessionID, user *domain.User) bool {
	res, ok := ctl.Orch.Leave(ctx, sid)
	if !ok {
		return false
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Int64("room", int64(res.RoomID)).Msg("leave")

	if !res.RoomDeleted {
		ctl.broadcastGroup(res.RoomID, struct {
			Type string      `json:"type"`
			User domain.User `json:"user"`
		}{"player-left", *user})
		ctl.broadcastRoster(ctx, res.RoomID)
	}
	ctl.broadcastRoomsList(ctx)
	return true
}

// broadcastRoster pushes the directory's live roster to the whole room, so
// everyone's view of who is present converges.
func (ctl *Controller) broadcastRoster(ctx context.Context, roomID domain.RoomID) {
	players, err := ctl.Orch.Dir.RoomPlayers(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Int64("room", int64(roomID)).Msg("room players")
		return
	}
	ctl.broadcastGroup(roomID, struct {
		Type    string          `json:"type"`
		Players []domain.Player `json:"players"`
	}{"players-updated", players})
}

type roomsListMessage struct {
	Type  string               `json:"type"`
	Rooms []domain.RoomSummary `json:"rooms"`
}

// broadcastRoomsList tells the lobby, i.e. every connection, that the set
// of joinable rooms changed.
func (ctl *Controller) broadcastRoomsList(ctx context.Context) {
	rooms, err := ctl.Orch.Dir.ListActiveRooms(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("list rooms")
		return
	}
	ctl.broadcastLobby(roomsListMessage{"rooms-updated", rooms}, "")
}

// NotifyRoomsChanged lets other adapters (the REST surface) push a fresh
// room list after a directory mutation.
func (ctl *Controller) NotifyRoomsChanged(ctx context.Context) {
	ctl.broadcastRoomsList(ctx)
}

func (ctl *Controller) unicastRoomsList(ctx context.Context, c *Conn) {
	rooms, err := ctl.Orch.Dir.ListActiveRooms(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("list rooms")
		return
	}
	ctl.sendJSON(c, roomsListMessage{"rooms-updated", rooms})
}
