package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/app"
	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/domain"
)

// Directory is the durable room/player store the orchestrator consults at
// membership and round boundaries. The in-memory session never depends on
// it being available.
type Directory interface {
	EnsureUser(ctx context.Context, user *domain.User) error
	AddPlayer(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	SetRoomStatus(ctx context.Context, roomID domain.RoomID, status domain.RoomStatus) error
	RemovePlayer(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (roomDeleted bool, err error)
	RoomPlayers(ctx context.Context, roomID domain.RoomID) ([]domain.Player, error)
	ListActiveRooms(ctx context.Context) ([]domain.RoomSummary, error)
	AddRoundPoints(ctx context.Context, roomID domain.RoomID, username string, delta int) error
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.GroupFactory
	Games    *app.GameManager
	Policy   app.Policy
	Dir      Directory
}

// LeaveResult tells the adapter what teardown happened, so it can order its
// notifications: player-left must reach the room before any re-join.
type LeaveResult struct {
	RoomID      domain.RoomID
	User        *domain.User
	RoomDeleted bool
}

// Join adds the connection to the room's durable roster and broadcast
// group. The caller must have fully processed any previous room's leave
// first; a session still marked in-room is kicked defensively.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, roomID domain.RoomID) error {
	if prev, _, ok := o.Registry.RoomOf(sid); ok {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Int64("from_room", int64(prev)).Msg("join while in room, leaving first")
		o.Leave(ctx, sid)
	}
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return core.ErrNotMember
	}
	if err := o.Dir.AddPlayer(ctx, roomID, session.User().ID); err != nil {
		return err
	}
	group := o.Rooms.GetOrCreate(roomID)
	group.AddMember(sid, session)
	o.Registry.UpdateRoom(sid, roomID)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Int64("room", int64(roomID)).Msg("added to room")
	return nil
}

// Leave removes the connection from its room: broadcast group first, then
// the durable roster. When the last member goes, the room record and any
// game session go with it. Directory failures are logged, never fatal to
// the in-memory teardown.
func (o *Orchestrator) Leave(ctx context.Context, sid core.SessionID) (LeaveResult, bool) {
	roomID, session, ok := o.Registry.RoomOf(sid)
	if !ok {
		return LeaveResult{}, false
	}
	res := LeaveResult{RoomID: roomID, User: session.User()}

	if group, ok := o.Rooms.Get(roomID); ok {
		group.RemoveMember(sid)
	}
	o.Registry.RemoveRoom(sid)

	deleted, err := o.Dir.RemovePlayer(ctx, roomID, session.User().ID)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Int64("room", int64(roomID)).Msg("directory remove player")
	}
	res.RoomDeleted = deleted

	if deleted {
		o.Games.End(roomID)
		o.Rooms.StopGroup(roomID)
		log.Info().Str("module", "orch").Int64("room", int64(roomID)).Msg("room emptied, record and session dropped")
	}
	return res, true
}

// EvictRoom force-removes every connection of a room, e.g. when the room
// record vanished under us.
func (o *Orchestrator) EvictRoom(ctx context.Context, roomID domain.RoomID) {
	for _, snap := range o.Registry.MembersOfRoom(roomID) {
		o.Leave(ctx, snap.SID)
	}
	o.Games.End(roomID)
	o.Rooms.StopGroup(roomID)
}

// HandleBackpressure applies the policy to members dropped by a broadcast.
func (o *Orchestrator) HandleBackpressure(roomID domain.RoomID, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	group, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	for _, sid := range res.Dropped {
		switch o.Policy.OnBackPressure(group, sid) {
		case app.KickMember:
			o.Registry.Cancel(sid)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}
