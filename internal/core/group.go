package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/domain"
)

var ErrNotMember = errors.New("not a group member")

// groupImpl is a threadsafe in-memory broadcast group.
// It never closes adapter-owned resources.
type groupImpl struct {
	roomID domain.RoomID
	mu     sync.RWMutex
	bySID  map[SessionID]MemberSession
	byUser map[domain.UserID]SessionID
}

func NewGroupService(roomID domain.RoomID) GroupService {
	return &groupImpl{
		roomID: roomID,
		bySID:  make(map[SessionID]MemberSession),
		byUser: make(map[domain.UserID]SessionID),
	}
}

func (g *groupImpl) RoomID() domain.RoomID { return g.roomID }

func (g *groupImpl) MemberCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.bySID)
}

func (g *groupImpl) AddMember(sid SessionID, ms MemberSession) {
	u := ms.User().ID
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bySID[sid] = ms
	g.byUser[u] = sid
	log.Info().Str("module", "core.group").Int64("room", int64(g.roomID)).Str("sid", string(sid)).Str("user", string(u)).Msg("member added")
}

func (g *groupImpl) RemoveMember(sid SessionID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ms, ok := g.bySID[sid]; ok {
		delete(g.byUser, ms.User().ID)
	}
	delete(g.bySID, sid)
	log.Info().Str("module", "core.group").Int64("room", int64(g.roomID)).Str("sid", string(sid)).Msg("member removed")
}

func (g *groupImpl) Member(sid SessionID) (MemberSession, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ms, ok := g.bySID[sid]
	return ms, ok
}

func (g *groupImpl) Broadcast(from SessionID, data Frame) PublishResult {
	return g.publish(&from, data)
}

func (g *groupImpl) BroadcastAll(data Frame) PublishResult {
	return g.publish(nil, data)
}

func (g *groupImpl) publish(exclude *SessionID, data Frame) PublishResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range g.bySID {
		if exclude != nil && sid == *exclude {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.group").Int64("room", int64(g.roomID)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (g *groupImpl) Unicast(sid SessionID, data Frame) error {
	g.mu.RLock()
	ms, ok := g.bySID[sid]
	g.mu.RUnlock()
	if !ok {
		return ErrNotMember
	}
	return ms.Signal().TrySend(data)
}

func (g *groupImpl) MembersSnapshot() []MemberDTO {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]MemberDTO, 0, len(g.bySID))
	for _, ms := range g.bySID {
		u := ms.User()
		out = append(out, MemberDTO{ID: u.ID, Username: u.Username})
	}
	return out
}
