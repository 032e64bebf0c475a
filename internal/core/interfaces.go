package core

import "github.com/dkeye/Sketch/internal/domain"

// Frame is a serialized outbound message.
type Frame []byte

type SessionID string

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds a verified identity and its transport endpoint.
// This is what a group stores and fans out to.
type MemberSession interface {
	User() *domain.User
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

// GroupService is one room's broadcast group. It owns the membership set
// but never touches transport resources. A connection belongs to at most
// one group at a time (plus the implicit lobby).
type GroupService interface {
	RoomID() domain.RoomID
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID)
	Member(sid SessionID) (MemberSession, bool)

	// Broadcast delivers to every member except from.
	Broadcast(from SessionID, data Frame) PublishResult
	// BroadcastAll delivers to every member, sender included.
	BroadcastAll(data Frame) PublishResult
	// Unicast delivers to a single member.
	Unicast(sid SessionID, data Frame) error
}

type GroupInfo struct {
	RoomID      domain.RoomID `json:"roomId"`
	MemberCount int           `json:"memberCount"`
}

type GroupFactory interface {
	GetOrCreate(id domain.RoomID) GroupService
	Get(id domain.RoomID) (GroupService, bool)
	List() []GroupInfo
	StopGroup(id domain.RoomID)
}
