package orch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Sketch/internal/app"
	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/domain"
)

type nopSignal struct{}

func (nopSignal) TrySend(core.Frame) error { return nil }
func (nopSignal) Close()                   {}

// fakeDirectory keeps the roster in memory, mirroring the postgres
// adapter's contract: join is capped, leave of the last member deletes
// the room record.
type fakeDirectory struct {
	mu      sync.Mutex
	members map[domain.RoomID]map[domain.UserID]bool
	points  map[string]int
	addErr  error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		members: make(map[domain.RoomID]map[domain.UserID]bool),
		points:  make(map[string]int),
	}
}

func (f *fakeDirectory) EnsureUser(ctx context.Context, user *domain.User) error { return nil }

func (f *fakeDirectory) AddPlayer(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	if f.members[roomID] == nil {
		f.members[roomID] = make(map[domain.UserID]bool)
	}
	f.members[roomID][userID] = true
	return nil
}

func (f *fakeDirectory) RemovePlayer(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[roomID], userID)
	if len(f.members[roomID]) == 0 {
		delete(f.members, roomID)
		return true, nil
	}
	return false, nil
}

func (f *fakeDirectory) RoomPlayers(ctx context.Context, roomID domain.RoomID) ([]domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Player{}
	for uid := range f.members[roomID] {
		out = append(out, domain.Player{RoomID: roomID, UserID: uid})
	}
	return out, nil
}

func (f *fakeDirectory) ListActiveRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	return nil, nil
}

func (f *fakeDirectory) SetRoomStatus(ctx context.Context, roomID domain.RoomID, status domain.RoomStatus) error {
	return nil
}

func (f *fakeDirectory) AddRoundPoints(ctx context.Context, roomID domain.RoomID, username string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[username] += delta
	return nil
}

func newOrchestrator(dir Directory) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewGroupManager(),
		Games:    app.NewGameManager(),
		Policy:   app.SimplePolicy{},
		Dir:      dir,
	}
}

func bind(t *testing.T, o *Orchestrator, sid core.SessionID, name string) {
	t.Helper()
	user, err := domain.NewUser(domain.UserID("id-"+name), name)
	require.NoError(t, err)
	_, cancel := context.WithCancel(context.Background())
	o.Registry.Bind(sid, core.NewMemberSession(user, nopSignal{}), cancel)
}

func TestJoinAddsEverywhere(t *testing.T) {
	dir := newFakeDirectory()
	o := newOrchestrator(dir)
	bind(t, o, "sid-1", "alice")

	require.NoError(t, o.Join(context.Background(), "sid-1", 1))

	roomID, _, inRoom := o.Registry.RoomOf("sid-1")
	require.True(t, inRoom)
	assert.Equal(t, domain.RoomID(1), roomID)

	group, ok := o.Rooms.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1, group.MemberCount())
	assert.True(t, dir.members[1]["id-alice"])
}

func TestJoinRejectedByDirectory(t *testing.T) {
	dir := newFakeDirectory()
	dir.addErr = assert.AnError
	o := newOrchestrator(dir)
	bind(t, o, "sid-1", "alice")

	require.Error(t, o.Join(context.Background(), "sid-1", 1))

	_, _, inRoom := o.Registry.RoomOf("sid-1")
	assert.False(t, inRoom, "a rejected join must leave no group membership behind")
}

func TestJoinWhileInRoomLeavesFirst(t *testing.T) {
	dir := newFakeDirectory()
	o := newOrchestrator(dir)
	bind(t, o, "sid-1", "alice")
	bind(t, o, "sid-2", "bob")
	require.NoError(t, o.Join(context.Background(), "sid-1", 1))
	require.NoError(t, o.Join(context.Background(), "sid-2", 1))

	require.NoError(t, o.Join(context.Background(), "sid-1", 2))

	group1, ok := o.Rooms.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1, group1.MemberCount())
	assert.False(t, dir.members[1]["id-alice"])
	assert.True(t, dir.members[2]["id-alice"])
}

func TestLastLeaveDeletesRoomAndSession(t *testing.T) {
	dir := newFakeDirectory()
	o := newOrchestrator(dir)
	bind(t, o, "sid-1", "alice")
	require.NoError(t, o.Join(context.Background(), "sid-1", 1))
	o.Games.Start(1, "alice", []string{"alice"})

	res, ok := o.Leave(context.Background(), "sid-1")

	require.True(t, ok)
	assert.True(t, res.RoomDeleted)
	assert.Equal(t, domain.RoomID(1), res.RoomID)
	assert.Equal(t, "alice", res.User.Username)

	_, exists := dir.members[1]
	assert.False(t, exists, "durable record goes with the last player")
	assert.False(t, o.Games.Exists(1), "no game session survives an empty room")
	_, groupExists := o.Rooms.Get(1)
	assert.False(t, groupExists)
}

func TestLeaveKeepsRoomForRemaining(t *testing.T) {
	dir := newFakeDirectory()
	o := newOrchestrator(dir)
	bind(t, o, "sid-1", "alice")
	bind(t, o, "sid-2", "bob")
	require.NoError(t, o.Join(context.Background(), "sid-1", 1))
	require.NoError(t, o.Join(context.Background(), "sid-2", 1))
	o.Games.Start(1, "alice", []string{"alice", "bob"})

	res, ok := o.Leave(context.Background(), "sid-1")

	require.True(t, ok)
	assert.False(t, res.RoomDeleted)
	assert.True(t, o.Games.Exists(1))
	group, _ := o.Rooms.Get(1)
	assert.Equal(t, 1, group.MemberCount())
}

func TestLeaveWithoutRoomIsNoop(t *testing.T) {
	o := newOrchestrator(newFakeDirectory())
	bind(t, o, "sid-1", "alice")

	_, ok := o.Leave(context.Background(), "sid-1")
	assert.False(t, ok)
}

func TestPersistRoundWritesDeltas(t *testing.T) {
	dir := newFakeDirectory()
	o := newOrchestrator(dir)

	o.PersistRound(context.Background(), 1, map[string]int{"alice": 60, "bob": -5})

	assert.Equal(t, 60, dir.points["alice"])
	assert.Equal(t, -5, dir.points["bob"])
}
