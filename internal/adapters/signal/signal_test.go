package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Sketch/internal/app"
	"github.com/dkeye/Sketch/internal/app/orch"
	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/domain"
)

type fakeWS struct{}

func (fakeWS) ReadMessage() (int, []byte, error) { return 0, nil, fmt.Errorf("not used") }
func (fakeWS) WriteMessage(int, []byte) error    { return nil }
func (fakeWS) SetReadLimit(int64)                {}
func (fakeWS) SetReadDeadline(time.Time) error   { return nil }
func (fakeWS) SetWriteDeadline(time.Time) error  { return nil }
func (fakeWS) SetPongHandler(func(string) error) {}
func (fakeWS) Close() error                      { return nil }

type memDirectory struct {
	members map[domain.RoomID]map[domain.UserID]string
	points  map[string]int
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		members: make(map[domain.RoomID]map[domain.UserID]string),
		points:  make(map[string]int),
	}
}

func (d *memDirectory) EnsureUser(ctx context.Context, user *domain.User) error { return nil }

func (d *memDirectory) AddPlayer(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	if d.members[roomID] == nil {
		d.members[roomID] = make(map[domain.UserID]string)
	}
	d.members[roomID][userID] = string(userID)
	return nil
}

func (d *memDirectory) RemovePlayer(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	delete(d.members[roomID], userID)
	if len(d.members[roomID]) == 0 {
		delete(d.members, roomID)
		return true, nil
	}
	return false, nil
}

func (d *memDirectory) RoomPlayers(ctx context.Context, roomID domain.RoomID) ([]domain.Player, error) {
	out := []domain.Player{}
	for uid := range d.members[roomID] {
		out = append(out, domain.Player{RoomID: roomID, UserID: uid})
	}
	return out, nil
}

func (d *memDirectory) ListActiveRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	return []domain.RoomSummary{}, nil
}

func (d *memDirectory) SetRoomStatus(ctx context.Context, roomID domain.RoomID, status domain.RoomStatus) error {
	return nil
}

func (d *memDirectory) AddRoundPoints(ctx context.Context, roomID domain.RoomID, username string, delta int) error {
	d.points[username] += delta
	return nil
}

type testClient struct {
	sid  core.SessionID
	user *domain.User
	conn *Conn
}

type harness struct {
	t   *testing.T
	ctl *Controller
	dir *memDirectory
}

func newHarness(t *testing.T) *harness {
	dir := newMemDirectory()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewGroupManager(),
		Games:    app.NewGameManager(),
		Policy:   app.SimplePolicy{},
		Dir:      dir,
	}
	return &harness{t: t, ctl: NewController(o, 4096, 30*time.Second), dir: dir}
}

func (h *harness) connect(name string) *testClient {
	h.t.Helper()
	user, err := domain.NewUser(domain.UserID("id-"+name), name)
	require.NoError(h.t, err)
	conn := NewConn(fakeWS{})
	sid := core.SessionID("sid-" + name)
	_, cancel := context.WithCancel(context.Background())
	h.ctl.Orch.Registry.Bind(sid, core.NewMemberSession(user, conn), cancel)
	return &testClient{sid: sid, user: user, conn: conn}
}

func (h *harness) join(c *testClient, roomID domain.RoomID) {
	h.t.Helper()
	h.send(c, fmt.Sprintf(`{"type":"join-room","roomId":%d}`, roomID))
}

func (h *harness) send(c *testClient, raw string) {
	h.t.Helper()
	h.ctl.handleEvent(context.Background(), c.sid, c.user, c.conn, []byte(raw))
}

// drain empties the client's send queue and decodes every frame.
func drain(t *testing.T, c *testClient) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case data := <-c.conn.send:
			var m map[string]any
			require.NoError(t, json.Unmarshal(data, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func framesOfType(frames []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, f := range frames {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

func TestJoinRoomConfirmAndNotify(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	h.join(alice, 1)
	drain(t, alice)
	drain(t, bob)

	h.join(bob, 1)

	bobFrames := drain(t, bob)
	joined := framesOfType(bobFrames, "room-joined")
	require.Len(t, joined, 1)
	assert.Equal(t, float64(1), joined[0]["roomId"])
	assert.Equal(t, true, joined[0]["success"])

	aliceFrames := drain(t, alice)
	require.Len(t, framesOfType(aliceFrames, "player-joined"), 1)
	assert.Empty(t, framesOfType(bobFrames, "player-joined"), "joiner does not get its own announcement")
}

func TestLateJoinStateSyncWithholdsWord(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	h.join(alice, 1)
	h.join(bob, 1)
	h.send(alice, `{"type":"start-game","drawer":"alice","players":["alice","bob","carol"]}`)
	h.send(alice, `{"type":"set-word","word":"Cake"}`)
	h.send(bob, `{"type":"guess","guess":"a"}`)
	drain(t, alice)
	drain(t, bob)

	carol := h.connect("carol")
	h.join(carol, 1)

	frames := drain(t, carol)
	syncs := framesOfType(frames, "state-sync")
	require.Len(t, syncs, 1)
	sync := syncs[0]
	assert.Equal(t, true, sync["isPlaying"])
	assert.Equal(t, "alice", sync["drawer"])
	assert.Equal(t, float64(4), sync["wordLength"])
	assert.Equal(t, []any{"_", "a", "_", "_"}, sync["revealedWord"])
	assert.Equal(t, []any{"a"}, sync["guessedLetters"])
	_, hasWord := sync["word"]
	assert.False(t, hasWord, "guessers never see the literal word")
}

func TestLateJoinStateSyncShowsWordToDrawer(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	h.join(alice, 1)
	h.join(bob, 1)
	h.send(alice, `{"type":"start-game","drawer":"alice","players":["alice","bob"]}`)
	h.send(alice, `{"type":"set-word","word":"cake"}`)
	drain(t, alice)
	drain(t, bob)

	// The drawer drops and reconnects mid-round.
	h.send(alice, `{"type":"leave-room"}`)
	h.join(alice, 1)

	frames := drain(t, alice)
	syncs := framesOfType(frames, "state-sync")
	require.Len(t, syncs, 1)
	assert.Equal(t, "cake", syncs[0]["word"])
}

func TestGuessFlowBroadcasts(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	h.join(alice, 1)
	h.join(bob, 1)
	h.send(alice, `{"type":"start-game","drawer":"alice","players":["alice","bob"]}`)
	h.send(alice, `{"type":"set-word","word":"cat"}`)
	drain(t, alice)
	drain(t, bob)

	h.send(bob, `{"type":"guess","guess":"cat"}`)

	for _, c := range []*testClient{alice, bob} {
		frames := drain(t, c)
		results := framesOfType(frames, "guess-result")
		require.Len(t, results, 1, "everyone sees the guess outcome")
		assert.Equal(t, true, results[0]["success"])
		assert.Equal(t, "word", results[0]["kind"])
		assert.Equal(t, "bob", results[0]["username"])
		assert.Equal(t, float64(65), results[0]["points"])

		found := framesOfType(frames, "word-found")
		require.Len(t, found, 1)
		assert.Equal(t, "cat", found[0]["word"])
		assert.Equal(t, "bob", found[0]["winner"])
		assert.Equal(t, float64(30), found[0]["drawerBonus"])
		scores := found[0]["scores"].(map[string]any)
		assert.Equal(t, float64(65), scores["bob"])
		assert.Equal(t, float64(30), scores["alice"])
	}
}

func TestDuplicateLetterNoticeIsSubmitterOnly(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	h.join(alice, 1)
	h.join(bob, 1)
	h.send(alice, `{"type":"start-game","drawer":"alice","players":["alice","bob"]}`)
	h.send(alice, `{"type":"set-word","word":"cat"}`)
	h.send(bob, `{"type":"guess","guess":"a"}`)
	drain(t, alice)
	drain(t, bob)

	h.send(bob, `{"type":"guess","guess":"a"}`)

	bobFrames := drain(t, bob)
	results := framesOfType(bobFrames, "guess-result")
	require.Len(t, results, 1)
	assert.Equal(t, "letter already guessed", results[0]["message"])

	assert.Empty(t, framesOfType(drain(t, alice), "guess-result"))
}

func TestGuessBeforeWordChosenIsDropped(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	h.join(alice, 1)
	h.send(alice, `{"type":"start-game","drawer":"alice","players":["alice","bob"]}`)
	drain(t, alice)

	h.send(alice, `{"type":"guess","guess":"c"}`)

	assert.Empty(t, framesOfType(drain(t, alice), "guess-result"))
}

func TestSetWordFromNonDrawerIsDropped(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	h.join(alice, 1)
	h.join(bob, 1)
	h.send(alice, `{"type":"start-game","drawer":"alice","players":["alice","bob"]}`)
	drain(t, alice)
	drain(t, bob)

	h.send(bob, `{"type":"set-word","word":"cat"}`)

	assert.Empty(t, framesOfType(drain(t, alice), "word-set"))
	assert.Empty(t, framesOfType(drain(t, bob), "word-set"))
}

func TestDrawRelayExcludesSender(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	h.join(alice, 1)
	h.join(bob, 1)
	drain(t, alice)
	drain(t, bob)

	h.send(alice, `{"type":"draw","x1":1,"y1":2,"x2":3,"y2":4,"color":"#000","lineWidth":2}`)

	bobFrames := framesOfType(drain(t, bob), "draw")
	require.Len(t, bobFrames, 1)
	assert.Equal(t, float64(3), bobFrames[0]["x2"])
	assert.Empty(t, framesOfType(drain(t, alice), "draw"))
}

func TestMalformedAndUnknownFramesAreDropped(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	h.join(alice, 1)
	drain(t, alice)

	h.send(alice, `{not json`)
	h.send(alice, `{"type":"warp-drive"}`)
	h.send(alice, `{"type":"start-game","players":12}`)

	assert.Empty(t, drain(t, alice))
}

func TestGameEventsOutsideRoomAreDropped(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")

	h.send(alice, `{"type":"start-game","drawer":"alice","players":["alice"]}`)
	h.send(alice, `{"type":"guess","guess":"a"}`)
	h.send(alice, `{"type":"draw","x1":0,"y1":0,"x2":1,"y2":1}`)

	assert.Empty(t, drain(t, alice))
	assert.False(t, h.ctl.Orch.Games.Exists(1))
}

func TestLastLeaveEndsSession(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	h.join(alice, 1)
	h.send(alice, `{"type":"start-game","drawer":"alice","players":["alice"]}`)
	drain(t, alice)

	h.send(alice, `{"type":"leave-room"}`)

	frames := drain(t, alice)
	require.Len(t, framesOfType(frames, "room-left"), 1)
	assert.False(t, h.ctl.Orch.Games.Exists(1))
	_, exists := h.dir.members[1]
	assert.False(t, exists)
}

func TestEndGameBroadcast(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")
	h.join(alice, 1)
	h.join(bob, 1)
	h.send(alice, `{"type":"start-game","drawer":"alice","players":["alice","bob"]}`)
	drain(t, alice)
	drain(t, bob)

	h.send(bob, `{"type":"end-game"}`)

	assert.Len(t, framesOfType(drain(t, alice), "game-ended"), 1)
	assert.Len(t, framesOfType(drain(t, bob), "game-ended"), 1)
	assert.False(t, h.ctl.Orch.Games.Exists(1))
}

func TestChatRelaysToLobbyExcludingSender(t *testing.T) {
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")

	h.send(alice, `{"type":"chat","content":"hello"}`)

	bobFrames := framesOfType(drain(t, bob), "chat")
	require.Len(t, bobFrames, 1)
	assert.Equal(t, "hello", bobFrames[0]["content"])
	assert.Equal(t, "alice", bobFrames[0]["username"])
	assert.Empty(t, framesOfType(drain(t, alice), "chat"))
}
