package app

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) events(t *testing.T) []core.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Envelope, 0, len(f.frames))
	for _, fr := range f.frames {
		var env core.Envelope
		require.NoError(t, json.Unmarshal(fr, &env))
		out = append(out, env)
	}
	return out
}

func (f *fakeConn) named(t *testing.T, event string) []core.Envelope {
	t.Helper()
	var out []core.Envelope
	for _, env := range f.events(t) {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func dataMap(t *testing.T, env core.Envelope) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	reg := NewRegistry(time.Minute)
	dir := NewDirectory(time.Minute)
	t.Cleanup(reg.Stop)
	t.Cleanup(dir.Stop)
	return NewRouter(reg, dir, NewGroups())
}

// attach simulates a fresh transport connection plus register.
func attach(rt *Router, id domain.ConnID, sid domain.SessionID) *fakeConn {
	conn := &fakeConn{}
	rt.Connect(id, conn)
	rt.Register(id, conn, RegisterPayload{SessionID: sid})
	return conn
}

func TestRegisterGrantsIdentityGroup(t *testing.T) {
	rt := newTestRouter(t)

	conn := &fakeConn{}
	rt.Connect("conn-a", conn)
	assert.Equal(t, 1, rt.Groups.Count("conn-a"))
	assert.Equal(t, 0, rt.Groups.Count("session-a"))

	rt.Register("conn-a", conn, RegisterPayload{SessionID: "session-a"})
	assert.Equal(t, 1, rt.Groups.Count("session-a"))

	p, ok := rt.Registry.Get("conn-a")
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("session-a"), p.SessionID)
}

func TestRegisterRejoinNotifiesRoom(t *testing.T) {
	rt := newTestRouter(t)

	peer := attach(rt, "conn-a", "session-a")
	room, err := rt.Rooms.Create(domain.Room{CreatedBy: "session-a"})
	require.NoError(t, err)
	rt.Groups.Join(string(room.ID), "conn-a", peer)

	// session-b comes back after a transport reconnect.
	conn := &fakeConn{}
	rt.Connect("conn-b2", conn)
	rt.Register("conn-b2", conn, RegisterPayload{SessionID: "session-b", RoomID: room.ID})

	events := peer.named(t, "person_reconnected")
	require.Len(t, events, 1)
	assert.Equal(t, "session-b", dataMap(t, events[0])["sessionId"])
	assert.Equal(t, 2, rt.Groups.Count(string(room.ID)))
}

func TestCreateRoom(t *testing.T) {
	rt := newTestRouter(t)
	conn := attach(rt, "conn-a", "session-a")

	ack := rt.CreateRoom("conn-a", conn, domain.Room{
		CreatedBy: "session-a",
		Name:      "daily",
		Opts:      &domain.RoomOpts{MaxPeople: 3},
	})
	assert.False(t, ack.IsError)

	joined := conn.named(t, "joined_room")
	require.Len(t, joined, 1)
	var room domain.Room
	require.NoError(t, json.Unmarshal(joined[0].Data, &room))
	assert.Len(t, string(room.ID), 21)
	assert.Equal(t, "daily", room.Name)

	stored, ok := rt.Rooms.Get(room.ID)
	require.True(t, ok)
	assert.Equal(t, room, stored)
	assert.Equal(t, 1, rt.Groups.Count(string(room.ID)))
}

func TestJoinRoom(t *testing.T) {
	rt := newTestRouter(t)
	creator := attach(rt, "conn-a", "session-a")
	rt.CreateRoom("conn-a", creator, domain.Room{CreatedBy: "session-a"})

	var room domain.Room
	require.NoError(t, json.Unmarshal(creator.named(t, "joined_room")[0].Data, &room))
	creator.reset()

	joiner := attach(rt, "conn-b", "session-b")
	ack := rt.JoinRoom("conn-b", joiner, JoinRoomPayload{
		Name: "Bob",
		Link: "https://meet.example.com/room/" + string(room.ID),
	})
	assert.Empty(t, ack.Error)

	// The rest of the room hears person_joined; the joiner does not.
	events := creator.named(t, "person_joined")
	require.Len(t, events, 1)
	data := dataMap(t, events[0])
	assert.Equal(t, "Bob", data["name"])
	assert.Equal(t, "session-b", data["sessionId"])
	assert.Empty(t, joiner.named(t, "person_joined"))

	joined := joiner.named(t, "joined_room")
	require.Len(t, joined, 1)
	var got domain.Room
	require.NoError(t, json.Unmarshal(joined[0].Data, &got))
	assert.Equal(t, room.ID, got.ID)
}

func TestJoinRoomNotFound(t *testing.T) {
	rt := newTestRouter(t)
	conn := attach(rt, "conn-a", "session-a")

	t.Run("bad link", func(t *testing.T) {
		ack := rt.JoinRoom("conn-a", conn, JoinRoomPayload{Link: "https://host/other/path"})
		assert.Equal(t, MsgRoomNotFound, ack.Error)
	})

	t.Run("expired room", func(t *testing.T) {
		ack := rt.JoinRoom("conn-a", conn, JoinRoomPayload{Link: "V1StGXR8_Z5jdHi6B-myT"})
		assert.Equal(t, MsgRoomNotFound, ack.Error)
	})

	t.Run("empty link", func(t *testing.T) {
		ack := rt.JoinRoom("conn-a", conn, JoinRoomPayload{Link: ""})
		assert.Equal(t, MsgRoomNotFound, ack.Error)
	})
}

func TestJoinRoomBeforeRegister(t *testing.T) {
	rt := newTestRouter(t)
	creator := attach(rt, "conn-a", "session-a")
	rt.CreateRoom("conn-a", creator, domain.Room{})
	var room domain.Room
	require.NoError(t, json.Unmarshal(creator.named(t, "joined_room")[0].Data, &room))

	conn := &fakeConn{}
	rt.Connect("conn-b", conn)
	ack := rt.JoinRoom("conn-b", conn, JoinRoomPayload{Link: string(room.ID)})
	assert.Equal(t, MsgInternal, ack.Error)
	assert.Equal(t, 1, rt.Groups.Count(string(room.ID)))
}

func TestJoinRoomCapacity(t *testing.T) {
	rt := newTestRouter(t)
	creator := attach(rt, "conn-a", "session-a")
	rt.CreateRoom("conn-a", creator, domain.Room{Opts: &domain.RoomOpts{MaxPeople: 2}})
	var room domain.Room
	require.NoError(t, json.Unmarshal(creator.named(t, "joined_room")[0].Data, &room))

	second := attach(rt, "conn-b", "session-b")
	ack := rt.JoinRoom("conn-b", second, JoinRoomPayload{Link: string(room.ID)})
	require.Empty(t, ack.Error)

	third := attach(rt, "conn-c", "session-c")
	ack = rt.JoinRoom("conn-c", third, JoinRoomPayload{Link: string(room.ID)})
	assert.Equal(t, MsgRoomFull, ack.Error)
	assert.Equal(t, 2, rt.Groups.Count(string(room.ID)))
}

func TestLeaveRoom(t *testing.T) {
	rt := newTestRouter(t)
	creator := attach(rt, "conn-a", "session-a")
	rt.CreateRoom("conn-a", creator, domain.Room{})
	var room domain.Room
	require.NoError(t, json.Unmarshal(creator.named(t, "joined_room")[0].Data, &room))

	joiner := attach(rt, "conn-b", "session-b")
	require.Empty(t, rt.JoinRoom("conn-b", joiner, JoinRoomPayload{Link: string(room.ID)}).Error)
	creator.reset()

	rt.LeaveRoom("conn-b")

	events := creator.named(t, "person_left")
	require.Len(t, events, 1)
	assert.Equal(t, "session-b", dataMap(t, events[0])["sessionId"])

	// Identity and own-id groups survive a room leave.
	assert.Equal(t, 1, rt.Groups.Count("session-b"))
	assert.Equal(t, 1, rt.Groups.Count("conn-b"))

	// The room still has its creator, so it stays in the directory.
	_, ok := rt.Rooms.Get(room.ID)
	assert.True(t, ok)

	rt.LeaveRoom("conn-a")
	_, ok = rt.Rooms.Get(room.ID)
	assert.False(t, ok, "empty room should be pruned")
}

func TestPersonLeftForcedRemoval(t *testing.T) {
	rt := newTestRouter(t)
	creator := attach(rt, "conn-a", "session-a")
	rt.CreateRoom("conn-a", creator, domain.Room{})
	var room domain.Room
	require.NoError(t, json.Unmarshal(creator.named(t, "joined_room")[0].Data, &room))

	target := attach(rt, "conn-b", "session-b")
	require.Empty(t, rt.JoinRoom("conn-b", target, JoinRoomPayload{Link: string(room.ID)}).Error)
	witness := attach(rt, "conn-c", "session-c")
	require.Empty(t, rt.JoinRoom("conn-c", witness, JoinRoomPayload{Link: string(room.ID)}).Error)

	creator.reset()
	target.reset()
	witness.reset()

	// The creator kicks session-b.
	rt.PersonLeft("conn-a", "session-b")

	// The target's client is instructed to leave on its own.
	require.Len(t, target.named(t, "leave_room"), 1)

	// Everyone in the caller's room hears who was removed.
	for _, peer := range []*fakeConn{creator, witness} {
		events := peer.named(t, "person_left")
		require.Len(t, events, 1)
		assert.Equal(t, "session-b", dataMap(t, events[0])["sessionId"])
	}
}

func TestRelay(t *testing.T) {
	rt := newTestRouter(t)
	sender := attach(rt, "conn-a", "session-a")
	receiver := attach(rt, "conn-b", "session-b")

	rt.Relay("conn-a", map[string]any{
		"to":   "session-b",
		"kind": "offer",
		"sdp":  "v=0...",
	})

	events := receiver.named(t, "message")
	require.Len(t, events, 1)
	data := dataMap(t, events[0])
	assert.Equal(t, "session-a", data["from"])
	assert.Equal(t, "offer", data["kind"])
	assert.Equal(t, "v=0...", data["sdp"])
	assert.NotContains(t, data, "to")

	// The sender never hears its own relay back.
	assert.Empty(t, sender.named(t, "message"))
}

func TestRelayDrops(t *testing.T) {
	rt := newTestRouter(t)

	t.Run("no such identity group", func(t *testing.T) {
		sender := attach(rt, "conn-a", "session-a")
		rt.Relay("conn-a", map[string]any{"to": "session-gone", "text": "hi"})
		assert.Empty(t, sender.named(t, "message"))
	})

	t.Run("unregistered sender", func(t *testing.T) {
		receiver := attach(rt, "conn-b", "session-b")
		conn := &fakeConn{}
		rt.Connect("conn-x", conn)
		rt.Relay("conn-x", map[string]any{"to": "session-b", "text": "hi"})
		assert.Empty(t, receiver.named(t, "message"))
	})
}

func TestDisconnect(t *testing.T) {
	rt := newTestRouter(t)
	creator := attach(rt, "conn-a", "session-a")
	rt.CreateRoom("conn-a", creator, domain.Room{})
	var room domain.Room
	require.NoError(t, json.Unmarshal(creator.named(t, "joined_room")[0].Data, &room))

	joiner := attach(rt, "conn-b", "session-b")
	require.Empty(t, rt.JoinRoom("conn-b", joiner, JoinRoomPayload{Link: string(room.ID)}).Error)
	creator.reset()

	rt.Disconnect("conn-b")

	events := creator.named(t, "person_disconnected")
	require.Len(t, events, 1)
	assert.Equal(t, "session-b", dataMap(t, events[0])["sessionId"])

	_, ok := rt.Registry.Get("conn-b")
	assert.False(t, ok)
	assert.Empty(t, rt.Groups.Of("conn-b"))
}

func TestDisconnectSoleMemberPrunesRoom(t *testing.T) {
	rt := newTestRouter(t)
	conn := attach(rt, "conn-a", "session-a")
	rt.CreateRoom("conn-a", conn, domain.Room{})
	var room domain.Room
	require.NoError(t, json.Unmarshal(conn.named(t, "joined_room")[0].Data, &room))

	rt.Disconnect("conn-a")

	_, ok := rt.Rooms.Get(room.ID)
	assert.False(t, ok)
}

func TestReconnectKeepsAddressability(t *testing.T) {
	rt := newTestRouter(t)
	attach(rt, "conn-a", "session-a")

	first := attach(rt, "conn-b1", "session-b")
	rt.Disconnect("conn-b1")
	first.reset()

	// Same session, fresh transport connection.
	second := attach(rt, "conn-b2", "session-b")

	rt.Relay("conn-a", map[string]any{"to": "session-b", "text": "hi"})

	assert.Empty(t, first.named(t, "message"))
	events := second.named(t, "message")
	require.Len(t, events, 1)
	assert.Equal(t, "hi", dataMap(t, events[0])["text"])
}
