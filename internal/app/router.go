package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// User-facing acknowledgement messages.
const (
	MsgRoomNotFound = "Room not found or invalid input!"
	MsgRoomFull     = "Specified room participants limit reached, make a new one!"
	MsgInternal     = "Something went wrong, try again later."
)

type RegisterPayload struct {
	SessionID domain.SessionID `json:"sessionId"`
	RoomID    domain.RoomID    `json:"roomId,omitempty"`
}

type JoinRoomPayload struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

type PersonLeftPayload struct {
	SessionID domain.SessionID `json:"sessionId"`
}

type CreateRoomAck struct {
	IsError bool `json:"isError"`
}

type JoinRoomAck struct {
	Error string `json:"error,omitempty"`
}

// Router dispatches inbound client events against the registry, directory
// and group index, and fans resulting events out to connections. All state
// is injected at construction so each test can run an isolated instance.
type Router struct {
	Registry *Registry
	Rooms    *Directory
	Groups   *Groups
}

func NewRouter(reg *Registry, rooms *Directory, groups *Groups) *Router {
	return &Router{Registry: reg, Rooms: rooms, Groups: groups}
}

// Connect grants the new connection its own-id group so targeted delivery
// works before registration. Called by the transport adapter on accept.
func (rt *Router) Connect(id domain.ConnID, conn core.SignalConnection) {
	rt.Groups.Join(string(id), id, conn)
}

// Register binds the connection to its client-chosen session id and joins
// the identity group. A roomId means the client is rejoining after a
// transport reconnect; the room is told its peer is back.
func (rt *Router) Register(id domain.ConnID, conn core.SignalConnection, p RegisterPayload) {
	rt.Registry.Put(id, domain.Person{SessionID: p.SessionID})
	rt.Groups.Join(string(p.SessionID), id, conn)

	if p.RoomID != "" {
		rt.Groups.Join(string(p.RoomID), id, conn)
		rt.emit(string(p.RoomID), "person_reconnected", PersonLeftPayload{SessionID: p.SessionID})
	}
	log.Info().Str("module", "app.router").Str("conn", string(id)).Str("sid", string(p.SessionID)).Msg("registered")
}

// CreateRoom stores the room under a fresh id and makes the caller its
// first member.
func (rt *Router) CreateRoom(id domain.ConnID, conn core.SignalConnection, room domain.Room) CreateRoomAck {
	created, err := rt.Rooms.Create(room)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("conn", string(id)).Msg("create room")
		return CreateRoomAck{IsError: true}
	}
	rt.Groups.Join(string(created.ID), id, conn)
	rt.emit(string(id), "joined_room", created)
	return CreateRoomAck{IsError: false}
}

// JoinRoom resolves the join link and adds the caller to the room. The
// capacity check is a point-in-time count: concurrent joins can transiently
// exceed maxPeople, which is acceptable for a soft UX limit.
func (rt *Router) JoinRoom(id domain.ConnID, conn core.SignalConnection, p JoinRoomPayload) JoinRoomAck {
	roomID, ok := ResolveLink(p.Link)
	if !ok {
		return JoinRoomAck{Error: MsgRoomNotFound}
	}
	room, ok := rt.Rooms.Get(roomID)
	if !ok {
		// Same answer as a bad link: the caller cannot tell an expired room
		// from a mistyped one.
		return JoinRoomAck{Error: MsgRoomNotFound}
	}

	if room.Opts != nil && room.Opts.MaxPeople > 0 {
		if rt.Groups.Count(string(room.ID)) >= room.Opts.MaxPeople {
			return JoinRoomAck{Error: MsgRoomFull}
		}
	}

	person, ok := rt.Registry.Get(id)
	if !ok {
		log.Error().Str("module", "app.router").Str("conn", string(id)).Msg("join before register")
		return JoinRoomAck{Error: MsgInternal}
	}

	rt.Groups.Join(string(room.ID), id, conn)
	rt.emitExcept(string(room.ID), id, "person_joined", map[string]any{
		"name":      p.Name,
		"sessionId": person.SessionID,
	})
	rt.emit(string(id), "joined_room", room)
	log.Info().Str("module", "app.router").Str("sid", string(person.SessionID)).Str("room", string(room.ID)).Msg("joined room")
	return JoinRoomAck{}
}

// LeaveRoom removes the caller from every room it is in, notifies the
// remaining peers, and prunes rooms left empty.
func (rt *Router) LeaveRoom(id domain.ConnID) {
	person, _ := rt.Registry.Get(id)
	for _, group := range rt.Groups.Of(id) {
		if isSelfGroup(group, id, person.SessionID) {
			continue
		}
		rt.Groups.Leave(group, id)
		if person.SessionID != "" {
			rt.emit(group, "person_left", PersonLeftPayload{SessionID: person.SessionID})
		}
		if rt.Groups.Count(group) == 0 {
			rt.Rooms.Delete(domain.RoomID(group))
		}
	}
}

// PersonLeft is a peer-initiated forced removal: the target's current
// connection is told to leave, and the caller's rooms hear person_left.
func (rt *Router) PersonLeft(id domain.ConnID, target domain.SessionID) {
	rt.emit(string(target), "leave_room", nil)

	person, _ := rt.Registry.Get(id)
	for _, group := range rt.Groups.Of(id) {
		if isSelfGroup(group, id, person.SessionID) {
			continue
		}
		rt.emit(group, "person_left", PersonLeftPayload{SessionID: target})
	}
}

// Relay forwards an opaque signaling payload to the group named by "to",
// stamped with the sender's session id. The payload is never interpreted.
// Unregistered senders and empty target groups are silent drops.
func (rt *Router) Relay(id domain.ConnID, payload map[string]any) {
	person, ok := rt.Registry.Get(id)
	if !ok {
		return
	}
	to, _ := payload["to"].(string)
	if to == "" {
		return
	}
	msg := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "to" {
			continue
		}
		msg[k] = v
	}
	msg["from"] = person.SessionID
	rt.emitExcept(to, id, "message", msg)
}

// Disconnect handles the transport-level close: the registry entry is
// dropped, every room the connection was in hears person_disconnected, and
// rooms left empty are pruned from the directory.
func (rt *Router) Disconnect(id domain.ConnID) {
	person, _ := rt.Registry.Get(id)
	rt.Registry.Delete(id)

	for _, group := range rt.Groups.Of(id) {
		rt.Groups.Leave(group, id)
		if isSelfGroup(group, id, person.SessionID) {
			continue
		}
		if person.SessionID != "" {
			rt.emit(group, "person_disconnected", PersonLeftPayload{SessionID: person.SessionID})
		}
		if rt.Groups.Count(group) == 0 {
			rt.Rooms.Delete(domain.RoomID(group))
		}
	}
	log.Info().Str("module", "app.router").Str("conn", string(id)).Str("sid", string(person.SessionID)).Msg("disconnected")
}

// isSelfGroup reports whether the group is the connection's own id-group or
// its identity group; those carry no room peers and are skipped when
// fanning out leave and disconnect notifications.
func isSelfGroup(group string, id domain.ConnID, sid domain.SessionID) bool {
	return group == string(id) || (sid != "" && group == string(sid))
}

func (rt *Router) emit(group, event string, data any) {
	rt.send(rt.Groups.Members(group), event, data)
}

func (rt *Router) emitExcept(group string, except domain.ConnID, event string, data any) {
	rt.send(rt.Groups.MembersExcept(group, except), event, data)
}

func (rt *Router) send(conns []core.SignalConnection, event string, data any) {
	if len(conns) == 0 {
		return
	}
	frame, err := core.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("event", event).Msg("encode event")
		return
	}
	for _, c := range conns {
		if err := c.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.router").Str("event", event).Msg("dropped outbound event")
		}
	}
}
