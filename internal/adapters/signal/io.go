package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
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

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, id domain.ConnID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		ctl.Router.Disconnect(id)
		ctl.Limiter.Forget(id)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.dispatch(id, c, data)
		}
	}
}

// dispatch routes one inbound envelope. It is the failure boundary per
// event: a panicking handler is logged and, when the client awaits an
// acknowledgement, answered with an error-shaped ack. One malformed event
// must never take down the connection, let alone the process.
func (ctl *Controller) dispatch(id domain.ConnID, c *wsConn, data []byte) {
	var env core.Envelope

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(id)).Str("event", env.Event).Any("panic", r).Msg("handler panic")
			switch env.Event {
			case "create_room":
				ctl.ack(c, env.Ack, app.CreateRoomAck{IsError: true})
			case "join_room":
				ctl.ack(c, env.Ack, app.JoinRoomAck{Error: app.MsgInternal})
			}
		}
	}()

	if !ctl.Limiter.Allow(id) {
		log.Warn().Str("module", "signal").Str("conn", string(id)).Msg("rate limited")
		return
	}

	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad envelope")
		return
	}

	switch env.Event {
	case "register":
		var p app.RegisterPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.SessionID == "" {
			log.Error().Err(err).Str("module", "signal").Msg("bad register payload")
			return
		}
		ctl.Router.Register(id, c, p)

	case "create_room":
		var room domain.Room
		if err := json.Unmarshal(env.Data, &room); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad create_room payload")
			ctl.ack(c, env.Ack, app.CreateRoomAck{IsError: true})
			return
		}
		ctl.ack(c, env.Ack, ctl.Router.CreateRoom(id, c, room))

	case "join_room":
		var p app.JoinRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad join_room payload")
			ctl.ack(c, env.Ack, app.JoinRoomAck{Error: app.MsgRoomNotFound})
			return
		}
		ctl.ack(c, env.Ack, ctl.Router.JoinRoom(id, c, p))

	case "leave_room":
		ctl.Router.LeaveRoom(id)

	case "person_left":
		var p app.PersonLeftPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.SessionID == "" {
			log.Error().Err(err).Str("module", "signal").Msg("bad person_left payload")
			return
		}
		ctl.Router.PersonLeft(id, p.SessionID)

	case "message":
		var payload map[string]any
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad message payload")
			return
		}
		ctl.Router.Relay(id, payload)

	default:
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown event")
	}
}

func (ctl *Controller) ack(c *wsConn, ack uint64, data any) {
	if ack == 0 {
		return
	}
	frame, err := core.EncodeAck(ack, data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode ack")
		return
	}
	if err := c.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("dropped ack")
	}
}
