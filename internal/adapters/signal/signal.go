package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/origin"
	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
)

// Controller owns the websocket side of the signaling protocol: it accepts
// connections, assigns connection ids, and translates wire envelopes into
// router calls (and router results back into ack frames).
type Controller struct {
	Router    *app.Router
	Limiter   *EventRateLimiter
	readLimit int64
	upgrader  websocket.Upgrader
}

func NewController(rt *app.Router, cfg *config.Config) *Controller {
	return &Controller{
		Router:    rt,
		Limiter:   NewEventRateLimiter(cfg.EventRate, time.Minute),
		readLimit: cfg.ReadLimit,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				header := r.Header.Get("Origin")
				if header == "" {
					return true
				}
				return origin.Allowed(header, cfg.Origins)
			},
		},
	}
}

func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	id := domain.ConnID(uuid.NewString())
	conn := newWSConn(ws)
	ctl.Router.Connect(id, conn)
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}
