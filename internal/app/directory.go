package app

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// Directory holds room metadata keyed by room id. Rooms are removed when
// their last member leaves or after the TTL horizon idle, whichever comes
// first. The namespace is independent from the connection registry even
// though both share the same store type.
type Directory struct {
	cache *ttlcache.Cache[domain.RoomID, domain.Room]
}

func NewDirectory(ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := ttlcache.New(
		ttlcache.WithTTL[domain.RoomID, domain.Room](ttl),
	)
	go c.Start()
	return &Directory{cache: c}
}

// Create assigns a fresh id to the room and stores it. Ids are 21-char
// URL-safe nanoids; the collision space makes an explicit uniqueness check
// unnecessary.
func (d *Directory) Create(room domain.Room) (domain.Room, error) {
	id, err := gonanoid.New()
	if err != nil {
		return domain.Room{}, err
	}
	room.ID = domain.RoomID(id)
	d.cache.Set(room.ID, room, ttlcache.DefaultTTL)
	log.Debug().Str("module", "app.directory").Str("room", id).Str("owner", string(room.CreatedBy)).Msg("created room")
	return room, nil
}

func (d *Directory) Get(id domain.RoomID) (domain.Room, bool) {
	item := d.cache.Get(id)
	if item == nil {
		return domain.Room{}, false
	}
	return item.Value(), true
}

// Delete removes a room. Deleting an absent id is a no-op, which makes
// racing empty-room pruning idempotent.
func (d *Directory) Delete(id domain.RoomID) {
	d.cache.Delete(id)
}

func (d *Directory) Len() int {
	return d.cache.Len()
}

// Stop terminates the background expiry sweep.
func (d *Directory) Stop() {
	d.cache.Stop()
}
