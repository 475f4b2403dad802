package app

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// DefaultTTL bounds how long a registry or directory entry may live without
// being touched. It is a safety net against leaks (e.g. a lost disconnect
// event), not an eviction policy.
const DefaultTTL = 12 * time.Hour

// Registry maps live connection ids to the session identity that owns them.
// Entries are created on register, deleted on disconnect, and auto-expire
// after the TTL horizon if never cleaned up.
type Registry struct {
	cache *ttlcache.Cache[domain.ConnID, domain.Person]
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := ttlcache.New(
		ttlcache.WithTTL[domain.ConnID, domain.Person](ttl),
	)
	go c.Start()
	return &Registry{cache: c}
}

func (r *Registry) Put(id domain.ConnID, p domain.Person) {
	r.cache.Set(id, p, ttlcache.DefaultTTL)
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Str("sid", string(p.SessionID)).Msg("bound connection")
}

func (r *Registry) Get(id domain.ConnID) (domain.Person, bool) {
	item := r.cache.Get(id)
	if item == nil {
		return domain.Person{}, false
	}
	return item.Value(), true
}

func (r *Registry) Delete(id domain.ConnID) {
	r.cache.Delete(id)
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

// Stop terminates the background expiry sweep.
func (r *Registry) Stop() {
	r.cache.Stop()
}
