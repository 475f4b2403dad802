package app

import (
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Groups tracks which connections belong to which named group. A group name
// is a connection id, a session id, or a room id; membership is the unit of
// fan-out. Empty groups are pruned from the index.
type Groups struct {
	mu      sync.RWMutex
	members map[string]map[domain.ConnID]core.SignalConnection
	byConn  map[domain.ConnID]map[string]struct{}
}

func NewGroups() *Groups {
	return &Groups{
		members: make(map[string]map[domain.ConnID]core.SignalConnection),
		byConn:  make(map[domain.ConnID]map[string]struct{}),
	}
}

func (g *Groups) Join(name string, id domain.ConnID, conn core.SignalConnection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[name]; !ok {
		g.members[name] = make(map[domain.ConnID]core.SignalConnection)
	}
	g.members[name][id] = conn
	if _, ok := g.byConn[id]; !ok {
		g.byConn[id] = make(map[string]struct{})
	}
	g.byConn[id][name] = struct{}{}
}

func (g *Groups) Leave(name string, id domain.ConnID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(name, id)
}

func (g *Groups) leaveLocked(name string, id domain.ConnID) {
	if conns, ok := g.members[name]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(g.members, name)
		}
	}
	if names, ok := g.byConn[id]; ok {
		delete(names, name)
		if len(names) == 0 {
			delete(g.byConn, id)
		}
	}
}

// LeaveAll removes the connection from every group and returns the names of
// the groups it vacated.
func (g *Groups) LeaveAll(id domain.ConnID) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.byConn[id]))
	for name := range g.byConn[id] {
		names = append(names, name)
	}
	for _, name := range names {
		g.leaveLocked(name, id)
	}
	return names
}

// Of returns a snapshot of the group names the connection belongs to.
func (g *Groups) Of(id domain.ConnID) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.byConn[id]))
	for name := range g.byConn[id] {
		out = append(out, name)
	}
	return out
}

// Count is a point-in-time member count; callers that act on it accept the
// race with concurrent joins and leaves.
func (g *Groups) Count(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members[name])
}

// Members returns a snapshot of the group's connections.
func (g *Groups) Members(name string) []core.SignalConnection {
	return g.MembersExcept(name, "")
}

// MembersExcept returns the group's connections minus the excluded one.
func (g *Groups) MembersExcept(name string, except domain.ConnID) []core.SignalConnection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	conns := g.members[name]
	out := make([]core.SignalConnection, 0, len(conns))
	for id, c := range conns {
		if id == except {
			continue
		}
		out = append(out, c)
	}
	return out
}
