package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/Meet/internal/core"
)

type nullConn struct{}

func (nullConn) TrySend(core.Frame) error { return nil }
func (nullConn) Close()                   {}

func TestGroupsJoinLeave(t *testing.T) {
	g := NewGroups()

	g.Join("room-1", "conn-a", nullConn{})
	g.Join("room-1", "conn-b", nullConn{})
	g.Join("room-2", "conn-a", nullConn{})

	assert.Equal(t, 2, g.Count("room-1"))
	assert.Equal(t, 1, g.Count("room-2"))
	assert.ElementsMatch(t, []string{"room-1", "room-2"}, g.Of("conn-a"))

	g.Leave("room-1", "conn-a")
	assert.Equal(t, 1, g.Count("room-1"))
	assert.ElementsMatch(t, []string{"room-2"}, g.Of("conn-a"))

	// Leaving a group twice, or one never joined, is harmless.
	g.Leave("room-1", "conn-a")
	g.Leave("no-such-group", "conn-a")
}

func TestGroupsLeaveAll(t *testing.T) {
	g := NewGroups()

	g.Join("conn-a", "conn-a", nullConn{})
	g.Join("session-a", "conn-a", nullConn{})
	g.Join("room-1", "conn-a", nullConn{})

	vacated := g.LeaveAll("conn-a")
	assert.ElementsMatch(t, []string{"conn-a", "session-a", "room-1"}, vacated)
	assert.Empty(t, g.Of("conn-a"))
	assert.Equal(t, 0, g.Count("room-1"))
}

func TestGroupsMembersExcept(t *testing.T) {
	g := NewGroups()

	g.Join("room-1", "conn-a", nullConn{})
	g.Join("room-1", "conn-b", nullConn{})
	g.Join("room-1", "conn-c", nullConn{})

	assert.Len(t, g.Members("room-1"), 3)
	assert.Len(t, g.MembersExcept("room-1", "conn-a"), 2)
	assert.Empty(t, g.Members("no-such-group"))
}
