package domain

import (
	"encoding/json"
	"strconv"
)

// RoomID is a server-generated, URL-safe identifier of a room.
type RoomID string

// SessionID is the client-chosen stable identity of a participant.
// It survives transport reconnects.
type SessionID string

// ConnID identifies one live transport connection.
type ConnID string

// RoomOpts are creator-supplied room options.
type RoomOpts struct {
	// MaxPeople caps the member count at join time. Zero means unlimited.
	MaxPeople int `json:"maxPeople,omitempty"`
}

// UnmarshalJSON tolerates maxPeople arriving as either a number or a
// numeric string; anything unparsable leaves the room unlimited.
func (o *RoomOpts) UnmarshalJSON(b []byte) error {
	var raw struct {
		MaxPeople any `json:"maxPeople"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.MaxPeople.(type) {
	case float64:
		o.MaxPeople = int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			o.MaxPeople = n
		}
	}
	return nil
}

// Room is a directory entry. ID is assigned by the server on creation and
// never changes; the rest is supplied by the creator.
type Room struct {
	ID        RoomID    `json:"id"`
	CreatedBy SessionID `json:"created_by,omitempty"`
	Name      string    `json:"name,omitempty"`
	Opts      *RoomOpts `json:"opts,omitempty"`
}

// Person is the registry value bound to a connection.
type Person struct {
	SessionID SessionID `json:"sessionId"`
}
