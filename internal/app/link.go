package app

import (
	"net/url"
	"regexp"

	"github.com/dkeye/Meet/internal/domain"
)

var (
	linkPathRe = regexp.MustCompile(`^/room/([A-Za-z0-9_-]+)$`)
	bareIDRe   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ResolveLink extracts a room id from a shareable join link: either an
// absolute URL whose path is /room/<id>, or a bare id pasted on its own.
// A resolved id still has to be looked up in the directory; resolution
// failure and a directory miss are indistinguishable to the caller.
func ResolveLink(link string) (domain.RoomID, bool) {
	if u, err := url.Parse(link); err == nil && u.IsAbs() && u.Host != "" {
		m := linkPathRe.FindStringSubmatch(u.Path)
		if m == nil {
			return "", false
		}
		return domain.RoomID(m[1]), true
	}
	if !bareIDRe.MatchString(link) {
		return "", false
	}
	return domain.RoomID(link), true
}
