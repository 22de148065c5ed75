package console

import "strings"

const (
	RouteDispatch = "/dispatch"
	RouteOfficer  = "/officer"
	RouteEMSFD    = "/ems-fd"
)

// ActiveUnitID returns the id of the unit the route operates as: the
// active officer under /officer, the active deputy under /ems-fd, and
// nothing elsewhere.
func ActiveUnitID(route string, units *UnitStore) (string, bool) {
	if units == nil {
		return "", false
	}
	switch {
	case strings.HasPrefix(route, RouteOfficer):
		if u, ok := units.ActiveOfficer(); ok && u.ID != "" {
			return u.ID, true
		}
	case strings.HasPrefix(route, RouteEMSFD):
		if u, ok := units.ActiveDeputy(); ok && u.ID != "" {
			return u.ID, true
		}
	}
	return "", false
}

// IsDispatchRoute reports whether route is the dispatcher board.
func IsDispatchRoute(route string) bool {
	return route == RouteDispatch
}
