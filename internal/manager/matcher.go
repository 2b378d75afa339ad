package manager

import "github.com/srg/blehub/internal/adv"

// Matcher selects which service info events a subscriber wants. Every set
// field must match; the zero Matcher matches all events.
type Matcher struct {
	Address         string
	ServiceUUID     string
	ServiceDataUUID string
	ManufacturerID  *uint16
	Connectable     *bool
}

// Matches reports whether the event satisfies every constraint of m.
func (m Matcher) Matches(info adv.ServiceInfo) bool {
	if m.Address != "" && m.Address != info.Address {
		return false
	}
	if m.Connectable != nil && *m.Connectable != info.Connectable {
		return false
	}
	if m.ServiceUUID != "" && !containsUUID(info.ServiceUUIDs, m.ServiceUUID) {
		return false
	}
	if m.ServiceDataUUID != "" {
		if _, ok := info.ServiceData[m.ServiceDataUUID]; !ok {
			return false
		}
	}
	if m.ManufacturerID != nil {
		if _, ok := info.ManufacturerData[*m.ManufacturerID]; !ok {
			return false
		}
	}
	return true
}

func containsUUID(uuids []string, uuid string) bool {
	for _, u := range uuids {
		if u == uuid {
			return true
		}
	}
	return false
}
