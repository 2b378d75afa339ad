// Package scanner implements the per-source advertisement stores of the hub.
// A scanner owns exactly one record and one last-seen timestamp per address;
// the manager aggregates any number of scanners into a single view.
package scanner

import (
	"github.com/srg/blehub/internal/adv"
)

// Device is the identity of a discovered device as exposed to consumers.
type Device struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// DeviceAdvertisement pairs a device identity with its consolidated record.
type DeviceAdvertisement struct {
	Device        Device
	Advertisement *adv.Data
}

// Scanner is the read surface every scanner type exposes to the manager.
type Scanner interface {
	// Source identifies which physical or logical scanner produced an
	// observation, disambiguating multi-radio setups.
	Source() string

	// Connectable reports whether devices discovered by this scanner can
	// subsequently be connected to.
	Connectable() bool

	// DiscoveredDevices returns the identity of every currently tracked
	// (non-expired) address.
	DiscoveredDevices() []Device

	// DiscoveredDevicesAndAdvertisementData returns the identity and the
	// consolidated record for every currently tracked address.
	DiscoveredDevicesAndAdvertisementData() map[string]DeviceAdvertisement

	// Connector returns the transport connector answering whether another
	// outgoing connection can be made right now, or nil for scanners whose
	// transport never connects.
	Connector() Connector

	// Diagnostics returns an operator-facing summary. Not a stable API.
	Diagnostics() Diagnostics
}

// Connector reports whether the transport behind a scanner can take another
// outgoing connection right now. Implemented per transport.
type Connector interface {
	CanConnect() bool
}

// Diagnostics is the operator-facing summary of one scanner.
type Diagnostics struct {
	Type              string   `json:"type"`
	Source            string   `json:"source"`
	Connectable       bool     `json:"connectable"`
	DiscoveredDevices []Device `json:"discovered_devices"`
}
