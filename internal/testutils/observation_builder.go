// Package testutils provides fluent builders for test fixtures.
package testutils

import "github.com/srg/blehub/internal/adv"

// ObservationBuilder builds raw advertisement observations for tests.
// It provides a fluent API so tests only spell out the fields they care about.
type ObservationBuilder struct {
	obs adv.Observation
}

// NewObservation creates a builder for the given address with rssi -50.
func NewObservation(address string) *ObservationBuilder {
	return &ObservationBuilder{
		obs: adv.Observation{
			Address:          address,
			RSSI:             -50,
			ServiceData:      make(map[string][]byte),
			ManufacturerData: make(map[uint16][]byte),
		},
	}
}

// WithName sets the local name.
func (b *ObservationBuilder) WithName(name string) *ObservationBuilder {
	b.obs.LocalName = name
	return b
}

// WithRSSI sets the signal strength.
func (b *ObservationBuilder) WithRSSI(rssi int) *ObservationBuilder {
	b.obs.RSSI = rssi
	return b
}

// WithServices adds advertised service UUIDs.
func (b *ObservationBuilder) WithServices(uuids ...string) *ObservationBuilder {
	b.obs.ServiceUUIDs = append(b.obs.ServiceUUIDs, uuids...)
	return b
}

// WithServiceData adds service-specific data for the given service UUID.
func (b *ObservationBuilder) WithServiceData(uuid string, data []byte) *ObservationBuilder {
	b.obs.ServiceData[uuid] = data
	return b
}

// WithManufacturerData adds manufacturer-specific data for a company ID.
func (b *ObservationBuilder) WithManufacturerData(companyID uint16, data []byte) *ObservationBuilder {
	b.obs.ManufacturerData[companyID] = data
	return b
}

// WithTxPower sets the transmission power level.
func (b *ObservationBuilder) WithTxPower(power int) *ObservationBuilder {
	b.obs.TxPower = &power
	return b
}

// Build returns the observation.
func (b *ObservationBuilder) Build() adv.Observation {
	return b.obs
}
