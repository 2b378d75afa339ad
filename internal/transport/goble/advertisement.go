package goble

import (
	"encoding/binary"

	"github.com/go-ble/ble"

	"github.com/srg/blehub/internal/adv"
)

// txPowerNotPresent is the value go-ble reports when the advertisement
// carries no TX Power Level AD structure.
const txPowerNotPresent = 127

// ToObservation converts a raw ble.Advertisement into the normalized
// observation consumed by the aggregation layer.
//
// Manufacturer data follows the BLE convention: the first 2 bytes are the
// little-endian company identifier, the remainder is the vendor payload.
// Payloads shorter than 2 bytes are dropped rather than misattributed.
func ToObservation(a ble.Advertisement) adv.Observation {
	obs := adv.Observation{
		Address:   a.Addr().String(),
		RSSI:      a.RSSI(),
		LocalName: a.LocalName(),
	}

	if services := a.Services(); len(services) > 0 {
		obs.ServiceUUIDs = make([]string, len(services))
		for i, svc := range services {
			obs.ServiceUUIDs[i] = svc.String()
		}
	}

	if serviceData := a.ServiceData(); len(serviceData) > 0 {
		obs.ServiceData = make(map[string][]byte, len(serviceData))
		for _, sd := range serviceData {
			data := make([]byte, len(sd.Data))
			copy(data, sd.Data)
			obs.ServiceData[sd.UUID.String()] = data
		}
	}

	if raw := a.ManufacturerData(); len(raw) >= 2 {
		companyID := binary.LittleEndian.Uint16(raw[0:2])
		payload := make([]byte, len(raw)-2)
		copy(payload, raw[2:])
		obs.ManufacturerData = map[uint16][]byte{companyID: payload}
	}

	if level := a.TxPowerLevel(); level != txPowerNotPresent {
		obs.TxPower = &level
	}

	return obs
}
