// Package adv holds the consolidated advertisement model and the merge rules
// that combine repeated, possibly fragmented advertisement payloads for the
// same address into a single up-to-date record.
package adv

import "sort"

// Observation is one raw advertisement exactly as delivered by a transport
// (a local radio or a remote scanner proxy). The transport is responsible for
// validating and pre-parsing the payload; the merger never rejects input.
type Observation struct {
	Address          string
	RSSI             int
	LocalName        string
	ServiceUUIDs     []string
	ServiceData      map[string][]byte
	ManufacturerData map[uint16][]byte
	TxPower          *int
}

// Data is the consolidated view of everything seen so far for one address.
// Instances are immutable once built: Merge always returns a fresh Data with
// fresh containers, so a previously emitted record is never mutated behind a
// consumer's back.
type Data struct {
	LocalName        string
	ServiceUUIDs     []string
	ServiceData      map[string][]byte
	ManufacturerData map[uint16][]byte
	RSSI             int
	TxPower          *int
}

// Merge combines a new observation with the previously consolidated record
// for the same address. prev may be nil for a first observation.
//
// Split advertisement and scan-response payloads arrive as separate fragments,
// so accumulated fields merge the same way BlueZ merges properties:
//   - local name: a non-empty new name wins unless the known name is longer
//     (truncated repeats must not shorten a complete name); an empty new name
//     never clears a known name
//   - service UUIDs: set union, sorted
//   - service data / manufacturer data: overlay, new keys win on conflict
//   - rssi / tx power: latest observation always wins
func Merge(prev *Data, obs Observation) *Data {
	name := obs.LocalName
	if prev != nil {
		if name == "" || len(prev.LocalName) > len(name) {
			name = prev.LocalName
		}
	}

	uuids := make(map[string]struct{}, len(obs.ServiceUUIDs))
	for _, u := range obs.ServiceUUIDs {
		uuids[u] = struct{}{}
	}
	serviceData := make(map[string][]byte, len(obs.ServiceData))
	manufData := make(map[uint16][]byte, len(obs.ManufacturerData))

	if prev != nil {
		for _, u := range prev.ServiceUUIDs {
			uuids[u] = struct{}{}
		}
		for u, d := range prev.ServiceData {
			serviceData[u] = d
		}
		for id, d := range prev.ManufacturerData {
			manufData[id] = d
		}
	}
	for u, d := range obs.ServiceData {
		serviceData[u] = d
	}
	for id, d := range obs.ManufacturerData {
		manufData[id] = d
	}

	merged := make([]string, 0, len(uuids))
	for u := range uuids {
		merged = append(merged, u)
	}
	sort.Strings(merged)

	var txPower *int
	if obs.TxPower != nil {
		tp := *obs.TxPower
		txPower = &tp
	}

	return &Data{
		LocalName:        name,
		ServiceUUIDs:     merged,
		ServiceData:      serviceData,
		ManufacturerData: manufData,
		RSSI:             obs.RSSI,
		TxPower:          txPower,
	}
}

// Copy returns a deep-enough copy of d: fresh containers, shared payload
// bytes. Payload slices are treated as read-only by every consumer.
func (d *Data) Copy() *Data {
	uuids := make([]string, len(d.ServiceUUIDs))
	copy(uuids, d.ServiceUUIDs)

	serviceData := make(map[string][]byte, len(d.ServiceData))
	for u, b := range d.ServiceData {
		serviceData[u] = b
	}
	manufData := make(map[uint16][]byte, len(d.ManufacturerData))
	for id, b := range d.ManufacturerData {
		manufData[id] = b
	}

	var txPower *int
	if d.TxPower != nil {
		tp := *d.TxPower
		txPower = &tp
	}

	return &Data{
		LocalName:        d.LocalName,
		ServiceUUIDs:     uuids,
		ServiceData:      serviceData,
		ManufacturerData: manufData,
		RSSI:             d.RSSI,
		TxPower:          txPower,
	}
}
