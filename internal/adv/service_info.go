package adv

import "time"

// ServiceInfo is the normalized event forwarded downstream for every
// processed advertisement. It carries copies of the consolidated record, so
// holding on to one is safe across later merges for the same address.
type ServiceInfo struct {
	Name             string            `json:"name"`
	Address          string            `json:"address"`
	RSSI             int               `json:"rssi"`
	ManufacturerData map[uint16][]byte `json:"manufacturer_data"`
	ServiceData      map[string][]byte `json:"service_data"`
	ServiceUUIDs     []string          `json:"service_uuids"`
	TxPower          *int              `json:"tx_power,omitempty"`
	Source           string            `json:"source"`
	Connectable      bool              `json:"connectable"`
	Time             time.Time         `json:"time"`
}

// NewServiceInfo builds a ServiceInfo from a consolidated record, resolving
// the display name to the address when no local name has been seen.
func NewServiceInfo(address string, data *Data, source string, connectable bool, seen time.Time) ServiceInfo {
	snapshot := data.Copy()
	name := snapshot.LocalName
	if name == "" {
		name = address
	}
	return ServiceInfo{
		Name:             name,
		Address:          address,
		RSSI:             snapshot.RSSI,
		ManufacturerData: snapshot.ManufacturerData,
		ServiceData:      snapshot.ServiceData,
		ServiceUUIDs:     snapshot.ServiceUUIDs,
		TxPower:          snapshot.TxPower,
		Source:           source,
		Connectable:      connectable,
		Time:             seen,
	}
}
