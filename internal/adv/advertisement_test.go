package adv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestMerge_FirstObservationBecomesRecord(t *testing.T) {
	obs := Observation{
		Address:          "AA:BB:CC:DD:EE:FF",
		RSSI:             -40,
		LocalName:        "Sensor1",
		ServiceUUIDs:     []string{"180a"},
		ServiceData:      map[string][]byte{"180a": {0x01}},
		ManufacturerData: map[uint16][]byte{76: {0x01, 0x02}},
		TxPower:          intPtr(4),
	}

	got := Merge(nil, obs)

	assert.Equal(t, "Sensor1", got.LocalName)
	assert.Equal(t, -40, got.RSSI)
	assert.Equal(t, []string{"180a"}, got.ServiceUUIDs)
	assert.Equal(t, map[string][]byte{"180a": {0x01}}, got.ServiceData)
	assert.Equal(t, map[uint16][]byte{76: {0x01, 0x02}}, got.ManufacturerData)
	require.NotNil(t, got.TxPower)
	assert.Equal(t, 4, *got.TxPower)
}

func TestMerge_NamePreference(t *testing.T) {
	tests := []struct {
		name     string
		prevName string
		newName  string
		want     string
	}{
		{
			name:     "longer known name survives a truncated repeat",
			prevName: "Foo",
			newName:  "F",
			want:     "Foo",
		},
		{
			name:     "longer new name replaces shorter known name",
			prevName: "Foo",
			newName:  "FooBar",
			want:     "FooBar",
		},
		{
			name:     "equal length takes the new name",
			prevName: "Foo",
			newName:  "Bar",
			want:     "Bar",
		},
		{
			name:     "empty name does not clobber known name",
			prevName: "Kitchen Sensor",
			newName:  "",
			want:     "Kitchen Sensor",
		},
		{
			name:     "name learned after anonymous observation",
			prevName: "",
			newName:  "Sensor1",
			want:     "Sensor1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := Merge(nil, Observation{Address: "AA", LocalName: tt.prevName})
			got := Merge(prev, Observation{Address: "AA", LocalName: tt.newName})
			assert.Equal(t, tt.want, got.LocalName)
		})
	}
}

func TestMerge_ServiceUUIDsAccumulate(t *testing.T) {
	prev := Merge(nil, Observation{Address: "AA", ServiceUUIDs: []string{"180a"}})
	got := Merge(prev, Observation{Address: "AA", ServiceUUIDs: []string{"180f"}})

	assert.Equal(t, []string{"180a", "180f"}, got.ServiceUUIDs, "union of all seen UUIDs, sorted")

	again := Merge(got, Observation{Address: "AA", ServiceUUIDs: []string{"180f", "180a"}})
	assert.Equal(t, []string{"180a", "180f"}, again.ServiceUUIDs, "repeats MUST NOT duplicate entries")
}

func TestMerge_KeyedDataOverlay(t *testing.T) {
	prev := Merge(nil, Observation{
		Address:          "AA",
		ServiceData:      map[string][]byte{"180a": {0x01}},
		ManufacturerData: map[uint16][]byte{76: {0xaa}},
	})
	got := Merge(prev, Observation{
		Address:          "AA",
		ServiceData:      map[string][]byte{"180a": {0x02}, "180f": {0x03}},
		ManufacturerData: map[uint16][]byte{6: {0xbb}},
	})

	assert.Equal(t, map[string][]byte{"180a": {0x02}, "180f": {0x03}}, got.ServiceData,
		"new value wins on conflict, old unique key retained")
	assert.Equal(t, map[uint16][]byte{76: {0xaa}, 6: {0xbb}}, got.ManufacturerData)
}

func TestMerge_LatestWinsScalars(t *testing.T) {
	prev := Merge(nil, Observation{Address: "AA", RSSI: -40, TxPower: intPtr(8)})

	got := Merge(prev, Observation{Address: "AA", RSSI: -70})
	assert.Equal(t, -70, got.RSSI, "rssi is the latest observed value, never averaged")
	assert.Nil(t, got.TxPower, "tx power reflects the latest observation even when absent")

	got = Merge(got, Observation{Address: "AA", RSSI: -55, TxPower: intPtr(-4)})
	assert.Equal(t, -55, got.RSSI)
	require.NotNil(t, got.TxPower)
	assert.Equal(t, -4, *got.TxPower)
}

func TestMerge_IdenticalObservationIsIdempotent(t *testing.T) {
	obs := Observation{
		Address:          "AA",
		RSSI:             -50,
		LocalName:        "Idem",
		ServiceUUIDs:     []string{"180a", "180f"},
		ServiceData:      map[string][]byte{"180a": {0x01}},
		ManufacturerData: map[uint16][]byte{76: {0x02}},
	}

	once := Merge(nil, obs)
	twice := Merge(once, obs)

	assert.Equal(t, once, twice)
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	// GOAL: Verify merged records never share containers with the previous
	// record or with caller-owned maps, so later mutations cannot leak.
	prevObs := Observation{
		Address:      "AA",
		ServiceUUIDs: []string{"180a"},
		ServiceData:  map[string][]byte{"180a": {0x01}},
	}
	prev := Merge(nil, prevObs)

	obs := Observation{
		Address:          "AA",
		ServiceData:      map[string][]byte{"180f": {0x03}},
		ManufacturerData: map[uint16][]byte{76: {0x04}},
	}
	got := Merge(prev, obs)

	obs.ServiceData["180d"] = []byte{0xff}
	obs.ManufacturerData[6] = []byte{0xff}
	prev.ServiceData["2902"] = []byte{0xff}

	assert.NotContains(t, got.ServiceData, "180d")
	assert.NotContains(t, got.ManufacturerData, uint16(6))
	assert.NotContains(t, got.ServiceData, "2902")
	assert.Contains(t, prev.ServiceData, "2902", "caller mutation stays caller-local")
}

func TestDataCopy(t *testing.T) {
	d := Merge(nil, Observation{
		Address:          "AA",
		LocalName:        "Orig",
		ServiceUUIDs:     []string{"180a"},
		ServiceData:      map[string][]byte{"180a": {0x01}},
		ManufacturerData: map[uint16][]byte{76: {0x02}},
		TxPower:          intPtr(0),
	})

	cp := d.Copy()
	cp.ServiceData["180f"] = []byte{0x03}
	cp.ManufacturerData[6] = []byte{0x04}
	cp.ServiceUUIDs[0] = "ffff"
	*cp.TxPower = 9

	assert.NotContains(t, d.ServiceData, "180f")
	assert.NotContains(t, d.ManufacturerData, uint16(6))
	assert.Equal(t, []string{"180a"}, d.ServiceUUIDs)
	assert.Equal(t, 0, *d.TxPower)
}

func TestNewServiceInfo_ResolvesName(t *testing.T) {
	seen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	named := Merge(nil, Observation{Address: "AA:BB", LocalName: "Sensor1", RSSI: -42})
	info := NewServiceInfo("AA:BB", named, "hci0", true, seen)
	assert.Equal(t, "Sensor1", info.Name)
	assert.Equal(t, "AA:BB", info.Address)
	assert.Equal(t, -42, info.RSSI)
	assert.Equal(t, "hci0", info.Source)
	assert.True(t, info.Connectable)
	assert.Equal(t, seen, info.Time)

	anonymous := Merge(nil, Observation{Address: "AA:BB"})
	info = NewServiceInfo("AA:BB", anonymous, "hci0", false, seen)
	assert.Equal(t, "AA:BB", info.Name, "name falls back to the address")
}
