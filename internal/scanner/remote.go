package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/blehub/internal/adv"
	"github.com/srg/blehub/internal/clock"
	"github.com/srg/blehub/internal/groutine"
	"github.com/srg/blehub/internal/telemetry"
)

const (
	// FallbackStaleSeconds is how long a broadcast-only device is remembered
	// after its last advertisement.
	FallbackStaleSeconds = 195 * time.Second

	// ConnectableFallbackStaleSeconds is the window for connectable devices.
	// Reconnecting is valuable, so connectable records are kept twice as long.
	ConnectableFallbackStaleSeconds = 2 * FallbackStaleSeconds

	// sweepInterval is how often the expiry sweep runs.
	sweepInterval = 30 * time.Second
)

// ServiceInfoCallback receives one normalized event per processed
// advertisement. It is the only notification path to downstream consumers.
type ServiceInfoCallback func(adv.ServiceInfo)

// RemoteScanner is a scanner fed by advertisement callbacks, typically from a
// remote proxy or a local radio adapter. It merges repeated payloads for the
// same address, timestamps every observation and expires addresses that have
// not been seen within its stale window.
type RemoteScanner struct {
	source      string
	connectable bool
	connector   Connector
	newInfo     ServiceInfoCallback
	clock       clock.Clock
	logger      *logrus.Logger
	expireAfter time.Duration

	mu         sync.RWMutex
	records    map[string]*adv.Data
	timestamps map[string]time.Time
}

// NewRemoteScanner creates a scanner identified by source. newInfo is invoked
// synchronously for every processed advertisement; connector answers whether
// the underlying transport can take another connection. A nil clk falls back
// to the wall clock.
func NewRemoteScanner(source string, newInfo ServiceInfoCallback, connector Connector, connectable bool, logger *logrus.Logger, clk clock.Clock) *RemoteScanner {
	if logger == nil {
		logger = logrus.New()
	}
	if clk == nil {
		clk = clock.Wall{}
	}

	expireAfter := FallbackStaleSeconds
	if connectable {
		expireAfter = ConnectableFallbackStaleSeconds
	}

	return &RemoteScanner{
		source:      source,
		connectable: connectable,
		connector:   connector,
		newInfo:     newInfo,
		clock:       clk,
		logger:      logger,
		expireAfter: expireAfter,
		records:     make(map[string]*adv.Data),
		timestamps:  make(map[string]time.Time),
	}
}

// Setup starts the periodic expiry sweep and returns a cancel function.
// Cancelling stops future sweeps; tracked records simply remain until the
// scanner itself is discarded.
func (s *RemoteScanner) Setup(ctx context.Context) context.CancelFunc {
	sweepCtx, cancel := context.WithCancel(ctx)

	groutine.Go(sweepCtx, "expire-"+s.source, func(ctx context.Context) {
		s.logger.WithField("task", groutine.GetName(ctx)).Debug("Expiry sweep started")

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ExpireDevices()
			}
		}
	})

	return cancel
}

// OnAdvertisement merges a raw observation into the store and forwards the
// consolidated event to the registered callback. Invoked by the transport
// layer whenever new raw data is seen for any address.
func (s *RemoteScanner) OnAdvertisement(obs adv.Observation) {
	now := s.clock.Now()

	s.mu.Lock()
	merged := adv.Merge(s.records[obs.Address], obs)
	s.records[obs.Address] = merged
	s.timestamps[obs.Address] = now
	s.mu.Unlock()

	telemetry.AdvertisementsProcessed.WithLabelValues(s.source).Inc()

	if s.newInfo != nil {
		s.newInfo(adv.NewServiceInfo(obs.Address, merged, s.source, s.connectable, now))
	}
}

// ExpireDevices runs one expiry sweep, removing every address not seen
// within the stale window. The periodic schedule calls this; it is exported
// so embedders driving their own scheduler can trigger a sweep directly.
// Record and timestamp are removed together; there are no tombstones.
func (s *RemoteScanner) ExpireDevices() {
	now := s.clock.Now()

	s.mu.Lock()
	var expired []string
	for address, seen := range s.timestamps {
		if now.Sub(seen) > s.expireAfter {
			expired = append(expired, address)
		}
	}
	for _, address := range expired {
		delete(s.records, address)
		delete(s.timestamps, address)
	}
	s.mu.Unlock()

	if len(expired) > 0 {
		telemetry.DevicesExpired.WithLabelValues(s.source).Add(float64(len(expired)))
		s.logger.WithFields(logrus.Fields{
			"source":  s.source,
			"expired": len(expired),
		}).Debug("Expired stale devices")
	}
}

// Source implements Scanner.
func (s *RemoteScanner) Source() string {
	return s.source
}

// Connectable implements Scanner.
func (s *RemoteScanner) Connectable() bool {
	return s.connectable
}

// Connector returns the transport connector for this scanner, or nil for
// broadcast-only scanners.
func (s *RemoteScanner) Connector() Connector {
	return s.connector
}

// ExpireAfter returns the stale window configured at construction.
func (s *RemoteScanner) ExpireAfter() time.Duration {
	return s.expireAfter
}

// DiscoveredDevices implements Scanner.
func (s *RemoteScanner) DiscoveredDevices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]Device, 0, len(s.records))
	for address, data := range s.records {
		devices = append(devices, Device{Address: address, Name: resolveName(address, data)})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Address < devices[j].Address })
	return devices
}

// DiscoveredDevicesAndAdvertisementData implements Scanner. The returned
// records are copies; mutating them does not affect the store.
func (s *RemoteScanner) DiscoveredDevicesAndAdvertisementData() map[string]DeviceAdvertisement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]DeviceAdvertisement, len(s.records))
	for address, data := range s.records {
		result[address] = DeviceAdvertisement{
			Device:        Device{Address: address, Name: resolveName(address, data)},
			Advertisement: data.Copy(),
		}
	}
	return result
}

// Diagnostics implements Scanner.
func (s *RemoteScanner) Diagnostics() Diagnostics {
	return Diagnostics{
		Type:              "RemoteScanner",
		Source:            s.source,
		Connectable:       s.connectable,
		DiscoveredDevices: s.DiscoveredDevices(),
	}
}

func resolveName(address string, data *adv.Data) string {
	if data.LocalName != "" {
		return data.LocalName
	}
	return address
}
