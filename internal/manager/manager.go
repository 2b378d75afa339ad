// Package manager aggregates any number of scanners into one device view and
// dispatches consolidated advertisement events to subscribers.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/blehub/internal/adv"
	"github.com/srg/blehub/internal/clock"
	"github.com/srg/blehub/internal/groutine"
	"github.com/srg/blehub/internal/scanner"
	"github.com/srg/blehub/internal/telemetry"
)

// checkInterval is how often presence of tracked addresses is re-evaluated.
const checkInterval = 30 * time.Second

// Callback receives matched service info events.
type Callback func(adv.ServiceInfo)

// UnavailableCallback is fired once when an address stops being present.
type UnavailableCallback func(address string)

type scannerEntry struct {
	scanner scanner.Scanner
	slots   *SlotAllocator
}

type subscription struct {
	matcher  Matcher
	callback Callback
}

type unavailableTracker struct {
	id          uint64
	connectable bool
	callback    UnavailableCallback
}

// SlotDiagnostics summarizes one source's connection slot budget.
type SlotDiagnostics struct {
	Total int `json:"total"`
	Free  int `json:"free"`
}

// Diagnostics is the aggregated operator-facing summary of the manager.
type Diagnostics struct {
	Scanners    []scanner.Diagnostics      `json:"scanners"`
	Subscribers int                        `json:"subscribers"`
	Slots       map[string]SlotDiagnostics `json:"slots"`
}

// Manager owns the scanner registry. It is constructed explicitly and passed
// to every component that needs it; there is no package-level singleton.
type Manager struct {
	logger *logrus.Logger
	clock  clock.Clock

	scanners *hashmap.Map[string, *scannerEntry]

	mu                 sync.RWMutex
	subscriptions      *orderedmap.OrderedMap[uint64, *subscription]
	nextID             uint64
	allHistory         map[string]adv.ServiceInfo
	connectableHistory map[string]adv.ServiceInfo
	unavailable        map[string][]*unavailableTracker

	cancel context.CancelFunc
}

// New creates a Manager. A nil clk falls back to the wall clock.
func New(logger *logrus.Logger, clk clock.Clock) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if clk == nil {
		clk = clock.Wall{}
	}
	return &Manager{
		logger:             logger,
		clock:              clk,
		scanners:           hashmap.New[string, *scannerEntry](),
		subscriptions:      orderedmap.New[uint64, *subscription](),
		allHistory:         make(map[string]adv.ServiceInfo),
		connectableHistory: make(map[string]adv.ServiceInfo),
		unavailable:        make(map[string][]*unavailableTracker),
	}
}

// Setup starts the periodic presence check. Call Teardown to stop it.
func (m *Manager) Setup(ctx context.Context) {
	checkCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	groutine.Go(checkCtx, "manager-presence", func(ctx context.Context) {
		m.logger.WithField("task", groutine.GetName(ctx)).Debug("Presence check started")

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkUnavailable()
			}
		}
	})
}

// Teardown stops the periodic presence check. Registered scanners and
// subscriptions are left untouched.
func (m *Manager) Teardown() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// AdvertisementCallback returns the sink to hand to a scanner constructor so
// its events flow through this manager.
func (m *Manager) AdvertisementCallback() scanner.ServiceInfoCallback {
	return m.OnServiceInfo
}

// RegisterScanner adds a scanner under its source ID with the given
// connection slot budget and returns an unregister function. Registering a
// second scanner with the same source is an error.
func (m *Manager) RegisterScanner(sc scanner.Scanner, connectionSlots int) (func(), error) {
	source := sc.Source()
	entry := &scannerEntry{scanner: sc, slots: NewSlotAllocator(connectionSlots)}
	if !m.scanners.Insert(source, entry) {
		return nil, fmt.Errorf("scanner %q already registered", source)
	}

	m.logger.WithFields(logrus.Fields{
		"source":      source,
		"connectable": sc.Connectable(),
		"slots":       connectionSlots,
	}).Info("Registered scanner")

	return func() {
		m.scanners.Del(source)
		m.logger.WithField("source", source).Info("Unregistered scanner")
	}, nil
}

// ScannerBySource returns the registered scanner for a source ID.
func (m *Manager) ScannerBySource(source string) (scanner.Scanner, bool) {
	entry, ok := m.scanners.Get(source)
	if !ok {
		return nil, false
	}
	return entry.scanner, true
}

// ScannerCount returns the number of registered scanners, optionally counting
// only connectable ones.
func (m *Manager) ScannerCount(connectableOnly bool) int {
	count := 0
	m.scanners.Range(func(_ string, entry *scannerEntry) bool {
		if !connectableOnly || entry.scanner.Connectable() {
			count++
		}
		return true
	})
	return count
}

// RegisterCallback subscribes cb to events satisfying the matcher and returns
// an unsubscribe function. Subscribers are dispatched in registration order.
func (m *Manager) RegisterCallback(matcher Matcher, cb Callback) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subscriptions.Set(id, &subscription{matcher: matcher, callback: cb})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		m.subscriptions.Delete(id)
		m.mu.Unlock()
	}
}

// OnServiceInfo records the event and dispatches it to matching subscribers.
// This is the inbound path for every scanner registered with the manager.
func (m *Manager) OnServiceInfo(info adv.ServiceInfo) {
	m.mu.Lock()
	m.allHistory[info.Address] = info
	if info.Connectable {
		m.connectableHistory[info.Address] = info
	}
	matched := make([]Callback, 0, m.subscriptions.Len())
	for pair := m.subscriptions.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.matcher.Matches(info) {
			matched = append(matched, pair.Value.callback)
		}
	}
	m.mu.Unlock()

	for _, cb := range matched {
		cb(info)
		telemetry.CallbacksDispatched.Inc()
	}
}

// AddressPresent reports whether any registered scanner currently tracks the
// address. With connectableOnly set, only connectable scanners count.
func (m *Manager) AddressPresent(address string, connectableOnly bool) bool {
	present := false
	m.scanners.Range(func(_ string, entry *scannerEntry) bool {
		if connectableOnly && !entry.scanner.Connectable() {
			return true
		}
		if _, ok := entry.scanner.DiscoveredDevicesAndAdvertisementData()[address]; ok {
			present = true
			return false
		}
		return true
	})
	return present
}

// LastServiceInfo returns the most recent event seen for the address.
func (m *Manager) LastServiceInfo(address string, connectableOnly bool) (adv.ServiceInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if connectableOnly {
		info, ok := m.connectableHistory[address]
		return info, ok
	}
	info, ok := m.allHistory[address]
	return info, ok
}

// DiscoveredServiceInfo returns the latest event for every address that is
// still present in at least one registered scanner.
func (m *Manager) DiscoveredServiceInfo(connectableOnly bool) []adv.ServiceInfo {
	m.mu.RLock()
	history := m.allHistory
	if connectableOnly {
		history = m.connectableHistory
	}
	snapshot := make([]adv.ServiceInfo, 0, len(history))
	for _, info := range history {
		snapshot = append(snapshot, info)
	}
	m.mu.RUnlock()

	result := snapshot[:0]
	for _, info := range snapshot {
		if m.AddressPresent(info.Address, connectableOnly) {
			result = append(result, info)
		}
	}
	return result
}

// TrackUnavailable fires cb once when the address stops being present in any
// registered scanner. The returned function cancels the tracker.
func (m *Manager) TrackUnavailable(address string, cb UnavailableCallback, connectableOnly bool) func() {
	m.mu.Lock()
	m.nextID++
	tracker := &unavailableTracker{id: m.nextID, connectable: connectableOnly, callback: cb}
	m.unavailable[address] = append(m.unavailable[address], tracker)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		trackers := m.unavailable[address]
		for i, t := range trackers {
			if t.id == tracker.id {
				m.unavailable[address] = append(trackers[:i], trackers[i+1:]...)
				break
			}
		}
		if len(m.unavailable[address]) == 0 {
			delete(m.unavailable, address)
		}
	}
}

// checkUnavailable fires and removes trackers whose address dropped out of
// every relevant scanner, and prunes history for fully absent addresses.
func (m *Manager) checkUnavailable() {
	m.mu.Lock()
	tracked := make(map[string][]*unavailableTracker, len(m.unavailable))
	for address, trackers := range m.unavailable {
		tracked[address] = append([]*unavailableTracker(nil), trackers...)
	}
	m.mu.Unlock()

	type firing struct {
		address  string
		callback UnavailableCallback
	}
	var fired []firing

	for address, trackers := range tracked {
		for _, tracker := range trackers {
			if m.AddressPresent(address, tracker.connectable) {
				continue
			}
			fired = append(fired, firing{address: address, callback: tracker.callback})

			m.mu.Lock()
			current := m.unavailable[address]
			for i, t := range current {
				if t.id == tracker.id {
					m.unavailable[address] = append(current[:i], current[i+1:]...)
					break
				}
			}
			if len(m.unavailable[address]) == 0 {
				delete(m.unavailable, address)
			}
			m.mu.Unlock()
		}
	}

	m.pruneHistory()

	for _, f := range fired {
		m.logger.WithField("address", f.address).Debug("Device became unavailable")
		f.callback(f.address)
	}
}

// pruneHistory drops history entries for addresses absent from every scanner.
func (m *Manager) pruneHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for address := range m.allHistory {
		if !m.addressPresentLocked(address, false) {
			delete(m.allHistory, address)
		}
	}
	for address := range m.connectableHistory {
		if !m.addressPresentLocked(address, true) {
			delete(m.connectableHistory, address)
		}
	}
}

// addressPresentLocked mirrors AddressPresent; the scanner registry has its
// own synchronization, so holding m.mu here is safe.
func (m *Manager) addressPresentLocked(address string, connectableOnly bool) bool {
	present := false
	m.scanners.Range(func(_ string, entry *scannerEntry) bool {
		if connectableOnly && !entry.scanner.Connectable() {
			return true
		}
		if _, ok := entry.scanner.DiscoveredDevicesAndAdvertisementData()[address]; ok {
			present = true
			return false
		}
		return true
	})
	return present
}

// AllocateSlot reserves a connection slot on the source for the address.
func (m *Manager) AllocateSlot(source, address string) bool {
	entry, ok := m.scanners.Get(source)
	if !ok {
		telemetry.SlotAllocations.WithLabelValues(source, "unknown_source").Inc()
		return false
	}
	// The transport has the final say: a slot within budget is still useless
	// while the radio cannot take another connection.
	if conn := entry.scanner.Connector(); conn != nil && !conn.CanConnect() {
		telemetry.SlotAllocations.WithLabelValues(source, "transport_busy").Inc()
		m.logger.WithFields(logrus.Fields{
			"source":  source,
			"address": address,
		}).Debug("Transport cannot take another connection")
		return false
	}
	if !entry.slots.Allocate(address) {
		telemetry.SlotAllocations.WithLabelValues(source, "rejected").Inc()
		m.logger.WithFields(logrus.Fields{
			"source":  source,
			"address": address,
		}).Debug("Connection slot budget exhausted")
		return false
	}
	telemetry.SlotAllocations.WithLabelValues(source, "allocated").Inc()
	return true
}

// ReleaseSlot frees the connection slot held by the address on the source.
func (m *Manager) ReleaseSlot(source, address string) {
	if entry, ok := m.scanners.Get(source); ok {
		entry.slots.Release(address)
	}
}

// Diagnostics returns the aggregated summary of all registered scanners.
func (m *Manager) Diagnostics() Diagnostics {
	diag := Diagnostics{
		Slots: make(map[string]SlotDiagnostics),
	}
	m.scanners.Range(func(source string, entry *scannerEntry) bool {
		diag.Scanners = append(diag.Scanners, entry.scanner.Diagnostics())
		diag.Slots[source] = SlotDiagnostics{
			Total: entry.slots.Total(),
			Free:  entry.slots.Free(),
		}
		return true
	})
	sort.Slice(diag.Scanners, func(i, j int) bool { return diag.Scanners[i].Source < diag.Scanners[j].Source })

	m.mu.RLock()
	diag.Subscribers = m.subscriptions.Len()
	m.mu.RUnlock()

	return diag
}
