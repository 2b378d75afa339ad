// Package goble adapts the go-ble HCI stack to the advertisement
// aggregation layer: it owns the radio device, converts raw advertisements
// into normalized observations and answers connectability questions.
package goble

import (
	"context"
	"errors"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/blehub/internal/scanner"
)

// Transport owns a local BLE radio and feeds everything it hears into a
// RemoteScanner. One Transport maps to one adapter.
type Transport struct {
	dev    ble.Device
	logger *logrus.Logger
}

// New initializes the platform radio via DeviceFactory.
func New(logger *logrus.Logger) (*Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}

	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}

	return &Transport{dev: dev, logger: logger}, nil
}

// CanConnect implements scanner.Connector. The local adapter can always
// attempt a connection while the radio is up; per-source budgets are
// enforced by the slot allocator, not here.
func (t *Transport) CanConnect() bool {
	return t.dev != nil
}

// Run scans until ctx is cancelled, forwarding every advertisement to
// target. Duplicate reports are requested since repeated fragments are
// exactly what the aggregation layer merges. A context cancellation is a
// normal shutdown, not an error.
func (t *Transport) Run(ctx context.Context, target *scanner.RemoteScanner) error {
	t.logger.WithField("target", target.Source()).Debug("Starting BLE scan")

	err := t.dev.Scan(ctx, true, func(a ble.Advertisement) {
		target.OnAdvertisement(ToObservation(a))
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return NormalizeError(err)
	}
	return nil
}

// Stop releases the underlying radio.
func (t *Transport) Stop() error {
	if t.dev == nil {
		return nil
	}
	return NormalizeError(t.dev.Stop())
}
