package goble

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for adapter-level failures.
var (
	ErrBluetoothOff  = errors.New("bluetooth is turned off")
	ErrScanInterrupt = errors.New("scan interrupted")
	ErrNoAdapter     = errors.New("no bluetooth adapter available")
)

// NormalizeError maps known go-ble error strings to structured sentinel
// errors. It ensures consistent handling even if the upstream library changes
// messages slightly. Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "can't init hci"):
		return fmt.Errorf("%w: %v", ErrNoAdapter, err)
	case containsIgnoreCase(msg, "no devices available"):
		return fmt.Errorf("%w: %v", ErrNoAdapter, err)
	case containsIgnoreCase(msg, "scan interrupted"):
		return fmt.Errorf("%w: %v", ErrScanInterrupt, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
