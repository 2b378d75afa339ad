package main

import (
	"errors"

	"github.com/srg/blehub/internal/transport/goble"
)

// FormatUserError converts low-level transport errors into actionable
// messages for the terminal. Unknown errors pass through unchanged.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, goble.ErrBluetoothOff):
		return "Bluetooth is turned off. Turn it on and try again."
	case errors.Is(err, goble.ErrNoAdapter):
		return "No Bluetooth adapter found. Check that an adapter is present and accessible."
	default:
		return err.Error()
	}
}
