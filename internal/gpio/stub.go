//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButtons is not available on non-Linux platforms.
type RealButtons struct{}

// NewRealButtons returns an error on non-Linux platforms.
func NewRealButtons(chipName string, pins [ButtonCount]int, activeLow bool) (*RealButtons, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (b *RealButtons) Read() ([ButtonCount]bool, error) {
	return [ButtonCount]bool{}, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *RealButtons) Close() error {
	return nil
}

// RealRelay is not available on non-Linux platforms.
type RealRelay struct{}

// NewRealRelay returns an error on non-Linux platforms.
func NewRealRelay(chipName string, pin int, activeLow bool) (*RealRelay, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (r *RealRelay) Set(on bool) error {
	return errUnsupported
}

// Get is not implemented on non-Linux platforms.
func (r *RealRelay) Get() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealRelay) Close() error {
	return nil
}
