//go:build !linux

package gpio

import "github.com/sweeney/range-monitor/internal/logic"

// RealBoard is not available on non-Linux platforms.
type RealBoard struct{}

// NewRealBoard returns ErrUnsupported on non-Linux platforms.
func NewRealBoard(pins Pins, h Handlers) (*RealBoard, error) {
	return nil, ErrUnsupported
}

// Trigger is not implemented on non-Linux platforms.
func (b *RealBoard) Trigger() error {
	return ErrUnsupported
}

// SetLED is not implemented on non-Linux platforms.
func (b *RealBoard) SetLED(led logic.LED, on bool) error {
	return ErrUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *RealBoard) Close() error {
	return nil
}
