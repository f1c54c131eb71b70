// Package store provides the durable byte cells that hold persisted settings.
// Cells behave like EEPROM: every address reads Erased until written.
package store

import "errors"

// Erased is the value of a cell that was never written.
const Erased byte = 0xFF

// AddrUnit holds the display unit.
const AddrUnit uint16 = 0

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// ByteStore is a small addressable byte memory.
type ByteStore interface {
	Load(addr uint16) (byte, error)
	Store(addr uint16, b byte) error
	Close() error
}
