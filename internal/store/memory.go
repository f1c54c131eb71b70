package store

import "sync"

// Memory is a volatile ByteStore. Writes counts every Store call, which
// tests use to check persistence effects.
type Memory struct {
	mu     sync.Mutex
	cells  map[uint16]byte
	writes int
	closed bool

	// WriteErr, if set, is returned by Store without storing.
	WriteErr error
}

// NewMemory returns an erased store.
func NewMemory() *Memory {
	return &Memory{cells: make(map[uint16]byte)}
}

func (m *Memory) Load(addr uint16) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if b, ok := m.cells[addr]; ok {
		return b, nil
	}
	return Erased, nil
}

func (m *Memory) Store(addr uint16, b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.writes++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.cells[addr] = b
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Writes returns the number of Store calls, including failed ones.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
