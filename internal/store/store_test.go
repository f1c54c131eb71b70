package store

import (
	"errors"
	"testing"
)

func openTestBadger(t *testing.T, path string) *Badger {
	t.Helper()
	s, err := OpenBadger(path)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	return s
}

func TestBadgerErasedByDefault(t *testing.T) {
	s := openTestBadger(t, "")
	defer s.Close()

	b, err := s.Load(AddrUnit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != Erased {
		t.Errorf("expected erased cell 0x%02x, got 0x%02x", Erased, b)
	}
}

func TestBadgerRoundTrip(t *testing.T) {
	s := openTestBadger(t, "")
	defer s.Close()

	for _, v := range []byte{1, 0, 1} {
		if err := s.Store(AddrUnit, v); err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
		got, err := s.Load(AddrUnit)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != v {
			t.Errorf("expected %d, got %d", v, got)
		}
	}

	other, _ := s.Load(5)
	if other != Erased {
		t.Errorf("unwritten address should stay erased, got %d", other)
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s := openTestBadger(t, dir)
	if err := s.Store(AddrUnit, 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s = openTestBadger(t, dir)
	defer s.Close()
	got, err := s.Load(AddrUnit)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 1 {
		t.Errorf("expected 1 after reopen, got %d", got)
	}
}

func TestBadgerClosed(t *testing.T) {
	s := openTestBadger(t, "")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if _, err := s.Load(0); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from read, got %v", err)
	}
	if err := s.Store(0, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from write, got %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := string(Key(0)); got != "eeprom/0" {
		t.Errorf("expected eeprom/0, got %s", got)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	if b, _ := m.Load(AddrUnit); b != Erased {
		t.Errorf("expected erased, got %d", b)
	}
	m.Store(AddrUnit, 1)
	if b, _ := m.Load(AddrUnit); b != 1 {
		t.Errorf("expected 1, got %d", b)
	}

	m.WriteErr = errors.New("worn out")
	if err := m.Store(AddrUnit, 0); err == nil {
		t.Error("expected write error")
	}
	if b, _ := m.Load(AddrUnit); b != 1 {
		t.Errorf("failed write should not change the cell, got %d", b)
	}
	if m.Writes() != 2 {
		t.Errorf("expected 2 writes, got %d", m.Writes())
	}

	m.Close()
	if _, err := m.Load(0); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
