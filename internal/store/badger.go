package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Badger keeps cells in a badger database, one key per address.
type Badger struct {
	mu       sync.Mutex
	db       *badger.DB
	inMemory bool
	closed   bool
}

// OpenBadger opens (or creates) the database at path. An empty path opens an
// in-memory database.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	slog.Debug("store opened", slog.String("path", path), slog.Bool("inMemory", path == ""))
	return &Badger{db: db, inMemory: path == ""}, nil
}

// Key returns the database key for addr.
func Key(addr uint16) []byte {
	return []byte(fmt.Sprintf("eeprom/%d", addr))
}

// Load returns the cell at addr, or Erased if it was never written.
func (s *Badger) Load(addr uint16) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	b := Erased
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(addr))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) > 0 {
				b = val[0]
			}
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Erased, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read address %d: %w", addr, err)
	}
	return b, nil
}

// Store writes b at addr. Writing the value already stored is a no-op,
// as with EEPROM update semantics.
func (s *Badger) Store(addr uint16, b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(addr))
		switch {
		case err == nil:
			same := false
			if verr := item.Value(func(val []byte) error {
				same = len(val) == 1 && val[0] == b
				return nil
			}); verr != nil {
				return verr
			}
			if same {
				return nil
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(Key(addr), []byte{b})
	})
	if err != nil {
		return fmt.Errorf("write address %d: %w", addr, err)
	}
	return nil
}

// Close syncs and closes the database. Closing twice is allowed.
func (s *Badger) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if !s.inMemory {
		if err := s.db.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync store: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
