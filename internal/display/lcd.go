package display

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers/hd44780i2c"
)

// DefaultLCDAddr is the usual PCF8574 backpack address.
const DefaultLCDAddr = 0x27

// LCD drives an HD44780 behind a PCF8574 I2C expander. Only lines that
// differ from what is already on the glass are rewritten.
type LCD struct {
	mu     sync.Mutex
	bus    *txBus
	closer io.Closer
	dev    hd44780i2c.Device
	shown  Lines
	known  bool
}

// txBus keeps the first transfer error; the driver itself discards them.
type txBus struct {
	i2c.Bus
	err error
}

func (b *txBus) Tx(addr uint16, w, r []byte) error {
	err := b.Bus.Tx(addr, w, r)
	if err != nil && b.err == nil {
		b.err = err
	}
	return err
}

func (b *txBus) take() error {
	err := b.err
	b.err = nil
	return err
}

// OpenLCD initialises the host drivers, opens the named I2C bus ("" for the
// first one) and configures the display.
func OpenLCD(busName string, addr uint8) (*LCD, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	l, err := NewLCD(bus, addr)
	if err != nil {
		bus.Close()
		return nil, err
	}
	l.closer = bus
	slog.Info("lcd ready", slog.String("bus", bus.String()), slog.Int("addr", int(addr)))
	return l, nil
}

// NewLCD configures a display on an already open bus. Configuration takes
// about a second because of the controller's power-on delays.
func NewLCD(bus i2c.Bus, addr uint8) (*LCD, error) {
	tb := &txBus{Bus: bus}
	l := &LCD{bus: tb, dev: hd44780i2c.New(tb, addr)}
	if err := l.dev.Configure(hd44780i2c.Config{Width: Columns, Height: Rows}); err != nil {
		return nil, fmt.Errorf("configure lcd: %w", err)
	}
	if err := tb.take(); err != nil {
		return nil, fmt.Errorf("configure lcd: %w", err)
	}
	return l, nil
}

// Present writes the lines that changed since the last successful call.
func (l *LCD) Present(lines Lines) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for row, text := range lines {
		if l.known && l.shown[row] == text {
			continue
		}
		l.dev.SetCursor(0, uint8(row))
		l.dev.Print([]byte(text))
	}
	if err := l.bus.take(); err != nil {
		l.known = false
		return fmt.Errorf("write lcd: %w", err)
	}
	l.shown, l.known = lines, true
	return nil
}

// Close blanks the display, turns the backlight off and releases the bus.
func (l *LCD) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.dev.ClearDisplay()
	l.dev.BacklightOn(false)
	var errs []error
	if err := l.bus.take(); err != nil {
		errs = append(errs, fmt.Errorf("clear lcd: %w", err))
	}
	if l.closer != nil {
		if err := l.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close i2c bus: %w", err))
		}
	}
	l.known = false
	return errors.Join(errs...)
}
