package display

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Terminal emulates the character display in a terminal: a framed 16x2 panel
// with an optional status line underneath.
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
	lines  Lines
	status string
}

// OpenTerminal takes over the controlling terminal.
func OpenTerminal() (*Terminal, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("new screen: %w", err)
	}
	return NewTerminal(s)
}

// NewTerminal initialises s and draws an empty panel.
func NewTerminal(s tcell.Screen) (*Terminal, error) {
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	s.SetStyle(tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset))
	s.Clear()
	t := &Terminal{screen: s, lines: Lines{Pad(""), Pad("")}}
	t.draw()
	return t, nil
}

// Present redraws the panel.
func (t *Terminal) Present(l Lines) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lines == l {
		return nil
	}
	t.lines = l
	t.draw()
	return nil
}

// SetStatus replaces the line drawn under the panel.
func (t *Terminal) SetStatus(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == s {
		return
	}
	t.status = s
	t.draw()
}

// Keys delivers key events to handle until it returns false or the screen
// is closed. It blocks, so callers run it on its own goroutine.
func (t *Terminal) Keys(handle func(*tcell.EventKey) bool) {
	for {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventKey:
			if !handle(ev) {
				return
			}
		case *tcell.EventResize:
			t.mu.Lock()
			t.screen.Sync()
			t.mu.Unlock()
		}
	}
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	t.screen.Fini()
	return nil
}

// Panel origin and frame style.
const (
	panelX = 1
	panelY = 1
)

var (
	frameStyle = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	glassStyle = tcell.StyleDefault.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorWhite)
	textStyle  = tcell.StyleDefault.Foreground(tcell.ColorLightSteelBlue)
)

func (t *Terminal) draw() {
	s := t.screen
	x0, y0 := panelX-1, panelY-1
	x1, y1 := panelX+Columns, panelY+Rows

	s.SetContent(x0, y0, tcell.RuneULCorner, nil, frameStyle)
	s.SetContent(x1, y0, tcell.RuneURCorner, nil, frameStyle)
	s.SetContent(x0, y1, tcell.RuneLLCorner, nil, frameStyle)
	s.SetContent(x1, y1, tcell.RuneLRCorner, nil, frameStyle)
	for x := x0 + 1; x < x1; x++ {
		s.SetContent(x, y0, tcell.RuneHLine, nil, frameStyle)
		s.SetContent(x, y1, tcell.RuneHLine, nil, frameStyle)
	}
	for y := y0 + 1; y < y1; y++ {
		s.SetContent(x0, y, tcell.RuneVLine, nil, frameStyle)
		s.SetContent(x1, y, tcell.RuneVLine, nil, frameStyle)
	}

	for row, text := range t.lines {
		for col, r := range Pad(text) {
			s.SetContent(panelX+col, panelY+row, r, nil, glassStyle)
		}
	}

	w, _ := s.Size()
	sy := y1 + 1
	for x := 0; x < w; x++ {
		s.SetContent(x, sy, ' ', nil, textStyle)
	}
	for i, r := range t.status {
		s.SetContent(i, sy, r, nil, textStyle)
	}
	s.Show()
}
