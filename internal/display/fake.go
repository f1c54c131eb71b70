package display

import "sync"

// Fake records every presented screen.
type Fake struct {
	mu     sync.Mutex
	frames []Lines
	closed bool

	// PresentErr, if set, is returned by Present after recording.
	PresentErr error
}

func (f *Fake) Present(l Lines) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, l)
	return f.PresentErr
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Frames returns a copy of everything presented so far.
func (f *Fake) Frames() []Lines {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Lines(nil), f.frames...)
}

// Last returns the most recent screen.
func (f *Fake) Last() (Lines, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return Lines{}, false
	}
	return f.frames[len(f.frames)-1], true
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
