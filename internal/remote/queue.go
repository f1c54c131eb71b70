package remote

import "sync"

// Queue is an in-memory Decoder. Frames pushed while one is held are queued
// behind it.
type Queue struct {
	mu      sync.Mutex
	frames  []Frame
	resumes int
}

// Push appends f.
func (q *Queue) Push(f Frame) {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()
}

// PushCode appends a non-repeat frame carrying code.
func (q *Queue) PushCode(code uint8) {
	q.Push(Frame{Command: code})
}

// Decode returns the head of the queue without removing it.
func (q *Queue) Decode() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return Frame{}, false
	}
	return q.frames[0], true
}

// Resume drops the head of the queue.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resumes++
	if len(q.frames) > 0 {
		q.frames = q.frames[1:]
	}
}

// Len returns the number of pending frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Resumes returns how many times Resume was called.
func (q *Queue) Resumes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.resumes
}
