package ui

import (
	"io"
	"sync"
)

// AudioBuffer is a bounded FIFO for raw pcm16 bytes. Writers never block:
// when the cap is exceeded the oldest bytes are dropped so playback stays
// close to live. Read blocks until data arrives or the buffer is closed.
type AudioBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	cap    int
	closed bool
}

func NewAudioBuffer(fixedCap int) *AudioBuffer {
	ab := &AudioBuffer{
		buf: make([]byte, 0, fixedCap),
		cap: fixedCap,
	}
	ab.cond = sync.NewCond(&ab.mu)
	return ab
}

func (ab *AudioBuffer) Write(data []byte) (dropped int) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	if ab.closed {
		return len(data)
	}
	if len(ab.buf)+len(data) > ab.cap {
		drop := len(ab.buf) + len(data) - ab.cap
		if drop > len(ab.buf) {
			drop = len(ab.buf)
		}
		ab.buf = ab.buf[drop:]
		dropped = drop
	}
	ab.buf = append(ab.buf, data...)
	ab.cond.Signal()
	return dropped
}

func (ab *AudioBuffer) Read(p []byte) (n int, err error) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	for len(ab.buf) == 0 && !ab.closed {
		ab.cond.Wait()
	}
	if len(ab.buf) == 0 {
		return 0, io.EOF
	}
	n = copy(p, ab.buf)
	ab.buf = ab.buf[n:]
	return n, nil
}

// Reset discards buffered audio without closing the buffer.
func (ab *AudioBuffer) Reset() {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.buf = ab.buf[:0]
}

func (ab *AudioBuffer) Len() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return len(ab.buf)
}

func (ab *AudioBuffer) Close() error {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.closed = true
	ab.cond.Broadcast()
	return nil
}
