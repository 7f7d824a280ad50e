package relay

import (
	"context"
	"sync"
)

// docWriter persists edits off the event path. Each room gets at most one
// writer goroutine; while a write is in flight newer edits for the same room
// replace each other, so the last queued text is always the last one written.
type docWriter struct {
	write func(roomID, code string)

	mu      sync.Mutex
	pending map[string]string
	running map[string]struct{}
	idle    chan struct{}
}

func newDocWriter(write func(roomID, code string)) *docWriter {
	return &docWriter{
		write:   write,
		pending: make(map[string]string),
		running: make(map[string]struct{}),
	}
}

func (w *docWriter) enqueue(roomID, code string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[roomID] = code
	if _, ok := w.running[roomID]; ok {
		return
	}
	if len(w.running) == 0 {
		w.idle = make(chan struct{})
	}
	w.running[roomID] = struct{}{}
	go w.drain(roomID)
}

func (w *docWriter) drain(roomID string) {
	for {
		w.mu.Lock()
		code, ok := w.pending[roomID]
		if !ok {
			delete(w.running, roomID)
			if len(w.running) == 0 {
				close(w.idle)
			}
			w.mu.Unlock()
			return
		}
		delete(w.pending, roomID)
		w.mu.Unlock()

		w.write(roomID, code)
	}
}

// flush blocks until every queued edit has been written or ctx is done.
func (w *docWriter) flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.running) == 0 {
		w.mu.Unlock()
		return nil
	}
	idle := w.idle
	w.mu.Unlock()

	select {
	case <-idle:
		// more edits may have been queued since; wait for those too
		return w.flush(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}
