package slot

import (
	"context"
	"sync"
)

// MemoryHub keeps slots in process memory. Slots handed out by the same hub
// behave like contexts sharing one store.
type MemoryHub struct {
	mu       sync.Mutex
	docs     map[string][]byte
	watchers map[string]map[*memoryWatcher]struct{}
}

type memoryWatcher struct {
	writer string
	ch     chan Notice
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		docs:     make(map[string][]byte),
		watchers: make(map[string]map[*memoryWatcher]struct{}),
	}
}

// Slot returns the named slot as seen by the context identified by writer.
func (h *MemoryHub) Slot(name, writer string) *MemorySlot {
	return &MemorySlot{hub: h, name: name, writer: writer}
}

// Set writes a document as an anonymous external writer.
func (h *MemoryHub) Set(name string, payload []byte) {
	h.write(name, "", payload)
}

// Get returns a copy of the stored document.
func (h *MemoryHub) Get(name string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	doc, ok := h.docs[name]
	if !ok {
		return nil
	}
	return append([]byte(nil), doc...)
}

func (h *MemoryHub) write(name, writer string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.docs[name] = append([]byte(nil), payload...)
	for w := range h.watchers[name] {
		if w.writer == writer && writer != "" {
			continue
		}
		offer(w.ch, Notice{Writer: writer})
	}
}

func (h *MemoryHub) watch(ctx context.Context, name, writer string) <-chan Notice {
	w := &memoryWatcher{writer: writer, ch: make(chan Notice, 1)}

	h.mu.Lock()
	if h.watchers[name] == nil {
		h.watchers[name] = make(map[*memoryWatcher]struct{})
	}
	h.watchers[name][w] = struct{}{}
	h.mu.Unlock()

	out := make(chan Notice)
	go func() {
		defer close(out)
		defer func() {
			h.mu.Lock()
			delete(h.watchers[name], w)
			h.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-w.ch:
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// MemorySlot is a Slot backed by a MemoryHub.
type MemorySlot struct {
	hub    *MemoryHub
	name   string
	writer string

	mu      sync.Mutex
	failErr error
}

func (s *MemorySlot) Name() string { return s.name }

func (s *MemorySlot) Read(_ context.Context) ([]byte, error) {
	return s.hub.Get(s.name), nil
}

func (s *MemorySlot) Write(_ context.Context, payload []byte) error {
	s.mu.Lock()
	err := s.failErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.hub.write(s.name, s.writer, payload)
	return nil
}

func (s *MemorySlot) Watch(ctx context.Context) (<-chan Notice, error) {
	return s.hub.watch(ctx, s.name, s.writer), nil
}

func (s *MemorySlot) Ping(context.Context) error { return nil }

// FailWrites makes every following Write return err until called with nil.
func (s *MemorySlot) FailWrites(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}
