// Package slot stores the serialized cart under a name shared by every
// execution context of the same deployment. Writers are identified so that
// a context can ignore notices about its own writes.
package slot

import (
	"context"
	"errors"
)

// ErrNotAnnounced is wrapped by Write when the document was stored but other
// contexts could not be notified.
var ErrNotAnnounced = errors.New("slot written but not announced")

// Slot is one named, durable document.
type Slot interface {
	// Name returns the slot name.
	Name() string
	// Read returns the stored document, or nil when nothing was written yet.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the stored document. An error wrapping ErrNotAnnounced
	// means the document is stored.
	Write(ctx context.Context, payload []byte) error
	// Watch delivers a notice whenever another context writes the slot. The
	// channel is closed when ctx ends.
	Watch(ctx context.Context) (<-chan Notice, error)
	// Ping checks the backing store.
	Ping(ctx context.Context) error
}

// Notice announces a write by another context.
type Notice struct {
	Writer string
}

// offer delivers n without blocking. A notice already waiting in ch covers
// the new one, since receivers reload the whole document.
func offer(ch chan Notice, n Notice) {
	select {
	case ch <- n:
	default:
	}
}
