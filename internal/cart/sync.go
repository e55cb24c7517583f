package cart

import (
	"context"
)

// Reload replaces the in-memory cart with the slot contents and runs the
// load procedure again.
func (s *Store) Reload(ctx context.Context) error {
	s.metrics.IncSyncReload()
	return s.load(ctx)
}

// Watch reloads the cart whenever another context writes the slot. It
// returns when ctx ends or the slot stops delivering notices.
func (s *Store) Watch(ctx context.Context) error {
	notices, err := s.slot.Watch(ctx)
	if err != nil {
		return err
	}
	ctx = s.logg.WithSlot(ctx, s.slot.Name())
	s.logg.Info(ctx, "cart.watch_started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notices:
			if !ok {
				s.logg.Info(ctx, "cart.watch_stopped")
				return nil
			}
			nctx := s.logg.WithField(ctx, "writer", n.Writer)
			if err := s.Reload(nctx); err != nil {
				s.logg.Error(nctx, "cart.reload_failed", err)
				continue
			}
			s.logg.Debug(nctx, "cart.reloaded")
		}
	}
}
