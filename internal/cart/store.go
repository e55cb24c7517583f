package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/lendcart/internal/slot"
	pkgerrors "github.com/angelmondragon/lendcart/pkg/errors"
	"github.com/angelmondragon/lendcart/pkg/logger"
	"github.com/angelmondragon/lendcart/pkg/metrics"
	"github.com/angelmondragon/lendcart/pkg/reservation"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

const (
	OpAdd                = "add"
	OpRemove             = "remove"
	OpRemoveItems        = "remove_items"
	OpUpdateQuantity     = "update_quantity"
	OpUpdateMessage      = "update_message"
	OpUpdateRentalPeriod = "update_rental_period"
	OpMarkRentalError    = "mark_rental_error"
	OpClear              = "clear"
)

// Store is the in-memory cart of one execution context, mirrored to a slot.
type Store struct {
	slot     slot.Slot
	enricher *Enricher
	codec    codec
	loc      *time.Location
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	items   []Entry
	version uint64

	writeMu     sync.Mutex
	lastWritten uint64

	runMu    sync.Mutex
	inflight int
	idle     chan struct{}
	closed   bool

	baseCtx context.Context
	cancel  context.CancelFunc
}

// Option customizes a Store.
type Option func(*Store)

// WithEnricher enables enrichment. Without one the store keeps whatever
// backend data the slot carries.
func WithEnricher(e *Enricher) Option {
	return func(s *Store) { s.enricher = e }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logg = l
		}
	}
}

func WithMetrics(m *metrics.CartMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(next func() string) Option {
	return func(s *Store) {
		if next != nil {
			s.newID = next
		}
	}
}

// WithLocation sets the cart timezone used for "today" and persisted dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewStore loads the cart held by sl, clears stale periods and starts an
// enrichment run. A slot that cannot be read fails construction; a slot
// holding an unreadable document yields an empty cart.
func NewStore(ctx context.Context, sl slot.Slot, opts ...Option) (*Store, error) {
	if sl == nil {
		return nil, errors.New("cart slot required")
	}
	s := &Store{
		slot:  sl,
		loc:   time.Local,
		logg:  logger.Nop(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.codec = codec{loc: s.loc, now: s.now}
	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if err := s.load(ctx); err != nil {
		s.cancel()
		return nil, err
	}
	return s, nil
}

func (s *Store) Name() string { return s.slot.Name() }

// Location is the cart timezone.
func (s *Store) Location() *time.Location { return s.loc }

func (s *Store) today() timeperiod.Day {
	return timeperiod.DayIn(s.now(), s.loc)
}

// AddItemInput describes a new entry. Pickup and Return are optional.
type AddItemInput struct {
	ProductID string
	Quantity  int
	Message   string
	Pickup    *timeperiod.Day
	Return    *timeperiod.Day
}

// AddItem appends a new entry. An inverted period is rejected right away;
// the rules that need backend data apply once enrichment delivers it. On a
// persistence failure the entry is still returned together with the error.
func (s *Store) AddItem(ctx context.Context, in AddItemInput) (Entry, error) {
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return Entry{}, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	if in.Quantity < 1 {
		return Entry{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var added Entry
	err := s.update(ctx, OpAdd, func() (bool, error) {
		entry := Entry{
			ID:        s.uniqueID(),
			ProductID: productID,
			Quantity:  in.Quantity,
			Message:   in.Message,
		}
		if in.Pickup != nil {
			outcome := reservation.Validate(reservation.Candidate{Pickup: in.Pickup, Return: in.Return})
			entry.RentalPeriod = clonePeriod(outcome.Period)
			entry.RentalError = outcome.Reason
		}
		s.items = append(s.items, entry)
		if s.indexOf(entry.ID) < 0 {
			return false, pkgerrors.Newf(pkgerrors.CodeInternal, "cart item %s missing after insert", entry.ID)
		}
		added = entry.clone()
		return true, nil
	})
	if added.ID == "" {
		return Entry{}, err
	}
	return added, err
}

// RemoveItem drops the entry. It reports whether id is absent afterwards,
// which holds for ids that were never present too.
func (s *Store) RemoveItem(ctx context.Context, id string) (bool, error) {
	err := s.update(ctx, OpRemove, func() (bool, error) {
		idx := s.indexOf(id)
		if idx < 0 {
			return false, nil
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		return true, nil
	})
	return s.indexOfLocked(id) < 0, err
}

// RemoveItems drops every listed entry with a single write.
func (s *Store) RemoveItems(ctx context.Context, ids ...string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return s.update(ctx, OpRemoveItems, func() (bool, error) {
		kept := s.items[:0]
		for _, e := range s.items {
			if _, ok := drop[e.ID]; !ok {
				kept = append(kept, e)
			}
		}
		removed := len(kept) != len(s.items)
		s.items = kept
		return removed, nil
	})
}

// UpdateQuantity changes the quantity, clears the period and marks the entry
// with ReasonQuantityChanged. Availability for the new quantity follows from
// the enrichment run the change triggers.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) (Entry, error) {
	if quantity < 1 {
		return Entry{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return s.updateEntry(ctx, OpUpdateQuantity, id, func(e *Entry) bool {
		if e.Quantity == quantity {
			return false
		}
		e.Quantity = quantity
		e.RentalPeriod = reservation.Period{}
		e.RentalError = reservation.ReasonQuantityChanged
		return true
	})
}

func (s *Store) UpdateMessage(ctx context.Context, id, message string) (Entry, error) {
	return s.updateEntry(ctx, OpUpdateMessage, id, func(e *Entry) bool {
		if e.Message == message {
			return false
		}
		e.Message = message
		return true
	})
}

// UpdateRentalPeriod validates the pair against the entry's cached
// availability and stores the outcome. A rejection is not an error: the
// returned entry carries an empty period and the reason.
func (s *Store) UpdateRentalPeriod(ctx context.Context, id string, pickup, ret *timeperiod.Day) (Entry, error) {
	return s.updateEntry(ctx, OpUpdateRentalPeriod, id, func(e *Entry) bool {
		outcome := reservation.Validate(e.candidate(pickup, ret))
		next := clonePeriod(outcome.Period)
		if sameDay(next.Pickup, e.RentalPeriod.Pickup) &&
			sameDay(next.Return, e.RentalPeriod.Return) &&
			outcome.Reason == e.RentalError {
			return false
		}
		e.RentalPeriod = next
		e.RentalError = outcome.Reason
		return true
	})
}

// MarkRentalError sets reason on the listed entries and clears their
// periods, the same way a validator rejection does. It is used for outcomes
// decided outside the validator, such as a failed booking.
func (s *Store) MarkRentalError(ctx context.Context, reason reservation.Reason, ids ...string) error {
	mark := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		mark[id] = struct{}{}
	}
	return s.update(ctx, OpMarkRentalError, func() (bool, error) {
		changed := false
		for i := range s.items {
			e := &s.items[i]
			if _, ok := mark[e.ID]; !ok {
				continue
			}
			if e.RentalError == reason && e.RentalPeriod.IsEmpty() {
				continue
			}
			e.RentalPeriod = reservation.Period{}
			e.RentalError = reason
			changed = true
		}
		return changed, nil
	})
}

// Clear empties the cart. The slot keeps an empty document.
func (s *Store) Clear(ctx context.Context) error {
	return s.update(ctx, OpClear, func() (bool, error) {
		s.items = []Entry{}
		return true, nil
	})
}

// Items returns a copy of all entries in insertion order.
func (s *Store) Items() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntries(s.items)
}

func (s *Store) ItemByID(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return Entry{}, false
	}
	return s.items[idx].clone(), true
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Version: s.version, Items: cloneEntries(s.items)}
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Settle blocks until no enrichment run is in flight.
func (s *Store) Settle(ctx context.Context) error {
	for {
		s.runMu.Lock()
		if s.inflight == 0 {
			s.runMu.Unlock()
			return nil
		}
		idle := s.idle
		s.runMu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops enrichment and waits for running passes to finish.
// Mutations keep working afterwards but no longer trigger enrichment.
func (s *Store) Close(ctx context.Context) error {
	s.runMu.Lock()
	s.closed = true
	s.runMu.Unlock()
	s.cancel()
	return s.Settle(ctx)
}

// update runs fn under the store lock. When fn reports a change the version
// advances and the new snapshot is persisted and enriched.
func (s *Store) update(ctx context.Context, op string, fn func() (bool, error)) error {
	s.mu.Lock()
	changed, err := fn()
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	s.version++
	version, snapshot := s.version, cloneEntries(s.items)
	s.mu.Unlock()

	s.metrics.IncMutation(op)
	s.metrics.SetItems(len(snapshot))
	err = s.persist(ctx, version, snapshot)
	s.startEnrichment()
	return err
}

func (s *Store) updateEntry(ctx context.Context, op, id string, fn func(*Entry) bool) (Entry, error) {
	var out Entry
	err := s.update(ctx, op, func() (bool, error) {
		idx := s.indexOf(id)
		if idx < 0 {
			return false, pkgerrors.Newf(pkgerrors.CodeNotFound, "cart item %s not found", id)
		}
		changed := fn(&s.items[idx])
		out = s.items[idx].clone()
		return changed, nil
	})
	if out.ID == "" {
		return Entry{}, err
	}
	return out, err
}

// persist writes snapshot unless a newer version already reached the slot.
func (s *Store) persist(ctx context.Context, version uint64, snapshot []Entry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if version <= s.lastWritten {
		return nil
	}
	payload, err := s.codec.encode(snapshot)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.slot.Write(ctx, payload); err != nil {
		if errors.Is(err, slot.ErrNotAnnounced) {
			s.logg.Warn(s.logg.WithFields(s.logg.WithSlot(ctx, s.slot.Name()), map[string]any{"error": err.Error()}), "cart.announce_failed")
			s.lastWritten = version
			return nil
		}
		s.metrics.IncPersistFailure()
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
		s.logg.Error(s.logg.WithSlot(ctx, s.slot.Name()), "cart.persist_failed", wrapped)
		return wrapped
	}
	s.lastWritten = version
	return nil
}

// load replaces the collection with the slot contents.
func (s *Store) load(ctx context.Context) error {
	ctx = s.logg.WithSlot(ctx, s.slot.Name())
	data, err := s.slot.Read(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart slot")
	}
	entries, err := s.codec.decode(data)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart.slot_discarded")
	}
	changed := normalizeLoaded(entries, s.today())

	s.mu.Lock()
	s.items = entries
	s.version++
	version, snapshot := s.version, cloneEntries(s.items)
	s.mu.Unlock()

	s.metrics.SetItems(len(snapshot))
	if changed {
		if err := s.persist(ctx, version, snapshot); err != nil {
			s.logg.Warn(ctx, "cart.load_write_failed")
		}
	}
	s.startEnrichment()
	return nil
}

func (s *Store) uniqueID() string {
	for {
		id := s.newID()
		if id != "" && s.indexOf(id) < 0 {
			return id
		}
	}
}

// indexOf requires s.mu.
func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) indexOfLocked(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id)
}

func cloneEntries(items []Entry) []Entry {
	out := make([]Entry, len(items))
	for i, e := range items {
		out[i] = e.clone()
	}
	return out
}
