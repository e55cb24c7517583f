package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lendcart/internal/availability"
	"github.com/angelmondragon/lendcart/internal/slot"
	pkgerrors "github.com/angelmondragon/lendcart/pkg/errors"
	"github.com/angelmondragon/lendcart/pkg/lending"
	"github.com/angelmondragon/lendcart/pkg/reservation"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

var fixedNow = time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

func day(m time.Month, d int) *timeperiod.Day {
	v := timeperiod.Date(2025, m, d)
	return &v
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[string]*lending.Product
	err      error
	calls    int
}

func (f *fakeProducts) GetProductByID(_ context.Context, id string) (*lending.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}

type fakeAvailability struct {
	mu      sync.Mutex
	periods map[string][]timeperiod.Period
	err     error
	// gates block Resolve for a product/quantity key until closed.
	gates map[string]chan struct{}
}

func availKey(productID string, qty int) string {
	return fmt.Sprintf("%s/%d", productID, qty)
}

func (f *fakeAvailability) Resolve(ctx context.Context, productID string, qty int) (availability.Result, error) {
	f.mu.Lock()
	gate := f.gates[availKey(productID, qty)]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return availability.Result{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return availability.Result{}, f.err
	}
	periods := f.periods[availKey(productID, qty)]
	return availability.Result{Periods: periods, Disabled: timeperiod.ExpandAll(periods)}, nil
}

type harness struct {
	hub      *slot.MemoryHub
	products *fakeProducts
	avail    *fakeAvailability
}

func newHarness() *harness {
	return &harness{
		hub: slot.NewMemoryHub(),
		products: &fakeProducts{products: map[string]*lending.Product{
			"42": {Name: "Camera", MaxLendingDays: 7, LocationRoomNr: "B-104"},
		}},
		avail: &fakeAvailability{
			periods: map[string][]timeperiod.Period{
				availKey("42", 1): {{Start: *day(time.June, 10), End: *day(time.June, 10)}},
			},
			gates: map[string]chan struct{}{},
		},
	}
}

func (h *harness) store(t *testing.T, writer string, opts ...Option) *Store {
	t.Helper()
	enricher, err := NewEnricher(h.products, h.avail, 4, time.Second)
	require.NoError(t, err)
	base := []Option{
		WithEnricher(enricher),
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
	}
	s, err := NewStore(context.Background(), h.hub.Slot("cart", writer), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func settle(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Settle(ctx))
}

func readDocument(t *testing.T, hub *slot.MemoryHub) document {
	t.Helper()
	var doc document
	require.NoError(t, json.Unmarshal(hub.Get("cart"), &doc))
	return doc
}

func TestAddItemIsImmediatelyRetrievable(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")

	entry, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1, Message: "for the workshop"})
	require.NoError(t, err)

	got, ok := s.ItemByID(entry.ID)
	require.True(t, ok)
	assert.Equal(t, "42", got.ProductID)
	assert.Equal(t, 1, s.ItemCount())

	doc := readDocument(t, h.hub)
	assert.Equal(t, schemaVersion, doc.SchemaVersion)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, entry.ID, doc.Items[0].CartItemID)
}

func TestAddItemRejectsBadInput(t *testing.T) {
	s := newHarness().store(t, "ctx-a")

	_, err := s.AddItem(context.Background(), AddItemInput{ProductID: " ", Quantity: 1})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 0})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, s.ItemCount())
}

func TestAddItemRetriesCollidingIDs(t *testing.T) {
	ids := []string{"a", "a", "a", "b"}
	var mu sync.Mutex
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		ids = ids[1:]
		return id
	}
	s := newHarness().store(t, "ctx-a", WithIDGenerator(next))

	first, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)
	second, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
}

func TestIDsStayUniqueAcrossAddRemove(t *testing.T) {
	s := newHarness().store(t, "ctx-a")
	ctx := context.Background()

	seen := map[string]struct{}{}
	for i := 0; i < 20; i++ {
		e, err := s.AddItem(ctx, AddItemInput{ProductID: "42", Quantity: 1})
		require.NoError(t, err)
		if i%3 == 0 {
			_, err := s.RemoveItem(ctx, e.ID)
			require.NoError(t, err)
		}
	}
	for _, e := range s.Items() {
		_, dup := seen[e.ID]
		require.False(t, dup, "duplicate id %s", e.ID)
		seen[e.ID] = struct{}{}
	}
}

func TestAddItemDropsReturnWithoutPickup(t *testing.T) {
	s := newHarness().store(t, "ctx-a")
	e, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1, Return: day(time.June, 9)})
	require.NoError(t, err)
	assert.True(t, e.RentalPeriod.IsEmpty())
	assert.Nil(t, e.RentalPeriod.Return)
}

func TestEnrichmentFillsMetadataAndAvailability(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")

	e, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)
	settle(t, s)

	got, ok := s.ItemByID(e.ID)
	require.True(t, ok)
	assert.Equal(t, "Camera", got.Name)
	assert.Equal(t, "B-104", got.Location)
	assert.Equal(t, 7, got.MaxLendingDays)
	assert.Equal(t, 1, got.AvailabilityQuantity)
	assert.True(t, got.DisabledDates.Has(*day(time.June, 10)))
	assert.NotNil(t, got.EnrichedAt)

	doc := readDocument(t, h.hub)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "Camera", doc.Items[0].Name)
	assert.Len(t, doc.Items[0].UnavailablePeriods, 1)
}

func TestEnrichmentRejectsPeriodThatTurnedUnavailable(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")

	e, err := s.AddItem(context.Background(), AddItemInput{
		ProductID: "42", Quantity: 1, Pickup: day(time.June, 8), Return: day(time.June, 12),
	})
	require.NoError(t, err)
	assert.True(t, e.RentalPeriod.IsComplete())
	settle(t, s)

	got, _ := s.ItemByID(e.ID)
	assert.True(t, got.RentalPeriod.IsEmpty())
	assert.Equal(t, reservation.ReasonUnavailable, got.RentalError)
}

func TestUpdateRentalPeriodScenario(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")
	ctx := context.Background()

	e, err := s.AddItem(ctx, AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)
	settle(t, s)

	cases := []struct {
		name   string
		pickup *timeperiod.Day
		ret    *timeperiod.Day
		reason reservation.Reason
	}{
		{"accepted", day(time.June, 5), day(time.June, 9), reservation.ReasonNone},
		{"touches disabled day", day(time.June, 5), day(time.June, 11), reservation.ReasonUnavailable},
		{"too long", day(time.June, 1), day(time.June, 10), reservation.ReasonMaxDurationExceeded},
		{"inverted", day(time.June, 9), day(time.June, 5), reservation.ReasonInvalidRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.UpdateRentalPeriod(ctx, e.ID, tc.pickup, tc.ret)
			require.NoError(t, err)
			assert.Equal(t, tc.reason, got.RentalError)
			if tc.reason == reservation.ReasonNone {
				require.True(t, got.RentalPeriod.IsComplete())
				assert.Equal(t, *tc.pickup, *got.RentalPeriod.Pickup)
				assert.Equal(t, *tc.ret, *got.RentalPeriod.Return)
			} else {
				assert.True(t, got.RentalPeriod.IsEmpty())
			}
		})
	}
}

func TestUpdateRentalPeriodUnknownID(t *testing.T) {
	s := newHarness().store(t, "ctx-a")
	_, err := s.UpdateRentalPeriod(context.Background(), "missing", day(time.June, 5), day(time.June, 6))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateQuantityClearsPeriodImmediately(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")
	ctx := context.Background()

	e, err := s.AddItem(ctx, AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)
	settle(t, s)
	_, err = s.UpdateRentalPeriod(ctx, e.ID, day(time.June, 5), day(time.June, 9))
	require.NoError(t, err)

	got, err := s.UpdateQuantity(ctx, e.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
	assert.True(t, got.RentalPeriod.IsEmpty())
	assert.Equal(t, reservation.ReasonQuantityChanged, got.RentalError)

	doc := readDocument(t, h.hub)
	require.Len(t, doc.Items, 1)
	assert.Empty(t, doc.Items[0].PickupDate)
	assert.Equal(t, string(reservation.ReasonQuantityChanged), doc.Items[0].RentalError)

	settle(t, s)
	got, _ = s.ItemByID(e.ID)
	assert.Equal(t, 3, got.AvailabilityQuantity)
	assert.Empty(t, got.UnavailablePeriods)
}

func TestUpdateQuantitySameValueIsNoop(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")
	e, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 2})
	require.NoError(t, err)
	settle(t, s)
	before := s.Snapshot().Version

	got, err := s.UpdateQuantity(context.Background(), e.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, reservation.ReasonNone, got.RentalError)
	assert.Equal(t, before, s.Snapshot().Version)
}

func TestStaleAvailabilityIsDiscardedAfterQuantityChange(t *testing.T) {
	h := newHarness()
	gate := make(chan struct{})
	h.avail.gates[availKey("42", 1)] = gate
	h.avail.periods[availKey("42", 2)] = []timeperiod.Period{{Start: *day(time.June, 20), End: *day(time.June, 21)}}
	s := h.store(t, "ctx-a")
	ctx := context.Background()

	e, err := s.AddItem(ctx, AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)
	_, err = s.UpdateQuantity(ctx, e.ID, 2)
	require.NoError(t, err)

	// The run for quantity 2 commits while the quantity 1 fetch is blocked.
	require.Eventually(t, func() bool {
		got, _ := s.ItemByID(e.ID)
		return got.AvailabilityQuantity == 2
	}, 2*time.Second, 5*time.Millisecond)

	close(gate)
	settle(t, s)

	got, _ := s.ItemByID(e.ID)
	assert.Equal(t, 2, got.AvailabilityQuantity)
	assert.True(t, got.DisabledDates.Has(*day(time.June, 20)))
	assert.False(t, got.DisabledDates.Has(*day(time.June, 10)))
}

func TestFetchFailureKeepsCachedData(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")
	e, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)
	settle(t, s)

	h.products.mu.Lock()
	h.products.err = errors.New("backend down")
	h.products.mu.Unlock()
	h.avail.mu.Lock()
	h.avail.err = errors.New("backend down")
	h.avail.mu.Unlock()

	_, err = s.UpdateMessage(context.Background(), e.ID, "new note")
	require.NoError(t, err)
	settle(t, s)

	got, _ := s.ItemByID(e.ID)
	assert.Equal(t, "new note", got.Message)
	assert.Equal(t, "Camera", got.Name)
	assert.True(t, got.DisabledDates.Has(*day(time.June, 10)))
}

func TestRemoveItem(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")
	ctx := context.Background()

	e, err := s.AddItem(ctx, AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)

	absent, err := s.RemoveItem(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, absent)
	assert.Zero(t, s.ItemCount())
	assert.Empty(t, readDocument(t, h.hub).Items)

	version := s.Snapshot().Version
	absent, err = s.RemoveItem(ctx, "never-there")
	require.NoError(t, err)
	assert.True(t, absent)
	assert.Equal(t, version, s.Snapshot().Version)
}

func TestRemoveItemsAndClear(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		e, err := s.AddItem(ctx, AddItemInput{ProductID: "42", Quantity: 1})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	require.NoError(t, s.RemoveItems(ctx, ids[0], ids[2], "unknown"))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, ids[1], items[0].ID)

	require.NoError(t, s.Clear(ctx))
	assert.Zero(t, s.ItemCount())
	assert.JSONEq(t, `{"schemaVersion":1,"items":[]}`, string(h.hub.Get("cart")))
}

func TestPersistFailureKeepsMemoryChange(t *testing.T) {
	hub := slot.NewMemoryHub()
	sl := hub.Slot("cart", "ctx-a")
	s, err := NewStore(context.Background(), sl, WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
	require.NoError(t, err)

	sl.FailWrites(errors.New("redis gone"))
	e, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.NotEmpty(t, e.ID)
	_, ok := s.ItemByID(e.ID)
	assert.True(t, ok)
	assert.Nil(t, hub.Get("cart"))

	sl.FailWrites(nil)
	_, err = s.UpdateMessage(context.Background(), e.ID, "retry")
	require.NoError(t, err)
	var doc document
	require.NoError(t, json.Unmarshal(hub.Get("cart"), &doc))
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "retry", doc.Items[0].Message)
}

func TestRoundTripThroughSlot(t *testing.T) {
	h := newHarness()
	a := h.store(t, "ctx-a")
	ctx := context.Background()

	e, err := a.AddItem(ctx, AddItemInput{ProductID: "42", Quantity: 2, Message: "tripod too", Pickup: day(time.June, 3), Return: day(time.June, 4)})
	require.NoError(t, err)
	settle(t, a)

	b, err := NewStore(ctx, h.hub.Slot("cart", "ctx-b"), WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
	require.NoError(t, err)

	want, _ := a.ItemByID(e.ID)
	got, ok := b.ItemByID(e.ID)
	require.True(t, ok)
	assert.Equal(t, want.Quantity, got.Quantity)
	assert.Equal(t, want.Message, got.Message)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, *want.RentalPeriod.Pickup, *got.RentalPeriod.Pickup)
	assert.Equal(t, *want.RentalPeriod.Return, *got.RentalPeriod.Return)
	assert.True(t, sameState(want, got))
}

func TestLoadClearsExpiredPeriods(t *testing.T) {
	hub := slot.NewMemoryHub()
	hub.Set("cart", []byte(`[
		{"cartItemId":"old","productId":"42","quantity":1,"pickupDate":"2025-05-20T00:00:00Z","returnDate":"2025-05-22T00:00:00Z"},
		{"cartItemId":"fresh","productId":"42","quantity":1,"pickupDate":"2025-06-02T00:00:00Z","returnDate":"2025-06-04T00:00:00Z"}
	]`))

	s, err := NewStore(context.Background(), hub.Slot("cart", "ctx"), WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
	require.NoError(t, err)

	old, ok := s.ItemByID("old")
	require.True(t, ok)
	assert.True(t, old.RentalPeriod.IsEmpty())
	assert.Equal(t, reservation.ReasonPeriodExpired, old.RentalError)

	fresh, _ := s.ItemByID("fresh")
	assert.True(t, fresh.HasCompletePeriod())

	var doc document
	require.NoError(t, json.Unmarshal(hub.Get("cart"), &doc))
	assert.Equal(t, schemaVersion, doc.SchemaVersion)
}

func TestLoadDiscardsCorruptDocument(t *testing.T) {
	hub := slot.NewMemoryHub()
	hub.Set("cart", []byte(`{"schemaVersion":99,"items":[{"cartItemId":"x","productId":"1"}]}`))

	s, err := NewStore(context.Background(), hub.Slot("cart", "ctx"))
	require.NoError(t, err)
	assert.Zero(t, s.ItemCount())
}

func TestWatchReloadsExternalWrites(t *testing.T) {
	h := newHarness()
	a := h.store(t, "ctx-a")
	b := h.store(t, "ctx-b")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Watch(ctx) }()

	// Writes made before the watcher subscribed are missed, so keep writing.
	require.Eventually(t, func() bool {
		if _, err := a.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1}); err != nil {
			return false
		}
		return b.ItemCount() > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestSettleRespectsContext(t *testing.T) {
	h := newHarness()
	gate := make(chan struct{})
	h.avail.gates[availKey("42", 1)] = gate
	s := h.store(t, "ctx-a")
	defer close(gate)

	_, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Settle(ctx), context.DeadlineExceeded)
}

func TestRegistryHandsOutOneStorePerName(t *testing.T) {
	hub := slot.NewMemoryHub()
	builds := 0
	reg := NewRegistry(func(ctx context.Context, name string) (*Store, error) {
		builds++
		return NewStore(ctx, hub.Slot(name, "ctx"))
	})
	ctx := context.Background()

	a, err := reg.Get(ctx, "cart")
	require.NoError(t, err)
	b, err := reg.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, builds)

	_, err = reg.Get(ctx, "")
	assert.Error(t, err)
	assert.NoError(t, reg.Close(ctx))
}

func TestAddItemRejectsInvertedPeriod(t *testing.T) {
	hub := slot.NewMemoryHub()
	s, err := NewStore(context.Background(), hub.Slot("cart", "ctx"), WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
	require.NoError(t, err)

	e, err := s.AddItem(context.Background(), AddItemInput{
		ProductID: "42", Quantity: 1, Pickup: day(time.June, 20), Return: day(time.June, 5),
	})
	require.NoError(t, err)
	assert.True(t, e.RentalPeriod.IsEmpty())
	assert.Equal(t, reservation.ReasonInvalidRange, e.RentalError)
	assert.False(t, e.Bookable())
}

func TestBookableNeedsAvailabilityForCurrentQuantity(t *testing.T) {
	hub := slot.NewMemoryHub()
	bare, err := NewStore(context.Background(), hub.Slot("cart", "ctx"), WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
	require.NoError(t, err)
	unchecked, err := bare.AddItem(context.Background(), AddItemInput{
		ProductID: "42", Quantity: 1, Pickup: day(time.June, 5), Return: day(time.June, 9),
	})
	require.NoError(t, err)
	assert.True(t, unchecked.HasCompletePeriod())
	assert.False(t, unchecked.Bookable())

	h := newHarness()
	s := h.store(t, "ctx-a")
	e, err := s.AddItem(context.Background(), AddItemInput{
		ProductID: "42", Quantity: 1, Pickup: day(time.June, 5), Return: day(time.June, 9),
	})
	require.NoError(t, err)
	settle(t, s)
	got, _ := s.ItemByID(e.ID)
	assert.True(t, got.Bookable())

	got.Quantity = 2
	assert.False(t, got.Bookable())
}

func TestMarkRentalErrorClearsPeriod(t *testing.T) {
	h := newHarness()
	s := h.store(t, "ctx-a")
	ctx := context.Background()

	e, err := s.AddItem(ctx, AddItemInput{ProductID: "42", Quantity: 1, Pickup: day(time.June, 5), Return: day(time.June, 9)})
	require.NoError(t, err)
	settle(t, s)

	require.NoError(t, s.MarkRentalError(ctx, reservation.ReasonBookingFailed, e.ID))
	settle(t, s)

	got, _ := s.ItemByID(e.ID)
	assert.True(t, got.RentalPeriod.IsEmpty())
	assert.Equal(t, reservation.ReasonBookingFailed, got.RentalError)
	assert.False(t, got.HasCompletePeriod())

	doc := readDocument(t, h.hub)
	require.Len(t, doc.Items, 1)
	assert.Empty(t, doc.Items[0].PickupDate)
	assert.Equal(t, string(reservation.ReasonBookingFailed), doc.Items[0].RentalError)
}

func TestLoadClearsPeriodStoredWithRentalError(t *testing.T) {
	hub := slot.NewMemoryHub()
	hub.Set("cart", []byte(`{"schemaVersion":1,"items":[
		{"cartItemId":"failed","productId":"42","quantity":1,"pickupDate":"2025-06-05T00:00:00Z","returnDate":"2025-06-09T00:00:00Z","rentalError":"booking failed"}
	]}`))

	s, err := NewStore(context.Background(), hub.Slot("cart", "ctx"), WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
	require.NoError(t, err)

	got, ok := s.ItemByID("failed")
	require.True(t, ok)
	assert.True(t, got.RentalPeriod.IsEmpty())
	assert.Equal(t, reservation.ReasonBookingFailed, got.RentalError)
}

type unannouncedSlot struct {
	slot.Slot
}

func (s unannouncedSlot) Write(ctx context.Context, payload []byte) error {
	if err := s.Slot.Write(ctx, payload); err != nil {
		return err
	}
	return fmt.Errorf("%w: pubsub down", slot.ErrNotAnnounced)
}

func TestPersistTreatsUnannouncedWriteAsStored(t *testing.T) {
	hub := slot.NewMemoryHub()
	s, err := NewStore(context.Background(), unannouncedSlot{hub.Slot("cart", "ctx")}, WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
	require.NoError(t, err)

	e, err := s.AddItem(context.Background(), AddItemInput{ProductID: "42", Quantity: 1})
	require.NoError(t, err)

	doc := readDocument(t, hub)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, e.ID, doc.Items[0].CartItemID)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	assert.Equal(t, s.Snapshot().Version, s.lastWritten)
}
