package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/lendcart/internal/availability"
	"github.com/angelmondragon/lendcart/pkg/lending"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

const (
	defaultConcurrency  = 8
	defaultFetchTimeout = 10 * time.Second

	FetchKindProduct      = "product"
	FetchKindAvailability = "availability"
)

type productSource interface {
	GetProductByID(ctx context.Context, productID string) (*lending.Product, error)
}

type availabilitySource interface {
	Resolve(ctx context.Context, productID string, quantity int) (availability.Result, error)
}

// Enricher fetches product metadata and availability for cart entries.
type Enricher struct {
	products     productSource
	availability availabilitySource
	concurrency  int
	fetchTimeout time.Duration
}

// NewEnricher builds an enricher. Non-positive limits fall back to defaults.
func NewEnricher(products productSource, avail availabilitySource, concurrency int, fetchTimeout time.Duration) (*Enricher, error) {
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	if avail == nil {
		return nil, fmt.Errorf("availability source required")
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Enricher{
		products:     products,
		availability: avail,
		concurrency:  concurrency,
		fetchTimeout: fetchTimeout,
	}, nil
}

type target struct {
	id        string
	productID string
	quantity  int
}

type fetchResult struct {
	target
	product      *lending.Product
	productErr   error
	availability *availability.Result
	availErr     error
}

// FetchError describes one failed fetch of an enrichment run.
type FetchError struct {
	CartItemID string
	ProductID  string
	Kind       string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch for cart item %s (product %s): %v", e.Kind, e.CartItemID, e.ProductID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// fetch runs both fetches for every target with bounded parallelism. It
// always waits for all of them; failures are carried in the results.
func (e *Enricher) fetch(ctx context.Context, targets []target) []fetchResult {
	results := make([]fetchResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, t := range targets {
		i, t := i, t
		results[i].target = t
		g.Go(func() error {
			res := &results[i]

			pctx, cancel := context.WithTimeout(gctx, e.fetchTimeout)
			res.product, res.productErr = e.products.GetProductByID(pctx, t.productID)
			cancel()

			actx, cancel := context.WithTimeout(gctx, e.fetchTimeout)
			avail, err := e.availability.Resolve(actx, t.productID, t.quantity)
			cancel()
			if err != nil {
				res.availErr = err
			} else {
				res.availability = &avail
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r fetchResult) errs() error {
	var err error
	if r.productErr != nil {
		err = multierr.Append(err, &FetchError{CartItemID: r.id, ProductID: r.productID, Kind: FetchKindProduct, Err: r.productErr})
	}
	if r.availErr != nil {
		err = multierr.Append(err, &FetchError{CartItemID: r.id, ProductID: r.productID, Kind: FetchKindAvailability, Err: r.availErr})
	}
	return err
}

// apply merges r into e. Availability fetched for another quantity than the
// entry holds now is dropped. Reports whether persisted state changed.
func (r fetchResult) apply(e *Entry, now time.Time, today timeperiod.Day) bool {
	before := e.clone()

	if r.product != nil {
		e.Name = r.product.Name
		e.Location = r.product.RoomNr()
		e.MaxLendingDays = r.product.MaxLendingDays
	}
	if r.availability != nil && r.quantity == e.Quantity {
		e.setAvailability(r.availability.Periods, r.quantity, today)
	}
	if r.product != nil || r.availability != nil {
		e.revalidate()
	}
	if r.productErr == nil && r.availErr == nil {
		at := now
		e.EnrichedAt = &at
	}
	return !sameState(before, *e)
}

// startEnrichment schedules a run over the current entries.
func (s *Store) startEnrichment() {
	if s.enricher == nil {
		return
	}
	s.mu.Lock()
	targets := make([]target, 0, len(s.items))
	for _, e := range s.items {
		targets = append(targets, target{id: e.ID, productID: e.ProductID, quantity: e.Quantity})
	}
	s.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	s.runMu.Lock()
	if s.closed {
		s.runMu.Unlock()
		return
	}
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
	s.runMu.Unlock()

	go func() {
		defer s.finishRun()
		_ = s.enrich(s.baseCtx, targets)
	}()
}

func (s *Store) finishRun() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
}

// enrich fetches backend data for targets and commits the merged results in
// one step. Entries removed meanwhile are skipped. The returned error lists
// the failed fetches; it never undoes the commit.
func (s *Store) enrich(ctx context.Context, targets []target) error {
	ctx = s.logg.WithSlot(ctx, s.slot.Name())
	started := time.Now()
	results := s.enricher.fetch(ctx, targets)

	var runErr error
	changed := false
	now := s.now()
	today := timeperiod.DayIn(now, s.loc)

	s.mu.Lock()
	for _, r := range results {
		if err := r.errs(); err != nil {
			runErr = multierr.Append(runErr, err)
		}
		idx := s.indexOf(r.id)
		if idx < 0 {
			continue
		}
		if r.apply(&s.items[idx], now, today) {
			changed = true
		}
	}
	var version uint64
	var snapshot []Entry
	if changed {
		s.version++
		version, snapshot = s.version, cloneEntries(s.items)
	}
	s.mu.Unlock()

	s.metrics.ObserveEnrichment(time.Since(started))
	for _, err := range multierr.Errors(runErr) {
		var fe *FetchError
		if errors.As(err, &fe) {
			s.metrics.IncFetchFailure(fe.Kind)
			fctx := s.logg.WithCartItemID(s.logg.WithProductID(ctx, fe.ProductID), fe.CartItemID)
			s.logg.Warn(s.logg.WithFields(fctx, map[string]any{"kind": fe.Kind, "error": fe.Err.Error()}), "cart.fetch_failed")
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"entries":  len(targets),
		"changed":  changed,
		"failures": len(multierr.Errors(runErr)),
	})
	s.logg.Info(logCtx, "cart.enrichment_committed")

	if changed {
		if err := s.persist(ctx, version, snapshot); err != nil {
			runErr = multierr.Append(runErr, err)
		}
	}
	return runErr
}
