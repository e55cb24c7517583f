package cart

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/angelmondragon/lendcart/pkg/lending"
	"github.com/angelmondragon/lendcart/pkg/reservation"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

type cartFeature struct {
	h        *harness
	now      time.Time
	store    *Store
	contexts int
	entryID  string
}

func (c *cartFeature) reset() {
	if c.store != nil {
		_ = c.store.Close(context.Background())
	}
	c.h = newHarness()
	c.h.products.products = map[string]*lending.Product{}
	c.h.avail.periods = map[string][]timeperiod.Period{}
	c.now = time.Now()
	c.store = nil
	c.contexts = 0
	c.entryID = ""
}

func (c *cartFeature) open() error {
	enricher, err := NewEnricher(c.h.products, c.h.avail, 4, time.Second)
	if err != nil {
		return err
	}
	c.contexts++
	now := c.now
	s, err := NewStore(context.Background(), c.h.hub.Slot("cart", fmt.Sprintf("ctx-%d", c.contexts)),
		WithEnricher(enricher),
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
	)
	if err != nil {
		return err
	}
	c.store = s
	return c.settle()
}

func (c *cartFeature) ensureStore() error {
	if c.store != nil {
		return nil
	}
	return c.open()
}

func (c *cartFeature) settle() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.store.Settle(ctx)
}

func (c *cartFeature) entry() (Entry, error) {
	e, ok := c.store.ItemByID(c.entryID)
	if !ok {
		return Entry{}, fmt.Errorf("cart item %q not found", c.entryID)
	}
	return e, nil
}

func parseDay(value string) (*timeperiod.Day, error) {
	d, err := timeperiod.ParseDay(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *cartFeature) todayIs(value string) error {
	d, err := parseDay(value)
	if err != nil {
		return err
	}
	c.now = d.Midnight(time.UTC).Add(9 * time.Hour)
	return nil
}

func (c *cartFeature) productAllowsAtMost(productID string, days int) error {
	c.h.products.products[productID] = &lending.Product{Name: "Product " + productID, MaxLendingDays: days}
	return nil
}

func (c *cartFeature) productUnavailableOn(productID, value string, qty int) error {
	d, err := parseDay(value)
	if err != nil {
		return err
	}
	key := availKey(productID, qty)
	c.h.avail.periods[key] = append(c.h.avail.periods[key], timeperiod.Period{Start: *d, End: *d})
	return nil
}

func (c *cartFeature) addProduct(productID string, qty int) error {
	if err := c.ensureStore(); err != nil {
		return err
	}
	e, err := c.store.AddItem(context.Background(), AddItemInput{ProductID: productID, Quantity: qty})
	if err != nil {
		return err
	}
	c.entryID = e.ID
	return nil
}

func (c *cartFeature) cartHolds(productID string, qty int) error {
	if err := c.addProduct(productID, qty); err != nil {
		return err
	}
	return c.settle()
}

func (c *cartFeature) slotHoldsEntry(productID, from, to string) error {
	c.entryID = "stored-1"
	doc := fmt.Sprintf(`{"schemaVersion":1,"items":[{"cartItemId":%q,"productId":%q,"quantity":1,"pickupDate":"%sT00:00:00Z","returnDate":"%sT00:00:00Z"}]}`,
		c.entryID, productID, from, to)
	c.h.hub.Set("cart", []byte(doc))
	return nil
}

func (c *cartFeature) selectPeriod(from, to string) error {
	pickup, err := parseDay(from)
	if err != nil {
		return err
	}
	ret, err := parseDay(to)
	if err != nil {
		return err
	}
	_, err = c.store.UpdateRentalPeriod(context.Background(), c.entryID, pickup, ret)
	return err
}

func (c *cartFeature) changeQuantity(qty int) error {
	_, err := c.store.UpdateQuantity(context.Background(), c.entryID, qty)
	return err
}

func (c *cartFeature) restart() error {
	if c.store != nil {
		if err := c.store.Close(context.Background()); err != nil {
			return err
		}
		c.store = nil
	}
	return c.open()
}

func (c *cartFeature) periodIsStored(from, to string) error {
	e, err := c.entry()
	if err != nil {
		return err
	}
	if !e.RentalPeriod.IsComplete() {
		return fmt.Errorf("expected a complete period, got %+v", e.RentalPeriod)
	}
	if got := e.RentalPeriod.Pickup.String(); got != from {
		return fmt.Errorf("pickup: expected %s, got %s", from, got)
	}
	if got := e.RentalPeriod.Return.String(); got != to {
		return fmt.Errorf("return: expected %s, got %s", to, got)
	}
	return nil
}

func (c *cartFeature) noRentalError() error {
	e, err := c.entry()
	if err != nil {
		return err
	}
	if e.RentalError != reservation.ReasonNone {
		return fmt.Errorf("unexpected rental error %q", e.RentalError)
	}
	return nil
}

func (c *cartFeature) noPeriod() error {
	e, err := c.entry()
	if err != nil {
		return err
	}
	if !e.RentalPeriod.IsEmpty() {
		return fmt.Errorf("expected no period, got %+v", e.RentalPeriod)
	}
	return nil
}

func (c *cartFeature) rentalErrorIs(reason string) error {
	e, err := c.entry()
	if err != nil {
		return err
	}
	if string(e.RentalError) != reason {
		return fmt.Errorf("expected rental error %q, got %q", reason, e.RentalError)
	}
	return nil
}

func (c *cartFeature) entryCanBeLookedUp() error {
	_, err := c.entry()
	return err
}

func (c *cartFeature) cartCountIs(n int) error {
	if got := c.store.ItemCount(); got != n {
		return fmt.Errorf("expected %d entries, got %d", n, got)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	c := &cartFeature{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if c.store != nil {
			_ = c.store.Close(context.Background())
			c.store = nil
		}
		return ctx, nil
	})

	ctx.Step(`^today is "([^"]*)"$`, c.todayIs)
	ctx.Step(`^product "([^"]*)" allows at most (\d+) lending days$`, c.productAllowsAtMost)
	ctx.Step(`^product "([^"]*)" is unavailable on "([^"]*)" for quantity (\d+)$`, c.productUnavailableOn)
	ctx.Step(`^the cart holds product "([^"]*)" with quantity (\d+)$`, c.cartHolds)
	ctx.Step(`^the slot holds an entry for product "([^"]*)" from "([^"]*)" to "([^"]*)"$`, c.slotHoldsEntry)
	ctx.Step(`^I add product "([^"]*)" with quantity (\d+)$`, c.addProduct)
	ctx.Step(`^I select the period "([^"]*)" to "([^"]*)"$`, c.selectPeriod)
	ctx.Step(`^I change the quantity to (\d+)$`, c.changeQuantity)
	ctx.Step(`^the context restarts$`, c.restart)
	ctx.Step(`^the period "([^"]*)" to "([^"]*)" is stored$`, c.periodIsStored)
	ctx.Step(`^the entry has no rental error$`, c.noRentalError)
	ctx.Step(`^the entry has no period$`, c.noPeriod)
	ctx.Step(`^the rental error is "([^"]*)"$`, c.rentalErrorIs)
	ctx.Step(`^the entry can be looked up by its id$`, c.entryCanBeLookedUp)
	ctx.Step(`^the cart count is (\d+)$`, c.cartCountIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
