package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/lendcart/pkg/reservation"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

const schemaVersion = 1

var errCorrupt = errors.New("corrupt cart document")

type document struct {
	SchemaVersion int              `json:"schemaVersion"`
	Items         []persistedEntry `json:"items"`
}

type persistedEntry struct {
	CartItemID           string            `json:"cartItemId"`
	ProductID            string            `json:"productId"`
	Quantity             int               `json:"quantity"`
	Message              string            `json:"message"`
	PickupDate           string            `json:"pickupDate,omitempty"`
	ReturnDate           string            `json:"returnDate,omitempty"`
	RentalError          string            `json:"rentalError,omitempty"`
	UnavailablePeriods   []persistedPeriod `json:"unavailablePeriods,omitempty"`
	MaxLendingDays       int               `json:"maxLendingDays,omitempty"`
	Name                 string            `json:"name,omitempty"`
	Location             string            `json:"location,omitempty"`
	AvailabilityQuantity int               `json:"availabilityQuantity,omitempty"`
}

type persistedPeriod struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// codec maps entries to the slot document. Dates are written as midnight in
// loc so that every context sharing the slot reads the same calendar day.
type codec struct {
	loc *time.Location
	now func() time.Time
}

func (c codec) today() timeperiod.Day {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return timeperiod.DayIn(now(), c.loc)
}

func (c codec) encode(items []Entry) ([]byte, error) {
	doc := document{SchemaVersion: schemaVersion, Items: make([]persistedEntry, 0, len(items))}
	for _, e := range items {
		p := persistedEntry{
			CartItemID:           e.ID,
			ProductID:            e.ProductID,
			Quantity:             e.Quantity,
			Message:              e.Message,
			PickupDate:           c.formatDay(e.RentalPeriod.Pickup),
			ReturnDate:           c.formatDay(e.RentalPeriod.Return),
			RentalError:          string(e.RentalError),
			MaxLendingDays:       e.MaxLendingDays,
			Name:                 e.Name,
			Location:             e.Location,
			AvailabilityQuantity: e.AvailabilityQuantity,
		}
		for _, period := range e.UnavailablePeriods {
			p.UnavailablePeriods = append(p.UnavailablePeriods, persistedPeriod{
				StartDate: c.formatDay(&period.Start),
				EndDate:   c.formatDay(&period.End),
			})
		}
		doc.Items = append(doc.Items, p)
	}
	return json.Marshal(doc)
}

// decode reads a slot document. An empty document is an empty cart. A bare
// array is the unversioned layout. Anything unreadable returns errCorrupt
// and no entries.
func (c codec) decode(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Entry{}, nil
	}

	var raw []persistedEntry
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return []Entry{}, fmt.Errorf("%w: %v", errCorrupt, err)
		}
	case '{':
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return []Entry{}, fmt.Errorf("%w: %v", errCorrupt, err)
		}
		if doc.SchemaVersion != schemaVersion {
			return []Entry{}, fmt.Errorf("%w: unsupported schema version %d", errCorrupt, doc.SchemaVersion)
		}
		raw = doc.Items
	default:
		return []Entry{}, fmt.Errorf("%w: not a cart document", errCorrupt)
	}

	entries := make([]Entry, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		id := strings.TrimSpace(p.CartItemID)
		productID := strings.TrimSpace(p.ProductID)
		if id == "" || productID == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		entries = append(entries, c.decodeEntry(id, productID, p))
	}
	return entries, nil
}

func (c codec) decodeEntry(id, productID string, p persistedEntry) Entry {
	e := Entry{
		ID:             id,
		ProductID:      productID,
		Quantity:       p.Quantity,
		Message:        p.Message,
		RentalError:    reservation.Reason(p.RentalError),
		MaxLendingDays: p.MaxLendingDays,
		Name:           p.Name,
		Location:       p.Location,
	}
	if e.Quantity < 1 {
		e.Quantity = 1
	}

	pickup, pickupErr := c.parseDay(p.PickupDate)
	ret, returnErr := c.parseDay(p.ReturnDate)
	if pickupErr == nil && returnErr == nil && pickup != nil {
		e.RentalPeriod = reservation.Period{Pickup: pickup, Return: ret}
	}

	periods := make([]timeperiod.Period, 0, len(p.UnavailablePeriods))
	valid := true
	for _, raw := range p.UnavailablePeriods {
		start, err := timeperiod.ParseInstant(raw.StartDate, c.loc)
		if err != nil {
			valid = false
			break
		}
		end, err := timeperiod.ParseInstant(raw.EndDate, c.loc)
		if err != nil {
			valid = false
			break
		}
		periods = append(periods, timeperiod.Period{Start: start, End: end}.Normalize())
	}
	if valid && p.AvailabilityQuantity > 0 {
		e.setAvailability(periods, p.AvailabilityQuantity, c.today())
	} else {
		e.setAvailability(nil, 0, c.today())
	}
	return e
}

func (c codec) formatDay(d *timeperiod.Day) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Midnight(c.loc).Format(time.RFC3339)
}

func (c codec) parseDay(value string) (*timeperiod.Day, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := timeperiod.ParseInstant(value, c.loc)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// normalizeLoaded clears periods that can no longer be booked: complete
// periods starting or ending before today, periods stored next to a rental
// error, and pairs the cached data rejects. It reports whether anything changed.
func normalizeLoaded(entries []Entry, today timeperiod.Day) bool {
	changed := false
	for i := range entries {
		e := &entries[i]
		if !e.RentalPeriod.IsComplete() {
			continue
		}
		if e.RentalPeriod.Pickup.Before(today) || e.RentalPeriod.Return.Before(today) {
			e.RentalPeriod = reservation.Period{}
			e.RentalError = reservation.ReasonPeriodExpired
			changed = true
			continue
		}
		if e.RentalError != reservation.ReasonNone {
			e.RentalPeriod = reservation.Period{}
			changed = true
			continue
		}
		before := e.RentalError
		e.revalidate()
		if e.RentalError != before {
			changed = true
		}
	}
	return changed
}
