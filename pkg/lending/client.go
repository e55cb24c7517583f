package lending

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/lendcart/pkg/errors"
)

const (
	defaultTimeout        = 10 * time.Second
	responseBodyReadLimit = 1024
)

var errBaseURLRequired = errors.New("lending api base url is required")

// Client talks to the lending backend REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient builds a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Product is the subset of the backend product the cart caches.
type Product struct {
	Name           string    `json:"name"`
	MaxLendingDays int       `json:"expiryDate"`
	LocationRoomNr string    `json:"locationRoomNr"`
	Location       *Location `json:"location"`
}

type Location struct {
	RoomNr string `json:"roomNr"`
}

// RoomNr returns the room of the product, preferring the expanded location.
func (p Product) RoomNr() string {
	if p.Location != nil && p.Location.RoomNr != "" {
		return p.Location.RoomNr
	}
	return p.LocationRoomNr
}

// UnavailablePeriod is a raw period as the backend reports it. Values are
// ISO date or date-time strings.
type UnavailablePeriod struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// BookingRequest is the payload of POST /api/bookings.
type BookingRequest struct {
	ItemID    string
	StartDate time.Time
	EndDate   time.Time
	Message   string
}

type bookingPayload struct {
	ItemID    any    `json:"itemId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Message   string `json:"message"`
}

// Booking is the created booking as echoed back by the backend.
type Booking struct {
	ID     json.RawMessage `json:"id"`
	Status string          `json:"status"`
}

// GetProductByID fetches one product.
func (c *Client) GetProductByID(ctx context.Context, productID string) (*Product, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lending client not configured")
	}
	trimmed := strings.TrimSpace(productID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	var product Product
	path := fmt.Sprintf("api/products/%s", url.PathEscape(trimmed))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &product, "get product"); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetUnavailablePeriods returns the periods during which fewer than
// requiredQuantity units of the product are free.
func (c *Client) GetUnavailablePeriods(ctx context.Context, productID string, requiredQuantity int) ([]UnavailablePeriod, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lending client not configured")
	}
	trimmed := strings.TrimSpace(productID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if requiredQuantity <= 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "required quantity must be positive, got %d", requiredQuantity)
	}

	query := url.Values{}
	query.Set("requiredQuantity", strconv.Itoa(requiredQuantity))
	path := fmt.Sprintf("api/products/%s/unavailable-periods", url.PathEscape(trimmed))

	periods := []UnavailablePeriod{}
	if err := c.do(ctx, http.MethodGet, path, query, nil, &periods, "get unavailable periods"); err != nil {
		return nil, err
	}
	return periods, nil
}

// CreateBooking submits one booking request.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*Booking, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "lending client not configured")
	}
	if strings.TrimSpace(req.ItemID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking end precedes start")
	}

	payload := bookingPayload{
		ItemID:    idValue(req.ItemID),
		StartDate: req.StartDate.Format(time.RFC3339),
		EndDate:   req.EndDate.Format(time.RFC3339),
		Message:   req.Message,
	}

	var booking Booking
	if err := c.do(ctx, http.MethodPost, "api/bookings", nil, payload, &booking, "create booking"); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any, op string) error {
	target := c.buildURL(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+op+" request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+op+" request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, op+" timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, op+" returned not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, op+" request failed")
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+op+" response")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}

// idValue keeps numeric ids numeric on the wire.
func idValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
