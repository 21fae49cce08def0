// Package adminclient loads the back-office dashboard over the admin HTTP
// API. It is used by the report CLI and by anything else that needs the
// same snapshot the admin UI sees.
package adminclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fleurease/fleurease-api/internal/dashboard"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSessionExpired means the API rejected the session (401).
	ErrSessionExpired = errors.New("session expired or invalid")
	// ErrForbidden means the session is valid but not an admin (403).
	ErrForbidden = errors.New("admin role required")
)

// APIError is any other non-2xx answer.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Message)
}

// Session is the bearer token the admin signed in with. It is passed
// explicitly to every call.
type Session struct {
	Token string
}

// Client talks to one API deployment.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for per-endpoint failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client. baseURL is the API root, e.g. https://api.example.com/api/v1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadSnapshot fetches the five dashboard resources concurrently. Either all
// succeed and a normalized snapshot is returned, or the load fails as a
// whole. ErrSessionExpired and ErrForbidden take precedence over any other
// failure, and only they cancel the requests still in flight.
func (c *Client) LoadSnapshot(ctx context.Context, s Session) (dashboard.Snapshot, error) {
	var raw dashboard.RawSnapshot

	fetches := []struct {
		path  string
		parse func([]byte)
	}{
		{"/admin/products", func(b []byte) { raw.Products = parseProducts(b) }},
		{"/admin/orders", func(b []byte) { raw.Orders = parseOrders(b) }},
		{"/admin/users", func(b []byte) { raw.Users = parseUsers(b) }},
		{"/admin/product-sales", func(b []byte) { raw.ProductSales = parseSalesShares(b) }},
		{"/admin/sales-per-month", func(b []byte) { raw.Monthly = parseMonthly(b) }},
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(fetches))
	var g errgroup.Group
	for i, f := range fetches {
		g.Go(func() error {
			body, err := c.get(ctx, s, f.path)
			if err != nil {
				errs[i] = err
				if isSessionError(err) {
					cancel()
				}
				return err
			}
			f.parse(body)
			return nil
		})
	}

	if g.Wait() != nil {
		return dashboard.Snapshot{}, pickError(errs)
	}
	return dashboard.Normalize(raw), nil
}

func isSessionError(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrForbidden)
}

// pickError prefers ErrSessionExpired, then ErrForbidden, then the first
// failure that is not a cancellation.
func pickError(errs []error) error {
	for _, target := range []error{ErrSessionExpired, ErrForbidden} {
		for _, err := range errs {
			if errors.Is(err, target) {
				return err
			}
		}
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, s Session, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrSessionExpired
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		apiErr := &APIError{Endpoint: path, Status: resp.StatusCode, Message: gjson.GetBytes(body, "message").String()}
		c.logger.Warn("admin api request failed",
			slog.String("endpoint", path),
			slog.Int("status", resp.StatusCode),
		)
		return nil, apiErr
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s: response is not valid JSON", path)
	}
	return body, nil
}
