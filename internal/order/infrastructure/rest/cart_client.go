package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/storefront/orderflow/internal/order/application"
	"github.com/storefront/orderflow/pkg/apperr"
	"github.com/storefront/orderflow/pkg/auth"
	"github.com/storefront/orderflow/pkg/retry"
)

// CartClient talks to the cart service. The caller's bearer token is
// forwarded so the cart service resolves the same user.
type CartClient struct {
	log  *slog.Logger
	base string
	hc   *http.Client
}

func NewCartClient(log *slog.Logger, baseURL string) *CartClient {
	return &CartClient{
		log:  log,
		base: baseURL,
		hc:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *CartClient) GetCart(ctx context.Context, _ string) ([]application.CartItem, error) {
	var items []application.CartItem
	err := retry.Do(ctx, 3, 100*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/cart", nil)
		if err != nil {
			return retry.Permanent(err)
		}
		forwardAuth(ctx, req)

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp.StatusCode, "cart service")
		}
		items = items[:0]
		return json.NewDecoder(resp.Body).Decode(&items)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c *CartClient) ClearCart(ctx context.Context, _ string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/api/cart/clear", nil)
	if err != nil {
		return err
	}
	forwardAuth(ctx, req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(resp.StatusCode, "cart service")
	}
	return nil
}

func forwardAuth(ctx context.Context, req *http.Request) {
	if token := auth.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func statusError(code int, upstream string) error {
	kind := apperr.DependencyUnavailable
	switch code {
	case http.StatusNotFound:
		kind = apperr.NotFound
	case http.StatusConflict:
		kind = apperr.Conflict
	case http.StatusBadRequest:
		kind = apperr.Validation
	}
	err := apperr.Newf(kind, "%s returned %d", upstream, code)
	if code >= 400 && code < 500 {
		// 4xx carries a decision, not an outage; retrying cannot change it.
		return retry.Permanent(err)
	}
	return err
}
