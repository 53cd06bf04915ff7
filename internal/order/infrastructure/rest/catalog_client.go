package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/storefront/orderflow/internal/order/application"
	"github.com/storefront/orderflow/pkg/apperr"
	"github.com/storefront/orderflow/pkg/retry"
)

// CatalogClient consumes the catalog boundary: product reads and the atomic
// stock adjustment. Retrying AdjustStock is the orchestrator's job; this
// client maps one wire exchange and carries the idempotency key.
type CatalogClient struct {
	log  *slog.Logger
	base string
	hc   *http.Client
}

func NewCatalogClient(log *slog.Logger, baseURL string) *CatalogClient {
	return &CatalogClient{
		log:  log,
		base: baseURL,
		hc:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *CatalogClient) GetProduct(ctx context.Context, productID string) (application.Product, error) {
	var p application.Product
	err := retry.Do(ctx, 3, 100*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/products/"+productID, nil)
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
			return statusError(resp.StatusCode, "catalog service")
		}
		return json.NewDecoder(resp.Body).Decode(&p)
	})
	if err != nil {
		return application.Product{}, err
	}
	return p, nil
}

type adjustStockReq struct {
	Delta int `json:"delta"`
}

func (c *CatalogClient) AdjustStock(ctx context.Context, productID string, delta int, idempotencyKey string) error {
	body, err := json.Marshal(adjustStockReq{Delta: delta})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.base+"/products/"+productID+"/stock", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	forwardAuth(ctx, req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "catalog service unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return apperr.Newf(apperr.NotFound, "product %s not found", productID)
	case http.StatusConflict:
		return apperr.Newf(apperr.Conflict, "insufficient stock for product %s", productID)
	case http.StatusBadRequest:
		return apperr.Newf(apperr.Validation, "catalog rejected adjustment for product %s", productID)
	default:
		return apperr.Newf(apperr.DependencyUnavailable, "catalog service returned %d", resp.StatusCode)
	}
}
