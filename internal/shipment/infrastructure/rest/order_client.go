package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/storefront/orderflow/internal/shipment/application"
	"github.com/storefront/orderflow/pkg/apperr"
	"github.com/storefront/orderflow/pkg/auth"
	"github.com/storefront/orderflow/pkg/retry"
)

// OrderClient reads the order boundary. It forwards the caller's bearer
// token when one is in the context (HTTP path) and falls back to a service
// token otherwise (Kafka hint path, where no user is present).
type OrderClient struct {
	log          *slog.Logger
	base         string
	hc           *http.Client
	serviceToken string
}

func NewOrderClient(log *slog.Logger, baseURL, serviceToken string) *OrderClient {
	return &OrderClient{
		log:          log,
		base:         baseURL,
		hc:           &http.Client{Timeout: 5 * time.Second},
		serviceToken: serviceToken,
	}
}

func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (application.OrderView, error) {
	var view struct {
		Order application.OrderView `json:"order"`
	}
	err := retry.Do(ctx, 3, 100*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/orders/"+orderID, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		token := auth.Token(ctx)
		if token == "" {
			token = c.serviceToken
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(&view)
		case http.StatusNotFound:
			return retry.Permanent(application.ErrOrderNotFound)
		default:
			return apperr.Newf(apperr.DependencyUnavailable, "order service returned %d", resp.StatusCode)
		}
	})
	if err != nil {
		return application.OrderView{}, err
	}
	return view.Order, nil
}
