package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/orderflow/internal/order/application"
	"github.com/storefront/orderflow/internal/order/domain"
	"github.com/storefront/orderflow/pkg/auth"
)

var secret = []byte("test-secret")

type stubCart struct{ items map[string][]application.CartItem }

func (c *stubCart) GetCart(_ context.Context, userID string) ([]application.CartItem, error) {
	return c.items[userID], nil
}

func (c *stubCart) ClearCart(_ context.Context, userID string) error {
	delete(c.items, userID)
	return nil
}

type stubCatalog struct{ products map[string]application.Product }

func (c *stubCatalog) GetProduct(_ context.Context, id string) (application.Product, error) {
	return c.products[id], nil
}

func (c *stubCatalog) AdjustStock(_ context.Context, _ string, _ int, _ string) error {
	return nil
}

type stubRepo struct{ orders map[string]domain.Order }

func (r *stubRepo) Create(_ context.Context, o domain.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *stubRepo) Get(_ context.Context, id string) (domain.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (r *stubRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateStatus(_ context.Context, o domain.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *stubRepo) UpdateStatusWithOutbox(_ context.Context, o domain.Order, _ string, _ []byte, _ map[string]string, _ string) error {
	r.orders[o.ID] = o
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubRepo) {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	repo := &stubRepo{orders: map[string]domain.Order{}}
	cart := &stubCart{items: map[string][]application.CartItem{
		"u-1": {{ProductID: "p1", Quantity: 2}},
	}}
	catalog := &stubCatalog{products: map[string]application.Product{
		"p1": {ID: "p1", PriceCents: 1000, Available: 10},
	}}
	svc := application.NewOrchestrator(log, repo, cart, catalog)
	h := NewHandler(log, svc, nil)

	mux := http.NewServeMux()
	mux.Handle("/", auth.Middleware(secret)(h.Routes()))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, repo
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.Sign(secret, userID, role, time.Hour)
	require.NoError(t, err)
	return token
}

func TestOrders_Unauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/orders/history", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOrders_CreateConfirmFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signToken(t, "u-1", auth.RoleCustomer)

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Order domain.Order `json:"order"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, int64(2000), created.Order.TotalCents)
	assert.Equal(t, domain.StatusPending, created.Order.Status)

	resp = doJSON(t, http.MethodPut, srv.URL+"/orders/confirm", token, map[string]string{"order_id": created.Order.ID})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var confirmed struct {
		Order domain.Order `json:"order"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&confirmed))
	assert.Equal(t, domain.StatusConfirmed, confirmed.Order.Status)
}

func TestOrders_CreateEmptyCart(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signToken(t, "u-2", auth.RoleCustomer)

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrders_GetHidesOthersOrders(t *testing.T) {
	srv, repo := newTestServer(t)
	o := domain.NewOrder("o-1", "u-1", []domain.OrderLine{{ProductID: "p1", Quantity: 1, UnitPriceCents: 100}})
	repo.orders[o.ID] = o

	t.Run("stranger gets 404", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/orders/o-1", signToken(t, "u-9", auth.RoleCustomer), nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("admin can read", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/orders/o-1", signToken(t, "admin-1", auth.RoleAdmin), nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("owner can read", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/orders/o-1", signToken(t, "u-1", auth.RoleCustomer), nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestOrders_History(t *testing.T) {
	srv, repo := newTestServer(t)
	repo.orders["o-1"] = domain.NewOrder("o-1", "u-1", []domain.OrderLine{{ProductID: "p1", Quantity: 1, UnitPriceCents: 100}})

	resp := doJSON(t, http.MethodGet, srv.URL+"/orders/history", signToken(t, "u-1", auth.RoleCustomer), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Orders []domain.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Orders, 1)
}

func TestOrders_CustomerRoutesRejectAdmins(t *testing.T) {
	srv, repo := newTestServer(t)
	repo.orders["o-1"] = domain.NewOrder("o-1", "u-1", []domain.OrderLine{{ProductID: "p1", Quantity: 1, UnitPriceCents: 100}})
	admin := signToken(t, "admin-1", auth.RoleAdmin)

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", admin, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/orders/history", admin, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Admin reads of individual orders stay allowed for the shipment guard.
	resp = doJSON(t, http.MethodGet, srv.URL+"/orders/o-1", admin, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
