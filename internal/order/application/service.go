package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/orderflow/internal/order/domain"
	"github.com/storefront/orderflow/pkg/apperr"
	"github.com/storefront/orderflow/pkg/auth"
	"github.com/storefront/orderflow/pkg/retry"
	"github.com/storefront/orderflow/pkg/tracing"
)

var ErrEmptyCart = apperr.New(apperr.Validation, "cart is empty")

// Orchestrator runs the order saga. All remote calls are sequential within
// one invocation; cross-order stock correctness rests on the catalog's atomic
// adjust, never on locks held here.
type Orchestrator struct {
	log     *slog.Logger
	repo    OrderRepository
	cart    CartClient
	catalog CatalogClient

	newID        func() string
	attempts     int
	backoff      time.Duration
	clearTimeout time.Duration
}

func NewOrchestrator(log *slog.Logger, repo OrderRepository, cart CartClient, catalog CatalogClient) *Orchestrator {
	return &Orchestrator{
		log:          log,
		repo:         repo,
		cart:         cart,
		catalog:      catalog,
		newID:        uuid.NewString,
		attempts:     3,
		backoff:      100 * time.Millisecond,
		clearTimeout: 10 * time.Second,
	}
}

// CreateOrder reads the cart, snapshots prices, reserves stock line by line
// and persists the pending order. The persist is the commit point: stock
// reductions become final once it succeeds. Any earlier failure triggers
// compensating adjustments in reverse order before the error surfaces.
func (s *Orchestrator) CreateOrder(ctx context.Context, userID string) (domain.Order, error) {
	items, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return domain.Order{}, apperr.Wrap(apperr.DependencyUnavailable, "read cart", err)
	}
	if len(items) == 0 {
		return domain.Order{}, ErrEmptyCart
	}
	items = foldItems(items)

	// Order id is proposed up-front so every adjustment gets a stable
	// idempotency key and a retried call cannot double-decrement.
	orderID := s.newID()

	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		p, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				return domain.Order{}, apperr.Newf(apperr.Conflict, "product %s unavailable", item.ProductID)
			}
			return domain.Order{}, apperr.Wrap(apperr.DependencyUnavailable, "read product", err)
		}
		if p.Available < item.Quantity {
			return domain.Order{}, apperr.Newf(apperr.Conflict, "insufficient stock for product %s", item.ProductID)
		}
		lines = append(lines, domain.OrderLine{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: p.PriceCents,
		})
	}

	applied := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		if err := s.adjust(ctx, line.ProductID, -line.Quantity, adjustKey(orderID, line.ProductID)); err != nil {
			return domain.Order{}, s.failCreate(ctx, orderID, applied, line.ProductID, err)
		}
		applied = append(applied, line)
	}

	o := domain.NewOrder(orderID, userID, lines)
	if err := s.repo.Create(ctx, o); err != nil {
		return domain.Order{}, s.failCreate(ctx, orderID, applied, "", apperr.Wrap(apperr.DependencyUnavailable, "persist order", err))
	}

	if err := s.cart.ClearCart(ctx, userID); err != nil {
		// The cart is a disposable view, not a source of truth; the order
		// stands. Retry once in the background.
		s.log.Warn("cart clear failed, retrying in background", "order_id", orderID, "user_id", userID, "err", err)
		go s.retryClearCart(auth.WithToken(context.Background(), auth.Token(ctx)), userID, orderID)
	}

	s.log.Info("order created", "order_id", orderID, "user_id", userID, "total_cents", o.TotalCents)
	return o, nil
}

// ConfirmOrder is idempotent on already-confirmed orders: the current state
// comes back and no duplicate event is written.
func (s *Orchestrator) ConfirmOrder(ctx context.Context, orderID, callerID string) (domain.Order, error) {
	o, err := s.loadOwned(ctx, orderID, callerID)
	if err != nil {
		return domain.Order{}, err
	}

	changed, err := o.Confirm(time.Now().UTC())
	if err != nil {
		return domain.Order{}, apperr.Wrap(apperr.Conflict, "confirm order", err)
	}
	if !changed {
		return o, nil
	}

	payload, err := json.Marshal(domain.OrderConfirmed{OrderID: o.ID, UserID: o.UserID})
	if err != nil {
		return domain.Order{}, apperr.Wrap(apperr.Internal, "encode event", err)
	}
	headers := map[string]string{"source": "order-service"}
	if err := s.repo.UpdateStatusWithOutbox(ctx, o, domain.EventOrderConfirmed, payload, headers, tracing.Traceparent(ctx)); err != nil {
		return domain.Order{}, apperr.Wrap(apperr.DependencyUnavailable, "persist confirmation", err)
	}

	s.log.Info("order confirmed", "order_id", o.ID)
	return o, nil
}

// CancelOrder is permitted from pending only; the reserved stock goes back to
// availability line by line.
func (s *Orchestrator) CancelOrder(ctx context.Context, orderID, callerID string) (domain.Order, error) {
	o, err := s.loadOwned(ctx, orderID, callerID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := o.Cancel(time.Now().UTC()); err != nil {
		return domain.Order{}, apperr.Wrap(apperr.Conflict, "cancel order", err)
	}
	if err := s.repo.UpdateStatus(ctx, o); err != nil {
		return domain.Order{}, apperr.Wrap(apperr.DependencyUnavailable, "persist cancellation", err)
	}

	var restockErr error
	for _, line := range o.Lines {
		key := adjustKey(o.ID, line.ProductID) + ":cancel"
		if err := s.adjust(ctx, line.ProductID, line.Quantity, key); err != nil {
			s.log.Error("restock failed", "order_id", o.ID, "product_id", line.ProductID, "err", err)
			restockErr = errors.Join(restockErr, err)
		}
	}
	if restockErr != nil {
		return domain.Order{}, apperr.Wrap(apperr.CompensationFailed, "order cancelled but stock not fully restored", restockErr)
	}

	s.log.Info("order cancelled", "order_id", o.ID)
	return o, nil
}

func (s *Orchestrator) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, wrapReadErr(err)
	}
	return o, nil
}

// ListHistory returns the user's orders newest first.
func (s *Orchestrator) ListHistory(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "list orders", err)
	}
	return orders, nil
}

func (s *Orchestrator) loadOwned(ctx context.Context, orderID, callerID string) (domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, wrapReadErr(err)
	}
	if o.UserID != callerID {
		return domain.Order{}, apperr.New(apperr.Forbidden, "order belongs to another user")
	}
	return o, nil
}

// wrapReadErr keeps a missing order distinct from a store that cannot answer.
func wrapReadErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperr.Wrap(apperr.NotFound, "order not found", err)
	}
	return apperr.Wrap(apperr.DependencyUnavailable, "read order", err)
}

// adjust applies one stock delta with bounded retries. Rejections (no stock,
// unknown product) are permanent; only transport-level failures retry, and
// the idempotency key makes those retries safe.
func (s *Orchestrator) adjust(ctx context.Context, productID string, delta int, key string) error {
	return retry.Do(ctx, s.attempts, s.backoff, func() error {
		err := s.catalog.AdjustStock(ctx, productID, delta, key)
		if err == nil {
			return nil
		}
		switch apperr.KindOf(err) {
		case apperr.Conflict, apperr.NotFound, apperr.Validation:
			return retry.Permanent(err)
		}
		return err
	})
}

// failCreate undoes the already-applied decrements in reverse order, then
// shapes the surfaced error. If compensation cannot be confirmed the failure
// escalates to CompensationFailed for operator reconciliation.
func (s *Orchestrator) failCreate(ctx context.Context, orderID string, applied []domain.OrderLine, productID string, cause error) error {
	var compErr error
	for i := len(applied) - 1; i >= 0; i-- {
		line := applied[i]
		key := adjustKey(orderID, line.ProductID) + ":comp"
		if err := s.adjust(ctx, line.ProductID, line.Quantity, key); err != nil {
			s.log.Error("compensation failed", "order_id", orderID, "product_id", line.ProductID, "err", err)
			compErr = errors.Join(compErr, err)
		}
	}
	if compErr != nil {
		return apperr.Wrap(apperr.CompensationFailed, "order creation failed and compensation unconfirmed", errors.Join(cause, compErr))
	}
	if apperr.Is(cause, apperr.Conflict) {
		// Stock insufficiency detected by the atomic decrement; surface the
		// offending product.
		if productID != "" {
			return apperr.Wrap(apperr.Conflict, fmt.Sprintf("insufficient stock for product %s", productID), cause)
		}
		return cause
	}
	return apperr.Wrap(apperr.DependencyUnavailable, "order creation failed", cause)
}

func (s *Orchestrator) retryClearCart(ctx context.Context, userID, orderID string) {
	ctx, cancel := context.WithTimeout(ctx, s.clearTimeout)
	defer cancel()
	err := retry.Do(ctx, s.attempts, s.backoff, func() error {
		return s.cart.ClearCart(ctx, userID)
	})
	if err != nil {
		s.log.Error("background cart clear failed", "order_id", orderID, "user_id", userID, "err", err)
	}
}

// foldItems merges repeated cart entries for the same product, keeping first
// appearance order. One line per product keeps the per-line idempotency keys
// distinct and matches the order_lines primary key.
func foldItems(items []CartItem) []CartItem {
	index := make(map[string]int, len(items))
	folded := make([]CartItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			folded[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(folded)
		folded = append(folded, item)
	}
	return folded
}

func adjustKey(orderID, productID string) string {
	return orderID + ":" + productID
}
