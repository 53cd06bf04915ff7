package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/orderflow/internal/shipment/domain"
	"github.com/storefront/orderflow/pkg/apperr"
)

const orderStatusConfirmed = "confirmed"

// Service creates and advances shipments. Creation runs behind the
// consistency guard: the order's confirmed status is re-derived through the
// order boundary on every attempt, so a lost or duplicated OrderConfirmed
// event can never produce a wrong shipment.
type Service struct {
	log    *slog.Logger
	repo   ShipmentRepository
	orders OrderReader
	newID  func() string
}

func NewService(log *slog.Logger, repo ShipmentRepository, orders OrderReader) *Service {
	return &Service{
		log:    log,
		repo:   repo,
		orders: orders,
		newID:  uuid.NewString,
	}
}

func (s *Service) CreateShipment(ctx context.Context, orderID, address string) (domain.Shipment, error) {
	if orderID == "" || address == "" {
		return domain.Shipment{}, apperr.New(apperr.Validation, "order_id and address are required")
	}

	if err := s.guard(ctx, orderID); err != nil {
		return domain.Shipment{}, err
	}

	shipment := domain.NewShipment(s.newID(), orderID, address)
	if err := s.repo.Create(ctx, shipment); err != nil {
		if errors.Is(err, ErrDuplicateShipment) {
			return domain.Shipment{}, apperr.Wrap(apperr.Conflict, "shipment already exists for order", err)
		}
		return domain.Shipment{}, apperr.Wrap(apperr.Internal, "persist shipment", err)
	}

	s.log.Info("shipment created", "shipment_id", shipment.ID, "order_id", orderID)
	return shipment, nil
}

// guard cross-checks the order service before any shipment is created.
func (s *Service) guard(ctx context.Context, orderID string) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) || apperr.Is(err, apperr.NotFound) {
			return apperr.New(apperr.NotFound, "order not found")
		}
		return apperr.Wrap(apperr.DependencyUnavailable, "read order", err)
	}
	if order.Status != orderStatusConfirmed {
		return apperr.Newf(apperr.Conflict, "order %s is not confirmed", orderID)
	}

	if _, err := s.repo.GetByOrder(ctx, orderID); err == nil {
		return apperr.New(apperr.Conflict, "shipment already exists for order")
	} else if !errors.Is(err, ErrShipmentNotFound) {
		return apperr.Wrap(apperr.Internal, "read shipment", err)
	}
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, shipmentID string, status domain.ShipmentStatus) (domain.Shipment, error) {
	shipment, err := s.load(ctx, shipmentID)
	if err != nil {
		return domain.Shipment{}, err
	}

	if err := shipment.Advance(status, time.Now().UTC()); err != nil {
		if errors.Is(err, domain.ErrUnknownStatus) {
			return domain.Shipment{}, apperr.Wrap(apperr.Validation, "update status", err)
		}
		return domain.Shipment{}, apperr.Wrap(apperr.Conflict, "update status", err)
	}
	if err := s.repo.Update(ctx, shipment); err != nil {
		return domain.Shipment{}, apperr.Wrap(apperr.Internal, "persist shipment", err)
	}

	s.log.Info("shipment status updated", "shipment_id", shipment.ID, "status", status)
	return shipment, nil
}

func (s *Service) AssignCarrier(ctx context.Context, shipmentID, carrier string) (domain.Shipment, error) {
	if carrier == "" {
		return domain.Shipment{}, apperr.New(apperr.Validation, "carrier is required")
	}
	shipment, err := s.load(ctx, shipmentID)
	if err != nil {
		return domain.Shipment{}, err
	}

	if err := shipment.AssignCarrier(carrier, time.Now().UTC()); err != nil {
		return domain.Shipment{}, apperr.Wrap(apperr.Conflict, "assign carrier", err)
	}
	if err := s.repo.Update(ctx, shipment); err != nil {
		return domain.Shipment{}, apperr.Wrap(apperr.Internal, "persist shipment", err)
	}

	s.log.Info("carrier assigned", "shipment_id", shipment.ID, "carrier", carrier)
	return shipment, nil
}

func (s *Service) GetShipment(ctx context.Context, shipmentID string) (domain.Shipment, error) {
	return s.load(ctx, shipmentID)
}

// HandleOrderConfirmed processes the Kafka hint. It only verifies the order
// is visible and confirmed; shipment creation still waits for the customer's
// request, which re-runs the guard.
func (s *Service) HandleOrderConfirmed(ctx context.Context, orderID string) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		s.log.Warn("confirmed-order hint could not be verified", "order_id", orderID, "err", err)
		return err
	}
	if order.Status != orderStatusConfirmed {
		s.log.Warn("confirmed-order hint disagrees with order state",
			"order_id", orderID, "status", order.Status)
		return nil
	}
	s.log.Info("order ready for shipment", "order_id", orderID, "user_id", order.UserID)
	return nil
}

func (s *Service) load(ctx context.Context, shipmentID string) (domain.Shipment, error) {
	shipment, err := s.repo.Get(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, ErrShipmentNotFound) {
			return domain.Shipment{}, apperr.Wrap(apperr.NotFound, "shipment not found", err)
		}
		return domain.Shipment{}, apperr.Wrap(apperr.Internal, "read shipment", err)
	}
	return shipment, nil
}
