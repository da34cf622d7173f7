// Package ordering orchestrates order placement: a synchronous cross-service
// inventory reservation, one local transaction for the order rows, and the
// hand-off of the payment intent once the transaction commits.
package ordering

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
	"github.com/example/ec-fulfillment/internal/inventory"
	"github.com/example/ec-fulfillment/internal/payment"
	"github.com/example/ec-fulfillment/internal/registry"
)

// Logical service names resolved through the registry. The inventory
// endpoint lives inside the product catalog service.
const (
	InventoryServiceName = "product-service"
	PaymentServiceName   = "payment-service"
)

// ItemRequest references a variant by id; prices and display fields come
// from the local product cache, never from the request.
type ItemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrderRequest is the full placement command.
type PlaceOrderRequest struct {
	Items           []ItemRequest
	ShippingAddress string
	Payer           order.Payer
	PaymentMethod   order.PaymentMethod
}

// Service wires the orchestration dependencies. All remote collaborators
// come in as interfaces resolved through the registry.
type Service struct {
	registry registry.Registry
	orders   store.OrderStore
	cache    store.CacheStore
	stock    inventory.Adjuster
	payments payment.Initiator
}

func NewService(reg registry.Registry, orders store.OrderStore, cache store.CacheStore,
	stock inventory.Adjuster, payments payment.Initiator) *Service {
	return &Service{
		registry: reg,
		orders:   orders,
		cache:    cache,
		stock:    stock,
		payments: payments,
	}
}

// PlaceOrder runs the placement saga.
//
// The inventory address is resolved up front so a registry miss aborts
// before any state is touched. Inside the local transaction each item's
// stock is decremented remotely; if a later item fails, the transaction
// rolls back and the decrements already applied are compensated with
// reversing adjustments.
//
// Settlement is initiated after the commit for non-cash methods; the order
// stays PENDING until the reconciler applies the settlement event. A failed
// initiation leaves a PENDING order and is logged for operator retry rather
// than failing the placement.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*order.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("order must have at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperr.Validation(fmt.Sprintf("invalid quantity for variant %s", item.VariantID))
		}
	}

	payerEmail, err := req.Payer.ResolveEmail()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid payer", err)
	}

	inventoryEndpoint, err := s.registry.Resolve(ctx, InventoryServiceName)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "inventory service is unresolvable", err)
	}

	o, err := order.New(req.Payer, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid order", err)
	}

	res := newReservation(o.ID)

	txErr := s.orders.WithinTx(ctx, func(tx store.OrderTx) error {
		items, err := s.snapshotItems(ctx, req.Items)
		if err != nil {
			return err
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		res.begin()
		for _, item := range items {
			adj := inventory.Adjustment{
				VariantID:      item.VariantID,
				ChangeQuantity: -item.Quantity,
				Type:           inventory.TypeOrder,
				Reason:         "order placement",
				RelatedOrderID: o.ID,
			}
			if err := s.stock.Adjust(ctx, inventoryEndpoint.BaseURL(), adj); err != nil {
				return err
			}
			res.applied(item.VariantID, item.Quantity)
		}
		res.reserved()

		if err := tx.InsertItems(ctx, o.ID, items); err != nil {
			return err
		}

		o.Items = items
		o.TotalAmount = order.ComputeTotal(items)
		return tx.FinalizeTotal(ctx, o.ID, o.TotalAmount, o.Status)
	})

	if txErr != nil {
		// Local rows are rolled back by the transaction; remote
		// decrements are undone explicitly.
		res.compensate(ctx, s.stock, inventoryEndpoint.BaseURL())
		return nil, placementError(txErr)
	}
	res.committed()

	if req.PaymentMethod != order.MethodCashOnDelivery {
		s.initiateSettlement(ctx, o, payerEmail)
	}

	return o, nil
}

// snapshotItems loads each referenced product from the local cache and takes
// the point-in-time snapshot the order keeps forever. A product missing from
// the cache surfaces as not-found: the projection may simply not have caught
// up yet.
func (s *Service) snapshotItems(ctx context.Context, reqs []ItemRequest) ([]order.OrderItem, error) {
	items := make([]order.OrderItem, 0, len(reqs))
	for _, req := range reqs {
		product, err := s.cache.GetProduct(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotInCache) {
				return nil, apperr.NotFound(fmt.Sprintf(
					"product %s not found locally, the system may still be syncing", req.ProductID))
			}
			return nil, err
		}
		variant, ok := product.Variant(req.VariantID)
		if !ok {
			return nil, apperr.NotFound(fmt.Sprintf(
				"variant %s not found on product %s", req.VariantID, req.ProductID))
		}
		items = append(items, order.OrderItem{
			ProductID:          req.ProductID,
			VariantID:          req.VariantID,
			Quantity:           req.Quantity,
			PriceAtTimeOfOrder: variant.Price,
			ProductName:        product.Name,
			ProductSKU:         variant.SKU,
			ProductImageURL:    product.PrimaryImageURL,
		})
	}
	return items, nil
}

func (s *Service) initiateSettlement(ctx context.Context, o *order.Order, payerEmail string) {
	endpoint, err := s.registry.Resolve(ctx, PaymentServiceName)
	if err != nil {
		log.Error().Str("orderId", o.ID).Err(err).
			Msg("payment service unresolvable, settlement not initiated")
		return
	}
	intent := payment.Intent{OrderID: o.ID, Amount: o.TotalAmount, UserEmail: payerEmail}
	if err := s.payments.Initiate(ctx, endpoint.BaseURL(), intent); err != nil {
		log.Error().Str("orderId", o.ID).Err(err).
			Msg("settlement initiation failed, order stays pending")
	}
}

// placementError maps transaction failures onto the API taxonomy, defaulting
// to "downstream service failed, order rolled back".
func placementError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Wrap(apperr.KindDownstream, "downstream service failed, order rolled back", err)
}

// GetOrder loads one order with its items.
func (s *Service) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if errors.Is(err, order.ErrOrderNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, "order not found", err)
	}
	return o, err
}

// UpdateStatus applies an explicit status update (ship, deliver, cancel)
// through the order's transition table.
func (s *Service) UpdateStatus(ctx context.Context, id string, target order.Status) (*order.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "order not found", err)
		}
		return nil, err
	}
	if err := o.Transition(target); err != nil {
		return nil, apperr.Wrap(apperr.KindConflict, "status update rejected", err)
	}
	if err := s.orders.UpdateStatus(ctx, id, target); err != nil {
		return nil, err
	}
	return o, nil
}
