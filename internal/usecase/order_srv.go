package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storefront/internal/data/entity"
	"storefront/internal/data/repository"
	"storefront/internal/dto/request"
	"storefront/internal/dto/response"
	"storefront/pkg/database"
	"storefront/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxLineQuantity caps the merged quantity of one product in an order.
const maxLineQuantity = 10000

type OrderService interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, req *request.PlaceOrderRequest) (*response.OrderResponse, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]response.OrderResponse, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*response.OrderResponse, error)
}

type orderService struct {
	repo                 *repository.Repository
	requireVerifiedEmail bool
	commitAttempts       int
	timeout              time.Duration
	now                  func() time.Time
	log                  *zap.Logger
}

func NewOrderService(repo *repository.Repository, config *utils.Config, log *zap.Logger) OrderService {
	attempts := config.Order.CommitRetries
	if attempts < 1 {
		attempts = 1
	}
	return &orderService{
		repo:                 repo,
		requireVerifiedEmail: config.Order.RequireVerifiedEmail,
		commitAttempts:       attempts,
		timeout:              config.Database.QueryTimeout,
		now:                  time.Now,
		log:                  log.With(zap.String("service", "order")),
	}
}

type orderLine struct {
	productID uuid.UUID
	quantity  int
}

// mergeLines parses product IDs and folds repeated products into one line,
// keeping first-seen order.
func mergeLines(items []request.OrderItemRequest) ([]orderLine, error) {
	lines := make([]orderLine, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))

	for i, item := range items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, ValidationError("invalid product id", map[string]string{
				fmt.Sprintf("items[%d].product_id", i): "must be a valid UUID",
			})
		}
		if item.Quantity < 1 {
			return nil, ValidationError("invalid quantity", map[string]string{
				fmt.Sprintf("items[%d].quantity", i): "must be at least 1",
			})
		}
		if item.Quantity > maxLineQuantity {
			return nil, ValidationError("invalid quantity", map[string]string{
				fmt.Sprintf("items[%d].quantity", i): fmt.Sprintf("must not exceed %d", maxLineQuantity),
			})
		}
		if pos, ok := index[id]; ok {
			if lines[pos].quantity > maxLineQuantity-item.Quantity {
				return nil, ValidationError("invalid quantity", map[string]string{
					fmt.Sprintf("items[%d].quantity", i): fmt.Sprintf("must not exceed %d per product", maxLineQuantity),
				})
			}
			lines[pos].quantity += item.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, orderLine{productID: id, quantity: item.Quantity})
	}

	return lines, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, userID uuid.UUID, req *request.PlaceOrderRequest) (*response.OrderResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, ValidationError("validation failed", errs)
	}

	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	if s.requireVerifiedEmail {
		user, err := s.repo.User.FindByID(ctx, userID)
		if err != nil {
			return nil, StoreUnavailable(err)
		}
		if user == nil {
			return nil, NotFoundError("user not found")
		}
		if !user.EmailVerified {
			return nil, ForbiddenError("email must be verified before placing orders")
		}
	}

	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		ids[i] = line.productID
	}

	products, err := s.repo.Product.FindByIDs(ctx, ids)
	if err != nil {
		return nil, StoreUnavailable(err)
	}

	// Pre-check against live stock and snapshot prices. The guarded
	// decrement below is what actually holds the stock invariant.
	now := s.now()
	order := &entity.Order{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		UserID:          userID,
		ShippingAddress: req.ShippingAddress,
		Status:          entity.OrderStatusPending,
		TotalPrice:      decimal.Zero,
		Items:           make([]*entity.OrderItem, 0, len(lines)),
	}

	for _, line := range lines {
		product, ok := products[line.productID]
		if !ok {
			return nil, NotFoundError(fmt.Sprintf("product %s not found", line.productID))
		}
		if product.Stock < line.quantity {
			return nil, InsufficientStockError(fmt.Sprintf(
				"insufficient stock for %s: available %d, requested %d",
				product.Name, product.Stock, line.quantity,
			))
		}

		snapshot := *product
		snapshot.Stock -= line.quantity
		item := &entity.OrderItem{
			BaseSimple: entity.BaseSimple{
				ID:        uuid.New(),
				CreatedAt: now,
			},
			OrderID:   order.ID,
			ProductID: product.ID,
			Quantity:  line.quantity,
			Price:     product.Price,
			Product:   &snapshot,
		}
		order.Items = append(order.Items, item)
		order.TotalPrice = order.TotalPrice.Add(item.Subtotal())
	}

	if err := s.commit(ctx, order); err != nil {
		return nil, err
	}

	s.log.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.TotalPrice.StringFixed(2)),
	)

	resp := response.OrderToResponse(order)
	return &resp, nil
}

// commit writes the order and decrements stock atomically, retrying the
// whole transaction on serialization failures and deadlocks.
func (s *orderService) commit(ctx context.Context, order *entity.Order) error {
	// Decrement in a fixed product order so concurrent orders lock rows
	// in the same sequence.
	decrements := make([]*entity.OrderItem, len(order.Items))
	copy(decrements, order.Items)
	sort.Slice(decrements, func(i, j int) bool {
		return bytes.Compare(decrements[i].ProductID[:], decrements[j].ProductID[:]) < 0
	})

	var err error
	for attempt := 1; attempt <= s.commitAttempts; attempt++ {
		err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			for _, item := range decrements {
				if err := s.repo.Product.DecrementStock(txCtx, item.ProductID, item.Quantity); err != nil {
					if errors.Is(err, repository.ErrInsufficientStock) {
						return InsufficientStockError(fmt.Sprintf(
							"insufficient stock for %s: requested %d",
							item.Product.Name, item.Quantity,
						))
					}
					return err
				}
			}
			return s.repo.Order.CreateWithItems(txCtx, order)
		})

		if err == nil || !database.IsRetryable(err) {
			break
		}

		s.log.Warn("Retrying order commit",
			zap.Error(err),
			zap.String("order_id", order.ID.String()),
			zap.Int("attempt", attempt),
		)
	}

	var appErr *AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		s.log.Warn("Order rejected at commit",
			zap.String("order_id", order.ID.String()),
			zap.String("reason", appErr.Message),
		)
		return appErr
	default:
		s.log.Error("Failed to commit order",
			zap.Error(err),
			zap.String("order_id", order.ID.String()),
		)
		return StoreUnavailable(err)
	}
}

func (s *orderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]response.OrderResponse, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	orders, err := s.repo.Order.FindByUserID(ctx, userID)
	if err != nil {
		return nil, StoreUnavailable(err)
	}

	return response.OrdersToResponse(orders), nil
}

func (s *orderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*response.OrderResponse, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	order, err := s.repo.Order.FindByID(ctx, orderID)
	if err != nil {
		return nil, StoreUnavailable(err)
	}
	if order == nil {
		return nil, NotFoundError("order not found")
	}
	if order.UserID != userID {
		s.log.Warn("Order access denied",
			zap.String("order_id", orderID.String()),
			zap.String("user_id", userID.String()),
		)
		return nil, ForbiddenError("you do not have access to this order")
	}

	resp := response.OrderToResponse(order)
	return &resp, nil
}
