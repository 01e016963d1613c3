// Package shop sells catalog items for coins. Coins and inventory change in
// the same compare-and-swap so a purchase is never half applied.
package shop

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/content"
	"github.com/ishyv/tx-discord-bot-sub008/internal/transition"
	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

var (
	ErrInvalidQuantity   = errors.New("shop: quantity must be positive")
	ErrUnavailable       = errors.New("shop: item is not for sale")
	ErrOutOfStock        = errors.New("shop: not enough stock")
	ErrPurchaseLimit     = errors.New("shop: purchase limit exceeded")
	ErrInsufficientFunds = errors.New("shop: insufficient funds")
	ErrStackFull         = errors.New("shop: inventory stack is full")
	ErrNotEnoughItems    = errors.New("shop: not enough items to sell")
)

// Catalog resolves store entries and their item definitions.
type Catalog interface {
	StoreItem(itemID string) (content.StoreItem, error)
	Item(id string) (content.Item, error)
}

type Receipt struct {
	ItemID  string
	Qty     int64
	Total   int64
	Hand    int64
	Holding int64
}

type Service struct {
	store   users.Store
	catalog Catalog
	logger  *zap.Logger
	hooks   transition.Hooks
	tracer  trace.Tracer
}

func New(store users.Store, catalog Catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		logger:  logger,
		hooks:   transition.LogHooks{Logger: logger},
		tracer:  otel.Tracer("txbot/shop"),
	}
}

// Buy charges the buy price of qty items from the hand of userID and adds
// them to the inventory.
func (s *Service) Buy(ctx context.Context, userID, itemID string, qty int64) (Receipt, error) {
	ctx, span := s.start(ctx, "shop.buy", userID, itemID, qty)
	defer span.End()

	if qty <= 0 {
		return Receipt{}, record(span, ErrInvalidQuantity)
	}
	entry, item, err := s.lookup(itemID)
	if err != nil {
		return Receipt{}, record(span, err)
	}
	if !entry.IsAvailable() {
		return Receipt{}, record(span, ErrUnavailable)
	}
	if stock := entry.StockLeft(); stock != content.Unlimited && qty > stock {
		return Receipt{}, record(span, fmt.Errorf("%w: %d left", ErrOutOfStock, stock))
	}
	if entry.PurchaseLimit > 0 && qty > entry.PurchaseLimit {
		return Receipt{}, record(span, fmt.Errorf("%w: at most %d", ErrPurchaseLimit, entry.PurchaseLimit))
	}
	total, err := price(entry.BuyPrice, qty)
	if err != nil {
		return Receipt{}, record(span, err)
	}

	receipt, err := s.mutate(ctx, "shop.buy", userID, itemID, func(eco *users.Economy, inv users.Inventory) error {
		if eco.Hand < total {
			return ErrInsufficientFunds
		}
		if qty > item.Stack()-inv[itemID] {
			return fmt.Errorf("%w: max %d", ErrStackFull, item.Stack())
		}
		eco.Hand -= total
		inv[itemID] += qty
		return nil
	})
	if err != nil {
		return Receipt{}, record(span, err)
	}
	receipt.Qty, receipt.Total = qty, total
	s.logger.Info("shop purchase",
		zap.String("user", userID),
		zap.String("item", itemID),
		zap.Int64("qty", qty),
		zap.Int64("total", total),
	)
	return receipt, nil
}

// Sell removes qty items from the inventory of userID and credits their
// sell price.
func (s *Service) Sell(ctx context.Context, userID, itemID string, qty int64) (Receipt, error) {
	ctx, span := s.start(ctx, "shop.sell", userID, itemID, qty)
	defer span.End()

	if qty <= 0 {
		return Receipt{}, record(span, ErrInvalidQuantity)
	}
	entry, _, err := s.lookup(itemID)
	if err != nil {
		return Receipt{}, record(span, err)
	}
	total, err := price(entry.SellPrice, qty)
	if err != nil {
		return Receipt{}, record(span, err)
	}

	receipt, err := s.mutate(ctx, "shop.sell", userID, itemID, func(eco *users.Economy, inv users.Inventory) error {
		if inv[itemID] < qty {
			return fmt.Errorf("%w: holding %d", ErrNotEnoughItems, inv[itemID])
		}
		if total > 0 && eco.Hand > math.MaxInt64-total {
			return fmt.Errorf("%w: balance would overflow", ErrInvalidQuantity)
		}
		inv[itemID] -= qty
		if inv[itemID] == 0 {
			delete(inv, itemID)
		}
		eco.Hand += total
		return nil
	})
	if err != nil {
		return Receipt{}, record(span, err)
	}
	receipt.Qty, receipt.Total = qty, total
	s.logger.Info("shop sale",
		zap.String("user", userID),
		zap.String("item", itemID),
		zap.Int64("qty", qty),
		zap.Int64("total", total),
	)
	return receipt, nil
}

// price multiplies a unit price by qty, refusing totals past the int64 range.
func price(unit, qty int64) (int64, error) {
	if unit > 0 && qty > math.MaxInt64/unit {
		return 0, fmt.Errorf("%w: total price overflows", ErrInvalidQuantity)
	}
	return unit * qty, nil
}

func (s *Service) lookup(itemID string) (content.StoreItem, content.Item, error) {
	entry, err := s.catalog.StoreItem(itemID)
	if err != nil {
		return content.StoreItem{}, content.Item{}, err
	}
	item, err := s.catalog.Item(itemID)
	if err != nil {
		return content.StoreItem{}, content.Item{}, err
	}
	return entry, item, nil
}

func (s *Service) mutate(ctx context.Context, name, userID, itemID string, fn func(eco *users.Economy, inv users.Inventory) error) (Receipt, error) {
	return users.Mutate(ctx, s.store, users.Mutation[Receipt]{
		Name:     name,
		UserID:   userID,
		Sections: []users.Section{users.SectionEconomy, users.SectionInventory},
		Apply: func(_ context.Context, current users.Patch) (users.Patch, error) {
			if *current.Inventory == nil {
				*current.Inventory = users.Inventory{}
			}
			if err := fn(current.Economy, *current.Inventory); err != nil {
				return users.Patch{}, err
			}
			return current, nil
		},
		Project: func(updated users.User, _ users.Patch) Receipt {
			return Receipt{
				ItemID:  itemID,
				Hand:    updated.Economy.Hand,
				Holding: updated.Inventory[itemID],
			}
		},
		ConflictError: "your inventory changed while processing, please try again",
		Hooks:         s.hooks,
	})
}

func (s *Service) start(ctx context.Context, name, userID, itemID string, qty int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("shop.item", itemID),
		attribute.Int64("shop.qty", qty),
	))
}

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
