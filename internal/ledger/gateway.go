package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// Order is an all-or-nothing market order. Partial fills and order books
// belong to the real gateway behind this interface, not to the ledger.
type Order struct {
	Symbol   string
	Side     OrderSide
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

type Fill struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Fee      decimal.Decimal
}

// OrderGateway executes orders. Paper mode fills in-process; a live gateway
// implements the same contract against an exchange.
type OrderGateway interface {
	Submit(ctx context.Context, order Order) (Fill, error)
}

// PaperGateway simulates instantaneous all-or-nothing fills at the requested
// price, charging a proportional fee. No network involved.
type PaperGateway struct {
	feeRate decimal.Decimal
}

func NewPaperGateway(feeRate float64) *PaperGateway {
	if feeRate < 0 {
		feeRate = 0
	}
	return &PaperGateway{feeRate: decimal.NewFromFloat(feeRate)}
}

func (g *PaperGateway) Submit(_ context.Context, order Order) (Fill, error) {
	if order.Quantity.LessThanOrEqual(decimal.Zero) {
		return Fill{}, fmt.Errorf("paper gateway: quantity must be positive")
	}
	if order.Price.LessThanOrEqual(decimal.Zero) {
		return Fill{}, fmt.Errorf("paper gateway: price must be positive")
	}
	notional := order.Quantity.Mul(order.Price)
	return Fill{
		Price:    order.Price,
		Quantity: order.Quantity,
		Fee:      notional.Mul(g.feeRate),
	}, nil
}
