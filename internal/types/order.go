package types

import "time"

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType distinguishes market from limit orders (§3).
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Tag values the Portfolio/Grid Manager attaches to orders it enqueues, so the
// executor and logs can tell intent apart without re-deriving it.
const (
	TagExitFlatten = "EXIT_FLATTEN"
	TagGridEntry1  = "GRID_ENTRY_1"
	TagGridEntryN  = "GRID_ENTRY_N"
)

// Order is the unit the Portfolio/Grid Manager pushes to the order channel
// and the Order Executor consumes (§3).
type Order struct {
	ID       string    `json:"id"`
	Symbol   Symbol    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Type     OrderType `json:"type"`
	Quantity float64   `json:"qty"`
	Price    float64   `json:"price,omitempty"` // required iff Type == LIMIT
	Tag      string    `json:"tag,omitempty"`
}

// FillConfirmation is pushed into an agent's fill channel by the Order Executor (§3).
type FillConfirmation struct {
	Symbol   Symbol    `json:"symbol"`
	OrderID  string    `json:"order_id"`
	Side     OrderSide `json:"side"`
	Quantity float64   `json:"qty"`
	Price    float64   `json:"price"`
	Tag      string    `json:"tag,omitempty"`
	Time     time.Time `json:"time"`
}

// NewMarketOrder builds a MARKET order with the given tag.
func NewMarketOrder(id string, symbol Symbol, side OrderSide, qty float64, tag string) Order {
	return Order{ID: id, Symbol: symbol, Side: side, Type: OrderTypeMarket, Quantity: qty, Tag: tag}
}

// NewLimitOrder builds a LIMIT order resting at price.
func NewLimitOrder(id string, symbol Symbol, side OrderSide, qty, price float64, tag string) Order {
	return Order{ID: id, Symbol: symbol, Side: side, Type: OrderTypeLimit, Quantity: qty, Price: price, Tag: tag}
}
