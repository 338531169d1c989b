package book

import "github.com/tidwall/btree"

// InvariantViolation is raised by panic when a self-check inside the
// matching loop fails. It must never occur if the algorithm is
// implemented as specified; the Matching Engine treats it as fatal.
type InvariantViolation struct{ Msg string }

func (e *InvariantViolation) Error() string {
	return "book: internal invariant violated: " + e.Msg
}

// priceLevel holds every resting order at one price, in FIFO submission
// order. Consumption slices off a prefix rather than shifting tail
// elements, mirroring the teacher's sweep technique.
type priceLevel struct {
	price  Price
	orders []*Order
}

type priceLevels = btree.BTreeG[*priceLevel]

// OrderBook is the price-indexed matching core. It is not safe for
// concurrent use — per the concurrency model, it is touched only by the
// single Matching Engine goroutine that owns it, so no lock guards it.
type OrderBook struct {
	bids *priceLevels // sorted highest price first
	asks *priceLevels // sorted lowest price first

	nBids, nAsks int

	clock *Clock
}

// NewOrderBook constructs an empty book. clock supplies the Mono
// timestamp stamped on each Trade at match time.
func NewOrderBook(clock *Clock) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price > b.price
	})
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price < b.price
	})
	return &OrderBook{
		bids:  bids,
		asks:  asks,
		clock: clock,
	}
}

// Place inserts order into its side and runs the matching loop until the
// book is no longer crossed, returning every trade this call produced.
// The book is left untouched if order is invalid.
func (b *OrderBook) Place(order Order) ([]Trade, error) {
	if order.Quantity == 0 || order.Price <= 0 {
		return nil, ErrInvalidOrder
	}

	o := order
	b.insert(&o)

	return b.match(), nil
}

func (b *OrderBook) insert(o *Order) {
	var levels *priceLevels
	switch o.Side {
	case Buy:
		levels = b.bids
		b.nBids++
	case Sell:
		levels = b.asks
		b.nAsks++
	}

	if level, ok := levels.GetMut(&priceLevel{price: o.Price}); ok {
		level.orders = append(level.orders, o)
		return
	}
	levels.Set(&priceLevel{price: o.Price, orders: []*Order{o}})
}

// match runs the central crossing loop: consume the head of bids and
// asks while they cross, emitting one Trade per pair consumed and
// removing exhausted orders and exhausted levels.
func (b *OrderBook) match() []Trade {
	var trades []Trade

	for {
		bestBid, bidOK := b.bids.MinMut()
		bestAsk, askOK := b.asks.MinMut()
		if !bidOK || !askOK || bestBid.price < bestAsk.price {
			break
		}

		buy := bestBid.orders[0]
		sell := bestAsk.orders[0]

		tradedQty := min(buy.Quantity, sell.Quantity)
		if tradedQty > buy.Quantity || tradedQty > sell.Quantity {
			panic(&InvariantViolation{Msg: "traded quantity exceeds a resting order's residual"})
		}

		// The trade price is the resting counter-party's limit: the
		// order with the earlier SubmittedAt arrived first.
		tradePrice := sell.Price
		if buy.SubmittedAt < sell.SubmittedAt {
			tradePrice = buy.Price
		}

		trades = append(trades, Trade{
			BuyOrderID:  buy.ID,
			SellOrderID: sell.ID,
			Price:       tradePrice,
			Quantity:    tradedQty,
			ExecutedAt:  b.clock.Now(),
		})

		buy.Quantity -= tradedQty
		sell.Quantity -= tradedQty

		if buy.Quantity == 0 {
			bestBid.orders = bestBid.orders[1:]
			b.nBids--
		}
		if sell.Quantity == 0 {
			bestAsk.orders = bestAsk.orders[1:]
			b.nAsks--
		}
		if len(bestBid.orders) == 0 {
			b.bids.Delete(bestBid)
		}
		if len(bestAsk.orders) == 0 {
			b.asks.Delete(bestAsk)
		}
	}

	return trades
}

// BestBid returns the best resting bid price, if any.
func (b *OrderBook) BestBid() (Price, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// BestAsk returns the best resting ask price, if any.
func (b *OrderBook) BestAsk() (Price, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// Depth returns the number of resting orders on the given side.
func (b *OrderBook) Depth(side Side) int {
	if side == Buy {
		return b.nBids
	}
	return b.nAsks
}
