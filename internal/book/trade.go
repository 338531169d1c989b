package book

import "fmt"

// Trade is an immutable record of one execution. It is created by the
// book at match time and handed to the trade dispatch callback; nothing
// in this package retains a reference to it afterward.
type Trade struct {
	BuyOrderID  uint64
	SellOrderID uint64
	Price       Price
	Quantity    uint32
	ExecutedAt  Mono
}

func (t Trade) String() string {
	return fmt.Sprintf("Trade{buy=%d sell=%d price=%s qty=%d}", t.BuyOrderID, t.SellOrderID, t.Price, t.Quantity)
}
