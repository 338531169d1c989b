// Package dispatch composes Trade Dispatch observers into the single
// callback slot the Matching Engine invokes synchronously at each match.
package dispatch

import "ironbook/internal/book"

// Chain composes fns into a single callback that invokes each in order.
// This is how multiple observers (the trade log, a console printer, an
// optional Kafka publisher) share the engine's one configured slot.
func Chain(fns ...func(book.Trade)) func(book.Trade) {
	return func(t book.Trade) {
		for _, fn := range fns {
			fn(t)
		}
	}
}
