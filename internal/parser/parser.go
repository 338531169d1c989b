// Package parser turns a line of JSON order intake text into a
// validated book.Order, assigning monotonically increasing ids.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"ironbook/internal/book"
)

// wireOrder is the JSON shape accepted at the intake boundary (spec §6):
// side (case-insensitive string), price (number), quantity (integer).
type wireOrder struct {
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Quantity uint32  `json:"quantity"`
}

// Parser assigns ids from a private atomic counter. Ids are unique
// within one Parser instance only — the core does not enforce global
// uniqueness (spec §9's open question) — so a deployment wanting ids
// unique across multiple front ends shares one Parser between them.
type Parser struct {
	clock  *book.Clock
	nextID atomic.Uint64
}

// New constructs a Parser that stamps SubmittedAt from clock and hands
// out ids starting at 1.
func New(clock *book.Clock) *Parser {
	return &Parser{clock: clock}
}

// Parse converts one line of JSON into a book.Order. It returns an
// error and no Order on any malformed input; the caller is expected to
// surface the error to the producer, not to submit a zero-value Order.
func (p *Parser) Parse(line string) (book.Order, error) {
	var w wireOrder
	dec := json.NewDecoder(strings.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return book.Order{}, fmt.Errorf("parser: malformed order: %w", err)
	}

	side, err := parseSide(w.Side)
	if err != nil {
		return book.Order{}, err
	}

	if w.Quantity == 0 {
		return book.Order{}, fmt.Errorf("parser: quantity must be positive")
	}

	price, err := book.ParsePrice(w.Price)
	if err != nil {
		return book.Order{}, fmt.Errorf("parser: %w", err)
	}
	if price <= 0 {
		return book.Order{}, fmt.Errorf("parser: price must be positive")
	}

	return book.Order{
		ID:          p.nextID.Add(1),
		Side:        side,
		Price:       price,
		Quantity:    w.Quantity,
		SubmittedAt: p.clock.Now(),
	}, nil
}

func parseSide(s string) (book.Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return book.Buy, nil
	case "sell":
		return book.Sell, nil
	default:
		return 0, fmt.Errorf("parser: invalid order side %q", s)
	}
}
