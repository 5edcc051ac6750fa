package services

import (
	"fmt"
)

// Unbounded marks the final tier, which applies to any length above every
// bounded tier.
const Unbounded = -1

// PriceTier pairs an upper content-length bound with a price. A length
// exactly equal to the bound belongs to this tier, not the next one.
type PriceTier struct {
	UpperBound int
	Price      int64
}

// DefaultTiers returns the stock tier table: short texts are cleaned for
// free, longer content pays progressively more.
func DefaultTiers() []PriceTier {
	return []PriceTier{
		{UpperBound: 500, Price: 0},
		{UpperBound: 1000, Price: 10},
		{UpperBound: 10000, Price: 25},
		{UpperBound: Unbounded, Price: 50},
	}
}

// PricingService resolves a content length to a price. The tier table is
// validated once at construction and read-only afterwards, so lookups need
// no locking.
type PricingService struct {
	tiers    []PriceTier
	currency string
}

func NewPricingService(tiers []PriceTier, currency string) (*PricingService, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("pricing: tier table is empty")
	}
	last := tiers[len(tiers)-1]
	if last.UpperBound != Unbounded {
		return nil, fmt.Errorf("pricing: final tier must be unbounded, got bound %d", last.UpperBound)
	}
	prevBound := 0
	var prevPrice int64
	for i, t := range tiers {
		if t.Price < 0 {
			return nil, fmt.Errorf("pricing: tier %d has negative price %d", i, t.Price)
		}
		if i > 0 && t.Price < prevPrice {
			return nil, fmt.Errorf("pricing: tier %d price %d below previous tier price %d", i, t.Price, prevPrice)
		}
		prevPrice = t.Price
		if t.UpperBound == Unbounded {
			if i != len(tiers)-1 {
				return nil, fmt.Errorf("pricing: unbounded tier %d is not last", i)
			}
			continue
		}
		if t.UpperBound <= prevBound && i > 0 {
			return nil, fmt.Errorf("pricing: tier %d bound %d not above previous bound %d", i, t.UpperBound, prevBound)
		}
		if t.UpperBound <= 0 {
			return nil, fmt.Errorf("pricing: tier %d has non-positive bound %d", i, t.UpperBound)
		}
		prevBound = t.UpperBound
	}
	return &PricingService{tiers: tiers, currency: currency}, nil
}

// PriceFor returns the price of the first tier whose upper bound is at
// least length. Equality favors the lower, cheaper tier. The result is
// deterministic for equal lengths.
func (s *PricingService) PriceFor(length int) int64 {
	for _, t := range s.tiers {
		if t.UpperBound == Unbounded || length <= t.UpperBound {
			return t.Price
		}
	}
	// Unreachable: construction guarantees a final unbounded tier.
	return s.tiers[len(s.tiers)-1].Price
}

// Currency returns the currency unit invoices are issued in.
func (s *PricingService) Currency() string {
	return s.currency
}
