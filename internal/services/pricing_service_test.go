package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingService_PriceFor(t *testing.T) {
	svc, err := NewPricingService(DefaultTiers(), "XTR")
	require.NoError(t, err)

	// Boundary tie-break: equality belongs to the lower, cheaper tier.
	assert.Equal(t, int64(0), svc.PriceFor(0))
	assert.Equal(t, int64(0), svc.PriceFor(500))
	assert.Equal(t, int64(10), svc.PriceFor(501))
	assert.Equal(t, int64(10), svc.PriceFor(1000))
	assert.Equal(t, int64(25), svc.PriceFor(1001))
	assert.Equal(t, int64(25), svc.PriceFor(10000))
	assert.Equal(t, int64(50), svc.PriceFor(10001))
	assert.Equal(t, int64(50), svc.PriceFor(1_000_000))

	// Stable across calls for the same length.
	assert.Equal(t, svc.PriceFor(777), svc.PriceFor(777))
}

func TestNewPricingService_Validation(t *testing.T) {
	_, err := NewPricingService(nil, "XTR")
	assert.Error(t, err)

	// Final tier must be unbounded.
	_, err = NewPricingService([]PriceTier{{UpperBound: 100, Price: 0}}, "XTR")
	assert.Error(t, err)

	// Bounds must be strictly increasing.
	_, err = NewPricingService([]PriceTier{
		{UpperBound: 1000, Price: 0},
		{UpperBound: 500, Price: 10},
		{UpperBound: Unbounded, Price: 20},
	}, "XTR")
	assert.Error(t, err)

	// Prices must be non-decreasing.
	_, err = NewPricingService([]PriceTier{
		{UpperBound: 500, Price: 10},
		{UpperBound: 1000, Price: 5},
		{UpperBound: Unbounded, Price: 20},
	}, "XTR")
	assert.Error(t, err)

	// Unbounded tier anywhere but last is rejected.
	_, err = NewPricingService([]PriceTier{
		{UpperBound: Unbounded, Price: 0},
		{UpperBound: 500, Price: 10},
	}, "XTR")
	assert.Error(t, err)
}
