package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCosts(t *testing.T) {
	c := DefaultCosts()
	assert.Equal(t, 0.001, c.CommissionRate)
	assert.Equal(t, 0.0005, c.SlippageRate)
	assert.NoError(t, c.Validate())
}

func TestCostModelQuote(t *testing.T) {
	t.Parallel()

	c, err := NewCostModel(0.001, 0.0005)
	require.NoError(t, err)

	comm, slip, err := c.Quote(10_000)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, comm, 1e-12)
	assert.InDelta(t, 5.0, slip, 1e-12)

	comm, slip, err = c.Quote(0)
	require.NoError(t, err)
	assert.Zero(t, comm)
	assert.Zero(t, slip)

	_, _, err = c.Quote(-1)
	assert.Error(t, err)
	_, _, err = c.Quote(math.NaN())
	assert.Error(t, err)
}

func TestNewCostModelRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		commission float64
		slippage   float64
		wantErr    bool
	}{
		{"zero", 0, 0, false},
		{"defaults", 0.001, 0.0005, false},
		{"just under one", 0.999, 0.999, false},
		{"commission one", 1, 0, true},
		{"negative slippage", 0, -0.01, true},
		{"nan commission", math.NaN(), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCostModel(tt.commission, tt.slippage)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
