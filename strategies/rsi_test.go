package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSICrossHoldsBetweenCrosses(t *testing.T) {
	// RSI(2): 0, 0, 50, 75, 87.5, 93.75, 46.9, 23.4 from the third bar on
	h := history(t, map[string][]float64{"AAA": {10, 9, 8, 7, 8, 9, 10, 11, 10, 9}})

	s, err := NewRSICross(2, 30, 70)
	require.NoError(t, err)

	sig, err := s.GenerateSignals(h)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 1, 0, 0}, row(t, sig, "AAA", h.Len()))
}

func TestRSICrossNeverShorts(t *testing.T) {
	h := history(t, map[string][]float64{"AAA": {50, 40, 30, 20, 10, 5, 4, 3, 2, 1}})

	s, err := NewRSICross(3, 30, 70)
	require.NoError(t, err)

	sig, err := s.GenerateSignals(h)
	require.NoError(t, err)
	for i, v := range row(t, sig, "AAA", h.Len()) {
		assert.GreaterOrEqual(t, v, 0, "bar %d", i)
	}
}
