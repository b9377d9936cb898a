package gacha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	s := summarize([]int{1, 2, 3, 4, 5})
	assert.InDelta(t, 3.0, s.Mean, 1e-9)
	assert.InDelta(t, 2.0, s.Var, 1e-9)
	assert.InDelta(t, 3.0, s.P50, 1e-9)
	assert.InDelta(t, 4.6, s.P90, 1e-9)

	assert.Equal(t, Stats{}, summarize(nil))
	one := summarize([]int{7})
	assert.Equal(t, 7.0, one.P99)
}

func TestSimulateFiftyFifty(t *testing.T) {
	b := mkBanner(t, "Limited", wishTiers(), withFiftyFifty("crown"))
	rep, err := Simulate(b, SimParams{Trials: 200, PullsPerTrial: 90}, NewSeededRNG(2024))
	require.NoError(t, err)

	assert.Equal(t, "five-star", rep.TopTier)
	assert.Equal(t, 200*90, rep.Pulls)
	assert.Zero(t, rep.Failed)
	assert.Equal(t, rep.TopHits, rep.Featured+rep.Lost)
	assert.Positive(t, rep.Guaranteed)
	assert.LessOrEqual(t, rep.Guaranteed, rep.Lost)
	// hard pity at 10 bounds pulls to the first top hit
	assert.LessOrEqual(t, rep.FirstTop.P99, 10.0)

	sum := 0.0
	for _, r := range rep.TierRates {
		sum += r
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestSimulateNilBanner(t *testing.T) {
	_, err := Simulate(nil, SimParams{Trials: 1, PullsPerTrial: 1}, nil)
	assert.ErrorIs(t, err, ErrNilBanner)
}
