package gacha

import (
	"math"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stats summarizes integer samples.
type Stats struct {
	Mean   float64 `json:"mean"`
	Var    float64 `json:"var"`
	StdDev float64 `json:"stddev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
	// raw samples for callers that want histograms
	Samples []int `json:"-"`
}

// summarize reports mean, population variance and interpolated
// percentiles of the samples.
func summarize(samples []int) Stats {
	n := len(samples)
	if n == 0 {
		return Stats{}
	}
	total := 0
	for _, v := range samples {
		total += v
	}
	mean := float64(total) / float64(n)

	var sq float64
	for _, v := range samples {
		sq += (float64(v) - mean) * (float64(v) - mean)
	}
	variance := sq / float64(n)

	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	at := func(q float64) float64 {
		rank := q * float64(n-1)
		lo := int(rank)
		if lo >= n-1 {
			return float64(sorted[n-1])
		}
		frac := rank - float64(lo)
		return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
	}

	return Stats{
		Mean:    mean,
		Var:     variance,
		StdDev:  math.Sqrt(variance),
		P50:     at(0.50),
		P90:     at(0.90),
		P99:     at(0.99),
		Samples: samples,
	}
}

// SimParams describes one simulation run.
type SimParams struct {
	Trials        int
	PullsPerTrial int
}

// SimulationReport is the aggregate of a simulation run.
type SimulationReport struct {
	Banner     string             `json:"banner"`
	Trials     int                `json:"trials"`
	Pulls      int                `json:"pulls"`
	TierHits   map[string]int     `json:"tier_hits"`
	TierRates  map[string]float64 `json:"tier_rates"`
	PityHits   int                `json:"pity_hits"`
	TopTier    string             `json:"top_tier"`
	TopHits    int                `json:"top_hits"`
	Featured   int                `json:"featured"`
	Lost       int                `json:"lost"`
	Guaranteed int                `json:"guaranteed"`
	Failed     int                `json:"failed"`
	// pulls until the first top-tier hit, over trials that hit it
	FirstTop Stats `json:"first_top"`
}

// topTier is the tier the report tracks: the special mechanic's top tier
// when one is enabled, otherwise the rarest tier.
func topTier(b *Banner) *Tier {
	for _, m := range []Mechanic{b.featuredWeapon, b.fiftyFifty} {
		if !m.Enabled {
			continue
		}
		if t, ok := b.Tier(m.TopTier); ok {
			return t
		}
	}
	if len(b.tiers) == 0 {
		return nil
	}
	return b.tiers[0].value
}

// Simulate opens PullsPerTrial pulls for Trials fresh players and
// aggregates what they got. It never mutates the banner.
func Simulate(b *Banner, params SimParams, rng RandomSource) (SimulationReport, error) {
	if b == nil {
		return SimulationReport{}, ErrNilBanner
	}
	rep := SimulationReport{
		Banner:    b.Name(),
		Trials:    max(params.Trials, 0),
		TierHits:  make(map[string]int),
		TierRates: make(map[string]float64),
	}
	top := topTier(b)
	if top != nil {
		rep.TopTier = top.Name()
	}
	r := NewResolver(rng, zap.NewNop())
	var firsts []int
	for range rep.Trials {
		p := NewPlayerState(uuid.Nil)
		first := 0
		for i := range max(params.PullsPerTrial, 0) {
			res, err := r.Pull(b, p)
			if err != nil {
				rep.Failed++
				continue
			}
			rep.Pulls++
			rep.TierHits[res.Tier.Name()]++
			if res.PityTriggered {
				rep.PityHits++
			}
			if res.Tier != top {
				continue
			}
			rep.TopHits++
			if first == 0 {
				first = i + 1
			}
			switch res.Outcome {
			case OutcomeFeaturedWon, OutcomeFeaturedWeapon:
				rep.Featured++
			case OutcomeFeaturedGuaranteed:
				rep.Featured++
				rep.Guaranteed++
			case OutcomeFeaturedLost:
				rep.Lost++
			}
		}
		if first > 0 {
			firsts = append(firsts, first)
		}
	}
	for name, n := range rep.TierHits {
		if rep.Pulls > 0 {
			rep.TierRates[name] = float64(n) / float64(rep.Pulls)
		}
	}
	rep.FirstTop = summarize(firsts)
	return rep, nil
}
