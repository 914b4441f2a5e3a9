package domain

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestAggregateBlock_AddRemove(t *testing.T) {
	var b AggregateBlock

	mean, sd := b.Recompute()
	assert.Nil(t, mean)
	assert.Nil(t, sd)

	b.Add(1800)
	require.Equal(t, 1, b.Count())
	assert.InDelta(t, 1800, *b.Mean(), 1e-9)
	assert.InDelta(t, 0, *b.StdDev(), 1e-9)

	b.Add(2000)
	require.Equal(t, 2, b.Count())
	assert.InDelta(t, 1900, *b.Mean(), 1e-9)
	assert.InDelta(t, 100, *b.StdDev(), 1e-6)

	b.Remove(1800)
	require.Equal(t, 1, b.Count())
	assert.InDelta(t, 2000, *b.Mean(), 1e-9)
	assert.InDelta(t, 0, *b.StdDev(), 1e-6)

	b.Remove(2000)
	assert.Equal(t, 0, b.Count())
	assert.Nil(t, b.Mean())
	assert.Nil(t, b.StdDev())
	assert.Zero(t, b.Sum(), "empty block must not keep residual sum")
	assert.Zero(t, b.SumOfSquares(), "empty block must not keep residual sum of squares")
}

func TestAggregateBlock_RemoveFloorsAtZero(t *testing.T) {
	var b AggregateBlock
	b.Remove(1500)

	assert.Equal(t, 0, b.Count())
	assert.Zero(t, b.Sum())
	assert.Zero(t, b.SumOfSquares())
	assert.Nil(t, b.Mean())
}

func TestAggregateBlock_VarianceClamp(t *testing.T) {
	var b AggregateBlock
	for i := 0; i < 1000; i++ {
		b.Add(0.1)
	}
	require.NotNil(t, b.StdDev())
	assert.False(t, math.IsNaN(*b.StdDev()), "drift below zero must clamp, not produce NaN")
	assert.InDelta(t, 0, *b.StdDev(), 1e-6)
}

func TestAggregateBlock_MatchesRecomputation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var b AggregateBlock
	var live []float64

	for step := 0; step < 500; step++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(live))
			b.Remove(live[i])
			live = append(live[:i], live[i+1:]...)
		} else {
			v := 800 + float64(rng.Intn(2701))
			b.Add(v)
			live = append(live, v)
		}

		require.Equal(t, len(live), b.Count())
		if len(live) == 0 {
			assert.Nil(t, b.Mean())
			continue
		}
		var sum float64
		for _, v := range live {
			sum += v
		}
		want := sum / float64(len(live))
		var ss float64
		for _, v := range live {
			ss += (v - want) * (v - want)
		}
		assert.InDelta(t, want, *b.Mean(), 1e-6)
		assert.InDelta(t, math.Sqrt(ss/float64(len(live))), *b.StdDev(), 1e-3)
	}
}

func TestSeedAggregateBlock(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		mean       *float64
		stddev     *float64
		wantCount  int
		wantMean   *float64
		wantStdDev *float64
	}{
		{
			name:       "valid checkpoint",
			count:      4,
			mean:       ptr(2000),
			stddev:     ptr(150),
			wantCount:  4,
			wantMean:   ptr(2000),
			wantStdDev: ptr(150),
		},
		{
			name:      "negative count treated as empty",
			count:     -3,
			mean:      ptr(2000),
			stddev:    ptr(10),
			wantCount: 0,
		},
		{
			name:       "missing stddev reads as zero",
			count:      2,
			mean:       ptr(1700),
			wantCount:  2,
			wantMean:   ptr(1700),
			wantStdDev: ptr(0),
		},
		{
			name:       "non-finite mean reads as zero",
			count:      1,
			mean:       ptr(math.NaN()),
			stddev:     ptr(0),
			wantCount:  1,
			wantMean:   ptr(0),
			wantStdDev: ptr(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := SeedAggregateBlock(tt.count, tt.mean, tt.stddev)
			assert.Equal(t, tt.wantCount, b.Count())
			if tt.wantMean == nil {
				assert.Nil(t, b.Mean())
				assert.Nil(t, b.StdDev())
				return
			}
			require.NotNil(t, b.Mean())
			assert.InDelta(t, *tt.wantMean, *b.Mean(), 1e-9)
			assert.InDelta(t, *tt.wantStdDev, *b.StdDev(), 1e-6)
			assert.GreaterOrEqual(t, b.SumOfSquares(), 0.0)
		})
	}
}

func TestSeedAggregateBlock_ContinuesIncrementally(t *testing.T) {
	var direct AggregateBlock
	for _, v := range []float64{1600, 1800, 2300} {
		direct.Add(v)
	}

	seeded := SeedAggregateBlock(direct.Count(), direct.Mean(), direct.StdDev())
	seeded.Add(2100)
	direct.Add(2100)
	seeded.Remove(1600)
	direct.Remove(1600)

	assert.Equal(t, direct.Count(), seeded.Count())
	assert.InDelta(t, *direct.Mean(), *seeded.Mean(), 1e-6)
	assert.InDelta(t, *direct.StdDev(), *seeded.StdDev(), 1e-4)
}
