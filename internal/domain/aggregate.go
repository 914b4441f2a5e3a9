package domain

import "math"

// AggregateBlock tracks count, sum and sum of squares for one metric of
// one problem so that mean and standard deviation can be maintained in
// O(1) per vote mutation.
//
// Invariants:
//   - count is never negative.
//   - sumSq is never negative.
//   - when count is zero, sum and sumSq are exactly zero and Mean/StdDev
//     report nil.
//
// Remove must be called with the exact value previously passed to Add;
// the block does not remember individual values.
//
// AggregateBlock is not safe for concurrent use; the owning ledger
// serializes access.
type AggregateBlock struct {
	count int
	sum   float64
	sumSq float64

	mean   *float64
	stddev *float64
}

// SeedAggregateBlock reconstructs a block from a persisted checkpoint.
// The summary is treated as untrusted: a negative count is clamped to zero,
// missing or non-finite mean and stddev are read as zero, and the derived
// sum of squares is never negative.
func SeedAggregateBlock(count int, mean, stddev *float64) AggregateBlock {
	var b AggregateBlock
	if count <= 0 {
		return b
	}
	m := finiteOrZero(mean)
	sd := finiteOrZero(stddev)
	b.count = count
	b.sum = m * float64(count)
	b.sumSq = math.Max(0, (sd*sd+m*m)*float64(count))
	b.Recompute()
	return b
}

func finiteOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}

// Add folds value into the block and refreshes the derived statistics.
func (b *AggregateBlock) Add(value float64) {
	b.count++
	b.sum += value
	b.sumSq += value * value
	b.Recompute()
}

// Remove reverses a prior Add of the same value. Count is floored at zero
// and the sum of squares never goes negative.
func (b *AggregateBlock) Remove(value float64) {
	if b.count > 0 {
		b.count--
	}
	b.sum -= value
	b.sumSq = math.Max(0, b.sumSq-value*value)
	b.Recompute()
}

// Reset clears the block to the empty state.
func (b *AggregateBlock) Reset() {
	*b = AggregateBlock{}
}

// Recompute derives mean and standard deviation from the running sums.
// Variance drift below zero is clamped. An empty block zeroes its sums so
// floating-point residue cannot leak into later additions.
func (b *AggregateBlock) Recompute() (mean, stddev *float64) {
	if b.count <= 0 {
		b.count = 0
		b.sum = 0
		b.sumSq = 0
		b.mean = nil
		b.stddev = nil
		return nil, nil
	}
	n := float64(b.count)
	m := b.sum / n
	variance := math.Max(0, b.sumSq/n-m*m)
	sd := math.Sqrt(variance)
	b.mean = &m
	b.stddev = &sd
	return b.Mean(), b.StdDev()
}

// Count returns the number of values currently folded into the block.
func (b *AggregateBlock) Count() int { return b.count }

// Sum returns the running sum.
func (b *AggregateBlock) Sum() float64 { return b.sum }

// SumOfSquares returns the running sum of squares.
func (b *AggregateBlock) SumOfSquares() float64 { return b.sumSq }

// Mean returns a copy of the current mean, or nil for an empty block.
func (b *AggregateBlock) Mean() *float64 { return copyFloat(b.mean) }

// StdDev returns a copy of the current population standard deviation, or
// nil for an empty block.
func (b *AggregateBlock) StdDev() *float64 { return copyFloat(b.stddev) }

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
