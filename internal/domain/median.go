package domain

import "sort"

// Median returns the statistical median of values, or nil when values is
// empty. Odd-length input yields the middle element; even-length input
// yields the mean of the two middle elements.
//
// values is sorted in place. Time complexity is O(n log n).
func Median(values []float64) *float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	sort.Float64s(values)
	var m float64
	if n%2 == 1 {
		m = values[n/2]
	} else {
		m = (values[n/2-1] + values[n/2]) / 2
	}
	return &m
}
