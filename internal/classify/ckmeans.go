// Package classify computes natural-break class thresholds and maps values
// onto class indices.
package classify

import (
	"math"
	"sort"
)

// Ckmeans partitions values into k groups minimizing the total within-group
// sum of squared deviations. The result is optimal in one dimension and
// deterministic: groups are returned in ascending order and, between equally
// good partitions, the one with the leftmost split wins.
//
// k is clamped to the number of distinct values. Empty input or k < 1 yields nil.
func Ckmeans(values []float64, k int) [][]float64 {
	if len(values) == 0 || k < 1 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if d := distinct(sorted); k > d {
		k = d
	}
	n := len(sorted)
	if k == 1 {
		return [][]float64{sorted}
	}

	// prefix sums taken about the median
	shift := sorted[n/2]
	sum := make([]float64, n+1)
	sumSq := make([]float64, n+1)
	for i, v := range sorted {
		d := v - shift
		sum[i+1] = sum[i] + d
		sumSq[i+1] = sumSq[i] + d*d
	}
	ssq := func(j, i int) float64 {
		s := sum[i+1] - sum[j]
		c := sumSq[i+1] - sumSq[j] - s*s/float64(i-j+1)
		if c < 0 {
			return 0
		}
		return c
	}

	cost := make([][]float64, k)
	split := make([][]int, k)
	for c := range k {
		cost[c] = make([]float64, n)
		split[c] = make([]int, n)
	}
	for i := range n {
		cost[0][i] = ssq(0, i)
	}

	for c := 1; c < k; c++ {
		for i := c; i < n; i++ {
			best := math.Inf(1)
			bestJ := c
			for j := c; j <= i; j++ {
				v := cost[c-1][j-1] + ssq(j, i)
				if v < best {
					best = v
					bestJ = j
				}
			}
			cost[c][i] = best
			split[c][i] = bestJ
		}
	}

	clusters := make([][]float64, k)
	right := n - 1
	for c := k - 1; c >= 0; c-- {
		left := split[c][right]
		clusters[c] = sorted[left : right+1]
		right = left - 1
	}
	return clusters
}

// SumSquares is the total within-group sum of squared deviations.
func SumSquares(clusters [][]float64) float64 {
	var total float64
	for _, cl := range clusters {
		if len(cl) == 0 {
			continue
		}
		var mean float64
		for _, v := range cl {
			mean += v
		}
		mean /= float64(len(cl))
		for _, v := range cl {
			total += (v - mean) * (v - mean)
		}
	}
	return total
}

// distinct counts distinct values in sorted input.
func distinct(sorted []float64) int {
	if len(sorted) == 0 {
		return 0
	}
	n := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			n++
		}
	}
	return n
}
