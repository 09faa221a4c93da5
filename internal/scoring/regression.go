// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package scoring

import "math"

// YearNDVI is one point in a historical NDVI vintage sequence.
type YearNDVI struct {
	Year int
	NDVI float64
}

// NDVISequence is a pull-based iterator over (year, NDVI) pairs, matching
// the historical STAC client's lazy, restartable, deduplicated sequence.
// Next returns ok=false once exhausted; the pull after that starts over.
type NDVISequence func() (point YearNDVI, ok bool)

// CollectDedup drains seq, keeping the first reading seen for each year
// (tile-boundary duplicates yield a second item for the same year; the
// first one wins).
func CollectDedup(seq NDVISequence) []YearNDVI {
	seen := make(map[int]bool)

	var points []YearNDVI

	for {
		p, ok := seq()
		if !ok {
			break
		}

		if seen[p.Year] {
			continue
		}

		seen[p.Year] = true
		points = append(points, p)
	}

	return points
}

// SlopeRegression computes the manual closed-form OLS slope of NDVI over
// year. ok is false when the slope is undefined: fewer than two distinct
// years, or zero variance in year (all points share one year).
func SlopeRegression(points []YearNDVI) (slope float64, ok bool) {
	n := len(points)
	if n < 2 {
		return 0, false
	}

	var sumX, sumY float64

	for _, p := range points {
		sumX += float64(p.Year)
		sumY += p.NDVI
	}

	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var num, den float64

	for _, p := range points {
		dx := float64(p.Year) - meanX
		dy := p.NDVI - meanY
		num += dx * dy
		den += dx * dx
	}

	if den == 0 {
		return 0, false
	}

	slope = num / den
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0, false
	}

	return slope, true
}
