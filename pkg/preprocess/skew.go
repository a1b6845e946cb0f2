package preprocess

import (
	"math"
	"slices"
)

const (
	// skewLineLimit caps how many of the strongest Hough lines vote.
	skewLineLimit = 10
	// maxSkewAngle discards near-vertical lines such as table borders.
	maxSkewAngle = 45.0
	// levelTolerance is the deviation below which a page counts as level.
	levelTolerance = 0.5
)

// EstimateSkew derives the page rotation from Hough lines ordered strongest
// first. The returned angle is the median deviation from horizontal in
// degrees; rotating the page by it levels the text. ok is false when no line
// qualifies or when the page is already level.
func EstimateSkew(lines []PolarLine) (angle float64, ok bool) {
	if len(lines) > skewLineLimit {
		lines = lines[:skewLineLimit]
	}

	angles := make([]float64, 0, len(lines))
	for _, l := range lines {
		a := l.Theta*180/math.Pi - 90
		if math.Abs(a) < maxSkewAngle {
			angles = append(angles, a)
		}
	}
	if len(angles) == 0 {
		return 0, false
	}

	m := median(angles)
	if math.Abs(m) <= levelTolerance {
		return m, false
	}
	return m, true
}

func median(values []float64) float64 {
	s := slices.Clone(values)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
