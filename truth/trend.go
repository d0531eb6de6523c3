package truth

// LinearTrend is an ordinary least squares fit over (x, y) points.
type LinearTrend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// At evaluates the fitted line at x.
func (t LinearTrend) At(x float64) float64 {
	return t.Slope*x + t.Intercept
}

// Point is one (x, y) observation for trend fitting.
type Point struct {
	X float64
	Y float64
}

// DefaultTrendThreshold is the slope magnitude below which a series is
// classified stable.
const DefaultTrendThreshold = 0.1

// FitLinearTrend fits y = slope*x + intercept by ordinary least squares.
// Fewer than two points, or a degenerate x distribution where every x is
// identical, yields the zero trend rather than NaN.
func FitLinearTrend(points []Point) LinearTrend {
	n := float64(len(points))
	if len(points) < 2 {
		return LinearTrend{}
	}
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumXX += p.X * p.X
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return LinearTrend{}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	return LinearTrend{Slope: slope, Intercept: intercept}
}

// ClassifyTrend buckets a slope into "increasing", "decreasing", or "stable".
// A non-positive threshold falls back to the default.
func ClassifyTrend(slope, threshold float64) string {
	if threshold <= 0 {
		threshold = DefaultTrendThreshold
	}
	switch {
	case slope > threshold:
		return "increasing"
	case slope < -threshold:
		return "decreasing"
	default:
		return "stable"
	}
}
