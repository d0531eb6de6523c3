package truth

import (
	"math"
	"testing"
)

func TestFitLinearTrend_PerfectLine(t *testing.T) {
	trend := FitLinearTrend([]Point{{0, 1}, {1, 2}, {2, 3}})
	if math.Abs(trend.Slope-1) > 1e-9 {
		t.Fatalf("expected slope 1, got %v", trend.Slope)
	}
	if math.Abs(trend.Intercept-1) > 1e-9 {
		t.Fatalf("expected intercept 1, got %v", trend.Intercept)
	}
	if got := trend.At(10); math.Abs(got-11) > 1e-9 {
		t.Fatalf("At(10) expected 11, got %v", got)
	}
}

func TestFitLinearTrend_DegenerateInputs(t *testing.T) {
	for _, points := range [][]Point{nil, {}, {{3, 7}}} {
		trend := FitLinearTrend(points)
		if trend.Slope != 0 || trend.Intercept != 0 {
			t.Fatalf("expected zero trend for %d points, got %+v", len(points), trend)
		}
	}
}

func TestFitLinearTrend_ConstantXHasZeroTrend(t *testing.T) {
	trend := FitLinearTrend([]Point{{2, 1}, {2, 5}, {2, 9}})
	if trend.Slope != 0 || trend.Intercept != 0 {
		t.Fatalf("expected zero trend for vertical points, got %+v", trend)
	}
}

func TestFitLinearTrend_FlatSeries(t *testing.T) {
	trend := FitLinearTrend([]Point{{0, 4}, {1, 4}, {2, 4}, {3, 4}})
	if math.Abs(trend.Slope) > 1e-9 {
		t.Fatalf("expected slope 0 for flat series, got %v", trend.Slope)
	}
	if math.Abs(trend.Intercept-4) > 1e-9 {
		t.Fatalf("expected intercept 4, got %v", trend.Intercept)
	}
}

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		slope     float64
		threshold float64
		expected  string
	}{
		{1.5, 0, "increasing"},
		{-1.5, 0, "decreasing"},
		{0.05, 0, "stable"},
		{-0.05, 0, "stable"},
		{0.3, 0.5, "stable"},
		{0.6, 0.5, "increasing"},
	}
	for _, tc := range cases {
		if got := ClassifyTrend(tc.slope, tc.threshold); got != tc.expected {
			t.Fatalf("ClassifyTrend(%v, %v) expected %s, got %s", tc.slope, tc.threshold, tc.expected, got)
		}
	}
}
