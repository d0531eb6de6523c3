package models

import "testing"

func TestDiscrepancyStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to DiscrepancyStatus
		allowed  bool
	}{
		{DiscrepancyStatusOpen, DiscrepancyStatusInvestigated, true},
		{DiscrepancyStatusOpen, DiscrepancyStatusResolved, false},
		{DiscrepancyStatusInvestigated, DiscrepancyStatusResolved, true},
		{DiscrepancyStatusInvestigated, DiscrepancyStatusOpen, false},
		{DiscrepancyStatusResolved, DiscrepancyStatusOpen, false},
		{DiscrepancyStatusResolved, DiscrepancyStatusInvestigated, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestSeverityRankOrder(t *testing.T) {
	ordered := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Fatalf("expected %s to rank ahead of %s", ordered[i-1], ordered[i])
		}
	}
}
