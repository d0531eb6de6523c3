package rootcause

import (
	"sort"

	"bitbucket.org/flowlogic/wms_backend/models"
)

// BuildTimeline merges related events and the detection event itself into one
// chronological sequence. The sort is stable: ties keep input order with
// transactions first, then adjustments, counts, and the detection event.
func BuildTimeline(transactions []models.TransactionSnapshot, adjustments []models.AdjustmentSnapshot, cycleCounts []models.CycleCountSnapshot, discrepancy *models.Discrepancy) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(transactions)+len(adjustments)+len(cycleCounts)+1)

	for i := range transactions {
		t := transactions[i]
		qty := t.Quantity
		events = append(events, TimelineEvent{
			Timestamp: t.TransactionDate,
			Type:      EventTransaction,
			Action:    string(t.Type),
			Quantity:  &qty,
			From:      t.FromLocation,
			To:        t.ToLocation,
			Operator:  t.UserId,
		})
	}

	for i := range adjustments {
		a := adjustments[i]
		qty := a.AdjustmentQty
		loc := a.LocationCode
		events = append(events, TimelineEvent{
			Timestamp: a.AdjustmentDate,
			Type:      EventAdjustment,
			Action:    a.Reason,
			Quantity:  &qty,
			Location:  &loc,
			Operator:  a.UserId,
		})
	}

	for i := range cycleCounts {
		c := cycleCounts[i]
		systemQty, countedQty, variance := c.SystemQty, c.CountedQty, c.Variance
		events = append(events, TimelineEvent{
			Timestamp:  c.CountDate,
			Type:       EventCycleCount,
			Action:     "count",
			SystemQty:  &systemQty,
			CountedQty: &countedQty,
			Variance:   &variance,
			Operator:   c.CounterId,
		})
	}

	if discrepancy != nil {
		variance := discrepancy.Variance
		events = append(events, TimelineEvent{
			Timestamp: discrepancy.DetectedAt,
			Type:      EventDiscrepancyDetected,
			Action:    string(discrepancy.Type),
			Severity:  discrepancy.Severity,
			Variance:  &variance,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}
