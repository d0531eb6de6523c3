package rootcause

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

// causeInputs carries the aggregated facts the heuristics read. Open
// discrepancy counts exclude the discrepancy under investigation.
type causeInputs struct {
	discrepancy    *models.Discrepancy
	transactions   []models.TransactionSnapshot
	adjustments    []models.AdjustmentSnapshot
	cycleCounts    []models.CycleCountSnapshot
	operators      map[int]models.User
	locationIssues int64
	skuIssues      int64
}

// AnalyzeCauses runs every causal heuristic independently and returns the
// hypotheses ordered strongest confidence first. No heuristic short-circuits
// another; a dossier can carry several competing causes.
func AnalyzeCauses(in causeInputs) []PossibleCause {
	var causes []PossibleCause
	causes = append(causes, adjustmentVolumeCause(in)...)
	causes = append(causes, operatorPatternCauses(in)...)
	causes = append(causes, transactionSequenceCause(in)...)
	causes = append(causes, cycleCountPatternCause(in)...)
	causes = append(causes, locationPatternCause(in)...)
	causes = append(causes, skuPatternCause(in)...)

	sort.SliceStable(causes, func(i, j int) bool {
		return causes[i].Confidence.Rank() < causes[j].Confidence.Rank()
	})
	return causes
}

func adjustmentVolumeCause(in causeInputs) []PossibleCause {
	if len(in.adjustments) == 0 {
		return nil
	}
	total := decimal.Zero
	for _, a := range in.adjustments {
		total = total.Add(a.AdjustmentQty)
	}
	half := in.discrepancy.Variance.Abs().Mul(decimal.NewFromFloat(0.5))
	if !total.Abs().GreaterThan(half) {
		return nil
	}
	return []PossibleCause{{
		Category:    models.RootCauseCategoryProcess,
		Description: "High adjustment volume may indicate systematic issue",
		Confidence:  models.ConfidenceMedium,
		Evidence: models.JSONMap{
			"adjustmentCount":     len(in.adjustments),
			"totalAdjusted":       total.String(),
			"discrepancyVariance": in.discrepancy.Variance.String(),
		},
		PossibleReasons: []string{
			"Receiving errors requiring frequent corrections",
			"Pick errors being adjusted rather than root-caused",
			"Damaged inventory being adjusted without investigation",
		},
	}}
}

func operatorPatternCauses(in causeInputs) []PossibleCause {
	counts := make(map[int]int)
	var order []int
	for _, a := range in.adjustments {
		if a.UserId == nil {
			continue
		}
		if counts[*a.UserId] == 0 {
			order = append(order, *a.UserId)
		}
		counts[*a.UserId]++
	}

	var causes []PossibleCause
	for _, userID := range order {
		count := counts[userID]
		if count < 3 {
			continue
		}
		confidence := models.ConfidenceMedium
		if count >= 5 {
			confidence = models.ConfidenceHigh
		}
		name := fmt.Sprintf("%d", userID)
		evidence := models.JSONMap{
			"operatorId":      userID,
			"adjustmentCount": count,
		}
		if op, ok := in.operators[userID]; ok {
			if op.FullName != "" {
				name = op.FullName
			} else {
				name = op.Username
			}
			evidence["operatorName"] = name
		}
		causes = append(causes, PossibleCause{
			Category:    models.RootCauseCategoryHuman,
			Description: fmt.Sprintf("Operator %s made %d adjustments", name, count),
			Confidence:  confidence,
			Evidence:    evidence,
			PossibleReasons: []string{
				"Training gap - operator may need retraining",
				"Process confusion - procedures may be unclear",
				"Equipment issue - scanner or RF gun problems",
			},
		})
	}
	return causes
}

func transactionSequenceCause(in causeInputs) []PossibleCause {
	if len(in.transactions) == 0 {
		return nil
	}
	types := make([]string, 0, len(in.transactions))
	hasReceive, hasPutaway := false, false
	for _, t := range in.transactions {
		types = append(types, string(t.Type))
		switch t.Type {
		case models.TransactionTypeReceive:
			hasReceive = true
		case models.TransactionTypePutaway:
			hasPutaway = true
		}
	}
	if !hasReceive || hasPutaway {
		return nil
	}
	return []PossibleCause{{
		Category:    models.RootCauseCategoryProcess,
		Description: "Receiving transaction without corresponding putaway",
		Confidence:  models.ConfidenceHigh,
		Evidence: models.JSONMap{
			"transactionTypes": types,
		},
		PossibleReasons: []string{
			"Product received but not put away to final location",
			"Putaway transaction not recorded in WMS",
			"Product sitting in staging area",
		},
	}}
}

func cycleCountPatternCause(in causeInputs) []PossibleCause {
	if len(in.cycleCounts) == 0 {
		return nil
	}
	allNegative, allPositive := true, true
	variances := make([]string, 0, len(in.cycleCounts))
	for _, c := range in.cycleCounts {
		variances = append(variances, c.Variance.String())
		if !c.Variance.IsNegative() {
			allNegative = false
		}
		if !c.Variance.IsPositive() {
			allPositive = false
		}
	}

	evidence := models.JSONMap{
		"countCount": len(in.cycleCounts),
		"variances":  variances,
	}
	switch {
	case allNegative:
		return []PossibleCause{{
			Category:    models.RootCauseCategoryProcess,
			Description: "Consistent negative variances in cycle counts",
			Confidence:  models.ConfidenceHigh,
			Evidence:    evidence,
			PossibleReasons: []string{
				"Unrecorded picks or moves out of location",
				"Theft or shrinkage",
				"Damage disposal not recorded",
			},
		}}
	case allPositive:
		return []PossibleCause{{
			Category:    models.RootCauseCategoryProcess,
			Description: "Consistent positive variances in cycle counts",
			Confidence:  models.ConfidenceHigh,
			Evidence:    evidence,
			PossibleReasons: []string{
				"Unrecorded receiving or moves into location",
				"Returns placed without transaction",
				"Mis-slot from adjacent location",
			},
		}}
	}
	return nil
}

func locationPatternCause(in causeInputs) []PossibleCause {
	if in.locationIssues < 3 {
		return nil
	}
	return []PossibleCause{{
		Category: models.RootCauseCategoryLocation,
		Description: fmt.Sprintf("Location %s has %d other open discrepancies",
			in.discrepancy.LocationCode, in.locationIssues),
		Confidence: models.ConfidenceHigh,
		Evidence: models.JSONMap{
			"locationCode":     in.discrepancy.LocationCode,
			"otherIssuesCount": in.locationIssues,
		},
		PossibleReasons: []string{
			"Location physically problematic (hard to reach, confusing)",
			"Multiple SKUs in location causing confusion",
			"Location label damaged or hard to read",
		},
	}}
}

func skuPatternCause(in causeInputs) []PossibleCause {
	if in.skuIssues < 3 {
		return nil
	}
	return []PossibleCause{{
		Category: models.RootCauseCategoryProcess,
		Description: fmt.Sprintf("SKU %s has %d other open discrepancies",
			in.discrepancy.Sku, in.skuIssues),
		Confidence: models.ConfidenceMedium,
		Evidence: models.JSONMap{
			"sku":              in.discrepancy.Sku,
			"otherIssuesCount": in.skuIssues,
		},
		PossibleReasons: []string{
			"SKU easily confused with similar item",
			"Unit of measure confusion (eaches vs cases)",
			"Barcode scanning issues",
		},
	}}
}
