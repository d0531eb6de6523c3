package rootcause

import (
	"context"
	"time"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/models"
)

// lookbackDays bounds how far back an investigation pulls related history.
const lookbackDays = 7

// Investigate assembles the full dossier for one discrepancy: related events
// from a seven day lookback ending at detection, the merged timeline, ranked
// cause hypotheses, and recommended actions. A missing discrepancy is a
// not-found error; a failed operator lookup degrades to unresolved operator
// references instead of aborting.
func Investigate(ctx context.Context, discrepancyID int) (*Dossier, error) {
	discrepancy, err := models.GetDiscrepancy(ctx, discrepancyID)
	if err != nil {
		return nil, err
	}

	window := models.TimeWindow{
		From: discrepancy.DetectedAt.AddDate(0, 0, -lookbackDays),
		To:   discrepancy.DetectedAt.Add(time.Second),
	}
	scope := models.RecordScope{
		Sku:          &discrepancy.Sku,
		LocationCode: &discrepancy.LocationCode,
	}

	transactions, err := models.QueryTransactions(ctx, scope, window)
	if err != nil {
		return nil, err
	}
	adjustments, err := models.QueryAdjustments(ctx, scope, window)
	if err != nil {
		return nil, err
	}
	cycleCounts, err := models.QueryCycleCounts(ctx, scope, window)
	if err != nil {
		return nil, err
	}

	dossier := &Dossier{
		Discrepancy:         discrepancy,
		RelatedTransactions: newestFirstTransactions(transactions),
		RelatedAdjustments:  newestFirstAdjustments(adjustments),
		RelatedCycleCounts:  newestFirstCycleCounts(cycleCounts),
	}

	operatorIDs := collectOperatorIDs(dossier)
	operators, err := models.ResolveUsers(ctx, operatorIDs)
	if err != nil {
		// Operator directory failures degrade the dossier, they never sink it.
		config.LogError(config.GetLogger(), "rootcause", "Investigate", "resolve operators", operatorIDs, err)
		operators = map[int]models.User{}
	}
	for _, id := range operatorIDs {
		if u, ok := operators[id]; ok {
			dossier.InvolvedOperators = append(dossier.InvolvedOperators, u)
		}
	}

	locationIssues, err := models.CountOtherOpenAtLocation(ctx, discrepancy.LocationCode, discrepancy.ID)
	if err != nil {
		return nil, err
	}
	skuIssues, err := models.CountOtherOpenForSku(ctx, discrepancy.Sku, discrepancy.ID)
	if err != nil {
		return nil, err
	}

	dossier.Timeline = BuildTimeline(dossier.RelatedTransactions, dossier.RelatedAdjustments, dossier.RelatedCycleCounts, discrepancy)
	dossier.PossibleCauses = AnalyzeCauses(causeInputs{
		discrepancy:    discrepancy,
		transactions:   dossier.RelatedTransactions,
		adjustments:    dossier.RelatedAdjustments,
		cycleCounts:    dossier.RelatedCycleCounts,
		operators:      operators,
		locationIssues: locationIssues,
		skuIssues:      skuIssues,
	})
	dossier.RecommendedActions = GenerateRecommendations(discrepancy, dossier.PossibleCauses)
	return dossier, nil
}

// collectOperatorIDs gathers the distinct operator ids across all related
// sets, in first-seen order.
func collectOperatorIDs(dossier *Dossier) []int {
	seen := make(map[int]bool)
	var ids []int
	add := func(id *int) {
		if id == nil || seen[*id] {
			return
		}
		seen[*id] = true
		ids = append(ids, *id)
	}
	for i := range dossier.RelatedTransactions {
		add(dossier.RelatedTransactions[i].UserId)
	}
	for i := range dossier.RelatedAdjustments {
		add(dossier.RelatedAdjustments[i].UserId)
	}
	for i := range dossier.RelatedCycleCounts {
		add(dossier.RelatedCycleCounts[i].CounterId)
	}
	return ids
}

// Store queries return ascending order; dossiers present newest first.

func newestFirstTransactions(rows []models.TransactionSnapshot) []models.TransactionSnapshot {
	out := make([]models.TransactionSnapshot, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}

func newestFirstAdjustments(rows []models.AdjustmentSnapshot) []models.AdjustmentSnapshot {
	out := make([]models.AdjustmentSnapshot, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}

func newestFirstCycleCounts(rows []models.CycleCountSnapshot) []models.CycleCountSnapshot {
	out := make([]models.CycleCountSnapshot, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}
