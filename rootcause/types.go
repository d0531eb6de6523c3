// Package rootcause assembles investigation dossiers for discrepancies:
// related event history, a merged timeline, ranked cause hypotheses,
// recommended actions, and a cause graph for visualization.
package rootcause

import (
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

// Timeline event types.
const (
	EventTransaction         = "transaction"
	EventAdjustment          = "adjustment"
	EventCycleCount          = "cycle_count"
	EventDiscrepancyDetected = "discrepancy_detected"
)

// TimelineEvent is one entry in the merged event timeline. Type tags which
// branch of the union it is; only that branch's fields are set.
type TimelineEvent struct {
	Timestamp  time.Time        `json:"timestamp"`
	Type       string           `json:"type"`
	Action     string           `json:"action"`
	Quantity   *decimal.Decimal `json:"quantity,omitempty"`
	From       *string          `json:"from,omitempty"`
	To         *string          `json:"to,omitempty"`
	Location   *string          `json:"location,omitempty"`
	SystemQty  *decimal.Decimal `json:"system_qty,omitempty"`
	CountedQty *decimal.Decimal `json:"counted_qty,omitempty"`
	Variance   *decimal.Decimal `json:"variance,omitempty"`
	Severity   models.Severity  `json:"severity,omitempty"`
	Operator   *int             `json:"operator,omitempty"`
}

// PossibleCause is one ranked root-cause hypothesis. Produced fresh on each
// investigation run, never persisted.
type PossibleCause struct {
	Category        models.RootCauseCategory `json:"category"`
	Description     string                   `json:"description"`
	Confidence      models.Confidence        `json:"confidence"`
	Evidence        models.JSONMap           `json:"evidence"`
	PossibleReasons []string                 `json:"possible_reasons"`
}

// Recommendation is a proposed follow-up action. Lower priority runs first.
type Recommendation struct {
	Priority         int    `json:"priority"`
	Action           string `json:"action"`
	Description      string `json:"description"`
	AssignTo         string `json:"assign_to"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
}

// Recommendation action codes.
const (
	ActionCycleCount     = "CYCLE_COUNT"
	ActionTrainingReview = "TRAINING_REVIEW"
	ActionLocationAudit  = "LOCATION_AUDIT"
	ActionProcessReview  = "PROCESS_REVIEW"
	ActionAdjustment     = "ADJUSTMENT"
)

// Dossier is the full investigation result for one discrepancy.
type Dossier struct {
	Discrepancy         *models.Discrepancy          `json:"discrepancy"`
	Timeline            []TimelineEvent              `json:"timeline"`
	RelatedTransactions []models.TransactionSnapshot `json:"related_transactions"`
	RelatedAdjustments  []models.AdjustmentSnapshot  `json:"related_adjustments"`
	RelatedCycleCounts  []models.CycleCountSnapshot  `json:"related_cycle_counts"`
	InvolvedOperators   []models.User                `json:"involved_operators"`
	PossibleCauses      []PossibleCause              `json:"possible_causes"`
	RecommendedActions  []Recommendation             `json:"recommended_actions"`
}

// GraphNode is one node of a cause graph.
type GraphNode struct {
	Id    string         `json:"id"`
	Type  string         `json:"type"`
	Label string         `json:"label"`
	Data  models.JSONMap `json:"data"`
}

// GraphEdge connects two cause graph nodes. Confidence is set on cause edges
// only.
type GraphEdge struct {
	From       string            `json:"from"`
	To         string            `json:"to"`
	Type       string            `json:"type"`
	Confidence models.Confidence `json:"confidence,omitempty"`
}

// CauseGraph is the visualization payload for one investigation.
type CauseGraph struct {
	Nodes         []GraphNode `json:"nodes"`
	Edges         []GraphEdge `json:"edges"`
	Investigation *Dossier    `json:"investigation"`
}
