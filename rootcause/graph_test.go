package rootcause

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/flowlogic/wms_backend/models"
)

func TestAssembleGraph(t *testing.T) {
	userID := 42
	loc := "A-01"
	dossier := &Dossier{
		Discrepancy: testDiscrepancy(),
		InvolvedOperators: []models.User{
			{ID: 42, Username: "jdoe", FullName: "Jordan Doe", Role: "picker"},
		},
		RelatedTransactions: []models.TransactionSnapshot{
			{ID: 7, Sku: "SKU-1", Type: models.TransactionTypePick, FromLocation: &loc, Quantity: decimal.NewFromInt(5), UserId: &userID},
		},
		RelatedAdjustments: []models.AdjustmentSnapshot{
			{ID: 9, Sku: "SKU-1", LocationCode: loc, AdjustmentQty: decimal.NewFromInt(-3), Reason: "damage", UserId: &userID},
		},
		PossibleCauses: []PossibleCause{
			{Category: models.RootCauseCategoryHuman, Description: "Operator Jordan Doe made 5 adjustments", Confidence: models.ConfidenceHigh},
		},
	}

	graph := AssembleGraph(dossier)

	nodes := make(map[string]GraphNode)
	for _, n := range graph.Nodes {
		nodes[n.Id] = n
	}
	for _, id := range []string{"discrepancy", "operator-42", "tx-7", "adj-9", "cause-0"} {
		if _, ok := nodes[id]; !ok {
			t.Fatalf("missing node %s", id)
		}
	}
	if len(graph.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d", len(graph.Nodes))
	}
	if nodes["operator-42"].Label != "Jordan Doe" {
		t.Fatalf("expected operator labeled by full name, got %q", nodes["operator-42"].Label)
	}

	type edgeKey struct{ from, to, etype string }
	edges := make(map[edgeKey]GraphEdge)
	for _, e := range graph.Edges {
		edges[edgeKey{e.From, e.To, e.Type}] = e
	}
	expected := []edgeKey{
		{"tx-7", "discrepancy", "transaction"},
		{"operator-42", "tx-7", "performed"},
		{"adj-9", "discrepancy", "adjustment"},
		{"operator-42", "adj-9", "performed"},
		{"cause-0", "discrepancy", "cause"},
	}
	for _, k := range expected {
		if _, ok := edges[k]; !ok {
			t.Fatalf("missing edge %+v", k)
		}
	}
	if causeEdge := edges[edgeKey{"cause-0", "discrepancy", "cause"}]; causeEdge.Confidence != models.ConfidenceHigh {
		t.Fatalf("expected confidence carried on the cause edge, got %s", causeEdge.Confidence)
	}
	if graph.Investigation != dossier {
		t.Fatal("expected the dossier embedded in the graph")
	}
}

func TestAssembleGraph_TruncatesLongCauseLabels(t *testing.T) {
	dossier := &Dossier{
		Discrepancy: testDiscrepancy(),
		PossibleCauses: []PossibleCause{
			{Description: strings.Repeat("x", 80), Confidence: models.ConfidenceLow},
		},
	}

	graph := AssembleGraph(dossier)
	var causeNode *GraphNode
	for i := range graph.Nodes {
		if graph.Nodes[i].Id == "cause-0" {
			causeNode = &graph.Nodes[i]
		}
	}
	if causeNode == nil {
		t.Fatal("missing cause node")
	}
	if causeNode.Label != strings.Repeat("x", 50)+"..." {
		t.Fatalf("expected a truncated label, got %q", causeNode.Label)
	}
}
