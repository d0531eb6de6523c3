package rootcause

import (
	"context"
	"fmt"

	"bitbucket.org/flowlogic/wms_backend/models"
)

// BuildCauseGraph runs a full investigation and projects the dossier into a
// node/edge graph for visualization.
func BuildCauseGraph(ctx context.Context, discrepancyID int) (*CauseGraph, error) {
	dossier, err := Investigate(ctx, discrepancyID)
	if err != nil {
		return nil, err
	}
	return AssembleGraph(dossier), nil
}

// AssembleGraph converts a dossier into its cause graph. The output is
// deterministic: node and edge order follows the dossier's own ordering.
func AssembleGraph(dossier *Dossier) *CauseGraph {
	graph := &CauseGraph{
		Nodes:         []GraphNode{},
		Edges:         []GraphEdge{},
		Investigation: dossier,
	}
	discrepancy := dossier.Discrepancy

	graph.Nodes = append(graph.Nodes, GraphNode{
		Id:    "discrepancy",
		Type:  "discrepancy",
		Label: string(discrepancy.Type),
		Data: models.JSONMap{
			"sku":      discrepancy.Sku,
			"location": discrepancy.LocationCode,
			"variance": discrepancy.Variance.String(),
		},
	})

	for _, op := range dossier.InvolvedOperators {
		label := op.FullName
		if label == "" {
			label = op.Username
		}
		graph.Nodes = append(graph.Nodes, GraphNode{
			Id:    fmt.Sprintf("operator-%d", op.ID),
			Type:  "operator",
			Label: label,
			Data: models.JSONMap{
				"id":       op.ID,
				"username": op.Username,
				"fullName": op.FullName,
				"role":     op.Role,
			},
		})
	}

	for i := range dossier.RelatedTransactions {
		tx := dossier.RelatedTransactions[i]
		nodeID := fmt.Sprintf("tx-%d", tx.ID)
		graph.Nodes = append(graph.Nodes, GraphNode{
			Id:    nodeID,
			Type:  "transaction",
			Label: fmt.Sprintf("%s: %s", tx.Type, tx.Quantity),
			Data: models.JSONMap{
				"sku":             tx.Sku,
				"type":            string(tx.Type),
				"quantity":        tx.Quantity.String(),
				"transactionDate": tx.TransactionDate,
			},
		})
		graph.Edges = append(graph.Edges, GraphEdge{From: nodeID, To: "discrepancy", Type: "transaction"})
		if tx.UserId != nil {
			graph.Edges = append(graph.Edges, GraphEdge{
				From: fmt.Sprintf("operator-%d", *tx.UserId),
				To:   nodeID,
				Type: "performed",
			})
		}
	}

	for i := range dossier.RelatedAdjustments {
		adj := dossier.RelatedAdjustments[i]
		nodeID := fmt.Sprintf("adj-%d", adj.ID)
		graph.Nodes = append(graph.Nodes, GraphNode{
			Id:    nodeID,
			Type:  "adjustment",
			Label: fmt.Sprintf("Adj: %s", adj.AdjustmentQty),
			Data: models.JSONMap{
				"sku":            adj.Sku,
				"reason":         adj.Reason,
				"adjustmentQty":  adj.AdjustmentQty.String(),
				"adjustmentDate": adj.AdjustmentDate,
			},
		})
		graph.Edges = append(graph.Edges, GraphEdge{From: nodeID, To: "discrepancy", Type: "adjustment"})
		if adj.UserId != nil {
			graph.Edges = append(graph.Edges, GraphEdge{
				From: fmt.Sprintf("operator-%d", *adj.UserId),
				To:   nodeID,
				Type: "performed",
			})
		}
	}

	for i, cause := range dossier.PossibleCauses {
		nodeID := fmt.Sprintf("cause-%d", i)
		graph.Nodes = append(graph.Nodes, GraphNode{
			Id:    nodeID,
			Type:  "cause",
			Label: truncateLabel(cause.Description, 50),
			Data: models.JSONMap{
				"category":    string(cause.Category),
				"description": cause.Description,
				"confidence":  string(cause.Confidence),
			},
		})
		graph.Edges = append(graph.Edges, GraphEdge{
			From:       nodeID,
			To:         "discrepancy",
			Type:       "cause",
			Confidence: cause.Confidence,
		})
	}
	return graph
}

func truncateLabel(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
