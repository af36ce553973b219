package graph

import "strings"

type NodeType string

const (
	NodeDisease     NodeType = "disease"
	NodeTarget      NodeType = "target"
	NodePathway     NodeType = "pathway"
	NodeDrug        NodeType = "drug"
	NodeInteraction NodeType = "interaction"
)

// Node is one entity in the evidence graph. ID is deterministic in
// (Type, PrimaryID) so re-discovery of the same entity merges instead of
// duplicating.
type Node struct {
	ID        string                 `json:"id"`
	Type      NodeType               `json:"type"`
	PrimaryID string                 `json:"primaryId"`
	Label     string                 `json:"label"`
	Score     float64                `json:"score"`
	Size      int                    `json:"size"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// NodeID derives the canonical node id for (type, primaryID).
func NodeID(t NodeType, primaryID string) string {
	id := strings.TrimSpace(primaryID)
	id = strings.ReplaceAll(id, ":", "_")
	return string(t) + ":" + strings.ToUpper(id)
}

// NewNode builds a node with its derived id.
func NewNode(t NodeType, primaryID, label string, score float64) Node {
	return Node{
		ID:        NodeID(t, primaryID),
		Type:      t,
		PrimaryID: primaryID,
		Label:     label,
		Score:     score,
		Size:      1,
		Meta:      map[string]interface{}{},
	}
}
