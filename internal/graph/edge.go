package graph

type EdgeType string

const (
	EdgeDiseaseTarget  EdgeType = "disease_target"
	EdgeTargetPathway  EdgeType = "target_pathway"
	EdgeTargetDrug     EdgeType = "target_drug"
	EdgeTargetTarget   EdgeType = "target_target"
	EdgeDiseaseDisease EdgeType = "disease_disease"
)

// Edge connects two node ids. ID is deterministic in (source, target, type);
// the first insert wins and later duplicates are dropped.
type Edge struct {
	ID     string                 `json:"id"`
	Source string                 `json:"source"`
	Target string                 `json:"target"`
	Type   EdgeType               `json:"type"`
	Weight float64                `json:"weight"`
	Meta   map[string]interface{} `json:"meta,omitempty"`
}

// EdgeID derives the canonical edge id for (source, target, type).
func EdgeID(source, target string, t EdgeType) string {
	return source + "|" + target + "|" + string(t)
}

// NewEdge builds an edge with its derived id.
func NewEdge(source, target string, t EdgeType, weight float64) Edge {
	return Edge{
		ID:     EdgeID(source, target, t),
		Source: source,
		Target: target,
		Type:   t,
		Weight: weight,
		Meta:   map[string]interface{}{},
	}
}

// MetaProxy marks edges that only visualize prior gap state. The bridge
// analyzer skips them when searching for mechanistic paths.
const MetaProxy = "proxy"

func (e Edge) IsProxy() bool {
	v, ok := e.Meta[MetaProxy]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
