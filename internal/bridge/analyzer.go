package bridge

import (
	"strings"

	"github.com/atlasbio/meridian/internal/graph"
	"github.com/atlasbio/meridian/internal/resolver"
)

// Pair outcome statuses and no-connection reasons.
const (
	StatusConnected    = "connected"
	StatusNoConnection = "no_connection"

	ReasonUnresolvedAnchor = "unresolved anchor"
	ReasonDisconnected     = "resolved but disconnected"
)

// Anchor is a resolver anchor bound to the graph: either a real node id or a
// synthetic virtual node id, so pathfinding always has two endpoints.
type Anchor struct {
	resolver.Anchor
	NodeID        string `json:"nodeId,omitempty"`
	VirtualNodeID string `json:"virtualNodeId,omitempty"`
}

func (a Anchor) endpoint() string {
	if a.NodeID != "" {
		return a.NodeID
	}
	return a.VirtualNodeID
}

// Path is a shortest mechanistic route: explicit node and edge id lists.
// Hops is the edge count.
type Path struct {
	NodeIDs []string `json:"nodeIds"`
	EdgeIDs []string `json:"edgeIds"`
	Hops    int      `json:"hops"`
}

// PairOutcome reports connectivity for one consecutive anchor pair.
type PairOutcome struct {
	From   Anchor `json:"from"`
	To     Anchor `json:"to"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Path   *Path  `json:"path,omitempty"`
}

// Result is the full bridge analysis. VirtualNodes and VirtualEdges exist
// only for rendering; they are never written into the real graph store.
type Result struct {
	Anchors      []Anchor      `json:"anchors"`
	Pairs        []PairOutcome `json:"pairs"`
	VirtualNodes []graph.Node  `json:"virtualNodes,omitempty"`
	VirtualEdges []graph.Edge  `json:"virtualEdges,omitempty"`
	// Primary indexes the most specific connected pair (most intermediate
	// hops), -1 when nothing is connected.
	Primary int    `json:"primary"`
	Status  string `json:"status"`
}

type neighbor struct {
	node string
	edge string
}

// Analyze binds anchors to the snapshot and runs BFS between consecutive
// anchor pairs (a sequential chain, not all-pairs). The snapshot is small
// and still growing, so a full re-run per patch is fine.
func Analyze(anchors []resolver.Anchor, nodes []graph.Node, edges []graph.Edge) Result {
	res := Result{Primary: -1, Status: StatusNoConnection}

	nodeByID := make(map[string]graph.Node, len(nodes))
	labelIndex := make(map[string]string, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
		labelIndex[string(n.Type)+"|"+strings.ToLower(n.Label)] = n.ID
	}

	for _, a := range anchors {
		bound := Anchor{Anchor: a}
		if id := matchNode(a, nodeByID, labelIndex); id != "" {
			bound.NodeID = id
		} else {
			bound.VirtualNodeID = virtualNodeID(a)
			vn := graph.Node{
				ID:        bound.VirtualNodeID,
				Type:      graph.NodeType(a.EntityType),
				PrimaryID: a.ID,
				Label:     virtualLabel(a),
				Score:     a.Confidence,
				Size:      1,
				Meta:      map[string]interface{}{"virtual": true},
			}
			res.VirtualNodes = append(res.VirtualNodes, vn)
		}
		res.Anchors = append(res.Anchors, bound)
	}

	if len(res.Anchors) < 2 {
		return res
	}

	// Proxy edges visualize prior gap state; they are not mechanistic hops.
	adj := make(map[string][]neighbor)
	for _, e := range edges {
		if e.IsProxy() {
			continue
		}
		adj[e.Source] = append(adj[e.Source], neighbor{node: e.Target, edge: e.ID})
		adj[e.Target] = append(adj[e.Target], neighbor{node: e.Source, edge: e.ID})
	}

	bestHops := -1
	for i := 0; i+1 < len(res.Anchors); i++ {
		from, to := res.Anchors[i], res.Anchors[i+1]
		outcome := PairOutcome{From: from, To: to}

		switch {
		case from.NodeID == "" || to.NodeID == "":
			outcome.Status = StatusNoConnection
			outcome.Reason = ReasonUnresolvedAnchor
			res.VirtualEdges = append(res.VirtualEdges, gapEdge(from.endpoint(), to.endpoint()))

		default:
			if path, ok := shortestPath(adj, from.NodeID, to.NodeID); ok {
				outcome.Status = StatusConnected
				outcome.Path = &path
				intermediate := len(path.NodeIDs) - 2
				if intermediate > bestHops {
					bestHops = intermediate
					res.Primary = len(res.Pairs)
				}
				res.Status = StatusConnected
			} else {
				outcome.Status = StatusNoConnection
				outcome.Reason = ReasonDisconnected
				res.VirtualEdges = append(res.VirtualEdges, gapEdge(from.NodeID, to.NodeID))
			}
		}

		res.Pairs = append(res.Pairs, outcome)
	}

	return res
}

func matchNode(a resolver.Anchor, nodeByID map[string]graph.Node, labelIndex map[string]string) string {
	if a.ID != "" {
		id := graph.NodeID(graph.NodeType(a.EntityType), a.ID)
		if _, ok := nodeByID[id]; ok {
			return id
		}
	}
	if a.Name != "" {
		if id, ok := labelIndex[a.EntityType+"|"+strings.ToLower(a.Name)]; ok {
			return id
		}
	}
	return ""
}

// shortestPath is plain BFS: minimal hop count, explicit edge id list.
func shortestPath(adj map[string][]neighbor, from, to string) (Path, bool) {
	if from == to {
		return Path{NodeIDs: []string{from}}, true
	}

	visited := map[string]step{from: {}}
	queue := []string{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range adj[cur] {
			if _, seen := visited[nb.node]; seen {
				continue
			}
			visited[nb.node] = step{prevNode: cur, viaEdge: nb.edge}
			if nb.node == to {
				return reconstruct(visited, from, to), true
			}
			queue = append(queue, nb.node)
		}
	}
	return Path{}, false
}

func reconstruct(visited map[string]step, from, to string) Path {
	var nodeIDs, edgeIDs []string
	for cur := to; ; {
		nodeIDs = append([]string{cur}, nodeIDs...)
		if cur == from {
			break
		}
		s := visited[cur]
		edgeIDs = append([]string{s.viaEdge}, edgeIDs...)
		cur = s.prevNode
	}
	return Path{NodeIDs: nodeIDs, EdgeIDs: edgeIDs, Hops: len(edgeIDs)}
}

type step struct {
	prevNode string
	viaEdge  string
}

func virtualNodeID(a resolver.Anchor) string {
	return "virtual:" + a.EntityType + ":" + slug(firstNonEmpty(a.Name, a.Mention))
}

func virtualLabel(a resolver.Anchor) string {
	return firstNonEmpty(a.Name, a.Mention)
}

func gapEdge(from, to string) graph.Edge {
	return graph.Edge{
		ID:     "gap:" + from + "|" + to,
		Source: from,
		Target: to,
		Type:   graph.EdgeType("gap"),
		Weight: 0,
		Meta:   map[string]interface{}{graph.MetaProxy: true, "gap": true},
	}
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
