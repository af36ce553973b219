package graph

import (
	"reflect"
	"sync"
)

// Patch is an additive delta: only nodes and edges that are new or changed.
// Consumers merge patches, they never replace the whole graph.
type Patch struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (p Patch) Empty() bool {
	return len(p.Nodes) == 0 && len(p.Edges) == 0
}

// Store is the per-run node/edge map. It only grows: nodes merge on
// re-insert, edges are immutable after first insert.
type Store struct {
	mu        sync.Mutex
	nodes     map[string]Node
	edges     map[string]Edge
	nodeOrder []string
	edgeOrder []string
}

func NewStore() *Store {
	return &Store{
		nodes: make(map[string]Node),
		edges: make(map[string]Edge),
	}
}

// UpsertNodes inserts or merges nodes and returns only those that are new or
// actually changed. Merge semantics: non-zero top-level fields win, Meta is
// merged key-by-key with new values overwriting.
func (s *Store) UpsertNodes(nodes []Node) []Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []Node
	for _, n := range nodes {
		if n.ID == "" {
			n.ID = NodeID(n.Type, n.PrimaryID)
		}
		existing, ok := s.nodes[n.ID]
		if !ok {
			if n.Meta == nil {
				n.Meta = map[string]interface{}{}
			}
			s.nodes[n.ID] = n
			s.nodeOrder = append(s.nodeOrder, n.ID)
			changed = append(changed, cloneNode(n))
			continue
		}

		dirty := false
		if n.Label != "" && n.Label != existing.Label {
			existing.Label = n.Label
			dirty = true
		}
		if n.Score != 0 && n.Score != existing.Score {
			existing.Score = n.Score
			dirty = true
		}
		if n.Size != 0 && n.Size != existing.Size {
			existing.Size = n.Size
			dirty = true
		}
		for k, v := range n.Meta {
			// Meta values can be slices or maps, so == would panic here.
			if cur, ok := existing.Meta[k]; !ok || !reflect.DeepEqual(cur, v) {
				existing.Meta[k] = v
				dirty = true
			}
		}
		if dirty {
			s.nodes[n.ID] = existing
			changed = append(changed, cloneNode(existing))
		}
	}
	return changed
}

// UpsertEdges inserts edges whose derived id is absent and returns them.
// Re-inserting an existing id is a no-op: the first writer's weight and meta
// stand.
func (s *Store) UpsertEdges(edges []Edge) []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []Edge
	for _, e := range edges {
		if e.ID == "" {
			e.ID = EdgeID(e.Source, e.Target, e.Type)
		}
		if _, ok := s.edges[e.ID]; ok {
			continue
		}
		if e.Meta == nil {
			e.Meta = map[string]interface{}{}
		}
		s.edges[e.ID] = e
		s.edgeOrder = append(s.edgeOrder, e.ID)
		added = append(added, cloneEdge(e))
	}
	return added
}

// Snapshot returns copies of all nodes and edges in insertion order.
func (s *Store) Snapshot() ([]Node, []Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		nodes = append(nodes, cloneNode(s.nodes[id]))
	}
	edges := make([]Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		edges = append(edges, cloneEdge(s.edges[id]))
	}
	return nodes, edges
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return cloneNode(n), true
}

func (s *Store) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

func (s *Store) EdgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}

func cloneNode(n Node) Node {
	meta := make(map[string]interface{}, len(n.Meta))
	for k, v := range n.Meta {
		meta[k] = v
	}
	n.Meta = meta
	return n
}

func cloneEdge(e Edge) Edge {
	meta := make(map[string]interface{}, len(e.Meta))
	for k, v := range e.Meta {
		meta[k] = v
	}
	e.Meta = meta
	return e
}
