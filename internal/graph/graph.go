// Package graph models structural relationships between files and the
// symbols they contain. It backs retrieval expansion: once vector search
// picks a chunk, the graph supplies the related files whose chunks are
// pulled in as additional context.
package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"coderag/pkg/types"
)

// NodeType discriminates file nodes from symbol nodes.
type NodeType string

const (
	NodeFile   NodeType = "file"
	NodeSymbol NodeType = "symbol"
)

// EdgeKind labels a relationship.
type EdgeKind string

const (
	// EdgeContains links a file to a symbol declared in it.
	EdgeContains EdgeKind = "CONTAINS"
	// EdgeImports links a file to another file it imports. Only emitted
	// when the import target resolves to a file in the same repository.
	EdgeImports EdgeKind = "IMPORTS"
)

// Node is a vertex in the relationship graph. File nodes use the file
// path as ID; symbol nodes use "path::Name" or "path::Class::method".
type Node struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Name     string         `json:"name,omitempty"`
	File     string         `json:"file,omitempty"`
	Language types.Language `json:"language,omitempty"`
}

// Edge is a directed, labeled connection between two nodes.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Graph is a directed multigraph with O(1) adjacency in both directions.
type Graph struct {
	nodes map[string]Node
	out   map[string]map[string]EdgeKind
	in    map[string]map[string]EdgeKind
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		out:   make(map[string]map[string]EdgeKind),
		in:    make(map[string]map[string]EdgeKind),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n Node) {
	g.nodes[n.ID] = n
}

// AddEdge connects two existing nodes. Unknown endpoints are ignored so
// builders never have to pre-check.
func (g *Graph) AddEdge(from, to string, kind EdgeKind) {
	if _, ok := g.nodes[from]; !ok {
		return
	}
	if _, ok := g.nodes[to]; !ok {
		return
	}
	if g.out[from] == nil {
		g.out[from] = make(map[string]EdgeKind)
	}
	if g.in[to] == nil {
		g.in[to] = make(map[string]EdgeKind)
	}
	g.out[from][to] = kind
	g.in[to][from] = kind
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeKindBetween returns the label of the edge from one node to another.
func (g *Graph) EdgeKindBetween(from, to string) (EdgeKind, bool) {
	kind, ok := g.out[from][to]
	return kind, ok
}

// Related returns all node IDs reachable from the origin within depth
// hops, following edges in both directions, deduplicated and sorted, with
// the origin excluded. An unknown origin yields nil.
func (g *Graph) Related(id string, depth int) []string {
	if !g.HasNode(id) {
		return nil
	}
	if depth <= 0 {
		depth = 2
	}

	visited := map[string]bool{id: true}
	frontier := []string{id}

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, cur := range frontier {
			for neighbor := range g.out[cur] {
				if !visited[neighbor] {
					visited[neighbor] = true
					next = append(next, neighbor)
				}
			}
			for neighbor := range g.in[cur] {
				if !visited[neighbor] {
					visited[neighbor] = true
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}

	related := make([]string, 0, len(visited)-1)
	for node := range visited {
		if node != id {
			related = append(related, node)
		}
	}
	sort.Strings(related)
	return related
}

// FileNeighbors returns the file nodes exactly one hop from the given
// file, in both edge directions, sorted. Symbol nodes are skipped.
func (g *Graph) FileNeighbors(path string) []string {
	if !g.HasNode(path) {
		return nil
	}
	seen := make(map[string]bool)
	collect := func(adj map[string]EdgeKind) {
		for id := range adj {
			if id == path || seen[id] {
				continue
			}
			if n, ok := g.nodes[id]; ok && n.Type == NodeFile {
				seen[id] = true
			}
		}
	}
	collect(g.out[path])
	collect(g.in[path])

	neighbors := make([]string, 0, len(seen))
	for id := range seen {
		neighbors = append(neighbors, id)
	}
	sort.Strings(neighbors)
	return neighbors
}

// graphJSON is the serialized form. Nodes and edges are sorted so the
// artifact is byte-stable across rebuilds of identical input.
type graphJSON struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalJSON implements json.Marshaler.
func (g *Graph) MarshalJSON() ([]byte, error) {
	doc := graphJSON{
		Nodes: make([]Node, 0, len(g.nodes)),
		Edges: make([]Edge, 0),
	}
	for _, n := range g.nodes {
		doc.Nodes = append(doc.Nodes, n)
	}
	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].ID < doc.Nodes[j].ID })

	for from, adj := range g.out {
		for to, kind := range adj {
			doc.Edges = append(doc.Edges, Edge{From: from, To: to, Kind: kind})
		}
	}
	sort.Slice(doc.Edges, func(i, j int) bool {
		if doc.Edges[i].From != doc.Edges[j].From {
			return doc.Edges[i].From < doc.Edges[j].From
		}
		return doc.Edges[i].To < doc.Edges[j].To
	})
	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc graphJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", types.ErrIndexCorrupt, err)
	}
	g.nodes = make(map[string]Node, len(doc.Nodes))
	g.out = make(map[string]map[string]EdgeKind)
	g.in = make(map[string]map[string]EdgeKind)
	for _, n := range doc.Nodes {
		g.AddNode(n)
	}
	for _, e := range doc.Edges {
		g.AddEdge(e.From, e.To, e.Kind)
	}
	return nil
}

// Save writes the graph as JSON to a file.
func (g *Graph) Save(path string) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}

// Load reads a graph previously written by Save. Decode failures are
// reported as index corruption.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	g := New()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, err
	}
	return g, nil
}
