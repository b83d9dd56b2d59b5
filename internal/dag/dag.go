// Package dag orders inventory entries so that every item is created after
// the items it names. Edges point from a node to its prerequisites; an edge
// that would close a cycle is rejected with the path it would complete.
package dag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCycle is returned when an edge would close a dependency cycle.
var ErrCycle = errors.New("cycle detected")

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode is returned when adding a node that already exists.
var ErrDuplicateNode = errors.New("duplicate node")

// ErrSelfEdge is returned when an edge would create a self-loop.
var ErrSelfEdge = errors.New("self-referencing edge")

// CycleError reports the path an offending edge would have closed.
type CycleError struct {
	From, To string
	// Path runs from To back to From along existing edges.
	Path []string
}

// Error describes the rejected edge and the loop it would complete.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: edge %s → %s closes %s → %s",
		e.From, e.To, strings.Join(e.Path, " → "), e.To)
}

// Unwrap lets errors.Is match ErrCycle.
func (e *CycleError) Unwrap() error { return ErrCycle }

// Node is one vertex. Rank breaks ties in the load order: lower ranks come
// first among nodes whose prerequisites are equally satisfied.
type Node struct {
	ID    string
	Rank  int
	Value any
}

// DAG is a directed acyclic graph of prerequisites.
type DAG struct {
	nodes map[string]*Node
	// requires maps nodeID → set of prerequisite IDs (forward edges).
	requires map[string]map[string]bool
	// requiredBy maps nodeID → set of dependent IDs (backward edges).
	requiredBy map[string]map[string]bool
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:      make(map[string]*Node),
		requires:   make(map[string]map[string]bool),
		requiredBy: make(map[string]map[string]bool),
	}
}

// AddNode adds a node. Returns ErrDuplicateNode if the ID is taken.
func (d *DAG) AddNode(id string, rank int, value any) error {
	if _, exists := d.nodes[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	d.nodes[id] = &Node{ID: id, Rank: rank, Value: value}
	d.requires[id] = make(map[string]bool)
	d.requiredBy[id] = make(map[string]bool)
	return nil
}

// AddEdge records that from requires to. Both nodes must exist. An edge
// that would close a cycle fails with a *CycleError.
func (d *DAG) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfEdge, from)
	}
	if _, ok := d.nodes[from]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if _, ok := d.nodes[to]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	if d.requires[from][to] {
		return nil
	}
	// from is reachable from to, so to → ... → from → to would loop.
	if path := d.path(to, from); path != nil {
		return &CycleError{From: from, To: to, Path: path}
	}
	d.requires[from][to] = true
	d.requiredBy[to][from] = true
	return nil
}

// Remove removes a node and its edges.
func (d *DAG) Remove(id string) error {
	if _, ok := d.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for dep := range d.requires[id] {
		delete(d.requiredBy[dep], id)
	}
	for dependent := range d.requiredBy[id] {
		delete(d.requires[dependent], id)
	}
	delete(d.requires, id)
	delete(d.requiredBy, id)
	delete(d.nodes, id)
	return nil
}

// Node returns the node with the given ID, or nil.
func (d *DAG) Node(id string) *Node {
	return d.nodes[id]
}

// Nodes returns all node IDs sorted alphabetically.
func (d *DAG) Nodes() []string {
	ids := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes.
func (d *DAG) Len() int {
	return len(d.nodes)
}

// Requires returns the direct prerequisites of id, sorted.
func (d *DAG) Requires(id string) []string {
	return sortedKeys(d.requires[id])
}

// TopologicalSort returns node IDs with prerequisites before dependents.
// Among nodes freed at the same time, lower Rank and then lower ID come
// first, so the order is deterministic.
func (d *DAG) TopologicalSort() ([]string, error) {
	pending := make(map[string]int, len(d.nodes))
	var queue []string
	for id := range d.nodes {
		pending[id] = len(d.requires[id])
		if pending[id] == 0 {
			queue = append(queue, id)
		}
	}
	d.rankSort(queue)

	sorted := make([]string, 0, len(d.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		var freed []string
		for dependent := range d.requiredBy[id] {
			pending[dependent]--
			if pending[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		d.rankSort(freed)
		queue = append(queue, freed...)
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("%w: not all nodes could be ordered (%d of %d)",
			ErrCycle, len(sorted), len(d.nodes))
	}
	return sorted, nil
}

// Ancestors returns every transitive prerequisite of id, sorted.
func (d *DAG) Ancestors(id string) []string {
	return d.reach(id, d.requires)
}

// Descendants returns every node that transitively requires id, sorted.
func (d *DAG) Descendants(id string) []string {
	return d.reach(id, d.requiredBy)
}

func (d *DAG) reach(id string, edges map[string]map[string]bool) []string {
	if _, ok := d.nodes[id]; !ok {
		return nil
	}
	visited := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		for next := range edges[n] {
			if !visited[next] {
				visited[next] = true
				walk(next)
			}
		}
	}
	walk(id)
	return sortedKeys(visited)
}

// path returns a forward path src → ... → dst, or nil if there is none.
func (d *DAG) path(src, dst string) []string {
	prev := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range sortedKeys(d.requires[cur]) {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == dst {
				var out []string
				for n := dst; n != ""; n = prev[n] {
					out = append([]string{n}, out...)
				}
				return out
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func (d *DAG) rankSort(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		ri, rj := d.nodes[ids[i]].Rank, d.nodes[ids[j]].Rank
		if ri != rj {
			return ri < rj
		}
		return ids[i] < ids[j]
	})
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
