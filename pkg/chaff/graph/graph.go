// Package graph builds the cross-reference graph between planned files.
//
// Every node carries a generation number. Attachment and embed edges point
// from a node to nodes of a strictly lower generation, and a node with a
// secret points at its hint carrier, also of a strictly lower generation.
// Generations are therefore a topological order of all dependencies and the
// graph is acyclic by construction.
package graph

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// Graph is the set of planned files and their reference edges.
type Graph struct {
	Nodes []*types.FileSpec

	byID   map[types.NodeID]*types.FileSpec
	nextID types.NodeID
}

// New wraps specs, which must have unique IDs, in a Graph.
func New(specs []*types.FileSpec) *Graph {
	g := &Graph{
		Nodes: specs,
		byID:  make(map[types.NodeID]*types.FileSpec, len(specs)),
	}
	for _, s := range specs {
		g.byID[s.ID] = s
		if s.ID >= g.nextID {
			g.nextID = s.ID + 1
		}
	}
	if g.nextID == 0 {
		g.nextID = 1
	}
	return g
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id types.NodeID) *types.FileSpec {
	return g.byID[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// add appends a node under a fresh ID.
func (g *Graph) add(s *types.FileSpec) {
	s.ID = g.nextID
	g.nextID++
	g.Nodes = append(g.Nodes, s)
	g.byID[s.ID] = s
}

// ByGeneration returns the nodes ordered by generation, ties by ID. Every
// node comes after all of its dependencies.
func (g *Graph) ByGeneration() []*types.FileSpec {
	out := make([]*types.FileSpec, len(g.Nodes))
	copy(out, g.Nodes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Generation != out[j].Generation {
			return out[i].Generation < out[j].Generation
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Dependencies returns the nodes that must be written before s can be
// rendered: its attachment and embed targets and its hint carrier.
func Dependencies(s *types.FileSpec) []types.NodeID {
	deps := make([]types.NodeID, 0, len(s.References))
	for _, ref := range s.References {
		deps = append(deps, ref.Target)
	}
	return deps
}

// Build assigns generations in a random processing order and links each node
// to up to k earlier nodes per role it supports. k <= 0 yields isolated
// nodes.
func Build(specs []*types.FileSpec, k int, rng *rand.Rand) *Graph {
	g := New(specs)

	order := rng.Perm(len(specs))
	processed := make(map[types.FileType][]types.NodeID)

	for gen, idx := range order {
		node := specs[idx]
		node.Generation = gen + 1

		if k > 0 {
			for _, role := range types.LinkRoles {
				if !node.Type.Links(role) {
					continue
				}
				var pools [][]types.NodeID
				for _, t := range types.AllFileTypes {
					if types.CanTarget(node.Type, role, t) && len(processed[t]) > 0 {
						pools = append(pools, processed[t])
					}
				}
				degree := rng.IntN(k + 1)
				for _, id := range sampleDistinct(pools, degree, rng) {
					node.References = append(node.References, types.Reference{Target: id, Role: role})
				}
			}
		}

		processed[node.Type] = append(processed[node.Type], node.ID)
	}

	return g
}

// sampleDistinct picks up to n distinct IDs uniformly from the union of
// pools using Floyd's algorithm, in a deterministic order.
func sampleDistinct(pools [][]types.NodeID, n int, rng *rand.Rand) []types.NodeID {
	total := 0
	for _, p := range pools {
		total += len(p)
	}
	if n > total {
		n = total
	}
	if n <= 0 {
		return nil
	}

	chosen := make(map[int]bool, n)
	picks := make([]int, 0, n)
	for j := total - n; j < total; j++ {
		t := rng.IntN(j + 1)
		if chosen[t] {
			t = j
		}
		chosen[t] = true
		picks = append(picks, t)
	}

	ids := make([]types.NodeID, 0, n)
	for _, flat := range picks {
		for _, p := range pools {
			if flat < len(p) {
				ids = append(ids, p[flat])
				break
			}
			flat -= len(p)
		}
	}
	return ids
}

// Validate checks every graph invariant for out-degree cap k. Any failure
// wraps types.ErrGraphInvariant and indicates a planner bug.
func (g *Graph) Validate(k int) error {
	seen := make(map[types.NodeID]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			return invariant("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
		if g.byID[n.ID] != n {
			return invariant("node %d missing from index", n.ID)
		}
	}

	for _, n := range g.Nodes {
		degree := make(map[types.Role]int)
		targets := make(map[types.Reference]bool)

		for _, ref := range n.References {
			target := g.byID[ref.Target]
			if target == nil {
				return invariant("node %d references missing node %d", n.ID, ref.Target)
			}
			if target.Generation >= n.Generation {
				return invariant("node %d (gen %d) references node %d (gen %d) of equal or later generation",
					n.ID, n.Generation, target.ID, target.Generation)
			}
			if targets[ref] {
				return invariant("node %d references node %d twice as %s", n.ID, ref.Target, ref.Role)
			}
			targets[ref] = true
			degree[ref.Role]++

			switch ref.Role {
			case types.Attachment, types.EmbeddedAsset:
				if !types.CanTarget(n.Type, ref.Role, target.Type) {
					return invariant("%s node %d cannot hold %s edge to %s node %d",
						n.Type, n.ID, ref.Role, target.Type, target.ID)
				}
			case types.PasswordHint:
				if !n.Encoding.NeedsSecret() {
					return invariant("node %d has a hint edge but encoding %s", n.ID, n.Encoding)
				}
				if !types.CapabilitiesOf(target.Type).SecretCarrier || target.Encoding.NeedsSecret() {
					return invariant("node %d is not a valid hint carrier", target.ID)
				}
				if !carries(target, n.Secret) {
					return invariant("carrier %d does not hold the secret of node %d", target.ID, n.ID)
				}
			default:
				return invariant("node %d has unknown role %d", n.ID, ref.Role)
			}
		}

		for _, role := range types.LinkRoles {
			if degree[role] > k {
				return invariant("node %d has %d %s edges, cap %d", n.ID, degree[role], role, k)
			}
		}
		if n.Encoding.NeedsSecret() {
			if n.Secret == "" {
				return invariant("node %d is %s without a secret", n.ID, n.Encoding)
			}
			if degree[types.PasswordHint] != 1 {
				return invariant("node %d has %d hint carriers, want 1", n.ID, degree[types.PasswordHint])
			}
		}
	}

	return nil
}

func carries(carrier *types.FileSpec, secret string) bool {
	for _, line := range carrier.HintLines {
		if strings.Contains(line, secret) {
			return true
		}
	}
	return false
}

func invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrGraphInvariant, fmt.Sprintf(format, args...))
}
