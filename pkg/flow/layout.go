package flow

import (
	"fmt"
	"hash/fnv"

	"github.com/carbonlens/carbonflow/pkg/models"
)

// Canvas spacing for computed layouts.
const (
	layoutColumnGap = 280.0
	layoutRowGap    = 140.0

	forceCanvasWidth  = 1200.0
	forceCanvasHeight = 800.0
)

// applyLayout recomputes node positions in place. All layouts are
// deterministic: the same graph and layout type always yield the same
// positions, keeping UI diffs stable. No non-positional field is altered.
func applyLayout(g *models.WorkflowGraph, layout models.LayoutType) error {
	switch layout {
	case models.LayoutHierarchical:
		layoutHierarchical(g)
	case models.LayoutForce:
		layoutForce(g)
	case models.LayoutManual:
		layoutManual(g)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLayout, layout)
	}

	return nil
}

// layoutHierarchical places nodes in columns by their longest path from a
// root (a node with no incoming edge), rows by insertion order within the
// column. Material flow reads left to right.
func layoutHierarchical(g *models.WorkflowGraph) {
	depth := make(map[string]int, g.Len())

	incoming := make(map[string][]string)
	for _, e := range g.Edges() {
		incoming[e.Target] = append(incoming[e.Target], e.Source)
	}

	var resolve func(id string, visiting map[string]bool) int

	resolve = func(id string, visiting map[string]bool) int {
		if d, ok := depth[id]; ok {
			return d
		}

		// Cycles cannot normally occur, but a stored graph is caller
		// input; break them instead of recursing forever.
		if visiting[id] {
			return 0
		}

		visiting[id] = true

		best := 0
		for _, src := range incoming[id] {
			if d := resolve(src, visiting) + 1; d > best {
				best = d
			}
		}

		delete(visiting, id)
		depth[id] = best

		return best
	}

	rows := make(map[int]int)

	for _, node := range g.Nodes() {
		column := resolve(node.ID, make(map[string]bool))
		row := rows[column]
		rows[column] = row + 1

		node.Position = models.Position{
			X: float64(column) * layoutColumnGap,
			Y: float64(row) * layoutRowGap,
		}
	}
}

// layoutForce scatters nodes over a bounded canvas using an id-hash seeded
// placement. Not a physical simulation, but stable for a given graph, which
// is what the UI actually needs from "force" layout.
func layoutForce(g *models.WorkflowGraph) {
	for i, node := range g.Nodes() {
		h := fnv.New64a()
		_, _ = h.Write([]byte(node.ID))
		seed := h.Sum64()

		x := float64(seed%uint64(forceCanvasWidth)) // nolint:gosec
		y := float64((seed / uint64(forceCanvasWidth)) % uint64(forceCanvasHeight))

		// Nudge by insertion index so id-hash collisions never stack
		// nodes exactly on top of each other.
		node.Position = models.Position{
			X: x + float64(i%3)*24,
			Y: y + float64(i%5)*16,
		}
	}
}

// layoutManual leaves user-placed nodes alone and only assigns a default
// grid slot to nodes that never received a position.
func layoutManual(g *models.WorkflowGraph) {
	placed := 0

	for _, node := range g.Nodes() {
		if node.Position != (models.Position{}) {
			continue
		}

		node.Position = defaultPosition(placed)
		placed++
	}
}

// defaultPosition is the staggered slot for the n-th unplaced node.
func defaultPosition(n int) models.Position {
	const perRow = 4

	return models.Position{
		X: float64(n%perRow)*layoutColumnGap + 40,
		Y: float64(n/perRow)*layoutRowGap + 40,
	}
}
