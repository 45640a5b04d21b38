// Package graph holds the pure graph-state core: snapshot merging, edge
// rebuilding, connection validation and the canvas interaction state
// machine. Every function here is a reducer over the previous snapshot;
// nothing in this package performs I/O.
package graph

import (
	"strconv"

	"github.com/fentz26/tasknet/internal/models"
)

// HubID is the node ID of the synthetic workspace anchor at the canvas
// origin. The hub is not a task.
const HubID = "hub-center"

// FullOpacity and DimmedOpacity are the two rendering levels used while
// a connection gesture is in progress.
const (
	FullOpacity   = 1.0
	DimmedOpacity = 0.2
)

// Node is the ephemeral canvas projection of a task (or the hub). It is
// rebuilt on every merge cycle and never persisted.
type Node struct {
	ID        string
	X         float64
	Y         float64
	Draggable bool
	Selected  bool
	Opacity   float64
	ZIndex    int
	// Task carries the full payload so downstream panels never need a
	// second fetch. Nil for the hub.
	Task *models.Task
}

// IsHub reports whether the node is the synthetic anchor.
func (n *Node) IsHub() bool {
	return n.ID == HubID
}

// TaskID returns the numeric task id, or 0 for the hub.
func (n *Node) TaskID() int {
	if n.Task == nil {
		return 0
	}
	return n.Task.ID
}

// Edge is the canvas projection of a dependency. Edges are recreated
// wholesale on every dependency fetch; there is no incremental diffing.
type Edge struct {
	ID     string
	Source string
	Target string
}

// HubNode returns the anchor node: fixed at origin, non-draggable,
// non-selectable, stacked behind every task node.
func HubNode() Node {
	return Node{
		ID:      HubID,
		Opacity: FullOpacity,
		ZIndex:  -1,
	}
}

// NodeID converts a task id to its canvas node id.
func NodeID(taskID int) string {
	return strconv.Itoa(taskID)
}

// BuildEdges projects a dependency list onto canvas edges. The previous
// edge set is discarded entirely.
func BuildEdges(deps []models.Dependency) []Edge {
	edges := make([]Edge, len(deps))
	for i, dep := range deps {
		edges[i] = Edge{
			ID:     "e" + NodeID(dep.SourceTask) + "-" + NodeID(dep.TargetTask),
			Source: NodeID(dep.SourceTask),
			Target: NodeID(dep.TargetTask),
		}
	}
	return edges
}
