package graph

import "errors"

// Sentinel errors for connection validation.
var (
	ErrSelfLoop        = errors.New("cannot connect a node to itself")
	ErrUnknownNode     = errors.New("connection endpoint not on canvas")
	ErrTemporalParadox = errors.New("a task cannot depend on a task due to finish earlier")
)

// ValidateConnection checks a drag-to-connect gesture between two nodes.
// Self-loops are rejected. Connections touching the hub skip the
// temporal check entirely. Otherwise the target's due date must not
// precede the source's; a missing due date (zero) means no constraint on
// that side.
func ValidateConnection(nodes []Node, sourceID, targetID string) error {
	if sourceID == targetID {
		return ErrSelfLoop
	}

	source := findNode(nodes, sourceID)
	target := findNode(nodes, targetID)
	if source == nil || target == nil {
		return ErrUnknownNode
	}
	if source.IsHub() || target.IsHub() {
		return nil
	}

	sourceDue := source.Task.DueUnix()
	targetDue := target.Task.DueUnix()
	if sourceDue != 0 && targetDue != 0 && targetDue < sourceDue {
		return ErrTemporalParadox
	}
	return nil
}

// ApplyConnectDimming returns a node set with opacity adjusted for an
// in-progress connection gesture from connectingID. Temporally invalid
// drop targets fall to DimmedOpacity; the hub, the source itself and
// every valid target stay fully opaque. An empty connectingID restores
// full opacity everywhere. Callers re-run this on every node-set change
// while the gesture is active.
func ApplyConnectDimming(nodes []Node, connectingID string) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)

	if connectingID == "" {
		for i := range out {
			out[i].Opacity = FullOpacity
		}
		return out
	}

	source := findNode(nodes, connectingID)
	for i := range out {
		out[i].Opacity = FullOpacity
		if source == nil || source.IsHub() || out[i].IsHub() {
			continue
		}
		if out[i].ID == connectingID {
			continue
		}
		sourceDue := source.Task.DueUnix()
		targetDue := out[i].Task.DueUnix()
		if sourceDue != 0 && targetDue != 0 && targetDue < sourceDue {
			out[i].Opacity = DimmedOpacity
		}
	}
	return out
}

func findNode(nodes []Node, id string) *Node {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
	}
	return nil
}
