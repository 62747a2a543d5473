package structure

import "fmt"

// Validator checks structural mutations against a freshly-fetched snapshot
// of every node. It deliberately never caches between calls: safety checks
// on a stale partial view are how trees acquire loops.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// CheckReparent rejects moving movingNode under newParentName when the new
// parent is the node itself or any of its descendants.
func (v *Validator) CheckReparent(moving Node, newParentName string, all []Node) error {
	if newParentName == moving.Name {
		return &CycleError{Reason: fmt.Sprintf("%q cannot be its own parent", moving.Name)}
	}
	for _, id := range descendantsOf(moving.ID, all) {
		if node, ok := byID(all, id); ok && node.Name == newParentName {
			return &CycleError{Reason: fmt.Sprintf("%q is a descendant of %q", newParentName, moving.Name)}
		}
	}
	return nil
}

// CheckChildrenAssignment vets each candidate child independently: a node
// cannot adopt itself, cannot re-adopt an existing descendant, and cannot be
// adopted by a node sitting below it (the indirect cycle).
func (v *Validator) CheckChildrenAssignment(parentName string, candidateChildIDs []string, all []Node) error {
	parent, ok := byName(all, parentName)
	if !ok {
		return fmt.Errorf("unknown parent %q", parentName)
	}
	parentDescendants := toSet(descendantsOf(parent.ID, all))
	for _, childID := range candidateChildIDs {
		if childID == parent.ID {
			return &CycleError{Reason: fmt.Sprintf("%q cannot be its own child", parentName)}
		}
		if _, ok := parentDescendants[childID]; ok {
			child, _ := byID(all, childID)
			return &CycleError{Reason: fmt.Sprintf("%q is already a descendant of %q", child.Name, parentName)}
		}
		for _, id := range descendantsOf(childID, all) {
			if id == parent.ID {
				child, _ := byID(all, childID)
				return &CycleError{Reason: fmt.Sprintf("%q sits below candidate child %q", parentName, child.Name)}
			}
		}
	}
	return nil
}

// descendantsOf walks the parent-pointer graph breadth-first. A visited set
// keeps the walk finite even if the input snapshot already carries a loop.
func descendantsOf(id string, all []Node) []string {
	children := make(map[string][]string, len(all))
	for _, n := range all {
		if n.ParentID != "" {
			children[n.ParentID] = append(children[n.ParentID], n.ID)
		}
	}
	var out []string
	visited := map[string]struct{}{id: {}}
	queue := append([]string(nil), children[id]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := visited[cur]; ok {
			continue
		}
		visited[cur] = struct{}{}
		out = append(out, cur)
		queue = append(queue, children[cur]...)
	}
	return out
}

func byID(all []Node, id string) (Node, bool) {
	for _, n := range all {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

func byName(all []Node, name string) (Node, bool) {
	for _, n := range all {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
