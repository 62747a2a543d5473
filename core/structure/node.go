// Package structure guards the organizational tree against cyclic or
// self-referential mutations. It is pure graph logic over a full snapshot
// fetched from the structure backend; it never mutates anything itself.
package structure

import "fmt"

// Node is one entry of the organizational tree. ParentID is empty for roots;
// the parent relation restricted to non-empty edges must stay a forest.
type Node struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id,omitempty"`
	Children []string `json:"children,omitempty"`
	Members  []string `json:"members,omitempty"`
}

// CycleError reports a mutation that would create a cyclic or
// self-referential relationship.
type CycleError struct {
	Reason string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", e.Reason)
}

func IsCycle(err error) bool {
	_, ok := err.(*CycleError)
	return ok
}
