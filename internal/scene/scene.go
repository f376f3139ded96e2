// Package scene owns the world tree: the loaded model's hierarchical node
// structure, root to leaf, each node wrapping a raw model payload.
package scene

// Well-known payload fields carried by IFC-derived objects.
const (
	FieldGlobalID   = "GlobalId"
	FieldName       = "Name"
	FieldObjectType = "ObjectType"
	FieldTag        = "Tag"
)

// Node is one world-tree entry: an object id, the raw model payload, and an
// ordered list of owned children.
type Node struct {
	ObjectID string
	Raw      map[string]any
	Children []*Node
}

// GlobalID returns the payload's primary identifier, or "" when absent.
func (n *Node) GlobalID() string {
	if n == nil || n.Raw == nil {
		return ""
	}
	if v, ok := n.Raw[FieldGlobalID].(string); ok {
		return v
	}
	return ""
}

// Matches reports whether the node's primary identifier or, as a fallback,
// its internal object id equals id.
func (n *Node) Matches(id string) bool {
	if id == "" {
		return false
	}
	if n.GlobalID() == id {
		return true
	}
	return n.ObjectID == id
}

// Walk visits root and every descendant depth-first in child order. The walk
// is stack-based so unbounded nesting cannot exhaust the call stack. Visit
// returning false stops the walk early.
func Walk(root *Node, visit func(*Node) bool) {
	if root == nil {
		return
	}
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if !visit(n) {
			return
		}
		// Push children in reverse so they pop in document order.
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// CollectMatches returns the object ids of every node under root whose
// primary identifier or object id equals id, in traversal order.
func CollectMatches(root *Node, id string) []string {
	var matched []string
	Walk(root, func(n *Node) bool {
		if n.Matches(id) {
			matched = append(matched, n.ObjectID)
		}
		return true
	})
	return matched
}

// Descendants returns the object ids of every node strictly below n.
func Descendants(n *Node) []string {
	var ids []string
	if n == nil {
		return ids
	}
	for _, child := range n.Children {
		Walk(child, func(d *Node) bool {
			ids = append(ids, d.ObjectID)
			return true
		})
	}
	return ids
}

// Find returns the first node under root with the given object id.
func Find(root *Node, objectID string) *Node {
	var found *Node
	Walk(root, func(n *Node) bool {
		if n.ObjectID == objectID {
			found = n
			return false
		}
		return true
	})
	return found
}

// Count returns the number of nodes under root, root included.
func Count(root *Node) int {
	total := 0
	Walk(root, func(*Node) bool {
		total++
		return true
	})
	return total
}

// FilterState is the result of an isolate or reset operation.
type FilterState struct {
	HiddenCount int
}
