// Package scene provides the live node hierarchy that models are built into.
package scene

import (
	"fmt"

	"github.com/Faultbox/midgard-scene/pkg/math"
)

// Kind is the role a node was built for.
type Kind int

const (
	Transform Kind = iota
	Geometry
	Skinned
)

func (k Kind) String() string {
	switch k {
	case Transform:
		return "transform"
	case Geometry:
		return "geometry"
	case Skinned:
		return "skinned"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is one element of the hierarchy. A node owns its children;
// Mesh, Material and Skin attachments are shared references.
type Node struct {
	Name     string
	Kind     Kind
	Parent   *Node
	Children []*Node

	Translation math.Vec3
	Rotation    math.Quat
	Scale       math.Vec3
	Visible     bool

	Mesh      *Mesh
	Materials []*Material
	Skin      *Skin

	// BoneName is set in skeleton builds so skinned meshes elsewhere can
	// find this node by name.
	BoneName string

	// World is the node's model-space transform, valid after UpdateWorld.
	World math.Mat4
}

// NewNode creates a visible node with an identity transform.
func NewNode(name string, kind Kind) *Node {
	return &Node{
		Name:     name,
		Kind:     kind,
		Rotation: math.QuatIdentity(),
		Scale:    math.One(),
		Visible:  true,
		World:    math.Identity(),
	}
}

// AddChild attaches child as the last child of n.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Local returns the node's transform relative to its parent.
func (n *Node) Local() math.Mat4 {
	return math.Compose(n.Translation, n.Rotation, n.Scale)
}

// Walk visits n and its descendants depth-first, parents before children,
// children in order. Returning false from fn skips that node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// Find returns the first node called name in walk order.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// Path returns the slash-joined names from the root down to n.
func (n *Node) Path() string {
	if n.Parent == nil {
		return n.Name
	}
	return n.Parent.Path() + "/" + n.Name
}

// UpdateWorld recomputes world transforms for the subtree and returns the
// number of visible geometry-bearing nodes, the work a render pass would
// submit. Hidden nodes hide their subtree.
func (n *Node) UpdateWorld() int {
	parent := math.Identity()
	if n.Parent != nil {
		parent = n.Parent.World
	}

	type item struct {
		node   *Node
		parent math.Mat4
	}
	drawn := 0
	stack := []item{{n, parent}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		it.node.World = it.parent.Mul(it.node.Local())
		if !it.node.Visible {
			continue
		}
		if it.node.Mesh != nil {
			drawn++
		}
		for i := len(it.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.node.Children[i], it.node.World})
		}
	}
	return drawn
}
