package loader

import (
	"fmt"

	"github.com/Faultbox/midgard-scene/internal/document"
)

// Walk states for cycle detection.
const (
	white = iota // not visited
	grey         // on the current parent chain
	black        // known to reach the root
)

// validate checks the structure the builder relies on and returns the root
// index with each node's children in document order.
func validate(doc *document.Document) (int, map[int][]int, error) {
	nodes := doc.Nodes()
	if len(nodes) == 0 {
		return 0, nil, fmt.Errorf("%w: %s: no node records", ErrMalformedDocument, doc.Name)
	}

	root := -1
	children := make(map[int][]int, len(nodes))
	for _, i := range nodes {
		n, _ := doc.Node(i)
		p := n.Header().Parent
		if p == document.NoParent {
			if root >= 0 {
				return 0, nil, fmt.Errorf("%w: %s: records %d and %d are both roots",
					ErrMalformedDocument, doc.Name, root, i)
			}
			root = i
			continue
		}
		if _, ok := doc.Node(p); !ok {
			return 0, nil, fmt.Errorf("%w: %s: record %d: parent %d is not a node",
				ErrMalformedDocument, doc.Name, i, p)
		}
		children[p] = append(children[p], i)
	}

	if err := checkCycles(doc, nodes); err != nil {
		return 0, nil, err
	}
	if root < 0 {
		return 0, nil, fmt.Errorf("%w: %s: no root node", ErrMalformedDocument, doc.Name)
	}

	for _, i := range nodes {
		if err := checkNodeRefs(doc, i); err != nil {
			return 0, nil, err
		}
	}
	for _, i := range doc.Controllers() {
		if err := checkController(doc, i); err != nil {
			return 0, nil, err
		}
	}
	return root, children, nil
}

// checkCycles follows every node's parent chain. Reaching a node already on
// the current chain means the parent links loop.
func checkCycles(doc *document.Document, nodes []int) error {
	state := make(map[int]int, len(nodes))
	var chain []int

	for _, start := range nodes {
		chain = chain[:0]
		cur := start
		for cur != document.NoParent && state[cur] == white {
			state[cur] = grey
			chain = append(chain, cur)
			n, _ := doc.Node(cur)
			cur = n.Header().Parent
		}
		if cur != document.NoParent && state[cur] == grey {
			return fmt.Errorf("%w: %s: parent cycle through records %v",
				ErrMalformedDocument, doc.Name, cycleFrom(chain, cur))
		}
		for _, i := range chain {
			state[i] = black
		}
	}
	return nil
}

func cycleFrom(chain []int, at int) []int {
	for i, v := range chain {
		if v == at {
			return chain[i:]
		}
	}
	return chain
}

// checkNodeRefs rejects node references that point outside the document.
// References to records of the wrong kind are left to the builder, which
// skips the node as unsupported.
func checkNodeRefs(doc *document.Document, i int) error {
	mesh, skin := -1, -1
	var materials []int

	switch n := doc.Records[i].(type) {
	case *document.GeometryNode:
		mesh, materials = n.Mesh, n.Materials
	case *document.SkinnedNode:
		mesh, materials, skin = n.Mesh, n.Materials, n.Skin
	default:
		return nil
	}

	if _, ok := doc.Record(mesh); !ok {
		return fmt.Errorf("%w: %s: record %d: mesh %d does not exist", ErrMalformedDocument, doc.Name, i, mesh)
	}
	for _, m := range materials {
		if m < 0 {
			continue
		}
		if _, ok := doc.Record(m); !ok {
			return fmt.Errorf("%w: %s: record %d: material %d does not exist", ErrMalformedDocument, doc.Name, i, m)
		}
		if err := checkMaterial(doc, m); err != nil {
			return err
		}
	}
	if doc.Records[i].Kind() != document.KindSkinned {
		return nil
	}
	if _, ok := doc.Record(skin); !ok {
		return fmt.Errorf("%w: %s: record %d: skin %d does not exist", ErrMalformedDocument, doc.Name, i, skin)
	}
	if s, ok := recordAs[*document.Skin](doc, skin); ok {
		for _, b := range s.Bones {
			if _, ok := doc.Node(b); !ok {
				return fmt.Errorf("%w: %s: skin %d: bone %d is not a node", ErrMalformedDocument, doc.Name, skin, b)
			}
		}
	}
	return nil
}

// checkMaterial validates the texture reference of material record m. It
// does nothing when m holds another kind of record.
func checkMaterial(doc *document.Document, m int) error {
	mat, ok := recordAs[*document.Material](doc, m)
	if !ok || mat.Texture < 0 {
		return nil
	}
	if _, ok := recordAs[*document.Texture](doc, mat.Texture); !ok {
		return fmt.Errorf("%w: %s: material %d: texture %d is not a texture", ErrMalformedDocument, doc.Name, m, mat.Texture)
	}
	return nil
}

func checkController(doc *document.Document, i int) error {
	c := doc.Records[i].(*document.KeyframeController)

	if c.Property.TargetsMaterial() {
		if _, ok := recordAs[*document.Material](doc, c.Target); !ok {
			return fmt.Errorf("%w: %s: controller %d: target %d is not a material", ErrMalformedDocument, doc.Name, i, c.Target)
		}
		if err := checkMaterial(doc, c.Target); err != nil {
			return err
		}
	} else if _, ok := doc.Node(c.Target); !ok {
		return fmt.Errorf("%w: %s: controller %d: target %d is not a node", ErrMalformedDocument, doc.Name, i, c.Target)
	}

	if len(c.Keys) == 0 {
		return fmt.Errorf("%w: %s: controller %d has no keys", ErrMalformedDocument, doc.Name, i)
	}
	for k := 1; k < len(c.Keys); k++ {
		if c.Keys[k].Time < c.Keys[k-1].Time {
			return fmt.Errorf("%w: %s: controller %d: keys out of order at %d", ErrMalformedDocument, doc.Name, i, k)
		}
	}
	return nil
}

func recordAs[T document.Record](doc *document.Document, i int) (T, bool) {
	var zero T
	r, ok := doc.Record(i)
	if !ok {
		return zero, false
	}
	t, ok := r.(T)
	return t, ok
}
