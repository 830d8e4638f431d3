// Package document holds the in-memory record graph of a parsed model.
//
// A Document is an ordered list of typed records that reference each other
// by index. Node records form a single tree through their Parent index;
// meshes, materials, textures and skins may be shared by any number of
// nodes.
package document

import (
	"fmt"

	"github.com/Faultbox/midgard-scene/internal/anim"
	"github.com/Faultbox/midgard-scene/pkg/math"
)

// Kind identifies a record variant.
type Kind int

const (
	KindTransform Kind = iota
	KindGeometry
	KindSkinned
	KindMesh
	KindMaterial
	KindTexture
	KindSkin
	KindController
	KindUnsupported
)

var kindNames = [...]string{
	KindTransform:   "TransformNode",
	KindGeometry:    "GeometryNode",
	KindSkinned:     "SkinnedNode",
	KindMesh:        "Mesh",
	KindMaterial:    "Material",
	KindTexture:     "Texture",
	KindSkin:        "Skin",
	KindController:  "KeyframeController",
	KindUnsupported: "Unsupported",
}

// String returns the record type name.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsNode reports whether records of this kind take part in the node tree.
func (k Kind) IsNode() bool {
	switch k {
	case KindTransform, KindGeometry, KindSkinned, KindUnsupported:
		return true
	}
	return false
}

// Record is one entry of a document.
type Record interface {
	Kind() Kind
}

// Node is a record that has a place in the node tree.
type Node interface {
	Record
	Header() *NodeHeader
}

// NoParent marks the root node.
const NoParent = -1

// NodeHeader carries the fields every node record shares.
type NodeHeader struct {
	Name        string
	Parent      int // record index, or NoParent
	Translation math.Vec3
	Rotation    math.Quat
	Scale       math.Vec3
	Hidden      bool
}

// Header returns the shared node fields.
func (h *NodeHeader) Header() *NodeHeader { return h }

// TransformNode only positions its children.
type TransformNode struct {
	NodeHeader
}

// GeometryNode draws a mesh. Materials maps the mesh's triangle slots to
// material records.
type GeometryNode struct {
	NodeHeader
	Mesh      int
	Materials []int
}

// SkinnedNode draws a mesh deformed by a skin.
type SkinnedNode struct {
	NodeHeader
	Mesh      int
	Materials []int
	Skin      int
}

// Unsupported is a node whose type the provider could not map. The builder
// skips it together with its subtree.
type Unsupported struct {
	NodeHeader
	TypeName string
}

// Triangle indexes into a mesh's vertex and texture coordinate arrays.
type Triangle struct {
	Vertices    [3]uint16
	TexCoords   [3]uint16
	Slot        int // index into the owning node's Materials
	TwoSided    bool
	SmoothGroup int32
}

// Mesh is shared vertex data.
type Mesh struct {
	Name      string
	Vertices  []math.Vec3
	TexCoords [][2]float32
	Colors    [][4]uint8
	Triangles []Triangle
}

// Material describes surface appearance. Texture is a record index or -1.
type Material struct {
	Name     string
	Texture  int
	Diffuse  math.Vec3
	Alpha    float32
	TwoSided bool
}

// Texture names an image resolved through the filesystem.
type Texture struct {
	Path string
}

// Skin binds a mesh to bone nodes.
type Skin struct {
	Bones       []int // node record indices
	InverseBind []math.Mat4
}

// Property is the value a keyframe controller drives.
type Property int

const (
	PropTranslation Property = iota
	PropRotation
	PropScale
	PropVisibility
	PropAlpha
	PropDiffuse
)

var propertyNames = [...]string{
	PropTranslation: "translation",
	PropRotation:    "rotation",
	PropScale:       "scale",
	PropVisibility:  "visibility",
	PropAlpha:       "alpha",
	PropDiffuse:     "diffuse",
}

func (p Property) String() string {
	if p >= 0 && int(p) < len(propertyNames) {
		return propertyNames[p]
	}
	return fmt.Sprintf("Property(%d)", int(p))
}

// TargetsMaterial reports whether the property lives on a material record
// rather than a node record.
func (p Property) TargetsMaterial() bool {
	return p == PropAlpha || p == PropDiffuse
}

// Keyframe is one sample. Value holds X, Y, Z, W for quaternions, X, Y, Z
// for vectors and a single component for scalars and visibility.
type Keyframe struct {
	Time  float32
	Value [4]float32
}

// KeyframeController animates one property of a node or material record.
type KeyframeController struct {
	Target    int
	Property  Property
	Interp    anim.Interp
	Cycle     anim.Cycle
	Start     float32
	Stop      float32
	Frequency float32
	Phase     float32
	Keys      []Keyframe
}

func (*TransformNode) Kind() Kind      { return KindTransform }
func (*GeometryNode) Kind() Kind       { return KindGeometry }
func (*SkinnedNode) Kind() Kind        { return KindSkinned }
func (*Unsupported) Kind() Kind        { return KindUnsupported }
func (*Mesh) Kind() Kind               { return KindMesh }
func (*Material) Kind() Kind           { return KindMaterial }
func (*Texture) Kind() Kind            { return KindTexture }
func (*Skin) Kind() Kind               { return KindSkin }
func (*KeyframeController) Kind() Kind { return KindController }

// Document is a parsed model.
type Document struct {
	Name    string
	Records []Record
}

// Len returns the number of records.
func (d *Document) Len() int {
	return len(d.Records)
}

// Record returns the record at index i.
func (d *Document) Record(i int) (Record, bool) {
	if i < 0 || i >= len(d.Records) {
		return nil, false
	}
	return d.Records[i], d.Records[i] != nil
}

// Node returns the node record at index i.
func (d *Document) Node(i int) (Node, bool) {
	r, ok := d.Record(i)
	if !ok {
		return nil, false
	}
	n, ok := r.(Node)
	return n, ok
}

// Nodes returns the indices of node records in document order.
func (d *Document) Nodes() []int {
	var out []int
	for i, r := range d.Records {
		if r != nil && r.Kind().IsNode() {
			out = append(out, i)
		}
	}
	return out
}

// Controllers returns the indices of keyframe controllers in document order.
func (d *Document) Controllers() []int {
	var out []int
	for i, r := range d.Records {
		if r != nil && r.Kind() == KindController {
			out = append(out, i)
		}
	}
	return out
}

// Add appends a record and returns its index.
func (d *Document) Add(r Record) int {
	d.Records = append(d.Records, r)
	return len(d.Records) - 1
}
