package scene

import "github.com/Faultbox/midgard-scene/pkg/math"

// Triangle indexes into a mesh's vertex and texture coordinate arrays.
// Slot selects one of the owning node's materials.
type Triangle struct {
	Vertices  [3]uint16
	TexCoords [3]uint16
	Slot      int
	TwoSided  bool
}

// Mesh is vertex data shared by every node that draws it.
type Mesh struct {
	Name      string
	Vertices  []math.Vec3
	TexCoords [][2]float32
	Colors    [][4]uint8
	Triangles []Triangle
}

// Texture is an image resolved through the filesystem. Only its header is
// read; pixel upload belongs to the renderer.
type Texture struct {
	Path   string
	Format string
	Width  int
	Height int
}

// Material describes surface appearance.
type Material struct {
	Name     string
	Diffuse  math.Vec3
	Alpha    float32
	TwoSided bool
	Texture  *Texture

	// Placeholder is set when the material stands in for one whose
	// resources could not be loaded.
	Placeholder bool
}

// PlaceholderMaterial returns an untextured magenta material.
func PlaceholderMaterial(name string) *Material {
	return &Material{
		Name:        name,
		Diffuse:     math.Vec3{X: 1, Y: 0, Z: 1},
		Alpha:       1,
		Placeholder: true,
	}
}

// Skin binds a mesh to bone nodes.
type Skin struct {
	Bones       []*Node
	BoneNames   []string
	InverseBind []math.Mat4
}
