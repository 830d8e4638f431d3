package document

import (
	"errors"
	"fmt"
	"io"

	"github.com/Faultbox/midgard-scene/internal/anim"
	"github.com/Faultbox/midgard-scene/pkg/formats"
	"github.com/Faultbox/midgard-scene/pkg/math"
)

// ErrParse reports model bytes that could not be turned into a document.
var ErrParse = errors.New("model parse error")

// Load parses an RSM model from r. name is used in diagnostics and becomes
// the document name.
func Load(r io.Reader, name string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, name, err)
	}
	rsm, err := formats.ParseRSM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, name, err)
	}
	return FromRSM(name, rsm), nil
}

// FromRSM converts a parsed RSM model.
//
// Records are laid out as texture/material pairs, then one node per RSM
// node, then meshes, then keyframe controllers. Every RSM texture becomes a
// material shared by all nodes that use it.
func FromRSM(name string, rsm *formats.RSM) *Document {
	doc := &Document{Name: name}

	materials := make([]int, len(rsm.Textures))
	for i, tex := range rsm.Textures {
		texIdx := doc.Add(&Texture{Path: tex})
		materials[i] = doc.Add(&Material{
			Name:    tex,
			Texture: texIdx,
			Diffuse: math.One(),
			Alpha:   rsm.Alpha,
		})
	}

	nodeBase := doc.Len()
	root := rsmRoot(rsm)

	meshIdx := nodeBase + len(rsm.Nodes)
	meshes := make([]*Mesh, 0, len(rsm.Nodes))
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		hdr := NodeHeader{
			Name:        n.Name,
			Parent:      NoParent,
			Translation: math.V3(n.Position),
			Rotation:    rsmRotation(n),
			Scale:       rsmScale(n.Scale),
		}
		if i != root {
			hdr.Parent = nodeBase + rsmParent(rsm, i, root)
		}

		if len(n.Faces) == 0 {
			doc.Add(&TransformNode{NodeHeader: hdr})
			continue
		}

		mesh, slots := rsmMesh(n)
		mats := make([]int, len(slots))
		for s, texID := range slots {
			mats[s] = -1
			if texID >= 0 && int(texID) < len(materials) {
				mats[s] = materials[texID]
			}
		}
		doc.Add(&GeometryNode{NodeHeader: hdr, Mesh: meshIdx, Materials: mats})
		meshes = append(meshes, mesh)
		meshIdx++
	}
	for _, m := range meshes {
		doc.Add(m)
	}

	cycle := anim.Clamp
	var stop float32
	if rsm.AnimLength > 0 {
		cycle = anim.Loop
		stop = float32(rsm.AnimLength) / 1000
	}
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		target := nodeBase + i

		if len(n.PosKeys) > 0 {
			keys := make([]Keyframe, len(n.PosKeys))
			for k, key := range n.PosKeys {
				keys[k] = Keyframe{Time: msToSeconds(key.Frame), Value: vec4(key.Position)}
			}
			doc.Add(rsmController(target, PropTranslation, anim.Linear, cycle, stop, keys))
		}
		if len(n.RotKeys) > 0 {
			keys := make([]Keyframe, len(n.RotKeys))
			for k, key := range n.RotKeys {
				keys[k] = Keyframe{Time: msToSeconds(key.Frame), Value: key.Quaternion}
			}
			doc.Add(rsmController(target, PropRotation, anim.Slerp, cycle, stop, keys))
		}
		if len(n.ScaleKeys) > 0 {
			keys := make([]Keyframe, len(n.ScaleKeys))
			for k, key := range n.ScaleKeys {
				keys[k] = Keyframe{Time: msToSeconds(key.Frame), Value: vec4(key.Scale)}
			}
			doc.Add(rsmController(target, PropScale, anim.Linear, cycle, stop, keys))
		}
	}

	return doc
}

// rsmRoot picks the node named by the header, then the first parentless
// node, then the first node.
func rsmRoot(rsm *formats.RSM) int {
	if i := rsm.NodeIndex(rsm.RootNode); i >= 0 {
		return i
	}
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == "" {
			return i
		}
	}
	return 0
}

// rsmParent resolves a parent name. Missing or self-referencing parents
// attach to the root.
func rsmParent(rsm *formats.RSM, i, root int) int {
	p := rsm.NodeIndex(rsm.Nodes[i].Parent)
	if p < 0 || p == i {
		return root
	}
	return p
}

func rsmRotation(n *formats.RSMNode) math.Quat {
	base := math.QuatFromMat4(math.FromMat3(n.Matrix))
	axis := math.V3(n.RotAxis)
	if n.RotAngle == 0 || axis.Length() == 0 {
		return base
	}
	return math.QuatFromAxisAngle(axis, n.RotAngle).Mul(base).Normalize()
}

func rsmScale(s [3]float32) math.Vec3 {
	if s == [3]float32{} {
		return math.One()
	}
	return math.V3(s)
}

// rsmMesh copies a node's geometry with the pivot offset applied. slots
// lists the RSM texture index of every material slot the faces use.
func rsmMesh(n *formats.RSMNode) (*Mesh, []int32) {
	offset := math.V3(n.Offset)
	mesh := &Mesh{
		Name:      n.Name,
		Vertices:  make([]math.Vec3, len(n.Vertices)),
		TexCoords: make([][2]float32, len(n.TexCoords)),
		Colors:    make([][4]uint8, len(n.TexCoords)),
		Triangles: make([]Triangle, len(n.Faces)),
	}
	for i, v := range n.Vertices {
		mesh.Vertices[i] = math.V3(v).Add(offset)
	}
	for i, tc := range n.TexCoords {
		mesh.TexCoords[i] = [2]float32{tc.U, tc.V}
		mesh.Colors[i] = tc.Color
	}

	slotOf := make(map[uint16]int)
	var slots []int32
	for i, f := range n.Faces {
		slot, ok := slotOf[f.TextureID]
		if !ok {
			slot = len(slots)
			slotOf[f.TextureID] = slot
			texID := int32(-1)
			if int(f.TextureID) < len(n.TextureIDs) {
				texID = n.TextureIDs[f.TextureID]
			}
			slots = append(slots, texID)
		}
		mesh.Triangles[i] = Triangle{
			Vertices:    f.VertexIDs,
			TexCoords:   f.TexCoordIDs,
			Slot:        slot,
			TwoSided:    f.TwoSide != 0,
			SmoothGroup: f.SmoothGroup,
		}
	}
	return mesh, slots
}

func rsmController(target int, prop Property, interp anim.Interp, cycle anim.Cycle, stop float32, keys []Keyframe) *KeyframeController {
	c := &KeyframeController{
		Target:    target,
		Property:  prop,
		Interp:    interp,
		Cycle:     cycle,
		Start:     keys[0].Time,
		Stop:      keys[len(keys)-1].Time,
		Frequency: 1,
		Keys:      keys,
	}
	if cycle == anim.Loop {
		c.Start, c.Stop = 0, stop
	}
	return c
}

func msToSeconds(ms int32) float32 {
	return float32(ms) / 1000
}

func vec4(v [3]float32) [4]float32 {
	return [4]float32{v[0], v[1], v[2], 0}
}
