package loader

import (
	"bytes"
	"errors"
	"image"
	"io"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/Faultbox/midgard-scene/internal/anim"
	"github.com/Faultbox/midgard-scene/internal/document"
	"github.com/Faultbox/midgard-scene/internal/scene"
	"github.com/Faultbox/midgard-scene/internal/vfs"
	"github.com/Faultbox/midgard-scene/pkg/formats"
	"github.com/Faultbox/midgard-scene/pkg/math"
)

func hdr(name string, parent int) document.NodeHeader {
	return document.NodeHeader{
		Name:     name,
		Parent:   parent,
		Rotation: math.QuatIdentity(),
		Scale:    math.One(),
	}
}

func bmpBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding bmp: %v", err)
	}
	return buf.Bytes()
}

func newFS(t *testing.T, files map[string][]byte) *vfs.Manager {
	t.Helper()
	src := vfs.NewMemSource("mem")
	for name, data := range files {
		src.Add(name, data)
	}
	m := vfs.New(vfs.Config{})
	if err := m.AddArchive(src); err != nil {
		t.Fatal(err)
	}
	if err := m.BuildIndex(); err != nil {
		t.Fatal(err)
	}
	return m
}

func linearKeys() []document.Keyframe {
	return []document.Keyframe{
		{Time: 0, Value: [4]float32{0, 0, 0, 0}},
		{Time: 1, Value: [4]float32{10, 0, 0, 0}},
	}
}

// chestDocument is a small model:
//
//	0 texture wall.bmp
//	1 material wall (texture 0)
//	2 mesh
//	3 root  (transform)
//	4 body  (geometry, parent 3, material 1)
//	5 lid   (geometry, parent 3, material 1)
//	6 hinge (transform, parent 5)
//	7 controller: lid translation
//	8 controller: wall alpha
//	9 controller: hinge rotation
func chestDocument() *document.Document {
	mesh := &document.Mesh{
		Name:      "box",
		Vertices:  []math.Vec3{{}, {X: 1}, {Z: 1}},
		Triangles: []document.Triangle{{Vertices: [3]uint16{0, 1, 2}}},
	}
	return &document.Document{
		Name: "chest.rsm",
		Records: []document.Record{
			&document.Texture{Path: "wall.bmp"},
			&document.Material{Name: "wall", Texture: 0, Diffuse: math.One(), Alpha: 1},
			mesh,
			&document.TransformNode{NodeHeader: hdr("root", document.NoParent)},
			&document.GeometryNode{NodeHeader: hdr("body", 3), Mesh: 2, Materials: []int{1}},
			&document.GeometryNode{NodeHeader: hdr("lid", 3), Mesh: 2, Materials: []int{1}},
			&document.TransformNode{NodeHeader: hdr("hinge", 5)},
			&document.KeyframeController{Target: 5, Property: document.PropTranslation, Interp: anim.Linear, Keys: linearKeys()},
			&document.KeyframeController{Target: 1, Property: document.PropAlpha, Interp: anim.Linear, Cycle: anim.Loop, Keys: linearKeys()},
			&document.KeyframeController{Target: 6, Property: document.PropRotation, Interp: anim.Slerp, Keys: []document.Keyframe{
				{Time: 0, Value: [4]float32{0, 0, 0, 1}},
				{Time: 1, Value: [4]float32{0.7071, 0, 0, 0.7071}},
			}},
		},
	}
}

func TestBuild_MirrorsDocument(t *testing.T) {
	doc := chestDocument()
	fs := newFS(t, map[string][]byte{"data/texture/wall.bmp": bmpBytes(t, 4, 2)})

	res, err := New(fs, Config{}).Build(doc, false)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if res.Partial() {
		t.Errorf("unexpected partial result: %v", res.Err())
	}

	if got := res.Root.Count(); got != len(doc.Nodes()) {
		t.Errorf("tree has %d nodes, document has %d", got, len(doc.Nodes()))
	}
	for _, i := range doc.Nodes() {
		n, _ := doc.Node(i)
		built := res.Nodes[i]
		if built == nil {
			t.Fatalf("record %d not built", i)
		}
		p := n.Header().Parent
		if p == document.NoParent {
			if built != res.Root {
				t.Errorf("record %d should be the root", i)
			}
			continue
		}
		if built.Parent != res.Nodes[p] {
			t.Errorf("record %d: parent %v, want record %d", i, built.Parent.Name, p)
		}
	}

	root := res.Root
	if len(root.Children) != 2 || root.Children[0].Name != "body" || root.Children[1].Name != "lid" {
		t.Errorf("children should follow document order, got %v", root.Children)
	}
	if len(res.Controllers) != len(doc.Controllers()) {
		t.Errorf("got %d controllers, want %d", len(res.Controllers), len(doc.Controllers()))
	}
	if res.Bones != nil {
		t.Error("bone names should only be kept in skeleton builds")
	}
}

func TestBuild_ControllerOrderDeterministic(t *testing.T) {
	doc := chestDocument()
	b := New(nil, Config{})

	targets := func() []string {
		res, err := b.Build(doc, false)
		if err != nil {
			t.Fatal(err)
		}
		var out []string
		for _, c := range res.Controllers {
			out = append(out, c.Target())
		}
		return out
	}

	first, second := targets(), targets()
	want := []string{"lid.translation", "wall.alpha", "hinge.rotation"}
	for i := range want {
		if first[i] != want[i] || second[i] != want[i] {
			t.Errorf("controller %d: %s / %s, want %s", i, first[i], second[i], want[i])
		}
	}
}

func TestBuild_ControllersDriveTargets(t *testing.T) {
	res, err := New(nil, Config{}).Build(chestDocument(), false)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range res.Controllers {
		if err := c.Update(0.5); err != nil {
			t.Fatal(err)
		}
	}

	if x := res.Nodes[5].Translation.X; x != 5 {
		t.Errorf("lid translation X = %v, want 5", x)
	}
	if a := res.Nodes[4].Materials[0].Alpha; a != 5 {
		t.Errorf("shared material alpha = %v, want 5", a)
	}
}

func TestBuild_SharedMaterial(t *testing.T) {
	fs := newFS(t, map[string][]byte{"wall.bmp": bmpBytes(t, 8, 8)})
	res, err := New(fs, Config{}).Build(chestDocument(), false)
	if err != nil {
		t.Fatal(err)
	}

	body, lid := res.Nodes[4], res.Nodes[5]
	if body.Materials[0] != lid.Materials[0] {
		t.Fatal("nodes sharing a material record should share the material")
	}
	if body.Mesh != lid.Mesh {
		t.Error("nodes sharing a mesh record should share the mesh")
	}

	body.Materials[0].Diffuse = math.Vec3{X: 0.5}
	if lid.Materials[0].Diffuse.X != 0.5 {
		t.Error("mutation through one node should be visible through the other")
	}

	tex := lid.Materials[0].Texture
	if tex == nil || tex.Width != 8 || tex.Format != "bmp" {
		t.Errorf("texture = %+v", tex)
	}
}

func TestBuild_MissingTexturePlaceholder(t *testing.T) {
	fs := newFS(t, map[string][]byte{"other.bmp": bmpBytes(t, 1, 1)})
	res, err := New(fs, Config{}).Build(chestDocument(), false)
	if err != nil {
		t.Fatalf("missing textures must not fail the build: %v", err)
	}

	mat := res.Nodes[4].Materials[0]
	if !mat.Placeholder {
		t.Fatalf("expected placeholder, got %+v", mat)
	}
	if res.Nodes[5].Materials[0] != mat {
		t.Error("placeholder should still be shared")
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %v", res.Diagnostics)
	}
	if !errors.Is(res.Diagnostics[0].Err, vfs.ErrNotFound) {
		t.Errorf("diagnostic should carry the lookup error: %v", res.Diagnostics[0].Err)
	}
	if res.Partial() {
		t.Error("placeholders do not make a result partial")
	}
}

func TestBuild_UndecodableTexture(t *testing.T) {
	fs := newFS(t, map[string][]byte{"wall.bmp": []byte("not an image")})
	res, err := New(fs, Config{}).Build(chestDocument(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Nodes[4].Materials[0].Placeholder {
		t.Error("undecodable texture should yield a placeholder")
	}
}

// nameLog fails every lookup and remembers the names asked for.
type nameLog []string

func (l *nameLog) Get(name string) (io.ReadSeekCloser, error) {
	*l = append(*l, name)
	return nil, vfs.ErrNotFound
}

func TestBuild_TextureDirPrefix(t *testing.T) {
	tests := []struct {
		name string
		path string
		dir  string
		want []string
	}{
		{"bare name", "wall.bmp", "", []string{"wall.bmp", "data/texture/wall.bmp"}},
		{"mixed case dir", "wall.bmp", "Data/Texture/", []string{"wall.bmp", "data/texture/wall.bmp"}},
		{"already prefixed", `Data\Texture\wall.bmp`, "Data/Texture/", []string{`Data\Texture\wall.bmp`}},
		{"disabled", "wall.bmp", "-", []string{"wall.bmp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := chestDocument()
			doc.Records[0].(*document.Texture).Path = tt.path

			var got nameLog
			res, err := New(&got, Config{TextureDir: tt.dir}).Build(doc, false)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Nodes[4].Materials[0].Placeholder {
				t.Error("missing texture should yield a placeholder")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("lookups = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("lookup %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuild_UnsupportedBranch(t *testing.T) {
	doc := chestDocument()
	// Replace the lid with a record type the builder does not know.
	doc.Records[5] = &document.Unsupported{NodeHeader: hdr("particles", 3), TypeName: "ParticleSystem"}

	res, err := New(nil, Config{}).Build(doc, false)
	if err != nil {
		t.Fatalf("unsupported branches should not fail the build: %v", err)
	}
	if !res.Partial() {
		t.Fatal("expected a partial result")
	}
	if !errors.Is(res.Err(), ErrUnsupportedRecord) {
		t.Errorf("Err() = %v", res.Err())
	}

	if res.Nodes[4] == nil || res.Root.Find("body") == nil {
		t.Error("sibling of the unsupported branch should be built")
	}
	if res.Nodes[5] != nil || res.Nodes[6] != nil {
		t.Error("unsupported record and its subtree should be skipped")
	}

	skipped := map[int]bool{}
	for _, i := range res.Skipped {
		skipped[i] = true
	}
	for _, i := range []int{5, 6, 7, 9} {
		if !skipped[i] {
			t.Errorf("record %d should be reported skipped, got %v", i, res.Skipped)
		}
	}
	if len(res.Controllers) != 1 || res.Controllers[0].Target() != "wall.alpha" {
		t.Errorf("only the material controller should remain, got %d", len(res.Controllers))
	}
}

func TestBuild_UnsupportedRoot(t *testing.T) {
	doc := chestDocument()
	doc.Records[3] = &document.Unsupported{NodeHeader: hdr("root", document.NoParent), TypeName: "LODNode"}

	_, err := New(nil, Config{}).Build(doc, false)
	if !errors.Is(err, ErrUnsupportedRecord) {
		t.Errorf("expected ErrUnsupportedRecord, got %v", err)
	}
}

func TestBuild_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *document.Document)
	}{
		{"cycle", func(d *document.Document) {
			// body -> hinge -> lid -> body
			d.Records[4].(*document.GeometryNode).Parent = 6
			d.Records[5].(*document.GeometryNode).Parent = 4
		}},
		{"two roots", func(d *document.Document) {
			d.Records[6].(*document.TransformNode).Parent = document.NoParent
		}},
		{"parent out of range", func(d *document.Document) {
			d.Records[6].(*document.TransformNode).Parent = 42
		}},
		{"parent is not a node", func(d *document.Document) {
			d.Records[6].(*document.TransformNode).Parent = 1
		}},
		{"mesh out of range", func(d *document.Document) {
			d.Records[4].(*document.GeometryNode).Mesh = 42
		}},
		{"material out of range", func(d *document.Document) {
			d.Records[5].(*document.GeometryNode).Materials = []int{1, 42}
		}},
		{"material texture wrong kind", func(d *document.Document) {
			d.Records[1].(*document.Material).Texture = 2
		}},
		{"controller target missing", func(d *document.Document) {
			d.Records[7].(*document.KeyframeController).Target = 99
		}},
		{"material controller on node", func(d *document.Document) {
			d.Records[8].(*document.KeyframeController).Target = 4
		}},
		{"controller without keys", func(d *document.Document) {
			d.Records[9].(*document.KeyframeController).Keys = nil
		}},
		{"no nodes", func(d *document.Document) {
			d.Records = d.Records[:3]
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := chestDocument()
			tt.mutate(doc)
			_, err := New(nil, Config{}).Build(doc, false)
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("expected ErrMalformedDocument, got %v", err)
			}
		})
	}
}

func TestBuild_ControllerOnlyMaterial(t *testing.T) {
	tests := []struct {
		name    string
		texture int
	}{
		{"texture out of range", 99},
		{"texture is a node", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The material is reachable only through its controller.
			doc := &document.Document{
				Name: "fade.rsm",
				Records: []document.Record{
					&document.TransformNode{NodeHeader: hdr("root", document.NoParent)},
					&document.Material{Name: "glow", Texture: tt.texture, Diffuse: math.One(), Alpha: 1},
					&document.KeyframeController{Target: 1, Property: document.PropAlpha, Interp: anim.Linear, Keys: linearKeys()},
				},
			}
			_, err := New(nil, Config{}).Build(doc, false)
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("expected ErrMalformedDocument, got %v", err)
			}
		})
	}
}

func TestBuild_WrongKindReference(t *testing.T) {
	tests := []struct {
		name   string
		broken document.Record
	}{
		{"mesh is unsupported node", &document.GeometryNode{NodeHeader: hdr("broken", 0), Mesh: 6, Materials: []int{2}}},
		{"mesh is material", &document.GeometryNode{NodeHeader: hdr("broken", 0), Mesh: 2}},
		{"material is mesh", &document.GeometryNode{NodeHeader: hdr("broken", 0), Mesh: 1, Materials: []int{1}}},
		{"skin is material", &document.SkinnedNode{NodeHeader: hdr("broken", 0), Mesh: 1, Skin: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &document.Document{
				Name: "odd.rsm",
				Records: []document.Record{
					&document.TransformNode{NodeHeader: hdr("root", document.NoParent)},
					&document.Mesh{Name: "quad", Vertices: []math.Vec3{{}, {X: 1}, {Z: 1}}},
					&document.Material{Name: "plain", Texture: -1, Diffuse: math.One(), Alpha: 1},
					&document.Skin{Bones: []int{0}},
					tt.broken,
					&document.TransformNode{NodeHeader: hdr("sibling", 0)},
					&document.Unsupported{NodeHeader: hdr("fx", 0), TypeName: "Emitter"},
				},
			}

			res, err := New(nil, Config{}).Build(doc, false)
			if err != nil {
				t.Fatalf("wrong-kind references should not fail the build: %v", err)
			}
			if !res.Partial() {
				t.Error("expected a partial result")
			}
			if !errors.Is(res.Err(), ErrUnsupportedRecord) {
				t.Errorf("Err() = %v", res.Err())
			}
			if res.Nodes[4] != nil {
				t.Error("node with a wrong-kind reference should be skipped")
			}
			if res.Nodes[5] == nil || res.Root.Find("sibling") == nil {
				t.Error("sibling should still be built")
			}

			skipped := false
			for _, i := range res.Skipped {
				skipped = skipped || i == 4
			}
			if !skipped {
				t.Errorf("record 4 should be reported skipped, got %v", res.Skipped)
			}
		})
	}
}

func TestBuild_TwoNodeCycle(t *testing.T) {
	// Records 2 and 5 name each other as parents.
	doc := &document.Document{Name: "loop.rsm", Records: make([]document.Record, 6)}
	doc.Records[0] = &document.TransformNode{NodeHeader: hdr("root", document.NoParent)}
	doc.Records[1] = &document.Texture{Path: "unused.bmp"}
	doc.Records[2] = &document.TransformNode{NodeHeader: hdr("a", 5)}
	doc.Records[3] = &document.Texture{Path: "unused.bmp"}
	doc.Records[4] = &document.TransformNode{NodeHeader: hdr("c", 0)}
	doc.Records[5] = &document.TransformNode{NodeHeader: hdr("b", 2)}

	_, err := New(nil, Config{}).Build(doc, false)
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
}

func TestBuild_Skeleton(t *testing.T) {
	doc := chestDocument()
	skin := doc.Add(&document.Skin{Bones: []int{3, 6}, InverseBind: []math.Mat4{math.Identity(), math.Identity()}})
	doc.Add(&document.SkinnedNode{NodeHeader: hdr("cloth", 3), Mesh: 2, Materials: []int{-1}, Skin: skin})

	res, err := New(nil, Config{}).Build(doc, true)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"root", "body", "lid", "hinge", "cloth"} {
		n := res.Bones[name]
		if n == nil || n.BoneName != name {
			t.Errorf("bone %q not retained", name)
		}
	}

	cloth := res.Root.Find("cloth")
	if cloth == nil || cloth.Kind != scene.Skinned {
		t.Fatalf("cloth = %+v", cloth)
	}
	if cloth.Skin == nil || cloth.Skin.Bones[1] != res.Bones["hinge"] {
		t.Error("skin bones should reference built nodes")
	}
	if cloth.Skin.BoneNames[0] != "root" {
		t.Errorf("bone names = %v", cloth.Skin.BoneNames)
	}
	if !cloth.Materials[0].Placeholder {
		t.Error("empty material slot should use the default material")
	}
}

func TestBuild_FromRSM(t *testing.T) {
	identity := [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	model := &formats.RSM{
		Version:    formats.RSMVersion{Major: 1, Minor: 4},
		AnimLength: 1000,
		Alpha:      1,
		Textures:   []string{"door.bmp"},
		RootNode:   "frame",
		Nodes: []formats.RSMNode{
			{Name: "frame", Matrix: identity, Scale: [3]float32{1, 1, 1}},
			{
				Name:       "door",
				Parent:     "frame",
				TextureIDs: []int32{0},
				Matrix:     identity,
				Scale:      [3]float32{1, 1, 1},
				Vertices:   [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
				Faces:      []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}},
				RotKeys: []formats.RSMRotKeyframe{
					{Frame: 0, Quaternion: [4]float32{0, 0, 0, 1}},
					{Frame: 500, Quaternion: [4]float32{0, 0.7071, 0, 0.7071}},
				},
			},
		},
	}
	doc := document.FromRSM("door.rsm", model)
	fs := newFS(t, map[string][]byte{"data/texture/door.bmp": bmpBytes(t, 16, 16)})

	res, err := New(fs, Config{}).Build(doc, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Root.Name != "frame" || res.Root.Count() != 2 {
		t.Errorf("unexpected tree rooted at %s with %d nodes", res.Root.Name, res.Root.Count())
	}
	door := res.Root.Find("door")
	if door.Materials[0].Texture == nil || door.Materials[0].Texture.Path != "data/texture/door.bmp" {
		t.Errorf("texture should resolve through the texture directory: %+v", door.Materials[0])
	}
	if len(res.Controllers) != 1 {
		t.Fatalf("expected one rotation controller, got %d", len(res.Controllers))
	}
	if err := res.Controllers[0].Update(0.5); err != nil {
		t.Fatal(err)
	}
	if door.Rotation.Y < 0.7 {
		t.Errorf("door should have swung open, rotation %+v", door.Rotation)
	}
}
