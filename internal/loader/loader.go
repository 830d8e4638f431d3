// Package loader builds live scene hierarchies and animation controllers
// from model documents.
package loader

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-scene/internal/anim"
	"github.com/Faultbox/midgard-scene/internal/document"
	"github.com/Faultbox/midgard-scene/internal/scene"
)

var (
	// ErrUnsupportedRecord reports a node record the builder cannot
	// construct. The record's subtree is skipped.
	ErrUnsupportedRecord = errors.New("unsupported record")

	// ErrMalformedDocument reports a document whose structure cannot be
	// built, such as a parent cycle or an out-of-range reference.
	ErrMalformedDocument = errors.New("malformed document")
)

// DefaultTextureDir is tried as a prefix for texture names that do not
// resolve on their own.
const DefaultTextureDir = "data/texture/"

// Resolver opens resources named by a document, usually a *vfs.Manager.
type Resolver interface {
	Get(name string) (io.ReadSeekCloser, error)
}

// Config contains builder options.
type Config struct {
	// Logger receives per-asset recoveries. Nil means no logging.
	Logger *zap.Logger
	// TextureDir overrides DefaultTextureDir. Set to "-" to disable the
	// fallback prefix. Matching ignores case.
	TextureDir string
}

// Builder turns documents into scene graphs. It holds no per-build state
// and may be reused.
type Builder struct {
	fs         Resolver
	log        *zap.Logger
	textureDir string
}

// New creates a builder resolving textures through fs. A nil fs turns every
// textured material into a placeholder.
func New(fs Resolver, cfg Config) *Builder {
	b := &Builder{
		fs:         fs,
		log:        cfg.Logger,
		textureDir: foldPath(cfg.TextureDir),
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	switch b.textureDir {
	case "":
		b.textureDir = DefaultTextureDir
	case "-":
		b.textureDir = ""
	}
	return b
}

// foldPath lowers case and turns backslashes into slashes so texture names
// compare the way the filesystem index does.
func foldPath(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), `\`, "/")
}

// Diagnostic is a non-fatal problem met while building.
type Diagnostic struct {
	Record int
	Err    error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("record %d: %v", d.Record, d.Err)
}

// Result is the output of one build.
type Result struct {
	Root        *scene.Node
	Controllers []anim.Controller

	// Nodes maps node record indices to the nodes built from them.
	Nodes map[int]*scene.Node
	// Bones maps bone names to nodes. Only filled in skeleton builds.
	Bones map[string]*scene.Node

	// Skipped lists node and controller records left out of the result.
	Skipped     []int
	Diagnostics []Diagnostic
}

// Partial reports whether some records could not be built.
func (r *Result) Partial() bool {
	return len(r.Skipped) > 0
}

// Err joins every diagnostic error, or returns nil.
func (r *Result) Err() error {
	errs := make([]error, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		errs[i] = fmt.Errorf("record %d: %w", d.Record, d.Err)
	}
	return errors.Join(errs...)
}

// Build constructs the node tree of doc depth-first, root first, children
// in document order, then binds one controller per keyframe controller
// record in document order.
//
// Unsupported node records are skipped with their subtree and reported in
// the result's diagnostics. Missing or undecodable textures yield
// placeholder materials. Structural problems fail the build with
// ErrMalformedDocument.
func (b *Builder) Build(doc *document.Document, asSkeleton bool) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}

	root, children, err := validate(doc)
	if err != nil {
		return nil, err
	}

	bs := &build{
		Builder:   b,
		doc:       doc,
		res:       &Result{Nodes: make(map[int]*scene.Node)},
		materials: make(map[int]*scene.Material),
		meshes:    make(map[int]*scene.Mesh),
		textures:  make(map[int]textureResult),
	}
	if asSkeleton {
		bs.res.Bones = make(map[string]*scene.Node)
	}

	if err := bs.nodes(root, children); err != nil {
		return nil, err
	}
	bs.skins()
	if err := bs.controllers(); err != nil {
		return nil, err
	}

	b.log.Info("model built",
		zap.String("model", doc.Name),
		zap.Int("nodes", len(bs.res.Nodes)),
		zap.Int("controllers", len(bs.res.Controllers)),
		zap.Int("skipped", len(bs.res.Skipped)),
		zap.Bool("skeleton", asSkeleton),
	)
	return bs.res, nil
}

// build carries the state of one Build call. Shared records are built at
// most once and handed out by pointer.
type build struct {
	*Builder
	doc *document.Document
	res *Result

	materials map[int]*scene.Material
	meshes    map[int]*scene.Mesh
	textures  map[int]textureResult
	fallback  *scene.Material
	skinned   []int
}

func (bs *build) diag(record int, err error) {
	bs.res.Diagnostics = append(bs.res.Diagnostics, Diagnostic{Record: record, Err: err})
	bs.log.Warn("model build recovered",
		zap.String("model", bs.doc.Name),
		zap.Int("record", record),
		zap.Error(err),
	)
}

func (bs *build) skip(record int, err error) {
	bs.res.Skipped = append(bs.res.Skipped, record)
	bs.diag(record, err)
}

// nodes runs the iterative depth-first construction.
func (bs *build) nodes(root int, children map[int][]int) error {
	type frame struct {
		record int
		parent *scene.Node
	}

	stack := []frame{{record: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rec, _ := bs.doc.Node(f.record)
		node, err := bs.node(f.record, rec)
		if err != nil {
			if f.parent == nil {
				return fmt.Errorf("%s: root record %d: %w", bs.doc.Name, f.record, err)
			}
			bs.skip(f.record, err)
			bs.skipSubtree(f.record, children)
			continue
		}

		if f.parent == nil {
			bs.res.Root = node
		} else {
			f.parent.AddChild(node)
		}
		bs.res.Nodes[f.record] = node
		if bs.res.Bones != nil {
			name := rec.Header().Name
			node.BoneName = name
			if _, dup := bs.res.Bones[name]; !dup {
				bs.res.Bones[name] = node
			}
		}

		kids := children[f.record]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{record: kids[i], parent: node})
		}
	}
	return nil
}

func (bs *build) skipSubtree(record int, children map[int][]int) {
	stack := append([]int(nil), children[record]...)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		bs.res.Skipped = append(bs.res.Skipped, i)
		stack = append(stack, children[i]...)
	}
}

// node dispatches on the record variant.
func (bs *build) node(i int, rec document.Node) (*scene.Node, error) {
	var n *scene.Node

	switch r := rec.(type) {
	case *document.TransformNode:
		n = scene.NewNode(r.Name, scene.Transform)
	case *document.GeometryNode:
		if err := bs.checkRefs(r.Mesh, r.Materials, -1); err != nil {
			return nil, err
		}
		n = scene.NewNode(r.Name, scene.Geometry)
		n.Mesh = bs.mesh(r.Mesh)
		n.Materials = bs.slotMaterials(i, r.Materials)
	case *document.SkinnedNode:
		if err := bs.checkRefs(r.Mesh, r.Materials, r.Skin); err != nil {
			return nil, err
		}
		n = scene.NewNode(r.Name, scene.Skinned)
		n.Mesh = bs.mesh(r.Mesh)
		n.Materials = bs.slotMaterials(i, r.Materials)
		bs.skinned = append(bs.skinned, i)
	case *document.Unsupported:
		return nil, fmt.Errorf("%w: %s %q", ErrUnsupportedRecord, r.TypeName, r.Name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRecord, rec.Kind())
	}

	h := rec.Header()
	n.Translation = h.Translation
	n.Rotation = h.Rotation
	n.Scale = h.Scale
	n.Visible = !h.Hidden
	return n, nil
}

// checkRefs rejects a node whose mesh, material or skin reference names a
// record of another kind. A negative skin means the node has none.
func (bs *build) checkRefs(mesh int, materials []int, skin int) error {
	if k := bs.doc.Records[mesh].Kind(); k != document.KindMesh {
		return fmt.Errorf("%w: mesh %d is a %s record", ErrUnsupportedRecord, mesh, k)
	}
	for _, m := range materials {
		if m < 0 {
			continue
		}
		if k := bs.doc.Records[m].Kind(); k != document.KindMaterial {
			return fmt.Errorf("%w: material %d is a %s record", ErrUnsupportedRecord, m, k)
		}
	}
	if skin >= 0 {
		if k := bs.doc.Records[skin].Kind(); k != document.KindSkin {
			return fmt.Errorf("%w: skin %d is a %s record", ErrUnsupportedRecord, skin, k)
		}
	}
	return nil
}

func (bs *build) mesh(i int) *scene.Mesh {
	if m, ok := bs.meshes[i]; ok {
		return m
	}
	src := bs.doc.Records[i].(*document.Mesh)
	m := &scene.Mesh{
		Name:      src.Name,
		Vertices:  src.Vertices,
		TexCoords: src.TexCoords,
		Colors:    src.Colors,
		Triangles: make([]scene.Triangle, len(src.Triangles)),
	}
	for t, tri := range src.Triangles {
		m.Triangles[t] = scene.Triangle{
			Vertices:  tri.Vertices,
			TexCoords: tri.TexCoords,
			Slot:      tri.Slot,
			TwoSided:  tri.TwoSided,
		}
	}
	bs.meshes[i] = m
	return m
}

func (bs *build) slotMaterials(node int, slots []int) []*scene.Material {
	out := make([]*scene.Material, len(slots))
	for s, m := range slots {
		if m < 0 {
			out[s] = bs.defaultMaterial()
			continue
		}
		out[s] = bs.material(node, m)
	}
	return out
}

// defaultMaterial stands in for empty material slots. It is shared like any
// other material of the document.
func (bs *build) defaultMaterial() *scene.Material {
	if bs.fallback == nil {
		bs.fallback = scene.PlaceholderMaterial(bs.doc.Name + ":default")
	}
	return bs.fallback
}

// material builds the material record i once. A texture that cannot be
// loaded turns the material into a placeholder.
func (bs *build) material(user, i int) *scene.Material {
	if m, ok := bs.materials[i]; ok {
		return m
	}
	src := bs.doc.Records[i].(*document.Material)

	m := &scene.Material{
		Name:     src.Name,
		Diffuse:  src.Diffuse,
		Alpha:    src.Alpha,
		TwoSided: src.TwoSided,
	}
	if src.Texture >= 0 {
		tex, err := bs.texture(src.Texture)
		if err != nil {
			bs.diag(user, fmt.Errorf("material %d %q: %w", i, src.Name, err))
			m = scene.PlaceholderMaterial(src.Name)
			m.Alpha = src.Alpha
		} else {
			m.Texture = tex
		}
	}
	bs.materials[i] = m
	return m
}

// skins resolves skin records once the node tree exists.
func (bs *build) skins() {
	built := make(map[int]*scene.Skin)
	for _, i := range bs.skinned {
		rec := bs.doc.Records[i].(*document.SkinnedNode)
		if s, ok := built[rec.Skin]; ok {
			bs.res.Nodes[i].Skin = s
			continue
		}

		src := bs.doc.Records[rec.Skin].(*document.Skin)
		s := &scene.Skin{
			Bones:       make([]*scene.Node, len(src.Bones)),
			BoneNames:   make([]string, len(src.Bones)),
			InverseBind: src.InverseBind,
		}
		for b, bone := range src.Bones {
			n, _ := bs.doc.Node(bone)
			s.BoneNames[b] = n.Header().Name
			s.Bones[b] = bs.res.Nodes[bone]
			if s.Bones[b] == nil {
				bs.diag(i, fmt.Errorf("skin %d: bone %d %q was not built", rec.Skin, bone, s.BoneNames[b]))
			}
		}
		built[rec.Skin] = s
		bs.res.Nodes[i].Skin = s
	}
}
