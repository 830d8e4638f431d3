// Package formats provides parsers for Ragnarok Online binary formats.
// RSM (Resource Model) is the node-tree model format the scene loader reads.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/midgard-scene/pkg/encoding"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidNodeCount      = errors.New("invalid RSM node count")
	ErrInvalidCount          = errors.New("invalid RSM element count")
)

const (
	rsmMagic   = "GRSM"
	nameLength = 40

	maxNodes     = 10000
	maxElements  = 1 << 20
	maxKeyframes = 10000
	maxBoxes     = 1000
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMShadingType represents the shading mode for rendering.
type RSMShadingType int32

const (
	RSMShadingNone   RSMShadingType = 0
	RSMShadingFlat   RSMShadingType = 1
	RSMShadingSmooth RSMShadingType = 2
)

// String returns a human-readable shading type name.
func (s RSMShadingType) String() string {
	switch s {
	case RSMShadingNone:
		return "None"
	case RSMShadingFlat:
		return "Flat"
	case RSMShadingSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// RSMTexCoord represents a texture coordinate with optional vertex color.
type RSMTexCoord struct {
	Color [4]uint8 // RGBA vertex color (v1.2+)
	U, V  float32
}

// RSMFace represents a triangle face in a mesh.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16 // Index into the node's TextureIDs
	Padding     uint16
	TwoSide     int32
	SmoothGroup int32 // v1.2+
}

// RSMPosKeyframe represents a position animation keyframe.
type RSMPosKeyframe struct {
	Frame    int32 // Milliseconds
	Position [3]float32
}

// RSMRotKeyframe represents a rotation animation keyframe.
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32 // X, Y, Z, W
}

// RSMScaleKeyframe represents a scale animation keyframe.
type RSMScaleKeyframe struct {
	Frame int32
	Scale [3]float32
}

// RSMNode represents a node in the model hierarchy.
type RSMNode struct {
	Name       string
	Parent     string  // Empty for the root
	TextureIDs []int32 // Indices into RSM.Textures

	Matrix   [9]float32 // 3x3 rotation, column-major
	Offset   [3]float32 // Pivot offset
	Position [3]float32
	RotAngle float32 // Radians
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	PosKeys   []RSMPosKeyframe   // v < 1.5
	RotKeys   []RSMRotKeyframe
	ScaleKeys []RSMScaleKeyframe // v >= 1.5
}

// RSMVolumeBox represents a bounding volume box.
type RSMVolumeBox struct {
	Size     [3]float32
	Position [3]float32
	Rotation [3]float32
	Flag     int32 // v1.3+
}

// RSM represents a parsed RSM (Resource Model) file.
type RSM struct {
	Version     RSMVersion
	AnimLength  int32 // Milliseconds
	Shading     RSMShadingType
	Alpha       float32 // 0-1, v1.4+
	Textures    []string
	RootNode    string
	Nodes       []RSMNode
	VolumeBoxes []RSMVolumeBox
}

// rsmReader reads little-endian values and keeps the first error.
type rsmReader struct {
	r   *bytes.Reader
	err error
}

func (rd *rsmReader) read(v any) {
	if rd.err != nil {
		return
	}
	if err := binary.Read(rd.r, binary.LittleEndian, v); err != nil {
		rd.err = ErrTruncatedRSMData
	}
}

func (rd *rsmReader) skip(n int64) {
	if rd.err != nil {
		return
	}
	if int64(rd.r.Len()) < n {
		rd.err = ErrTruncatedRSMData
		return
	}
	rd.r.Seek(n, io.SeekCurrent)
}

func (rd *rsmReader) name() string {
	buf := make([]byte, nameLength)
	rd.read(buf)
	return encoding.CString(buf)
}

// count reads an element count and validates it against limit.
func (rd *rsmReader) count(what string, limit int32) int32 {
	var n int32
	rd.read(&n)
	if rd.err == nil && (n < 0 || n > limit) {
		rd.err = fmt.Errorf("%w: %s count %d", ErrInvalidCount, what, n)
		return 0
	}
	return n
}

// ParseRSM parses RSM data from a byte slice.
func ParseRSM(data []byte) (*RSM, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSMData
	}
	if string(data[:4]) != rsmMagic {
		return nil, ErrInvalidRSMMagic
	}

	rsm := &RSM{
		Version: RSMVersion{Major: data[4], Minor: data[5]},
		Alpha:   1.0,
	}
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	rd := &rsmReader{r: bytes.NewReader(data[6:])}
	rd.read(&rsm.AnimLength)
	rd.read(&rsm.Shading)

	if rsm.Version.AtLeast(1, 4) {
		var alpha uint8
		rd.read(&alpha)
		rsm.Alpha = float32(alpha) / 255.0
	}

	rd.skip(16) // reserved

	textureCount := rd.count("texture", maxElements)
	rsm.Textures = make([]string, textureCount)
	for i := range rsm.Textures {
		rsm.Textures[i] = rd.name()
	}

	rsm.RootNode = rd.name()

	var nodeCount int32
	rd.read(&nodeCount)
	if rd.err != nil {
		return nil, rd.err
	}
	if nodeCount < 0 || nodeCount > maxNodes {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNodeCount, nodeCount)
	}

	rsm.Nodes = make([]RSMNode, nodeCount)
	for i := range rsm.Nodes {
		parseRSMNode(rd, rsm.Version, &rsm.Nodes[i])
		if rd.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, rd.err)
		}
	}

	// Volume boxes are optional trailing data.
	if rd.r.Len() >= 4 {
		var boxCount int32
		rd.read(&boxCount)
		if boxCount > 0 && boxCount < maxBoxes {
			rsm.VolumeBoxes = make([]RSMVolumeBox, boxCount)
			for i := range rsm.VolumeBoxes {
				box := &rsm.VolumeBoxes[i]
				rd.read(&box.Size)
				rd.read(&box.Position)
				rd.read(&box.Rotation)
				if rsm.Version.AtLeast(1, 3) {
					rd.read(&box.Flag)
				}
			}
			if rd.err != nil {
				return nil, fmt.Errorf("parsing volume boxes: %w", rd.err)
			}
		}
	}

	return rsm, nil
}

func parseRSMNode(rd *rsmReader, version RSMVersion, node *RSMNode) {
	node.Name = rd.name()
	node.Parent = rd.name()

	node.TextureIDs = make([]int32, rd.count("node texture", maxElements))
	for i := range node.TextureIDs {
		rd.read(&node.TextureIDs[i])
	}

	rd.read(&node.Matrix)
	rd.read(&node.Offset)
	rd.read(&node.Position)
	rd.read(&node.RotAngle)
	rd.read(&node.RotAxis)
	rd.read(&node.Scale)

	node.Vertices = make([][3]float32, rd.count("vertex", maxElements))
	for i := range node.Vertices {
		rd.read(&node.Vertices[i])
	}

	node.TexCoords = make([]RSMTexCoord, rd.count("texcoord", maxElements))
	for i := range node.TexCoords {
		tc := &node.TexCoords[i]
		if version.AtLeast(1, 2) {
			rd.read(&tc.Color)
		} else {
			tc.Color = [4]uint8{255, 255, 255, 255}
		}
		rd.read(&tc.U)
		rd.read(&tc.V)
	}

	node.Faces = make([]RSMFace, rd.count("face", maxElements))
	for i := range node.Faces {
		face := &node.Faces[i]
		rd.read(&face.VertexIDs)
		rd.read(&face.TexCoordIDs)
		rd.read(&face.TextureID)
		rd.read(&face.Padding)
		rd.read(&face.TwoSide)
		if version.AtLeast(1, 2) {
			rd.read(&face.SmoothGroup)
		}
	}

	if !version.AtLeast(1, 5) {
		node.PosKeys = make([]RSMPosKeyframe, rd.count("position key", maxKeyframes))
		for i := range node.PosKeys {
			rd.read(&node.PosKeys[i].Frame)
			rd.read(&node.PosKeys[i].Position)
		}
	}

	node.RotKeys = make([]RSMRotKeyframe, rd.count("rotation key", maxKeyframes))
	for i := range node.RotKeys {
		rd.read(&node.RotKeys[i].Frame)
		rd.read(&node.RotKeys[i].Quaternion)
	}

	if version.AtLeast(1, 5) {
		node.ScaleKeys = make([]RSMScaleKeyframe, rd.count("scale key", maxKeyframes))
		for i := range node.ScaleKeys {
			rd.read(&node.ScaleKeys[i].Frame)
			rd.read(&node.ScaleKeys[i].Scale)
		}
	}
}

// ParseRSMFile parses an RSM file from disk.
func ParseRSMFile(path string) (*RSM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSM file: %w", err)
	}
	return ParseRSM(data)
}

// NodeIndex returns the index of the first node called name, or -1.
func (rsm *RSM) NodeIndex(name string) int {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return i
		}
	}
	return -1
}

// GetNodeByName returns a node by its name, or nil if not found.
func (rsm *RSM) GetNodeByName(name string) *RSMNode {
	if i := rsm.NodeIndex(name); i >= 0 {
		return &rsm.Nodes[i]
	}
	return nil
}

// GetRootNode returns the node named by RootNode.
func (rsm *RSM) GetRootNode() *RSMNode {
	return rsm.GetNodeByName(rsm.RootNode)
}

// GetChildNodes returns all nodes whose parent is parentName.
func (rsm *RSM) GetChildNodes(parentName string) []*RSMNode {
	var children []*RSMNode
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == parentName {
			children = append(children, &rsm.Nodes[i])
		}
	}
	return children
}

// HasAnimation returns true if any node carries keyframes.
func (rsm *RSM) HasAnimation() bool {
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		if len(node.PosKeys) > 0 || len(node.RotKeys) > 0 || len(node.ScaleKeys) > 0 {
			return true
		}
	}
	return false
}
