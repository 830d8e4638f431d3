package main

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/Faultbox/midgard-scene/internal/vfs"
	"github.com/Faultbox/midgard-scene/pkg/formats"
	"github.com/Faultbox/midgard-scene/pkg/grf"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func chestModel(t *testing.T) []byte {
	t.Helper()
	identity := [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	model := &formats.RSM{
		Version:    formats.RSMVersion{Major: 1, Minor: 4},
		AnimLength: 1000,
		Alpha:      1,
		Textures:   []string{"wood.bmp"},
		RootNode:   "base",
		Nodes: []formats.RSMNode{
			{Name: "base", Matrix: identity, Scale: [3]float32{1, 1, 1}},
			{
				Name:       "lid",
				Parent:     "base",
				TextureIDs: []int32{0},
				Matrix:     identity,
				Scale:      [3]float32{1, 1, 1},
				Vertices:   [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}},
				Faces:      []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}},
				PosKeys: []formats.RSMPosKeyframe{
					{Frame: 0, Position: [3]float32{0, 0, 0}},
					{Frame: 1000, Position: [3]float32{0, 4, 0}},
				},
			},
		},
	}
	data, err := model.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// clientDir builds data.grf with a model and a readme, plus a loose readme
// and texture that override and extend it.
func clientDir(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()

	w, err := grf.Create(filepath.Join(root, "data.grf"))
	if err != nil {
		t.Fatal(err)
	}
	w.Add("data\\model\\chest.rsm", chestModel(t))
	w.Add("data\\readme.txt", []byte("packed"))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var img bytes.Buffer
	if err := bmp.Encode(&img, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "data", "texture", "wood.bmp"), img.Bytes())
	writeFile(t, filepath.Join(root, "Data", "ReadMe.txt"), []byte("loose"))
	return root
}

func run(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--data", root, "--fallback-archive", "data.grf"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestWhichAndCat_DirectoryOverridesArchive(t *testing.T) {
	root := clientDir(t)

	out, err := run(t, root, "which", "DATA/README.TXT")
	if err != nil {
		t.Fatalf("which failed: %v", err)
	}
	if strings.TrimSpace(out) != root {
		t.Errorf("which = %q, want %q", strings.TrimSpace(out), root)
	}

	out, err = run(t, root, "cat", "data\\readme.txt")
	if err != nil {
		t.Fatalf("cat failed: %v", err)
	}
	if out != "loose" {
		t.Errorf("cat = %q, want loose", out)
	}

	out, err = run(t, root, "which", "data/model/chest.rsm")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(strings.TrimSpace(out)) != "data.grf" {
		t.Errorf("model should come from the archive, got %q", out)
	}
}

func TestLs(t *testing.T) {
	root := clientDir(t)

	out, err := run(t, root, "ls", "*.rsm")
	if err != nil {
		t.Fatal(err)
	}
	if out != "data/model/chest.rsm\n" {
		t.Errorf("ls *.rsm = %q", out)
	}

	out, err = run(t, root, "ls", "-l", "texture")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "data/texture/wood.bmp") || !strings.Contains(out, "1 files") {
		t.Errorf("ls -l texture = %q", out)
	}
}

func TestMissingName(t *testing.T) {
	root := clientDir(t)
	if _, err := run(t, root, "cat", "nothing.txt"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStrictArchiveName(t *testing.T) {
	root := clientDir(t)
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--data", root, "--fallback-archive", "DATA.GRF", "--fs-strict", "ls"})
	if err := cmd.Execute(); !errors.Is(err, vfs.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestTree(t *testing.T) {
	root := clientDir(t)

	out, err := run(t, root, "tree", "data/model/chest.rsm")
	if err != nil {
		t.Fatalf("tree failed: %v", err)
	}
	for _, want := range []string{
		"base [transform]",
		"  lid [geometry] tris=1 material=wood.bmp(4x4)",
		"2 nodes, 1 controllers",
		"controller lid.translation",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
}

func TestPlay(t *testing.T) {
	root := clientDir(t)

	out, err := run(t, root, "--fps", "10", "--frames", "5", "play", "data/model/chest.rsm")
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if !strings.Contains(out, "Played 5 frames (0.500s)") {
		t.Errorf("unexpected play summary:\n%s", out)
	}
	if !strings.Contains(out, "pos=(0.000, 2.000, 0.000)") {
		t.Errorf("lid should be halfway up after 0.5s:\n%s", out)
	}
}

func TestPackAndInfo(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "model", "a.rsm"), []byte("a"))
	writeFile(t, filepath.Join(src, "texture", "b.bmp"), []byte("bb"))
	writeFile(t, filepath.Join(src, "texture", "c.bmp"), []byte("ccc"))
	out := filepath.Join(t.TempDir(), "patch.grf")

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"pack", "--prefix", "data", out, src})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("pack failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Packed 3 files") {
		t.Errorf("pack output = %q", buf.String())
	}

	archive, err := grf.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()
	if !archive.Contains("data/texture/c.bmp") {
		t.Errorf("entries = %v", archive.List())
	}

	cmd = newRootCmd()
	buf.Reset()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"info", out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("info failed: %v", err)
	}
	for _, want := range []string{"Files: 3", ".bmp     2", ".rsm     1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("info output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestExtract(t *testing.T) {
	root := clientDir(t)
	dst := t.TempDir()

	if _, err := run(t, root, "extract", "*.txt", dst); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "data", "readme.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "loose" {
		t.Errorf("extracted %q, want the overriding copy", data)
	}
}
