package loader

import (
	"errors"
	"fmt"
	"image"
	"strings"

	// Decoders for the texture formats found in client data.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Faultbox/midgard-scene/internal/document"
	"github.com/Faultbox/midgard-scene/internal/scene"
)

var errNoResolver = errors.New("no filesystem configured")

type textureResult struct {
	tex *scene.Texture
	err error
}

// texture resolves texture record i once, remembering failures so that a
// missing image is reported by the first material only.
func (bs *build) texture(i int) (*scene.Texture, error) {
	if r, ok := bs.textures[i]; ok {
		return r.tex, r.err
	}
	src, ok := recordAs[*document.Texture](bs.doc, i)
	if !ok {
		return nil, fmt.Errorf("%w: record %d is not a texture", ErrMalformedDocument, i)
	}
	tex, err := bs.loadTexture(src.Path)
	bs.textures[i] = textureResult{tex: tex, err: err}
	return tex, err
}

func (bs *build) loadTexture(name string) (*scene.Texture, error) {
	if bs.fs == nil {
		return nil, fmt.Errorf("texture %s: %w", name, errNoResolver)
	}

	path := name
	rc, err := bs.fs.Get(path)
	if err != nil && bs.textureDir != "" && !strings.HasPrefix(foldPath(name), bs.textureDir) {
		path = bs.textureDir + name
		if alt, altErr := bs.fs.Get(path); altErr == nil {
			rc, err = alt, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", name, err)
	}
	defer rc.Close()

	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		return nil, fmt.Errorf("texture %s: decoding: %w", path, err)
	}
	return &scene.Texture{
		Path:   path,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
