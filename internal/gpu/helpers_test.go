package gpu

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/gogpu/viewfinder/colorspace"
	"github.com/gogpu/viewfinder/format"
	"github.com/gogpu/viewfinder/internal/profile"
	"github.com/gogpu/viewfinder/internal/shader"
)

// selectProfile returns the Rec.709 profile for f.
func selectProfile(t *testing.T, f format.PixelFormat) profile.Profile {
	t.Helper()
	p, err := profile.Select(f)
	if err != nil {
		t.Fatalf("Select(%s): %v", f, err)
	}
	return p.WithColorSpace(colorspace.Rec709)
}

// assetsCopy returns a mutable copy of the embedded shader sources.
func assetsCopy(t *testing.T) fstest.MapFS {
	t.Helper()
	out := fstest.MapFS{}
	err := fs.WalkDir(shader.Assets(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(shader.Assets(), path)
		if err != nil {
			return err
		}
		out[path] = &fstest.MapFile{Data: data}
		return nil
	})
	if err != nil {
		t.Fatalf("copy shader assets: %v", err)
	}
	return out
}

// planesFor allocates zeroed planes large enough for p at the given
// geometry.
func planesFor(p profile.Profile, stride, height uint32) [][]byte {
	n := 0
	for _, pl := range p.Planes {
		n = max(n, pl.Source+1)
	}
	planes := make([][]byte, n)
	for _, pl := range p.Planes {
		w, h := pl.TextureSize(stride, height)
		planes[pl.Source] = make([]byte, w*pl.BytesPerTexel*h)
	}
	return planes
}
