package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"

	"stationvox/internal/config"
	"stationvox/internal/meshing"
	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Options controls the preview image.
type Options struct {
	// Scale is the edge length in pixels of one voxel column.
	Scale int
	// Caption is drawn in a strip below the map when set.
	Caption string
}

const captionHeight = 18

var background = color.RGBA{12, 14, 20, 255}

// TopDown renders the entity as seen from above: one pixel per voxel column,
// the topmost voxel's color shaded by its light and the occlusion of its top
// face. The chunks should have been rebuilt so their light is current.
func TopDown(e *world.Entity, opts Options) (*image.RGBA, error) {
	chunks := e.Chunks()
	if len(chunks) == 0 {
		return nil, fmt.Errorf("preview: entity %s has no chunks", e.Name)
	}
	lo, hi := chunks[0].Coord, chunks[0].Coord
	for _, c := range chunks[1:] {
		lo.X, hi.X = min(lo.X, c.Coord.X), max(hi.X, c.Coord.X)
		lo.Y, hi.Y = min(lo.Y, c.Coord.Y), max(hi.Y, c.Coord.Y)
		lo.Z, hi.Z = min(lo.Z, c.Coord.Z), max(hi.Z, c.Coord.Z)
	}
	x0, z0 := lo.X*world.Size, lo.Z*world.Size
	w, h := (hi.X-lo.X+1)*world.Size, (hi.Z-lo.Z+1)*world.Size
	yTop, yBottom := (hi.Y+1)*world.Size-1, lo.Y*world.Size

	floor := config.GetAmbientFloor()
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for px := 0; px < w; px++ {
		for pz := 0; pz < h; pz++ {
			src.SetRGBA(px, pz, background)
			for y := yTop; y >= yBottom; y-- {
				c, lx, ly, lz := e.Locate(x0+px, y, z0+pz, false)
				if c == nil {
					// skip the rest of this chunk column
					y -= ly
					continue
				}
				v := c.Get(lx, ly, lz)
				if v.IsAir() || v.IsCorrupt() {
					continue
				}
				src.SetRGBA(px, pz, shade(c, lx, ly, lz, v, floor))
				break
			}
		}
	}

	scale := max(opts.Scale, 1)
	stripH := 0
	if opts.Caption != "" {
		stripH = captionHeight
	}
	dst := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale+stripH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)
	draw.NearestNeighbor.Scale(dst, image.Rect(0, 0, w*scale, h*scale), src, src.Bounds(), draw.Src, nil)

	if opts.Caption != "" {
		face, err := captionFace()
		if err != nil {
			return nil, err
		}
		d := font.Drawer{
			Dst:  dst,
			Src:  image.White,
			Face: face,
			Dot:  fixed.P(4, h*scale+stripH-5),
		}
		d.DrawString(opts.Caption)
	}
	return dst, nil
}

func shade(c *world.Chunk, x, y, z int, v world.Voxel, floor float32) color.RGBA {
	above, linked := c.Sample(x, y+1, z)
	light := meshing.BlendLight(v, above, linked)

	ao := float32(1)
	if !v.IsTransparent() && !v.IsLightSource() {
		corners := meshing.CorrectThreeCorner(meshing.FaceAO(c, x, y, z, world.Top))
		ao = (corners[0] + corners[1] + corners[2] + corners[3]) / 4
	}

	var rgb [3]uint8
	for i := range rgb {
		s := v.Color[i] * mgl32.Clamp(light[i]+floor, 0, 1) * ao
		rgb[i] = uint8(mgl32.Clamp(s, 0, 1) * 255)
	}
	return color.RGBA{rgb[0], rgb[1], rgb[2], 255}
}

var (
	faceOnce sync.Once
	face     font.Face
	faceErr  error
)

func captionFace() (font.Face, error) {
	faceOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			faceErr = fmt.Errorf("preview: parse font: %w", err)
			return
		}
		face, faceErr = opentype.NewFace(f, &opentype.FaceOptions{Size: 12, DPI: 72, Hinting: font.HintingFull})
	})
	return face, faceErr
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("preview: encode %s: %w", path, err)
	}
	return f.Close()
}
