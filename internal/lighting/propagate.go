package lighting

import (
	"sync"

	"stationvox/internal/profiling"
	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Attenuation scales level and color on every hop.
	Attenuation = 0.8
	// Cutoff is the weakest light that still spreads.
	Cutoff = 0.1
	// BlendEpsilon is how close two arriving levels must be for their colors
	// to be averaged instead of replaced.
	BlendEpsilon = 0.01
)

// Result summarises a propagation run.
type Result struct {
	Sources int
	Lit     int // cells that received light from a source
	// BorderChanged lists the chunk faces whose outer layer of cells ended
	// with different light than before. Meshes of the chunks linked across
	// those faces blend that light and need rebuilding.
	BorderChanged []world.Direction
}

type cellLight struct {
	level float32
	color mgl32.Vec3
}

var (
	layersOnce sync.Once
	layers     [world.NumDirections][]int
)

// borderLayers returns, per direction, the grid indices of the cells on
// that face of the chunk.
func borderLayers() *[world.NumDirections][]int {
	layersOnce.Do(func() {
		for i := 0; i < world.Volume; i++ {
			x, y, z := world.Position(i)
			for _, d := range world.BorderDirections(x, y, z) {
				layers[d] = append(layers[d], i)
			}
		}
	})
	return &layers
}

func snapshotBorders(voxels []world.Voxel) [world.NumDirections][]cellLight {
	var out [world.NumDirections][]cellLight
	for d, layer := range borderLayers() {
		out[d] = make([]cellLight, len(layer))
		for k, i := range layer {
			out[d][k] = cellLight{voxels[i].LightLevel, voxels[i].LightColor}
		}
	}
	return out
}

// Propagate recomputes the light of every non-source voxel in c by a
// breadth-first flood from the chunk's light sources. Light stays inside the
// chunk and only enters air or transparent voxels.
func Propagate(c *world.Chunk) Result {
	defer profiling.Track("lighting.Propagate")()

	var res Result
	voxels := c.Voxels()
	if voxels == nil {
		return res
	}

	before := snapshotBorders(voxels)

	queue := make([]int, 0, 256)
	for i := range voxels {
		v := &voxels[i]
		if v.IsLightSource() {
			queue = append(queue, i)
			res.Sources++
			continue
		}
		v.LightLevel = 0
		v.LightColor = mgl32.Vec3{}
	}

	for head := 0; head < len(queue); head++ {
		i := queue[head]
		src := voxels[i]
		level := src.LightLevel * Attenuation
		if level < Cutoff {
			continue
		}
		color := src.LightColor.Mul(Attenuation)

		x, y, z := world.Position(i)
		for _, d := range world.Directions {
			dx, dy, dz := d.Offset()
			nx, ny, nz := x+dx, y+dy, z+dz
			if !world.InBounds(nx, ny, nz) {
				continue
			}
			j := world.Index(nx, ny, nz)
			n := &voxels[j]
			if !n.IsTransparent() || n.IsLightSource() {
				continue
			}
			switch diff := level - n.LightLevel; {
			case diff >= -BlendEpsilon && diff <= BlendEpsilon:
				n.LightColor = n.LightColor.Add(color).Mul(0.5)
			case diff > 0:
				if n.LightLevel == 0 {
					res.Lit++
				}
				n.LightLevel = level
				n.LightColor = color
				queue = append(queue, j)
			}
		}
	}

	for d, layer := range borderLayers() {
		for k, i := range layer {
			if (cellLight{voxels[i].LightLevel, voxels[i].LightColor}) != before[d][k] {
				res.BorderChanged = append(res.BorderChanged, world.Direction(d))
				break
			}
		}
	}
	return res
}
