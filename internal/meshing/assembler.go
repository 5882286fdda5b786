package meshing

import (
	"stationvox/internal/config"
	"stationvox/internal/logger"
	"stationvox/internal/profiling"
	"stationvox/internal/registry"
	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Options controls how Assemble shades and textures faces.
type Options struct {
	// AmbientFloor is added to every face's light before clamping.
	AmbientFloor float32
	Atlas        registry.Atlas
	// Materials resolves atlas tiles. Nil means registry.Default().
	Materials *registry.Registry
}

// DefaultOptions reads the current mesh settings.
func DefaultOptions() Options {
	cols, rows := config.GetAtlasGrid()
	return Options{
		AmbientFloor: config.GetAmbientFloor(),
		Atlas:        registry.Atlas{Columns: cols, Rows: rows},
		Materials:    registry.Default(),
	}
}

// Assemble walks the chunk once in x, y, z order and emits four vertices and
// six indices for every visible face, together with the chunk's mass
// aggregates. It expects light to have been propagated already. The mesh is
// nil when the chunk holds no mass.
//
// Assemble reads across neighbour links and must not run while the chunk or
// its neighbours are being modified.
func Assemble(c *world.Chunk, opts Options) (*world.Mesh, world.BuildStats) {
	defer profiling.Track("meshing.Assemble")()

	var stats world.BuildStats
	if c == nil || c.Released() {
		return nil, stats
	}
	if opts.Materials == nil {
		opts.Materials = registry.Default()
	}

	b := assembler{
		chunk:  c,
		opts:   opts,
		origin: c.Origin(),
		faces:  Faces(),
		mesh: &world.Mesh{
			Vertices: make([]world.Vertex, 0, 1024),
			Indices:  make([]uint32, 0, 1536),
		},
	}

	var lo, hi [3]int
	touched := false
	voxels := c.Voxels()
	for x := 0; x < world.Size; x++ {
		for y := 0; y < world.Size; y++ {
			for z := 0; z < world.Size; z++ {
				v := voxels[world.Index(x, y, z)]
				if v.IsAir() {
					continue
				}
				if v.IsCorrupt() {
					stats.Anomalies++
					logger.Log.Warn("Skipping corrupt voxel",
						zap.Stringer("chunk", c.Coord),
						zap.Int("x", x), zap.Int("y", y), zap.Int("z", z),
						zap.Int16("material", v.MaterialID))
					continue
				}

				p := [3]int{x, y, z}
				if !touched {
					lo, hi, touched = p, p, true
				} else {
					for a := 0; a < 3; a++ {
						lo[a] = min(lo[a], p[a])
						hi[a] = max(hi[a], p[a])
					}
				}
				if v.Mass > 0 {
					stats.Mass += int(v.Mass)
					centre := b.origin.Add(mgl32.Vec3{float32(x) + 0.5, float32(y) + 0.5, float32(z) + 0.5})
					stats.MassPositionSum = stats.MassPositionSum.Add(centre.Mul(float32(v.Mass)))
				}

				for _, d := range world.Directions {
					dx, dy, dz := d.Offset()
					nb, linked := c.Sample(x+dx, y+dy, z+dz)
					if !FaceVisible(v, nb, linked) {
						continue
					}
					b.emitFace(x, y, z, v, d, nb, linked)
					stats.Faces++
				}
			}
		}
	}

	if stats.Mass == 0 {
		return nil, stats
	}
	stats.Bounds = world.AABB{
		Min: b.origin.Add(mgl32.Vec3{float32(lo[0]), float32(lo[1]), float32(lo[2])}),
		Max: b.origin.Add(mgl32.Vec3{float32(hi[0] + 1), float32(hi[1] + 1), float32(hi[2] + 1)}),
	}
	return b.mesh, stats
}

// FaceVisible reports whether the face between a solid voxel and the cell in
// front of it is drawn. An unlinked cell is open. Two transparent voxels
// side by side share no face.
func FaceVisible(v, neighbor world.Voxel, linked bool) bool {
	if !linked || neighbor.IsAir() || neighbor.IsCorrupt() {
		return true
	}
	if !neighbor.IsTransparent() {
		return false
	}
	return !v.IsTransparent()
}

// BlendLight mixes the light of a voxel and the cell in front of its face,
// weighted by level and scaled by the brighter of the two.
func BlendLight(own, neighbor world.Voxel, linked bool) mgl32.Vec3 {
	a := own.LightLevel
	var b float32
	var cb mgl32.Vec3
	if linked {
		b, cb = neighbor.LightLevel, neighbor.LightColor
	}
	if a+b <= 0 {
		return mgl32.Vec3{}
	}
	mixed := own.LightColor.Mul(a).Add(cb.Mul(b)).Mul(1 / (a + b))
	return mixed.Mul(max(a, b) / world.MaxLightLevel)
}

type assembler struct {
	chunk  *world.Chunk
	opts   Options
	origin mgl32.Vec3
	faces  *FaceTable
	mesh   *world.Mesh
}

func (b *assembler) emitFace(x, y, z int, v world.Voxel, d world.Direction, nb world.Voxel, linked bool) {
	g := &b.faces[d]

	light := BlendLight(v, nb, linked)
	var color mgl32.Vec3
	for i := range color {
		color[i] = v.Color[i] * mgl32.Clamp(light[i]+b.opts.AmbientFloor, 0, 1)
	}

	ao := [4]float32{1, 1, 1, 1}
	emission := float32(0)
	if v.IsLightSource() {
		emission = 1
	}
	if !v.IsTransparent() && !v.IsLightSource() {
		ao = CorrectThreeCorner(FaceAO(b.chunk, x, y, z, d))
	}

	uvs := b.opts.Atlas.FaceUVs(b.opts.Materials.FaceTile(v.MaterialID, d, v.Orientation))
	base := uint32(len(b.mesh.Vertices))
	for i, corner := range g.Corners {
		b.mesh.Vertices = append(b.mesh.Vertices, world.Vertex{
			Position: b.origin.Add(mgl32.Vec3{
				float32(x + corner[0]),
				float32(y + corner[1]),
				float32(z + corner[2]),
			}),
			UV:       uvs[i],
			Color:    color,
			Normal:   g.Normal,
			AO:       PackAO(ao[i]),
			Emission: emission,
		})
	}
	idx := ChooseWinding(ao).Indices(base)
	b.mesh.Indices = append(b.mesh.Indices, idx[:]...)
}
