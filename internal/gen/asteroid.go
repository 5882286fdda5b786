package gen

import (
	"fmt"
	"math"

	"stationvox/internal/config"
	"stationvox/internal/registry"
	"stationvox/internal/world"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Asteroid generates a lumpy rock centred on the entity origin, with ore
// pockets, an icy crust and lamps on a grid across its surface. The outline
// comes from simplex noise, the veins from Perlin noise.
type Asteroid struct {
	seed        int64
	radius      float64
	roughness   float64
	lampSpacing int

	surface opensimplex.Noise
	veins   *perlin.Perlin

	octaves     int
	persistence float64
	lacunarity  float64

	rock, ore, ice, lamp world.Voxel
}

// NewAsteroid creates an asteroid generator. The rock, ore, ice and lamp
// materials are taken from reg.
func NewAsteroid(seed int64, radius, roughness float64, lampSpacing int, reg *registry.Registry) (*Asteroid, error) {
	a := &Asteroid{
		seed:        seed,
		radius:      radius,
		roughness:   roughness,
		lampSpacing: lampSpacing,
		surface:     opensimplex.New(seed),
		veins:       perlin.NewPerlin(2, 2, 3, seed),
		octaves:     4,
		persistence: 0.5,
		lacunarity:  2.0,
	}
	for name, dst := range map[string]*world.Voxel{
		"rock": &a.rock,
		"ore":  &a.ore,
		"ice":  &a.ice,
		"lamp": &a.lamp,
	} {
		m, err := reg.ByName(name)
		if err != nil {
			return nil, fmt.Errorf("gen: asteroid: %w", err)
		}
		*dst = m.Voxel()
	}
	return a, nil
}

// NewAsteroidFromConfig creates an asteroid generator from the current
// generation settings.
func NewAsteroidFromConfig(reg *registry.Registry) (*Asteroid, error) {
	return NewAsteroid(config.GetSeed(), config.GetRadius(), config.GetRoughness(), config.GetLampSpacing(), reg)
}

// fbm sums octaves of 3D simplex noise, normalised to about [-1,1].
func (a *Asteroid) fbm(x, y, z float64) float64 {
	var sum, norm float64
	amp, freq := 1.0, 1.0
	for i := 0; i < a.octaves; i++ {
		sum += a.surface.Eval3(x*freq, y*freq, z*freq) * amp
		norm += amp
		amp *= a.persistence
		freq *= a.lacunarity
	}
	return sum / norm
}

// Density is positive inside the asteroid and negative outside, in voxels
// from the surface. x, y, z are entity voxel coordinates.
func (a *Asteroid) Density(x, y, z int) float64 {
	px, py, pz := float64(x)+0.5, float64(y)+0.5, float64(z)+0.5
	r := math.Sqrt(px*px + py*py + pz*pz)
	if r == 0 {
		return a.radius
	}
	// Sample on a sphere so the surface shape does not depend on depth.
	s := 2.0
	n := a.fbm(px/r*s, py/r*s, pz/r*s)
	return a.radius*(1+a.roughness*n) - r
}

// ChunkRange returns the inclusive chunk range that can hold any voxel.
func (a *Asteroid) ChunkRange() (lo, hi world.Coord) {
	extent := int(math.Ceil(a.radius*(1+a.roughness))) + 1
	l, h := floorDiv(-extent, world.Size), floorDiv(extent, world.Size)
	return world.Coord{X: l, Y: l, Z: l}, world.Coord{X: h, Y: h, Z: h}
}

// Populate fills a chunk from the density field.
func (a *Asteroid) Populate(c *world.Chunk) {
	voxels := c.Voxels()
	if voxels == nil {
		return
	}
	bx, by, bz := c.Coord.X*world.Size, c.Coord.Y*world.Size, c.Coord.Z*world.Size
	for lx := 0; lx < world.Size; lx++ {
		for ly := 0; ly < world.Size; ly++ {
			for lz := 0; lz < world.Size; lz++ {
				x, y, z := bx+lx, by+ly, bz+lz
				d := a.Density(x, y, z)
				if d <= 0 {
					continue
				}
				voxels[world.Index(lx, ly, lz)] = a.materialAt(x, y, z, d)
			}
		}
	}
	c.MarkDirty()
}

func (a *Asteroid) materialAt(x, y, z int, depth float64) world.Voxel {
	if depth < 1.5 && a.onLampGrid(x, y, z) && a.Density(x, y+1, z) <= 0 {
		return a.lamp
	}
	v := a.veins.Noise3D(float64(x)/9, float64(y)/9, float64(z)/9)
	switch {
	case depth < 3 && v < -0.2:
		return a.ice
	case depth > 4 && v > 0.25:
		return a.ore
	default:
		return a.rock
	}
}

func (a *Asteroid) onLampGrid(x, _, z int) bool {
	if a.lampSpacing <= 0 {
		return false
	}
	return mod(x, a.lampSpacing) == 0 && mod(z, a.lampSpacing) == 0
}
