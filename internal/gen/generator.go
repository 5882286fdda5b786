package gen

import (
	"stationvox/internal/world"
)

// Generator fills freshly created chunks. Implementations must be
// deterministic for a given seed and safe to call from several goroutines.
type Generator interface {
	Populate(c *world.Chunk)
}

// Build populates every chunk in the inclusive coordinate range and adds the
// ones holding at least one voxel to e. It returns the number of chunks added.
func Build(e *world.Entity, g Generator, lo, hi world.Coord) int {
	added := 0
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				coord := world.Coord{X: x, Y: y, Z: z}
				if e.Chunk(coord) != nil {
					continue
				}
				c := world.NewChunk(coord)
				g.Populate(c)
				if c.CountSolid() == 0 {
					continue
				}
				if e.AddChunk(c) {
					added++
				}
			}
		}
	}
	return added
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
