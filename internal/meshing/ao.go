package meshing

import (
	"sync"

	"stationvox/internal/world"
)

// cornerBits maps each face corner to the three ring cells that touch it.
var cornerBits = [4][3]int{
	CornerBottomLeft:  {RingBottom, RingBottomLeft, RingLeft},
	CornerBottomRight: {RingBottom, RingRight, RingBottomRight},
	CornerTopRight:    {RingTop, RingUpperRight, RingRight},
	CornerTopLeft:     {RingLeft, RingUpperLeft, RingTop},
}

// AOTable maps an 8-bit ring occupancy mask to the four corner shades.
type AOTable [256][4]float32

var (
	aoTableOnce sync.Once
	aoTable     AOTable
)

// Occlusion returns the process-wide AO lookup table, built on first use.
func Occlusion() *AOTable {
	aoTableOnce.Do(func() {
		for mask := 0; mask < 256; mask++ {
			for corner, bits := range cornerBits {
				set := 0
				for _, b := range bits {
					if mask&(1<<b) != 0 {
						set++
					}
				}
				// Three occluders leave a quarter of the light; corners are never black.
				aoTable[mask][corner] = 1 - float32(set)/4
			}
		}
	})
	return &aoTable
}

// CornerShades returns the four corner shades for an occlusion mask.
func CornerShades(mask uint8) [4]float32 {
	return Occlusion()[mask]
}

// OcclusionMask samples the ring of face f around local voxel (x,y,z). A bit
// is set for every solid, opaque neighbour that is not a light source. Cells
// beyond unlinked chunk borders count as open.
func OcclusionMask(c *world.Chunk, x, y, z int, f world.Direction) uint8 {
	g := &Faces()[f]
	var mask uint8
	for bit, o := range g.Ring {
		v, ok := c.Sample(x+o[0], y+o[1], z+o[2])
		if ok && v.Occludes() {
			mask |= 1 << bit
		}
	}
	return mask
}

// FaceAO returns the corner shades of face f of local voxel (x,y,z), before
// the three-corner correction.
func FaceAO(c *world.Chunk, x, y, z int, f world.Direction) [4]float32 {
	return CornerShades(OcclusionMask(c, x, y, z, f))
}

// Winding is the diagonal a quad is split along.
type Winding uint8

const (
	// WindingDefault splits along corners 0-2: 0-1-2, 2-3-0.
	WindingDefault Winding = iota
	// WindingFlipped splits along corners 1-3: 1-2-3, 3-0-1.
	WindingFlipped
)

var windingOrder = [2][6]uint32{
	WindingDefault: {0, 1, 2, 2, 3, 0},
	WindingFlipped: {1, 2, 3, 3, 0, 1},
}

// ChooseWinding splits the quad along its brighter diagonal so that a dark
// corner does not bleed across the whole face.
func ChooseWinding(ao [4]float32) Winding {
	if ao[0]+ao[2] < ao[1]+ao[3] {
		return WindingFlipped
	}
	return WindingDefault
}

// Indices returns the six indices of a quad whose first vertex is base.
func (w Winding) Indices(base uint32) [6]uint32 {
	var out [6]uint32
	for i, o := range windingOrder[w] {
		out[i] = base + o
	}
	return out
}

const halfShade = 0.5

// CorrectThreeCorner handles quads where three corners share the half shade
// and the odd one out sits at corner 0 or 2. The odd corner is pulled halfway
// toward the half shade; otherwise such quads show a false seam along the
// diagonal. Other quads are returned unchanged.
func CorrectThreeCorner(ao [4]float32) [4]float32 {
	odd, same := -1, 0
	for i, v := range ao {
		if v == halfShade {
			same++
		} else {
			odd = i
		}
	}
	if same != 3 || (odd != 0 && odd != 2) {
		return ao
	}
	ao[odd] = (ao[odd] + halfShade) / 2
	return ao
}

// PackAO encodes a shade for the render stage: shades below one half are
// shifted down by one half.
func PackAO(v float32) float32 {
	if v < halfShade {
		return v - halfShade
	}
	return v
}
