package pick

import (
	"math"

	"stationvox/internal/profiling"
	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

// VoxelSource is anything that can be sampled in entity voxel coordinates.
type VoxelSource interface {
	Get(x, y, z int) world.Voxel
}

// RaycastResult stores the result of a raycast operation
type RaycastResult struct {
	HitPosition [3]int
	// AdjacentPosition is the last empty cell before the hit, where a new
	// voxel would be placed.
	AdjacentPosition [3]int
	// Face is the face of the hit voxel the ray entered through. It is only
	// meaningful when Distance > 0.
	Face     world.Direction
	Distance float32
	Hit      bool
}

// Raycast walks the voxel grid from start along direction and returns the
// first solid voxel within maxDist. Voxel (x,y,z) spans [x,x+1) on each axis.
// Corrupt voxels are passed through.
func Raycast(src VoxelSource, start, direction mgl32.Vec3, maxDist float32) RaycastResult {
	defer profiling.Track("pick.Raycast")()

	var result RaycastResult
	if direction.Len() == 0 {
		return result
	}
	dir := direction.Normalize()

	var (
		cell, step   [3]int
		tMax, tDelta [3]float32
	)
	inf := float32(math.Inf(1))
	for a := 0; a < 3; a++ {
		cell[a] = int(math.Floor(float64(start[a])))
		switch {
		case dir[a] > 0:
			step[a] = 1
			tMax[a] = (float32(cell[a]+1) - start[a]) / dir[a]
			tDelta[a] = 1 / dir[a]
		case dir[a] < 0:
			step[a] = -1
			tMax[a] = (start[a] - float32(cell[a])) / -dir[a]
			tDelta[a] = -1 / dir[a]
		default:
			tMax[a], tDelta[a] = inf, inf
		}
	}

	prev := cell
	face := world.Direction(world.NumDirections)
	t := float32(0)
	for t <= maxDist {
		v := src.Get(cell[0], cell[1], cell[2])
		if !v.IsAir() && !v.IsCorrupt() {
			result.HitPosition = cell
			result.AdjacentPosition = prev
			result.Face = face
			result.Distance = t
			result.Hit = true
			return result
		}

		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		prev = cell
		cell[axis] += step[axis]
		t = tMax[axis]
		tMax[axis] += tDelta[axis]

		var back [3]int
		back[axis] = -step[axis]
		face, _ = world.DirectionOf(back[0], back[1], back[2])
	}

	return result
}
