package world

import "github.com/go-gl/mathgl/mgl32"

// Direction identifies one of the six axis-aligned neighbours of a cell, and
// the voxel face pointing that way.
type Direction uint8

const (
	Left   Direction = iota // -X
	Right                   // +X
	Bottom                  // -Y
	Top                     // +Y
	Back                    // -Z
	Front                   // +Z
)

// NumDirections is the number of faces of a voxel.
const NumDirections = 6

var directionOffsets = [NumDirections][3]int{
	{-1, 0, 0},
	{1, 0, 0},
	{0, -1, 0},
	{0, 1, 0},
	{0, 0, -1},
	{0, 0, 1},
}

var directionNames = [NumDirections]string{"left", "right", "bottom", "top", "back", "front"}

// Directions lists all six directions in face order.
var Directions = [NumDirections]Direction{Left, Right, Bottom, Top, Back, Front}

func (d Direction) String() string {
	if d < NumDirections {
		return directionNames[d]
	}
	return "invalid"
}

// Offset returns the unit step of d.
func (d Direction) Offset() (dx, dy, dz int) {
	o := directionOffsets[d]
	return o[0], o[1], o[2]
}

// Vec returns the unit step of d as an array.
func (d Direction) Vec() [3]int {
	return directionOffsets[d]
}

// Normal returns the outward face normal.
func (d Direction) Normal() mgl32.Vec3 {
	o := directionOffsets[d]
	return mgl32.Vec3{float32(o[0]), float32(o[1]), float32(o[2])}
}

// Opposite returns the direction pointing the other way.
func (d Direction) Opposite() Direction {
	return d ^ 1
}

// DirectionOf maps a unit offset back to its direction.
func DirectionOf(dx, dy, dz int) (Direction, bool) {
	for i, o := range directionOffsets {
		if o[0] == dx && o[1] == dy && o[2] == dz {
			return Direction(i), true
		}
	}
	return 0, false
}
