package meshing

import (
	"sync"

	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

// Corner indices of a face, counter-clockwise seen from outside.
const (
	CornerBottomLeft = iota
	CornerBottomRight
	CornerTopRight
	CornerTopLeft
)

// Ring positions of the eight cells around a face, one mask bit each.
const (
	RingBottom = iota
	RingBottomLeft
	RingLeft
	RingUpperLeft
	RingTop
	RingUpperRight
	RingRight
	RingBottomRight
)

// FaceGeometry is the static data of one voxel face.
type FaceGeometry struct {
	Dir    world.Direction
	Normal mgl32.Vec3
	// Right and Up span the face so that Right x Up = Normal.
	Right, Up [3]int
	// Corners are offsets from the voxel's minimum corner.
	Corners [4][3]int
	// Ring holds the cells sampled for occlusion, relative to the voxel,
	// indexed by ring position. They all lie in the layer in front of the face.
	Ring [8][3]int
}

// FaceTable holds the geometry of all six faces.
type FaceTable [world.NumDirections]FaceGeometry

var (
	faceTableOnce sync.Once
	faceTable     FaceTable
)

// Faces returns the process-wide face table. It is built on first use and
// never modified afterwards.
func Faces() *FaceTable {
	faceTableOnce.Do(func() {
		faceTable = buildFaceTable()
	})
	return &faceTable
}

// tangents picks Right and Up per face so that Right x Up = Normal.
var tangents = [world.NumDirections][2][3]int{
	world.Left:   {{0, 0, 1}, {0, 1, 0}},
	world.Right:  {{0, 0, -1}, {0, 1, 0}},
	world.Bottom: {{1, 0, 0}, {0, 0, 1}},
	world.Top:    {{1, 0, 0}, {0, 0, -1}},
	world.Back:   {{-1, 0, 0}, {0, 1, 0}},
	world.Front:  {{1, 0, 0}, {0, 1, 0}},
}

func buildFaceTable() FaceTable {
	var t FaceTable
	for _, d := range world.Directions {
		n := d.Vec()
		r, u := tangents[d][0], tangents[d][1]
		if cross(r, u) != n {
			panic("meshing: face tangents are not right-handed for " + d.String())
		}

		g := FaceGeometry{
			Dir:    d,
			Normal: d.Normal(),
			Right:  r,
			Up:     u,
		}

		// In doubled units the face centre is 1+n; corners step by r and u.
		signs := [4][2]int{
			CornerBottomLeft:  {-1, -1},
			CornerBottomRight: {1, -1},
			CornerTopRight:    {1, 1},
			CornerTopLeft:     {-1, 1},
		}
		for i, s := range signs {
			for a := 0; a < 3; a++ {
				g.Corners[i][a] = (1 + n[a] + s[0]*r[a] + s[1]*u[a]) / 2
			}
		}

		ring := [8][2]int{
			RingBottom:      {0, -1},
			RingBottomLeft:  {-1, -1},
			RingLeft:        {-1, 0},
			RingUpperLeft:   {-1, 1},
			RingTop:         {0, 1},
			RingUpperRight:  {1, 1},
			RingRight:       {1, 0},
			RingBottomRight: {1, -1},
		}
		for i, s := range ring {
			for a := 0; a < 3; a++ {
				g.Ring[i][a] = n[a] + s[0]*r[a] + s[1]*u[a]
			}
		}
		t[d] = g
	}
	return t
}

func cross(a, b [3]int) [3]int {
	return [3]int{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
