package registry

import (
	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

// Atlas is a grid of equally sized tiles in one texture, addressed row-major
// from the top-left.
type Atlas struct {
	Columns, Rows int
}

// TileUV returns the texture-space rectangle of a tile. Indices outside the
// grid wrap around.
func (a Atlas) TileUV(tile int) (uvMin, uvMax mgl32.Vec2) {
	cols, rows := max(a.Columns, 1), max(a.Rows, 1)
	n := cols * rows
	tile %= n
	if tile < 0 {
		tile += n
	}
	col, row := tile%cols, tile/cols
	w, h := 1/float32(cols), 1/float32(rows)
	return mgl32.Vec2{float32(col) * w, float32(row) * h},
		mgl32.Vec2{float32(col+1) * w, float32(row+1) * h}
}

// FaceUVs returns the texture coordinates of a face's four corners, in
// corner order bottom-left, bottom-right, top-right, top-left.
func (a Atlas) FaceUVs(tile int) [4]mgl32.Vec2 {
	lo, hi := a.TileUV(tile)
	return [4]mgl32.Vec2{
		{lo[0], hi[1]},
		{hi[0], hi[1]},
		{hi[0], lo[1]},
		{lo[0], lo[1]},
	}
}

// RoleFor picks the tile role of face on a voxel with the given orientation:
// the face the orientation points to shows the top tile, the opposite face
// the bottom tile, the other four the side tile.
func RoleFor(face world.Direction, o world.Orientation) TileRole {
	up := o.Direction()
	switch face {
	case up:
		return RoleTop
	case up.Opposite():
		return RoleBottom
	default:
		return RoleSide
	}
}

// FaceTile resolves the atlas tile of a voxel face. Unknown materials use
// tile 0.
func (r *Registry) FaceTile(material int16, face world.Direction, o world.Orientation) int {
	m, ok := r.materials[material]
	if !ok {
		return 0
	}
	return m.Tile(RoleFor(face, o))
}
