package world

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Chunk edge length in voxels
	Size = 32
	// Volume is the number of voxels in a chunk
	Volume = Size * Size * Size
)

var (
	// ErrMalformedGrid is returned when a voxel array does not hold exactly Volume cells.
	ErrMalformedGrid = errors.New("world: malformed voxel grid")
	// ErrOutOfRange is returned for chunk-local coordinates outside [0,Size).
	ErrOutOfRange = errors.New("world: coordinate out of range")
)

// Coord is a chunk position inside its entity, in chunk units.
type Coord struct {
	X, Y, Z int
}

// Add returns the coordinate one step in direction d.
func (c Coord) Add(d Direction) Coord {
	dx, dy, dz := d.Offset()
	return Coord{c.X + dx, c.Y + dy, c.Z + dz}
}

// Less orders coordinates by x, then y, then z.
func (c Coord) Less(o Coord) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Chunk is a Size^3 block of voxels. Neighbour links are non-owning; the
// owning entity attaches and detaches them. A chunk must not be rebuilt while
// its links or voxels are being changed from another goroutine.
type Chunk struct {
	Coord     Coord
	voxels    []Voxel
	neighbors [NumDirections]*Chunk
	dirty     bool

	mesh  *Mesh
	stats BuildStats
}

// NewChunk creates an empty chunk at the specified chunk coordinates
func NewChunk(coord Coord) *Chunk {
	voxels := make([]Voxel, Volume)
	for i := range voxels {
		voxels[i] = Air()
	}
	return &Chunk{
		Coord:  coord,
		voxels: voxels,
		dirty:  true,
	}
}

// NewChunkFromVoxels builds a chunk from a flat array laid out by Index.
// The array is copied. A length other than Volume is rejected.
func NewChunkFromVoxels(coord Coord, voxels []Voxel) (*Chunk, error) {
	if len(voxels) != Volume {
		return nil, fmt.Errorf("%w: got %d voxels, want %d", ErrMalformedGrid, len(voxels), Volume)
	}
	c := &Chunk{
		Coord:  coord,
		voxels: make([]Voxel, Volume),
		dirty:  true,
	}
	copy(c.voxels, voxels)
	return c, nil
}

// Index converts local coordinates to a flat index.
func Index(x, y, z int) int {
	return x*Size*Size + y*Size + z
}

// Position converts a flat index back to local coordinates.
func Position(i int) (x, y, z int) {
	return i / (Size * Size), (i / Size) % Size, i % Size
}

// InBounds reports whether local coordinates fall inside a chunk.
func InBounds(x, y, z int) bool {
	return x >= 0 && x < Size && y >= 0 && y < Size && z >= 0 && z < Size
}

// Origin returns the entity-space position of the chunk's (0,0,0) corner.
func (c *Chunk) Origin() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(c.Coord.X * Size),
		float32(c.Coord.Y * Size),
		float32(c.Coord.Z * Size),
	}
}

// Released reports whether the chunk's grid has been freed.
func (c *Chunk) Released() bool {
	return c.voxels == nil
}

// Release drops the grid and mesh. The chunk must already be detached.
func (c *Chunk) Release() {
	c.voxels = nil
	c.mesh = nil
}

// Get returns the voxel at local coordinates, or air when out of range.
func (c *Chunk) Get(x, y, z int) Voxel {
	if !InBounds(x, y, z) || c.voxels == nil {
		return Air()
	}
	return c.voxels[Index(x, y, z)]
}

// Set stores v at local coordinates and marks the chunk dirty. A change on
// the chunk border also dirties every chunk reachable across that border
// through the links, diagonal ones included, since their boundary faces and
// occlusion depend on this cell.
func (c *Chunk) Set(x, y, z int, v Voxel) error {
	if !InBounds(x, y, z) {
		return fmt.Errorf("%w: (%d,%d,%d)", ErrOutOfRange, x, y, z)
	}
	if c.voxels == nil {
		return fmt.Errorf("world: chunk %v released", c.Coord)
	}
	c.voxels[Index(x, y, z)] = v
	c.dirty = true
	c.dirtyAcross(BorderDirections(x, y, z), 0)
	return nil
}

// dirtyAcross marks the chunks reached by walking any ordering of any subset
// of dirs through the links. used holds the dirs already walked.
func (c *Chunk) dirtyAcross(dirs []Direction, used uint8) {
	for i, d := range dirs {
		if used&(1<<i) != 0 {
			continue
		}
		if nb := c.neighbors[d]; nb != nil {
			nb.dirty = true
			nb.dirtyAcross(dirs, used|1<<i)
		}
	}
}

// Voxels returns the flat grid. Callers may read and write cells in place;
// writes do not mark the chunk dirty.
func (c *Chunk) Voxels() []Voxel {
	return c.voxels
}

// Sample returns the voxel at local coordinates that may lie up to one cell
// outside the chunk on any axis. Out-of-chunk cells are read through the
// neighbour links, one axis at a time. The second result is false when no
// chunk is attached along the way: the caller treats that cell as open.
func (c *Chunk) Sample(x, y, z int) (Voxel, bool) {
	cur := c
	if x < 0 {
		cur, x = cur.neighbors[Left], x+Size
	} else if x >= Size {
		cur, x = cur.neighbors[Right], x-Size
	}
	if cur == nil {
		return Voxel{}, false
	}
	if y < 0 {
		cur, y = cur.neighbors[Bottom], y+Size
	} else if y >= Size {
		cur, y = cur.neighbors[Top], y-Size
	}
	if cur == nil {
		return Voxel{}, false
	}
	if z < 0 {
		cur, z = cur.neighbors[Back], z+Size
	} else if z >= Size {
		cur, z = cur.neighbors[Front], z-Size
	}
	if cur == nil || cur.voxels == nil || !InBounds(x, y, z) {
		return Voxel{}, false
	}
	return cur.voxels[Index(x, y, z)], true
}

// Neighbor returns the chunk linked in direction d, or nil.
func (c *Chunk) Neighbor(d Direction) *Chunk {
	return c.neighbors[d]
}

// Link attaches n as the neighbour in direction d, and c as n's neighbour in
// the opposite direction. Passing nil detaches both sides.
func (c *Chunk) Link(d Direction, n *Chunk) {
	if old := c.neighbors[d]; old != nil && old.neighbors[d.Opposite()] == c {
		old.neighbors[d.Opposite()] = nil
	}
	c.neighbors[d] = n
	if n != nil {
		n.neighbors[d.Opposite()] = c
	}
}

// Unlink detaches the chunk from all neighbours and returns them.
func (c *Chunk) Unlink() []*Chunk {
	var detached []*Chunk
	for _, d := range Directions {
		if n := c.neighbors[d]; n != nil {
			detached = append(detached, n)
			c.Link(d, nil)
		}
	}
	return detached
}

// IsDirty returns whether the chunk has been modified since its last build
func (c *Chunk) IsDirty() bool {
	return c.dirty
}

// MarkDirty schedules a rebuild.
func (c *Chunk) MarkDirty() {
	c.dirty = true
}

// SetClean marks the chunk as clean (not modified)
func (c *Chunk) SetClean() {
	c.dirty = false
}

// Mesh returns the last built mesh, nil if none was kept.
func (c *Chunk) Mesh() *Mesh {
	return c.mesh
}

// Stats returns the aggregates of the last build.
func (c *Chunk) Stats() BuildStats {
	return c.stats
}

// Install replaces the chunk's mesh and aggregates with a finished build and
// clears the dirty flag. An empty build drops the mesh.
func (c *Chunk) Install(mesh *Mesh, stats BuildStats) {
	if stats.Empty() {
		mesh = nil
	}
	c.mesh = mesh
	c.stats = stats
	c.dirty = false
}

// CountSolid returns the number of non-air voxels.
func (c *Chunk) CountSolid() int {
	n := 0
	for _, v := range c.voxels {
		if !v.IsAir() {
			n++
		}
	}
	return n
}

// BorderDirections lists the chunk faces a local coordinate touches.
func BorderDirections(x, y, z int) []Direction {
	var dirs []Direction
	if x == 0 {
		dirs = append(dirs, Left)
	} else if x == Size-1 {
		dirs = append(dirs, Right)
	}
	if y == 0 {
		dirs = append(dirs, Bottom)
	} else if y == Size-1 {
		dirs = append(dirs, Top)
	}
	if z == 0 {
		dirs = append(dirs, Back)
	} else if z == Size-1 {
		dirs = append(dirs, Front)
	}
	return dirs
}
