package world

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// RemovalListener receives voxels removed from an entity, for cosmetic
// effects such as debris. exposedLight is the light color of the brightest
// face neighbour the removal opens up.
type RemovalListener interface {
	VoxelRemoved(x, y, z int, removed Voxel, exposedLight mgl32.Vec3)
}

// RemovalFunc adapts a function to RemovalListener.
type RemovalFunc func(x, y, z int, removed Voxel, exposedLight mgl32.Vec3)

// VoxelRemoved calls f.
func (f RemovalFunc) VoxelRemoved(x, y, z int, removed Voxel, exposedLight mgl32.Vec3) {
	f(x, y, z, removed, exposedLight)
}

// Entity owns a set of chunks (a station or asteroid), keeps their neighbour
// links in sync and aggregates what their builds report.
type Entity struct {
	Name string

	// OnMeshChanged is called after a chunk's build has been applied.
	OnMeshChanged func(e *Entity, c *Chunk)
	// Removal is notified by Remove.
	Removal RemovalListener
	// DefaultMass supplies the mass of placed voxels that carry none.
	DefaultMass func(material int16) uint8

	mu       sync.RWMutex
	chunks   map[Coord]*Chunk
	modCount uint64 // Increases on any chunk add/remove

	applied         map[Coord]BuildStats
	mass            int
	massPositionSum mgl32.Vec3
}

// NewEntity creates an entity with no chunks.
func NewEntity(name string) *Entity {
	return &Entity{
		Name:    name,
		chunks:  make(map[Coord]*Chunk),
		applied: make(map[Coord]BuildStats),
	}
}

// Chunk returns the chunk at coord, or nil.
func (e *Entity) Chunk(coord Coord) *Chunk {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chunks[coord]
}

// AddChunk attaches c and links it with any existing neighbours in both
// directions. It returns false when a chunk already occupies c.Coord.
func (e *Entity) AddChunk(c *Chunk) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.chunks[c.Coord]; ok {
		return false
	}
	e.chunks[c.Coord] = c
	e.modCount++
	for _, d := range Directions {
		if n := e.chunks[c.Coord.Add(d)]; n != nil {
			c.Link(d, n)
		}
	}
	// Boundary faces and occlusion of the surrounding chunks may change.
	e.dirtySurrounding(c.Coord)
	c.dirty = true
	return true
}

// dirtySurrounding marks the up to 26 chunks around coord dirty. Occlusion
// samples reach diagonal chunks, not only face neighbours.
func (e *Entity) dirtySurrounding(coord Coord) {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				if n := e.chunks[Coord{X: coord.X + dx, Y: coord.Y + dy, Z: coord.Z + dz}]; n != nil {
					n.dirty = true
				}
			}
		}
	}
}

// RemoveChunk detaches the chunk at coord from its neighbours, drops its
// contribution to the aggregates and returns it.
func (e *Entity) RemoveChunk(coord Coord) *Chunk {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.chunks[coord]
	if !ok {
		return nil
	}
	delete(e.chunks, coord)
	e.modCount++
	c.Unlink()
	e.dirtySurrounding(coord)
	e.retract(coord)
	return c
}

// Chunks returns all chunks ordered by coordinate.
func (e *Entity) Chunks() []*Chunk {
	e.mu.RLock()
	out := make([]*Chunk, 0, len(e.chunks))
	for _, c := range e.chunks {
		out = append(out, c)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Coord.Less(out[j].Coord) })
	return out
}

// DirtyChunks returns the chunks awaiting a rebuild, ordered by coordinate.
func (e *Entity) DirtyChunks() []*Chunk {
	all := e.Chunks()
	out := all[:0]
	for _, c := range all {
		if c.IsDirty() {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of chunks.
func (e *Entity) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.chunks)
}

// GetModCount returns the current modification count of the chunk map.
func (e *Entity) GetModCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.modCount
}

// Locate returns the chunk holding entity voxel (x,y,z) and the local
// coordinates inside it. If the chunk doesn't exist and create is true, an
// empty one is added.
func (e *Entity) Locate(x, y, z int, create bool) (*Chunk, int, int, int) {
	coord := Coord{floorDiv(x, Size), floorDiv(y, Size), floorDiv(z, Size)}
	lx, ly, lz := mod(x, Size), mod(y, Size), mod(z, Size)
	c := e.Chunk(coord)
	if c == nil && create {
		c = NewChunk(coord)
		if !e.AddChunk(c) {
			c = e.Chunk(coord)
		}
	}
	return c, lx, ly, lz
}

// Get returns the voxel at entity voxel coordinates, air if no chunk holds it.
func (e *Entity) Get(x, y, z int) Voxel {
	c, lx, ly, lz := e.Locate(x, y, z, false)
	if c == nil {
		return Air()
	}
	return c.Get(lx, ly, lz)
}

// Place stores v at entity voxel coordinates, creating the chunk on demand.
// A voxel without mass takes DefaultMass for its material.
func (e *Entity) Place(x, y, z int, v Voxel) error {
	if !v.IsAir() && v.Mass == 0 {
		v.Mass = 1
		if e.DefaultMass != nil {
			if m := e.DefaultMass(v.MaterialID); m > 0 {
				v.Mass = m
			}
		}
	}
	c, lx, ly, lz := e.Locate(x, y, z, !v.IsAir())
	if c == nil {
		return nil
	}
	return c.Set(lx, ly, lz, v)
}

// Remove clears the voxel at entity voxel coordinates and reports it to the
// removal listener. It returns false if the cell was already empty.
func (e *Entity) Remove(x, y, z int) (Voxel, bool, error) {
	c, lx, ly, lz := e.Locate(x, y, z, false)
	if c == nil {
		return Air(), false, nil
	}
	old := c.Get(lx, ly, lz)
	if old.IsAir() {
		return old, false, nil
	}
	if err := c.Set(lx, ly, lz, Air()); err != nil {
		return old, false, err
	}
	if e.Removal != nil {
		e.Removal.VoxelRemoved(x, y, z, old, e.exposedLight(x, y, z))
	}
	return old, true, nil
}

// exposedLight returns the light color of the brightest face neighbour of an
// entity voxel coordinate.
func (e *Entity) exposedLight(x, y, z int) mgl32.Vec3 {
	var best Voxel
	for _, d := range Directions {
		dx, dy, dz := d.Offset()
		n := e.Get(x+dx, y+dy, z+dz)
		if n.LightLevel > best.LightLevel {
			best = n
		}
	}
	return best.LightColor.Mul(best.LightLevel / MaxLightLevel)
}

// ApplyBuild replaces the chunk's share of the entity aggregates with the
// given build stats and notifies OnMeshChanged.
func (e *Entity) ApplyBuild(c *Chunk, stats BuildStats) {
	e.mu.Lock()
	e.retract(c.Coord)
	if !stats.Empty() {
		e.applied[c.Coord] = stats
		e.mass += stats.Mass
		e.massPositionSum = e.massPositionSum.Add(stats.MassPositionSum)
	}
	e.mu.Unlock()

	if e.OnMeshChanged != nil {
		e.OnMeshChanged(e, c)
	}
}

// retract removes a chunk's applied stats. Callers hold e.mu.
func (e *Entity) retract(coord Coord) {
	prev, ok := e.applied[coord]
	if !ok {
		return
	}
	delete(e.applied, coord)
	e.mass -= prev.Mass
	e.massPositionSum = e.massPositionSum.Sub(prev.MassPositionSum)
	if len(e.applied) == 0 {
		e.mass = 0
		e.massPositionSum = mgl32.Vec3{}
	}
}

// Mass returns the total mass of all applied builds.
func (e *Entity) Mass() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mass
}

// MassPositionSum returns the mass-weighted sum of voxel centres.
func (e *Entity) MassPositionSum() mgl32.Vec3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.massPositionSum
}

// CenterOfMass returns the mass-weighted mean voxel centre. The second result
// is false for a massless entity.
func (e *Entity) CenterOfMass() (mgl32.Vec3, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.mass == 0 {
		return mgl32.Vec3{}, false
	}
	return e.massPositionSum.Mul(1 / float32(e.mass)), true
}

// Bounds returns the union of the applied chunk bounding boxes.
func (e *Entity) Bounds() (AABB, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var (
		out   AABB
		found bool
	)
	for _, s := range e.applied {
		if !found {
			out, found = s.Bounds, true
			continue
		}
		out = out.Union(s.Bounds)
	}
	return out, found
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mod returns a non-negative remainder.
func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
