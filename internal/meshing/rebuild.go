package meshing

import (
	"errors"
	"fmt"
	"sort"

	"stationvox/internal/lighting"
	"stationvox/internal/logger"
	"stationvox/internal/world"

	"go.uber.org/zap"
)

var (
	// ErrNilChunk is returned when a rebuild is requested without a chunk.
	ErrNilChunk = errors.New("meshing: nil chunk")
	// ErrReleased is returned for chunks whose grid has been freed.
	ErrReleased = errors.New("meshing: chunk released")
)

// Result is the outcome of one chunk rebuild.
type Result struct {
	Coord world.Coord
	Mesh  *world.Mesh
	Stats world.BuildStats
	// Empty is set when the chunk holds no mass and its owner should drop it.
	Empty bool
	Err   error
}

// Rebuild relights the chunk, assembles its mesh and installs the result on
// the chunk, clearing its dirty flag. Lighting always completes before
// assembly starts. Linked neighbours whose boundary faces blend light that
// changed are marked dirty.
func Rebuild(c *world.Chunk, opts Options) Result {
	if err := checkChunk(c); err != nil {
		return Result{Coord: coordOf(c), Err: err}
	}
	relight(c)
	return assemble(c, opts)
}

func checkChunk(c *world.Chunk) error {
	if c == nil {
		return ErrNilChunk
	}
	if c.Released() {
		return fmt.Errorf("%w: %v", ErrReleased, c.Coord)
	}
	return nil
}

func coordOf(c *world.Chunk) world.Coord {
	if c == nil {
		return world.Coord{}
	}
	return c.Coord
}

// relight propagates light inside c and dirties the neighbours across every
// face whose boundary light changed. It returns those neighbours.
func relight(c *world.Chunk) []*world.Chunk {
	lit := lighting.Propagate(c)
	var touched []*world.Chunk
	for _, d := range lit.BorderChanged {
		if nb := c.Neighbor(d); nb != nil {
			nb.MarkDirty()
			touched = append(touched, nb)
		}
	}
	if lit.Sources > 0 || len(touched) > 0 {
		logger.Log.Debug("Chunk relit",
			zap.Stringer("chunk", c.Coord),
			zap.Int("sources", lit.Sources),
			zap.Int("lit", lit.Lit),
			zap.Int("neighbours", len(touched)))
	}
	return touched
}

// relightAll relights every chunk in the list before any of them is
// assembled, so boundary faces blend the neighbours' current light. Clean
// neighbours whose light view changed join the list. The result is in
// coordinate order.
func relightAll(chunks []*world.Chunk) []*world.Chunk {
	seen := make(map[*world.Chunk]bool, len(chunks))
	list := make([]*world.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c != nil && !seen[c] {
			seen[c] = true
			list = append(list, c)
		}
	}
	for i := 0; i < len(list); i++ {
		c := list[i]
		if c.Released() {
			continue
		}
		for _, nb := range relight(c) {
			if !seen[nb] {
				seen[nb] = true
				list = append(list, nb)
			}
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Coord.Less(list[j].Coord) })
	return list
}

// assemble builds and installs the mesh of an already lit chunk.
func assemble(c *world.Chunk, opts Options) Result {
	if err := checkChunk(c); err != nil {
		return Result{Coord: coordOf(c), Err: err}
	}
	mesh, stats := Assemble(c, opts)
	c.Install(mesh, stats)

	logger.Log.Debug("Chunk rebuilt",
		zap.Stringer("chunk", c.Coord),
		zap.Int("faces", stats.Faces),
		zap.Int("mass", stats.Mass),
		zap.Int("anomalies", stats.Anomalies))

	return Result{
		Coord: c.Coord,
		Mesh:  mesh,
		Stats: stats,
		Empty: stats.Empty(),
	}
}

// EnsureMesh rebuilds the chunk only if it is dirty and returns its current
// mesh, which is nil for an empty chunk.
func EnsureMesh(c *world.Chunk, opts Options) (*world.Mesh, error) {
	if c == nil {
		return nil, ErrNilChunk
	}
	if !c.IsDirty() {
		return c.Mesh(), nil
	}
	res := Rebuild(c, opts)
	return res.Mesh, res.Err
}

// Apply hands a finished rebuild to the owning entity: its stats replace the
// chunk's previous contribution, and an empty chunk is detached and released.
func Apply(e *world.Entity, c *world.Chunk, res Result) {
	if res.Err != nil || c == nil {
		return
	}
	e.ApplyBuild(c, res.Stats)
	if res.Empty && e.Chunk(c.Coord) == c {
		e.RemoveChunk(c.Coord)
		c.Release()
		logger.Log.Debug("Empty chunk dropped",
			zap.String("entity", e.Name),
			zap.Stringer("chunk", c.Coord))
	}
}

// RebuildDirty rebuilds every dirty chunk of the entity in coordinate order
// and applies the results. Each pass relights all of its chunks before
// assembling any. Dropping an empty chunk dirties its former neighbours, so
// passes repeat until nothing is dirty. Failed rebuilds are joined into the
// returned error; the others are still applied.
func RebuildDirty(e *world.Entity, opts Options) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	for pass := 0; pass <= e.Len(); pass++ {
		dirty := e.DirtyChunks()
		if len(dirty) == 0 {
			break
		}
		for _, c := range relightAll(dirty) {
			res := assemble(c, opts)
			if res.Err != nil {
				errs = append(errs, res.Err)
				continue
			}
			Apply(e, c, res)
			results = append(results, res)
		}
	}
	return results, errors.Join(errs...)
}
