package meshing

import (
	"errors"
	"slices"
	"testing"
	"time"

	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

func TestRebuildErrors(t *testing.T) {
	if res := Rebuild(nil, testOptions()); !errors.Is(res.Err, ErrNilChunk) {
		t.Fatalf("nil chunk: got %v", res.Err)
	}
	c := world.NewChunk(world.Coord{})
	c.Release()
	if res := Rebuild(c, testOptions()); !errors.Is(res.Err, ErrReleased) {
		t.Fatalf("released chunk: got %v", res.Err)
	}
	if _, err := EnsureMesh(nil, testOptions()); !errors.Is(err, ErrNilChunk) {
		t.Fatalf("EnsureMesh(nil): got %v", err)
	}
}

func TestEnsureMeshOnlyRebuildsDirty(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	_ = c.Set(1, 1, 1, material(t, "rock"))

	first, err := EnsureMesh(c, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if c.IsDirty() {
		t.Fatal("chunk still dirty after EnsureMesh")
	}
	again, _ := EnsureMesh(c, testOptions())
	if again != first {
		t.Fatal("clean chunk was rebuilt")
	}

	_ = c.Set(2, 1, 1, material(t, "rock"))
	rebuilt, _ := EnsureMesh(c, testOptions())
	if rebuilt == first || rebuilt.FaceCount() != 10 {
		t.Fatalf("dirty chunk: got %d faces, want 10", rebuilt.FaceCount())
	}
}

func TestCrossChunkCulling(t *testing.T) {
	e := world.NewEntity("station")
	rock := material(t, "rock")
	_ = e.Place(world.Size-1, 0, 0, rock)
	_ = e.Place(world.Size, 0, 0, rock)

	left := e.Chunk(world.Coord{})
	right := e.Chunk(world.Coord{X: 1})
	if res := Rebuild(left, testOptions()); res.Stats.Faces != 5 {
		t.Fatalf("linked left: got %d faces, want 5", res.Stats.Faces)
	}
	if res := Rebuild(right, testOptions()); res.Stats.Faces != 5 {
		t.Fatalf("linked right: got %d faces, want 5", res.Stats.Faces)
	}

	e.RemoveChunk(world.Coord{X: 1})
	if !left.IsDirty() {
		t.Fatal("detaching a neighbour should dirty the chunk")
	}
	if res := Rebuild(left, testOptions()); res.Stats.Faces != 6 {
		t.Fatalf("unlinked left: got %d faces, want 6", res.Stats.Faces)
	}
	if res := Rebuild(right, testOptions()); res.Stats.Faces != 6 {
		t.Fatalf("unlinked right: got %d faces, want 6", res.Stats.Faces)
	}
}

// maxRed returns the largest red vertex colour of a mesh.
func maxRed(m *world.Mesh) float32 {
	var best float32
	for _, v := range m.Vertices {
		best = max(best, v.Color[0])
	}
	return best
}

func TestRebuildDirtyReadsNeighbourLightAfterPropagation(t *testing.T) {
	e := world.NewEntity("station")
	_ = e.Place(world.Size-1, 5, 5, material(t, "rock"))
	_ = e.Place(world.Size+2, 5, 5, material(t, "lamp"))

	if _, err := RebuildDirty(e, testOptions()); err != nil {
		t.Fatal(err)
	}
	left := e.Chunk(world.Coord{})
	first := slices.Clone(left.Mesh().Floats())
	if unlit := float32(0.62 * 0.3); maxRed(left.Mesh()) <= unlit+1e-3 {
		t.Fatalf("boundary face not lit by the neighbour lamp: red %v", maxRed(left.Mesh()))
	}

	left.MarkDirty()
	res := Rebuild(left, testOptions())
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if !slices.Equal(first, res.Mesh.Floats()) {
		t.Fatal("forced rebuild without edits changed the mesh")
	}
}

func TestNeighbourLightChangeDirtiesChunk(t *testing.T) {
	e := world.NewEntity("station")
	_ = e.Place(world.Size-1, 5, 5, material(t, "rock"))
	_ = e.Place(world.Size+8, 5, 5, material(t, "rock"))
	if _, err := RebuildDirty(e, testOptions()); err != nil {
		t.Fatal(err)
	}
	left := e.Chunk(world.Coord{})
	dark := maxRed(left.Mesh())

	// Interior edit in the right chunk; only its light reaches the seam.
	_ = e.Place(world.Size+2, 5, 5, material(t, "lamp"))
	if left.IsDirty() {
		t.Fatal("interior edit should not dirty the left chunk directly")
	}
	if _, err := RebuildDirty(e, testOptions()); err != nil {
		t.Fatal(err)
	}
	if lit := maxRed(left.Mesh()); lit <= dark+1e-3 {
		t.Fatalf("left chunk not rebuilt with new light: red %v, before %v", lit, dark)
	}
}

func TestRebuildDirtyAggregatesMass(t *testing.T) {
	e := world.NewEntity("rock")
	var changed int
	e.OnMeshChanged = func(*world.Entity, *world.Chunk) { changed++ }

	_ = e.Place(0, 0, 0, material(t, "rock")) // mass 8
	_ = e.Place(35, 0, 0, material(t, "ore")) // mass 12, next chunk

	results, err := RebuildDirty(e, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || changed != 2 {
		t.Fatalf("results: got %d, callbacks %d, want 2 each", len(results), changed)
	}
	if len(e.DirtyChunks()) != 0 {
		t.Fatal("dirty chunks left after RebuildDirty")
	}
	if e.Mass() != 20 {
		t.Fatalf("mass: got %d, want 20", e.Mass())
	}
	com, ok := e.CenterOfMass()
	// (8*0.5 + 12*35.5) / 20
	if !ok || !near(com[0], 21.5) || !near(com[1], 0.5) || !near(com[2], 0.5) {
		t.Fatalf("center of mass: got %v", com)
	}
	bounds, _ := e.Bounds()
	if bounds.Min != (mgl32.Vec3{0, 0, 0}) || bounds.Max != (mgl32.Vec3{36, 1, 1}) {
		t.Fatalf("bounds: got %v", bounds)
	}

	// rebuilding again replaces, not adds
	e.Chunk(world.Coord{}).MarkDirty()
	if _, err := RebuildDirty(e, testOptions()); err != nil {
		t.Fatal(err)
	}
	if e.Mass() != 20 {
		t.Fatalf("mass after second rebuild: got %d, want 20", e.Mass())
	}
}

func TestRebuildDirtyDropsEmptyChunks(t *testing.T) {
	e := world.NewEntity("debris")
	_ = e.Place(3, 3, 3, material(t, "ice"))
	_ = e.Place(40, 3, 3, material(t, "rock"))
	if _, err := RebuildDirty(e, testOptions()); err != nil {
		t.Fatal(err)
	}

	removed, ok, err := e.Remove(3, 3, 3)
	if err != nil || !ok || removed.MaterialID != 3 {
		t.Fatalf("remove: got %+v %v %v", removed, ok, err)
	}
	gone := e.Chunk(world.Coord{})
	results, err := RebuildDirty(e, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || !results[0].Empty {
		t.Fatalf("expected an empty result first, got %+v", results)
	}
	if e.Chunk(world.Coord{}) != nil || e.Len() != 1 {
		t.Fatalf("empty chunk still attached, %d chunks", e.Len())
	}
	if !gone.Released() {
		t.Fatal("dropped chunk was not released")
	}
	if e.Mass() != 8 {
		t.Fatalf("mass: got %d, want 8", e.Mass())
	}
}

func TestRebuilder(t *testing.T) {
	r := NewRebuilder(2, 4, testOptions())
	defer r.Shutdown()
	if r.Workers() != 2 || r.QueueLength() != 0 {
		t.Fatalf("workers %d, queued %d", r.Workers(), r.QueueLength())
	}

	results := make(chan Result, 3)
	for i := 0; i < 3; i++ {
		c := world.NewChunk(world.Coord{X: i * 2})
		_ = c.Set(0, 0, 0, material(t, "rock"))
		if !r.SubmitBlocking(RebuildJob{Chunk: c, Results: results}) {
			t.Fatal("submit failed")
		}
	}

	seen := map[world.Coord]bool{}
	for i := 0; i < 3; i++ {
		select {
		case res := <-results:
			if res.Err != nil || res.Stats.Faces != 6 {
				t.Fatalf("result %v: faces %d err %v", res.Coord, res.Stats.Faces, res.Err)
			}
			seen[res.Coord] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for rebuilds")
		}
	}
	if len(seen) != 3 {
		t.Fatalf("distinct results: got %d, want 3", len(seen))
	}
}

func TestRebuilderRejectsAfterShutdown(t *testing.T) {
	r := NewRebuilder(1, 1, testOptions())
	r.Shutdown()
	if r.Submit(RebuildJob{Chunk: world.NewChunk(world.Coord{})}) {
		t.Fatal("submit accepted after shutdown")
	}
}

func TestRebuilderMatchesSequentialRebuild(t *testing.T) {
	fill := func(e *world.Entity) {
		rock := material(t, "rock")
		lamp := material(t, "lamp")
		for x := -40; x < 40; x += 3 {
			for z := -40; z < 40; z += 5 {
				_ = e.Place(x, x&7, z, rock)
			}
		}
		_ = e.Place(0, 4, 0, lamp)
		_ = e.Place(-33, 2, 31, lamp)
	}

	seq := world.NewEntity("seq")
	fill(seq)
	if _, err := RebuildDirty(seq, testOptions()); err != nil {
		t.Fatal(err)
	}

	par := world.NewEntity("par")
	fill(par)
	r := NewRebuilder(4, 16, testOptions())
	defer r.Shutdown()
	results, err := r.RebuildEntity(par)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != par.Len() {
		t.Fatalf("results: got %d, want %d", len(results), par.Len())
	}
	if len(par.DirtyChunks()) != 0 {
		t.Fatal("dirty chunks left")
	}
	if par.Mass() != seq.Mass() {
		t.Fatalf("mass: got %d, want %d", par.Mass(), seq.Mass())
	}
	for _, c := range seq.Chunks() {
		other := par.Chunk(c.Coord)
		if other == nil {
			t.Fatalf("chunk %v missing", c.Coord)
		}
		if c.Mesh().FaceCount() != other.Mesh().FaceCount() {
			t.Fatalf("chunk %v: faces %d vs %d", c.Coord, c.Mesh().FaceCount(), other.Mesh().FaceCount())
		}
		if !slices.Equal(c.Mesh().Floats(), other.Mesh().Floats()) {
			t.Fatalf("chunk %v: vertex data differs from the sequential build", c.Coord)
		}
	}
}
