package meshing

import (
	"math"
	"slices"
	"testing"

	"stationvox/internal/registry"
	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

func testOptions() Options {
	return Options{
		AmbientFloor: 0.3,
		Atlas:        registry.Atlas{Columns: 16, Rows: 16},
		Materials:    registry.Default(),
	}
}

func material(t testing.TB, name string) world.Voxel {
	t.Helper()
	m, err := registry.Default().ByName(name)
	if err != nil {
		t.Fatal(err)
	}
	return m.Voxel()
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestSingleVoxelMesh(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	_ = c.Set(5, 5, 5, material(t, "rock"))

	mesh, stats := Assemble(c, testOptions())
	if got := len(mesh.Vertices); got != 24 {
		t.Fatalf("vertices: got %d, want 24", got)
	}
	if got := len(mesh.Indices); got != 36 {
		t.Fatalf("indices: got %d, want 36", got)
	}
	if stats.Faces != 6 || stats.Mass != 8 {
		t.Fatalf("stats: got %+v", stats)
	}
	for i, v := range mesh.Vertices {
		if v.AO != 1 {
			t.Fatalf("vertex %d: AO %v, want 1 with no occluders", i, v.AO)
		}
	}
	for i, idx := range mesh.Indices {
		if int(idx) >= len(mesh.Vertices) {
			t.Fatalf("index %d out of range: %d", i, idx)
		}
	}
	if got := len(mesh.Floats()); got != 24*world.VertexStride {
		t.Fatalf("floats: got %d, want %d", got, 24*world.VertexStride)
	}
}

func TestTwoVoxelsTouching(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	_ = c.Set(0, 0, 0, material(t, "rock"))
	_ = c.Set(1, 0, 0, material(t, "rock"))

	_, stats := Assemble(c, testOptions())
	if stats.Faces != 10 {
		t.Fatalf("faces: got %d, want 10", stats.Faces)
	}
}

func TestEnclosedVoxelHasNoFaces(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	rock := material(t, "rock")
	for x := 4; x < 7; x++ {
		for y := 4; y < 7; y++ {
			for z := 4; z < 7; z++ {
				_ = c.Set(x, y, z, rock)
			}
		}
	}

	_, stats := Assemble(c, testOptions())
	// 3x3 per side, 6 sides; the centre contributes nothing
	if stats.Faces != 54 {
		t.Fatalf("faces: got %d, want 54", stats.Faces)
	}
}

func TestTransparentCulling(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	_ = c.Set(0, 0, 0, material(t, "glass"))
	_ = c.Set(1, 0, 0, material(t, "glass"))
	_, stats := Assemble(c, testOptions())
	if stats.Faces != 10 {
		t.Fatalf("glass pair: got %d faces, want 10", stats.Faces)
	}

	c = world.NewChunk(world.Coord{})
	_ = c.Set(0, 0, 0, material(t, "glass"))
	_ = c.Set(1, 0, 0, material(t, "rock"))
	_, stats = Assemble(c, testOptions())
	// rock keeps its face toward the glass, the glass face toward rock is hidden
	if stats.Faces != 11 {
		t.Fatalf("glass next to rock: got %d faces, want 11", stats.Faces)
	}
}

func TestFaceVisible(t *testing.T) {
	rock := world.NewVoxel(1, 8)
	glass := world.NewVoxel(5, 2)
	glass.Transparent = true
	corrupt := world.NewVoxel(-3, 1)

	tests := []struct {
		name     string
		v, nb    world.Voxel
		linked   bool
		expected bool
	}{
		{"unlinked", rock, world.Voxel{}, false, true},
		{"air", rock, world.Air(), true, true},
		{"opaque", rock, rock, true, false},
		{"rock next to glass", rock, glass, true, true},
		{"glass next to glass", glass, glass, true, false},
		{"glass next to rock", glass, rock, true, false},
		{"corrupt neighbour", rock, corrupt, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FaceVisible(tt.v, tt.nb, tt.linked); got != tt.expected {
				t.Fatalf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUnlitVertexColor(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	rock := material(t, "rock")
	_ = c.Set(5, 5, 5, rock)

	mesh, _ := Assemble(c, testOptions())
	want := rock.Color.Mul(0.3)
	for _, v := range mesh.Vertices {
		for i := range want {
			if !near(v.Color[i], want[i]) {
				t.Fatalf("color: got %v, want %v", v.Color, want)
			}
		}
	}
}

func TestBlendLight(t *testing.T) {
	own := world.Air()
	nb := world.Air()
	if got := BlendLight(own, nb, true); got != (mgl32.Vec3{}) {
		t.Fatalf("dark: got %v", got)
	}

	nb.LightLevel = 15
	nb.LightColor = mgl32.Vec3{1, 0, 0}
	if got := BlendLight(own, nb, true); !near(got[0], 1) || got[1] != 0 {
		t.Fatalf("neighbour only: got %v, want (1,0,0)", got)
	}
	// light behind an unlinked border is not seen
	if got := BlendLight(own, nb, false); got != (mgl32.Vec3{}) {
		t.Fatalf("unlinked: got %v", got)
	}

	own.LightLevel = 7.5
	own.LightColor = mgl32.Vec3{0, 0, 1}
	got := BlendLight(own, nb, true)
	want := mgl32.Vec3{2.0 / 3, 0, 1.0 / 3}
	for i := range want {
		if !near(got[i], want[i]) {
			t.Fatalf("blend: got %v, want %v", got, want)
		}
	}
}

func TestLightSourceFaces(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	_ = c.Set(5, 5, 5, material(t, "lamp"))
	// rock around the lamp's top would darken an ordinary voxel
	_ = c.Set(4, 6, 5, material(t, "rock"))
	_ = c.Set(6, 6, 5, material(t, "rock"))

	Rebuild(c, testOptions())
	mesh := c.Mesh()
	lamp := 0
	for _, v := range mesh.Vertices {
		if v.Emission == 1 {
			lamp++
			if v.AO != 1 {
				t.Fatalf("light source AO: got %v, want 1", v.AO)
			}
		}
	}
	if lamp != 24 {
		t.Fatalf("emissive vertices: got %d, want 24", lamp)
	}
}

func TestOrientedTiles(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	hull := material(t, "hull")
	hull.Orientation = world.OrientLeft
	_ = c.Set(5, 5, 5, hull)

	opts := testOptions()
	mesh, _ := Assemble(c, opts)
	top, _ := opts.Atlas.TileUV(16)
	bottom, _ := opts.Atlas.TileUV(18)
	for f := 0; f < mesh.FaceCount(); f++ {
		v := mesh.Vertices[f*4+3] // top-left corner carries the tile minimum
		switch {
		case v.Normal == world.Left.Normal():
			if v.UV != top {
				t.Fatalf("left face: got uv %v, want top tile %v", v.UV, top)
			}
		case v.Normal == world.Right.Normal():
			if v.UV != bottom {
				t.Fatalf("right face: got uv %v, want bottom tile %v", v.UV, bottom)
			}
		}
	}
}

func TestBoundsAndMass(t *testing.T) {
	c := world.NewChunk(world.Coord{X: 1})
	_ = c.Set(5, 5, 5, material(t, "rock"))
	_ = c.Set(7, 9, 5, material(t, "ore"))

	_, stats := Assemble(c, testOptions())
	wantMin := mgl32.Vec3{37, 5, 5}
	wantMax := mgl32.Vec3{40, 10, 6}
	if stats.Bounds.Min != wantMin || stats.Bounds.Max != wantMax {
		t.Fatalf("bounds: got %v, want {%v %v}", stats.Bounds, wantMin, wantMax)
	}
	if stats.Mass != 20 {
		t.Fatalf("mass: got %d, want 20", stats.Mass)
	}
	// 8*(37.5,5.5,5.5) + 12*(39.5,9.5,5.5)
	want := mgl32.Vec3{774, 158, 110}
	for i := range want {
		if !near(stats.MassPositionSum[i], want[i]) {
			t.Fatalf("mass position sum: got %v, want %v", stats.MassPositionSum, want)
		}
	}
}

func TestCorruptVoxelIsSkipped(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	_ = c.Set(2, 2, 2, material(t, "rock"))
	c.Voxels()[world.Index(10, 10, 10)] = world.NewVoxel(-1, 5)

	_, stats := Assemble(c, testOptions())
	if stats.Anomalies != 1 {
		t.Fatalf("anomalies: got %d, want 1", stats.Anomalies)
	}
	if stats.Faces != 6 || stats.Mass != 8 {
		t.Fatalf("corrupt voxel leaked into the build: %+v", stats)
	}
}

func TestEmptyChunkHasNoMesh(t *testing.T) {
	c := world.NewChunk(world.Coord{})
	mesh, stats := Assemble(c, testOptions())
	if mesh != nil || !stats.Empty() {
		t.Fatalf("empty chunk: got mesh %v stats %+v", mesh, stats)
	}
}

func patterned(t testing.TB) *world.Chunk {
	c := world.NewChunk(world.Coord{})
	rock := material(t, "rock")
	glass := material(t, "glass")
	lamp := material(t, "lamp")
	for x := 0; x < world.Size; x++ {
		for y := 0; y < world.Size; y++ {
			for z := 0; z < world.Size; z++ {
				switch h := (x*7 + y*3 + z*5) % 11; {
				case h < 4:
					_ = c.Set(x, y, z, rock)
				case h == 5:
					_ = c.Set(x, y, z, glass)
				case h == 9 && y%8 == 0:
					_ = c.Set(x, y, z, lamp)
				}
			}
		}
	}
	return c
}

func TestRebuildIsIdempotent(t *testing.T) {
	c := patterned(t)
	first := Rebuild(c, testOptions())
	if first.Err != nil {
		t.Fatal(first.Err)
	}
	floats := first.Mesh.Floats()
	indices := slices.Clone(first.Mesh.Indices)

	c.MarkDirty()
	second := Rebuild(c, testOptions())
	if !slices.Equal(floats, second.Mesh.Floats()) {
		t.Fatal("vertices differ between rebuilds")
	}
	if !slices.Equal(indices, second.Mesh.Indices) {
		t.Fatal("indices differ between rebuilds")
	}
	if first.Stats.Bounds != second.Stats.Bounds {
		t.Fatalf("bounds differ: %v vs %v", first.Stats.Bounds, second.Stats.Bounds)
	}
}

func TestWindingFollowsAO(t *testing.T) {
	c := patterned(t)
	Rebuild(c, testOptions())
	mesh := c.Mesh()
	for f := 0; f < mesh.FaceCount(); f++ {
		base := uint32(f * 4)
		var ao [4]float32
		for i := range ao {
			ao[i] = unpackAO(mesh.Vertices[int(base)+i].AO)
		}
		want := ChooseWinding(ao).Indices(base)
		if got := mesh.Indices[f*6 : f*6+6]; !slices.Equal(got, want[:]) {
			t.Fatalf("face %d: got indices %v, want %v for AO %v", f, got, want, ao)
		}
	}
}

func unpackAO(v float32) float32 {
	if v < 0 {
		return v + 0.5
	}
	return v
}

func BenchmarkAssemble(b *testing.B) {
	c := patterned(b)
	opts := testOptions()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Assemble(c, opts)
	}
}

func BenchmarkRebuild(b *testing.B) {
	c := patterned(b)
	opts := testOptions()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.MarkDirty()
		Rebuild(c, opts)
	}
}
