package persistence

import (
	"errors"
	"testing"

	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
)

func sampleChunk(t *testing.T) *world.Chunk {
	t.Helper()
	c := world.NewChunk(world.Coord{X: -2, Y: 3, Z: 7})
	rock := world.NewVoxel(1, 8)
	rock.Color = mgl32.Vec3{0.62, 0.58, 0.55}
	for x := 0; x < world.Size; x++ {
		for z := 0; z < world.Size; z++ {
			if err := c.Set(x, 0, z, rock); err != nil {
				t.Fatal(err)
			}
		}
	}
	hull := world.NewVoxel(4, 10)
	hull.Orientation = world.OrientForward
	hull.Health = 17
	_ = c.Set(4, 1, 4, hull)
	glass := world.NewVoxel(5, 2)
	glass.Transparent = true
	_ = c.Set(5, 1, 4, glass)
	_ = c.Set(9, 1, 9, world.NewLightSource(6, 4, mgl32.Vec3{1, 0.85, 0.6}))
	return c
}

func TestChunkRoundTrip(t *testing.T) {
	c := sampleChunk(t)
	// derived light must not survive
	c.Voxels()[world.Index(9, 2, 9)].LightLevel = 12

	data, err := EncodeChunk(c)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeChunk(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Coord != c.Coord {
		t.Fatalf("coord: got %v, want %v", got.Coord, c.Coord)
	}
	if !got.IsDirty() {
		t.Fatal("decoded chunk should be dirty")
	}

	for i, want := range c.Voxels() {
		if i == world.Index(9, 2, 9) {
			want.LightLevel = 0
		}
		if have := got.Voxels()[i]; have != want {
			x, y, z := world.Position(i)
			t.Fatalf("voxel (%d,%d,%d): got %+v, want %+v", x, y, z, have, want)
		}
	}
	if o := got.Get(4, 1, 4).Orientation; o != world.OrientForward {
		t.Fatalf("orientation: got %v, want forward", o)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	data, err := EncodeChunk(sampleChunk(t))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong magic", append([]byte("XXXX"), data[4:]...)},
		{"wrong version", append(append([]byte{}, data[:4]...), append([]byte{99}, data[5:]...)...)},
		{"truncated frame", data[:len(data)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeChunk(tt.data); !errors.Is(err, ErrBadFormat) {
				t.Fatalf("got %v, want ErrBadFormat", err)
			}
		})
	}
}

func TestDecodeRejectsWrongVoxelCount(t *testing.T) {
	enc, _, err := codecs()
	if err != nil {
		t.Fatal(err)
	}
	body := make([]byte, 16)
	body[12] = 8 // voxel count
	data := enc.EncodeAll(body, []byte(chunkMagic+"\x01"))

	if _, err := DecodeChunk(data); !errors.Is(err, world.ErrMalformedGrid) {
		t.Fatalf("got %v, want ErrMalformedGrid", err)
	}
}

func TestDecodeRejectsTruncatedBody(t *testing.T) {
	enc, dec, err := codecs()
	if err != nil {
		t.Fatal(err)
	}
	data, err := EncodeChunk(sampleChunk(t))
	if err != nil {
		t.Fatal(err)
	}
	body, err := dec.DecodeAll(data[5:], nil)
	if err != nil {
		t.Fatal(err)
	}
	short := enc.EncodeAll(body[:len(body)-3], []byte(chunkMagic+"\x01"))
	if _, err := DecodeChunk(short); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("short body: got %v, want ErrBadFormat", err)
	}
	long := enc.EncodeAll(append(body, 0), []byte(chunkMagic+"\x01"))
	if _, err := DecodeChunk(long); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("trailing byte: got %v, want ErrBadFormat", err)
	}
}

func BenchmarkEncodeChunk(b *testing.B) {
	c := world.NewChunk(world.Coord{})
	for i := range c.Voxels() {
		if i%3 == 0 {
			c.Voxels()[i] = world.NewVoxel(int16(1+i%5), 8)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeChunk(c); err != nil {
			b.Fatal(err)
		}
	}
}
