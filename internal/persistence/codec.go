package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"stationvox/internal/world"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"
)

// Chunk blobs start with a 4-byte magic and a version byte, followed by a
// zstd frame holding the little-endian body:
//
//	coord        3 x int32
//	voxel count  uint32, always world.Size^3
//	palette      uint16 length, then int16 material ids
//	voxels       per cell in world.Index order:
//	             uint16 palette index, uint8 mass, uint8 health, uint8 flags,
//	             3 x float32 color if flagTinted,
//	             float32 level and 3 x float32 light color if flagSource
//	orientation  uint32 count, then uint16 cell index and uint8 orientation
//	             for every cell not facing up
//
// Light of non-source cells is derived and not stored.
const (
	chunkMagic   = "SVXC"
	chunkVersion = 1
)

const (
	flagTransparent = 1 << iota
	flagSource
	flagTinted
)

// ErrBadFormat is returned for blobs that are not valid encoded chunks.
var ErrBadFormat = errors.New("persistence: bad chunk format")

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// EncodeChunk serialises a chunk's voxels. Meshes and derived light are not
// part of the blob.
func EncodeChunk(c *world.Chunk) ([]byte, error) {
	voxels := c.Voxels()
	if voxels == nil {
		return nil, fmt.Errorf("persistence: chunk %v released", c.Coord)
	}
	enc, _, err := codecs()
	if err != nil {
		return nil, err
	}

	var palette []int16
	slot := make(map[int16]uint16)
	for _, v := range voxels {
		if _, ok := slot[v.MaterialID]; !ok {
			slot[v.MaterialID] = uint16(len(palette))
			palette = append(palette, v.MaterialID)
		}
	}

	body := make([]byte, 0, 16+len(palette)*2+len(voxels)*5)
	body = binary.LittleEndian.AppendUint32(body, uint32(int32(c.Coord.X)))
	body = binary.LittleEndian.AppendUint32(body, uint32(int32(c.Coord.Y)))
	body = binary.LittleEndian.AppendUint32(body, uint32(int32(c.Coord.Z)))
	body = binary.LittleEndian.AppendUint32(body, uint32(len(voxels)))
	body = binary.LittleEndian.AppendUint16(body, uint16(len(palette)))
	for _, id := range palette {
		body = binary.LittleEndian.AppendUint16(body, uint16(id))
	}

	var oriented []int
	for i, v := range voxels {
		var flags uint8
		if v.Transparent {
			flags |= flagTransparent
		}
		if v.IsLightSource() {
			flags |= flagSource
		}
		if v.Color != world.White {
			flags |= flagTinted
		}
		body = binary.LittleEndian.AppendUint16(body, slot[v.MaterialID])
		body = append(body, v.Mass, v.Health, flags)
		if flags&flagTinted != 0 {
			body = appendVec3(body, v.Color)
		}
		if flags&flagSource != 0 {
			body = binary.LittleEndian.AppendUint32(body, math.Float32bits(v.LightLevel))
			body = appendVec3(body, v.LightColor)
		}
		if v.Orientation != world.OrientUp {
			oriented = append(oriented, i)
		}
	}

	body = binary.LittleEndian.AppendUint32(body, uint32(len(oriented)))
	for _, i := range oriented {
		body = binary.LittleEndian.AppendUint16(body, uint16(i))
		body = append(body, uint8(voxels[i].Orientation))
	}

	out := make([]byte, 0, len(chunkMagic)+1+len(body)/4)
	out = append(out, chunkMagic...)
	out = append(out, chunkVersion)
	return enc.EncodeAll(body, out), nil
}

// DecodeChunk rebuilds a chunk from EncodeChunk output. The chunk comes back
// dirty and unlinked.
func DecodeChunk(data []byte) (*world.Chunk, error) {
	if len(data) < len(chunkMagic)+1 || string(data[:len(chunkMagic)]) != chunkMagic {
		return nil, fmt.Errorf("%w: missing header", ErrBadFormat)
	}
	if v := data[len(chunkMagic)]; v != chunkVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, v)
	}
	_, dec, err := codecs()
	if err != nil {
		return nil, err
	}
	body, err := dec.DecodeAll(data[len(chunkMagic)+1:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}

	r := reader{buf: body}
	coord := world.Coord{
		X: int(int32(r.u32())),
		Y: int(int32(r.u32())),
		Z: int(int32(r.u32())),
	}
	count := int(r.u32())
	if r.err != nil {
		return nil, r.err
	}
	if count != world.Volume {
		return nil, fmt.Errorf("persistence: chunk %v: %w: %d voxels", coord, world.ErrMalformedGrid, count)
	}

	palette := make([]int16, r.u16())
	for i := range palette {
		palette[i] = int16(r.u16())
	}

	voxels := make([]world.Voxel, count)
	for i := range voxels {
		idx := int(r.u16())
		mass, health, flags := r.u8(), r.u8(), r.u8()
		if r.err != nil {
			return nil, r.err
		}
		if idx >= len(palette) {
			return nil, fmt.Errorf("%w: palette index %d of %d", ErrBadFormat, idx, len(palette))
		}
		v := world.Voxel{
			MaterialID:  palette[idx],
			Mass:        mass,
			Health:      health,
			Transparent: flags&flagTransparent != 0,
			Color:       world.White,
		}
		if flags&flagTinted != 0 {
			v.Color = r.vec3()
		}
		if flags&flagSource != 0 {
			v.LightLevel = math.Float32frombits(r.u32())
			v.LightColor = r.vec3()
		}
		voxels[i] = v
	}

	n := int(r.u32())
	for k := 0; k < n && r.err == nil; k++ {
		i := int(r.u16())
		o := world.Orientation(r.u8())
		if r.err != nil {
			break
		}
		if i >= len(voxels) || !o.Valid() {
			return nil, fmt.Errorf("%w: orientation entry %d", ErrBadFormat, k)
		}
		voxels[i].Orientation = o
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.buf) != r.off {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadFormat, len(r.buf)-r.off)
	}

	return world.NewChunkFromVoxels(coord, voxels)
}

func appendVec3(b []byte, v mgl32.Vec3) []byte {
	for _, f := range v {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
	}
	return b
}

// reader is a bounds-checked cursor over a decoded body. The first short
// read sets err; later reads return zero.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: truncated at byte %d", ErrBadFormat, r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) vec3() mgl32.Vec3 {
	var v mgl32.Vec3
	for i := range v {
		v[i] = math.Float32frombits(r.u32())
	}
	return v
}
