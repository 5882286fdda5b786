package world

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MaxLightLevel is the brightest light a voxel can hold. Voxels at this level
// are light sources.
const MaxLightLevel = 15.0

// MaterialAir is the material id of empty space.
const MaterialAir int16 = 0

// White is the neutral tint.
var White = mgl32.Vec3{1, 1, 1}

// Orientation is the direction a voxel's top face points to.
type Orientation uint8

const (
	OrientUp Orientation = iota
	OrientDown
	OrientLeft
	OrientRight
	OrientBack
	OrientForward
)

var orientationNames = [...]string{"up", "down", "left", "right", "back", "forward"}

func (o Orientation) String() string {
	if int(o) < len(orientationNames) {
		return orientationNames[o]
	}
	return "invalid"
}

// Valid reports whether o is one of the six orientations.
func (o Orientation) Valid() bool {
	return o <= OrientForward
}

// Direction returns the face direction the voxel's top points to.
// Invalid orientations fall back to Top.
func (o Orientation) Direction() Direction {
	switch o {
	case OrientDown:
		return Bottom
	case OrientLeft:
		return Left
	case OrientRight:
		return Right
	case OrientBack:
		return Back
	case OrientForward:
		return Front
	default:
		return Top
	}
}

// Voxel is a single cell of a chunk. It is stored by value.
type Voxel struct {
	MaterialID  int16
	Mass        uint8
	Health      uint8
	Transparent bool
	Orientation Orientation
	LightLevel  float32
	LightColor  mgl32.Vec3
	Color       mgl32.Vec3
}

// NewVoxel returns a solid, opaque, untinted voxel of the given material.
func NewVoxel(material int16, mass uint8) Voxel {
	return Voxel{
		MaterialID: material,
		Mass:       mass,
		Health:     255,
		Color:      White,
	}
}

// NewLightSource returns a voxel that emits light of the given color.
func NewLightSource(material int16, mass uint8, color mgl32.Vec3) Voxel {
	v := NewVoxel(material, mass)
	v.LightLevel = MaxLightLevel
	v.LightColor = color
	return v
}

// Air returns an empty cell.
func Air() Voxel {
	return Voxel{Transparent: true, Color: White}
}

// IsAir reports whether the voxel is empty. Material 0 is air no matter what
// the other fields say.
func (v Voxel) IsAir() bool {
	return v.MaterialID == MaterialAir
}

// IsCorrupt reports a voxel that cannot come from a valid generator.
func (v Voxel) IsCorrupt() bool {
	return v.MaterialID < 0
}

// IsTransparent reports whether light and sight pass through the voxel.
func (v Voxel) IsTransparent() bool {
	return v.IsAir() || v.Transparent
}

// IsLightSource reports whether the voxel emits light.
func (v Voxel) IsLightSource() bool {
	return !v.IsAir() && v.LightLevel >= MaxLightLevel
}

// Occludes reports whether the voxel darkens neighbouring face corners.
func (v Voxel) Occludes() bool {
	return !v.IsAir() && !v.IsCorrupt() && !v.Transparent && !v.IsLightSource()
}
