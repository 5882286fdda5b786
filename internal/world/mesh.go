package world

import "github.com/go-gl/mathgl/mgl32"

// VertexStride is number of float32 per vertex
// (pos.xyz + uv + color.rgb + normal.xyz + ao + emission).
const VertexStride = 13

// Vertex is the fixed vertex layout consumed by the render stage.
type Vertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	AO       float32
	Emission float32
}

// Mesh is an indexed triangle list, four vertices and six indices per face.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// FaceCount returns the number of quads in the mesh.
func (m *Mesh) FaceCount() int {
	if m == nil {
		return 0
	}
	return len(m.Indices) / 6
}

// Floats returns the vertices interleaved in VertexStride order.
func (m *Mesh) Floats() []float32 {
	if m == nil {
		return nil
	}
	out := make([]float32, 0, len(m.Vertices)*VertexStride)
	for _, v := range m.Vertices {
		out = append(out,
			v.Position[0], v.Position[1], v.Position[2],
			v.UV[0], v.UV[1],
			v.Color[0], v.Color[1], v.Color[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
			v.AO,
			v.Emission,
		)
	}
	return out
}

// AABB is an axis-aligned box in entity space.
type AABB struct {
	Min, Max mgl32.Vec3
}

// Union returns the smallest box holding both a and b.
func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: mgl32.Vec3{min(a.Min[0], b.Min[0]), min(a.Min[1], b.Min[1]), min(a.Min[2], b.Min[2])},
		Max: mgl32.Vec3{max(a.Max[0], b.Max[0]), max(a.Max[1], b.Max[1]), max(a.Max[2], b.Max[2])},
	}
}

// Size returns the extent of the box along each axis.
func (a AABB) Size() mgl32.Vec3 {
	return a.Max.Sub(a.Min)
}

// BuildStats are the aggregates a mesh build produces for its chunk.
type BuildStats struct {
	Mass            int
	MassPositionSum mgl32.Vec3
	Bounds          AABB
	Faces           int
	Anomalies       int
}

// Empty reports whether the chunk holds no mass and should be dropped.
func (s BuildStats) Empty() bool {
	return s.Mass == 0
}
