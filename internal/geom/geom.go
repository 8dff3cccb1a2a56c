// Package geom holds the axis-aligned bounding volumes the spatial index
// consumes: boxes, cubes and min/max extents, plus the power-of-two grid
// arithmetic that picks the index cell enclosing a cube.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Extents is a min/max corner pair. The zero value is not a valid empty
// extents; start from NewExtents or a point.
type Extents struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func NewExtents(min, max mgl32.Vec3) Extents { return Extents{Min: min, Max: max} }

// AddPoint grows the extents to include p.
func (e *Extents) AddPoint(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < e.Min[i] {
			e.Min[i] = p[i]
		}
		if p[i] > e.Max[i] {
			e.Max[i] = p[i]
		}
	}
}

// Rotated returns the extents of this box after rotating it about the origin:
// all eight corners are rotated and the axis-aligned extrema taken, so the
// result encloses the rotated box at any orientation.
func (e Extents) Rotated(rot mgl32.Quat) Extents {
	corners := [8]mgl32.Vec3{
		{e.Min[0], e.Min[1], e.Min[2]},
		{e.Min[0], e.Min[1], e.Max[2]},
		{e.Min[0], e.Max[1], e.Min[2]},
		{e.Min[0], e.Max[1], e.Max[2]},
		{e.Max[0], e.Min[1], e.Min[2]},
		{e.Max[0], e.Min[1], e.Max[2]},
		{e.Max[0], e.Max[1], e.Min[2]},
		{e.Max[0], e.Max[1], e.Max[2]},
	}
	first := rot.Rotate(corners[0])
	out := Extents{Min: first, Max: first}
	for _, c := range corners[1:] {
		out.AddPoint(rot.Rotate(c))
	}
	return out
}

// ShiftedBy translates both corners.
func (e Extents) ShiftedBy(delta mgl32.Vec3) Extents {
	return Extents{Min: e.Min.Add(delta), Max: e.Max.Add(delta)}
}

// AABox is an axis-aligned box described by its minimum corner and its
// per-axis dimensions.
type AABox struct {
	Corner     mgl32.Vec3
	Dimensions mgl32.Vec3
}

func BoxFromExtents(e Extents) AABox {
	return AABox{Corner: e.Min, Dimensions: e.Max.Sub(e.Min)}
}

func (b AABox) Center() mgl32.Vec3 {
	return b.Corner.Add(b.Dimensions.Mul(0.5))
}

func (b AABox) MaxCorner() mgl32.Vec3 { return b.Corner.Add(b.Dimensions) }

// LargestDimension returns the longest side length.
func (b AABox) LargestDimension() float32 {
	d := b.Dimensions
	m := d[0]
	if d[1] > m {
		m = d[1]
	}
	if d[2] > m {
		m = d[2]
	}
	return m
}

func (b AABox) Contains(p mgl32.Vec3) bool {
	max := b.MaxCorner()
	for i := 0; i < 3; i++ {
		if p[i] < b.Corner[i] || p[i] > max[i] {
			return false
		}
	}
	return true
}

// Scaled returns the box with both corner and dimensions multiplied by s;
// used to move a box between meters and domain units.
func (b AABox) Scaled(s float32) AABox {
	return AABox{Corner: b.Corner.Mul(s), Dimensions: b.Dimensions.Mul(s)}
}

// AACube is an axis-aligned cube: minimum corner plus edge length.
type AACube struct {
	Corner mgl32.Vec3
	Scale  float32
}

func (c AACube) Center() mgl32.Vec3 {
	half := c.Scale * 0.5
	return c.Corner.Add(mgl32.Vec3{half, half, half})
}

func (c AACube) MaxCorner() mgl32.Vec3 {
	return c.Corner.Add(mgl32.Vec3{c.Scale, c.Scale, c.Scale})
}

func (c AACube) Contains(p mgl32.Vec3) bool {
	max := c.MaxCorner()
	for i := 0; i < 3; i++ {
		if p[i] < c.Corner[i] || p[i] > max[i] {
			return false
		}
	}
	return true
}

func (c AACube) ContainsCube(other AACube) bool {
	return c.Contains(other.Corner) && c.Contains(other.MaxCorner())
}

// CubeAbout returns the cube of the given edge length centered on p.
func CubeAbout(p mgl32.Vec3, scale float32) AACube {
	half := scale * 0.5
	return AACube{Corner: p.Sub(mgl32.Vec3{half, half, half}), Scale: scale}
}

// EnclosingCube returns the tightest cube around a box: edge = the box's
// largest dimension, sharing the box's center.
func EnclosingCube(b AABox) AACube {
	return CubeAbout(b.Center(), b.LargestDimension())
}

// EnclosingGridCell picks the smallest power-of-two-aligned grid cell of the
// unit domain cube that fully contains cube (corners in domain units). Cubes
// that poke outside [0,1]³ land in the root cell; the index clamps there.
func EnclosingGridCell(cube AACube) AACube {
	root := AACube{Scale: 1}
	if !root.ContainsCube(cube) {
		return root
	}
	// Deepest level whose cells are at least as large as the cube.
	level := 0
	if cube.Scale > 0 {
		level = int(math.Floor(-math.Log2(float64(cube.Scale))))
	} else {
		level = maxGridLevel
	}
	if level > maxGridLevel {
		level = maxGridLevel
	}
	for ; level >= 0; level-- {
		size := float32(math.Ldexp(1, -level))
		cell := AACube{
			Corner: mgl32.Vec3{
				float32(math.Floor(float64(cube.Corner[0]/size))) * size,
				float32(math.Floor(float64(cube.Corner[1]/size))) * size,
				float32(math.Floor(float64(cube.Corner[2]/size))) * size,
			},
			Scale: size,
		}
		if cell.ContainsCube(cube) {
			return cell
		}
	}
	return root
}

// Cells smaller than 2^-20 of the domain are below float32 resolution at
// TreeScale and never useful.
const maxGridLevel = 20
