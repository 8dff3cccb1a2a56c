package entity

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/RyanDowne/hifi/internal/geom"
	"github.com/RyanDowne/hifi/internal/units"
)

// Bounding volumes. Position is the registration point, so the unrotated box
// spans -dimensions*registrationPoint to +dimensions*(1-registrationPoint)
// around it. All of these go stale whenever position, dimensions, rotation or
// registrationPoint change; the shape and position dirty bits tell the index
// when to requery.

// AABoxInDomainUnits returns the tightest axis-aligned box that encloses the
// entity at its current rotation, from the rotated corner extrema.
func (r *Record) AABoxInDomainUnits() geom.AABox {
	return geom.BoxFromExtents(r.rotatedExtents())
}

// AABoxInMeters is AABoxInDomainUnits scaled to the world frame.
func (r *Record) AABoxInMeters() geom.AABox {
	return r.AABoxInDomainUnits().Scaled(units.TreeScale)
}

func (r *Record) rotatedExtents() geom.Extents {
	toward := scaleByComponents(r.dimensions, r.registrationPoint)
	remainder := scaleByComponents(r.dimensions, oneMinus(r.registrationPoint))
	unrotated := geom.NewExtents(mgl32.Vec3{}.Sub(toward), remainder)
	return unrotated.Rotated(r.rotation).ShiftedBy(r.position)
}

// MaximumAACube bounds the entity at every possible rotation: the sphere
// swept by the furthest extent from the registration point, boxed. The
// spatial index keys on this cube so rotating an entity never forces a
// reinsertion.
func (r *Record) MaximumAACube() geom.AACube {
	toward := scaleByComponents(r.dimensions, r.registrationPoint)
	remainder := scaleByComponents(r.dimensions, oneMinus(r.registrationPoint))
	furthest := mgl32.Vec3{
		max(toward[0], remainder[0]),
		max(toward[1], remainder[1]),
		max(toward[2], remainder[2]),
	}
	radius := furthest.Len()
	return geom.CubeAbout(r.position, radius*2)
}

// MinimumAACube is the smallest cube containing the current AABox: edge
// equal to the box's largest side, sharing its center.
func (r *Record) MinimumAACube() geom.AACube {
	return geom.EnclosingCube(r.AABoxInDomainUnits())
}

// EnclosingGridCell picks the power-of-two index cell that owns the entity,
// keyed on the rotation-independent maximum cube.
func (r *Record) EnclosingGridCell() geom.AACube {
	return geom.EnclosingGridCell(r.MaximumAACube())
}

// RadiusInMeters is the circumscribing-sphere radius, half the box diagonal.
func (r *Record) RadiusInMeters() float32 {
	return 0.5 * r.DimensionsInMeters().Len()
}

// ContainsInMeters reports whether a world-frame point lies inside the
// entity's axis-aligned box.
func (r *Record) ContainsInMeters(p mgl32.Vec3) bool {
	return r.AABoxInMeters().Contains(p)
}

func scaleByComponents(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func oneMinus(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{1 - v[0], 1 - v[1], 1 - v[2]}
}
