package entity

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/RyanDowne/hifi/internal/units"
)

// Dirty flag bits. The Update* mutators set them only when a write actually
// changes the stored value; the physics engine reads and clears the bits it
// has consumed with ClearDirtyFlags. Bits persist across simulation ticks
// until cleared. This bitmask is the only notification channel between the
// record and the physics engine.
const (
	DirtyPosition       uint32 = 0x0001
	DirtyVelocity       uint32 = 0x0002
	DirtyMass           uint32 = 0x0004
	DirtyCollisionGroup uint32 = 0x0008
	DirtyMotionType     uint32 = 0x0010
	DirtyShape          uint32 = 0x0020
	DirtyLifetime       uint32 = 0x0040
	DirtyUpdateable     uint32 = 0x0080
)

func (r *Record) DirtyFlags() uint32 { return r.dirtyFlags }

// ClearDirtyFlags clears exactly the bits in mask, leaving all others set.
func (r *Record) ClearDirtyFlags(mask uint32) { r.dirtyFlags &^= mask }

func (r *Record) markDirty(bits uint32) { r.dirtyFlags |= bits }

// UpdatePosition moves the registration point, in clamped domain units.
func (r *Record) UpdatePosition(p mgl32.Vec3) {
	p = units.ClampDomainUnits(p)
	if r.position != p {
		r.position = p
		r.markDirty(DirtyPosition)
	}
}

func (r *Record) UpdatePositionInMeters(p mgl32.Vec3) {
	r.UpdatePosition(units.Vec3MetersToDomainUnits(p))
}

// UpdateDimensions resizes the box. Dimensions changes always imply a shape
// change, and the derived mass moved with the volume.
func (r *Record) UpdateDimensions(d mgl32.Vec3) {
	d = units.AbsVec3(d)
	if r.dimensions != d {
		r.dimensions = d
		r.markDirty(DirtyShape | DirtyMass)
	}
}

func (r *Record) UpdateDimensionsInMeters(d mgl32.Vec3) {
	r.UpdateDimensions(units.Vec3MetersToDomainUnits(d))
}

func (r *Record) UpdateRotation(q mgl32.Quat) {
	if r.rotation != q {
		r.rotation = q.Normalize()
		r.markDirty(DirtyPosition)
	}
}

func (r *Record) UpdateRegistrationPoint(p mgl32.Vec3) {
	p = units.ClampRatio(p)
	if r.registrationPoint != p {
		r.registrationPoint = p
		r.markDirty(DirtyShape)
	}
}

func (r *Record) UpdateDensity(d float32) {
	d = clampDensity(d)
	if r.density != d {
		r.density = d
		r.markDirty(DirtyMass)
	}
}

// UpdateMass back-derives density; the dirty bit fires only when the clamped
// density actually moves.
func (r *Record) UpdateMass(mass float32) {
	old := r.density
	r.SetMass(mass)
	if r.density != old {
		r.markDirty(DirtyMass)
	}
}

// UpdateVelocity sets velocity in domain units per second. Speeds below the
// minimum snap to exactly zero so noise never keeps an entity "moving".
func (r *Record) UpdateVelocity(v mgl32.Vec3) {
	if v.Len() < MinVelocity/units.TreeScale {
		v = mgl32.Vec3{}
	}
	if r.velocity != v {
		r.velocity = v
		r.markDirty(DirtyVelocity)
	}
}

func (r *Record) UpdateVelocityInMeters(v mgl32.Vec3) {
	r.UpdateVelocity(units.Vec3MetersToDomainUnits(v))
}

func (r *Record) UpdateGravity(g mgl32.Vec3) {
	if r.gravity != g {
		r.gravity = g
		r.markDirty(DirtyVelocity)
	}
}

func (r *Record) UpdateGravityInMeters(g mgl32.Vec3) {
	r.UpdateGravity(units.Vec3MetersToDomainUnits(g))
}

func (r *Record) UpdateDamping(d float32) {
	d = mgl32.Clamp(d, 0, 1)
	if r.damping != d {
		r.damping = d
		r.markDirty(DirtyVelocity)
	}
}

func (r *Record) UpdateAngularVelocity(v mgl32.Vec3) {
	if v.Len() < MinAngularVelocity {
		v = mgl32.Vec3{}
	}
	if r.angularVelocity != v {
		r.angularVelocity = v
		r.markDirty(DirtyVelocity)
	}
}

func (r *Record) UpdateAngularDamping(d float32) {
	d = mgl32.Clamp(d, 0, 1)
	if r.angularDamping != d {
		r.angularDamping = d
		r.markDirty(DirtyVelocity)
	}
}

func (r *Record) UpdateIgnoreForCollisions(v bool) {
	if r.ignoreForCollisions != v {
		r.ignoreForCollisions = v
		r.markDirty(DirtyCollisionGroup)
	}
}

func (r *Record) UpdateCollisionsWillMove(v bool) {
	if r.collisionsWillMove != v {
		r.collisionsWillMove = v
		r.markDirty(DirtyMotionType)
	}
}

func (r *Record) UpdateLifetime(t float32) {
	if r.lifetime != t {
		r.lifetime = t
		r.markDirty(DirtyLifetime | DirtyUpdateable)
	}
}

// UpdateScript flags updateable-ness: attaching or removing a script changes
// whether the entity needs per-tick attention.
func (r *Record) UpdateScript(s string) {
	if r.script != s {
		r.script = s
		r.markDirty(DirtyUpdateable)
	}
}
