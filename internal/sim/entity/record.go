package entity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/RyanDowne/hifi/internal/units"
)

// Record is the mutable server-side state of one entity. All spatial fields
// are stored in domain units (fractions of the tree scale); the *InMeters
// accessors convert at the boundary. Records are owned by a single domain
// goroutine and are not safe for concurrent mutation.
type Record struct {
	id  ItemID
	typ Type

	// timestamps, usecs since epoch
	created       uint64 // stamped locally at construction
	lastEdited    uint64 // authored stamp of the last applied edit, skew-adjusted
	lastUpdated   uint64 // local receipt time of the last applied edit
	lastSimulated uint64 // last kinematic integration

	// remote edit provenance: the adjusted stamp of the last edit that came
	// over the wire, plus the same stamp in the sender's own clock frame.
	lastEditedFromRemote             uint64
	lastEditedFromRemoteInRemoteTime uint64

	// changedOnServer only ever moves forward; encode contexts compare
	// against it to decide what a peer still needs.
	changedOnServer uint64

	position          mgl32.Vec3 // domain units
	dimensions        mgl32.Vec3 // domain units
	rotation          mgl32.Quat
	registrationPoint mgl32.Vec3 // [0,1] per axis

	density  float32    // kg/m^3
	velocity mgl32.Vec3 // domain units per second
	gravity  mgl32.Vec3 // domain units per second^2
	damping  float32

	angularVelocity mgl32.Vec3 // radians per second, about registration point
	angularDamping  float32

	lifetime float32 // seconds since created; ImmortalLifetime disables expiry
	script   string
	userData string

	visible             bool
	ignoreForCollisions bool
	collisionsWillMove  bool
	locked              bool
	glowLevel           float32
	localRenderAlpha    float32

	variant Variant

	dirtyFlags uint32

	// physics/index attachments, owned by their subsystems
	physicsHandle PhysicsHandle
	element       TreeElement
}

// NewRecord builds a record of the given type with server defaults. nowUsec
// stamps created and the bookkeeping timestamps; it is always the local
// clock, never a remote stamp.
func NewRecord(id ItemID, t Type, nowUsec uint64) (*Record, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("entity: cannot create record of type %s", t)
	}
	r := &Record{
		id:  id,
		typ: t,

		created:       nowUsec,
		lastEdited:    nowUsec,
		lastUpdated:   nowUsec,
		lastSimulated: nowUsec,

		position:          DefaultPosition,
		dimensions:        DefaultDimensions,
		rotation:          mgl32.QuatIdent(),
		registrationPoint: DefaultRegistrationPoint,

		density:  DefaultDensity,
		velocity: DefaultVelocity,
		gravity:  DefaultGravity,
		damping:  DefaultDamping,

		angularVelocity: DefaultAngularVelocity,
		angularDamping:  DefaultAngularDamping,

		lifetime:         DefaultLifetime,
		visible:          DefaultVisible,
		glowLevel:        DefaultGlowLevel,
		localRenderAlpha: DefaultLocalRenderAlpha,

		variant: newVariant(t),
	}
	return r, nil
}

func (r *Record) ID() ItemID       { return r.id }
func (r *Record) Type() Type       { return r.typ }
func (r *Record) Variant() Variant { return r.variant }

// SetID rebinds the identity, used when a pending creator-token record is
// assigned its server UUID.
func (r *Record) SetID(id ItemID) { r.id = id }

// Timestamps.

func (r *Record) Created() uint64        { return r.created }
func (r *Record) SetCreated(usec uint64) { r.created = usec }

func (r *Record) LastEdited() uint64 { return r.lastEdited }

// SetLastEdited records the authored stamp of an applied edit and marks the
// record updated now-ish; callers pass the skew-adjusted remote stamp.
func (r *Record) SetLastEdited(usec uint64) {
	r.lastEdited = usec
	if usec > r.lastUpdated {
		r.lastUpdated = usec
	}
}

func (r *Record) LastUpdated() uint64          { return r.lastUpdated }
func (r *Record) SetLastUpdated(usec uint64)   { r.lastUpdated = usec }
func (r *Record) LastSimulated() uint64        { return r.lastSimulated }
func (r *Record) SetLastSimulated(usec uint64) { r.lastSimulated = usec }

func (r *Record) LastEditedFromRemote() uint64 { return r.lastEditedFromRemote }

// LastEditedFromRemoteInRemoteTime is the raw stamp the sender wrote, before
// skew adjustment. Kept for diagnostics and skew re-estimation.
func (r *Record) LastEditedFromRemoteInRemoteTime() uint64 {
	return r.lastEditedFromRemoteInRemoteTime
}

// SetLastEditedFromRemote records both clock frames of a remote edit stamp.
func (r *Record) SetLastEditedFromRemote(adjustedUsec, remoteUsec uint64) {
	r.lastEditedFromRemote = adjustedUsec
	r.lastEditedFromRemoteInRemoteTime = remoteUsec
}

func (r *Record) ChangedOnServer() uint64 { return r.changedOnServer }

// MarkChangedOnServer advances the server-change stamp; it never moves
// backwards.
func (r *Record) MarkChangedOnServer(usec uint64) {
	if usec > r.changedOnServer {
		r.changedOnServer = usec
	}
}

// Spatial state, domain units.

func (r *Record) Position() mgl32.Vec3          { return r.position }
func (r *Record) Dimensions() mgl32.Vec3        { return r.dimensions }
func (r *Record) Rotation() mgl32.Quat          { return r.rotation }
func (r *Record) RegistrationPoint() mgl32.Vec3 { return r.registrationPoint }
func (r *Record) Velocity() mgl32.Vec3          { return r.velocity }
func (r *Record) Gravity() mgl32.Vec3           { return r.gravity }
func (r *Record) AngularVelocity() mgl32.Vec3   { return r.angularVelocity }

// Spatial state, meters.

func (r *Record) PositionInMeters() mgl32.Vec3   { return units.Vec3DomainUnitsToMeters(r.position) }
func (r *Record) DimensionsInMeters() mgl32.Vec3 { return units.Vec3DomainUnitsToMeters(r.dimensions) }
func (r *Record) VelocityInMeters() mgl32.Vec3   { return units.Vec3DomainUnitsToMeters(r.velocity) }
func (r *Record) GravityInMeters() mgl32.Vec3    { return units.Vec3DomainUnitsToMeters(r.gravity) }

func (r *Record) Density() float32        { return r.density }
func (r *Record) Damping() float32        { return r.damping }
func (r *Record) AngularDamping() float32 { return r.angularDamping }

// Volume is the entity's box volume in cubic meters.
func (r *Record) Volume() float32 {
	d := r.DimensionsInMeters()
	return d.X() * d.Y() * d.Z()
}

// Mass derives from density and volume; it is never stored.
func (r *Record) Mass() float32 { return r.density * r.Volume() }

func (r *Record) Lifetime() float32 { return r.lifetime }
func (r *Record) Script() string    { return r.script }
func (r *Record) UserData() string  { return r.userData }

func (r *Record) Visible() bool             { return r.visible }
func (r *Record) IgnoreForCollisions() bool { return r.ignoreForCollisions }
func (r *Record) CollisionsWillMove() bool  { return r.collisionsWillMove }
func (r *Record) Locked() bool              { return r.locked }
func (r *Record) GlowLevel() float32        { return r.glowLevel }
func (r *Record) LocalRenderAlpha() float32 { return r.localRenderAlpha }

// IsImmortal reports whether the record never expires on its own.
func (r *Record) IsImmortal() bool { return r.lifetime == ImmortalLifetime }
func (r *Record) IsMortal() bool   { return r.lifetime != ImmortalLifetime }

// AgeSeconds is the elapsed local time since creation.
func (r *Record) AgeSeconds(nowUsec uint64) float32 {
	return units.SecondsBetween(r.created, nowUsec)
}

// LifetimeExpired reports whether a mortal record has outlived its lifetime.
func (r *Record) LifetimeExpired(nowUsec uint64) bool {
	return r.IsMortal() && r.AgeSeconds(nowUsec) > r.lifetime
}

// ExpiryUsec is the absolute local time at which the record expires, or 0 for
// immortal records.
func (r *Record) ExpiryUsec() uint64 {
	if r.IsImmortal() {
		return 0
	}
	return r.created + uint64(float64(r.lifetime)*float64(units.UsecsPerSecond))
}

func (r *Record) hasVelocity() bool {
	return r.velocity.Len() > MinVelocity/units.TreeScale
}

func (r *Record) hasGravity() bool {
	return r.gravity.X() != 0 || r.gravity.Y() != 0 || r.gravity.Z() != 0
}

func (r *Record) hasAngularVelocity() bool {
	return r.angularVelocity.Len() > MinAngularVelocity
}

// IsMoving reports whether kinematic state would change the record's
// placement on the next step.
func (r *Record) IsMoving() bool {
	return r.hasVelocity() || r.hasGravity() || r.hasAngularVelocity()
}

// NeedsSimulation reports whether the owner loop must keep stepping this
// record: it is moving, or mortal and therefore awaiting expiry.
func (r *Record) NeedsSimulation() bool {
	return r.IsMoving() || r.IsMortal()
}

// Physics and spatial-index attachments.

func (r *Record) PhysicsHandle() PhysicsHandle     { return r.physicsHandle }
func (r *Record) SetPhysicsHandle(h PhysicsHandle) { r.physicsHandle = h }
func (r *Record) Element() TreeElement             { return r.element }
func (r *Record) SetElement(el TreeElement)        { r.element = el }

// Plain setters used during construction and decode bootstrap; they bypass
// dirty tracking. Edit paths go through the Update* mutators instead.

func (r *Record) SetPosition(p mgl32.Vec3)          { r.position = units.ClampDomainUnits(p) }
func (r *Record) SetDimensions(d mgl32.Vec3)        { r.dimensions = units.AbsVec3(d) }
func (r *Record) SetRotation(q mgl32.Quat)          { r.rotation = q.Normalize() }
func (r *Record) SetRegistrationPoint(p mgl32.Vec3) { r.registrationPoint = units.ClampRatio(p) }
func (r *Record) SetVelocity(v mgl32.Vec3)          { r.velocity = v }
func (r *Record) SetGravity(g mgl32.Vec3)           { r.gravity = g }
func (r *Record) SetAngularVelocity(v mgl32.Vec3)   { r.angularVelocity = v }
func (r *Record) SetDamping(d float32)              { r.damping = mgl32.Clamp(d, 0, 1) }
func (r *Record) SetAngularDamping(d float32)       { r.angularDamping = mgl32.Clamp(d, 0, 1) }
func (r *Record) SetLifetime(t float32)             { r.lifetime = t }
func (r *Record) SetScript(s string)                { r.script = s }
func (r *Record) SetUserData(s string)              { r.userData = s }
func (r *Record) SetVisible(v bool)                 { r.visible = v }
func (r *Record) SetIgnoreForCollisions(v bool)     { r.ignoreForCollisions = v }
func (r *Record) SetCollisionsWillMove(v bool)      { r.collisionsWillMove = v }
func (r *Record) SetLocked(v bool)                  { r.locked = v }
func (r *Record) SetGlowLevel(g float32)            { r.glowLevel = g }
func (r *Record) SetLocalRenderAlpha(a float32)     { r.localRenderAlpha = a }

// Meters-frame setters; positions clamp after conversion, rates only scale.

func (r *Record) SetPositionInMeters(p mgl32.Vec3) {
	r.SetPosition(units.Vec3MetersToDomainUnits(p))
}

func (r *Record) SetDimensionsInMeters(d mgl32.Vec3) {
	r.SetDimensions(units.Vec3MetersToDomainUnits(d))
}

func (r *Record) SetVelocityInMeters(v mgl32.Vec3) {
	r.SetVelocity(units.Vec3MetersToDomainUnits(v))
}

func (r *Record) SetGravityInMeters(g mgl32.Vec3) {
	r.SetGravity(units.Vec3MetersToDomainUnits(g))
}

func (r *Record) SetDensity(d float32) {
	r.density = clampDensity(d)
}

// SetMass back-derives density from the current volume so that mass stays a
// computed quantity. Degenerate volumes pin density to its bounds.
func (r *Record) SetMass(mass float32) {
	v := r.Volume()
	if v <= 0 {
		r.density = MaxDensity
		return
	}
	r.density = clampDensity(mass / v)
}

func clampDensity(d float32) float32 {
	if d < MinDensity {
		return MinDensity
	}
	if d > MaxDensity {
		return MaxDensity
	}
	return d
}

func (r *Record) String() string {
	return fmt.Sprintf("Record[%s %s pos=%v dim=%v]", r.typ, r.id, r.position, r.dimensions)
}
