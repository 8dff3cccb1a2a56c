package entity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Properties is a detached property set: every encodable field flattened into
// one struct, plus a mask of which fields this set actually carries. Decoded
// edits arrive as Properties, encode snapshots leave as Properties, and new
// records can be seeded from one. Spatial fields are in domain units, the
// same frame the wire uses.
type Properties struct {
	EntityType Type

	// Created seeds the record's creation stamp when non-zero; LastEdited
	// is the authored stamp of this edit in the author's clock frame.
	Created    uint64
	LastEdited uint64

	changed PropertyFlags

	Visible           bool
	Position          mgl32.Vec3
	Dimensions        mgl32.Vec3
	Rotation          mgl32.Quat
	Density           float32
	Velocity          mgl32.Vec3
	Gravity           mgl32.Vec3
	Damping           float32
	Lifetime          float32
	Script            string
	RegistrationPoint mgl32.Vec3
	AngularVelocity   mgl32.Vec3
	AngularDamping    float32

	IgnoreForCollisions bool
	CollisionsWillMove  bool
	Locked              bool
	UserData            string

	// model
	Color               Color
	ModelURL            string
	AnimationURL        string
	AnimationFPS        float32
	AnimationFrameIndex float32
	AnimationPlaying    bool
	AnimationSettings   string
	Textures            string
	ShapeType           ShapeType

	// light
	IsSpotlight          bool
	DiffuseColor         Color
	AmbientColor         Color
	SpecularColor        Color
	ConstantAttenuation  float32
	LinearAttenuation    float32
	QuadraticAttenuation float32
	Exponent             float32
	Cutoff               float32

	// text
	Text            string
	LineHeight      float32
	TextColor       Color
	BackgroundColor Color

	// particle effect
	MaxParticles   uint32
	Lifespan       float32
	EmitRate       float32
	EmitDirection  mgl32.Vec3
	EmitStrength   float32
	LocalGravity   float32
	ParticleRadius float32
}

// NewProperties returns a property set populated with the defaults for t and
// an empty changed mask.
func NewProperties(t Type) *Properties {
	p := &Properties{
		EntityType: t,

		Visible:           DefaultVisible,
		Position:          DefaultPosition,
		Dimensions:        DefaultDimensions,
		Rotation:          mgl32.QuatIdent(),
		Density:           DefaultDensity,
		Velocity:          DefaultVelocity,
		Gravity:           DefaultGravity,
		Damping:           DefaultDamping,
		Lifetime:          DefaultLifetime,
		RegistrationPoint: DefaultRegistrationPoint,
		AngularVelocity:   DefaultAngularVelocity,
		AngularDamping:    DefaultAngularDamping,

		Color:        ColorWhite,
		AnimationFPS: DefaultAnimationFPS,

		DiffuseColor:        ColorWhite,
		ConstantAttenuation: 1.0,
		Cutoff:              DefaultLightCutoff,

		LineHeight:      DefaultLineHeight,
		TextColor:       ColorWhite,
		BackgroundColor: ColorBlack,

		MaxParticles:   DefaultMaxParticles,
		Lifespan:       DefaultParticleLifespan,
		EmitRate:       DefaultEmitRate,
		EmitDirection:  DefaultEmitDirection,
		EmitStrength:   DefaultEmitStrength,
		LocalGravity:   DefaultLocalGravity,
		ParticleRadius: DefaultParticleRadius,
	}
	return p
}

// Changed reports which fields this set carries.
func (p *Properties) Changed() PropertyFlags { return p.changed }

// Mark flags fields as carried. Callers mark after assigning the field.
func (p *Properties) Mark(props ...PropertyID) {
	for _, id := range props {
		p.changed = p.changed.With(id)
	}
}

// MarkAll flags every property the entity type supports.
func (p *Properties) MarkAll() {
	p.changed = PropertiesForType(p.EntityType)
}

func (p *Properties) ClearChanged() { p.changed = 0 }

// NewRecordFromProperties builds a record seeded from a full property set.
// Creation stamps come from p.Created when present, else from nowUsec.
func NewRecordFromProperties(id ItemID, p *Properties, nowUsec uint64) (*Record, error) {
	r, err := NewRecord(id, p.EntityType, nowUsec)
	if err != nil {
		return nil, err
	}
	if p.Created != 0 {
		r.created = p.Created
	}
	r.ApplyProperties(p)
	// lastEdited never precedes created
	if p.LastEdited >= r.created {
		r.SetLastEdited(p.LastEdited)
	}
	return r, nil
}

// ApplyProperties writes every carried field through the record's mutators,
// so dirty flags fire exactly for real value changes. It reports whether any
// field was carried; timestamp bookkeeping is the caller's business.
func (r *Record) ApplyProperties(p *Properties) bool {
	if p.changed.IsEmpty() {
		return false
	}
	supported := p.changed.Intersect(PropertiesForType(r.typ))
	r.applyCommon(p, supported)
	r.applyVariant(p, supported)
	return !supported.IsEmpty()
}

func (r *Record) applyCommon(p *Properties, m PropertyFlags) {
	if m.Has(PropVisible) {
		r.SetVisible(p.Visible)
	}
	if m.Has(PropPosition) {
		r.UpdatePosition(p.Position)
	}
	if m.Has(PropDimensions) {
		r.UpdateDimensions(p.Dimensions)
	}
	if m.Has(PropRotation) {
		r.UpdateRotation(p.Rotation)
	}
	if m.Has(PropDensity) {
		r.UpdateDensity(p.Density)
	}
	if m.Has(PropVelocity) {
		r.UpdateVelocity(p.Velocity)
	}
	if m.Has(PropGravity) {
		r.UpdateGravity(p.Gravity)
	}
	if m.Has(PropDamping) {
		r.UpdateDamping(p.Damping)
	}
	if m.Has(PropLifetime) {
		r.UpdateLifetime(p.Lifetime)
	}
	if m.Has(PropScript) {
		r.UpdateScript(p.Script)
	}
	if m.Has(PropRegistrationPoint) {
		r.UpdateRegistrationPoint(p.RegistrationPoint)
	}
	if m.Has(PropAngularVelocity) {
		r.UpdateAngularVelocity(p.AngularVelocity)
	}
	if m.Has(PropAngularDamping) {
		r.UpdateAngularDamping(p.AngularDamping)
	}
	if m.Has(PropIgnoreForCollisions) {
		r.UpdateIgnoreForCollisions(p.IgnoreForCollisions)
	}
	if m.Has(PropCollisionsWillMove) {
		r.UpdateCollisionsWillMove(p.CollisionsWillMove)
	}
	if m.Has(PropLocked) {
		r.SetLocked(p.Locked)
	}
	if m.Has(PropUserData) {
		r.SetUserData(p.UserData)
	}
}

func (r *Record) applyVariant(p *Properties, m PropertyFlags) {
	switch v := r.variant.(type) {
	case *BoxVariant:
		if m.Has(PropColor) {
			v.Color = p.Color
		}
	case *SphereVariant:
		if m.Has(PropColor) {
			v.Color = p.Color
		}
	case *ModelVariant:
		if m.Has(PropColor) {
			v.Color = p.Color
		}
		if m.Has(PropModelURL) {
			v.ModelURL = p.ModelURL
		}
		if m.Has(PropAnimationURL) {
			v.AnimationURL = p.AnimationURL
		}
		if m.Has(PropAnimationFPS) {
			v.AnimationFPS = p.AnimationFPS
		}
		if m.Has(PropAnimationFrameIndex) {
			v.AnimationFrameIndex = p.AnimationFrameIndex
		}
		if m.Has(PropAnimationPlaying) {
			v.AnimationPlaying = p.AnimationPlaying
		}
		if m.Has(PropAnimationSettings) {
			v.AnimationSettings = p.AnimationSettings
		}
		if m.Has(PropTextures) {
			v.Textures = p.Textures
		}
		if m.Has(PropShapeType) {
			r.UpdateShapeType(p.ShapeType)
		}
	case *LightVariant:
		if m.Has(PropIsSpotlight) {
			v.IsSpotlight = p.IsSpotlight
		}
		if m.Has(PropDiffuseColor) {
			v.DiffuseColor = p.DiffuseColor
		}
		if m.Has(PropAmbientColor) {
			v.AmbientColor = p.AmbientColor
		}
		if m.Has(PropSpecularColor) {
			v.SpecularColor = p.SpecularColor
		}
		if m.Has(PropConstantAttenuation) {
			v.ConstantAttenuation = p.ConstantAttenuation
		}
		if m.Has(PropLinearAttenuation) {
			v.LinearAttenuation = p.LinearAttenuation
		}
		if m.Has(PropQuadraticAttenuation) {
			v.QuadraticAttenuation = p.QuadraticAttenuation
		}
		if m.Has(PropExponent) {
			v.Exponent = p.Exponent
		}
		if m.Has(PropCutoff) {
			v.Cutoff = p.Cutoff
		}
	case *TextVariant:
		if m.Has(PropText) {
			v.Text = p.Text
		}
		if m.Has(PropLineHeight) {
			v.LineHeight = p.LineHeight
		}
		if m.Has(PropTextColor) {
			v.TextColor = p.TextColor
		}
		if m.Has(PropBackgroundColor) {
			v.BackgroundColor = p.BackgroundColor
		}
	case *ParticleEffectVariant:
		if m.Has(PropColor) {
			v.Color = p.Color
		}
		if m.Has(PropMaxParticles) {
			v.MaxParticles = p.MaxParticles
		}
		if m.Has(PropLifespan) {
			v.Lifespan = p.Lifespan
		}
		if m.Has(PropEmitRate) {
			v.EmitRate = p.EmitRate
		}
		if m.Has(PropEmitDirection) {
			v.EmitDirection = p.EmitDirection
		}
		if m.Has(PropEmitStrength) {
			v.EmitStrength = p.EmitStrength
		}
		if m.Has(PropLocalGravity) {
			v.LocalGravity = p.LocalGravity
		}
		if m.Has(PropParticleRadius) {
			v.ParticleRadius = p.ParticleRadius
		}
		if m.Has(PropShapeType) {
			r.UpdateShapeType(p.ShapeType)
		}
	}
}

// Snapshot copies the requested properties out of the record into a detached
// set. Requesting a property the type does not support leaves it unmarked.
func (r *Record) Snapshot(requested PropertyFlags) *Properties {
	p := NewProperties(r.typ)
	p.Created = r.created
	p.LastEdited = r.lastEdited

	m := requested.Intersect(PropertiesForType(r.typ))
	p.changed = m

	p.Visible = r.visible
	p.Position = r.position
	p.Dimensions = r.dimensions
	p.Rotation = r.rotation
	p.Density = r.density
	p.Velocity = r.velocity
	p.Gravity = r.gravity
	p.Damping = r.damping
	p.Lifetime = r.lifetime
	p.Script = r.script
	p.RegistrationPoint = r.registrationPoint
	p.AngularVelocity = r.angularVelocity
	p.AngularDamping = r.angularDamping
	p.IgnoreForCollisions = r.ignoreForCollisions
	p.CollisionsWillMove = r.collisionsWillMove
	p.Locked = r.locked
	p.UserData = r.userData

	switch v := r.variant.(type) {
	case *BoxVariant:
		p.Color = v.Color
	case *SphereVariant:
		p.Color = v.Color
	case *ModelVariant:
		p.Color = v.Color
		p.ModelURL = v.ModelURL
		p.AnimationURL = v.AnimationURL
		p.AnimationFPS = v.AnimationFPS
		p.AnimationFrameIndex = v.AnimationFrameIndex
		p.AnimationPlaying = v.AnimationPlaying
		p.AnimationSettings = v.AnimationSettings
		p.Textures = v.Textures
		p.ShapeType = v.ShapeType
	case *LightVariant:
		p.IsSpotlight = v.IsSpotlight
		p.DiffuseColor = v.DiffuseColor
		p.AmbientColor = v.AmbientColor
		p.SpecularColor = v.SpecularColor
		p.ConstantAttenuation = v.ConstantAttenuation
		p.LinearAttenuation = v.LinearAttenuation
		p.QuadraticAttenuation = v.QuadraticAttenuation
		p.Exponent = v.Exponent
		p.Cutoff = v.Cutoff
	case *TextVariant:
		p.Text = v.Text
		p.LineHeight = v.LineHeight
		p.TextColor = v.TextColor
		p.BackgroundColor = v.BackgroundColor
	case *ParticleEffectVariant:
		p.Color = v.Color
		p.MaxParticles = v.MaxParticles
		p.Lifespan = v.Lifespan
		p.EmitRate = v.EmitRate
		p.EmitDirection = v.EmitDirection
		p.EmitStrength = v.EmitStrength
		p.LocalGravity = v.LocalGravity
		p.ParticleRadius = v.ParticleRadius
	}
	return p
}

func (p *Properties) String() string {
	return fmt.Sprintf("Properties[%s %s]", p.EntityType, p.changed)
}
