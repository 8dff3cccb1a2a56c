package entity

import "github.com/go-gl/mathgl/mgl32"

// Color is an 8-bit RGB triple, the only color representation on the wire.
type Color struct {
	R, G, B uint8
}

var (
	ColorWhite = Color{255, 255, 255}
	ColorBlack = Color{0, 0, 0}
)

// Variant is the per-type payload attached to a Record. The type enum picks
// the concrete variant at construction and it never changes afterwards;
// encode, decode and shape computation dispatch over the enum rather than
// virtual overrides. The set is closed: all implementations live in this
// package.
type Variant interface {
	variantType() Type
}

type BoxVariant struct {
	Color Color
}

type SphereVariant struct {
	Color Color
}

type ModelVariant struct {
	Color               Color
	ModelURL            string
	AnimationURL        string
	AnimationFPS        float32
	AnimationFrameIndex float32
	AnimationPlaying    bool
	AnimationSettings   string
	Textures            string
	ShapeType           ShapeType
}

type LightVariant struct {
	IsSpotlight          bool
	DiffuseColor         Color
	AmbientColor         Color
	SpecularColor        Color
	ConstantAttenuation  float32
	LinearAttenuation    float32
	QuadraticAttenuation float32
	Exponent             float32
	Cutoff               float32 // spotlight half-angle, degrees
}

type TextVariant struct {
	Text            string
	LineHeight      float32
	TextColor       Color
	BackgroundColor Color
}

type ParticleEffectVariant struct {
	Color          Color
	MaxParticles   uint32
	Lifespan       float32
	EmitRate       float32
	EmitDirection  mgl32.Vec3
	EmitStrength   float32
	LocalGravity   float32
	ParticleRadius float32
	ShapeType      ShapeType
}

func (*BoxVariant) variantType() Type            { return TypeBox }
func (*SphereVariant) variantType() Type         { return TypeSphere }
func (*ModelVariant) variantType() Type          { return TypeModel }
func (*LightVariant) variantType() Type          { return TypeLight }
func (*TextVariant) variantType() Type           { return TypeText }
func (*ParticleEffectVariant) variantType() Type { return TypeParticleEffect }

func newVariant(t Type) Variant {
	switch t {
	case TypeBox:
		return &BoxVariant{Color: ColorWhite}
	case TypeSphere:
		return &SphereVariant{Color: ColorWhite}
	case TypeModel:
		return &ModelVariant{
			Color:        ColorWhite,
			AnimationFPS: DefaultAnimationFPS,
			ShapeType:    ShapeTypeNone,
		}
	case TypeLight:
		return &LightVariant{
			DiffuseColor:        ColorWhite,
			ConstantAttenuation: 1.0,
			Cutoff:              DefaultLightCutoff,
		}
	case TypeText:
		return &TextVariant{
			LineHeight:      DefaultLineHeight,
			TextColor:       ColorWhite,
			BackgroundColor: ColorBlack,
		}
	case TypeParticleEffect:
		return &ParticleEffectVariant{
			Color:          ColorWhite,
			MaxParticles:   DefaultMaxParticles,
			Lifespan:       DefaultParticleLifespan,
			EmitRate:       DefaultEmitRate,
			EmitDirection:  DefaultEmitDirection,
			EmitStrength:   DefaultEmitStrength,
			LocalGravity:   DefaultLocalGravity,
			ParticleRadius: DefaultParticleRadius,
		}
	default:
		return nil
	}
}

// ShapeType reports the collision shape the physics engine should build for
// this entity. Boxes and spheres are implied by their type; models and
// particle systems carry an explicit choice; lights and text do not collide.
func (r *Record) ShapeType() ShapeType {
	switch v := r.variant.(type) {
	case *BoxVariant:
		return ShapeTypeBox
	case *SphereVariant:
		return ShapeTypeSphere
	case *ModelVariant:
		return v.ShapeType
	case *ParticleEffectVariant:
		return v.ShapeType
	default:
		return ShapeTypeNone
	}
}

// UpdateShapeType changes the collision shape on variants that carry one;
// other types ignore the write.
func (r *Record) UpdateShapeType(s ShapeType) {
	switch v := r.variant.(type) {
	case *ModelVariant:
		if v.ShapeType != s {
			v.ShapeType = s
			r.markDirty(DirtyShape)
		}
	case *ParticleEffectVariant:
		if v.ShapeType != s {
			v.ShapeType = s
			r.markDirty(DirtyShape)
		}
	}
}

// ComputeShapeInfo fills info with collision geometry in meters; the physics
// engine consumes this when claiming the entity.
func (r *Record) ComputeShapeInfo(info *ShapeInfo) {
	d := r.DimensionsInMeters()
	*info = ShapeInfo{Type: r.ShapeType()}
	switch info.Type {
	case ShapeTypeBox:
		info.HalfExtents = d.Mul(0.5)
	case ShapeTypeSphere:
		// conservative: sphere over the largest axis
		info.Radius = 0.5 * max(d[0], max(d[1], d[2]))
	}
}
