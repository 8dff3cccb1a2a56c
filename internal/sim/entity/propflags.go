package entity

import (
	"math/bits"
	"strings"
)

// PropertyID names one encodable entity property. The numeric values define
// the canonical wire order and the bit assignment of PropertyFlags; they are
// frozen for the life of the protocol.
type PropertyID uint8

const (
	PropVisible PropertyID = iota
	PropPosition
	PropDimensions
	PropRotation
	PropDensity
	PropVelocity
	PropGravity
	PropDamping
	PropLifetime
	PropScript
	PropColor
	PropModelURL
	PropAnimationURL
	PropAnimationFPS
	PropAnimationFrameIndex
	PropAnimationPlaying
	PropRegistrationPoint
	PropAngularVelocity
	PropAngularDamping
	PropIgnoreForCollisions
	PropCollisionsWillMove
	PropIsSpotlight
	PropDiffuseColor
	PropAmbientColor
	PropSpecularColor
	PropConstantAttenuation
	PropLinearAttenuation
	PropQuadraticAttenuation
	PropExponent
	PropCutoff
	PropLocked
	PropTextures
	PropAnimationSettings
	PropUserData
	PropText
	PropLineHeight
	PropTextColor
	PropBackgroundColor
	PropShapeType
	PropMaxParticles
	PropLifespan
	PropEmitRate
	PropEmitDirection
	PropEmitStrength
	PropLocalGravity
	PropParticleRadius

	// PropCount is the first unassigned ID; new properties append here.
	PropCount
)

var propNames = [PropCount]string{
	"visible", "position", "dimensions", "rotation", "density",
	"velocity", "gravity", "damping", "lifetime", "script",
	"color", "modelURL", "animationURL", "animationFPS", "animationFrameIndex",
	"animationPlaying", "registrationPoint", "angularVelocity", "angularDamping",
	"ignoreForCollisions", "collisionsWillMove", "isSpotlight", "diffuseColor",
	"ambientColor", "specularColor", "constantAttenuation", "linearAttenuation",
	"quadraticAttenuation", "exponent", "cutoff", "locked", "textures",
	"animationSettings", "userData", "text", "lineHeight", "textColor",
	"backgroundColor", "shapeType", "maxParticles", "lifespan", "emitRate",
	"emitDirection", "emitStrength", "localGravity", "particleRadius",
}

func (p PropertyID) String() string {
	if p < PropCount {
		return propNames[p]
	}
	return "invalid"
}

// PropertyFlags is the presence/request bitset over PropertyID. Bit i set
// means property i is present (on the wire), requested (encode contexts) or
// changed (property sets). A uint64 leaves headroom for future IDs.
type PropertyFlags uint64

func Flag(p PropertyID) PropertyFlags { return 1 << uint(p) }

func (f PropertyFlags) Has(p PropertyID) bool              { return f&Flag(p) != 0 }
func (f PropertyFlags) With(p PropertyID) PropertyFlags    { return f | Flag(p) }
func (f PropertyFlags) Without(p PropertyID) PropertyFlags { return f &^ Flag(p) }

func (f PropertyFlags) Union(o PropertyFlags) PropertyFlags     { return f | o }
func (f PropertyFlags) Intersect(o PropertyFlags) PropertyFlags { return f & o }
func (f PropertyFlags) Minus(o PropertyFlags) PropertyFlags     { return f &^ o }

func (f PropertyFlags) IsEmpty() bool { return f == 0 }
func (f PropertyFlags) Count() int    { return bits.OnesCount64(uint64(f)) }

// Props lists the set bits in canonical (ascending) order.
func (f PropertyFlags) Props() []PropertyID {
	out := make([]PropertyID, 0, f.Count())
	for p := PropertyID(0); p < PropCount; p++ {
		if f.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f PropertyFlags) String() string {
	if f.IsEmpty() {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range f.Props() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte('}')
	return b.String()
}

// knownPropertyMask covers every assigned ID; wire flags outside it belong to
// a future protocol version.
const knownPropertyMask = PropertyFlags(1)<<uint(PropCount) - 1

func KnownPropertyMask() PropertyFlags { return knownPropertyMask }

// commonProperties are meaningful for every entity type.
const commonProperties = PropertyFlags(0) |
	1<<uint(PropVisible) | 1<<uint(PropPosition) | 1<<uint(PropDimensions) |
	1<<uint(PropRotation) | 1<<uint(PropDensity) | 1<<uint(PropVelocity) |
	1<<uint(PropGravity) | 1<<uint(PropDamping) | 1<<uint(PropLifetime) |
	1<<uint(PropScript) | 1<<uint(PropRegistrationPoint) |
	1<<uint(PropAngularVelocity) | 1<<uint(PropAngularDamping) |
	1<<uint(PropIgnoreForCollisions) | 1<<uint(PropCollisionsWillMove) |
	1<<uint(PropLocked) | 1<<uint(PropUserData)

const modelProperties = PropertyFlags(0) |
	1<<uint(PropColor) | 1<<uint(PropModelURL) | 1<<uint(PropAnimationURL) |
	1<<uint(PropAnimationFPS) | 1<<uint(PropAnimationFrameIndex) |
	1<<uint(PropAnimationPlaying) | 1<<uint(PropTextures) |
	1<<uint(PropAnimationSettings) | 1<<uint(PropShapeType)

const lightProperties = PropertyFlags(0) |
	1<<uint(PropIsSpotlight) | 1<<uint(PropDiffuseColor) |
	1<<uint(PropAmbientColor) | 1<<uint(PropSpecularColor) |
	1<<uint(PropConstantAttenuation) | 1<<uint(PropLinearAttenuation) |
	1<<uint(PropQuadraticAttenuation) | 1<<uint(PropExponent) |
	1<<uint(PropCutoff)

const textProperties = PropertyFlags(0) |
	1<<uint(PropText) | 1<<uint(PropLineHeight) | 1<<uint(PropTextColor) |
	1<<uint(PropBackgroundColor)

const particleProperties = PropertyFlags(0) |
	1<<uint(PropColor) | 1<<uint(PropMaxParticles) | 1<<uint(PropLifespan) |
	1<<uint(PropEmitRate) | 1<<uint(PropEmitDirection) |
	1<<uint(PropEmitStrength) | 1<<uint(PropLocalGravity) |
	1<<uint(PropParticleRadius) | 1<<uint(PropShapeType)

// propertiesByType is the data-driven dispatch table: which wire properties a
// given entity type carries. Variant encode/decode selects over this instead
// of virtual overrides.
var propertiesByType = map[Type]PropertyFlags{
	TypeModel:          commonProperties | modelProperties,
	TypeBox:            commonProperties | 1<<uint(PropColor),
	TypeSphere:         commonProperties | 1<<uint(PropColor),
	TypeLight:          commonProperties | lightProperties,
	TypeText:           commonProperties | textProperties,
	TypeParticleEffect: commonProperties | particleProperties,
}

// PropertiesForType returns the full property set an entity type supports.
func PropertiesForType(t Type) PropertyFlags {
	return propertiesByType[t]
}
