package protocol

import "github.com/RyanDowne/hifi/internal/sim/entity"

// Per-property value layouts. Encode and decode must stay mirror images; the
// canonical order in which multiple values follow the flags comes from
// PropertyFlags.Props, not from anything here.

func appendPropertyValue(dst []byte, p *entity.Properties, id entity.PropertyID) []byte {
	switch id {
	case entity.PropVisible:
		return appendBool(dst, p.Visible)
	case entity.PropPosition:
		return appendVec3(dst, p.Position)
	case entity.PropDimensions:
		return appendVec3(dst, p.Dimensions)
	case entity.PropRotation:
		return appendQuat(dst, p.Rotation)
	case entity.PropDensity:
		return appendF32(dst, p.Density)
	case entity.PropVelocity:
		return appendVec3(dst, p.Velocity)
	case entity.PropGravity:
		return appendVec3(dst, p.Gravity)
	case entity.PropDamping:
		return appendF32(dst, p.Damping)
	case entity.PropLifetime:
		return appendF32(dst, p.Lifetime)
	case entity.PropScript:
		return appendString(dst, p.Script)
	case entity.PropColor:
		return appendColor(dst, p.Color)
	case entity.PropModelURL:
		return appendString(dst, p.ModelURL)
	case entity.PropAnimationURL:
		return appendString(dst, p.AnimationURL)
	case entity.PropAnimationFPS:
		return appendF32(dst, p.AnimationFPS)
	case entity.PropAnimationFrameIndex:
		return appendF32(dst, p.AnimationFrameIndex)
	case entity.PropAnimationPlaying:
		return appendBool(dst, p.AnimationPlaying)
	case entity.PropRegistrationPoint:
		return appendVec3(dst, p.RegistrationPoint)
	case entity.PropAngularVelocity:
		return appendVec3(dst, p.AngularVelocity)
	case entity.PropAngularDamping:
		return appendF32(dst, p.AngularDamping)
	case entity.PropIgnoreForCollisions:
		return appendBool(dst, p.IgnoreForCollisions)
	case entity.PropCollisionsWillMove:
		return appendBool(dst, p.CollisionsWillMove)
	case entity.PropIsSpotlight:
		return appendBool(dst, p.IsSpotlight)
	case entity.PropDiffuseColor:
		return appendColor(dst, p.DiffuseColor)
	case entity.PropAmbientColor:
		return appendColor(dst, p.AmbientColor)
	case entity.PropSpecularColor:
		return appendColor(dst, p.SpecularColor)
	case entity.PropConstantAttenuation:
		return appendF32(dst, p.ConstantAttenuation)
	case entity.PropLinearAttenuation:
		return appendF32(dst, p.LinearAttenuation)
	case entity.PropQuadraticAttenuation:
		return appendF32(dst, p.QuadraticAttenuation)
	case entity.PropExponent:
		return appendF32(dst, p.Exponent)
	case entity.PropCutoff:
		return appendF32(dst, p.Cutoff)
	case entity.PropLocked:
		return appendBool(dst, p.Locked)
	case entity.PropTextures:
		return appendString(dst, p.Textures)
	case entity.PropAnimationSettings:
		return appendString(dst, p.AnimationSettings)
	case entity.PropUserData:
		return appendString(dst, p.UserData)
	case entity.PropText:
		return appendString(dst, p.Text)
	case entity.PropLineHeight:
		return appendF32(dst, p.LineHeight)
	case entity.PropTextColor:
		return appendColor(dst, p.TextColor)
	case entity.PropBackgroundColor:
		return appendColor(dst, p.BackgroundColor)
	case entity.PropShapeType:
		return append(dst, byte(p.ShapeType))
	case entity.PropMaxParticles:
		return appendU32(dst, p.MaxParticles)
	case entity.PropLifespan:
		return appendF32(dst, p.Lifespan)
	case entity.PropEmitRate:
		return appendF32(dst, p.EmitRate)
	case entity.PropEmitDirection:
		return appendVec3(dst, p.EmitDirection)
	case entity.PropEmitStrength:
		return appendF32(dst, p.EmitStrength)
	case entity.PropLocalGravity:
		return appendF32(dst, p.LocalGravity)
	case entity.PropParticleRadius:
		return appendF32(dst, p.ParticleRadius)
	}
	return dst
}

func readPropertyValue(r *reader, p *entity.Properties, id entity.PropertyID) error {
	var err error
	switch id {
	case entity.PropVisible:
		p.Visible, err = r.readBool()
	case entity.PropPosition:
		p.Position, err = r.readVec3()
	case entity.PropDimensions:
		p.Dimensions, err = r.readVec3()
	case entity.PropRotation:
		p.Rotation, err = r.readQuat()
	case entity.PropDensity:
		p.Density, err = r.readF32()
	case entity.PropVelocity:
		p.Velocity, err = r.readVec3()
	case entity.PropGravity:
		p.Gravity, err = r.readVec3()
	case entity.PropDamping:
		p.Damping, err = r.readF32()
	case entity.PropLifetime:
		p.Lifetime, err = r.readF32()
	case entity.PropScript:
		p.Script, err = r.readString()
	case entity.PropColor:
		p.Color, err = r.readColor()
	case entity.PropModelURL:
		p.ModelURL, err = r.readString()
	case entity.PropAnimationURL:
		p.AnimationURL, err = r.readString()
	case entity.PropAnimationFPS:
		p.AnimationFPS, err = r.readF32()
	case entity.PropAnimationFrameIndex:
		p.AnimationFrameIndex, err = r.readF32()
	case entity.PropAnimationPlaying:
		p.AnimationPlaying, err = r.readBool()
	case entity.PropRegistrationPoint:
		p.RegistrationPoint, err = r.readVec3()
	case entity.PropAngularVelocity:
		p.AngularVelocity, err = r.readVec3()
	case entity.PropAngularDamping:
		p.AngularDamping, err = r.readF32()
	case entity.PropIgnoreForCollisions:
		p.IgnoreForCollisions, err = r.readBool()
	case entity.PropCollisionsWillMove:
		p.CollisionsWillMove, err = r.readBool()
	case entity.PropIsSpotlight:
		p.IsSpotlight, err = r.readBool()
	case entity.PropDiffuseColor:
		p.DiffuseColor, err = r.readColor()
	case entity.PropAmbientColor:
		p.AmbientColor, err = r.readColor()
	case entity.PropSpecularColor:
		p.SpecularColor, err = r.readColor()
	case entity.PropConstantAttenuation:
		p.ConstantAttenuation, err = r.readF32()
	case entity.PropLinearAttenuation:
		p.LinearAttenuation, err = r.readF32()
	case entity.PropQuadraticAttenuation:
		p.QuadraticAttenuation, err = r.readF32()
	case entity.PropExponent:
		p.Exponent, err = r.readF32()
	case entity.PropCutoff:
		p.Cutoff, err = r.readF32()
	case entity.PropLocked:
		p.Locked, err = r.readBool()
	case entity.PropTextures:
		p.Textures, err = r.readString()
	case entity.PropAnimationSettings:
		p.AnimationSettings, err = r.readString()
	case entity.PropUserData:
		p.UserData, err = r.readString()
	case entity.PropText:
		p.Text, err = r.readString()
	case entity.PropLineHeight:
		p.LineHeight, err = r.readF32()
	case entity.PropTextColor:
		p.TextColor, err = r.readColor()
	case entity.PropBackgroundColor:
		p.BackgroundColor, err = r.readColor()
	case entity.PropShapeType:
		var b byte
		b, err = r.readU8()
		p.ShapeType = entity.ShapeType(b)
	case entity.PropMaxParticles:
		p.MaxParticles, err = r.readU32()
	case entity.PropLifespan:
		p.Lifespan, err = r.readF32()
	case entity.PropEmitRate:
		p.EmitRate, err = r.readF32()
	case entity.PropEmitDirection:
		p.EmitDirection, err = r.readVec3()
	case entity.PropEmitStrength:
		p.EmitStrength, err = r.readF32()
	case entity.PropLocalGravity:
		p.LocalGravity, err = r.readF32()
	case entity.PropParticleRadius:
		p.ParticleRadius, err = r.readF32()
	}
	return err
}
