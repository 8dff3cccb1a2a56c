package entity

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/RyanDowne/hifi/internal/units"
)

// Property defaults applied at construction. DefaultDamping corresponds to a
// two-second decay timescale (see units.DampingFromTimescale).
const (
	DefaultDensity float32 = 1000.0 // water, kg/m³
	MinDensity     float32 = 100.0
	MaxDensity     float32 = 10000.0

	DefaultDamping        float32 = 0.39347
	DefaultAngularDamping float32 = 0.39347

	// ImmortalLifetime is the lifetime sentinel meaning "exists until
	// deleted".
	ImmortalLifetime float32 = -1.0
	DefaultLifetime  float32 = ImmortalLifetime

	DefaultGlowLevel        float32 = 0.0
	DefaultLocalRenderAlpha float32 = 1.0

	DefaultDimension float32 = 0.1 // meters per axis

	// Speeds below these are indistinguishable from float noise and snap
	// to exactly zero during integration.
	MinVelocity        float32 = 0.001  // m/s
	MinAngularVelocity float32 = 0.0002 // rad/s
)

// Vector defaults are in the record's storage frame, domain units.
var (
	DefaultPosition          = mgl32.Vec3{0, 0, 0}
	DefaultRegistrationPoint = mgl32.Vec3{0.5, 0.5, 0.5}
	DefaultVelocity          = mgl32.Vec3{0, 0, 0}
	DefaultGravity           = mgl32.Vec3{0, 0, 0}
	DefaultAngularVelocity   = mgl32.Vec3{0, 0, 0}

	DefaultDimensions = units.Vec3MetersToDomainUnits(
		mgl32.Vec3{DefaultDimension, DefaultDimension, DefaultDimension})
)

const (
	DefaultVisible             = true
	DefaultIgnoreForCollisions = false
	DefaultCollisionsWillMove  = false
	DefaultLocked              = false
)

// Variant payload defaults.
const (
	DefaultAnimationFPS float32 = 30.0

	DefaultLightCutoff float32 = 90.0 // degrees, hemisphere

	DefaultLineHeight float32 = 0.1 // meters

	DefaultMaxParticles     uint32  = 1000
	DefaultParticleLifespan float32 = 3.0
	DefaultEmitRate         float32 = 15.0
	DefaultEmitStrength     float32 = 25.0
	DefaultLocalGravity     float32 = -9.8
	DefaultParticleRadius   float32 = 0.025
)

var DefaultEmitDirection = mgl32.Vec3{0, 1, 0}
