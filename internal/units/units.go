// Package units maps spatial quantities between world meters and normalized
// domain units. Domain units are coordinates in [0,1] relative to the world
// cube edge TreeScale; the wire codec and the spatial index work in domain
// units while physics and rendering work in meters.
package units

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// TreeScale is the edge length, in meters, of the world cube that domain
// unit 1.0 spans.
const TreeScale float32 = 16384.0

const UsecsPerSecond uint64 = 1_000_000

// MetersToDomainUnits converts a length in meters to domain units.
func MetersToDomainUnits(m float32) float32 { return m / TreeScale }

// DomainUnitsToMeters converts a length in domain units to meters.
func DomainUnitsToMeters(d float32) float32 { return d * TreeScale }

// Vec3MetersToDomainUnits converts a vector in meters to domain units.
func Vec3MetersToDomainUnits(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(1.0 / TreeScale)
}

// Vec3DomainUnitsToMeters converts a vector in domain units to meters.
// Positional domain-unit inputs should be clamped first; rate quantities
// (velocity, gravity) scale without clamping.
func Vec3DomainUnitsToMeters(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(TreeScale)
}

// ClampDomainUnits clamps every component of a positional domain-unit vector
// into [0,1].
func ClampDomainUnits(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		mgl32.Clamp(v[0], 0, 1),
		mgl32.Clamp(v[1], 0, 1),
		mgl32.Clamp(v[2], 0, 1),
	}
}

// ClampRatio clamps every component into [0,1]; used for registration points.
func ClampRatio(v mgl32.Vec3) mgl32.Vec3 { return ClampDomainUnits(v) }

// AbsVec3 returns the componentwise absolute value; dimension setters use it
// to keep dimensions non-negative.
func AbsVec3(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{mgl32.Abs(v[0]), mgl32.Abs(v[1]), mgl32.Abs(v[2])}
}

// Damping is applied as v *= pow(1-damping, dt), so damping 0 means no decay
// and damping 1 means an immediate stop. Each damping value corresponds to an
// exponential decay timescale:
//
//	timescale = -1 / ln(1 - damping)
//	damping   = 1 - exp(-1 / timescale)

// TimescaleFromDamping returns the exponential decay timescale in seconds for
// a damping coefficient in (0,1).
func TimescaleFromDamping(damping float32) float32 {
	return float32(-1.0 / math.Log(1.0-float64(damping)))
}

// DampingFromTimescale returns the damping coefficient for a decay timescale
// in seconds.
func DampingFromTimescale(timescale float32) float32 {
	return float32(1.0 - math.Exp(-1.0/float64(timescale)))
}

// IsFinite reports whether f is neither NaN nor infinite.
func IsFinite(f float32) bool {
	f64 := float64(f)
	return !math.IsNaN(f64) && !math.IsInf(f64, 0)
}

// SanitizeFloat returns f, or fallback when f is NaN or infinite.
func SanitizeFloat(f, fallback float32) float32 {
	if !IsFinite(f) {
		return fallback
	}
	return f
}

// SanitizeVec3 returns v, or fallback when any component is NaN or infinite.
// Decoded vectors pass through here so network garbage never reaches the
// spatial index.
func SanitizeVec3(v, fallback mgl32.Vec3) mgl32.Vec3 {
	if !IsFinite(v[0]) || !IsFinite(v[1]) || !IsFinite(v[2]) {
		return fallback
	}
	return v
}

// SanitizeQuat returns q normalized, or fallback when any component is
// non-finite or the quaternion has no length.
func SanitizeQuat(q, fallback mgl32.Quat) mgl32.Quat {
	if !IsFinite(q.W) || !IsFinite(q.V[0]) || !IsFinite(q.V[1]) || !IsFinite(q.V[2]) {
		return fallback
	}
	lenSq := q.W*q.W + q.V[0]*q.V[0] + q.V[1]*q.V[1] + q.V[2]*q.V[2]
	if lenSq < 1e-12 {
		return fallback
	}
	return q.Normalize()
}

// SecondsBetween converts an elapsed usec interval to float seconds.
func SecondsBetween(fromUsec, toUsec uint64) float32 {
	if toUsec <= fromUsec {
		return 0
	}
	return float32(toUsec-fromUsec) / float32(UsecsPerSecond)
}
