package entity

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/RyanDowne/hifi/internal/units"
)

// Simulate advances kinematic state from lastSimulated to nowUsec and stamps
// lastSimulated. It is an approximation for entities the physics engine has
// not claimed; callers must not invoke it while physicsHandle is set. Zero or
// negative elapsed time is a no-op.
func (r *Record) Simulate(nowUsec uint64) {
	dt := units.SecondsBetween(r.lastSimulated, nowUsec)
	if dt <= 0 {
		return
	}
	r.stepKinematics(dt)
	r.lastSimulated = nowUsec
}

// stepKinematics applies one explicit integration step: gravity into
// velocity, exponential damping, velocity into position, angular velocity
// into rotation. Damping is damping=0 no decay, damping=1 immediate stop, via
// v *= (1-damping)^dt. Residual speeds below the minimums snap to exactly
// zero so damped entities come to rest instead of drifting forever.
func (r *Record) stepKinematics(dt float32) {
	if r.hasVelocity() || r.hasGravity() {
		v := r.velocity.Add(r.gravity.Mul(dt))
		if r.damping > 0 {
			v = v.Mul(powf(1-r.damping, dt))
		}
		if v.Len() < MinVelocity/units.TreeScale {
			v = mgl32.Vec3{}
		}
		r.SetPosition(r.position.Add(v.Mul(dt)))
		r.velocity = v
	}

	if r.hasAngularVelocity() {
		w := r.angularVelocity
		if r.angularDamping > 0 {
			w = w.Mul(powf(1-r.angularDamping, dt))
		}
		speed := w.Len()
		if speed < MinAngularVelocity {
			w = mgl32.Vec3{}
		} else {
			dq := mgl32.QuatRotate(speed*dt, w.Mul(1/speed))
			r.rotation = dq.Mul(r.rotation).Normalize()
		}
		r.angularVelocity = w
	}
}

func powf(base, exp float32) float32 {
	return float32(math.Pow(float64(base), float64(exp)))
}
