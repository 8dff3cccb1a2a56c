package entity

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func simulateFor(r *Record, seconds uint64) {
	r.Simulate(r.LastSimulated() + seconds*testUsec)
}

func TestSimulateNoElapsedTimeIsNoop(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetVelocityInMeters(mgl32.Vec3{5, 0, 0})
	before := r.Position()

	r.Simulate(r.LastSimulated()) // same instant
	r.Simulate(r.LastSimulated() - testUsec)
	if r.Position() != before {
		t.Fatalf("position moved with no elapsed time: %v", r.Position())
	}
}

func TestSimulateZeroDampingKeepsVelocity(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetDamping(0)
	r.SetPosition(mgl32.Vec3{0.5, 0.5, 0.5})
	r.SetVelocityInMeters(mgl32.Vec3{1, 0, 0})

	simulateFor(r, 1)
	if got := r.VelocityInMeters(); !closeVec3(got, mgl32.Vec3{1, 0, 0}, 1e-4) {
		t.Fatalf("velocity after dt=1 with damping=0: %v, want (1,0,0)", got)
	}
}

func TestSimulateFullDampingStopsImmediately(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetDamping(1)
	r.SetPosition(mgl32.Vec3{0.5, 0.5, 0.5})
	r.SetVelocityInMeters(mgl32.Vec3{30, -4, 2})

	simulateFor(r, 1)
	if got := r.Velocity(); got != (mgl32.Vec3{}) {
		t.Fatalf("velocity after damping=1: %v, want exact zero", got)
	}
}

func TestSimulateHalfDampingHalvesSpeed(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetDamping(0.5)
	r.SetPosition(mgl32.Vec3{0.5, 0.5, 0.5})
	r.SetVelocityInMeters(mgl32.Vec3{1, 0, 0})
	r.SetGravity(mgl32.Vec3{})

	simulateFor(r, 1)
	if got := r.VelocityInMeters().Len(); !close32(got, 0.5, 1e-4) {
		t.Fatalf("speed after dt=1 with damping=0.5: %v, want 0.5", got)
	}
}

func TestSimulateGravityBeforeDampingAndPosition(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetDamping(0)
	r.SetPosition(mgl32.Vec3{0.5, 0.5, 0.5})
	r.SetGravityInMeters(mgl32.Vec3{0, -9.8, 0})

	startY := r.PositionInMeters().Y()
	simulateFor(r, 1)

	if got := r.VelocityInMeters().Y(); !close32(got, -9.8, 1e-3) {
		t.Fatalf("velocity.y after 1s of gravity: %v, want -9.8", got)
	}
	// velocity integrates before position, so the full new speed moves it
	if got := r.PositionInMeters().Y(); !close32(got, startY-9.8, 1e-2) {
		t.Fatalf("position.y = %v, want %v", got, startY-9.8)
	}
}

func TestSimulateSnapsTinySpeedToZero(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetDamping(0.9)
	r.SetPosition(mgl32.Vec3{0.5, 0.5, 0.5})
	r.SetVelocityInMeters(mgl32.Vec3{0.002, 0, 0})

	// two decades of decay pushes speed far below the minimum
	for i := 0; i < 20; i++ {
		simulateFor(r, 1)
	}
	if got := r.Velocity(); got != (mgl32.Vec3{}) {
		t.Fatalf("residual velocity never snapped to zero: %v", got)
	}
}

func TestSimulateIntegratesRotation(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetAngularDamping(0)
	// quarter turn per second about +z
	r.SetAngularVelocity(mgl32.Vec3{0, 0, mgl32.DegToRad(90)})

	simulateFor(r, 1)

	got := r.Rotation().Rotate(mgl32.Vec3{1, 0, 0})
	if !closeVec3(got, mgl32.Vec3{0, 1, 0}, 1e-3) {
		t.Fatalf("x axis after quarter turn = %v, want (0,1,0)", got)
	}
}

func TestSimulateAngularDampingDecays(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetAngularDamping(0.5)
	r.SetAngularVelocity(mgl32.Vec3{0, 2, 0})

	simulateFor(r, 1)
	if got := r.AngularVelocity().Len(); !close32(got, 1.0, 1e-4) {
		t.Fatalf("angular speed after dt=1 damping=0.5: %v, want 1.0", got)
	}
}

func TestSimulateStampsLastSimulated(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	now := r.LastSimulated() + 3*testUsec
	r.Simulate(now)
	if r.LastSimulated() != now {
		t.Fatalf("lastSimulated = %d, want %d", r.LastSimulated(), now)
	}
}
