package entity

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/RyanDowne/hifi/internal/units"
)

func TestAABoxCenteredRegistration(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetPositionInMeters(mgl32.Vec3{100, 200, 300})
	r.SetDimensionsInMeters(mgl32.Vec3{2, 4, 6})

	box := r.AABoxInMeters()
	if !closeVec3(box.Corner, mgl32.Vec3{99, 198, 297}, 1e-2) {
		t.Fatalf("corner = %v, want (99,198,297)", box.Corner)
	}
	if !closeVec3(box.Dimensions, mgl32.Vec3{2, 4, 6}, 1e-2) {
		t.Fatalf("dimensions = %v, want (2,4,6)", box.Dimensions)
	}
}

func TestAABoxCornerRegistration(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetPositionInMeters(mgl32.Vec3{100, 200, 300})
	r.SetDimensionsInMeters(mgl32.Vec3{2, 4, 6})
	r.SetRegistrationPoint(mgl32.Vec3{0, 0, 0})

	box := r.AABoxInMeters()
	if !closeVec3(box.Corner, mgl32.Vec3{100, 200, 300}, 1e-2) {
		t.Fatalf("corner = %v, want the position itself", box.Corner)
	}
}

func TestAABoxTracksRotation(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetPositionInMeters(mgl32.Vec3{100, 200, 300})
	r.SetDimensionsInMeters(mgl32.Vec3{2, 4, 6})
	// quarter turn about z swaps the x and y extents
	r.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))

	box := r.AABoxInMeters()
	if !closeVec3(box.Dimensions, mgl32.Vec3{4, 2, 6}, 1e-2) {
		t.Fatalf("rotated dimensions = %v, want (4,2,6)", box.Dimensions)
	}
}

func TestMaximumAACubeCoversEveryRotation(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetPositionInMeters(mgl32.Vec3{100, 200, 300})
	r.SetDimensionsInMeters(mgl32.Vec3{2, 4, 6})

	maxCube := r.MaximumAACube()

	// expected edge: twice the distance from the centered registration
	// point to the furthest corner
	wantEdge := 2 * float32(math.Sqrt(1+4+9)) / units.TreeScale
	if !close32(maxCube.Scale, wantEdge, 1e-6) {
		t.Fatalf("max cube edge = %v, want %v", maxCube.Scale, wantEdge)
	}

	axes := []mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {1, 1, 1}}
	for _, axis := range axes {
		r.SetRotation(mgl32.QuatRotate(1.1, axis.Normalize()))
		box := r.AABoxInDomainUnits()
		if !maxCube.Contains(box.Corner) || !maxCube.Contains(box.MaxCorner()) {
			t.Fatalf("max cube %v does not cover box %v rotated about %v", maxCube, box, axis)
		}
	}
}

func TestMinimumAACubeUsesLargestSide(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetPositionInMeters(mgl32.Vec3{100, 200, 300})
	r.SetDimensionsInMeters(mgl32.Vec3{2, 4, 6})

	minCube := r.MinimumAACube()
	if !close32(minCube.Scale, 6/units.TreeScale, 1e-6) {
		t.Fatalf("min cube edge = %v, want %v", minCube.Scale, 6/units.TreeScale)
	}
	box := r.AABoxInDomainUnits()
	if !closeVec3(minCube.Center(), box.Center(), 1e-6) {
		t.Fatalf("min cube center %v != box center %v", minCube.Center(), box.Center())
	}
}

func TestEnclosingGridCellIsPowerOfTwo(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetPositionInMeters(mgl32.Vec3{100, 200, 300})
	r.SetDimensionsInMeters(mgl32.Vec3{2, 4, 6})

	cell := r.EnclosingGridCell()
	if !cell.ContainsCube(r.MaximumAACube()) {
		t.Fatalf("grid cell %v does not contain max cube %v", cell, r.MaximumAACube())
	}
	exp := math.Log2(float64(cell.Scale))
	if exp != math.Trunc(exp) {
		t.Fatalf("grid cell scale %v is not a power of two", cell.Scale)
	}
}

func TestContainsInMeters(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetPositionInMeters(mgl32.Vec3{100, 200, 300})
	r.SetDimensionsInMeters(mgl32.Vec3{2, 2, 2})

	if !r.ContainsInMeters(mgl32.Vec3{100, 200, 300}) {
		t.Fatalf("registration point not inside own box")
	}
	if r.ContainsInMeters(mgl32.Vec3{103, 200, 300}) {
		t.Fatalf("point 3m off x inside a 2m box")
	}
}

func TestRadiusInMeters(t *testing.T) {
	r := newTestRecord(t, TypeBox)
	r.SetDimensionsInMeters(mgl32.Vec3{2, 4, 6})
	want := 0.5 * float32(math.Sqrt(4+16+36))
	if got := r.RadiusInMeters(); !close32(got, want, 1e-3) {
		t.Fatalf("radius = %v, want %v", got, want)
	}
}
