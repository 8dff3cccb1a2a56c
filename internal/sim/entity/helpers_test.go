package entity

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const testUsec = uint64(1_000_000)

// t0 for records built by newTestRecord.
const testEpoch = 1000 * testUsec

func newTestRecord(t *testing.T, typ Type) *Record {
	t.Helper()
	r, err := NewRecord(NewItemID(), typ, testEpoch)
	if err != nil {
		t.Fatalf("new %s record: %v", typ, err)
	}
	return r
}

func close32(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func closeVec3(a, b mgl32.Vec3, tol float32) bool {
	return close32(a[0], b[0], tol) && close32(a[1], b[1], tol) && close32(a[2], b[2], tol)
}
