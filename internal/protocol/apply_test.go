package protocol_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

// buildUpdate runs a property set through the real wire path so apply tests
// exercise what a receiver actually sees.
func buildUpdate(t *testing.T, id uuid.UUID, p *entity.Properties, stamp uint64) *protocol.Update {
	t.Helper()
	buf, err := protocol.BuildEditPacket(id, p, stamp)
	if err != nil {
		t.Fatalf("build edit: %v", err)
	}
	upd, _, err := protocol.ReadEntityData(buf)
	if err != nil {
		t.Fatalf("decode edit: %v", err)
	}
	return upd
}

func TestApplyUpdateLocalWinsTies(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	rec.UpdatePosition(mgl32.Vec3{0.5, 0.5, 0.5})
	rec.SetLastEdited(epoch + 100)

	p := entity.NewProperties(entity.TypeBox)
	p.Position = mgl32.Vec3{0.25, 0.25, 0.25}
	p.Mark(entity.PropPosition)

	for _, stamp := range []uint64{epoch + 99, epoch + 100} {
		upd := buildUpdate(t, rec.ID().ID, p, stamp)
		if protocol.ApplyUpdate(rec, upd, protocol.ApplyParams{}) {
			t.Fatalf("stamp %d beat local edit at %d", stamp, rec.LastEdited())
		}
		if rec.Position() != (mgl32.Vec3{0.5, 0.5, 0.5}) {
			t.Fatalf("stale edit moved the entity to %v", rec.Position())
		}
	}

	upd := buildUpdate(t, rec.ID().ID, p, epoch+101)
	if !protocol.ApplyUpdate(rec, upd, protocol.ApplyParams{}) {
		t.Fatalf("newer edit rejected")
	}
	if rec.Position() != (mgl32.Vec3{0.25, 0.25, 0.25}) {
		t.Fatalf("position = %v after apply", rec.Position())
	}
	if rec.LastEdited() != epoch+101 {
		t.Fatalf("lastEdited = %d, want %d", rec.LastEdited(), epoch+101)
	}
}

func TestApplyUpdateOverwriteForcesStaleEdit(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	rec.SetLastEdited(epoch + 100)

	p := entity.NewProperties(entity.TypeBox)
	p.Position = mgl32.Vec3{0.125, 0.125, 0.125}
	p.Mark(entity.PropPosition)

	upd := buildUpdate(t, rec.ID().ID, p, epoch+10)
	if !protocol.ApplyUpdate(rec, upd, protocol.ApplyParams{OverwriteLocalData: true}) {
		t.Fatalf("overwrite did not force the stale edit")
	}
	if rec.Position() != (mgl32.Vec3{0.125, 0.125, 0.125}) {
		t.Fatalf("position = %v", rec.Position())
	}
}

func TestApplyUpdateAdjustsForClockSkew(t *testing.T) {
	const skew = int64(5_000_000) // remote runs 5s behind us

	rec := newRecord(t, entity.TypeBox)
	rec.SetLastEdited(epoch + 4_000_000)

	p := entity.NewProperties(entity.TypeBox)
	p.Position = mgl32.Vec3{0.75, 0.75, 0.75}
	p.Mark(entity.PropPosition)

	// raw stamp loses to the local edit; the skew-adjusted one wins
	upd := buildUpdate(t, rec.ID().ID, p, epoch)
	if !protocol.ApplyUpdate(rec, upd, protocol.ApplyParams{SkewUsec: skew}) {
		t.Fatalf("skew-adjusted edit rejected")
	}
	if rec.LastEdited() != epoch+uint64(skew) {
		t.Fatalf("lastEdited = %d, want adjusted %d", rec.LastEdited(), epoch+uint64(skew))
	}
	if rec.LastEditedFromRemoteInRemoteTime() != epoch {
		t.Fatalf("remote-frame stamp = %d, want %d", rec.LastEditedFromRemoteInRemoteTime(), epoch)
	}
	if rec.LastEditedFromRemote() != epoch+uint64(skew) {
		t.Fatalf("adjusted remote stamp = %d", rec.LastEditedFromRemote())
	}
}

func TestApplyUpdateSanitizesNonFiniteValues(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	rec.UpdatePosition(mgl32.Vec3{0.5, 0.5, 0.5})
	rec.UpdateVelocityInMeters(mgl32.Vec3{2, 0, 0})

	nan := float32(math.NaN())
	p := entity.NewProperties(entity.TypeBox)
	p.Position = mgl32.Vec3{nan, 0.1, 0.1}
	p.Velocity = mgl32.Vec3{0, nan, 0}
	p.Density = float32(math.Inf(1))
	p.Damping = 0.75
	p.Mark(entity.PropPosition, entity.PropVelocity, entity.PropDensity, entity.PropDamping)

	upd := buildUpdate(t, rec.ID().ID, p, epoch+10)
	if !protocol.ApplyUpdate(rec, upd, protocol.ApplyParams{}) {
		t.Fatalf("edit rejected")
	}

	// poisoned fields keep their prior values, clean ones land
	if rec.Position() != (mgl32.Vec3{0.5, 0.5, 0.5}) {
		t.Fatalf("NaN position leaked: %v", rec.Position())
	}
	if rec.VelocityInMeters() != (mgl32.Vec3{2, 0, 0}) {
		t.Fatalf("NaN velocity leaked: %v", rec.VelocityInMeters())
	}
	if rec.Density() != entity.DefaultDensity {
		t.Fatalf("Inf density leaked: %v", rec.Density())
	}
	if rec.Damping() != 0.75 {
		t.Fatalf("damping = %v, want 0.75", rec.Damping())
	}
}

func TestApplyUpdateStampsReceipt(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)

	p := entity.NewProperties(entity.TypeBox)
	p.Visible = false
	p.Mark(entity.PropVisible)

	now := epoch + 500_000
	upd := buildUpdate(t, rec.ID().ID, p, epoch+10)
	if !protocol.ApplyUpdate(rec, upd, protocol.ApplyParams{NowUsec: now}) {
		t.Fatalf("edit rejected")
	}
	if rec.LastUpdated() != now {
		t.Fatalf("lastUpdated = %d, want %d", rec.LastUpdated(), now)
	}
	if rec.ChangedOnServer() != now {
		t.Fatalf("changedOnServer = %d, want %d", rec.ChangedOnServer(), now)
	}
}
