package protocol_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

const epoch = uint64(1_000_000_000)

func newRecord(t *testing.T, typ entity.Type) *entity.Record {
	t.Helper()
	r, err := entity.NewRecord(entity.NewItemID(), typ, epoch)
	if err != nil {
		t.Fatalf("new %s record: %v", typ, err)
	}
	return r
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	rec.UpdatePosition(mgl32.Vec3{0.25, 0.5, 0.75})
	rec.UpdateVelocityInMeters(mgl32.Vec3{3, 0, -1})
	rec.UpdateDamping(0.25)
	rec.Variant().(*entity.BoxVariant).Color = entity.Color{R: 200, G: 100, B: 50}
	rec.SetLastEdited(epoch + 7)

	res, err := protocol.AppendEntityData(rec, protocol.EncodeParams{Budget: 512})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if res.State != protocol.AppendCompleted {
		t.Fatalf("state = %s, want completed", res.State)
	}

	upd, n, err := protocol.ReadEntityData(res.Bytes)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(res.Bytes) {
		t.Fatalf("consumed %d of %d bytes", n, len(res.Bytes))
	}
	if upd.ID != rec.ID().ID || upd.EntityType != entity.TypeBox {
		t.Fatalf("header mismatch: id=%s type=%s", upd.ID, upd.EntityType)
	}
	if upd.LastEdited != epoch+7 {
		t.Fatalf("stamp = %d, want %d", upd.LastEdited, epoch+7)
	}
	if upd.Props.Changed() != res.Written {
		t.Fatalf("decoded mask %s != written mask %s", upd.Props.Changed(), res.Written)
	}
	if upd.Props.Position != rec.Position() {
		t.Fatalf("position %v != %v", upd.Props.Position, rec.Position())
	}
	if upd.Props.Velocity != rec.Velocity() {
		t.Fatalf("velocity %v != %v", upd.Props.Velocity, rec.Velocity())
	}
	if upd.Props.Color != (entity.Color{R: 200, G: 100, B: 50}) {
		t.Fatalf("color %v", upd.Props.Color)
	}
}

func TestEncodeRequestedSubset(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	req := entity.Flag(entity.PropPosition).With(entity.PropRotation)

	res, err := protocol.AppendEntityData(rec, protocol.EncodeParams{Requested: req, Budget: 256})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if res.Written != req {
		t.Fatalf("written = %s, want %s", res.Written, req)
	}

	upd, _, err := protocol.ReadEntityData(res.Bytes)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if upd.Props.Changed() != req {
		t.Fatalf("decoded mask = %s, want %s", upd.Props.Changed(), req)
	}
}

func TestEncodeDropsUnsupportedRequests(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	req := entity.Flag(entity.PropPosition).With(entity.PropText)

	res, err := protocol.AppendEntityData(rec, protocol.EncodeParams{Requested: req, Budget: 256})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if res.Written.Has(entity.PropText) || !res.DidntFit.IsEmpty() {
		t.Fatalf("foreign property leaked: written=%s didntFit=%s", res.Written, res.DidntFit)
	}
	if res.State != protocol.AppendCompleted {
		t.Fatalf("state = %s, want completed", res.State)
	}
}

func TestPartialFitOmitsWholeProperties(t *testing.T) {
	rec := newRecord(t, entity.TypeModel)
	mv := rec.Variant().(*entity.ModelVariant)
	mv.ModelURL = "https://assets.example.com/" + strings.Repeat("x", 180)
	rec.UpdatePosition(mgl32.Vec3{0.5, 0.5, 0.5})

	req := entity.Flag(entity.PropPosition).With(entity.PropModelURL)
	res, err := protocol.AppendEntityData(rec, protocol.EncodeParams{Requested: req, Budget: 60})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if res.State != protocol.AppendPartial {
		t.Fatalf("state = %s, want partial", res.State)
	}
	if !res.DidntFit.Has(entity.PropModelURL) || res.DidntFit.Has(entity.PropPosition) {
		t.Fatalf("didntFit = %s", res.DidntFit)
	}

	// the bytes written must hold exactly the properties that fit, with no
	// fragment of the omitted one
	upd, n, err := protocol.ReadEntityData(res.Bytes)
	if err != nil {
		t.Fatalf("decode partial blob: %v", err)
	}
	if n != len(res.Bytes) {
		t.Fatalf("partial blob has trailing bytes: %d of %d", n, len(res.Bytes))
	}
	if upd.Props.Changed() != entity.Flag(entity.PropPosition) {
		t.Fatalf("decoded mask = %s, want position only", upd.Props.Changed())
	}

	// a retry with room completes the deferred property
	retry, err := protocol.AppendEntityData(rec, protocol.EncodeParams{Requested: res.DidntFit, Budget: 1024})
	if err != nil {
		t.Fatalf("retry encode: %v", err)
	}
	if retry.State != protocol.AppendCompleted {
		t.Fatalf("retry state = %s, want completed", retry.State)
	}
	upd2, _, err := protocol.ReadEntityData(retry.Bytes)
	if err != nil {
		t.Fatalf("decode retry: %v", err)
	}
	if upd2.Props.ModelURL != mv.ModelURL {
		t.Fatalf("retry lost the model url")
	}
}

func TestEncodeNothingFits(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	req := entity.Flag(entity.PropPosition) // 12 value bytes

	res, err := protocol.AppendEntityData(rec, protocol.EncodeParams{Requested: req, Budget: protocol.HeaderSize + 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if res.State != protocol.AppendNone || res.Bytes != nil {
		t.Fatalf("state=%s bytes=%v, want none/nil", res.State, res.Bytes)
	}
	if res.DidntFit != req {
		t.Fatalf("didntFit = %s, want %s", res.DidntFit, req)
	}
}

func TestEncodeBudgetBelowHeader(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	_, err := protocol.AppendEntityData(rec, protocol.EncodeParams{Budget: 10})
	if !errors.Is(err, protocol.ErrBudgetTooSmall) {
		t.Fatalf("err = %v, want ErrBudgetTooSmall", err)
	}
}

func TestDecodeTruncatedBuffer(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	rec.UpdatePosition(mgl32.Vec3{0.5, 0.5, 0.5})
	res, err := protocol.AppendEntityData(rec, protocol.EncodeParams{Budget: 256})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for _, cut := range []int{5, protocol.HeaderSize, len(res.Bytes) - 3} {
		if _, _, err := protocol.ReadEntityData(res.Bytes[:cut]); !errors.Is(err, protocol.ErrShortRead) {
			t.Fatalf("cut at %d: err = %v, want ErrShortRead", cut, err)
		}
	}
}

func TestDecodeUnknownFlagBitsIsFatal(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	res, err := protocol.AppendEntityData(rec, protocol.EncodeParams{
		Requested: entity.Flag(entity.PropVisible), Budget: 64,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// splice a future flag bit over the varint: header stays, flags become
	// a value this build has never heard of
	buf := append([]byte{}, res.Bytes[:protocol.HeaderSize]...)
	buf = append(buf, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01) // 1<<49
	if _, _, err := protocol.ReadEntityData(buf); !errors.Is(err, protocol.ErrUnknownProperty) {
		t.Fatalf("err = %v, want ErrUnknownProperty", err)
	}
}

func TestDecodeUnknownTypeByte(t *testing.T) {
	rec := newRecord(t, entity.TypeBox)
	res, err := protocol.AppendEntityData(rec, protocol.EncodeParams{Budget: 256})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	res.Bytes[16] = 0xEE
	if _, _, err := protocol.ReadEntityData(res.Bytes); !errors.Is(err, protocol.ErrUnknownEntityType) {
		t.Fatalf("err = %v, want ErrUnknownEntityType", err)
	}
}
