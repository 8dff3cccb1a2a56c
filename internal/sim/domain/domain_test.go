package domain

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/clock"
	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/entity"
	"github.com/RyanDowne/hifi/internal/units"
)

const testEpoch = uint64(1_000_000_000_000)

func newTestDomain(t *testing.T, cfg Config) (*Domain, *clock.Manual) {
	t.Helper()
	mc := clock.NewManual(testEpoch)
	if cfg.TickRateHz == 0 {
		cfg.TickRateHz = 30
	}
	env := &Context{Clock: mc, Log: log.New(io.Discard, "", 0)}
	return NewDomain(cfg, env), mc
}

func joinDirect(t *testing.T, d *Domain, name string, skew int64) (*sessionState, chan Outbound) {
	t.Helper()
	out := make(chan Outbound, 64)
	resp := make(chan JoinResponse, 1)
	d.handleJoin(JoinRequest{Name: name, SkewUsec: skew, Out: out, Resp: resp})
	r := <-resp
	sess := d.sessions[r.SessionID]
	if sess == nil {
		t.Fatalf("join did not register session %q", r.SessionID)
	}
	return sess, out
}

func drain(ch chan Outbound) []Outbound {
	var frames []Outbound
	for {
		select {
		case f := <-ch:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

// seedBlob builds a CREATE seed: a normal edit blob under the nil UUID.
func seedBlob(t *testing.T, typ entity.Type, stamp uint64, mutate func(p *entity.Properties)) []byte {
	t.Helper()
	p := entity.NewProperties(typ)
	if mutate != nil {
		mutate(p)
	}
	buf, err := protocol.BuildEditPacket(uuid.Nil, p, stamp)
	if err != nil {
		t.Fatalf("build seed blob: %v", err)
	}
	return buf
}

func editBlob(t *testing.T, id uuid.UUID, stamp uint64, mutate func(p *entity.Properties)) []byte {
	t.Helper()
	p := entity.NewProperties(entity.TypeBox)
	mutate(p)
	buf, err := protocol.BuildEditPacket(id, p, stamp)
	if err != nil {
		t.Fatalf("build edit blob: %v", err)
	}
	return buf
}

func createDirect(t *testing.T, d *Domain, sess *sessionState, token uint32, seed []byte) uuid.UUID {
	t.Helper()
	resp := make(chan createResp, 1)
	d.handleCreate(createReq{SessionID: sess.ID, Token: token, Seed: seed, Resp: resp})
	r := <-resp
	if r.Err != nil {
		t.Fatalf("create: %v", r.Err)
	}
	if r.ID == uuid.Nil {
		t.Fatalf("create returned nil UUID")
	}
	return r.ID
}

func decodeErrorMsgs(t *testing.T, frames []Outbound) []protocol.ErrorMsg {
	t.Helper()
	var out []protocol.ErrorMsg
	for _, f := range frames {
		if f.Binary {
			continue
		}
		base, err := protocol.DecodeBase(f.Payload)
		if err != nil {
			t.Fatalf("decode control frame: %v", err)
		}
		if base.Type != protocol.TypeError {
			continue
		}
		var m protocol.ErrorMsg
		if err := json.Unmarshal(f.Payload, &m); err != nil {
			t.Fatalf("decode error msg: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestCreateMintsKnownEntity(t *testing.T) {
	d, mc := newTestDomain(t, Config{ID: "test"})
	creator, creatorOut := joinDirect(t, d, "creator", 0)
	_, watcherOut := joinDirect(t, d, "watcher", 0)
	drain(creatorOut)
	drain(watcherOut)

	pos := mgl32.Vec3{0.25, 0.5, 0.75}
	seed := seedBlob(t, entity.TypeBox, mc.NowUsec(), func(p *entity.Properties) {
		p.Position = pos
		p.Mark(entity.PropPosition)
	})
	id := createDirect(t, d, creator, 7, seed)

	rec := d.records[id]
	if rec == nil {
		t.Fatalf("created entity not in table")
	}
	if !rec.ID().IsKnown() {
		t.Fatalf("minted entity has pending identity %s", rec.ID())
	}
	if rec.Position() != pos {
		t.Fatalf("position = %v, want %v", rec.Position(), pos)
	}
	if got, ok := d.ResolveToken(creator.ID, 7); !ok || got != id {
		t.Fatalf("token 7 resolves to %s (ok=%v), want %s", got, ok, id)
	}
	if d.cells[id] == nil {
		t.Fatalf("created entity not indexed")
	}

	// both sessions hear about the new entity under its real UUID
	for name, ch := range map[string]chan Outbound{"creator": creatorOut, "watcher": watcherOut} {
		frames := drain(ch)
		found := false
		for _, f := range frames {
			if !f.Binary {
				continue
			}
			got, err := protocol.ReadEntityIDFromBuffer(f.Payload)
			if err == nil && got == id {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s never saw entity %s", name, id)
		}
	}
}

func TestCreateRejectsTokenReuse(t *testing.T) {
	d, mc := newTestDomain(t, Config{})
	sess, _ := joinDirect(t, d, "creator", 0)

	seed := seedBlob(t, entity.TypeSphere, mc.NowUsec(), nil)
	createDirect(t, d, sess, 3, seed)

	resp := make(chan createResp, 1)
	d.handleCreate(createReq{SessionID: sess.ID, Token: 3, Seed: seed, Resp: resp})
	if r := <-resp; !errors.Is(r.Err, ErrTokenReused) {
		t.Fatalf("err = %v, want ErrTokenReused", r.Err)
	}
}

func TestEditAppliesJournalsAndRebroadcasts(t *testing.T) {
	d, mc := newTestDomain(t, Config{})
	var journal captureJournal
	var editLog captureEditLog
	d.SetJournal(&journal)
	d.SetEditLog(&editLog)

	const watcherSkew = int64(30_000_000)
	author, authorOut := joinDirect(t, d, "author", 0)
	_, watcherOut := joinDirect(t, d, "watcher", watcherSkew)

	seed := seedBlob(t, entity.TypeBox, mc.NowUsec(), nil)
	id := createDirect(t, d, author, 1, seed)
	drain(authorOut)
	drain(watcherOut)

	stamp := mc.NowUsec() + 10
	pos := mgl32.Vec3{0.125, 0.125, 0.125}
	buf := editBlob(t, id, stamp, func(p *entity.Properties) {
		p.Position = pos
		p.Mark(entity.PropPosition)
	})
	d.StepOnce([]EditEnvelope{{SessionID: author.ID, SkewUsec: 0, Buf: buf}})

	if got := d.records[id].Position(); got != pos {
		t.Fatalf("position = %v, want %v", got, pos)
	}

	if len(journal.edits) != 2 {
		t.Fatalf("journal rows = %d, want create+edit", len(journal.edits))
	}
	if journal.edits[0].Op != OpCreate || journal.edits[0].EntityID != id {
		t.Fatalf("first journal row = %+v, want create of %s", journal.edits[0], id)
	}
	row := journal.edits[1]
	if row.Op != OpEdit || row.EntityID != id || row.SessionID != author.ID || row.BlobBytes != len(buf) {
		t.Fatalf("edit journal row = %+v", row)
	}
	if len(editLog.edits) != 2 {
		t.Fatalf("edit log rows = %d, want create+edit", len(editLog.edits))
	}
	// the logged create carries the minted UUID, not the seed's nil one
	if got, err := protocol.ReadEntityIDFromBuffer(editLog.edits[0].Blob); err != nil || got != id {
		t.Fatalf("logged create blob has id %s (err=%v), want %s", got, err, id)
	}
	if editLog.edits[1].Op != OpEdit {
		t.Fatalf("second log entry op = %q, want %q", editLog.edits[1].Op, OpEdit)
	}

	// the author does not get an echo; the watcher gets the edit re-stamped
	// into its own clock frame
	for _, f := range drain(authorOut) {
		if f.Binary {
			t.Fatalf("author received an echo of its own edit")
		}
	}
	var relayed []byte
	for _, f := range drain(watcherOut) {
		if f.Binary {
			relayed = f.Payload
		}
	}
	if relayed == nil {
		t.Fatalf("watcher never received the edit")
	}
	gotStamp, err := protocol.ReadEditTimestamp(relayed)
	if err != nil {
		t.Fatalf("read relayed stamp: %v", err)
	}
	if want := stamp - uint64(watcherSkew); gotStamp != want {
		t.Fatalf("relayed stamp = %d, want receiver frame %d", gotStamp, want)
	}
}

func TestEditUnknownEntityAnswersError(t *testing.T) {
	d, mc := newTestDomain(t, Config{})
	sender, senderOut := joinDirect(t, d, "sender", 0)
	drain(senderOut)

	buf := editBlob(t, uuid.New(), mc.NowUsec()+1, func(p *entity.Properties) {
		p.Position = mgl32.Vec3{0.5, 0.5, 0.5}
		p.Mark(entity.PropPosition)
	})
	d.StepOnce([]EditEnvelope{{SessionID: sender.ID, Buf: buf}})

	msgs := decodeErrorMsgs(t, drain(senderOut))
	if len(msgs) != 1 || msgs[0].Code != protocol.ErrCodeUnknownEntity {
		t.Fatalf("errors = %+v, want one %s", msgs, protocol.ErrCodeUnknownEntity)
	}
}

func TestLockedEntityRefusesEditUntilUnlocked(t *testing.T) {
	d, mc := newTestDomain(t, Config{})
	sess, out := joinDirect(t, d, "editor", 0)

	seed := seedBlob(t, entity.TypeBox, mc.NowUsec(), nil)
	id := createDirect(t, d, sess, 1, seed)
	rec := d.records[id]
	rec.SetLocked(true)
	before := rec.Position()
	drain(out)

	buf := editBlob(t, id, mc.NowUsec()+5, func(p *entity.Properties) {
		p.Position = mgl32.Vec3{0.25, 0.25, 0.25}
		p.Mark(entity.PropPosition)
	})
	d.StepOnce([]EditEnvelope{{SessionID: sess.ID, Buf: buf}})

	if rec.Position() != before {
		t.Fatalf("locked entity moved to %v", rec.Position())
	}
	msgs := decodeErrorMsgs(t, drain(out))
	if len(msgs) != 1 || msgs[0].Code != protocol.ErrCodeLocked {
		t.Fatalf("errors = %+v, want one %s", msgs, protocol.ErrCodeLocked)
	}

	// an edit that clears the lock goes through, and takes its other
	// properties with it
	unlock := editBlob(t, id, mc.NowUsec()+10, func(p *entity.Properties) {
		p.Locked = false
		p.Position = mgl32.Vec3{0.25, 0.25, 0.25}
		p.Mark(entity.PropLocked, entity.PropPosition)
	})
	d.StepOnce([]EditEnvelope{{SessionID: sess.ID, Buf: unlock}})

	if rec.Locked() {
		t.Fatalf("unlock edit did not clear the lock")
	}
	if rec.Position() != (mgl32.Vec3{0.25, 0.25, 0.25}) {
		t.Fatalf("position = %v after unlock edit", rec.Position())
	}
}

func TestDeleteRefusesLockedEntity(t *testing.T) {
	d, mc := newTestDomain(t, Config{})
	sess, _ := joinDirect(t, d, "editor", 0)
	id := createDirect(t, d, sess, 1, seedBlob(t, entity.TypeBox, mc.NowUsec(), nil))
	d.records[id].SetLocked(true)

	resp := make(chan error, 1)
	d.handleDelete(deleteReq{SessionID: sess.ID, ID: id, Resp: resp})
	if err := <-resp; !errors.Is(err, ErrEntityLocked) {
		t.Fatalf("err = %v, want ErrEntityLocked", err)
	}
	if d.records[id] == nil {
		t.Fatalf("locked entity was deleted")
	}
}

func TestEditLogReplayRebuildsTable(t *testing.T) {
	src, mc := newTestDomain(t, Config{})
	var editLog captureEditLog
	src.SetEditLog(&editLog)
	sess, _ := joinDirect(t, src, "author", 0)

	boxID := createDirect(t, src, sess, 1, seedBlob(t, entity.TypeBox, mc.NowUsec(), func(p *entity.Properties) {
		p.Position = mgl32.Vec3{0.1, 0.2, 0.3}
		p.Mark(entity.PropPosition)
	}))
	sphereID := createDirect(t, src, sess, 2, seedBlob(t, entity.TypeSphere, mc.NowUsec(), nil))

	pos := mgl32.Vec3{0.6, 0.6, 0.6}
	src.StepOnce([]EditEnvelope{{SessionID: sess.ID, Buf: editBlob(t, boxID, mc.NowUsec()+20, func(p *entity.Properties) {
		p.Position = pos
		p.Mark(entity.PropPosition)
	})}})

	resp := make(chan error, 1)
	src.handleDelete(deleteReq{SessionID: sess.ID, ID: sphereID, Resp: resp})
	if err := <-resp; err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(editLog.edits) != 4 {
		t.Fatalf("log entries = %d, want create,create,edit,delete", len(editLog.edits))
	}

	// feed the log into a fresh domain the way the replay tool does
	dst, _ := newTestDomain(t, Config{})
	for _, e := range editLog.edits {
		switch e.Op {
		case OpCreate:
			if _, err := dst.RestoreEntity(e.Blob); err != nil {
				t.Fatalf("restore: %v", err)
			}
		case OpEdit:
			dst.StepOnce([]EditEnvelope{{SessionID: e.SessionID, Buf: e.Blob}})
		case OpDelete:
			if !dst.RemoveEntity(uuid.MustParse(e.EntityID)) {
				t.Fatalf("replayed delete of unknown %s", e.EntityID)
			}
		default:
			t.Fatalf("unknown op %q", e.Op)
		}
	}

	if len(dst.records) != 1 {
		t.Fatalf("replayed table has %d records, want 1", len(dst.records))
	}
	rec := dst.records[boxID]
	if rec == nil {
		t.Fatalf("replay lost entity %s", boxID)
	}
	if rec.Position() != pos {
		t.Fatalf("replayed position = %v, want %v", rec.Position(), pos)
	}
	if dst.cells[boxID] == nil {
		t.Fatalf("replayed entity not indexed")
	}
	if dst.records[sphereID] != nil {
		t.Fatalf("replayed table still holds deleted %s", sphereID)
	}
}

func TestPendingIdentityNeverIndexed(t *testing.T) {
	d, _ := newTestDomain(t, Config{})
	rec, err := entity.NewRecord(entity.PendingItemID(9), entity.TypeBox, testEpoch)
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	d.reindex(rec.ID().ID, rec)
	if len(d.cells) != 0 {
		t.Fatalf("pending-identity record reached the index")
	}
}

func TestVelocitySeedInMeters(t *testing.T) {
	// guard for the unit frame: a seed velocity in domain units must come
	// back out in meters scaled by TreeScale
	d, mc := newTestDomain(t, Config{})
	sess, _ := joinDirect(t, d, "creator", 0)
	vel := units.Vec3MetersToDomainUnits(mgl32.Vec3{8, 0, 0})
	id := createDirect(t, d, sess, 1, seedBlob(t, entity.TypeBox, mc.NowUsec(), func(p *entity.Properties) {
		p.Velocity = vel
		p.Mark(entity.PropVelocity)
	}))
	if got := d.records[id].VelocityInMeters(); got != (mgl32.Vec3{8, 0, 0}) {
		t.Fatalf("velocity = %v m/s, want (8,0,0)", got)
	}
}

type captureJournal struct {
	edits []JournalEdit
}

func (c *captureJournal) WriteEdit(e JournalEdit) error {
	c.edits = append(c.edits, e)
	return nil
}

type captureEditLog struct {
	edits []LoggedEdit
}

func (c *captureEditLog) WriteEdit(e LoggedEdit) error {
	c.edits = append(c.edits, e)
	return nil
}
