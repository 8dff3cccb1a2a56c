package domain

import (
	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

// EditEnvelope is one binary edit frame from a session, timestamps still in
// the sender's clock frame.
type EditEnvelope struct {
	SessionID string
	SkewUsec  int64
	Buf       []byte
}

// applyEdit lands one edit on the table. Bad packets are dropped with a log
// line and, where the sender is known, an ERROR message; they never take the
// domain down.
func (d *Domain) applyEdit(env EditEnvelope, now uint64) {
	sess := d.sessions[env.SessionID]

	if len(env.Buf) > protocol.MaxEditPacketSize {
		d.env.Log.Printf("drop edit from %s: %d bytes over cap", env.SessionID, len(env.Buf))
		if sess != nil {
			d.sendError(sess, protocol.ErrCodeBadBlob, "edit packet too large")
		}
		return
	}

	// shift the embedded stamp into our clock frame once, so the journal,
	// the log and the rebroadcast all see local time
	if err := protocol.AdjustEditPacketForClockSkew(env.Buf, env.SkewUsec); err != nil {
		d.env.Log.Printf("drop edit from %s: %v", env.SessionID, err)
		if sess != nil {
			d.sendError(sess, protocol.ErrCodeBadBlob, err.Error())
		}
		return
	}

	upd, _, err := protocol.ReadEntityData(env.Buf)
	if err != nil {
		d.env.Log.Printf("drop edit from %s: %v", env.SessionID, err)
		if sess != nil {
			d.sendError(sess, protocol.ErrCodeBadBlob, err.Error())
		}
		return
	}

	rec := d.records[upd.ID]
	if rec == nil {
		d.env.Log.Printf("drop edit from %s: unknown entity %s", env.SessionID, upd.ID)
		if sess != nil {
			d.sendError(sess, protocol.ErrCodeUnknownEntity, upd.ID.String())
		}
		return
	}
	if rec.Locked() && !upd.Props.Changed().Has(entity.PropLocked) {
		if sess != nil {
			d.sendError(sess, protocol.ErrCodeLocked, upd.ID.String())
		}
		return
	}

	// skew already applied to the buffer above
	if !protocol.ApplyUpdate(rec, upd, protocol.ApplyParams{NowUsec: now}) {
		return // stale by last-writer-wins; silently superseded
	}

	d.reindex(upd.ID, rec)

	if d.journal != nil {
		if err := d.journal.WriteEdit(JournalEdit{
			ReceivedUsec: now,
			Op:           OpEdit,
			SessionID:    env.SessionID,
			EntityID:     upd.ID,
			EntityType:   upd.EntityType.String(),
			Flags:        uint64(upd.Props.Changed()),
			BlobBytes:    len(env.Buf),
		}); err != nil {
			d.env.Log.Printf("journal edit %s: %v", upd.ID, err)
		}
	}
	if d.editLog != nil {
		if err := d.editLog.WriteEdit(LoggedEdit{
			ReceivedUsec: now,
			Op:           OpEdit,
			SessionID:    env.SessionID,
			Blob:         env.Buf,
		}); err != nil {
			d.env.Log.Printf("log edit %s: %v", upd.ID, err)
		}
	}

	d.rebroadcastEdit(env.SessionID, env.Buf)
}
