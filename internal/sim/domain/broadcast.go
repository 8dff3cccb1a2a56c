package domain

import (
	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

// motionProperties is what the integrator can change in a tick.
var motionProperties = entity.Flag(entity.PropPosition).
	With(entity.PropRotation).
	With(entity.PropVelocity).
	With(entity.PropAngularVelocity)

// encodeTo appends one entity blob for a session within the per-blob budget,
// folding in anything previously deferred for that entity. Whatever still
// does not fit is deferred again; the retry queue drains oldest first.
func (d *Domain) encodeTo(sess *sessionState, id uuid.UUID, rec *entity.Record, requested entity.PropertyFlags) {
	if requested.IsEmpty() {
		requested = entity.PropertiesForType(rec.Type())
	}
	requested = requested.Union(sess.encode.Pending(id))

	res, err := protocol.AppendEntityData(rec, protocol.EncodeParams{
		Requested: requested,
		Budget:    d.cfg.PacketBudget,
	})
	if err != nil {
		d.env.Log.Printf("encode %s for %s: %v", id, sess.ID, err)
		return
	}

	now := d.env.Clock.NowUsec()
	if !res.DidntFit.IsEmpty() {
		sess.encode.Defer(id, res.DidntFit, now)
	}
	if res.State == protocol.AppendNone {
		return
	}
	sess.encode.Sent(id, res.Written)
	sendLatest(sess.Out, Outbound{Binary: true, Payload: res.Bytes})
}

// retryDeferred gives every session another budgeted shot at properties that
// missed earlier frames, oldest deferral first.
func (d *Domain) retryDeferred() {
	for _, sess := range d.sessions {
		for _, id := range sess.encode.RetryOrder() {
			rec := d.records[id]
			if rec == nil {
				sess.encode.Forget(id)
				continue
			}
			d.encodeTo(sess, id, rec, sess.encode.Pending(id))
		}
	}
}

// rebroadcastEdit fans an accepted edit out to every other session. buf is in
// the local clock frame; each copy is re-stamped into the receiver's frame so
// clients compare timestamps against their own clock.
func (d *Domain) rebroadcastEdit(fromSession string, buf []byte) {
	for _, sess := range d.sessions {
		if sess.ID == fromSession {
			continue
		}
		out := make([]byte, len(buf))
		copy(out, buf)
		if err := protocol.AdjustEditPacketForClockSkew(out, -sess.SkewUsec); err != nil {
			d.env.Log.Printf("restamp for %s: %v", sess.ID, err)
			continue
		}
		sendLatest(sess.Out, Outbound{Binary: true, Payload: out})
	}
}

// broadcastMotion pushes integrator-driven movement to every session.
func (d *Domain) broadcastMotion(moved []uuid.UUID) {
	if !d.env.SendPhysicsUpdates || len(moved) == 0 {
		return
	}
	for _, sess := range d.sessions {
		for _, id := range moved {
			rec := d.records[id]
			if rec == nil {
				continue
			}
			d.encodeTo(sess, id, rec, motionProperties)
		}
	}
}
