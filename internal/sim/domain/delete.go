package domain

import (
	"context"

	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/protocol"
)

type deleteReq struct {
	SessionID string
	ID        uuid.UUID
	Resp      chan error
}

// RequestDelete removes an entity on behalf of a session. Locked entities
// refuse deletion.
func (d *Domain) RequestDelete(ctx context.Context, sessionID string, id uuid.UUID) error {
	req := deleteReq{
		SessionID: sessionID,
		ID:        id,
		Resp:      make(chan error, 1),
	}
	select {
	case d.del <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.Resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Domain) handleDelete(req deleteReq) {
	var err error
	defer func() {
		if req.Resp == nil {
			return
		}
		select {
		case req.Resp <- err:
		default:
		}
	}()

	rec := d.records[req.ID]
	if rec == nil {
		err = ErrUnknownEntity
		return
	}
	if rec.Locked() {
		err = ErrEntityLocked
		return
	}
	now := d.env.Clock.NowUsec()
	typ := rec.Type().String()
	d.removeRecord(req.ID)
	d.env.Log.Printf("session %s deleted %s", req.SessionID, req.ID)

	if d.journal != nil {
		if jerr := d.journal.WriteEdit(JournalEdit{
			ReceivedUsec: now,
			Op:           OpDelete,
			SessionID:    req.SessionID,
			EntityID:     req.ID,
			EntityType:   typ,
		}); jerr != nil {
			d.env.Log.Printf("journal delete %s: %v", req.ID, jerr)
		}
	}
	if d.editLog != nil {
		if lerr := d.editLog.WriteEdit(LoggedEdit{
			ReceivedUsec: now,
			Op:           OpDelete,
			SessionID:    req.SessionID,
			EntityID:     req.ID.String(),
		}); lerr != nil {
			d.env.Log.Printf("log delete %s: %v", req.ID, lerr)
		}
	}
}

// RemoveEntity drops an entity outside the session path, skipping the lock
// check; a logged delete already passed it live. Call before Run; replay
// tools use it.
func (d *Domain) RemoveEntity(id uuid.UUID) bool {
	if d.records[id] == nil {
		return false
	}
	d.removeRecord(id)
	return true
}

// removeRecord drops a record from the table and index and echoes the
// deletion to every session, the requester included.
func (d *Domain) removeRecord(id uuid.UUID) {
	rec := d.records[id]
	if rec == nil {
		return
	}
	delete(d.records, id)
	d.dropFromIndex(id, rec)
	for _, sess := range d.sessions {
		sess.encode.Forget(id)
		d.sendJSON(sess, protocol.DeleteMsg{Type: protocol.TypeDelete, EntityID: id.String()})
	}
}

// expirePass removes mortal records whose lifetime ran out.
func (d *Domain) expirePass(now uint64) {
	var dead []uuid.UUID
	for id, rec := range d.records {
		if rec.LifetimeExpired(now) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		d.env.Log.Printf("entity %s expired", id)
		d.removeRecord(id)
	}
}
