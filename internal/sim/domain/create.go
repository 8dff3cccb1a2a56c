package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrTokenReused    = errors.New("creator token already used")
	ErrUnknownEntity  = errors.New("unknown entity")
	ErrEntityLocked   = errors.New("entity is locked")
)

type createReq struct {
	SessionID string
	Token     uint32
	Seed      []byte
	Resp      chan createResp
}

type createResp struct {
	ID  uuid.UUID
	Err error
}

// CreateEntity mints a known entity from a seed blob. The seed is a normal
// entity data blob whose UUID the server ignores; the returned UUID is the
// authoritative identity, correlated to the caller's creator token.
func (d *Domain) CreateEntity(ctx context.Context, sessionID string, token uint32, seed []byte) (uuid.UUID, error) {
	req := createReq{
		SessionID: sessionID,
		Token:     token,
		Seed:      seed,
		Resp:      make(chan createResp, 1),
	}
	select {
	case d.create <- req:
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp.ID, resp.Err
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

func (d *Domain) handleCreate(req createReq) {
	resp := createResp{}
	defer func() {
		if req.Resp == nil {
			return
		}
		select {
		case req.Resp <- resp:
		default:
		}
	}()

	sess := d.sessions[req.SessionID]
	if sess == nil {
		resp.Err = ErrUnknownSession
		return
	}
	if _, used := sess.tokens[req.Token]; used {
		resp.Err = fmt.Errorf("token %d: %w", req.Token, ErrTokenReused)
		return
	}

	upd, _, err := protocol.ReadEntityData(req.Seed)
	if err != nil {
		resp.Err = fmt.Errorf("seed blob: %w", err)
		return
	}

	now := d.env.Clock.NowUsec()
	id := entity.ItemID{ID: uuid.New(), CreatorToken: req.Token}
	rec, err := entity.NewRecordFromProperties(id, upd.Props, now)
	if err != nil {
		resp.Err = fmt.Errorf("seed blob: %w", err)
		return
	}

	d.records[id.ID] = rec
	sess.tokens[req.Token] = id.ID
	d.reindex(id.ID, rec)
	d.env.Log.Printf("created %s %s for %s (token %d)", rec.Type(), id.ID, req.SessionID, req.Token)

	d.recordCreate(id.ID, rec, upd, req.SessionID, now)

	// everyone learns the new entity under its real UUID
	for _, other := range d.sessions {
		d.encodeTo(other, id.ID, rec, 0)
	}

	resp.ID = id.ID
}

// recordCreate journals and logs a mint. The logged blob is rebuilt around
// the authoritative UUID, so replaying it recreates the entity under the same
// identity.
func (d *Domain) recordCreate(id uuid.UUID, rec *entity.Record, upd *protocol.Update, sessionID string, now uint64) {
	if d.journal == nil && d.editLog == nil {
		return
	}
	blob, err := protocol.BuildEditPacket(id, upd.Props, rec.LastEdited())
	if err != nil {
		d.env.Log.Printf("log create %s: %v", id, err)
		return
	}
	if d.journal != nil {
		if err := d.journal.WriteEdit(JournalEdit{
			ReceivedUsec: now,
			Op:           OpCreate,
			SessionID:    sessionID,
			EntityID:     id,
			EntityType:   rec.Type().String(),
			Flags:        uint64(upd.Props.Changed()),
			BlobBytes:    len(blob),
		}); err != nil {
			d.env.Log.Printf("journal create %s: %v", id, err)
		}
	}
	if d.editLog != nil {
		if err := d.editLog.WriteEdit(LoggedEdit{
			ReceivedUsec: now,
			Op:           OpCreate,
			SessionID:    sessionID,
			Blob:         blob,
		}); err != nil {
			d.env.Log.Printf("log create %s: %v", id, err)
		}
	}
}

// RestoreEntity rebuilds an entity under the UUID embedded in seed. Call
// before Run; replay and import tools use it. An existing record wins, so
// replaying a window that overlaps an archive converges through the edits
// that follow.
func (d *Domain) RestoreEntity(seed []byte) (uuid.UUID, error) {
	upd, _, err := protocol.ReadEntityData(seed)
	if err != nil {
		return uuid.Nil, err
	}
	if upd.ID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("restore blob has no entity id")
	}
	if d.records[upd.ID] != nil {
		return upd.ID, nil
	}
	rec, err := entity.NewRecordFromProperties(
		entity.ItemID{ID: upd.ID, CreatorToken: entity.UnknownCreatorToken},
		upd.Props, d.env.Clock.NowUsec())
	if err != nil {
		return uuid.Nil, err
	}
	d.records[upd.ID] = rec
	d.reindex(upd.ID, rec)
	return upd.ID, nil
}

// ResolveToken looks up the UUID minted for a session's creator token; loop
// goroutine only.
func (d *Domain) ResolveToken(sessionID string, token uint32) (uuid.UUID, bool) {
	sess := d.sessions[sessionID]
	if sess == nil {
		return uuid.Nil, false
	}
	id, ok := sess.tokens[token]
	return id, ok
}
