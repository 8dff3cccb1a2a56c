package domain

import (
	"context"
	"encoding/json"

	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/units"

	"github.com/google/uuid"
)

// Outbound is one frame queued toward a session. Binary frames carry entity
// data blobs; the rest is JSON control traffic.
type Outbound struct {
	Binary  bool
	Payload []byte
}

type JoinRequest struct {
	Name string
	// SkewUsec is the transport's estimate of local minus client clock,
	// sampled during the HELLO exchange.
	SkewUsec int64
	Out      chan Outbound
	Resp     chan JoinResponse
}

type JoinResponse struct {
	SessionID string
	Welcome   protocol.WelcomeMsg
}

type sessionState struct {
	ID       string
	Name     string
	SkewUsec int64
	Out      chan Outbound

	// tokens maps this session's creator tokens to the UUIDs the domain
	// minted for them.
	tokens map[uint32]uuid.UUID

	// encode carries properties that did not fit earlier budgeted frames.
	encode *protocol.EncodeState
}

// Join registers a session with the domain loop and returns its WELCOME.
func (d *Domain) Join(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	if req.Resp == nil {
		req.Resp = make(chan JoinResponse, 1)
	}
	select {
	case d.join <- req:
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp, nil
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
}

func (d *Domain) handleJoin(req JoinRequest) {
	now := d.env.Clock.NowUsec()
	sess := &sessionState{
		ID:       d.newSessionID(),
		Name:     req.Name,
		SkewUsec: req.SkewUsec,
		Out:      req.Out,
		tokens:   make(map[uint32]uuid.UUID),
		encode:   protocol.NewEncodeState(),
	}
	d.sessions[sess.ID] = sess
	d.env.Log.Printf("session %s joined (%q, skew %dus)", sess.ID, sess.Name, sess.SkewUsec)

	resp := JoinResponse{
		SessionID: sess.ID,
		Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       sess.ID,
			ServerClockUsec: now,
			SkewUsec:        sess.SkewUsec,
			TreeScale:       units.TreeScale,
			MaxPacketBytes:  d.cfg.PacketBudget,
		},
	}
	select {
	case req.Resp <- resp:
	default:
	}

	// late joiner catch-up: the current table, within budget per blob
	d.sendTable(sess)
}

func (d *Domain) handleLeave(sessionID string) {
	if _, ok := d.sessions[sessionID]; !ok {
		return
	}
	delete(d.sessions, sessionID)
	d.env.Log.Printf("session %s left", sessionID)
}

// sendTable streams every current entity to one session, deferring what the
// per-blob budget cannot carry.
func (d *Domain) sendTable(sess *sessionState) {
	for id, rec := range d.records {
		d.encodeTo(sess, id, rec, 0)
	}
}

// sendJSON queues a control message, dropping the oldest frame under
// backpressure.
func (d *Domain) sendJSON(sess *sessionState, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		d.env.Log.Printf("marshal %T for %s: %v", msg, sess.ID, err)
		return
	}
	sendLatest(sess.Out, Outbound{Payload: b})
}

func (d *Domain) sendError(sess *sessionState, code, message string) {
	d.sendJSON(sess, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
}

func sendLatest(ch chan Outbound, f Outbound) {
	select {
	case ch <- f:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}
