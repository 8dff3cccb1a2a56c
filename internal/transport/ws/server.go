// Package ws serves the entity protocol over WebSocket: one HELLO/WELCOME
// handshake per connection, then binary edit blobs toward the domain loop and
// JSON control messages in both directions.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/domain"
)

type Server struct {
	domain *domain.Domain
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(d *domain.Domain, logger *log.Logger) *Server {
	return &Server{
		domain: d,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, skew, out := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case f, ok := <-out:
					if !ok {
						return
					}
					mt := websocket.TextMessage
					if f.Binary {
						mt = websocket.BinaryMessage
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(mt, f.Payload); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Binary frames are edit blobs; text frames are
		// CREATE/DELETE control messages.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			switch mt {
			case websocket.BinaryMessage:
				if len(msg) > protocol.MaxEditPacketSize {
					queueError(out, protocol.ErrCodeBadBlob, "edit too large")
					continue
				}
				s.domain.Inbox() <- domain.EditEnvelope{SessionID: sessionID, SkewUsec: skew, Buf: msg}
			case websocket.TextMessage:
				s.handleControl(ctx, sessionID, skew, msg, out)
			}
		}

		// Cleanup.
		s.domain.Leave() <- sessionID
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, skew int64, out chan domain.Outbound) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", 0, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrCodeBadRequest, Message: "expected HELLO"})
		return "", 0, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", 0, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrCodeVersionMismatch, Message: "want " + protocol.Version})
		return "", 0, nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	// skew is server minus client; a client that sends no clock opts out
	if hello.ClientClockUsec != 0 {
		skew = time.Now().UnixMicro() - int64(hello.ClientClockUsec)
	}

	// generous buffer so a full-table catch-up survives a slow start
	out = make(chan domain.Outbound, 1024)

	joinCtx, cancelJoin := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelJoin()
	resp, err := s.domain.Join(joinCtx, domain.JoinRequest{
		Name:     hello.ClientName,
		SkewUsec: skew,
		Out:      out,
	})
	if err != nil {
		s.log.Printf("join %q: %v", hello.ClientName, err)
		return "", 0, nil
	}

	// Welcome goes out before the writer goroutine starts draining out.
	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.domain.Leave() <- resp.SessionID
		return "", 0, nil
	}
	return resp.SessionID, skew, out
}

// handleControl serves CREATE and DELETE. Replies go through the out channel
// so only the writer goroutine touches the connection.
func (s *Server) handleControl(ctx context.Context, sessionID string, skew int64, msg []byte, out chan domain.Outbound) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		queueError(out, protocol.ErrCodeBadRequest, "not JSON")
		return
	}

	switch base.Type {
	case protocol.TypeCreate:
		var m protocol.CreateMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			queueError(out, protocol.ErrCodeBadRequest, "bad CREATE")
			return
		}
		// the seed's authored stamp moves into our clock frame before
		// the domain reads it, the same shift every edit gets
		if err := protocol.AdjustEditPacketForClockSkew(m.SeedBlob, skew); err != nil {
			queueError(out, protocol.ErrCodeBadBlob, "bad seed blob")
			return
		}
		id, err := s.domain.CreateEntity(ctx, sessionID, m.CreatorToken, m.SeedBlob)
		if err != nil {
			queueError(out, createErrorCode(err), err.Error())
			return
		}
		queueJSON(out, protocol.CreateAckMsg{
			Type:         protocol.TypeCreateAck,
			CreatorToken: m.CreatorToken,
			EntityID:     id.String(),
		})

	case protocol.TypeDelete:
		var m protocol.DeleteMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			queueError(out, protocol.ErrCodeBadRequest, "bad DELETE")
			return
		}
		id, err := uuid.Parse(m.EntityID)
		if err != nil {
			queueError(out, protocol.ErrCodeBadRequest, "bad entity_id")
			return
		}
		if err := s.domain.RequestDelete(ctx, sessionID, id); err != nil {
			queueError(out, deleteErrorCode(err), err.Error())
		}
		// success needs no ack: the domain echoes DELETE to everyone

	default:
		queueError(out, protocol.ErrCodeBadRequest, "unknown message type")
	}
}

func createErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenReused),
		errors.Is(err, domain.ErrUnknownSession):
		return protocol.ErrCodeBadRequest
	case errors.Is(err, protocol.ErrShortRead),
		errors.Is(err, protocol.ErrUnknownProperty),
		errors.Is(err, protocol.ErrUnknownEntityType),
		errors.Is(err, protocol.ErrNotEditPacket):
		return protocol.ErrCodeBadBlob
	default:
		return protocol.ErrCodeInternal
	}
}

func deleteErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownEntity):
		return protocol.ErrCodeUnknownEntity
	case errors.Is(err, domain.ErrEntityLocked):
		return protocol.ErrCodeLocked
	default:
		return protocol.ErrCodeInternal
	}
}

func queueJSON(out chan domain.Outbound, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	queueFrame(out, domain.Outbound{Payload: b})
}

func queueError(out chan domain.Outbound, code, message string) {
	queueJSON(out, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
}

// queueFrame never blocks the reader; under backpressure it drops the oldest
// frame, the same policy the domain applies.
func queueFrame(ch chan domain.Outbound, f domain.Outbound) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
