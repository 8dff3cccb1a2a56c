package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RyanDowne/hifi/internal/clock"
	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/domain"
	"github.com/RyanDowne/hifi/internal/sim/entity"
	"github.com/RyanDowne/hifi/internal/transport/ws"
)

const testEpoch = uint64(1_000_000_000_000)

type testRig struct {
	domain *domain.Domain
	clock  *clock.Manual
	http   *httptest.Server
	cancel context.CancelFunc
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	mc := clock.NewManual(testEpoch)
	d := domain.NewDomain(
		domain.Config{ID: "it", TickRateHz: 100},
		&domain.Context{Clock: mc, Log: log.New(io.Discard, "", 0)},
	)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = d.Run(ctx) }()

	srv := ws.NewServer(d, log.New(io.Discard, "", 0))
	hs := httptest.NewServer(srv.Handler())

	rig := &testRig{domain: d, clock: mc, http: hs, cancel: cancel}
	t.Cleanup(func() {
		hs.Close()
		cancel()
	})
	return rig
}

// dial connects and completes the HELLO/WELCOME handshake with skew opted
// out, so all stamps stay in the test clock frame.
func (r *testRig) dial(t *testing.T, name string) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.http.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: name}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("send HELLO: %v", err)
	}

	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read WELCOME: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.SessionID == "" {
		t.Fatalf("welcome = %+v", welcome)
	}
	return conn, welcome
}

// readUntil pumps frames until match reports done or the deadline hits.
func readUntil(t *testing.T, conn *websocket.Conn, what string, match func(mt int, payload []byte) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		mt, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if match(mt, payload) {
			return
		}
	}
	t.Fatalf("never saw %s", what)
}

func TestHandshakeRejectsVersionMismatch(t *testing.T) {
	rig := newRig(t)
	url := "ws" + strings.TrimPrefix(rig.http.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.9", ClientName: "old"}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("send HELLO: %v", err)
	}

	var msg protocol.ErrorMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if msg.Type != protocol.TypeError || msg.Code != protocol.ErrCodeVersionMismatch {
		t.Fatalf("reply = %+v, want %s", msg, protocol.ErrCodeVersionMismatch)
	}
}

func TestCreateEditDeleteOverWire(t *testing.T) {
	rig := newRig(t)
	author, _ := rig.dial(t, "author")
	watcher, _ := rig.dial(t, "watcher")

	// CREATE: seed under the nil UUID, ack carries the minted one
	props := entity.NewProperties(entity.TypeBox)
	props.Position = mgl32.Vec3{0.25, 0.25, 0.25}
	props.Mark(entity.PropPosition)
	seed, err := protocol.BuildEditPacket(uuid.Nil, props, rig.clock.NowUsec())
	if err != nil {
		t.Fatalf("build seed: %v", err)
	}
	create := protocol.CreateMsg{
		Type:            protocol.TypeCreate,
		ProtocolVersion: protocol.Version,
		CreatorToken:    1,
		SeedBlob:        seed,
	}
	if err := author.WriteJSON(create); err != nil {
		t.Fatalf("send CREATE: %v", err)
	}

	var entityID uuid.UUID
	readUntil(t, author, "CREATE_ACK", func(mt int, payload []byte) bool {
		if mt != websocket.TextMessage {
			return false
		}
		var ack protocol.CreateAckMsg
		if err := json.Unmarshal(payload, &ack); err != nil || ack.Type != protocol.TypeCreateAck {
			return false
		}
		if ack.CreatorToken != 1 {
			t.Fatalf("ack token = %d", ack.CreatorToken)
		}
		entityID = uuid.MustParse(ack.EntityID)
		return true
	})

	// the watcher hears about the new entity as a binary blob
	readUntil(t, watcher, "create broadcast", func(mt int, payload []byte) bool {
		if mt != websocket.BinaryMessage {
			return false
		}
		id, err := protocol.ReadEntityIDFromBuffer(payload)
		return err == nil && id == entityID
	})

	// EDIT: a binary blob moves the entity; the watcher gets the relay
	props = entity.NewProperties(entity.TypeBox)
	props.Position = mgl32.Vec3{0.5, 0.5, 0.5}
	props.Mark(entity.PropPosition)
	edit, err := protocol.BuildEditPacket(entityID, props, rig.clock.NowUsec()+10)
	if err != nil {
		t.Fatalf("build edit: %v", err)
	}
	if err := author.WriteMessage(websocket.BinaryMessage, edit); err != nil {
		t.Fatalf("send edit: %v", err)
	}

	readUntil(t, watcher, "edit relay", func(mt int, payload []byte) bool {
		if mt != websocket.BinaryMessage {
			return false
		}
		upd, _, err := protocol.ReadEntityData(payload)
		if err != nil || upd.ID != entityID {
			return false
		}
		return upd.Props.Changed().Has(entity.PropPosition) &&
			upd.Props.Position == (mgl32.Vec3{0.5, 0.5, 0.5})
	})

	// DELETE: echoed to both sessions as JSON
	if err := author.WriteJSON(protocol.DeleteMsg{Type: protocol.TypeDelete, EntityID: entityID.String()}); err != nil {
		t.Fatalf("send DELETE: %v", err)
	}
	for _, conn := range []*websocket.Conn{author, watcher} {
		readUntil(t, conn, "delete echo", func(mt int, payload []byte) bool {
			if mt != websocket.TextMessage {
				return false
			}
			var m protocol.DeleteMsg
			return json.Unmarshal(payload, &m) == nil &&
				m.Type == protocol.TypeDelete && m.EntityID == entityID.String()
		})
	}
}

func TestDeleteUnknownEntityAnswersError(t *testing.T) {
	rig := newRig(t)
	conn, _ := rig.dial(t, "lonely")

	if err := conn.WriteJSON(protocol.DeleteMsg{Type: protocol.TypeDelete, EntityID: uuid.New().String()}); err != nil {
		t.Fatalf("send DELETE: %v", err)
	}
	readUntil(t, conn, "error reply", func(mt int, payload []byte) bool {
		if mt != websocket.TextMessage {
			return false
		}
		var m protocol.ErrorMsg
		return json.Unmarshal(payload, &m) == nil &&
			m.Type == protocol.TypeError && m.Code == protocol.ErrCodeUnknownEntity
	})
}
