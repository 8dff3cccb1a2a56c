package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RyanDowne/hifi/internal/protocol"
	"github.com/RyanDowne/hifi/internal/sim/entity"
	"github.com/RyanDowne/hifi/internal/units"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8447/v1/ws", "ws url")
		name     = flag.String("name", "bot", "client name")
		count    = flag.Int("count", 3, "entities to create")
		interval = flag.Duration("interval", 250*time.Millisecond, "edit cadence")
		radius   = flag.Float64("radius", 2.0, "orbit radius in meters")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		ClientClockUsec: uint64(time.Now().UnixMicro()),
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		logger.Fatalf("expected WELCOME, got %q", welcome.Type)
	}
	logger.Printf("WELCOME session=%s skew=%dus tree_scale=%.0f budget=%d",
		welcome.SessionID, welcome.SkewUsec, welcome.TreeScale, welcome.MaxPacketBytes)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	centers := make(map[uint32]mgl32.Vec3, *count)
	for token := uint32(1); token <= uint32(*count); token++ {
		center := mgl32.Vec3{
			float32(rng.Float64()*100 + 50),
			float32(rng.Float64()*10 + 1),
			float32(rng.Float64()*100 + 50),
		}
		centers[token] = center
		seed, err := seedBlob(center, rng)
		if err != nil {
			logger.Fatalf("build seed: %v", err)
		}
		create := protocol.CreateMsg{
			Type:            protocol.TypeCreate,
			ProtocolVersion: protocol.Version,
			CreatorToken:    token,
			SeedBlob:        seed,
		}
		if err := conn.WriteJSON(create); err != nil {
			logger.Fatalf("send CREATE: %v", err)
		}
	}

	events := make(chan event, 64)
	go readLoop(conn, events)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	entities := make(map[uint32]uuid.UUID, *count)
	var (
		phase   float64
		ticks   uint64
		updates uint64
	)
	for {
		select {
		case <-stop:
			// best effort; the server drops us on disconnect anyway
			for _, id := range entities {
				_ = conn.WriteJSON(protocol.DeleteMsg{Type: protocol.TypeDelete, EntityID: id.String()})
			}
			return

		case ev := <-events:
			switch {
			case ev.err != nil:
				logger.Printf("read: %v", ev.err)
				return
			case ev.ack != nil:
				id, err := uuid.Parse(ev.ack.EntityID)
				if err != nil {
					logger.Printf("bad CREATE_ACK id %q", ev.ack.EntityID)
					continue
				}
				entities[ev.ack.CreatorToken] = id
				logger.Printf("CREATE_ACK token=%d entity=%s", ev.ack.CreatorToken, id)
			case ev.del != nil:
				logger.Printf("DELETE %s", ev.del.EntityID)
				for token, id := range entities {
					if id.String() == ev.del.EntityID {
						delete(entities, token)
					}
				}
			case ev.errMsg != nil:
				logger.Printf("ERROR %s: %s", ev.errMsg.Code, ev.errMsg.Message)
			case ev.update != nil:
				updates++
			}

		case <-ticker.C:
			phase += 2 * math.Pi * interval.Seconds() / 8.0
			for token, id := range entities {
				center := centers[token]
				p := entity.NewProperties(entity.TypeBox)
				theta := phase + float64(token)
				x := center[0] + float32(*radius*math.Cos(theta))
				z := center[2] + float32(*radius*math.Sin(theta))
				p.Position = units.Vec3MetersToDomainUnits(mgl32.Vec3{x, center[1], z})
				p.Mark(entity.PropPosition)
				blob, err := protocol.BuildEditPacket(id, p, uint64(time.Now().UnixMicro()))
				if err != nil {
					logger.Printf("build edit: %v", err)
					continue
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, blob); err != nil {
					logger.Printf("write edit: %v", err)
					return
				}
			}
			ticks++
			if ticks%40 == 0 {
				logger.Printf("entities=%d updates_seen=%d", len(entities), updates)
			}
		}
	}
}

func seedBlob(centerMeters mgl32.Vec3, rng *rand.Rand) ([]byte, error) {
	p := entity.NewProperties(entity.TypeBox)
	p.Position = units.Vec3MetersToDomainUnits(centerMeters)
	p.Dimensions = units.Vec3MetersToDomainUnits(mgl32.Vec3{0.5, 0.5, 0.5})
	p.Color = entity.Color{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256))}
	p.Mark(entity.PropPosition, entity.PropDimensions, entity.PropColor)
	return protocol.BuildEditPacket(uuid.Nil, p, uint64(time.Now().UnixMicro()))
}

type event struct {
	ack    *protocol.CreateAckMsg
	del    *protocol.DeleteMsg
	errMsg *protocol.ErrorMsg
	update *protocol.Update
	err    error
}

func readLoop(conn *websocket.Conn, events chan<- event) {
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			events <- event{err: err}
			return
		}
		if mt == websocket.BinaryMessage {
			upd, _, err := protocol.ReadEntityData(msg)
			if err != nil {
				continue
			}
			events <- event{update: upd}
			continue
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeCreateAck:
			var m protocol.CreateAckMsg
			if json.Unmarshal(msg, &m) == nil {
				events <- event{ack: &m}
			}
		case protocol.TypeDelete:
			var m protocol.DeleteMsg
			if json.Unmarshal(msg, &m) == nil {
				events <- event{del: &m}
			}
		case protocol.TypeError:
			var m protocol.ErrorMsg
			if json.Unmarshal(msg, &m) == nil {
				events <- event{errMsg: &m}
			}
		}
	}
}
