package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/clock"
	"github.com/RyanDowne/hifi/internal/sim/entity"
)

// MaxEditPacketSize caps a single edit blob. Generous: it bounds rogue
// inputs, while the encoder's per-packet budget shapes real traffic.
const MaxEditPacketSize = 1 << 20

// BuildEditPacket encodes a carried property set as one edit blob for the
// entity. stampUsec is the author's clock reading at edit time and lands at
// the skew-adjustable offset.
func BuildEditPacket(id uuid.UUID, p *entity.Properties, stampUsec uint64) ([]byte, error) {
	res, err := appendBlob(id, p.EntityType, stampUsec, p, MaxEditPacketSize)
	if err != nil {
		return nil, err
	}
	if res.State != AppendCompleted {
		return nil, fmt.Errorf("edit for %s exceeds %d bytes", id, MaxEditPacketSize)
	}
	return res.Bytes, nil
}

// ReadEntityIDFromBuffer peeks the entity UUID without decoding the blob,
// for routing and dedup.
func ReadEntityIDFromBuffer(buf []byte) (uuid.UUID, error) {
	if len(buf) < typeOffset {
		return uuid.UUID{}, ErrNotEditPacket
	}
	var id uuid.UUID
	copy(id[:], buf[:typeOffset])
	return id, nil
}

// ReadEntityTypeFromBuffer peeks the type byte.
func ReadEntityTypeFromBuffer(buf []byte) (entity.Type, error) {
	if len(buf) < timestampOffset {
		return entity.TypeUnknown, ErrNotEditPacket
	}
	t := entity.Type(buf[typeOffset])
	if !t.Valid() {
		return entity.TypeUnknown, ErrUnknownEntityType
	}
	return t, nil
}

// ReadEditTimestamp peeks the authored stamp, sender clock frame.
func ReadEditTimestamp(buf []byte) (uint64, error) {
	if len(buf) < HeaderSize {
		return 0, ErrNotEditPacket
	}
	return binary.LittleEndian.Uint64(buf[timestampOffset : timestampOffset+8]), nil
}

// AdjustEditPacketForClockSkew rewrites the embedded stamp into the local
// clock frame, in place. skewUsec is local minus remote; relays call this
// before fanning an edit out so downstream receivers see local-frame time.
func AdjustEditPacketForClockSkew(buf []byte, skewUsec int64) error {
	if len(buf) < HeaderSize {
		return ErrNotEditPacket
	}
	t := binary.LittleEndian.Uint64(buf[timestampOffset : timestampOffset+8])
	binary.LittleEndian.PutUint64(buf[timestampOffset:timestampOffset+8], clock.AdjustUsec(t, skewUsec))
	return nil
}
