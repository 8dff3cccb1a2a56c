package protocol

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/sim/entity"
)

// Entity data blob layout:
//
//	[0:16)  entity UUID
//	[16]    entity type byte
//	[17:25) lastEdited, usecs, sender clock frame, little-endian
//	[25:..) presence flags (uvarint over PropertyFlags), then the present
//	        property values back to back in canonical PropertyID order
//
// The timestamp sits at a fixed offset so relays can rewrite it for clock
// skew without decoding the rest (see AdjustEditPacketForClockSkew). The
// flags varint comes after the fixed header, so everything before the values
// is position-stable.
const (
	typeOffset      = 16
	timestampOffset = 17

	// HeaderSize is the fixed prefix before the presence flags.
	HeaderSize = 25
)

// AppendState says how much of an encode request made it into the blob.
type AppendState uint8

const (
	// AppendCompleted: every requested property was written.
	AppendCompleted AppendState = iota
	// AppendPartial: some fit, the rest are in DidntFit.
	AppendPartial
	// AppendNone: nothing fit; no bytes were produced.
	AppendNone
)

func (s AppendState) String() string {
	switch s {
	case AppendCompleted:
		return "completed"
	case AppendPartial:
		return "partial"
	case AppendNone:
		return "none"
	}
	return "invalid"
}

// EncodeParams bounds one entity encode attempt.
type EncodeParams struct {
	// Requested selects the properties to encode; zero means everything
	// the entity's type supports. Requests outside the type's set are
	// silently dropped, never failed.
	Requested entity.PropertyFlags

	// Budget is the maximum size of the returned blob in bytes.
	Budget int
}

// EncodeResult reports what the encoder produced. Written and DidntFit
// partition the effective request; Bytes is nil when State is AppendNone.
type EncodeResult struct {
	Bytes    []byte
	Written  entity.PropertyFlags
	DidntFit entity.PropertyFlags
	State    AppendState
}

// AppendEntityData encodes a record's current state, best effort within the
// byte budget. Properties are attempted in canonical order; one that does not
// fit is skipped whole (a blob never carries partial values) and reported in
// DidntFit so the caller can retry it in a later packet. The encode path only
// reads the record.
func AppendEntityData(rec *entity.Record, params EncodeParams) (EncodeResult, error) {
	requested := params.Requested
	if requested.IsEmpty() {
		requested = entity.PropertiesForType(rec.Type())
	}
	snap := rec.Snapshot(requested)
	return appendBlob(rec.ID().ID, rec.Type(), rec.LastEdited(), snap, params.Budget)
}

// appendBlob assembles the final buffer only after the greedy fit pass, so an
// omitted property leaves no partial bytes behind.
func appendBlob(id uuid.UUID, typ entity.Type, stamp uint64, snap *entity.Properties, budget int) (EncodeResult, error) {
	if !typ.Valid() {
		return EncodeResult{State: AppendNone}, fmt.Errorf("encode entity %s: %w", id, ErrUnknownEntityType)
	}
	if budget < HeaderSize+1 {
		return EncodeResult{State: AppendNone}, fmt.Errorf("encode entity %s: %w", id, ErrBudgetTooSmall)
	}

	requested := snap.Changed()
	var written, didntFit entity.PropertyFlags
	values := make([]byte, 0, 64)

	for _, prop := range requested.Props() {
		chunk := appendPropertyValue(nil, snap, prop)
		candidate := written.With(prop)
		need := HeaderSize + uvarintLen(uint64(candidate)) + len(values) + len(chunk)
		if need > budget {
			didntFit = didntFit.With(prop)
			continue
		}
		values = append(values, chunk...)
		written = candidate
	}

	if written.IsEmpty() && !requested.IsEmpty() {
		return EncodeResult{DidntFit: didntFit, State: AppendNone}, nil
	}

	buf := make([]byte, 0, HeaderSize+uvarintLen(uint64(written))+len(values))
	buf = append(buf, id[:]...)
	buf = append(buf, byte(typ))
	buf = appendU64(buf, stamp)
	buf = appendUvarint(buf, uint64(written))
	buf = append(buf, values...)

	state := AppendCompleted
	if !didntFit.IsEmpty() {
		state = AppendPartial
	}
	return EncodeResult{Bytes: buf, Written: written, DidntFit: didntFit, State: state}, nil
}

// Update is one decoded entity blob. LastEdited is still in the sender's
// clock frame; apply adjusts it.
type Update struct {
	ID         uuid.UUID
	EntityType entity.Type
	LastEdited uint64
	Props      *entity.Properties
}

// ReadEntityData decodes one blob from the front of buf and returns the bytes
// consumed. Truncation surfaces as ErrShortRead without consuming anything;
// flag bits this build does not know are fatal for the buffer because values
// are not self-describing.
func ReadEntityData(buf []byte) (*Update, int, error) {
	r := &reader{buf: buf}

	id, err := r.readUUID()
	if err != nil {
		return nil, 0, fmt.Errorf("entity header: %w", err)
	}
	typeByte, err := r.readU8()
	if err != nil {
		return nil, 0, fmt.Errorf("entity %s: %w", id, err)
	}
	typ := entity.Type(typeByte)
	if !typ.Valid() {
		return nil, 0, fmt.Errorf("entity %s: type byte %d: %w", id, typeByte, ErrUnknownEntityType)
	}
	stamp, err := r.readU64()
	if err != nil {
		return nil, 0, fmt.Errorf("entity %s: %w", id, err)
	}
	rawFlags, err := r.readUvarint()
	if err != nil {
		return nil, 0, fmt.Errorf("entity %s: %w", id, err)
	}
	flags := entity.PropertyFlags(rawFlags)
	if unknown := flags.Minus(entity.KnownPropertyMask()); !unknown.IsEmpty() {
		return nil, 0, fmt.Errorf("entity %s: flag bits %#x: %w", id, uint64(unknown), ErrUnknownProperty)
	}

	props := entity.NewProperties(typ)
	props.LastEdited = stamp
	for _, prop := range flags.Props() {
		if err := readPropertyValue(r, props, prop); err != nil {
			return nil, 0, fmt.Errorf("entity %s: property %s: %w", id, prop, err)
		}
		props.Mark(prop)
	}

	return &Update{ID: id, EntityType: typ, LastEdited: stamp, Props: props}, r.off, nil
}
