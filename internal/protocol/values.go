package protocol

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/sim/entity"
)

// Primitive value layouts. Everything multi-byte is little-endian. Vectors
// are three float32s (x,y,z), quaternions four (x,y,z,w), strings a uint16
// byte length followed by UTF-8, colors three raw bytes (r,g,b), bools one
// byte. These layouts must round-trip exactly; nothing here compresses.

const maxStringLen = math.MaxUint16

func appendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func appendU64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

func appendF32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

func appendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

func appendVec3(dst []byte, v mgl32.Vec3) []byte {
	dst = appendF32(dst, v[0])
	dst = appendF32(dst, v[1])
	return appendF32(dst, v[2])
}

func appendQuat(dst []byte, q mgl32.Quat) []byte {
	dst = appendF32(dst, q.V[0])
	dst = appendF32(dst, q.V[1])
	dst = appendF32(dst, q.V[2])
	return appendF32(dst, q.W)
}

// appendString writes a uint16 length prefix. Oversized strings truncate at
// the prefix limit; local state should never get near it.
func appendString(dst []byte, s string) []byte {
	if len(s) > maxStringLen {
		s = s[:maxStringLen]
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

func appendColor(dst []byte, c entity.Color) []byte {
	return append(dst, c.R, c.G, c.B)
}

// reader is a cursor over one received buffer. Every read either returns the
// value or ErrShortRead; the cursor never moves past the end.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) readBytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, ErrShortRead
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) readU8() (byte, error) {
	b, err := r.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readBool() (bool, error) {
	b, err := r.readU8()
	return b != 0, err
}

func (r *reader) readU16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readU64() (uint64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) readF32() (float32, error) {
	v, err := r.readU32()
	return math.Float32frombits(v), err
}

func (r *reader) readVec3() (mgl32.Vec3, error) {
	var v mgl32.Vec3
	for i := 0; i < 3; i++ {
		f, err := r.readF32()
		if err != nil {
			return mgl32.Vec3{}, err
		}
		v[i] = f
	}
	return v, nil
}

func (r *reader) readQuat() (mgl32.Quat, error) {
	var q mgl32.Quat
	for i := 0; i < 3; i++ {
		f, err := r.readF32()
		if err != nil {
			return mgl32.Quat{}, err
		}
		q.V[i] = f
	}
	w, err := r.readF32()
	if err != nil {
		return mgl32.Quat{}, err
	}
	q.W = w
	return q, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readU16()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) readColor() (entity.Color, error) {
	b, err := r.readBytes(3)
	if err != nil {
		return entity.Color{}, err
	}
	return entity.Color{R: b[0], G: b[1], B: b[2]}, nil
}

func (r *reader) readUUID() (uuid.UUID, error) {
	b, err := r.readBytes(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

// readUvarint treats a malformed varint the same as a truncated one: the
// buffer is undecodable either way.
func (r *reader) readUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return 0, ErrShortRead
	}
	r.off += n
	return v, nil
}

func appendUvarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
