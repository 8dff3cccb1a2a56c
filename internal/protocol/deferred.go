package protocol

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"github.com/RyanDowne/hifi/internal/sim/entity"
)

// EncodeState tracks, per destination, the properties that missed earlier
// packets so later packets can retry them. One instance lives next to each
// peer session and is only touched by the goroutine that encodes for that
// peer.
type EncodeState struct {
	pending map[uuid.UUID]*deferred
}

type deferred struct {
	flags entity.PropertyFlags
	since uint64 // first deferral, usec; sticks until the entry drains
}

func NewEncodeState() *EncodeState {
	return &EncodeState{pending: make(map[uuid.UUID]*deferred)}
}

// Defer records properties that did not fit this packet.
func (s *EncodeState) Defer(id uuid.UUID, flags entity.PropertyFlags, nowUsec uint64) {
	if flags.IsEmpty() {
		return
	}
	if d, ok := s.pending[id]; ok {
		d.flags = d.flags.Union(flags)
		return
	}
	s.pending[id] = &deferred{flags: flags, since: nowUsec}
}

// Sent clears properties that made it to the wire; a fully drained entity
// drops out of the table.
func (s *EncodeState) Sent(id uuid.UUID, written entity.PropertyFlags) {
	d, ok := s.pending[id]
	if !ok {
		return
	}
	d.flags = d.flags.Minus(written)
	if d.flags.IsEmpty() {
		delete(s.pending, id)
	}
}

// Pending reports what is still owed for one entity.
func (s *EncodeState) Pending(id uuid.UUID) entity.PropertyFlags {
	if d, ok := s.pending[id]; ok {
		return d.flags
	}
	return 0
}

// Forget drops an entity's debt entirely, for deletions.
func (s *EncodeState) Forget(id uuid.UUID) { delete(s.pending, id) }

func (s *EncodeState) Len() int { return len(s.pending) }

// RetryOrder lists indebted entities oldest debt first, so properties that
// keep missing packets drain before newly deferred ones instead of starving.
// Equal ages order by ID for determinism.
func (s *EncodeState) RetryOrder() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		di, dj := s.pending[ids[i]], s.pending[ids[j]]
		if di.since != dj.since {
			return di.since < dj.since
		}
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}
