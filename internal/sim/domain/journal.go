package domain

import "github.com/google/uuid"

// Op values for journal rows and logged entries.
const (
	OpCreate = "create"
	OpEdit   = "edit"
	OpDelete = "delete"
)

// EditJournal records one row per accepted mutation. Implemented in
// internal/persistence/journal.
type EditJournal interface {
	WriteEdit(e JournalEdit) error
}

type JournalEdit struct {
	ReceivedUsec uint64
	Op           string
	SessionID    string
	EntityID     uuid.UUID
	EntityType   string
	Flags        uint64
	BlobBytes    int
}

// EditLog streams accepted mutations for replay. Blobs are stored in the
// local clock frame (skew already applied), so a replay runs them with zero
// skew. Lifetime expiry is not logged; replays re-derive it from the clock.
// Implemented in internal/persistence/editlog.
type EditLog interface {
	WriteEdit(e LoggedEdit) error
}

// LoggedEdit is one accepted mutation. OpCreate carries a blob stamped with
// the minted UUID, OpEdit carries the adjusted edit blob, OpDelete carries
// only EntityID.
type LoggedEdit struct {
	ReceivedUsec uint64 `json:"received_usec"`
	Op           string `json:"op"`
	SessionID    string `json:"session_id"`
	EntityID     string `json:"entity_id,omitempty"`
	Blob         []byte `json:"blob,omitempty"` // base64 via encoding/json
}
