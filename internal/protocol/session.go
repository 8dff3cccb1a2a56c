package protocol

import "encoding/json"

const Version = "1.0"

// Control messages travel as JSON text frames; entity data and edit blobs
// travel as binary frames. Message types.
const (
	TypeHello     = "HELLO"
	TypeWelcome   = "WELCOME"
	TypeCreate    = "CREATE"
	TypeCreateAck = "CREATE_ACK"
	TypeDelete    = "DELETE"
	TypeError     = "ERROR"
)

// Wire error codes carried by ERROR messages.
const (
	ErrCodeBadRequest      = "E_BAD_REQUEST"
	ErrCodeVersionMismatch = "E_VERSION_MISMATCH"
	ErrCodeUnknownEntity   = "E_UNKNOWN_ENTITY"
	ErrCodeBadBlob         = "E_BAD_BLOB"
	ErrCodeLocked          = "E_LOCKED"
	ErrCodeInternal        = "E_INTERNAL"
)

// BaseMessage lets us route JSON messages by type before full decode.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// ClientClockUsec is the sender's clock at send time; the server
	// estimates session skew from it.
	ClientClockUsec uint64 `json:"client_clock_usec"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ServerClockUsec uint64 `json:"server_clock_usec"`
	// SkewUsec is the server's estimate of server minus client clock;
	// clients apply it to stamps they receive.
	SkewUsec       int64   `json:"skew_usec"`
	TreeScale      float32 `json:"tree_scale"`
	MaxPacketBytes int     `json:"max_packet_bytes"`
}

// CREATE (client -> server). The seed blob is a full entity data blob with a
// nil UUID; the server mints the real one and answers with CREATE_ACK.
type CreateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// CreatorToken correlates this request with the CREATE_ACK; the
	// client picks it and must not reuse it within the session.
	CreatorToken uint32 `json:"creator_token"`
	SeedBlob     []byte `json:"seed_blob"` // base64 via encoding/json
}

// CREATE_ACK (server -> client)
type CreateAckMsg struct {
	Type         string `json:"type"`
	CreatorToken uint32 `json:"creator_token"`
	EntityID     string `json:"entity_id"`
}

// DELETE (either direction; the server echoes deletions to everyone)
type DeleteMsg struct {
	Type     string `json:"type"`
	EntityID string `json:"entity_id"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
