package protocol

import "errors"

// Decode failures are all local and recoverable: the caller drops the buffer
// and carries on. Callers branch with errors.Is.
var (
	// ErrShortRead means a declared value ran past the end of the buffer.
	// The decoder stops at the first truncated property rather than guess.
	ErrShortRead = errors.New("entity data truncated")

	// ErrUnknownProperty means the presence flags carry a bit this build
	// does not know. Values are not self-describing, so the rest of the
	// buffer cannot be skipped over.
	ErrUnknownProperty = errors.New("unknown property flag")

	// ErrUnknownEntityType means the type byte is outside the closed enum.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrBudgetTooSmall means the byte budget cannot hold even the fixed
	// entity header.
	ErrBudgetTooSmall = errors.New("encode budget below header size")

	// ErrNotEditPacket means a buffer is too short to carry the fixed
	// edit-packet header.
	ErrNotEditPacket = errors.New("buffer too short for edit packet")
)
