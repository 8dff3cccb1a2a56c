package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// ItemID is the identity surface shared with collaborators: the server-issued
// UUID once known, and the client-chosen creator token used to correlate the
// entity before the UUID arrives. Collaborators must treat unknown-ID records
// as distinct identities until resolved.
type ItemID struct {
	ID           uuid.UUID
	CreatorToken uint32
}

// UnknownCreatorToken marks records that never went through the token flow
// (server-created or archive-loaded).
const UnknownCreatorToken uint32 = 0xFFFFFFFF

// NewItemID returns a known identity with a fresh UUID.
func NewItemID() ItemID {
	return ItemID{ID: uuid.New(), CreatorToken: UnknownCreatorToken}
}

// PendingItemID returns an unknown identity correlated only by token.
func PendingItemID(token uint32) ItemID {
	return ItemID{ID: uuid.Nil, CreatorToken: token}
}

// IsKnown reports whether the authoritative UUID has been assigned.
func (id ItemID) IsKnown() bool { return id.ID != uuid.Nil }

func (id ItemID) String() string {
	if id.IsKnown() {
		return id.ID.String()
	}
	return fmt.Sprintf("token:%d", id.CreatorToken)
}
