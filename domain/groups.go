package domain

import (
	"time"

	"github.com/google/uuid"
)

// Group is a group-style actor, local or remote.
type Group struct {
	Id         uuid.UUID
	URI        string
	Domain     string // empty for local groups
	Name       string
	InboxURI   string
	MembersURI string // members collection, target of Add/Remove notices
	Locked     bool   // joins require approval
	Suspended  bool
	CreatedAt  time.Time
}

// Membership is an active group membership, upserted by URI like a Follow.
type Membership struct {
	Id        uuid.UUID
	AccountId uuid.UUID
	GroupId   uuid.UUID
	URI       string
	CreatedAt time.Time
}

// MembershipRequest is a pending join awaiting group approval.
type MembershipRequest struct {
	Id        uuid.UUID
	AccountId uuid.UUID
	GroupId   uuid.UUID
	URI       string
	CreatedAt time.Time
}

// GroupBlock bars an account from joining a group.
type GroupBlock struct {
	Id        uuid.UUID
	GroupId   uuid.UUID
	AccountId uuid.UUID
	CreatedAt time.Time
}
