package domain

import (
	"time"

	"github.com/google/uuid"
)

// Follow is an active follow relationship. At most one exists per
// (account, target) pair; the URI always tracks the latest inbound Follow
// activity so a re-sent Follow updates instead of duplicating.
type Follow struct {
	Id              uuid.UUID
	AccountId       uuid.UUID // the follower
	TargetAccountId uuid.UUID // the account being followed
	URI             string
	CreatedAt       time.Time
}

// FollowRequest is a pending follow awaiting approval. Mutually exclusive
// with a Follow for the same pair.
type FollowRequest struct {
	Id              uuid.UUID
	AccountId       uuid.UUID
	TargetAccountId uuid.UUID
	URI             string
	CreatedAt       time.Time
}

// Relay states.
const (
	RelayStatePending  = "pending"
	RelayStateAccepted = "accepted"
	RelayStateRejected = "rejected"
)

// Relay represents a subscription to an ActivityPub relay service.
// Accept/Reject activities are matched against FollowURI.
type Relay struct {
	Id         uuid.UUID
	ActorURI   string
	InboxURI   string
	FollowURI  string // the URI of our Follow activity
	State      string
	CreatedAt  time.Time
	AcceptedAt *time.Time
}
