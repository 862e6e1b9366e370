package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activity is a processed inbound activity, kept for deduplication by URI.
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string
	ActorURI     string
	ObjectURI    string
	RawJSON      string
	Processed    bool
	Local        bool
	FromRelay    bool
	CreatedAt    time.Time
}

// DeliveryQueueItem is an outbound activity awaiting delivery to a remote
// inbox. Delivery success or failure never affects the local state change
// that produced the item.
type DeliveryQueueItem struct {
	Id           uuid.UUID
	InboxURI     string
	ActivityJSON string
	AccountId    uuid.UUID // local account whose key signs the request
	Attempts     int
	NextRetryAt  time.Time
	CreatedAt    time.Time
}
