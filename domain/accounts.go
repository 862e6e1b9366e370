package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a local or federated user. Local accounts have an
// empty Domain; remote accounts carry their canonical actor URI.
type Account struct {
	Id             uuid.UUID
	Username       string
	Domain         string // empty for local accounts
	URI            string // canonical actor URI (minted from the host for local accounts)
	DisplayName    string
	Summary        string
	InboxURI       string
	SharedInboxURI string
	FollowersURI   string
	FeaturedURI    string // featured collection (pins)
	PublicKeyPem   string
	WebPrivateKey  string // local accounts only
	AvatarURL      string
	Locked         bool // follows require approval
	Silenced       bool // inbound follows become requests
	AlsoKnownAs    []string
	MovedToId      *uuid.UUID // successor account after a Move, terminal
	LastFetchedAt  time.Time
	CreatedAt      time.Time
}

// IsLocal reports whether the account lives on this server.
func (a *Account) IsLocal() bool {
	return a.Domain == ""
}

// Block represents a block edge between two accounts.
type Block struct {
	Id              uuid.UUID
	AccountId       uuid.UUID // who blocks
	TargetAccountId uuid.UUID // who is blocked
	URI             string
	CreatedAt       time.Time
}

// DomainBlock is a server-level moderation rule for a remote domain.
type DomainBlock struct {
	Id            uuid.UUID
	Domain        string
	RejectFollows bool // inbound follows from this domain become requests
	CreatedAt     time.Time
}
