package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status visibility levels, in decreasing reach.
const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"
	VisibilityLimited  = "limited"
	VisibilityDirect   = "direct"
)

// Quote approval policies a status can carry.
const (
	QuotePolicyPublic    = "public"
	QuotePolicyFollowers = "followers"
	QuotePolicyNobody    = "nobody"
)

// Status is a local or federated post. Reblogs point at the original via
// ReblogOfId; replies point at their parent via InReplyToId. Both are ids
// into the store, never owned object graphs.
type Status struct {
	Id                  uuid.UUID
	URI                 string // globally unique among non-empty values
	AccountId           uuid.UUID
	Text                string
	Visibility          string
	Sensitive           bool
	SpoilerText         string
	ReblogOfId          *uuid.UUID
	InReplyToId         *uuid.UUID
	ConversationURI     string
	QuoteApprovalPolicy string
	CreatedAt           time.Time
	EditedAt            *time.Time
}

// Mention links a status to an addressed account. Silent mentions are
// delivered but not rendered in the body.
type Mention struct {
	Id        uuid.UUID
	StatusId  uuid.UUID
	AccountId uuid.UUID
	Silent    bool
}

// Tag is a hashtag attached to a status, stored normalized.
type Tag struct {
	Id       uuid.UUID
	StatusId uuid.UUID
	Name     string
}

// MediaAttachment carries a remote media reference with its accessibility
// description and optional focal point ("x,y").
type MediaAttachment struct {
	Id          uuid.UUID
	StatusId    uuid.UUID
	URL         string
	MediaType   string
	Description string
	FocalPoint  string
	Blurhash    string
}

// Emoji is a custom emoji used by a status or reaction.
type Emoji struct {
	Id        uuid.UUID
	StatusId  uuid.UUID
	Shortcode string
	ImageURL  string
}

// Poll belongs to a question-type status.
type Poll struct {
	Id        uuid.UUID
	StatusId  uuid.UUID
	Options   []string
	Tallies   []int // parallel to Options
	Multiple  bool
	ExpiresAt *time.Time
}

// PollVote is uniquely identified by (PollId, VoterURI).
type PollVote struct {
	Id          uuid.UUID
	PollId      uuid.UUID
	VoterURI    string
	OptionIndex int
	CreatedAt   time.Time
}

// Favourite is a like or emoji reaction on a status.
type Favourite struct {
	Id            uuid.UUID
	AccountId     uuid.UUID
	StatusId      uuid.UUID
	URI           string
	Emoji         string // unicode emoji or :shortcode:, empty for plain likes
	EmojiImageURL string // custom emoji image, if any
	CreatedAt     time.Time
}

// StatusPin marks a status as featured on its owner's profile.
type StatusPin struct {
	Id        uuid.UUID
	AccountId uuid.UUID
	StatusId  uuid.UUID
	CreatedAt time.Time
}

// Quote states.
const (
	QuoteStatePending  = "pending"
	QuoteStateAccepted = "accepted"
	QuoteStateRejected = "rejected"
)

// Quote is an edge from a quoting status to the status it quotes.
type Quote struct {
	Id             uuid.UUID
	StatusId       uuid.UUID // the quoting status
	QuotedStatusId uuid.UUID
	State          string
	URI            string
	CreatedAt      time.Time
}
