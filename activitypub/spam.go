package activitypub

import "github.com/deemkeen/mammut/domain"

// CreateSignals are the facts the Create handler gathers for the spam
// decision. The policy sees signals, never raw thresholds baked into the
// handler.
type CreateSignals struct {
	Sender *domain.Account
	// Local accounts mentioned by the message that have no follow
	// relationship with the sender in either direction.
	UnrelatedLocalMentions int
	// Local accounts following the sender.
	LocalFollowers int
	// The message is a reply into an existing local thread.
	InReplyToLocal bool
}

// SpamPolicy is the pluggable gate consulted before a remote Create is
// persisted. Returning false drops the message without a status row.
type SpamPolicy interface {
	AllowCreate(sig CreateSignals) bool
}

// defaultSpamPolicy rejects cold-contact mention spam: a remote sender
// nobody here follows, mass-mentioning locals it has no relationship
// with.
type defaultSpamPolicy struct {
	minUnrelatedMentions int
}

// DefaultSpamPolicy returns the stock policy.
func DefaultSpamPolicy() SpamPolicy {
	return &defaultSpamPolicy{minUnrelatedMentions: 2}
}

func (p *defaultSpamPolicy) AllowCreate(sig CreateSignals) bool {
	if sig.Sender == nil || sig.Sender.IsLocal() {
		return true
	}
	if sig.LocalFollowers > 0 || sig.InReplyToLocal {
		return true
	}
	return sig.UnrelatedLocalMentions < p.minUnrelatedMentions
}

// AllowAllSpamPolicy disables the gate, for deployments that filter
// elsewhere.
type AllowAllSpamPolicy struct{}

func (AllowAllSpamPolicy) AllowCreate(CreateSignals) bool { return true }
