package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleAnnounce materializes a reblog. The boost only becomes local state
// when the sender matters here: a local account follows them, the boosted
// status belongs to a local account, or the activity arrived through an
// accepted relay. Irrelevant boosts are valid but dropped.
func handleAnnounce(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	if act.ID == "" {
		return nil
	}

	// Duplicate delivery of the same boost is a refresh, not a new row
	if err, existing := deps.Database.ReadStatusByURI(act.ID); err == nil && existing != nil {
		return nil
	}

	resolver := NewResolver(deps)
	objRef := NewReference(act.Object)
	original := resolver.Status(objRef)

	relevant, err := announceIsRelevant(sender, original, pctx, deps)
	if err != nil {
		return fmt.Errorf("failed to evaluate announce relevance: %w", err)
	}
	if !relevant {
		log.Printf("Inbox: Announce from %s has no local relevance, ignoring", sender.Username)
		return nil
	}

	// Only synthesize a fallback row once the boost has cleared the gate
	if original == nil {
		original = syntheticAnnounceTarget(objRef, sender, resolver)
	}
	if original == nil {
		log.Printf("Inbox: Announce target unresolvable, ignoring")
		return nil
	}

	audience := ResolveAudience(act.To, act.Cc, sender.FollowersURI)
	reblog := &domain.Status{
		Id:         uuid.New(),
		URI:        act.ID,
		AccountId:  sender.Id,
		Visibility: audience.Visibility,
		ReblogOfId: &original.Id,
		CreatedAt:  time.Now(),
	}
	if err := deps.Database.CreateStatus(reblog, nil, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to store reblog: %w", err)
	}

	log.Printf("Inbox: %s boosted %s", sender.Username, original.URI)
	return nil
}

// syntheticAnnounceTarget builds a minimal status row for a boost target
// that could not be fetched as structured content. The author comes from
// an inlined attributedTo when present, defaulting to the booster itself
// (a self-boost with missing attribution).
func syntheticAnnounceTarget(objRef Reference, sender *domain.Account, r *Resolver) *domain.Status {
	if objRef.URI == "" {
		return nil
	}

	author := sender
	if attributedTo := objRef.Str("attributedTo"); attributedTo != "" {
		if resolved := r.Account(NewReference(attributedTo)); resolved != nil {
			author = resolved
		}
	}

	status := &domain.Status{
		Id:         uuid.New(),
		URI:        objRef.URI,
		AccountId:  author.Id,
		Text:       objRef.Str("content"),
		Visibility: domain.VisibilityUnlisted,
		CreatedAt:  time.Now(),
	}
	if err := r.deps.Database.CreateStatus(status, nil, nil, nil, nil); err != nil {
		if readErr, existing := r.deps.Database.ReadStatusByURI(objRef.URI); readErr == nil && existing != nil {
			return existing
		}
		return nil
	}
	return status
}

// announceIsRelevant applies the boost relevance gate. original may be
// nil when the target could not be resolved as structured content.
func announceIsRelevant(sender *domain.Account, original *domain.Status, pctx *ProcessingContext, deps *Deps) (bool, error) {
	if pctx.Relay != nil && pctx.Relay.State == domain.RelayStateAccepted {
		return true, nil
	}

	if original != nil {
		err, author := deps.Database.ReadAccountById(original.AccountId)
		if err == nil && author != nil && author.IsLocal() {
			return true, nil
		}
	}

	count, err := deps.Database.CountLocalFollowersOf(sender.Id)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
