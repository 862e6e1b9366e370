package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleAccept promotes a pending follow request to an active
// relationship. The Accept's actor is the original Follow's target; the
// object is either the inlined Follow (matched by actor/object pair) or a
// bare URI (matched against the stored request URI). Accepts from a
// pending relay transition the relay instead.
func handleAccept(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	objRef := NewReference(act.Object)

	if done, err := resolveRelayReply(objRef, sender, domain.RelayStateAccepted, deps); done || err != nil {
		return err
	}

	req := findFollowRequest(objRef, sender, deps)
	if req == nil {
		log.Printf("Inbox: Accept from %s matched no follow request", sender.Username)
		return nil
	}

	follow := &domain.Follow{
		Id:              uuid.New(),
		AccountId:       req.AccountId,
		TargetAccountId: req.TargetAccountId,
		URI:             req.URI, // the original follow activity stays the edge's identity
		CreatedAt:       time.Now(),
	}
	if err := deps.Database.UpsertFollow(follow); err != nil {
		return fmt.Errorf("failed to promote follow request: %w", err)
	}
	if err := deps.Database.DeleteFollowRequestByAccountIds(req.AccountId, req.TargetAccountId); err != nil {
		return fmt.Errorf("failed to remove follow request: %w", err)
	}

	log.Printf("Inbox: %s accepted follow request %s", sender.Username, req.URI)
	return nil
}

// handleReject removes the matching follow request or active relationship
// without creating anything. Rejects from a pending relay transition the
// relay instead.
func handleReject(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	objRef := NewReference(act.Object)

	if done, err := resolveRelayReply(objRef, sender, domain.RelayStateRejected, deps); done || err != nil {
		return err
	}

	if req := findFollowRequest(objRef, sender, deps); req != nil {
		if err := deps.Database.DeleteFollowRequestByAccountIds(req.AccountId, req.TargetAccountId); err != nil {
			return fmt.Errorf("failed to remove rejected follow request: %w", err)
		}
		log.Printf("Inbox: %s rejected follow request %s", sender.Username, req.URI)
		return nil
	}

	if follow := findFollow(objRef, sender, deps); follow != nil {
		if err := deps.Database.DeleteFollowByAccountIds(follow.AccountId, follow.TargetAccountId); err != nil {
			return fmt.Errorf("failed to remove rejected follow: %w", err)
		}
		log.Printf("Inbox: %s rejected follow %s", sender.Username, follow.URI)
	}
	return nil
}

// resolveRelayReply checks whether an Accept/Reject answers one of our
// relay subscriptions, matching the object against the relay's stored
// follow activity URI. Returns done=true when the activity was consumed.
func resolveRelayReply(objRef Reference, sender *domain.Account, state string, deps *Deps) (bool, error) {
	if objRef.URI == "" {
		return false, nil
	}
	err, relay := deps.Database.ReadRelayByFollowURI(objRef.URI)
	if err != nil || relay == nil {
		return false, nil
	}
	if relay.ActorURI != sender.URI || relay.State != domain.RelayStatePending {
		return false, nil
	}

	var acceptedAt *time.Time
	if state == domain.RelayStateAccepted {
		now := time.Now()
		acceptedAt = &now
	}
	if err := deps.Database.UpdateRelayState(relay.Id, state, acceptedAt); err != nil {
		return true, fmt.Errorf("failed to update relay state: %w", err)
	}
	log.Printf("Inbox: Relay %s is now %s", relay.ActorURI, state)
	return true, nil
}

// findFollowRequest locates the follow request an Accept/Reject refers
// to: by the actor/object pair of an inlined Follow, or by bare URI.
func findFollowRequest(objRef Reference, sender *domain.Account, deps *Deps) *domain.FollowRequest {
	if objRef.Inline != nil {
		follower := followerFromInlineFollow(objRef, deps)
		if follower == nil {
			return nil
		}
		err, req := deps.Database.ReadFollowRequestByAccountIds(follower.Id, sender.Id)
		if err == nil && req != nil {
			return req
		}
		// Fall through: the inlined Follow may still carry the request URI
	}
	if objRef.URI != "" {
		err, req := deps.Database.ReadFollowRequestByURI(objRef.URI)
		if err == nil && req != nil && req.TargetAccountId == sender.Id {
			return req
		}
	}
	return nil
}

// findFollow locates the active relationship an Accept/Reject refers to,
// mirroring findFollowRequest.
func findFollow(objRef Reference, sender *domain.Account, deps *Deps) *domain.Follow {
	if objRef.Inline != nil {
		follower := followerFromInlineFollow(objRef, deps)
		if follower == nil {
			return nil
		}
		err, follow := deps.Database.ReadFollowByAccountIds(follower.Id, sender.Id)
		if err == nil && follow != nil {
			return follow
		}
	}
	if objRef.URI != "" {
		err, follow := deps.Database.ReadFollowByURI(objRef.URI)
		if err == nil && follow != nil && follow.TargetAccountId == sender.Id {
			return follow
		}
	}
	return nil
}

// followerFromInlineFollow resolves the actor of an inlined Follow object.
func followerFromInlineFollow(objRef Reference, deps *Deps) *domain.Account {
	actorRef := NewReference(objRef.Get("actor"))
	if actorRef.URI == "" {
		return nil
	}
	err, acc := deps.Database.ReadAccountByURI(actorRef.URI)
	if err != nil || acc == nil {
		return nil
	}
	return acc
}
