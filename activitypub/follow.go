package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleFollow applies the follow approval matrix for one inbound Follow.
// The activity id always becomes the edge URI, so duplicate delivery or a
// re-sent Follow refreshes the existing edge instead of duplicating it.
func handleFollow(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	resolver := NewResolver(deps)
	target := resolver.Account(NewReference(act.Object))
	if target == nil {
		log.Printf("Inbox: Follow target not found, ignoring")
		return nil
	}
	if !target.IsLocal() {
		// Follows between two remote accounts are none of our business
		return nil
	}

	// An already-active relationship fast-forwards: refresh the edge URI
	// and re-emit the Accept without consulting the approval matrix, so a
	// re-delivered Follow can never demote an approved relationship back
	// into a request.
	if err, existing := deps.Database.ReadFollowByAccountIds(sender.Id, target.Id); err == nil && existing != nil {
		existing.URI = act.ID
		if err := deps.Database.UpsertFollow(existing); err != nil {
			return fmt.Errorf("failed to refresh follow: %w", err)
		}
		EmitAccept(map[string]any{
			"type":   "Follow",
			"id":     act.ID,
			"actor":  sender.URI,
			"object": actorURIFor(target, deps.Conf),
		}, target, sender, deps)
		log.Printf("Inbox: %s already follows %s, refreshed", sender.Username, target.Username)
		return nil
	}

	requiresApproval, err := followRequiresApproval(sender, target, deps)
	if err != nil {
		return fmt.Errorf("failed to evaluate follow policy: %w", err)
	}

	if requiresApproval {
		req := &domain.FollowRequest{
			Id:              uuid.New(),
			AccountId:       sender.Id,
			TargetAccountId: target.Id,
			URI:             act.ID,
			CreatedAt:       time.Now(),
		}
		if err := deps.Database.UpsertFollowRequest(req); err != nil {
			return fmt.Errorf("failed to upsert follow request: %w", err)
		}
		log.Printf("Inbox: Follow request from %s to %s pending approval", sender.Username, target.Username)
		return nil
	}

	follow := &domain.Follow{
		Id:              uuid.New(),
		AccountId:       sender.Id,
		TargetAccountId: target.Id,
		URI:             act.ID,
		CreatedAt:       time.Now(),
	}
	if err := deps.Database.UpsertFollow(follow); err != nil {
		return fmt.Errorf("failed to upsert follow: %w", err)
	}

	// A stale request for the same pair must not outlive the relationship
	if err := deps.Database.DeleteFollowRequestByAccountIds(sender.Id, target.Id); err != nil {
		log.Printf("Inbox: Failed to clear follow request for %s: %v", sender.Username, err)
	}

	EmitAccept(map[string]any{
		"type":   "Follow",
		"id":     act.ID,
		"actor":  sender.URI,
		"object": actorURIFor(target, deps.Conf),
	}, target, sender, deps)

	log.Printf("Inbox: %s now follows %s", sender.Username, target.Username)
	return nil
}

// followRequiresApproval decides whether an inbound Follow lands as a
// request. A locked target or a silenced sender always requires approval.
// A domain block with reject_follows also does, unless the target already
// follows the sender, in which case the pre-existing mutual relationship
// wins over the block.
func followRequiresApproval(sender, target *domain.Account, deps *Deps) (bool, error) {
	if target.Locked || sender.Silenced {
		return true, nil
	}

	if sender.Domain != "" {
		err, block := deps.Database.ReadDomainBlock(sender.Domain)
		if err == nil && block != nil && block.RejectFollows {
			err, reverse := deps.Database.ReadFollowByAccountIds(target.Id, sender.Id)
			if err == nil && reverse != nil {
				return false, nil
			}
			return true, nil
		}
	}

	return false, nil
}
