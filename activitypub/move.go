package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleMove migrates followers after an account announces its own move.
// The successor must list the old account's URI in alsoKnownAs. Local
// followers are detached from the old account and re-attached as follow
// requests toward the successor; promotion runs through the normal
// approval flow. Re-delivery of the same Move is a no-op and does not
// resurrect edges removed since.
func handleMove(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	objectURI := NewReference(act.Object).ID()
	if objectURI == "" || objectURI != sender.URI {
		log.Printf("Inbox: Move where actor does not own object, ignoring")
		return nil
	}

	resolver := NewResolver(deps)
	successor := resolver.Account(NewReference(act.Target))
	if successor == nil {
		log.Printf("Inbox: Move target not resolvable, ignoring")
		return nil
	}

	if !listsAlias(successor.AlsoKnownAs, sender.URI) {
		log.Printf("Inbox: Move target %s does not acknowledge %s, ignoring", successor.URI, sender.URI)
		return nil
	}

	if sender.MovedToId != nil {
		// moved_to is terminal; a repeated Move with the same target is
		// idempotent, a different one is dropped
		if *sender.MovedToId != successor.Id {
			log.Printf("Inbox: %s already moved, ignoring new Move", sender.Username)
		}
		return nil
	}

	if err := deps.Database.SetAccountMovedTo(sender.Id, successor.Id); err != nil {
		return fmt.Errorf("failed to mark account moved: %w", err)
	}

	err, follows := deps.Database.ReadLocalFollowsOfTarget(sender.Id)
	if err != nil {
		return fmt.Errorf("failed to read local followers: %w", err)
	}
	if follows == nil {
		return nil
	}

	migrated := 0
	for _, follow := range *follows {
		if err := deps.Database.DeleteFollowByAccountIds(follow.AccountId, sender.Id); err != nil {
			log.Printf("Inbox: Failed to detach follower during move: %v", err)
			continue
		}
		req := &domain.FollowRequest{
			Id:              uuid.New(),
			AccountId:       follow.AccountId,
			TargetAccountId: successor.Id,
			URI:             NewLocalActivityURI(deps.Conf),
			CreatedAt:       time.Now(),
		}
		if err := deps.Database.UpsertFollowRequest(req); err != nil {
			log.Printf("Inbox: Failed to request follow of successor: %v", err)
			continue
		}
		migrated++
	}

	log.Printf("Inbox: %s moved to %s, migrated %d followers", sender.Username, successor.URI, migrated)
	return nil
}

// listsAlias reports whether an alsoKnownAs list contains the given URI.
func listsAlias(aliases []string, uri string) bool {
	for _, alias := range aliases {
		if alias == uri {
			return true
		}
	}
	return false
}
