package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleAdd pins a status to the sender's featured collection. Anything
// whose target is not the sender's own featured collection is ignored.
func handleAdd(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	status := featuredCollectionStatus(act, sender, deps)
	if status == nil {
		return nil
	}

	pin := &domain.StatusPin{
		Id:        uuid.New(),
		AccountId: sender.Id,
		StatusId:  status.Id,
		CreatedAt: time.Now(),
	}
	if err := deps.Database.UpsertStatusPin(pin); err != nil {
		return fmt.Errorf("failed to pin status: %w", err)
	}
	log.Printf("Inbox: %s pinned %s", sender.Username, status.URI)
	return nil
}

// handleRemove unpins a status, symmetric to handleAdd.
func handleRemove(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	status := featuredCollectionStatus(act, sender, deps)
	if status == nil {
		return nil
	}

	if err := deps.Database.DeleteStatusPin(sender.Id, status.Id); err != nil {
		return fmt.Errorf("failed to unpin status: %w", err)
	}
	log.Printf("Inbox: %s unpinned %s", sender.Username, status.URI)
	return nil
}

// featuredCollectionStatus validates an Add/Remove against the pin rules:
// the target must be the sender's own featured collection and the object
// must resolve to a status the sender owns.
func featuredCollectionStatus(act *Activity, sender *domain.Account, deps *Deps) *domain.Status {
	targetURI := NewReference(act.Target).ID()
	if targetURI == "" || sender.FeaturedURI == "" || targetURI != sender.FeaturedURI {
		return nil
	}

	resolver := NewResolver(deps)
	status := resolver.Status(NewReference(act.Object))
	if status == nil || status.AccountId != sender.Id {
		return nil
	}
	return status
}
