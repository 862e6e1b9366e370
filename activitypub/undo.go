package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleUndo dispatches on the nested object type. Any nested type without
// a case here, and any reference that matches nothing, is a no-op.
func handleUndo(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	objRef := NewReference(act.Object)

	switch objRef.Type() {
	case "Announce":
		return undoAnnounce(objRef, sender, deps)
	case "Accept":
		return undoAccept(objRef, sender, deps)
	case "Block":
		return undoBlock(objRef, sender, deps)
	case "Follow":
		return undoFollow(objRef, sender, deps)
	case "Like", "EmojiReact":
		return undoLike(objRef, sender, deps)
	}

	// A bare URI carries no type; try it against the edges an Undo can
	// plausibly target, cheapest first
	if objRef.Inline == nil && objRef.URI != "" {
		if undone, err := undoFollowByURI(objRef.URI, sender, deps); undone || err != nil {
			return err
		}
		return undoAnnounce(objRef, sender, deps)
	}

	log.Printf("Inbox: Undo of unsupported type %q, ignoring", objRef.Type())
	return nil
}

// undoAnnounce deletes the sender's reblog. The reblog URI is matched
// against the nested object's id, its atomUri, or the bare string itself.
func undoAnnounce(objRef Reference, sender *domain.Account, deps *Deps) error {
	candidates := []string{objRef.URI}
	if atom := objRef.Str("atomUri"); atom != "" {
		candidates = append(candidates, atom)
	}

	for _, uri := range candidates {
		if uri == "" {
			continue
		}
		err, status := deps.Database.ReadStatusByURI(uri)
		if err != nil || status == nil {
			continue
		}
		if status.AccountId != sender.Id || status.ReblogOfId == nil {
			continue
		}
		if err := deps.Database.DeleteStatus(status.Id); err != nil {
			return fmt.Errorf("failed to delete reblog: %w", err)
		}
		log.Printf("Inbox: %s undid announce %s", sender.Username, uri)
		return nil
	}
	return nil
}

// undoAccept reinstates a follow request in place of the relationship the
// nested Accept produced. Direction is role-reversed: the Undo's sender is
// the account that had accepted, so the edge runs follower→sender.
func undoAccept(objRef Reference, sender *domain.Account, deps *Deps) error {
	followRef := NewReference(objRef.Get("object"))

	var follow *domain.Follow
	if followRef.Inline != nil {
		if follower := followerFromInlineFollow(followRef, deps); follower != nil {
			if err, f := deps.Database.ReadFollowByAccountIds(follower.Id, sender.Id); err == nil && f != nil {
				follow = f
			}
		}
	}
	if follow == nil && followRef.URI != "" {
		if err, f := deps.Database.ReadFollowByURI(followRef.URI); err == nil && f != nil && f.TargetAccountId == sender.Id {
			follow = f
		}
	}
	if follow == nil {
		return nil
	}

	req := &domain.FollowRequest{
		Id:              uuid.New(),
		AccountId:       follow.AccountId,
		TargetAccountId: follow.TargetAccountId,
		URI:             follow.URI,
		CreatedAt:       time.Now(),
	}
	if err := deps.Database.UpsertFollowRequest(req); err != nil {
		return fmt.Errorf("failed to reinstate follow request: %w", err)
	}
	if err := deps.Database.DeleteFollowByAccountIds(follow.AccountId, follow.TargetAccountId); err != nil {
		return fmt.Errorf("failed to remove unaccepted follow: %w", err)
	}
	log.Printf("Inbox: %s undid accept of follow %s", sender.Username, follow.URI)
	return nil
}

// undoBlock removes the sender's block edge.
func undoBlock(objRef Reference, sender *domain.Account, deps *Deps) error {
	targetRef := NewReference(objRef.Get("object"))
	if targetRef.URI == "" {
		return nil
	}
	err, target := deps.Database.ReadAccountByURI(targetRef.URI)
	if err != nil || target == nil {
		return nil
	}
	if err := deps.Database.DeleteBlockByAccountIds(sender.Id, target.Id); err != nil {
		return fmt.Errorf("failed to remove block: %w", err)
	}
	log.Printf("Inbox: %s unblocked %s", sender.Username, target.Username)
	return nil
}

// undoFollow removes the sender's active follow, matched by the nested
// Follow's target pair or by its id.
func undoFollow(objRef Reference, sender *domain.Account, deps *Deps) error {
	targetRef := NewReference(objRef.Get("object"))
	if targetRef.URI != "" {
		if err, target := deps.Database.ReadAccountByURI(targetRef.URI); err == nil && target != nil {
			if err := deps.Database.DeleteFollowByAccountIds(sender.Id, target.Id); err != nil {
				return fmt.Errorf("failed to remove follow: %w", err)
			}
			// The pending form goes too: Undo(Follow) before approval
			if err := deps.Database.DeleteFollowRequestByAccountIds(sender.Id, target.Id); err != nil {
				log.Printf("Inbox: Failed to clear follow request: %v", err)
			}
			log.Printf("Inbox: %s unfollowed %s", sender.Username, target.Username)
			return nil
		}
	}
	if objRef.URI != "" {
		if _, err := undoFollowByURI(objRef.URI, sender, deps); err != nil {
			return err
		}
	}
	return nil
}

// undoFollowByURI removes the sender's follow identified only by its
// activity URI.
func undoFollowByURI(uri string, sender *domain.Account, deps *Deps) (bool, error) {
	err, follow := deps.Database.ReadFollowByURI(uri)
	if err != nil || follow == nil || follow.AccountId != sender.Id {
		return false, nil
	}
	if err := deps.Database.DeleteFollowByURI(uri); err != nil {
		return false, fmt.Errorf("failed to remove follow %s: %w", uri, err)
	}
	log.Printf("Inbox: %s undid follow %s", sender.Username, uri)
	return true, nil
}

// undoLike removes the matching favourite or reaction.
func undoLike(objRef Reference, sender *domain.Account, deps *Deps) error {
	statusRef := NewReference(objRef.Get("object"))
	if statusRef.URI == "" {
		return nil
	}
	err, status := deps.Database.ReadStatusByURI(statusRef.URI)
	if err != nil || status == nil {
		return nil
	}
	if err := deps.Database.DeleteFavouriteByAccountAndStatus(sender.Id, status.Id); err != nil {
		return fmt.Errorf("failed to remove favourite: %w", err)
	}
	log.Printf("Inbox: %s removed reaction on %s", sender.Username, statusRef.URI)
	return nil
}
