package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleJoin applies a group join under the same approval rules as
// Follow, scoped to the group's locked flag. A suspended group or a
// group-level block produces an explicit Reject; a successful membership
// produces an Accept to the joiner and an Add notice to every other
// remote member.
func handleJoin(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	group := localGroupFromObject(act.Object, deps)
	if group == nil {
		log.Printf("Inbox: Join target is not a local group, ignoring")
		return nil
	}

	echo := map[string]any{
		"type":   "Join",
		"id":     act.ID,
		"actor":  sender.URI,
		"object": group.URI,
	}

	blocked, err := deps.Database.IsGroupBlocked(group.Id, sender.Id)
	if err != nil {
		return fmt.Errorf("failed to check group block: %w", err)
	}
	if group.Suspended || blocked {
		if signer := groupSigner(group, deps); signer != nil {
			EmitReject(echo, signer, sender, deps)
		}
		log.Printf("Inbox: Join of %s by %s rejected", group.Name, sender.Username)
		return nil
	}

	if group.Locked || sender.Silenced {
		req := &domain.MembershipRequest{
			Id:        uuid.New(),
			AccountId: sender.Id,
			GroupId:   group.Id,
			URI:       act.ID,
			CreatedAt: time.Now(),
		}
		if err := deps.Database.UpsertMembershipRequest(req); err != nil {
			return fmt.Errorf("failed to upsert membership request: %w", err)
		}
		log.Printf("Inbox: Join of %s by %s pending approval", group.Name, sender.Username)
		return nil
	}

	membership := &domain.Membership{
		Id:        uuid.New(),
		AccountId: sender.Id,
		GroupId:   group.Id,
		URI:       act.ID,
		CreatedAt: time.Now(),
	}
	if err := deps.Database.UpsertMembership(membership); err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}
	if err := deps.Database.DeleteMembershipRequestByAccountAndGroup(sender.Id, group.Id); err != nil {
		log.Printf("Inbox: Failed to clear membership request: %v", err)
	}

	if signer := groupSigner(group, deps); signer != nil {
		EmitAccept(echo, signer, sender, deps)
		notifyMembers("Add", group, sender, signer, deps)
	}

	log.Printf("Inbox: %s joined %s", sender.Username, group.Name)
	return nil
}

// handleLeave removes an existing membership and sends a Remove notice to
// the other remote members. Leaving a group one is not in is a no-op.
func handleLeave(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	group := localGroupFromObject(act.Object, deps)
	if group == nil {
		return nil
	}

	member := false
	if err, memberships := deps.Database.ReadMembershipsByGroupId(group.Id); err == nil && memberships != nil {
		for _, m := range *memberships {
			if m.AccountId == sender.Id {
				member = true
				break
			}
		}
	}

	// A pending request can always be withdrawn
	if err := deps.Database.DeleteMembershipRequestByAccountAndGroup(sender.Id, group.Id); err != nil {
		log.Printf("Inbox: Failed to clear membership request: %v", err)
	}
	if !member {
		return nil
	}

	if err := deps.Database.DeleteMembershipByAccountAndGroup(sender.Id, group.Id); err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}

	if signer := groupSigner(group, deps); signer != nil {
		notifyMembers("Remove", group, sender, signer, deps)
	}

	log.Printf("Inbox: %s left %s", sender.Username, group.Name)
	return nil
}

// localGroupFromObject resolves an activity object to a group hosted
// here.
func localGroupFromObject(object any, deps *Deps) *domain.Group {
	uri := NewReference(object).ID()
	if uri == "" {
		return nil
	}
	err, group := deps.Database.ReadGroupByURI(uri)
	if err != nil || group == nil || group.Domain != "" {
		return nil
	}
	return group
}

// groupSigner returns the service account that signs activities for a
// local group.
func groupSigner(group *domain.Group, deps *Deps) *domain.Account {
	err, acc := deps.Database.ReadAccountByURI(group.URI)
	if err != nil || acc == nil {
		log.Printf("Inbox: Group %s has no service account, skipping notices", group.Name)
		return nil
	}
	return acc
}

// notifyMembers sends an Add or Remove notice (subject joining/leaving
// the members collection) to every remote member other than the subject.
func notifyMembers(noticeType string, group *domain.Group, subject *domain.Account, signer *domain.Account, deps *Deps) {
	err, memberships := deps.Database.ReadMembershipsByGroupId(group.Id)
	if err != nil || memberships == nil {
		return
	}

	seen := make(map[string]bool)
	for _, m := range *memberships {
		if m.AccountId == subject.Id {
			continue
		}
		err, member := deps.Database.ReadAccountById(m.AccountId)
		if err != nil || member == nil || member.IsLocal() {
			continue
		}
		inbox := preferredInbox(member)
		if inbox == "" || seen[inbox] {
			continue
		}
		seen[inbox] = true

		switch noticeType {
		case "Add":
			EmitAddToCollection(subject.URI, group.MembersURI, signer, inbox, deps)
		case "Remove":
			EmitRemoveFromCollection(subject.URI, group.MembersURI, signer, inbox, deps)
		}
	}
}
