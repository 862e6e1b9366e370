package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleBlock records a block edge from the sender to the resolved target
// account. Re-delivery refreshes the edge.
func handleBlock(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	resolver := NewResolver(deps)
	target := resolver.Account(NewReference(act.Object))
	if target == nil {
		log.Printf("Inbox: Block target not found, ignoring")
		return nil
	}

	block := &domain.Block{
		Id:              uuid.New(),
		AccountId:       sender.Id,
		TargetAccountId: target.Id,
		URI:             act.ID,
		CreatedAt:       time.Now(),
	}
	if err := deps.Database.UpsertBlock(block); err != nil {
		return fmt.Errorf("failed to upsert block: %w", err)
	}

	// A block severs the relationship in both directions
	if err := deps.Database.DeleteFollowByAccountIds(sender.Id, target.Id); err != nil {
		log.Printf("Inbox: Failed to remove follow after block: %v", err)
	}
	if err := deps.Database.DeleteFollowByAccountIds(target.Id, sender.Id); err != nil {
		log.Printf("Inbox: Failed to remove follow after block: %v", err)
	}

	log.Printf("Inbox: %s blocked %s", sender.Username, target.Username)
	return nil
}

// handleFlag builds a moderation report. The object list names exactly
// one target account plus any number of status references; statuses the
// reporting server cannot legitimately see are dropped from the report
// rather than failing it.
func handleFlag(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	var target *domain.Account
	var candidates []*domain.Status

	for _, raw := range objectList(act.Object) {
		ref := NewReference(raw)
		if ref.URI == "" {
			continue
		}

		if err, status := deps.Database.ReadStatusByURI(ref.URI); err == nil && status != nil {
			candidates = append(candidates, status)
			continue
		}

		if err, acc := deps.Database.ReadAccountByURI(ref.URI); err == nil && acc != nil {
			if target != nil && target.Id != acc.Id {
				log.Printf("Inbox: Flag names more than one account, ignoring")
				return nil
			}
			target = acc
		}
	}

	if target == nil {
		log.Printf("Inbox: Flag names no known account, ignoring")
		return nil
	}

	// Only the flagged account's own statuses may land in the report;
	// anything else in the object list is noise
	var statusIds []uuid.UUID
	for _, status := range candidates {
		if status.AccountId != target.Id {
			continue
		}
		if statusVisibleToReporter(status, sender, deps) {
			statusIds = append(statusIds, status.Id)
		}
	}

	uri := act.ID
	if uri == "" {
		// Deterministic fallback keeps re-delivered anonymous flags
		// idempotent
		seed := fmt.Sprintf("%s|%s|%s", sender.URI, target.URI, act.ContentString())
		uri = fmt.Sprintf("https://%s/reports/%s", deps.Conf.Conf.SslDomain, uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)))
	}

	report := &domain.Report{
		Id:              uuid.New(),
		AccountId:       sender.Id,
		TargetAccountId: target.Id,
		StatusIds:       statusIds,
		Comment:         act.ContentString(),
		URI:             uri,
		CreatedAt:       time.Now(),
	}
	if err := deps.Database.CreateReport(report); err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	log.Printf("Inbox: Report against %s from %s (%d statuses)", target.Username, sender.Domain, len(statusIds))
	return nil
}

// statusVisibleToReporter decides whether a flagged status may appear in
// a report from the sender's server. Public and unlisted statuses always
// qualify. A private or narrower status qualifies only when the
// reporter's server already sees it: someone on that server follows the
// author, or the status mentions an account living there.
func statusVisibleToReporter(status *domain.Status, sender *domain.Account, deps *Deps) bool {
	switch status.Visibility {
	case domain.VisibilityPublic, domain.VisibilityUnlisted:
		return true
	}

	if sender.Domain != "" {
		if ok, err := deps.Database.ExistsFollowFromDomain(status.AccountId, sender.Domain); err == nil && ok {
			return true
		}
	}

	err, mentions := deps.Database.ReadMentionsByStatusId(status.Id)
	if err != nil || mentions == nil {
		return false
	}
	for _, mention := range *mentions {
		err, acc := deps.Database.ReadAccountById(mention.AccountId)
		if err != nil || acc == nil {
			continue
		}
		if acc.Domain == sender.Domain {
			return true
		}
	}
	return false
}

// objectList normalizes a Flag object field (single value or array) into
// a slice of raw references.
func objectList(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case nil:
		return nil
	default:
		return []any{v}
	}
}
