package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleQuoteRequest answers a request to quote one of our statuses. The
// object is the quoted status, the instrument the would-be quoting
// status. The reply (Accept or Reject) echoes the request, preserving the
// instrument in whichever shape it arrived.
func handleQuoteRequest(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	resolver := NewResolver(deps)

	quoted := resolver.Status(NewReference(act.Object))
	if quoted == nil {
		log.Printf("Inbox: QuoteRequest for unknown status, ignoring")
		return nil
	}

	err, owner := deps.Database.ReadAccountById(quoted.AccountId)
	if err != nil || owner == nil || !owner.IsLocal() {
		// Only the owning server rules on quotability
		return nil
	}

	if !quoteAllowed(quoted, owner, sender, deps) {
		EmitQuoteReply("Reject", act, owner, sender, deps)
		log.Printf("Inbox: Quote of %s by %s rejected", quoted.URI, sender.Username)
		return nil
	}

	quoting := resolver.Status(NewReference(act.Instrument))
	if quoting == nil {
		log.Printf("Inbox: QuoteRequest instrument unresolvable, ignoring")
		return nil
	}

	quote := &domain.Quote{
		Id:             uuid.New(),
		StatusId:       quoting.Id,
		QuotedStatusId: quoted.Id,
		State:          domain.QuoteStateAccepted,
		URI:            act.ID,
		CreatedAt:      time.Now(),
	}
	if err := deps.Database.UpsertQuote(quote); err != nil {
		return fmt.Errorf("failed to record quote: %w", err)
	}

	EmitQuoteReply("Accept", act, owner, sender, deps)
	log.Printf("Inbox: Quote of %s by %s accepted", quoted.URI, sender.Username)
	return nil
}

// quoteAllowed evaluates a status's quote approval policy against the
// requesting account.
func quoteAllowed(quoted *domain.Status, owner, requester *domain.Account, deps *Deps) bool {
	switch quoted.QuoteApprovalPolicy {
	case "", domain.QuotePolicyPublic:
		return true
	case domain.QuotePolicyFollowers:
		err, follow := deps.Database.ReadFollowByAccountIds(requester.Id, owner.Id)
		return err == nil && follow != nil
	default:
		return false
	}
}
