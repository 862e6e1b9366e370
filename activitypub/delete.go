package activitypub

import (
	"fmt"
	"log"

	"github.com/deemkeen/mammut/domain"
)

// handleDelete removes a status the sender owns. Unknown and unowned
// objects fall through silently; the two cases are indistinguishable to
// the remote side on purpose. Reblogs of the deleted status are removed
// with it, and each local reblogger's followers are told their copy is
// gone.
func handleDelete(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	objRef := NewReference(act.Object)
	if objRef.URI == "" {
		return nil
	}

	err, status := deps.Database.ReadStatusByURI(objRef.URI)
	if err != nil || status == nil {
		return nil
	}
	if status.AccountId != sender.Id {
		log.Printf("Inbox: Delete of %s not owned by %s, ignoring", objRef.URI, sender.Username)
		return nil
	}

	err, reblogs := deps.Database.ReadReblogsOfStatus(status.Id)
	if err != nil {
		return fmt.Errorf("failed to read reblogs: %w", err)
	}

	if err := deps.Database.DeleteStatus(status.Id); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}

	if reblogs != nil {
		for _, reblog := range *reblogs {
			if err := deps.Database.DeleteStatus(reblog.Id); err != nil {
				log.Printf("Inbox: Failed to delete reblog %s: %v", reblog.URI, err)
				continue
			}
			err, reblogger := deps.Database.ReadAccountById(reblog.AccountId)
			if err != nil || reblogger == nil || !reblogger.IsLocal() {
				continue
			}
			// Their followers hold a now-dangling reference to the boost
			reblogURI := reblog.URI
			if reblogURI == "" {
				reblogURI = LocalStatusURI(deps.Conf, reblogger.Username, reblog.Id)
			}
			EmitDeleteToFollowers(reblogURI, reblogger, deps)
		}
	}

	log.Printf("Inbox: %s deleted %s", sender.Username, objRef.URI)
	return nil
}
