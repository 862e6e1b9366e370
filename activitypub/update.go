package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
)

// handleUpdate applies in-place edits to the sender's own actor profile or
// the sender's own status. Updates never create entities, and anything the
// sender does not own is dropped without a reply.
func handleUpdate(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	objRef := NewReference(act.Object)
	if objRef.IsZero() || objRef.URI == "" {
		return nil
	}

	if objRef.URI == sender.URI {
		return updateActorProfile(objRef, sender, deps)
	}

	err, status := deps.Database.ReadStatusByURI(objRef.URI)
	if err == nil && status != nil {
		if status.AccountId != sender.Id {
			log.Printf("Inbox: Update of %s not owned by %s, ignoring", objRef.URI, sender.Username)
			return nil
		}
		return updateStatus(objRef, status, sender, deps)
	}

	return nil
}

// updateActorProfile copies the refreshed profile fields onto the stored
// account row. Absent fields keep their current value.
func updateActorProfile(objRef Reference, sender *domain.Account, deps *Deps) error {
	if objRef.Inline == nil {
		return nil
	}

	if name := objRef.Str("name"); name != "" {
		sender.DisplayName = name
	}
	if summary := objRef.Str("summary"); summary != "" {
		sender.Summary = summary
	}
	if icon := NewReference(objRef.Get("icon")); icon.Str("url") != "" {
		sender.AvatarURL = icon.Str("url")
	}
	if pk := NewReference(objRef.Get("publicKey")); pk.Str("publicKeyPem") != "" {
		sender.PublicKeyPem = pk.Str("publicKeyPem")
	}
	if locked, ok := objRef.Get("manuallyApprovesFollowers").(bool); ok {
		sender.Locked = locked
	}
	if aka, ok := objRef.Get("alsoKnownAs").([]any); ok {
		var uris []string
		for _, v := range aka {
			if s, ok := v.(string); ok {
				uris = append(uris, s)
			}
		}
		sender.AlsoKnownAs = uris
	}
	sender.LastFetchedAt = time.Now()

	if err := deps.Database.UpdateAccount(sender); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	log.Printf("Inbox: Updated profile of %s", sender.Username)
	return nil
}

// updateStatus applies a status edit: content, spoiler, sensitivity and
// refreshed poll tallies.
func updateStatus(objRef Reference, status *domain.Status, sender *domain.Account, deps *Deps) error {
	if objRef.Inline == nil {
		return nil
	}

	if content := objRef.Str("content"); content != "" {
		status.Text = content
	}
	if summary := objRef.Str("summary"); summary != "" {
		status.SpoilerText = summary
	}
	if sensitive, ok := objRef.Get("sensitive").(bool); ok {
		status.Sensitive = sensitive
	}
	now := time.Now()
	status.EditedAt = &now

	if err := deps.Database.UpdateStatus(status); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	// Question updates carry refreshed option tallies
	if objRef.Str("type") == "Question" {
		refreshPollTallies(objRef, status, deps)
	}

	log.Printf("Inbox: %s edited %s", sender.Username, status.URI)
	return nil
}

// refreshPollTallies overwrites cached tallies from a Question update's
// replies counts. Option order is matched by name.
func refreshPollTallies(objRef Reference, status *domain.Status, deps *Deps) {
	err, poll := deps.Database.ReadPollByStatusId(status.Id)
	if err != nil || poll == nil {
		return
	}

	options, tallies := pollOptionsFromObject(objRef)
	if len(options) == 0 {
		return
	}

	for i, name := range options {
		for j, existing := range poll.Options {
			if existing != name || i >= len(tallies) {
				continue
			}
			delta := tallies[i] - poll.Tallies[j]
			for k := 0; k < delta; k++ {
				if err := deps.Database.IncrementPollTally(poll.Id, j); err != nil {
					log.Printf("Inbox: Failed to refresh poll tally: %v", err)
					return
				}
			}
		}
	}
}
