package activitypub

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/util"
	"github.com/google/uuid"
)

// The side-effect emitter. Handlers call these after their store write has
// committed; enqueue failure is logged and swallowed so a missed
// notification never turns into a missed state change.

const activityStreamsContext = "https://www.w3.org/ns/activitystreams"

// LocalActorURI returns the canonical actor URI for a local account.
func LocalActorURI(conf *util.AppConfig, username string) string {
	return fmt.Sprintf("https://%s/users/%s", conf.Conf.SslDomain, username)
}

// LocalStatusURI returns the canonical permalink for a local status.
func LocalStatusURI(conf *util.AppConfig, username string, statusId uuid.UUID) string {
	return fmt.Sprintf("https://%s/users/%s/statuses/%s", conf.Conf.SslDomain, username, statusId)
}

// NewLocalActivityURI mints a URI for a locally-generated activity.
func NewLocalActivityURI(conf *util.AppConfig) string {
	return fmt.Sprintf("https://%s/activities/%s", conf.Conf.SslDomain, uuid.New())
}

// actorURIFor returns the federation URI of an account, minting the local
// form for accounts that live here.
func actorURIFor(acc *domain.Account, conf *util.AppConfig) string {
	if acc.IsLocal() {
		return LocalActorURI(conf, acc.Username)
	}
	return acc.URI
}

// preferredInbox picks the shared inbox when the remote server advertises
// one, falling back to the personal inbox.
func preferredInbox(acc *domain.Account) string {
	if acc.SharedInboxURI != "" {
		return acc.SharedInboxURI
	}
	return acc.InboxURI
}

// EmitActivity serializes an outbound activity and enqueues it for
// delivery to one inbox, signed by the given local account.
func EmitActivity(payload map[string]any, signer *domain.Account, inboxURI string, deps *Deps) {
	if inboxURI == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Outbox: Failed to serialize activity: %v", err)
		return
	}

	item := &domain.DeliveryQueueItem{
		Id:           uuid.New(),
		InboxURI:     inboxURI,
		ActivityJSON: string(body),
		AccountId:    signer.Id,
		Attempts:     0,
		NextRetryAt:  time.Now(),
		CreatedAt:    time.Now(),
	}

	if err := deps.Database.EnqueueDelivery(item); err != nil {
		// The primary state change already committed; losing the
		// notification is the acceptable failure mode here
		log.Printf("Outbox: Failed to enqueue delivery to %s: %v", inboxURI, err)
	}
}

// EmitAccept schedules an Accept of the given object back to the actor
// whose activity is being accepted.
func EmitAccept(object any, signer *domain.Account, to *domain.Account, deps *Deps) {
	payload := map[string]any{
		"@context": activityStreamsContext,
		"id":       NewLocalActivityURI(deps.Conf),
		"type":     "Accept",
		"actor":    actorURIFor(signer, deps.Conf),
		"object":   object,
		"to":       []string{actorURIFor(to, deps.Conf)},
	}
	EmitActivity(payload, signer, preferredInbox(to), deps)
}

// EmitReject schedules a Reject of the given object back to the actor
// whose activity is being rejected.
func EmitReject(object any, signer *domain.Account, to *domain.Account, deps *Deps) {
	payload := map[string]any{
		"@context": activityStreamsContext,
		"id":       NewLocalActivityURI(deps.Conf),
		"type":     "Reject",
		"actor":    actorURIFor(signer, deps.Conf),
		"object":   object,
		"to":       []string{actorURIFor(to, deps.Conf)},
	}
	EmitActivity(payload, signer, preferredInbox(to), deps)
}

// EmitQuoteReply schedules an Accept or Reject for a QuoteRequest. The
// reply echoes the request's id, actor, object and instrument; the
// instrument keeps whichever shape (bare URI or inlined object) it arrived
// in.
func EmitQuoteReply(replyType string, req *Activity, signer *domain.Account, to *domain.Account, deps *Deps) {
	payload := map[string]any{
		"@context": activityStreamsContext,
		"id":       NewLocalActivityURI(deps.Conf),
		"type":     replyType,
		"actor":    actorURIFor(signer, deps.Conf),
		"object": map[string]any{
			"type":       req.Type,
			"id":         req.ID,
			"actor":      req.ActorURI(),
			"object":     NewReference(req.Object).Echo(),
			"instrument": NewReference(req.Instrument).Echo(),
		},
		"to": []string{actorURIFor(to, deps.Conf)},
	}
	EmitActivity(payload, signer, preferredInbox(to), deps)
}

// EmitAddToCollection schedules an Add notice (object added to target
// collection) to one remote inbox.
func EmitAddToCollection(objectURI, targetURI string, signer *domain.Account, inboxURI string, deps *Deps) {
	payload := map[string]any{
		"@context": activityStreamsContext,
		"id":       NewLocalActivityURI(deps.Conf),
		"type":     "Add",
		"actor":    actorURIFor(signer, deps.Conf),
		"object":   objectURI,
		"target":   targetURI,
	}
	EmitActivity(payload, signer, inboxURI, deps)
}

// EmitRemoveFromCollection schedules a Remove notice, symmetric to
// EmitAddToCollection.
func EmitRemoveFromCollection(objectURI, targetURI string, signer *domain.Account, inboxURI string, deps *Deps) {
	payload := map[string]any{
		"@context": activityStreamsContext,
		"id":       NewLocalActivityURI(deps.Conf),
		"type":     "Remove",
		"actor":    actorURIFor(signer, deps.Conf),
		"object":   objectURI,
		"target":   targetURI,
	}
	EmitActivity(payload, signer, inboxURI, deps)
}

// EmitDeleteToFollowers schedules a Delete of a status URI to the remote
// followers of the given local account. Each distinct inbox receives
// exactly one copy.
func EmitDeleteToFollowers(statusURI string, owner *domain.Account, deps *Deps) {
	err, follows := deps.Database.ReadFollowsOfTarget(owner.Id)
	if err != nil || follows == nil {
		return
	}

	payload := map[string]any{
		"@context": activityStreamsContext,
		"id":       NewLocalActivityURI(deps.Conf),
		"type":     "Delete",
		"actor":    actorURIFor(owner, deps.Conf),
		"object":   statusURI,
		"to":       []string{PublicURI},
	}

	seen := make(map[string]bool)
	for _, f := range *follows {
		err, follower := deps.Database.ReadAccountById(f.AccountId)
		if err != nil || follower == nil || follower.IsLocal() {
			continue
		}
		inbox := preferredInbox(follower)
		if inbox == "" || seen[inbox] {
			continue
		}
		seen[inbox] = true
		EmitActivity(payload, owner, inbox, deps)
	}
}
