package activitypub

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/util"
	"github.com/google/uuid"
)

// Max request/response body size (1MB) to prevent DoS
const maxBodySize = 1 * 1024 * 1024

func userAgent() string {
	return fmt.Sprintf("%s/%s ActivityPub", util.Name, util.GetVersion())
}

// ProcessingContext carries delivery metadata into the handlers.
type ProcessingContext struct {
	DeliveredToId uuid.UUID     // local account the activity was addressed to, if known
	Async         bool          // true when processed off the queue rather than inline
	Relay         *domain.Relay // set when the activity arrived via a relay
}

// handlerFunc applies exactly one state transition for one activity type.
type handlerFunc func(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error

// handlers is the static dispatch table. Unknown types deliberately have
// no entry and resolve to a no-op: federation must tolerate extensions.
var handlers = map[string]handlerFunc{
	"Create":       handleCreate,
	"Update":       handleUpdate,
	"Delete":       handleDelete,
	"Follow":       handleFollow,
	"Accept":       handleAccept,
	"Reject":       handleReject,
	"Undo":         handleUndo,
	"Announce":     handleAnnounce,
	"Like":         handleLike,
	"EmojiReact":   handleLike,
	"Block":        handleBlock,
	"Flag":         handleFlag,
	"Add":          handleAdd,
	"Remove":       handleRemove,
	"Move":         handleMove,
	"Join":         handleJoin,
	"Leave":        handleLeave,
	"QuoteRequest": handleQuoteRequest,
}

// ProcessActivity routes one parsed activity to its handler. The
// dispatcher itself never mutates state; it only selects the handler and
// hands over the already-resolved sender.
func ProcessActivity(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	if act == nil || sender == nil {
		return nil
	}
	if pctx == nil {
		pctx = &ProcessingContext{}
	}

	handler, ok := handlers[act.Type]
	if !ok {
		log.Printf("Inbox: Unsupported activity type: %s", act.Type)
		return nil
	}

	return handler(act, sender, pctx, deps)
}

// HandleInbox processes incoming ActivityPub activities over HTTP.
func HandleInbox(w http.ResponseWriter, r *http.Request, conf *util.AppConfig) {
	HandleInboxWithDeps(w, r, NewDeps(conf))
}

// HandleInboxWithDeps processes incoming ActivityPub activities.
// This version accepts dependencies for testing.
func HandleInboxWithDeps(w http.ResponseWriter, r *http.Request, deps *Deps) {
	// Verify HTTP signature header presence before doing any work
	signature := r.Header.Get("Signature")
	if signature == "" {
		log.Printf("Inbox: Missing HTTP signature")
		http.Error(w, "Missing signature", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Printf("Inbox: Failed to read body: %v", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) == maxBodySize {
		log.Printf("Inbox: Request body too large")
		http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		return
	}

	activity, err := ParseActivity(body)
	if err != nil {
		log.Printf("Inbox: %v", err)
		// Malformed activities are dropped, not errors to the sender
		w.WriteHeader(http.StatusAccepted)
		return
	}

	actorURI := activity.ActorURI()
	if actorURI == "" {
		log.Printf("Inbox: Activity %s has no actor", activity.ID)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	log.Printf("Inbox: Received %s from %s", activity.Type, actorURI)

	// Fetch the sending actor to verify and cache
	sender, err := GetOrFetchActor(actorURI, deps)
	if err != nil {
		log.Printf("Inbox: Failed to fetch actor %s: %v", actorURI, err)
		http.Error(w, "Failed to verify actor", http.StatusBadRequest)
		return
	}

	// Restore body for signature verification (body was consumed during read)
	r.Body = io.NopCloser(bytes.NewReader(body))

	keyOwner, err := VerifyRequest(r, sender.PublicKeyPem)
	if err != nil {
		log.Printf("Inbox: Signature verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}
	if keyOwner != sender.URI {
		log.Printf("Inbox: Signature key %s does not belong to %s", keyOwner, sender.URI)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	// Store the activity for deduplication before processing
	activityRecord := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  activity.ID,
		ActivityType: activity.Type,
		ActorURI:     actorURI,
		ObjectURI:    NewReference(activity.Object).ID(),
		RawJSON:      string(body),
		Processed:    false,
		Local:        false,
		CreatedAt:    time.Now(),
	}

	database := deps.Database
	if err := database.CreateActivity(activityRecord); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			log.Printf("Inbox: Activity %s already processed, returning success", activity.ID)
			w.WriteHeader(http.StatusAccepted)
			return
		}
		log.Printf("Inbox: Failed to store activity: %v", err)
		// Don't fail the request, we'll process it anyway
	}

	pctx := &ProcessingContext{}
	if err, relay := database.ReadRelayByActorURI(actorURI); err == nil && relay != nil {
		pctx.Relay = relay
		activityRecord.FromRelay = true
	}

	if err := ProcessActivity(activity, sender, pctx, deps); err != nil {
		log.Printf("Inbox: Failed to handle %s: %v", activity.Type, err)
		http.Error(w, "Failed to process activity", http.StatusInternalServerError)
		return
	}

	activityRecord.Processed = true
	if err := database.UpdateActivity(activityRecord); err != nil {
		log.Printf("Inbox: Failed to update activity: %v", err)
		// Continue anyway, this is not critical
	}

	w.WriteHeader(http.StatusAccepted)
}
