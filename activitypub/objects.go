package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// fetchRemoteStatus resolves a status reference that is unknown locally.
// Inlined attributes are used directly; a bare URI triggers a fetch. The
// stored row is minimal (owner, text, visibility) — threading and tags are
// only built for statuses that arrive through their own Create.
func fetchRemoteStatus(ref Reference, r *Resolver) (*domain.Status, error) {
	obj := ref.Inline

	if obj == nil {
		fetched, err := fetchObject(ref.URI, r.deps)
		if err != nil {
			return nil, err
		}
		obj = fetched
	}

	return storeRemoteStatus(obj, r)
}

// fetchObject retrieves and parses a remote object document, enforcing
// the same origin check as actor fetches.
func fetchObject(uri string, deps *Deps) (map[string]any, error) {
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", userAgent())

	resp, err := deps.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("object fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse object JSON: %w", err)
	}

	id, _ := obj["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("object missing id")
	}
	if !sameOrigin(uri, id) {
		return nil, fmt.Errorf("object id %s does not match request origin %s", id, uri)
	}

	return obj, nil
}

// storeRemoteStatus persists a minimal status row for a remote object.
func storeRemoteStatus(obj map[string]any, r *Resolver) (*domain.Status, error) {
	objRef := NewReference(obj)
	if objRef.URI == "" {
		return nil, fmt.Errorf("status object missing id")
	}

	attributedTo := objRef.Str("attributedTo")
	if attributedTo == "" {
		return nil, fmt.Errorf("status object missing attributedTo")
	}

	author := r.Account(NewReference(attributedTo))
	if author == nil {
		return nil, fmt.Errorf("could not resolve status author %s", attributedTo)
	}

	audience := ResolveAudience(objRef.Get("to"), objRef.Get("cc"), author.FollowersURI)

	status := &domain.Status{
		Id:                  uuid.New(),
		URI:                 objRef.URI,
		AccountId:           author.Id,
		Text:                objRef.Str("content"),
		Visibility:          audience.Visibility,
		SpoilerText:         objRef.Str("summary"),
		ConversationURI:     objRef.Str("conversation"),
		QuoteApprovalPolicy: quotePolicyFromObject(objRef),
		CreatedAt:           time.Now(),
	}

	if err := r.deps.Database.CreateStatus(status, nil, nil, nil, nil); err != nil {
		// Lost a concurrent race; the winning row is authoritative
		if readErr, existing := r.deps.Database.ReadStatusByURI(objRef.URI); readErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to store remote status: %w", err)
	}

	return status, nil
}

// quotePolicyFromObject reads an interactionPolicy-style quote approval
// hint from a remote object, defaulting to public.
func quotePolicyFromObject(ref Reference) string {
	if s := ref.Str("quoteApprovalPolicy"); s != "" {
		return s
	}
	return domain.QuotePolicyPublic
}
