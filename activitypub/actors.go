package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// ActorResponse represents the JSON structure of an ActivityPub actor
type ActorResponse struct {
	Context           any      `json:"@context"`
	ID                string   `json:"id"`
	Type              string   `json:"type"`
	PreferredUsername string   `json:"preferredUsername"`
	Name              string   `json:"name"`
	Summary           string   `json:"summary"`
	Inbox             string   `json:"inbox"`
	Outbox            string   `json:"outbox"`
	Followers         string   `json:"followers"`
	Featured          string   `json:"featured"`
	AlsoKnownAs       []string `json:"alsoKnownAs"`
	MovedTo           string   `json:"movedTo"`
	ManuallyApproves  bool     `json:"manuallyApprovesFollowers"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	Icon struct {
		Type      string `json:"type"`
		MediaType string `json:"mediaType"`
		URL       string `json:"url"`
	} `json:"icon"`
	PublicKey struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// FetchRemoteActor fetches an actor document from a remote server and
// stores it. The document id must live on the same host as the requested
// URI, otherwise the response is rejected.
func FetchRemoteActor(actorURI string, deps *Deps) (*domain.Account, error) {
	req, err := http.NewRequest("GET", actorURI, nil)
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
		return nil, fmt.Errorf("actor fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var actor ActorResponse
	if err := json.Unmarshal(body, &actor); err != nil {
		return nil, fmt.Errorf("failed to parse actor JSON: %w", err)
	}

	if actor.ID == "" || actor.Inbox == "" {
		return nil, fmt.Errorf("actor missing required fields")
	}

	// Origin check: a document claiming an id on another host is hostile
	if !sameOrigin(actorURI, actor.ID) {
		return nil, fmt.Errorf("actor id %s does not match request origin %s", actor.ID, actorURI)
	}

	domainName, err := extractDomain(actor.ID)
	if err != nil {
		return nil, err
	}

	acc := &domain.Account{
		Id:             uuid.New(),
		Username:       actor.PreferredUsername,
		Domain:         domainName,
		URI:            actor.ID,
		DisplayName:    actor.Name,
		Summary:        actor.Summary,
		InboxURI:       actor.Inbox,
		SharedInboxURI: actor.Endpoints.SharedInbox,
		FollowersURI:   actor.Followers,
		FeaturedURI:    actor.Featured,
		PublicKeyPem:   actor.PublicKey.PublicKeyPem,
		AvatarURL:      actor.Icon.URL,
		Locked:         actor.ManuallyApproves,
		AlsoKnownAs:    actor.AlsoKnownAs,
		LastFetchedAt:  time.Now(),
		CreatedAt:      time.Now(),
	}

	database := deps.Database
	if err := database.CreateAccount(acc); err != nil {
		// Concurrent delivery may have won the race; fall back to the row
		// that exists now
		if readErr, existing := database.ReadAccountByURI(actor.ID); readErr == nil && existing != nil {
			return existing, nil
		}
		if err := database.UpdateAccount(acc); err != nil {
			return nil, fmt.Errorf("failed to store remote account: %w", err)
		}
	}

	return acc, nil
}

// GetOrFetchActor returns an account from the store or fetches it if not
// cached or stale.
func GetOrFetchActor(actorURI string, deps *Deps) (*domain.Account, error) {
	err, cached := deps.Database.ReadAccountByURI(actorURI)
	if err == nil && cached != nil {
		// Local accounts and fresh remote rows never need a fetch
		if cached.IsLocal() || time.Since(cached.LastFetchedAt) < 24*time.Hour {
			return cached, nil
		}
	}

	acc, fetchErr := FetchRemoteActor(actorURI, deps)
	if fetchErr != nil {
		// A stale row is still better than nothing
		if cached != nil {
			return cached, nil
		}
		return nil, fetchErr
	}
	return acc, nil
}

// extractDomain extracts the host from an actor URI.
// Example: "https://mastodon.example/users/alice" -> "mastodon.example"
func extractDomain(actorURI string) (string, error) {
	parsed, err := url.Parse(actorURI)
	if err != nil {
		return "", fmt.Errorf("invalid actor URI: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("actor URI has no host: %s", actorURI)
	}
	return parsed.Host, nil
}

// sameOrigin reports whether two URIs share a host.
func sameOrigin(a, b string) bool {
	ha, errA := extractDomain(a)
	hb, errB := extractDomain(b)
	return errA == nil && errB == nil && strings.EqualFold(ha, hb)
}
