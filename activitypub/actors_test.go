package activitypub

import (
	"fmt"
	"testing"
	"time"
)

func actorDocument(id, inbox string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "%s",
		"type": "Person",
		"preferredUsername": "alice",
		"inbox": "%s",
		"followers": "%s/followers",
		"publicKey": {"id": "%s#main-key", "owner": "%s", "publicKeyPem": "PEM"}
	}`, id, inbox, id, id, id))
}

func TestFetchRemoteActorStoresAccount(t *testing.T) {
	mockDB := NewMockDatabase()
	deps := newTestDeps(mockDB)

	actorURI := "https://remote.example.com/users/alice"
	client := deps.HTTPClient.(*MockHTTPClient)
	client.SetResponse(actorURI, 200, actorDocument(actorURI, actorURI+"/inbox"))

	acc, err := FetchRemoteActor(actorURI, deps)
	if err != nil {
		t.Fatalf("FetchRemoteActor failed: %v", err)
	}
	if acc.Username != "alice" || acc.Domain != "remote.example.com" {
		t.Errorf("Unexpected account %s@%s", acc.Username, acc.Domain)
	}
	if acc.InboxURI != actorURI+"/inbox" {
		t.Errorf("Inbox not stored: %q", acc.InboxURI)
	}
	if err, stored := mockDB.ReadAccountByURI(actorURI); err != nil || stored == nil {
		t.Error("Fetched actor must be persisted")
	}
}

func TestFetchRemoteActorRejectsForeignId(t *testing.T) {
	mockDB := NewMockDatabase()
	deps := newTestDeps(mockDB)

	actorURI := "https://remote.example.com/users/alice"
	// The document claims an id on a different host
	claimed := "https://evil.example.com/users/alice"
	deps.HTTPClient.(*MockHTTPClient).SetResponse(actorURI, 200, actorDocument(claimed, claimed+"/inbox"))

	if _, err := FetchRemoteActor(actorURI, deps); err == nil {
		t.Error("A document claiming a foreign id must be rejected")
	}
	if len(mockDB.Accounts) != 0 {
		t.Error("No account may be stored for a rejected document")
	}
}

func TestFetchRemoteActorRejectsMissingFields(t *testing.T) {
	deps := newTestDeps(NewMockDatabase())

	actorURI := "https://remote.example.com/users/alice"
	deps.HTTPClient.(*MockHTTPClient).SetResponse(actorURI, 200, []byte(`{"id": "https://remote.example.com/users/alice", "type": "Person"}`))

	if _, err := FetchRemoteActor(actorURI, deps); err == nil {
		t.Error("An actor without an inbox must be rejected")
	}
}

func TestGetOrFetchActorUsesFreshCache(t *testing.T) {
	mockDB := NewMockDatabase()
	deps := newTestDeps(mockDB)

	cached := newRemoteAccount("alice", "remote.example.com")
	mockDB.AddAccount(cached)

	acc, err := GetOrFetchActor(cached.URI, deps)
	if err != nil {
		t.Fatalf("GetOrFetchActor failed: %v", err)
	}
	if acc != cached {
		t.Error("Fresh cached rows must be returned without a fetch")
	}
	if len(deps.HTTPClient.(*MockHTTPClient).Requests) != 0 {
		t.Error("No request may go out for a fresh row")
	}
}

func TestGetOrFetchActorFallsBackToStaleRow(t *testing.T) {
	mockDB := NewMockDatabase()
	deps := newTestDeps(mockDB)

	cached := newRemoteAccount("alice", "remote.example.com")
	cached.LastFetchedAt = time.Now().Add(-48 * time.Hour)
	mockDB.AddAccount(cached)
	// no canned response, the refetch 404s

	acc, err := GetOrFetchActor(cached.URI, deps)
	if err != nil {
		t.Fatalf("GetOrFetchActor failed: %v", err)
	}
	if acc != cached {
		t.Error("A stale row must be returned when the refetch fails")
	}
}
