package activitypub

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

func TestDeleteOwnStatus(t *testing.T) {
	mockDB := NewMockDatabase()
	deps := newTestDeps(mockDB)

	sender := newRemoteAccount("alice", "remote.example.com")
	mockDB.AddAccount(sender)

	status := &domain.Status{
		Id:         uuid.New(),
		URI:        "https://remote.example.com/notes/1",
		AccountId:  sender.Id,
		Visibility: domain.VisibilityPublic,
		CreatedAt:  time.Now(),
	}
	mockDB.AddStatus(status)

	act := mustParseActivity(fmt.Sprintf(`{
		"id": "https://remote.example.com/activities/del1",
		"type": "Delete",
		"actor": "%s",
		"object": "%s"
	}`, sender.URI, status.URI))

	if err := ProcessActivity(act, sender, nil, deps); err != nil {
		t.Fatalf("ProcessActivity failed: %v", err)
	}

	if err, _ := mockDB.ReadStatusByURI(status.URI); err == nil {
		t.Error("Status must be removed")
	}
}

func TestDeleteUnownedStatusIgnored(t *testing.T) {
	mockDB := NewMockDatabase()
	deps := newTestDeps(mockDB)

	sender := newRemoteAccount("alice", "remote.example.com")
	author := newRemoteAccount("carol", "other.example.com")
	mockDB.AddAccount(sender)
	mockDB.AddAccount(author)

	status := &domain.Status{
		Id:         uuid.New(),
		URI:        "https://other.example.com/notes/1",
		AccountId:  author.Id,
		Visibility: domain.VisibilityPublic,
		CreatedAt:  time.Now(),
	}
	mockDB.AddStatus(status)

	act := mustParseActivity(fmt.Sprintf(`{
		"id": "https://remote.example.com/activities/del1",
		"type": "Delete",
		"actor": "%s",
		"object": "%s"
	}`, sender.URI, status.URI))

	if err := ProcessActivity(act, sender, nil, deps); err != nil {
		t.Fatalf("ProcessActivity failed: %v", err)
	}

	if err, _ := mockDB.ReadStatusByURI(status.URI); err != nil {
		t.Error("Status not owned by the sender must survive")
	}
}

func TestDeleteCascadesToReblogsAndNotifiesFollowers(t *testing.T) {
	mockDB := NewMockDatabase()
	deps := newTestDeps(mockDB)

	sender := newRemoteAccount("alice", "remote.example.com")
	reblogger := newLocalAccount("bob")
	follower := newRemoteAccount("carol", "other.example.com")
	mockDB.AddAccount(sender)
	mockDB.AddAccount(reblogger)
	mockDB.AddAccount(follower)

	// carol follows bob, so she learned about bob's boost
	mockDB.AddFollow(&domain.Follow{
		Id:              uuid.New(),
		AccountId:       follower.Id,
		TargetAccountId: reblogger.Id,
		URI:             "https://other.example.com/follows/1",
		CreatedAt:       time.Now(),
	})

	original := &domain.Status{
		Id:         uuid.New(),
		URI:        "https://remote.example.com/notes/1",
		AccountId:  sender.Id,
		Visibility: domain.VisibilityPublic,
		CreatedAt:  time.Now(),
	}
	mockDB.AddStatus(original)

	reblog := &domain.Status{
		Id:         uuid.New(),
		URI:        "https://local.example.com/users/bob/statuses/boost1",
		AccountId:  reblogger.Id,
		Visibility: domain.VisibilityPublic,
		ReblogOfId: &original.Id,
		CreatedAt:  time.Now(),
	}
	mockDB.AddStatus(reblog)

	act := mustParseActivity(fmt.Sprintf(`{
		"id": "https://remote.example.com/activities/del1",
		"type": "Delete",
		"actor": "%s",
		"object": "%s"
	}`, sender.URI, original.URI))

	if err := ProcessActivity(act, sender, nil, deps); err != nil {
		t.Fatalf("ProcessActivity failed: %v", err)
	}

	if len(mockDB.Statuses) != 0 {
		t.Errorf("Original and reblog must both be removed, %d left", len(mockDB.Statuses))
	}

	// carol must be told bob's boost is gone
	if len(mockDB.DeliveryQueue) != 1 {
		t.Fatalf("Expected 1 queued delivery, got %d", len(mockDB.DeliveryQueue))
	}
	for _, item := range mockDB.DeliveryQueue {
		if item.InboxURI != follower.InboxURI {
			t.Errorf("Delete notice queued for %s, expected %s", item.InboxURI, follower.InboxURI)
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(item.ActivityJSON), &payload); err != nil {
			t.Fatalf("Queued activity is not JSON: %v", err)
		}
		if payload["type"] != "Delete" {
			t.Errorf("Expected Delete notice, got %v", payload["type"])
		}
		if payload["object"] != reblog.URI {
			t.Errorf("Delete notice must name the reblog, got %v", payload["object"])
		}
	}
}

func TestDeleteUnknownObjectIsNoOp(t *testing.T) {
	mockDB := NewMockDatabase()
	deps := newTestDeps(mockDB)

	sender := newRemoteAccount("alice", "remote.example.com")
	mockDB.AddAccount(sender)

	act := mustParseActivity(fmt.Sprintf(`{
		"id": "https://remote.example.com/activities/del1",
		"type": "Delete",
		"actor": "%s",
		"object": "https://remote.example.com/notes/unknown"
	}`, sender.URI))

	if err := ProcessActivity(act, sender, nil, deps); err != nil {
		t.Fatalf("Delete of unknown object must not error: %v", err)
	}
}
