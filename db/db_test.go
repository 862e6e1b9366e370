package db

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *DB {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db := &DB{db: sqlDB}
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func testAccount(username, domainName string) *domain.Account {
	host := domainName
	if host == "" {
		host = "local.example.com"
	}
	return &domain.Account{
		Id:            uuid.New(),
		Username:      username,
		Domain:        domainName,
		URI:           "https://" + host + "/users/" + username,
		InboxURI:      "https://" + host + "/users/" + username + "/inbox",
		FollowersURI:  "https://" + host + "/users/" + username + "/followers",
		LastFetchedAt: time.Now(),
		CreatedAt:     time.Now(),
	}
}

func TestCreateAndReadAccount(t *testing.T) {
	db := setupTestDB(t)

	acc := testAccount("alice", "remote.example.com")
	acc.DisplayName = "Alice"
	acc.Locked = true
	acc.AlsoKnownAs = []string{"https://old.example.com/users/alice"}

	if err := db.CreateAccount(acc); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	err, stored := db.ReadAccountByURI(acc.URI)
	if err != nil {
		t.Fatalf("ReadAccountByURI failed: %v", err)
	}
	if stored.Id != acc.Id || stored.Username != "alice" || stored.Domain != "remote.example.com" {
		t.Errorf("Unexpected account: %+v", stored)
	}
	if !stored.Locked {
		t.Error("Locked flag not round-tripped")
	}
	if len(stored.AlsoKnownAs) != 1 || stored.AlsoKnownAs[0] != "https://old.example.com/users/alice" {
		t.Errorf("alsoKnownAs not round-tripped: %v", stored.AlsoKnownAs)
	}

	err, byId := db.ReadAccountById(acc.Id)
	if err != nil || byId.URI != acc.URI {
		t.Error("ReadAccountById must return the same row")
	}
}

func TestReadAccountByUsernameOnlyMatchesLocal(t *testing.T) {
	db := setupTestDB(t)

	local := testAccount("alice", "")
	remote := testAccount("alice", "remote.example.com")
	if err := db.CreateAccount(local); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := db.CreateAccount(remote); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	err, stored := db.ReadAccountByUsername("alice")
	if err != nil {
		t.Fatalf("ReadAccountByUsername failed: %v", err)
	}
	if stored.Id != local.Id {
		t.Error("Username lookup must only match local accounts")
	}
}

func TestCreateAccountDuplicateURI(t *testing.T) {
	db := setupTestDB(t)

	acc := testAccount("alice", "remote.example.com")
	if err := db.CreateAccount(acc); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	dup := testAccount("alice2", "remote.example.com")
	dup.URI = acc.URI
	err := db.CreateAccount(dup)
	if err == nil || !strings.Contains(err.Error(), "UNIQUE constraint failed") {
		t.Errorf("Expected UNIQUE violation, got: %v", err)
	}
}

func TestSetAccountMovedToFirstWriteWins(t *testing.T) {
	db := setupTestDB(t)

	acc := testAccount("alice", "remote.example.com")
	first := testAccount("alice", "new.example.com")
	second := testAccount("alice", "newer.example.com")
	for _, a := range []*domain.Account{acc, first, second} {
		if err := db.CreateAccount(a); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}

	if err := db.SetAccountMovedTo(acc.Id, first.Id); err != nil {
		t.Fatalf("SetAccountMovedTo failed: %v", err)
	}
	if err := db.SetAccountMovedTo(acc.Id, second.Id); err != nil {
		t.Fatalf("SetAccountMovedTo failed: %v", err)
	}

	err, stored := db.ReadAccountById(acc.Id)
	if err != nil {
		t.Fatalf("ReadAccountById failed: %v", err)
	}
	if stored.MovedToId == nil || *stored.MovedToId != first.Id {
		t.Error("A second moved_to write must not override the first")
	}
}

func TestUpsertFollowIdempotent(t *testing.T) {
	db := setupTestDB(t)

	follower := testAccount("alice", "remote.example.com")
	target := testAccount("bob", "")
	for _, a := range []*domain.Account{follower, target} {
		if err := db.CreateAccount(a); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}

	follow := &domain.Follow{
		Id:              uuid.New(),
		AccountId:       follower.Id,
		TargetAccountId: target.Id,
		URI:             "https://remote.example.com/activities/f1",
		CreatedAt:       time.Now(),
	}
	if err := db.UpsertFollow(follow); err != nil {
		t.Fatalf("UpsertFollow failed: %v", err)
	}

	// Re-sent Follow with a new URI keeps the row, refreshes the URI
	resent := &domain.Follow{
		Id:              uuid.New(),
		AccountId:       follower.Id,
		TargetAccountId: target.Id,
		URI:             "https://remote.example.com/activities/f2",
		CreatedAt:       time.Now(),
	}
	if err := db.UpsertFollow(resent); err != nil {
		t.Fatalf("Second UpsertFollow failed: %v", err)
	}

	err, stored := db.ReadFollowByAccountIds(follower.Id, target.Id)
	if err != nil {
		t.Fatalf("ReadFollowByAccountIds failed: %v", err)
	}
	if stored.Id != follow.Id {
		t.Error("Upsert must keep the original row id")
	}
	if stored.URI != "https://remote.example.com/activities/f2" {
		t.Errorf("Upsert must refresh the URI, got %q", stored.URI)
	}

	err, byURI := db.ReadFollowByURI("https://remote.example.com/activities/f2")
	if err != nil || byURI.Id != follow.Id {
		t.Error("Follow must be readable by its refreshed URI")
	}

	if err := db.DeleteFollowByAccountIds(follower.Id, target.Id); err != nil {
		t.Fatalf("DeleteFollowByAccountIds failed: %v", err)
	}
	if err, _ := db.ReadFollowByAccountIds(follower.Id, target.Id); err != sql.ErrNoRows {
		t.Errorf("Expected sql.ErrNoRows after delete, got: %v", err)
	}
}

func TestPromoteFollowRequest(t *testing.T) {
	db := setupTestDB(t)

	follower := testAccount("alice", "remote.example.com")
	target := testAccount("bob", "")
	for _, a := range []*domain.Account{follower, target} {
		if err := db.CreateAccount(a); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}

	req := &domain.FollowRequest{
		Id:              uuid.New(),
		AccountId:       follower.Id,
		TargetAccountId: target.Id,
		URI:             "https://remote.example.com/activities/f1",
		CreatedAt:       time.Now(),
	}
	if err := db.UpsertFollowRequest(req); err != nil {
		t.Fatalf("UpsertFollowRequest failed: %v", err)
	}

	if err := db.PromoteFollowRequest(req.Id); err != nil {
		t.Fatalf("PromoteFollowRequest failed: %v", err)
	}

	err, follow := db.ReadFollowByAccountIds(follower.Id, target.Id)
	if err != nil {
		t.Fatalf("Expected follow after promotion: %v", err)
	}
	if follow.URI != req.URI {
		t.Errorf("Promotion must keep the request URI, got %q", follow.URI)
	}
	if err, _ := db.ReadFollowRequestByAccountIds(follower.Id, target.Id); err != sql.ErrNoRows {
		t.Error("Request must be gone after promotion")
	}
}

func TestCountLocalFollowers(t *testing.T) {
	db := setupTestDB(t)

	target := testAccount("bob", "")
	localFollower := testAccount("carol", "")
	remoteFollower := testAccount("alice", "remote.example.com")
	for _, a := range []*domain.Account{target, localFollower, remoteFollower} {
		if err := db.CreateAccount(a); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}
	for _, follower := range []*domain.Account{localFollower, remoteFollower} {
		if err := db.UpsertFollow(&domain.Follow{
			Id:              uuid.New(),
			AccountId:       follower.Id,
			TargetAccountId: target.Id,
			URI:             "https://example.com/f/" + follower.Username,
			CreatedAt:       time.Now(),
		}); err != nil {
			t.Fatalf("UpsertFollow failed: %v", err)
		}
	}

	count, err := db.CountLocalFollowersOf(target.Id)
	if err != nil {
		t.Fatalf("CountLocalFollowersOf failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 local follower, got %d", count)
	}

	exists, err := db.ExistsFollowFromDomain(target.Id, "remote.example.com")
	if err != nil || !exists {
		t.Error("Expected a follow from remote.example.com")
	}
	exists, err = db.ExistsFollowFromDomain(target.Id, "other.example.com")
	if err != nil || exists {
		t.Error("No follow exists from other.example.com")
	}
}

func TestCreateStatusWithDependents(t *testing.T) {
	db := setupTestDB(t)

	author := testAccount("alice", "remote.example.com")
	mentioned := testAccount("bob", "")
	for _, a := range []*domain.Account{author, mentioned} {
		if err := db.CreateAccount(a); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}

	status := &domain.Status{
		Id:         uuid.New(),
		URI:        "https://remote.example.com/notes/1",
		AccountId:  author.Id,
		Text:       "hello @bob #golang",
		Visibility: domain.VisibilityPublic,
		Sensitive:  true,
		CreatedAt:  time.Now(),
	}
	mentions := []domain.Mention{{Id: uuid.New(), StatusId: status.Id, AccountId: mentioned.Id}}
	tags := []domain.Tag{{Id: uuid.New(), StatusId: status.Id, Name: "golang"}}

	if err := db.CreateStatus(status, mentions, tags, nil, nil); err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}

	err, stored := db.ReadStatusByURI(status.URI)
	if err != nil {
		t.Fatalf("ReadStatusByURI failed: %v", err)
	}
	if stored.Text != status.Text || !stored.Sensitive {
		t.Errorf("Status not round-tripped: %+v", stored)
	}

	err, storedMentions := db.ReadMentionsByStatusId(status.Id)
	if err != nil || len(*storedMentions) != 1 {
		t.Fatal("Expected 1 stored mention")
	}
	if (*storedMentions)[0].AccountId != mentioned.Id {
		t.Error("Mention must reference the mentioned account")
	}

	if err := db.DeleteStatus(status.Id); err != nil {
		t.Fatalf("DeleteStatus failed: %v", err)
	}
	if err, _ := db.ReadStatusById(status.Id); err != sql.ErrNoRows {
		t.Error("Status must be gone after delete")
	}
	err, afterDelete := db.ReadMentionsByStatusId(status.Id)
	if err != nil || len(*afterDelete) != 0 {
		t.Error("Dependent mentions must be deleted with the status")
	}
}

func TestPollVotesAndTallies(t *testing.T) {
	db := setupTestDB(t)

	author := testAccount("alice", "")
	if err := db.CreateAccount(author); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	status := &domain.Status{
		Id:         uuid.New(),
		URI:        "https://local.example.com/users/alice/statuses/1",
		AccountId:  author.Id,
		Visibility: domain.VisibilityPublic,
		CreatedAt:  time.Now(),
	}
	if err := db.CreateStatus(status, nil, nil, nil, nil); err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}

	poll := &domain.Poll{
		Id:       uuid.New(),
		StatusId: status.Id,
		Options:  []string{"tabs", "spaces"},
		Tallies:  []int{0, 0},
	}
	if err := db.CreatePoll(poll); err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}

	vote := &domain.PollVote{
		Id:          uuid.New(),
		PollId:      poll.Id,
		VoterURI:    "https://remote.example.com/users/bob",
		OptionIndex: 0,
		CreatedAt:   time.Now(),
	}
	created, err := db.CreatePollVote(vote)
	if err != nil || !created {
		t.Fatalf("First vote must be created, got created=%v err=%v", created, err)
	}

	dup := &domain.PollVote{
		Id:          uuid.New(),
		PollId:      poll.Id,
		VoterURI:    vote.VoterURI,
		OptionIndex: 1,
		CreatedAt:   time.Now(),
	}
	created, err = db.CreatePollVote(dup)
	if err != nil {
		t.Fatalf("Duplicate vote must not error: %v", err)
	}
	if created {
		t.Error("A voter may only vote once per poll")
	}

	if err := db.IncrementPollTally(poll.Id, 0); err != nil {
		t.Fatalf("IncrementPollTally failed: %v", err)
	}
	if err := db.IncrementPollTally(poll.Id, 5); err != sql.ErrNoRows {
		t.Errorf("Out-of-range option must error, got: %v", err)
	}

	err, stored := db.ReadPollByStatusId(status.Id)
	if err != nil {
		t.Fatalf("ReadPollByStatusId failed: %v", err)
	}
	if stored.Tallies[0] != 1 || stored.Tallies[1] != 0 {
		t.Errorf("Unexpected tallies: %v", stored.Tallies)
	}
}

func TestEmojiReactionCounts(t *testing.T) {
	db := setupTestDB(t)

	statusId := uuid.New()
	for i := 0; i < 3; i++ {
		if err := db.IncrementEmojiReactionCount(statusId, "🔥"); err != nil {
			t.Fatalf("IncrementEmojiReactionCount failed: %v", err)
		}
	}
	if err := db.IncrementEmojiReactionCount(statusId, ":blobcat:"); err != nil {
		t.Fatalf("IncrementEmojiReactionCount failed: %v", err)
	}

	err, counts := db.ReadEmojiReactionCounts(statusId)
	if err != nil {
		t.Fatalf("ReadEmojiReactionCounts failed: %v", err)
	}
	if counts["🔥"] != 3 || counts[":blobcat:"] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}

func TestActivityLogDeduplicates(t *testing.T) {
	db := setupTestDB(t)

	record := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  "https://remote.example.com/activities/a1",
		ActivityType: "Create",
		ActorURI:     "https://remote.example.com/users/alice",
		RawJSON:      "{}",
		CreatedAt:    time.Now(),
	}
	if err := db.CreateActivity(record); err != nil {
		t.Fatalf("CreateActivity failed: %v", err)
	}

	dup := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  record.ActivityURI,
		ActivityType: "Create",
		ActorURI:     record.ActorURI,
		RawJSON:      "{}",
		CreatedAt:    time.Now(),
	}
	err := db.CreateActivity(dup)
	if err == nil || !strings.Contains(err.Error(), "UNIQUE constraint failed") {
		t.Errorf("Expected UNIQUE violation for a re-delivered activity, got: %v", err)
	}

	err, stored := db.ReadActivityByURI(record.ActivityURI)
	if err != nil || stored.Id != record.Id {
		t.Error("Original activity record must survive")
	}
}

func TestDeliveryQueueLifecycle(t *testing.T) {
	db := setupTestDB(t)

	due := &domain.DeliveryQueueItem{
		Id:           uuid.New(),
		InboxURI:     "https://remote.example.com/users/alice/inbox",
		ActivityJSON: `{"type":"Accept"}`,
		AccountId:    uuid.New(),
		NextRetryAt:  time.Now().Add(-time.Minute),
		CreatedAt:    time.Now(),
	}
	later := &domain.DeliveryQueueItem{
		Id:           uuid.New(),
		InboxURI:     "https://other.example.com/users/bob/inbox",
		ActivityJSON: `{"type":"Accept"}`,
		AccountId:    uuid.New(),
		NextRetryAt:  time.Now().Add(time.Hour),
		CreatedAt:    time.Now(),
	}
	for _, item := range []*domain.DeliveryQueueItem{due, later} {
		if err := db.EnqueueDelivery(item); err != nil {
			t.Fatalf("EnqueueDelivery failed: %v", err)
		}
	}

	err, items := db.ReadPendingDeliveries(50)
	if err != nil {
		t.Fatalf("ReadPendingDeliveries failed: %v", err)
	}
	if len(*items) != 1 || (*items)[0].Id != due.Id {
		t.Fatalf("Only the due item may be pending, got %d items", len(*items))
	}

	retryAt := time.Now().Add(5 * time.Minute)
	if err := db.UpdateDeliveryAttempt(due.Id, 1, retryAt); err != nil {
		t.Fatalf("UpdateDeliveryAttempt failed: %v", err)
	}
	err, items = db.ReadPendingDeliveries(50)
	if err != nil || len(*items) != 0 {
		t.Error("Rescheduled item must no longer be due")
	}

	if err := db.DeleteDelivery(due.Id); err != nil {
		t.Fatalf("DeleteDelivery failed: %v", err)
	}
}

func TestDomainBlocks(t *testing.T) {
	db := setupTestDB(t)

	if err := db.UpsertDomainBlock(&domain.DomainBlock{
		Id:            uuid.New(),
		Domain:        "spam.example.com",
		RejectFollows: true,
		CreatedAt:     time.Now(),
	}); err != nil {
		t.Fatalf("UpsertDomainBlock failed: %v", err)
	}

	err, block := db.ReadDomainBlock("spam.example.com")
	if err != nil {
		t.Fatalf("ReadDomainBlock failed: %v", err)
	}
	if !block.RejectFollows {
		t.Error("RejectFollows flag not round-tripped")
	}

	if err, _ := db.ReadDomainBlock("fine.example.com"); err != sql.ErrNoRows {
		t.Errorf("Expected sql.ErrNoRows for an unblocked domain, got: %v", err)
	}
}

func TestNodeinfoCounters(t *testing.T) {
	db := setupTestDB(t)

	local := testAccount("alice", "")
	remote := testAccount("bob", "remote.example.com")
	for _, a := range []*domain.Account{local, remote} {
		if err := db.CreateAccount(a); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}
	for _, author := range []*domain.Account{local, remote} {
		if err := db.CreateStatus(&domain.Status{
			Id:         uuid.New(),
			URI:        "https://example.com/notes/" + author.Username,
			AccountId:  author.Id,
			Visibility: domain.VisibilityPublic,
			CreatedAt:  time.Now(),
		}, nil, nil, nil, nil); err != nil {
			t.Fatalf("CreateStatus failed: %v", err)
		}
	}

	users, err := db.CountLocalAccounts()
	if err != nil || users != 1 {
		t.Errorf("Expected 1 local account, got %d (%v)", users, err)
	}
	posts, err := db.CountLocalStatuses()
	if err != nil || posts != 1 {
		t.Errorf("Expected 1 local status, got %d (%v)", posts, err)
	}
	active, err := db.CountActiveAccountsSince(time.Now().Add(-time.Hour))
	if err != nil || active != 1 {
		t.Errorf("Expected 1 active local account, got %d (%v)", active, err)
	}
}
