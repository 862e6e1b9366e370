package activitypub

import (
	"net/http"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/util"
	"github.com/google/uuid"
)

// Database defines the graph-store operations required by the ActivityPub
// package. This interface allows for dependency injection and testing with
// mock implementations.
type Database interface {
	// Account operations
	ReadAccountById(id uuid.UUID) (error, *domain.Account)
	ReadAccountByURI(uri string) (error, *domain.Account)
	CreateAccount(acc *domain.Account) error
	UpdateAccount(acc *domain.Account) error
	SetAccountMovedTo(id uuid.UUID, movedToId uuid.UUID) error
	CountLocalFollowersOf(accountId uuid.UUID) (int, error)
	ReadLocalFollowsOfTarget(targetAccountId uuid.UUID) (error, *[]domain.Follow)
	ReadFollowsOfTarget(targetAccountId uuid.UUID) (error, *[]domain.Follow)
	ExistsFollowFromDomain(targetAccountId uuid.UUID, domain string) (bool, error)

	// Follow operations (upserts are conditional on the (account, target)
	// pair and refresh the URI on conflict)
	UpsertFollow(follow *domain.Follow) error
	UpsertFollowRequest(req *domain.FollowRequest) error
	ReadFollowByAccountIds(accountId, targetAccountId uuid.UUID) (error, *domain.Follow)
	ReadFollowRequestByAccountIds(accountId, targetAccountId uuid.UUID) (error, *domain.FollowRequest)
	ReadFollowByURI(uri string) (error, *domain.Follow)
	ReadFollowRequestByURI(uri string) (error, *domain.FollowRequest)
	DeleteFollowByAccountIds(accountId, targetAccountId uuid.UUID) error
	DeleteFollowRequestByAccountIds(accountId, targetAccountId uuid.UUID) error
	DeleteFollowByURI(uri string) error

	// Status operations
	ReadStatusById(id uuid.UUID) (error, *domain.Status)
	ReadStatusByURI(uri string) (error, *domain.Status)
	CreateStatus(status *domain.Status, mentions []domain.Mention, tags []domain.Tag, media []domain.MediaAttachment, emojis []domain.Emoji) error
	UpdateStatus(status *domain.Status) error
	DeleteStatus(id uuid.UUID) error
	ReadReblogsOfStatus(originalId uuid.UUID) (error, *[]domain.Status)
	ReadMentionsByStatusId(statusId uuid.UUID) (error, *[]domain.Mention)

	// Poll operations
	CreatePoll(poll *domain.Poll) error
	ReadPollByStatusId(statusId uuid.UUID) (error, *domain.Poll)
	CreatePollVote(vote *domain.PollVote) (bool, error) // false if the (poll, voter) pair already voted
	IncrementPollTally(pollId uuid.UUID, optionIndex int) error

	// Favourite/reaction operations
	UpsertFavourite(fav *domain.Favourite) error
	DeleteFavouriteByAccountAndStatus(accountId, statusId uuid.UUID) error
	IncrementEmojiReactionCount(statusId uuid.UUID, emoji string) error
	ReadEmojiReactionCounts(statusId uuid.UUID) (error, map[string]int)

	// Block operations
	UpsertBlock(block *domain.Block) error
	DeleteBlockByAccountIds(accountId, targetAccountId uuid.UUID) error
	ReadDomainBlock(domainName string) (error, *domain.DomainBlock)

	// Report operations
	CreateReport(report *domain.Report) error

	// Pin operations
	UpsertStatusPin(pin *domain.StatusPin) error
	DeleteStatusPin(accountId, statusId uuid.UUID) error

	// Relay operations
	ReadRelayByActorURI(actorURI string) (error, *domain.Relay)
	ReadRelayByFollowURI(followURI string) (error, *domain.Relay)
	UpdateRelayState(id uuid.UUID, state string, acceptedAt *time.Time) error

	// Group operations
	ReadGroupById(id uuid.UUID) (error, *domain.Group)
	ReadGroupByURI(uri string) (error, *domain.Group)
	UpsertMembership(m *domain.Membership) error
	UpsertMembershipRequest(m *domain.MembershipRequest) error
	DeleteMembershipByAccountAndGroup(accountId, groupId uuid.UUID) error
	DeleteMembershipRequestByAccountAndGroup(accountId, groupId uuid.UUID) error
	ReadMembershipsByGroupId(groupId uuid.UUID) (error, *[]domain.Membership)
	IsGroupBlocked(groupId, accountId uuid.UUID) (bool, error)

	// Quote operations
	UpsertQuote(quote *domain.Quote) error

	// E2EE messaging operations
	ReadDeviceByDeviceId(deviceId string) (error, *domain.Device)
	CreateEncryptedMessage(msg *domain.EncryptedMessage) error

	// Activity log (deduplication by activity URI)
	CreateActivity(activity *domain.Activity) error
	UpdateActivity(activity *domain.Activity) error
	ReadActivityByURI(uri string) (error, *domain.Activity)

	// Delivery queue operations
	EnqueueDelivery(item *domain.DeliveryQueueItem) error
	ReadPendingDeliveries(limit int) (error, *[]domain.DeliveryQueueItem)
	UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error
	DeleteDelivery(id uuid.UUID) error
}

// HTTPClient defines the HTTP client operations required by the
// ActivityPub package. This interface allows for dependency injection and
// testing with mock implementations.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient is the default HTTP client used in production
type DefaultHTTPClient struct {
	client *http.Client
}

// NewDefaultHTTPClient creates a new default HTTP client with the specified timeout
func NewDefaultHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	return &DefaultHTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Do executes the HTTP request
func (c *DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}

// Deps holds dependencies for inbox handlers (for testing)
type Deps struct {
	Database   Database
	HTTPClient HTTPClient
	Conf       *util.AppConfig
	Spam       SpamPolicy
	Franking   KeyProvider
}

// NewDeps wires the production dependencies.
func NewDeps(conf *util.AppConfig) *Deps {
	return &Deps{
		Database:   NewDBWrapper(),
		HTTPClient: NewDefaultHTTPClient(time.Duration(conf.Conf.FetchTimeoutSecs) * time.Second),
		Conf:       conf,
		Spam:       DefaultSpamPolicy(),
		Franking:   NewConfigKeyProvider(conf),
	}
}
