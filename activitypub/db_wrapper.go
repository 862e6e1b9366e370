package activitypub

import (
	"time"

	"github.com/deemkeen/mammut/db"
	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// DBWrapper wraps the real database to implement the Database interface.
// This allows the production code to use the actual database while tests
// can use mocks.
type DBWrapper struct {
	db *db.DB
}

// NewDBWrapper creates a new database wrapper around the singleton
// database.
func NewDBWrapper() *DBWrapper {
	return &DBWrapper{db: db.GetDB()}
}

// Account operations

func (w *DBWrapper) ReadAccountById(id uuid.UUID) (error, *domain.Account) {
	return w.db.ReadAccountById(id)
}

func (w *DBWrapper) ReadAccountByURI(uri string) (error, *domain.Account) {
	return w.db.ReadAccountByURI(uri)
}

func (w *DBWrapper) CreateAccount(acc *domain.Account) error {
	return w.db.CreateAccount(acc)
}

func (w *DBWrapper) UpdateAccount(acc *domain.Account) error {
	return w.db.UpdateAccount(acc)
}

func (w *DBWrapper) SetAccountMovedTo(id uuid.UUID, movedToId uuid.UUID) error {
	return w.db.SetAccountMovedTo(id, movedToId)
}

func (w *DBWrapper) CountLocalFollowersOf(accountId uuid.UUID) (int, error) {
	return w.db.CountLocalFollowersOf(accountId)
}

func (w *DBWrapper) ReadLocalFollowsOfTarget(targetAccountId uuid.UUID) (error, *[]domain.Follow) {
	return w.db.ReadLocalFollowsOfTarget(targetAccountId)
}

func (w *DBWrapper) ReadFollowsOfTarget(targetAccountId uuid.UUID) (error, *[]domain.Follow) {
	return w.db.ReadFollowsOfTarget(targetAccountId)
}

func (w *DBWrapper) ExistsFollowFromDomain(targetAccountId uuid.UUID, domainName string) (bool, error) {
	return w.db.ExistsFollowFromDomain(targetAccountId, domainName)
}

// Follow operations

func (w *DBWrapper) UpsertFollow(follow *domain.Follow) error {
	return w.db.UpsertFollow(follow)
}

func (w *DBWrapper) UpsertFollowRequest(req *domain.FollowRequest) error {
	return w.db.UpsertFollowRequest(req)
}

func (w *DBWrapper) ReadFollowByAccountIds(accountId, targetAccountId uuid.UUID) (error, *domain.Follow) {
	return w.db.ReadFollowByAccountIds(accountId, targetAccountId)
}

func (w *DBWrapper) ReadFollowRequestByAccountIds(accountId, targetAccountId uuid.UUID) (error, *domain.FollowRequest) {
	return w.db.ReadFollowRequestByAccountIds(accountId, targetAccountId)
}

func (w *DBWrapper) ReadFollowByURI(uri string) (error, *domain.Follow) {
	return w.db.ReadFollowByURI(uri)
}

func (w *DBWrapper) ReadFollowRequestByURI(uri string) (error, *domain.FollowRequest) {
	return w.db.ReadFollowRequestByURI(uri)
}

func (w *DBWrapper) DeleteFollowByAccountIds(accountId, targetAccountId uuid.UUID) error {
	return w.db.DeleteFollowByAccountIds(accountId, targetAccountId)
}

func (w *DBWrapper) DeleteFollowRequestByAccountIds(accountId, targetAccountId uuid.UUID) error {
	return w.db.DeleteFollowRequestByAccountIds(accountId, targetAccountId)
}

func (w *DBWrapper) DeleteFollowByURI(uri string) error {
	return w.db.DeleteFollowByURI(uri)
}

// Status operations

func (w *DBWrapper) ReadStatusById(id uuid.UUID) (error, *domain.Status) {
	return w.db.ReadStatusById(id)
}

func (w *DBWrapper) ReadStatusByURI(uri string) (error, *domain.Status) {
	return w.db.ReadStatusByURI(uri)
}

func (w *DBWrapper) CreateStatus(status *domain.Status, mentions []domain.Mention, tags []domain.Tag, media []domain.MediaAttachment, emojis []domain.Emoji) error {
	return w.db.CreateStatus(status, mentions, tags, media, emojis)
}

func (w *DBWrapper) UpdateStatus(status *domain.Status) error {
	return w.db.UpdateStatus(status)
}

func (w *DBWrapper) DeleteStatus(id uuid.UUID) error {
	return w.db.DeleteStatus(id)
}

func (w *DBWrapper) ReadReblogsOfStatus(originalId uuid.UUID) (error, *[]domain.Status) {
	return w.db.ReadReblogsOfStatus(originalId)
}

func (w *DBWrapper) ReadMentionsByStatusId(statusId uuid.UUID) (error, *[]domain.Mention) {
	return w.db.ReadMentionsByStatusId(statusId)
}

// Poll operations

func (w *DBWrapper) CreatePoll(poll *domain.Poll) error {
	return w.db.CreatePoll(poll)
}

func (w *DBWrapper) ReadPollByStatusId(statusId uuid.UUID) (error, *domain.Poll) {
	return w.db.ReadPollByStatusId(statusId)
}

func (w *DBWrapper) CreatePollVote(vote *domain.PollVote) (bool, error) {
	return w.db.CreatePollVote(vote)
}

func (w *DBWrapper) IncrementPollTally(pollId uuid.UUID, optionIndex int) error {
	return w.db.IncrementPollTally(pollId, optionIndex)
}

// Favourite/reaction operations

func (w *DBWrapper) UpsertFavourite(fav *domain.Favourite) error {
	return w.db.UpsertFavourite(fav)
}

func (w *DBWrapper) DeleteFavouriteByAccountAndStatus(accountId, statusId uuid.UUID) error {
	return w.db.DeleteFavouriteByAccountAndStatus(accountId, statusId)
}

func (w *DBWrapper) IncrementEmojiReactionCount(statusId uuid.UUID, emoji string) error {
	return w.db.IncrementEmojiReactionCount(statusId, emoji)
}

func (w *DBWrapper) ReadEmojiReactionCounts(statusId uuid.UUID) (error, map[string]int) {
	return w.db.ReadEmojiReactionCounts(statusId)
}

// Block operations

func (w *DBWrapper) UpsertBlock(block *domain.Block) error {
	return w.db.UpsertBlock(block)
}

func (w *DBWrapper) DeleteBlockByAccountIds(accountId, targetAccountId uuid.UUID) error {
	return w.db.DeleteBlockByAccountIds(accountId, targetAccountId)
}

func (w *DBWrapper) ReadDomainBlock(domainName string) (error, *domain.DomainBlock) {
	return w.db.ReadDomainBlock(domainName)
}

// Report operations

func (w *DBWrapper) CreateReport(report *domain.Report) error {
	return w.db.CreateReport(report)
}

// Pin operations

func (w *DBWrapper) UpsertStatusPin(pin *domain.StatusPin) error {
	return w.db.UpsertStatusPin(pin)
}

func (w *DBWrapper) DeleteStatusPin(accountId, statusId uuid.UUID) error {
	return w.db.DeleteStatusPin(accountId, statusId)
}

// Relay operations

func (w *DBWrapper) ReadRelayByActorURI(actorURI string) (error, *domain.Relay) {
	return w.db.ReadRelayByActorURI(actorURI)
}

func (w *DBWrapper) ReadRelayByFollowURI(followURI string) (error, *domain.Relay) {
	return w.db.ReadRelayByFollowURI(followURI)
}

func (w *DBWrapper) UpdateRelayState(id uuid.UUID, state string, acceptedAt *time.Time) error {
	return w.db.UpdateRelayState(id, state, acceptedAt)
}

// Group operations

func (w *DBWrapper) ReadGroupById(id uuid.UUID) (error, *domain.Group) {
	return w.db.ReadGroupById(id)
}

func (w *DBWrapper) ReadGroupByURI(uri string) (error, *domain.Group) {
	return w.db.ReadGroupByURI(uri)
}

func (w *DBWrapper) UpsertMembership(m *domain.Membership) error {
	return w.db.UpsertMembership(m)
}

func (w *DBWrapper) UpsertMembershipRequest(m *domain.MembershipRequest) error {
	return w.db.UpsertMembershipRequest(m)
}

func (w *DBWrapper) DeleteMembershipByAccountAndGroup(accountId, groupId uuid.UUID) error {
	return w.db.DeleteMembershipByAccountAndGroup(accountId, groupId)
}

func (w *DBWrapper) DeleteMembershipRequestByAccountAndGroup(accountId, groupId uuid.UUID) error {
	return w.db.DeleteMembershipRequestByAccountAndGroup(accountId, groupId)
}

func (w *DBWrapper) ReadMembershipsByGroupId(groupId uuid.UUID) (error, *[]domain.Membership) {
	return w.db.ReadMembershipsByGroupId(groupId)
}

func (w *DBWrapper) IsGroupBlocked(groupId, accountId uuid.UUID) (bool, error) {
	return w.db.IsGroupBlocked(groupId, accountId)
}

// Quote operations

func (w *DBWrapper) UpsertQuote(quote *domain.Quote) error {
	return w.db.UpsertQuote(quote)
}

// E2EE messaging operations

func (w *DBWrapper) ReadDeviceByDeviceId(deviceId string) (error, *domain.Device) {
	return w.db.ReadDeviceByDeviceId(deviceId)
}

func (w *DBWrapper) CreateEncryptedMessage(msg *domain.EncryptedMessage) error {
	return w.db.CreateEncryptedMessage(msg)
}

// Activity log operations

func (w *DBWrapper) CreateActivity(activity *domain.Activity) error {
	return w.db.CreateActivity(activity)
}

func (w *DBWrapper) UpdateActivity(activity *domain.Activity) error {
	return w.db.UpdateActivity(activity)
}

func (w *DBWrapper) ReadActivityByURI(uri string) (error, *domain.Activity) {
	return w.db.ReadActivityByURI(uri)
}

// Delivery queue operations

func (w *DBWrapper) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	return w.db.EnqueueDelivery(item)
}

func (w *DBWrapper) ReadPendingDeliveries(limit int) (error, *[]domain.DeliveryQueueItem) {
	return w.db.ReadPendingDeliveries(limit)
}

func (w *DBWrapper) UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error {
	return w.db.UpdateDeliveryAttempt(id, attempts, nextRetry)
}

func (w *DBWrapper) DeleteDelivery(id uuid.UUID) error {
	return w.db.DeleteDelivery(id)
}
