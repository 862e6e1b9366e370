package activitypub

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// MockDatabase is an in-memory mock implementation of the Database interface for testing.
// It stores data in maps and provides full CRUD operations without requiring a real database.
type MockDatabase struct {
	mu sync.RWMutex

	// Storage maps
	Accounts           map[uuid.UUID]*domain.Account
	AccountsByURI      map[string]*domain.Account
	Follows            map[string]*domain.Follow // keyed by "account|target"
	FollowRequests     map[string]*domain.FollowRequest
	Statuses           map[uuid.UUID]*domain.Status
	StatusesByURI      map[string]*domain.Status
	Mentions           map[uuid.UUID][]domain.Mention
	Tags               map[uuid.UUID][]domain.Tag
	Media              map[uuid.UUID][]domain.MediaAttachment
	Emojis             map[uuid.UUID][]domain.Emoji
	Polls              map[uuid.UUID]*domain.Poll // keyed by status id
	PollVotes          map[string]*domain.PollVote
	Favourites         map[string]*domain.Favourite
	EmojiReactions     map[uuid.UUID]map[string]int
	Blocks             map[string]*domain.Block
	DomainBlocks       map[string]*domain.DomainBlock
	Reports            map[string]*domain.Report // keyed by report URI
	Pins               map[string]*domain.StatusPin
	Relays             map[uuid.UUID]*domain.Relay
	Groups             map[uuid.UUID]*domain.Group
	Memberships        map[string]*domain.Membership
	MembershipRequests map[string]*domain.MembershipRequest
	GroupBlocks        map[string]bool
	Quotes             map[string]*domain.Quote
	Devices            map[string]*domain.Device
	EncryptedMessages  map[string]*domain.EncryptedMessage
	Activities         map[string]*domain.Activity // keyed by activity URI
	DeliveryQueue      map[uuid.UUID]*domain.DeliveryQueueItem

	// Error injection for testing error handling
	ForceError error
}

// NewMockDatabase creates a new mock database with initialized maps
func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		Accounts:           make(map[uuid.UUID]*domain.Account),
		AccountsByURI:      make(map[string]*domain.Account),
		Follows:            make(map[string]*domain.Follow),
		FollowRequests:     make(map[string]*domain.FollowRequest),
		Statuses:           make(map[uuid.UUID]*domain.Status),
		StatusesByURI:      make(map[string]*domain.Status),
		Mentions:           make(map[uuid.UUID][]domain.Mention),
		Tags:               make(map[uuid.UUID][]domain.Tag),
		Media:              make(map[uuid.UUID][]domain.MediaAttachment),
		Emojis:             make(map[uuid.UUID][]domain.Emoji),
		Polls:              make(map[uuid.UUID]*domain.Poll),
		PollVotes:          make(map[string]*domain.PollVote),
		Favourites:         make(map[string]*domain.Favourite),
		EmojiReactions:     make(map[uuid.UUID]map[string]int),
		Blocks:             make(map[string]*domain.Block),
		DomainBlocks:       make(map[string]*domain.DomainBlock),
		Reports:            make(map[string]*domain.Report),
		Pins:               make(map[string]*domain.StatusPin),
		Relays:             make(map[uuid.UUID]*domain.Relay),
		Groups:             make(map[uuid.UUID]*domain.Group),
		Memberships:        make(map[string]*domain.Membership),
		MembershipRequests: make(map[string]*domain.MembershipRequest),
		GroupBlocks:        make(map[string]bool),
		Quotes:             make(map[string]*domain.Quote),
		Devices:            make(map[string]*domain.Device),
		EncryptedMessages:  make(map[string]*domain.EncryptedMessage),
		Activities:         make(map[string]*domain.Activity),
		DeliveryQueue:      make(map[uuid.UUID]*domain.DeliveryQueueItem),
	}
}

func pairKey(a, b uuid.UUID) string {
	return a.String() + "|" + b.String()
}

// SetForceError sets an error to be returned by all operations
func (m *MockDatabase) SetForceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ForceError = err
}

// AddAccount adds an account to the mock database
func (m *MockDatabase) AddAccount(acc *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accounts[acc.Id] = acc
	if acc.URI != "" {
		m.AccountsByURI[acc.URI] = acc
	}
}

// AddFollow adds a follow relationship to the mock database
func (m *MockDatabase) AddFollow(follow *domain.Follow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Follows[pairKey(follow.AccountId, follow.TargetAccountId)] = follow
}

// AddFollowRequest adds a pending follow request to the mock database
func (m *MockDatabase) AddFollowRequest(req *domain.FollowRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowRequests[pairKey(req.AccountId, req.TargetAccountId)] = req
}

// AddStatus adds a status to the mock database
func (m *MockDatabase) AddStatus(status *domain.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[status.Id] = status
	if status.URI != "" {
		m.StatusesByURI[status.URI] = status
	}
}

// AddRelay adds a relay subscription to the mock database
func (m *MockDatabase) AddRelay(relay *domain.Relay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Relays[relay.Id] = relay
}

// AddGroup adds a group to the mock database
func (m *MockDatabase) AddGroup(group *domain.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Groups[group.Id] = group
}

// AddDevice adds an E2EE device to the mock database
func (m *MockDatabase) AddDevice(device *domain.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Devices[device.DeviceId] = device
}

// AddPoll adds a poll to the mock database
func (m *MockDatabase) AddPoll(poll *domain.Poll) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Polls[poll.StatusId] = poll
}

// Account operations

func (m *MockDatabase) ReadAccountById(id uuid.UUID) (error, *domain.Account) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	acc, ok := m.Accounts[id]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, acc
}

func (m *MockDatabase) ReadAccountByURI(uri string) (error, *domain.Account) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	acc, ok := m.AccountsByURI[uri]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, acc
}

func (m *MockDatabase) CreateAccount(acc *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if acc.URI != "" {
		if _, exists := m.AccountsByURI[acc.URI]; exists {
			return fmt.Errorf("UNIQUE constraint failed: accounts.uri")
		}
	}
	m.Accounts[acc.Id] = acc
	if acc.URI != "" {
		m.AccountsByURI[acc.URI] = acc
	}
	return nil
}

func (m *MockDatabase) UpdateAccount(acc *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Accounts[acc.Id] = acc
	if acc.URI != "" {
		m.AccountsByURI[acc.URI] = acc
	}
	return nil
}

func (m *MockDatabase) SetAccountMovedTo(id uuid.UUID, movedToId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	acc, ok := m.Accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	// First write wins, like the conditional UPDATE in production
	if acc.MovedToId == nil {
		acc.MovedToId = &movedToId
	}
	return nil
}

func (m *MockDatabase) CountLocalFollowersOf(accountId uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return 0, m.ForceError
	}
	count := 0
	for _, f := range m.Follows {
		if f.TargetAccountId != accountId {
			continue
		}
		if acc, ok := m.Accounts[f.AccountId]; ok && acc.IsLocal() {
			count++
		}
	}
	return count, nil
}

func (m *MockDatabase) ReadLocalFollowsOfTarget(targetAccountId uuid.UUID) (error, *[]domain.Follow) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var follows []domain.Follow
	for _, f := range m.Follows {
		if f.TargetAccountId != targetAccountId {
			continue
		}
		if acc, ok := m.Accounts[f.AccountId]; ok && acc.IsLocal() {
			follows = append(follows, *f)
		}
	}
	return nil, &follows
}

func (m *MockDatabase) ReadFollowsOfTarget(targetAccountId uuid.UUID) (error, *[]domain.Follow) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var follows []domain.Follow
	for _, f := range m.Follows {
		if f.TargetAccountId == targetAccountId {
			follows = append(follows, *f)
		}
	}
	return nil, &follows
}

func (m *MockDatabase) ExistsFollowFromDomain(targetAccountId uuid.UUID, domainName string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	for _, f := range m.Follows {
		if f.TargetAccountId != targetAccountId {
			continue
		}
		if acc, ok := m.Accounts[f.AccountId]; ok && acc.Domain == domainName {
			return true, nil
		}
	}
	return false, nil
}

// Follow operations

func (m *MockDatabase) UpsertFollow(follow *domain.Follow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey(follow.AccountId, follow.TargetAccountId)
	if existing, ok := m.Follows[key]; ok {
		// The conditional upsert only refreshes the URI
		existing.URI = follow.URI
		return nil
	}
	m.Follows[key] = follow
	return nil
}

func (m *MockDatabase) UpsertFollowRequest(req *domain.FollowRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey(req.AccountId, req.TargetAccountId)
	if existing, ok := m.FollowRequests[key]; ok {
		existing.URI = req.URI
		return nil
	}
	m.FollowRequests[key] = req
	return nil
}

func (m *MockDatabase) ReadFollowByAccountIds(accountId, targetAccountId uuid.UUID) (error, *domain.Follow) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	follow, ok := m.Follows[pairKey(accountId, targetAccountId)]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, follow
}

func (m *MockDatabase) ReadFollowRequestByAccountIds(accountId, targetAccountId uuid.UUID) (error, *domain.FollowRequest) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	req, ok := m.FollowRequests[pairKey(accountId, targetAccountId)]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, req
}

func (m *MockDatabase) ReadFollowByURI(uri string) (error, *domain.Follow) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	for _, f := range m.Follows {
		if f.URI == uri {
			return nil, f
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadFollowRequestByURI(uri string) (error, *domain.FollowRequest) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	for _, req := range m.FollowRequests {
		if req.URI == uri {
			return nil, req
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) DeleteFollowByAccountIds(accountId, targetAccountId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Follows, pairKey(accountId, targetAccountId))
	return nil
}

func (m *MockDatabase) DeleteFollowRequestByAccountIds(accountId, targetAccountId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.FollowRequests, pairKey(accountId, targetAccountId))
	return nil
}

func (m *MockDatabase) DeleteFollowByURI(uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	for key, f := range m.Follows {
		if f.URI == uri {
			delete(m.Follows, key)
			return nil
		}
	}
	return nil
}

// Status operations

func (m *MockDatabase) ReadStatusById(id uuid.UUID) (error, *domain.Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	status, ok := m.Statuses[id]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, status
}

func (m *MockDatabase) ReadStatusByURI(uri string) (error, *domain.Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	status, ok := m.StatusesByURI[uri]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, status
}

func (m *MockDatabase) CreateStatus(status *domain.Status, mentions []domain.Mention, tags []domain.Tag, media []domain.MediaAttachment, emojis []domain.Emoji) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if status.URI != "" {
		if _, exists := m.StatusesByURI[status.URI]; exists {
			return fmt.Errorf("UNIQUE constraint failed: statuses.uri")
		}
	}
	m.Statuses[status.Id] = status
	if status.URI != "" {
		m.StatusesByURI[status.URI] = status
	}
	m.Mentions[status.Id] = mentions
	m.Tags[status.Id] = tags
	m.Media[status.Id] = media
	m.Emojis[status.Id] = emojis
	return nil
}

func (m *MockDatabase) UpdateStatus(status *domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Statuses[status.Id] = status
	if status.URI != "" {
		m.StatusesByURI[status.URI] = status
	}
	return nil
}

func (m *MockDatabase) DeleteStatus(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if status, ok := m.Statuses[id]; ok {
		delete(m.StatusesByURI, status.URI)
		delete(m.Statuses, id)
	}
	delete(m.Mentions, id)
	delete(m.Tags, id)
	delete(m.Media, id)
	delete(m.Emojis, id)
	return nil
}

func (m *MockDatabase) ReadReblogsOfStatus(originalId uuid.UUID) (error, *[]domain.Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var reblogs []domain.Status
	for _, s := range m.Statuses {
		if s.ReblogOfId != nil && *s.ReblogOfId == originalId {
			reblogs = append(reblogs, *s)
		}
	}
	return nil, &reblogs
}

func (m *MockDatabase) ReadMentionsByStatusId(statusId uuid.UUID) (error, *[]domain.Mention) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	mentions := m.Mentions[statusId]
	return nil, &mentions
}

// Poll operations

func (m *MockDatabase) CreatePoll(poll *domain.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Polls[poll.StatusId] = poll
	return nil
}

func (m *MockDatabase) ReadPollByStatusId(statusId uuid.UUID) (error, *domain.Poll) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	poll, ok := m.Polls[statusId]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, poll
}

func (m *MockDatabase) CreatePollVote(vote *domain.PollVote) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	key := vote.PollId.String() + "|" + vote.VoterURI
	if _, exists := m.PollVotes[key]; exists {
		return false, nil
	}
	m.PollVotes[key] = vote
	return true, nil
}

func (m *MockDatabase) IncrementPollTally(pollId uuid.UUID, optionIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	for _, poll := range m.Polls {
		if poll.Id == pollId {
			if optionIndex >= 0 && optionIndex < len(poll.Tallies) {
				poll.Tallies[optionIndex]++
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

// Favourite/reaction operations

func (m *MockDatabase) UpsertFavourite(fav *domain.Favourite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey(fav.AccountId, fav.StatusId)
	if existing, ok := m.Favourites[key]; ok {
		existing.URI = fav.URI
		existing.Emoji = fav.Emoji
		existing.EmojiImageURL = fav.EmojiImageURL
		return nil
	}
	m.Favourites[key] = fav
	return nil
}

func (m *MockDatabase) DeleteFavouriteByAccountAndStatus(accountId, statusId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Favourites, pairKey(accountId, statusId))
	return nil
}

func (m *MockDatabase) IncrementEmojiReactionCount(statusId uuid.UUID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if m.EmojiReactions[statusId] == nil {
		m.EmojiReactions[statusId] = make(map[string]int)
	}
	m.EmojiReactions[statusId][emoji]++
	return nil
}

func (m *MockDatabase) ReadEmojiReactionCounts(statusId uuid.UUID) (error, map[string]int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	return nil, m.EmojiReactions[statusId]
}

// Block operations

func (m *MockDatabase) UpsertBlock(block *domain.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey(block.AccountId, block.TargetAccountId)
	if existing, ok := m.Blocks[key]; ok {
		existing.URI = block.URI
		return nil
	}
	m.Blocks[key] = block
	return nil
}

func (m *MockDatabase) DeleteBlockByAccountIds(accountId, targetAccountId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Blocks, pairKey(accountId, targetAccountId))
	return nil
}

func (m *MockDatabase) ReadDomainBlock(domainName string) (error, *domain.DomainBlock) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	block, ok := m.DomainBlocks[domainName]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, block
}

// Report operations

func (m *MockDatabase) CreateReport(report *domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	// uri is the idempotency key; duplicates are silently ignored
	if _, exists := m.Reports[report.URI]; exists {
		return nil
	}
	m.Reports[report.URI] = report
	return nil
}

// Pin operations

func (m *MockDatabase) UpsertStatusPin(pin *domain.StatusPin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Pins[pairKey(pin.AccountId, pin.StatusId)] = pin
	return nil
}

func (m *MockDatabase) DeleteStatusPin(accountId, statusId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Pins, pairKey(accountId, statusId))
	return nil
}

// Relay operations

func (m *MockDatabase) ReadRelayByActorURI(actorURI string) (error, *domain.Relay) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	for _, relay := range m.Relays {
		if relay.ActorURI == actorURI {
			return nil, relay
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadRelayByFollowURI(followURI string) (error, *domain.Relay) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	for _, relay := range m.Relays {
		if relay.FollowURI == followURI {
			return nil, relay
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) UpdateRelayState(id uuid.UUID, state string, acceptedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	relay, ok := m.Relays[id]
	if !ok {
		return sql.ErrNoRows
	}
	relay.State = state
	relay.AcceptedAt = acceptedAt
	return nil
}

// Group operations

func (m *MockDatabase) ReadGroupById(id uuid.UUID) (error, *domain.Group) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	group, ok := m.Groups[id]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, group
}

func (m *MockDatabase) ReadGroupByURI(uri string) (error, *domain.Group) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	for _, group := range m.Groups {
		if group.URI == uri {
			return nil, group
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) UpsertMembership(membership *domain.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey(membership.AccountId, membership.GroupId)
	if existing, ok := m.Memberships[key]; ok {
		existing.URI = membership.URI
		return nil
	}
	m.Memberships[key] = membership
	return nil
}

func (m *MockDatabase) UpsertMembershipRequest(req *domain.MembershipRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey(req.AccountId, req.GroupId)
	if existing, ok := m.MembershipRequests[key]; ok {
		existing.URI = req.URI
		return nil
	}
	m.MembershipRequests[key] = req
	return nil
}

func (m *MockDatabase) DeleteMembershipByAccountAndGroup(accountId, groupId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Memberships, pairKey(accountId, groupId))
	return nil
}

func (m *MockDatabase) DeleteMembershipRequestByAccountAndGroup(accountId, groupId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.MembershipRequests, pairKey(accountId, groupId))
	return nil
}

func (m *MockDatabase) ReadMembershipsByGroupId(groupId uuid.UUID) (error, *[]domain.Membership) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var memberships []domain.Membership
	for _, membership := range m.Memberships {
		if membership.GroupId == groupId {
			memberships = append(memberships, *membership)
		}
	}
	return nil, &memberships
}

func (m *MockDatabase) IsGroupBlocked(groupId, accountId uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	return m.GroupBlocks[pairKey(groupId, accountId)], nil
}

// Quote operations

func (m *MockDatabase) UpsertQuote(quote *domain.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey(quote.StatusId, quote.QuotedStatusId)
	if existing, ok := m.Quotes[key]; ok {
		existing.State = quote.State
		existing.URI = quote.URI
		return nil
	}
	m.Quotes[key] = quote
	return nil
}

// E2EE messaging operations

func (m *MockDatabase) ReadDeviceByDeviceId(deviceId string) (error, *domain.Device) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	device, ok := m.Devices[deviceId]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, device
}

func (m *MockDatabase) CreateEncryptedMessage(msg *domain.EncryptedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := msg.DeviceId + "|" + msg.MessageId
	if _, exists := m.EncryptedMessages[key]; exists {
		return fmt.Errorf("UNIQUE constraint failed: encrypted_messages.device_id")
	}
	m.EncryptedMessages[key] = msg
	return nil
}

// Activity log operations

func (m *MockDatabase) CreateActivity(activity *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if activity.ActivityURI != "" {
		if _, exists := m.Activities[activity.ActivityURI]; exists {
			return fmt.Errorf("UNIQUE constraint failed: activities.activity_uri")
		}
	}
	m.Activities[activity.ActivityURI] = activity
	return nil
}

func (m *MockDatabase) UpdateActivity(activity *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Activities[activity.ActivityURI] = activity
	return nil
}

func (m *MockDatabase) ReadActivityByURI(uri string) (error, *domain.Activity) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	activity, ok := m.Activities[uri]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, activity
}

// Delivery queue operations

func (m *MockDatabase) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.DeliveryQueue[item.Id] = item
	return nil
}

func (m *MockDatabase) ReadPendingDeliveries(limit int) (error, *[]domain.DeliveryQueueItem) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var items []domain.DeliveryQueueItem
	now := time.Now()
	for _, item := range m.DeliveryQueue {
		if len(items) >= limit {
			break
		}
		if !item.NextRetryAt.After(now) {
			items = append(items, *item)
		}
	}
	return nil, &items
}

func (m *MockDatabase) UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	item, ok := m.DeliveryQueue[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Attempts = attempts
	item.NextRetryAt = nextRetry
	return nil
}

func (m *MockDatabase) DeleteDelivery(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.DeliveryQueue, id)
	return nil
}

// MockHTTPClient is an in-memory HTTP client for testing remote fetches
// and deliveries without a network.
type MockHTTPClient struct {
	mu        sync.Mutex
	responses map[string]mockResponse
	Requests  []*http.Request
}

type mockResponse struct {
	status int
	body   []byte
}

// NewMockHTTPClient creates a mock client that 404s everything until
// responses are registered.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{responses: make(map[string]mockResponse)}
}

// SetResponse registers a canned response for a URL
func (c *MockHTTPClient) SetResponse(url string, status int, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[url] = mockResponse{status: status, body: body}
}

func (c *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)

	resp, ok := c.responses[req.URL.String()]
	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     make(http.Header),
		}, nil
	}
	return &http.Response{
		StatusCode: resp.status,
		Body:       io.NopCloser(bytes.NewReader(resp.body)),
		Header:     http.Header{"Content-Type": []string{"application/activity+json"}},
	}, nil
}
