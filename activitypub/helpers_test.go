package activitypub

import (
	"fmt"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/util"
	"github.com/google/uuid"
)

// newTestDeps wires a Deps with the in-memory mocks and a minimal config.
func newTestDeps(db *MockDatabase) *Deps {
	conf := &util.AppConfig{}
	conf.Conf.SslDomain = "local.example.com"
	conf.Conf.FrankingKey = "test-franking-secret"
	conf.Conf.FrankingKeyVersion = 1
	return &Deps{
		Database:   db,
		HTTPClient: NewMockHTTPClient(),
		Conf:       conf,
		Spam:       DefaultSpamPolicy(),
		Franking:   NewConfigKeyProvider(conf),
	}
}

// newRemoteAccount builds a remote account living on the given host.
func newRemoteAccount(username, host string) *domain.Account {
	return &domain.Account{
		Id:            uuid.New(),
		Username:      username,
		Domain:        host,
		URI:           fmt.Sprintf("https://%s/users/%s", host, username),
		InboxURI:      fmt.Sprintf("https://%s/users/%s/inbox", host, username),
		FollowersURI:  fmt.Sprintf("https://%s/users/%s/followers", host, username),
		FeaturedURI:   fmt.Sprintf("https://%s/users/%s/collections/featured", host, username),
		LastFetchedAt: time.Now(),
		CreatedAt:     time.Now(),
	}
}

// newLocalAccount builds a local account with its canonical URIs minted
// from the test domain.
func newLocalAccount(username string) *domain.Account {
	return &domain.Account{
		Id:           uuid.New(),
		Username:     username,
		URI:          fmt.Sprintf("https://local.example.com/users/%s", username),
		InboxURI:     fmt.Sprintf("https://local.example.com/users/%s/inbox", username),
		FollowersURI: fmt.Sprintf("https://local.example.com/users/%s/followers", username),
		FeaturedURI:  fmt.Sprintf("https://local.example.com/users/%s/collections/featured", username),
		CreatedAt:    time.Now(),
	}
}

// mustParseActivity parses a JSON fixture, panicking on malformed test
// data.
func mustParseActivity(jsonData string) *Activity {
	act, err := ParseActivity([]byte(jsonData))
	if err != nil {
		panic(fmt.Sprintf("bad test fixture: %v", err))
	}
	return act
}
