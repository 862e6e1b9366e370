package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/deemkeen/mammut/db"
	"github.com/deemkeen/mammut/util"
	"github.com/google/uuid"
)

type action uint

const (
	id action = iota
	inbox
	outbox
	followers
	following
	featured
	sharedInbox
)

func getIRI(domain string, username string, a action) string {
	prefix := fmt.Sprintf("https://%s/users/%s", domain, username)
	switch a {
	case inbox:
		return fmt.Sprintf("%s/inbox", prefix)
	case outbox:
		return fmt.Sprintf("%s/outbox", prefix)
	case followers:
		return fmt.Sprintf("%s/followers", prefix)
	case following:
		return fmt.Sprintf("%s/following", prefix)
	case featured:
		return fmt.Sprintf("%s/collections/featured", prefix)
	case id:
		return prefix
	case sharedInbox:
		return fmt.Sprintf("https://%s/inbox", domain)
	default:
		return ""
	}
}

// GetActor returns the ActivityPub actor document for a local account.
func GetActor(actor string, conf *util.AppConfig) (error, string) {
	err, acc := db.GetDB().ReadAccountByUsername(actor)
	if err != nil {
		return err, "{}"
	}

	username := acc.Username
	displayName := acc.DisplayName
	if displayName == "" {
		displayName = username
	}

	actorObj := map[string]any{
		"@context": []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"id":                        getIRI(conf.Conf.SslDomain, username, id),
		"type":                      "Person",
		"preferredUsername":         username,
		"name":                      displayName,
		"summary":                   acc.Summary,
		"inbox":                     getIRI(conf.Conf.SslDomain, username, inbox),
		"outbox":                    getIRI(conf.Conf.SslDomain, username, outbox),
		"followers":                 getIRI(conf.Conf.SslDomain, username, followers),
		"following":                 getIRI(conf.Conf.SslDomain, username, following),
		"featured":                  getIRI(conf.Conf.SslDomain, username, featured),
		"url":                       getIRI(conf.Conf.SslDomain, username, id),
		"manuallyApprovesFollowers": acc.Locked,
		"discoverable":              true,
		"published":                 acc.CreatedAt.Format(time.RFC3339),
		"endpoints": map[string]any{
			"sharedInbox": getIRI(conf.Conf.SslDomain, username, sharedInbox),
		},
		"publicKey": map[string]any{
			"id":           fmt.Sprintf("%s#main-key", getIRI(conf.Conf.SslDomain, username, id)),
			"owner":        getIRI(conf.Conf.SslDomain, username, id),
			"publicKeyPem": acc.PublicKeyPem,
		},
	}

	if acc.AvatarURL != "" {
		actorObj["icon"] = map[string]any{
			"type": "Image",
			"url":  acc.AvatarURL,
		}
	}

	if len(acc.AlsoKnownAs) > 0 {
		actorObj["alsoKnownAs"] = acc.AlsoKnownAs
	}

	jsonBytes, err := json.Marshal(actorObj)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}

// GetStatusObject returns a local status as an ActivityPub object. Only
// public and unlisted statuses are served; everything else 404s.
func GetStatusObject(statusId uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, status := database.ReadStatusById(statusId)
	if err != nil {
		return err, "{}"
	}

	if status.Visibility != "public" && status.Visibility != "unlisted" {
		return fmt.Errorf("status %s is not publicly addressable", statusId), "{}"
	}

	err, account := database.ReadAccountById(status.AccountId)
	if err != nil {
		return err, "{}"
	}
	if !account.IsLocal() {
		return fmt.Errorf("status %s is not local", statusId), "{}"
	}

	actorURI := getIRI(conf.Conf.SslDomain, account.Username, id)
	statusURI := fmt.Sprintf("https://%s/users/%s/statuses/%s", conf.Conf.SslDomain, account.Username, status.Id)

	statusObj := map[string]any{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           statusURI,
		"type":         "Note",
		"attributedTo": actorURI,
		"content":      status.Text,
		"mediaType":    "text/html",
		"sensitive":    status.Sensitive,
		"published":    status.CreatedAt.Format(time.RFC3339),
	}

	if status.SpoilerText != "" {
		statusObj["summary"] = status.SpoilerText
	}

	followersURI := getIRI(conf.Conf.SslDomain, account.Username, followers)
	if status.Visibility == "public" {
		statusObj["to"] = []string{"https://www.w3.org/ns/activitystreams#Public"}
		statusObj["cc"] = []string{followersURI}
	} else {
		statusObj["to"] = []string{followersURI}
		statusObj["cc"] = []string{"https://www.w3.org/ns/activitystreams#Public"}
	}

	if status.EditedAt != nil {
		statusObj["updated"] = status.EditedAt.Format(time.RFC3339)
	}

	jsonBytes, err := json.Marshal(statusObj)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}

// GetFollowersCollection returns an ActivityPub OrderedCollection of followers.
// Always uses paging for compatibility with Mastodon and other servers.
func GetFollowersCollection(actor string, conf *util.AppConfig, followerURIs []string) string {
	return collectionJSON(getIRI(conf.Conf.SslDomain, actor, followers), followerURIs)
}

// GetFollowersPage returns an OrderedCollectionPage for followers.
func GetFollowersPage(actor string, conf *util.AppConfig, followerURIs []string, page int) string {
	return collectionPageJSON(getIRI(conf.Conf.SslDomain, actor, followers), followerURIs, page)
}

func collectionJSON(collectionURI string, items []string) string {
	collection := map[string]any{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         collectionURI,
		"type":       "OrderedCollection",
		"totalItems": len(items),
		"first":      fmt.Sprintf("%s?page=1", collectionURI),
	}

	jsonBytes, err := json.Marshal(collection)
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}

func collectionPageJSON(collectionURI string, items []string, page int) string {
	collectionPage := map[string]any{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           fmt.Sprintf("%s?page=%d", collectionURI, page),
		"type":         "OrderedCollectionPage",
		"partOf":       collectionURI,
		"orderedItems": items,
		"totalItems":   len(items),
	}

	jsonBytes, err := json.Marshal(collectionPage)
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}
