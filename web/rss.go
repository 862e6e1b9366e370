package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mammut/db"
	"github.com/deemkeen/mammut/util"
	"github.com/gorilla/feeds"
)

const rssFeedLimit = 50

func buildURL(conf *util.AppConfig, path string) string {
	if conf.Conf.SslDomain != "" {
		return fmt.Sprintf("https://%s%s", conf.Conf.SslDomain, path)
	}
	return fmt.Sprintf("http://%s:%d%s", conf.Conf.Host, conf.Conf.HttpPort, path)
}

// GetRSS renders the public statuses of a local account as an RSS feed.
// Only public top-level posts appear; reblogs and replies are skipped.
func GetRSS(conf *util.AppConfig, username string) (string, error) {
	database := db.GetDB()

	err, acc := database.ReadAccountByUsername(username)
	if err != nil {
		log.Printf("Could not get account %s: %v", username, err)
		return "", errors.New("error retrieving account by username")
	}

	err, statuses := database.ReadPublicStatusesByAccount(acc.Id, rssFeedLimit)
	if err != nil {
		log.Printf("Could not get statuses from %s: %v", username, err)
		return "", errors.New("error retrieving statuses by username")
	}

	link := buildURL(conf, fmt.Sprintf("/feed?username=%s", username))

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("Mammut - %s", username),
		Link:        &feeds.Link{Href: link},
		Description: fmt.Sprintf("public posts by %s", username),
		Author:      &feeds.Author{Name: username, Email: fmt.Sprintf("%s@%s", username, conf.Conf.SslDomain)},
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	if statuses != nil {
		for _, status := range *statuses {
			statusURL := buildURL(conf, fmt.Sprintf("/users/%s/statuses/%s", username, status.Id))
			feedItems = append(feedItems,
				&feeds.Item{
					Id:      status.Id.String(),
					Title:   status.CreatedAt.Format(util.DateTimeFormat()),
					Link:    &feeds.Link{Href: statusURL},
					Content: status.Text,
					Author:  feed.Author,
					Created: status.CreatedAt,
				})
		}
	}

	feed.Items = feedItems
	return feed.ToRss()
}
