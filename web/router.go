package web

import (
	"fmt"
	"log"
	"strings"

	"github.com/deemkeen/mammut/activitypub"
	"github.com/deemkeen/mammut/db"
	"github.com/deemkeen/mammut/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Router builds the HTTP handler serving the federation endpoints.
func Router(conf *util.AppConfig) (*gin.Engine, error) {
	// Set Gin to use the same log writer as the rest of the application
	gin.DefaultWriter = util.GetLogWriter()
	gin.DefaultErrorWriter = util.GetLogWriter()

	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// Stricter rate limit for inbox endpoints: 5 req/sec per IP
	apLimiter := NewRateLimiter(rate.Limit(5), 10)

	// Max 1MB request body size for ActivityPub activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

	// RSS Feed
	g.GET("/feed", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")

		username := c.Query("username")
		rss, err := GetRSS(conf, username)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	g.GET("/users/:actor", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
		err, actor := GetActor(c.Param("actor"), conf)
		if err != nil {
			c.Render(404, render.String{Format: actor})
		} else {
			c.Render(200, render.String{Format: actor})
		}
	})

	// Serve individual statuses as ActivityPub objects
	g.GET("/users/:actor/statuses/:id", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")

		statusId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "Invalid status ID"})
			return
		}

		err, status := GetStatusObject(statusId, conf)
		if err != nil {
			c.JSON(404, gin.H{"error": "Status not found"})
		} else {
			c.Render(200, render.String{Format: status})
		}
	})

	// Shared inbox. The dispatcher resolves the sender from the activity
	// itself, so no per-user routing is needed here.
	g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		log.Println("POST /inbox (shared inbox)")
		activitypub.HandleInbox(c.Writer, c.Request, conf)
	})

	g.POST("/users/:actor/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		log.Printf("POST /users/%s/inbox", c.Param("actor"))
		activitypub.HandleInbox(c.Writer, c.Request, conf)
	})

	g.GET("/users/:actor/followers", func(c *gin.Context) {
		actor := c.Param("actor")
		page := c.Query("page")
		log.Printf("Get followers for %s (page=%s)", actor, page)
		c.Header("Content-Type", "application/activity+json; charset=utf-8")

		database := db.GetDB()
		err, account := database.ReadAccountByUsername(actor)
		if err != nil {
			log.Printf("Failed to get account %s: %v", actor, err)
			c.Render(404, render.String{Format: "{}"})
			return
		}

		err, follows := database.ReadFollowsOfTarget(account.Id)
		if err != nil {
			log.Printf("Failed to get followers: %v", err)
			c.Render(200, render.String{Format: GetFollowersCollection(actor, conf, []string{})})
			return
		}

		followerURIs := []string{}
		if follows != nil {
			for _, follow := range *follows {
				err, follower := database.ReadAccountById(follow.AccountId)
				if err != nil {
					log.Printf("Could not find account for follower AccountId=%s", follow.AccountId)
					continue
				}
				followerURIs = append(followerURIs, follower.URI)
			}
		}

		if page != "" {
			c.Render(200, render.String{Format: GetFollowersPage(actor, conf, followerURIs, 1)})
		} else {
			c.Render(200, render.String{Format: GetFollowersCollection(actor, conf, followerURIs)})
		}
	})

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")

		resource := c.Query("resource")
		if resource == "" || !strings.HasPrefix(resource, "acct:") {
			c.Render(404, render.String{Format: GetWebFingerNotFound()})
		} else {
			resource = strings.TrimPrefix(resource, "acct:")
			resource = strings.TrimSuffix(resource, fmt.Sprintf("@%s", conf.Conf.SslDomain))
			err, resp := GetWebfinger(resource, conf)
			if err != nil {
				c.Render(404, render.String{Format: GetWebFingerNotFound()})
			} else {
				c.Render(200, render.String{Format: resp})
			}
		}
	})

	// NodeInfo endpoints for server discovery and statistics
	g.GET("/.well-known/nodeinfo", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Render(200, render.String{Format: GetWellKnownNodeInfo(conf)})
	})

	g.GET("/nodeinfo/2.0", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Render(200, render.String{Format: GetNodeInfo20(conf)})
	})

	return g, nil
}
