package activitypub

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/util"
)

// retryBackoffMinutes is the delay schedule for failed deliveries; after
// the schedule is exhausted the last delay repeats until the attempt cap.
var retryBackoffMinutes = []int{1, 5, 15, 60, 240, 1440}

const maxDeliveryAttempts = 10

// StartDeliveryWorker starts a background worker that drains the
// outbound delivery queue.
func StartDeliveryWorker(conf *util.AppConfig) {
	log.Println("Starting ActivityPub delivery worker...")

	deps := NewDeps(conf)
	ticker := time.NewTicker(10 * time.Second)
	go func() {
		for range ticker.C {
			ProcessDeliveryQueue(deps)
		}
	}()
}

// ProcessDeliveryQueue delivers due queue items, rescheduling failures
// with exponential backoff and dropping items after the attempt cap.
func ProcessDeliveryQueue(deps *Deps) {
	database := deps.Database

	err, items := database.ReadPendingDeliveries(50)
	if err != nil {
		log.Printf("DeliveryWorker: Failed to read queue: %v", err)
		return
	}
	if items == nil || len(*items) == 0 {
		return
	}

	log.Printf("DeliveryWorker: Processing %d pending deliveries", len(*items))

	for _, item := range *items {
		if err := deliverActivity(&item, deps); err != nil {
			item.Attempts++
			backoffMinutes := retryBackoffMinutes[min(item.Attempts-1, len(retryBackoffMinutes)-1)]
			item.NextRetryAt = time.Now().Add(time.Duration(backoffMinutes) * time.Minute)

			if item.Attempts >= maxDeliveryAttempts {
				log.Printf("DeliveryWorker: Giving up on delivery to %s after %d attempts", item.InboxURI, item.Attempts)
				database.DeleteDelivery(item.Id)
			} else {
				log.Printf("DeliveryWorker: Delivery to %s failed (attempt %d), retry in %dm: %v",
					item.InboxURI, item.Attempts, backoffMinutes, err)
				database.UpdateDeliveryAttempt(item.Id, item.Attempts, item.NextRetryAt)
			}
		} else {
			log.Printf("DeliveryWorker: Successfully delivered to %s", item.InboxURI)
			database.DeleteDelivery(item.Id)
		}
	}
}

// deliverActivity signs and POSTs one queued activity to its inbox.
func deliverActivity(item *domain.DeliveryQueueItem, deps *Deps) error {
	err, signer := deps.Database.ReadAccountById(item.AccountId)
	if err != nil || signer == nil {
		return fmt.Errorf("signing account %s not found", item.AccountId)
	}

	privateKey, err := ParsePrivateKey(signer.WebPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	body := []byte(item.ActivityJSON)
	req, err := http.NewRequest("POST", item.InboxURI, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", userAgent())
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	keyID := fmt.Sprintf("%s#main-key", actorURIFor(signer, deps.Conf))
	if err := SignRequest(req, privateKey, keyID, body); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := deps.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}
	return nil
}
