package activitypub

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// handleLike records a favourite or emoji reaction. EmojiReact activities
// arrive here through the dispatch table as well; the only difference is
// that they always carry content.
func handleLike(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	resolver := NewResolver(deps)
	status := resolver.Status(NewReference(act.Object))
	if status == nil {
		log.Printf("Inbox: Like target not found, ignoring")
		return nil
	}

	emoji, imageURL := reactionEmoji(act)

	fav := &domain.Favourite{
		Id:            uuid.New(),
		AccountId:     sender.Id,
		StatusId:      status.Id,
		URI:           act.ID,
		Emoji:         emoji,
		EmojiImageURL: imageURL,
		CreatedAt:     time.Now(),
	}
	if err := deps.Database.UpsertFavourite(fav); err != nil {
		return fmt.Errorf("failed to upsert favourite: %w", err)
	}

	if emoji != "" {
		if err := deps.Database.IncrementEmojiReactionCount(status.Id, emoji); err != nil {
			log.Printf("Inbox: Failed to bump reaction count for %s: %v", emoji, err)
		}
	}

	log.Printf("Inbox: %s reacted to %s", sender.Username, status.URI)
	return nil
}

// reactionEmoji extracts the reaction emoji from a Like/EmojiReact
// activity: unicode content directly, or a custom emoji tag matched by
// shortcode with its image URL.
func reactionEmoji(act *Activity) (emoji, imageURL string) {
	content := strings.TrimSpace(act.ContentString())

	if tags, ok := tagList(act.Tag); ok {
		shortcode := strings.Trim(content, ":")
		for _, tag := range tags {
			ref := NewReference(tag)
			if ref.Type() != "Emoji" {
				continue
			}
			name := strings.Trim(ref.Str("name"), ":")
			if name == "" || (shortcode != "" && !strings.EqualFold(name, shortcode)) {
				continue
			}
			icon := NewReference(ref.Get("icon"))
			return ":" + name + ":", icon.Str("url")
		}
	}

	return content, ""
}

// tagList normalizes a raw tag value into a list, tolerating a single
// non-array tag.
func tagList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case map[string]any:
		return []any{v}, true
	}
	return nil, false
}
