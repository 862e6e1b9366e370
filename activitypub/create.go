package activitypub

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/util"
	"github.com/google/uuid"
)

// maxDescriptionLen bounds media accessibility descriptions; longer text
// is truncated, never rejected.
const maxDescriptionLen = 1500

// handleCreate persists an inbound post. The object must be attributed to
// the sending account, carry an id, and be of a type we know how to
// store; everything else is dropped without an error. Malformed tag and
// attachment entries degrade entry-by-entry instead of failing the whole
// Create.
func handleCreate(act *Activity, sender *domain.Account, pctx *ProcessingContext, deps *Deps) error {
	objRef := NewReference(act.Object)
	if objRef.IsZero() {
		return nil
	}

	// A bare-URI object has to be fetched before we can judge it
	if objRef.Inline == nil {
		obj, err := fetchObject(objRef.URI, deps)
		if err != nil {
			log.Printf("Inbox: Create object %s unfetchable: %v", objRef.URI, err)
			return nil
		}
		objRef = NewReference(obj)
	}
	if objRef.URI == "" {
		return nil
	}

	// Ownership: attributedTo (falling back to the activity actor) must be
	// the authenticated sender
	attributedTo := objRef.Str("attributedTo")
	if attributedTo == "" {
		attributedTo = act.ActorURI()
	}
	if attributedTo != sender.URI {
		log.Printf("Inbox: Create object %s not attributed to sender, ignoring", objRef.URI)
		return nil
	}

	// Duplicate delivery: the row already exists, nothing to do
	if err, existing := deps.Database.ReadStatusByURI(objRef.URI); err == nil && existing != nil {
		return nil
	}

	switch objRef.Type() {
	case "EncryptedMessage":
		return handleEncryptedMessage(objRef, sender, deps)
	case "Note", "Article", "Page", "Image", "Video", "Audio":
		// A plain Note carrying only a name and replying to a local poll
		// is a vote, not a post
		if voted, err := tryPollVote(objRef, sender, deps); voted || err != nil {
			return err
		}
		return createStatus(objRef, sender, deps, false)
	case "Question":
		return createStatus(objRef, sender, deps, true)
	default:
		log.Printf("Inbox: Create with unsupported object type %q, ignoring", objRef.Type())
		return nil
	}
}

// createStatus builds and persists the status row with its mentions,
// hashtags, emojis, attachments and (for questions) poll, gated by the
// spam policy.
func createStatus(objRef Reference, sender *domain.Account, deps *Deps, isQuestion bool) error {
	resolver := NewResolver(deps)

	var inReplyToId *uuid.UUID
	inReplyToLocal := false
	if parentRef := NewReference(objRef.Get("inReplyTo")); !parentRef.IsZero() {
		// An unresolvable parent makes this an unthreaded root, not an error
		if parent := resolver.Status(parentRef); parent != nil {
			inReplyToId = &parent.Id
			if err, author := deps.Database.ReadAccountById(parent.AccountId); err == nil && author != nil {
				inReplyToLocal = author.IsLocal()
			}
		}
	}

	audience := ResolveAudience(objRef.Get("to"), objRef.Get("cc"), sender.FollowersURI)
	text := objRef.Str("content")

	statusId := uuid.New()
	tags, _ := tagList(objRef.Get("tag"))
	mentions, unrelatedLocals := buildMentions(tags, audience, statusId, text, sender, resolver, deps)
	hashtags := buildHashtags(tags, statusId)
	emojis := buildEmojis(tags, statusId)
	media := buildAttachments(objRef.Get("attachment"), statusId)

	signals := CreateSignals{
		Sender:                 sender,
		UnrelatedLocalMentions: unrelatedLocals,
		InReplyToLocal:         inReplyToLocal,
	}
	if count, err := deps.Database.CountLocalFollowersOf(sender.Id); err == nil {
		signals.LocalFollowers = count
	}
	if !deps.Spam.AllowCreate(signals) {
		log.Printf("Inbox: Create %s rejected by spam policy", objRef.URI)
		return nil
	}

	// Quote detection happens before persistence so the permalink rewrite
	// lands in the stored text
	quoted, quoteURI := detectQuote(objRef, resolver)
	if quoted != nil {
		text = rewriteQuotePermalink(text, quoted, deps)
	}

	sensitive, _ := objRef.Get("sensitive").(bool)
	status := &domain.Status{
		Id:                  statusId,
		URI:                 objRef.URI,
		AccountId:           sender.Id,
		Text:                text,
		Visibility:          audience.Visibility,
		Sensitive:           sensitive,
		SpoilerText:         objRef.Str("summary"),
		InReplyToId:         inReplyToId,
		ConversationURI:     objRef.Str("conversation"),
		QuoteApprovalPolicy: quotePolicyFromObject(objRef),
		CreatedAt:           time.Now(),
	}

	if err := deps.Database.CreateStatus(status, mentions, hashtags, media, emojis); err != nil {
		if readErr, existing := deps.Database.ReadStatusByURI(objRef.URI); readErr == nil && existing != nil {
			return nil
		}
		return fmt.Errorf("failed to create status: %w", err)
	}

	if isQuestion {
		if err := createPoll(objRef, status, deps); err != nil {
			log.Printf("Inbox: Failed to create poll for %s: %v", status.URI, err)
		}
	}

	if quoted != nil {
		quote := &domain.Quote{
			Id:             uuid.New(),
			StatusId:       status.Id,
			QuotedStatusId: quoted.Id,
			State:          initialQuoteState(quoted),
			URI:            quoteURI,
			CreatedAt:      time.Now(),
		}
		if err := deps.Database.UpsertQuote(quote); err != nil {
			log.Printf("Inbox: Failed to record quote edge: %v", err)
		}
	}

	log.Printf("Inbox: Stored status %s from %s", status.URI, sender.Username)
	return nil
}

// buildMentions resolves Mention tags and the silently-addressed accounts
// of a limited-visibility post. Entries without an href are skipped. The
// second return value counts mentioned local accounts with no follow
// relationship to the sender in either direction, feeding the spam gate.
func buildMentions(tags []any, audience Audience, statusId uuid.UUID, text string, sender *domain.Account, resolver *Resolver, deps *Deps) ([]domain.Mention, int) {
	var mentions []domain.Mention
	seen := make(map[uuid.UUID]bool)
	unrelatedLocals := 0

	addMention := func(acc *domain.Account, silent bool) {
		if acc == nil || seen[acc.Id] {
			return
		}
		seen[acc.Id] = true
		mentions = append(mentions, domain.Mention{
			Id:        uuid.New(),
			StatusId:  statusId,
			AccountId: acc.Id,
			Silent:    silent,
		})
		if acc.IsLocal() && acc.Id != sender.Id {
			err1, forward := deps.Database.ReadFollowByAccountIds(sender.Id, acc.Id)
			err2, reverse := deps.Database.ReadFollowByAccountIds(acc.Id, sender.Id)
			if (err1 != nil || forward == nil) && (err2 != nil || reverse == nil) {
				unrelatedLocals++
			}
		}
	}

	for _, tag := range tags {
		ref := NewReference(tag)
		if ref.Type() != "Mention" {
			continue
		}
		href := ref.Str("href")
		if href == "" {
			continue
		}
		addMention(resolver.Account(NewReference(href)), false)
	}

	// Explicitly to-addressed accounts of a limited post become silent
	// mentions unless the body already mentions them
	if audience.Visibility == domain.VisibilityLimited {
		for _, uri := range audience.Addressed {
			addMention(resolver.Account(NewReference(uri)), true)
		}
	}

	return mentions, unrelatedLocals
}

// buildHashtags collects Hashtag tags, dropping names that fail hashtag
// syntax after normalization.
func buildHashtags(tags []any, statusId uuid.UUID) []domain.Tag {
	var hashtags []domain.Tag
	seen := make(map[string]bool)
	for _, tag := range tags {
		ref := NewReference(tag)
		if ref.Type() != "Hashtag" {
			continue
		}
		name := util.NormalizeHashtagName(ref.Str("name"))
		if name == "" || !util.IsValidHashtagName(name) || seen[name] {
			continue
		}
		seen[name] = true
		hashtags = append(hashtags, domain.Tag{
			Id:       uuid.New(),
			StatusId: statusId,
			Name:     name,
		})
	}
	return hashtags
}

// buildEmojis collects custom emoji tags, skipping entries with a missing
// name or icon.
func buildEmojis(tags []any, statusId uuid.UUID) []domain.Emoji {
	var emojis []domain.Emoji
	for _, tag := range tags {
		ref := NewReference(tag)
		if ref.Type() != "Emoji" {
			continue
		}
		shortcode := strings.Trim(ref.Str("name"), ":")
		iconURL := NewReference(ref.Get("icon")).Str("url")
		if shortcode == "" || iconURL == "" {
			continue
		}
		emojis = append(emojis, domain.Emoji{
			Id:        uuid.New(),
			StatusId:  statusId,
			Shortcode: shortcode,
			ImageURL:  iconURL,
		})
	}
	return emojis
}

// buildAttachments collects media attachments. Entries without a url are
// skipped; the accessibility description prefers name over summary and is
// truncated rather than rejected; a focalPoint array becomes "x,y".
func buildAttachments(raw any, statusId uuid.UUID) []domain.MediaAttachment {
	entries, ok := tagList(raw)
	if !ok {
		return nil
	}

	var media []domain.MediaAttachment
	for _, entry := range entries {
		ref := NewReference(entry)
		url := ref.Str("url")
		if url == "" {
			continue
		}

		description := ref.Str("name")
		if description == "" {
			description = ref.Str("summary")
		}
		description = util.TruncateRunes(description, maxDescriptionLen)

		focalPoint := ""
		if fp, ok := ref.Get("focalPoint").([]any); ok && len(fp) == 2 {
			x, xok := fp[0].(float64)
			y, yok := fp[1].(float64)
			if xok && yok {
				focalPoint = fmt.Sprintf("%g,%g", x, y)
			}
		}

		media = append(media, domain.MediaAttachment{
			Id:          uuid.New(),
			StatusId:    statusId,
			URL:         url,
			MediaType:   ref.Str("mediaType"),
			Description: description,
			FocalPoint:  focalPoint,
			Blurhash:    ref.Str("blurhash"),
		})
	}
	return media
}

// pollOptionsFromObject reads oneOf/anyOf options and their cached reply
// counts from a Question object.
func pollOptionsFromObject(objRef Reference) (options []string, tallies []int) {
	raw := objRef.Get("oneOf")
	if raw == nil {
		raw = objRef.Get("anyOf")
	}
	entries, ok := tagList(raw)
	if !ok {
		return nil, nil
	}

	for _, entry := range entries {
		ref := NewReference(entry)
		name := ref.Str("name")
		if name == "" {
			continue
		}
		count := 0
		if replies := NewReference(ref.Get("replies")); replies.Inline != nil {
			if total, ok := replies.Get("totalItems").(float64); ok {
				count = int(total)
			}
		}
		options = append(options, name)
		tallies = append(tallies, count)
	}
	return options, tallies
}

// createPoll stores the poll belonging to a freshly-created Question.
func createPoll(objRef Reference, status *domain.Status, deps *Deps) error {
	options, tallies := pollOptionsFromObject(objRef)
	if len(options) == 0 {
		return fmt.Errorf("question %s has no options", status.URI)
	}

	poll := &domain.Poll{
		Id:       uuid.New(),
		StatusId: status.Id,
		Options:  options,
		Tallies:  tallies,
		Multiple: objRef.Get("anyOf") != nil,
	}
	if expires := objRef.Str("endTime"); expires != "" {
		if t, err := time.Parse(time.RFC3339, expires); err == nil {
			poll.ExpiresAt = &t
		}
	}
	return deps.Database.CreatePoll(poll)
}

// tryPollVote detects and applies a poll vote: a bare Note whose name
// matches an option of a local poll the Note replies to. Votes on expired
// polls and duplicate votes are silently dropped. Returns voted=true when
// the Note was a vote (applied or dropped) and must not become a status.
func tryPollVote(objRef Reference, sender *domain.Account, deps *Deps) (bool, error) {
	choice := objRef.Str("name")
	if choice == "" || objRef.Str("content") != "" {
		return false, nil
	}
	parentRef := NewReference(objRef.Get("inReplyTo"))
	if parentRef.URI == "" {
		return false, nil
	}
	err, parent := deps.Database.ReadStatusByURI(parentRef.URI)
	if err != nil || parent == nil {
		return false, nil
	}
	err, poll := deps.Database.ReadPollByStatusId(parent.Id)
	if err != nil || poll == nil {
		return false, nil
	}

	optionIndex := -1
	for i, option := range poll.Options {
		if option == choice {
			optionIndex = i
			break
		}
	}
	if optionIndex < 0 {
		return false, nil
	}

	if poll.ExpiresAt != nil && time.Now().After(*poll.ExpiresAt) {
		log.Printf("Inbox: Vote on expired poll %s dropped", parent.URI)
		return true, nil
	}

	created, err := deps.Database.CreatePollVote(&domain.PollVote{
		Id:          uuid.New(),
		PollId:      poll.Id,
		VoterURI:    sender.URI,
		OptionIndex: optionIndex,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return true, fmt.Errorf("failed to store poll vote: %w", err)
	}
	if !created {
		// Same voter twice: idempotent drop
		return true, nil
	}

	if err := deps.Database.IncrementPollTally(poll.Id, optionIndex); err != nil {
		return true, fmt.Errorf("failed to increment poll tally: %w", err)
	}
	log.Printf("Inbox: %s voted on %s", sender.Username, parent.URI)
	return true, nil
}

// detectQuote finds a quoted status via the quoteUrl field or a
// quote-typed instrument/link, resolving it (and its author) remotely if
// needed. Returns the resolved status and the quote's own URI when the
// quote came as a first-class object.
func detectQuote(objRef Reference, resolver *Resolver) (*domain.Status, string) {
	if quoteURL := objRef.Str("quoteUrl"); quoteURL != "" {
		return resolver.Status(NewReference(quoteURL)), ""
	}

	instRef := NewReference(objRef.Get("instrument"))
	if instRef.Inline != nil && instRef.Type() == "Link" {
		if rel := instRef.Str("rel"); strings.Contains(rel, "quote") {
			if href := instRef.Str("href"); href != "" {
				return resolver.Status(NewReference(href)), instRef.URI
			}
		}
	}
	if quoteRef := NewReference(objRef.Get("quote")); !quoteRef.IsZero() {
		return resolver.Status(quoteRef), quoteRef.URI
	}
	return nil, ""
}

// initialQuoteState derives the quote edge state from the quoted status's
// approval policy. Anything short of a public policy starts pending and
// is resolved through the QuoteRequest flow.
func initialQuoteState(quoted *domain.Status) string {
	if quoted.QuoteApprovalPolicy == "" || quoted.QuoteApprovalPolicy == domain.QuotePolicyPublic {
		return domain.QuoteStateAccepted
	}
	return domain.QuoteStatePending
}

// rewriteQuotePermalink replaces a body URL pointing at the quoted status
// with its local canonical permalink once the status and its author are
// known locally.
func rewriteQuotePermalink(text string, quoted *domain.Status, deps *Deps) string {
	if quoted.URI == "" || !strings.Contains(text, quoted.URI) {
		return text
	}
	err, author := deps.Database.ReadAccountById(quoted.AccountId)
	if err != nil || author == nil {
		return text
	}
	permalink := LocalStatusURI(deps.Conf, author.Username, quoted.Id)
	return strings.ReplaceAll(text, quoted.URI, permalink)
}

// handleEncryptedMessage stores an E2EE direct message record and mints
// its franking envelope with the current system key.
func handleEncryptedMessage(objRef Reference, sender *domain.Account, deps *Deps) error {
	deviceId := objRef.Str("to")
	if deviceId == "" {
		if list := normalizeAudienceField(objRef.Get("to")); len(list) > 0 {
			deviceId = list[0]
		}
	}
	if deviceId == "" {
		return nil
	}

	err, device := deps.Database.ReadDeviceByDeviceId(deviceId)
	if err != nil || device == nil {
		log.Printf("Inbox: EncryptedMessage for unknown device %s, ignoring", deviceId)
		return nil
	}

	messageId := objRef.Str("messageId")
	if messageId == "" {
		messageId = objRef.URI
	}

	franking, err := MintFranking(deps.Franking, sender.Id, device.AccountId, objRef.Str("messageFranking"))
	if err != nil {
		return fmt.Errorf("failed to mint franking: %w", err)
	}

	msg := &domain.EncryptedMessage{
		Id:              uuid.New(),
		DeviceId:        deviceId,
		MessageId:       messageId,
		AccountId:       sender.Id,
		TargetAccountId: device.AccountId,
		Type:            objRef.Str("messageType"),
		Body:            objRef.Str("cipherText"),
		Digest:          NewReference(objRef.Get("digest")).Str("digestValue"),
		MessageFranking: franking,
		CreatedAt:       time.Now(),
	}
	if err := deps.Database.CreateEncryptedMessage(msg); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil
		}
		return fmt.Errorf("failed to store encrypted message: %w", err)
	}

	log.Printf("Inbox: Stored encrypted message %s for device %s", messageId, deviceId)
	return nil
}
