package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// Status queries
const (
	sqlStatusColumns = `id, uri, account_id, text, visibility, sensitive, spoiler_text,
		reblog_of_id, in_reply_to_id, conversation_uri, quote_policy, created_at, edited_at`

	sqlInsertStatus = `INSERT INTO statuses(id, uri, account_id, text, visibility, sensitive,
		spoiler_text, reblog_of_id, in_reply_to_id, conversation_uri, quote_policy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlUpdateStatus = `UPDATE statuses SET text = ?, sensitive = ?, spoiler_text = ?, edited_at = ? WHERE id = ?`

	sqlSelectReblogsOfStatus = `SELECT ` + sqlStatusColumns + ` FROM statuses WHERE reblog_of_id = ?`

	sqlSelectPublicStatusesByAccount = `SELECT ` + sqlStatusColumns + ` FROM statuses
		WHERE account_id = ? AND visibility = 'public' AND reblog_of_id IS NULL
		ORDER BY created_at DESC LIMIT ?`
)

func scanStatus(row rowScanner) (error, *domain.Status) {
	var status domain.Status
	var uri, text, spoilerText, conversationURI, quotePolicy, reblogOfId, inReplyToId sql.NullString
	var sensitive sql.NullInt64
	var editedAt sql.NullTime

	err := row.Scan(&status.Id, &uri, &status.AccountId, &text, &status.Visibility, &sensitive,
		&spoilerText, &reblogOfId, &inReplyToId, &conversationURI, &quotePolicy, &status.CreatedAt, &editedAt)
	if err != nil {
		return err, nil
	}

	status.URI = uri.String
	status.Text = text.String
	status.Sensitive = sensitive.Int64 == 1
	status.SpoilerText = spoilerText.String
	status.ConversationURI = conversationURI.String
	status.QuoteApprovalPolicy = quotePolicy.String
	if reblogOfId.Valid && reblogOfId.String != "" {
		if id, err := uuid.Parse(reblogOfId.String); err == nil {
			status.ReblogOfId = &id
		}
	}
	if inReplyToId.Valid && inReplyToId.String != "" {
		if id, err := uuid.Parse(inReplyToId.String); err == nil {
			status.InReplyToId = &id
		}
	}
	if editedAt.Valid {
		status.EditedAt = &editedAt.Time
	}
	return nil, &status
}

func (db *DB) ReadStatusById(id uuid.UUID) (error, *domain.Status) {
	row := db.db.QueryRow(`SELECT `+sqlStatusColumns+` FROM statuses WHERE id = ?`, id.String())
	return scanStatus(row)
}

func (db *DB) ReadStatusByURI(uri string) (error, *domain.Status) {
	row := db.db.QueryRow(`SELECT `+sqlStatusColumns+` FROM statuses WHERE uri = ?`, uri)
	return scanStatus(row)
}

// CreateStatus stores a status with its mentions, hashtags, attachments
// and emojis in one transaction; either everything lands or nothing does.
func (db *DB) CreateStatus(status *domain.Status, mentions []domain.Mention, tags []domain.Tag, media []domain.MediaAttachment, emojis []domain.Emoji) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		var reblogOfId, inReplyToId any
		if status.ReblogOfId != nil {
			reblogOfId = status.ReblogOfId.String()
		}
		if status.InReplyToId != nil {
			inReplyToId = status.InReplyToId.String()
		}

		_, err := tx.Exec(sqlInsertStatus, status.Id.String(), nullIfEmpty(status.URI),
			status.AccountId.String(), status.Text, status.Visibility, boolToInt(status.Sensitive),
			status.SpoilerText, reblogOfId, inReplyToId, status.ConversationURI,
			status.QuoteApprovalPolicy, status.CreatedAt)
		if err != nil {
			return err
		}

		for _, m := range mentions {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO mentions(id, status_id, account_id, silent) VALUES (?, ?, ?, ?)`,
				m.Id.String(), m.StatusId.String(), m.AccountId.String(), boolToInt(m.Silent)); err != nil {
				return err
			}
		}
		for _, t := range tags {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO tags(id, status_id, name) VALUES (?, ?, ?)`,
				t.Id.String(), t.StatusId.String(), t.Name); err != nil {
				return err
			}
		}
		for _, a := range media {
			if _, err := tx.Exec(`INSERT INTO media_attachments(id, status_id, url, media_type, description, focal_point, blurhash) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				a.Id.String(), a.StatusId.String(), a.URL, a.MediaType, a.Description, a.FocalPoint, a.Blurhash); err != nil {
				return err
			}
		}
		for _, e := range emojis {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO emojis(id, status_id, shortcode, image_url) VALUES (?, ?, ?, ?)`,
				e.Id.String(), e.StatusId.String(), e.Shortcode, e.ImageURL); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) UpdateStatus(status *domain.Status) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateStatus, status.Text, boolToInt(status.Sensitive),
			status.SpoilerText, status.EditedAt, status.Id.String())
		return err
	})
}

// DeleteStatus removes a status and its dependent rows.
func (db *DB) DeleteStatus(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		statusId := id.String()
		for _, stmt := range []string{
			`DELETE FROM mentions WHERE status_id = ?`,
			`DELETE FROM tags WHERE status_id = ?`,
			`DELETE FROM media_attachments WHERE status_id = ?`,
			`DELETE FROM emojis WHERE status_id = ?`,
			`DELETE FROM favourites WHERE status_id = ?`,
			`DELETE FROM emoji_reactions WHERE status_id = ?`,
			`DELETE FROM status_pins WHERE status_id = ?`,
			`DELETE FROM quotes WHERE status_id = ?`,
			`DELETE FROM polls WHERE status_id = ?`,
			`DELETE FROM statuses WHERE id = ?`,
		} {
			if _, err := tx.Exec(stmt, statusId); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) ReadReblogsOfStatus(originalId uuid.UUID) (error, *[]domain.Status) {
	rows, err := db.db.Query(sqlSelectReblogsOfStatus, originalId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var statuses []domain.Status
	for rows.Next() {
		err, status := scanStatus(rows)
		if err != nil {
			return err, nil
		}
		statuses = append(statuses, *status)
	}
	if err := rows.Err(); err != nil {
		return err, &statuses
	}
	return nil, &statuses
}

func (db *DB) ReadPublicStatusesByAccount(accountId uuid.UUID, limit int) (error, *[]domain.Status) {
	rows, err := db.db.Query(sqlSelectPublicStatusesByAccount, accountId.String(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var statuses []domain.Status
	for rows.Next() {
		err, status := scanStatus(rows)
		if err != nil {
			return err, nil
		}
		statuses = append(statuses, *status)
	}
	if err := rows.Err(); err != nil {
		return err, &statuses
	}
	return nil, &statuses
}

func (db *DB) ReadMentionsByStatusId(statusId uuid.UUID) (error, *[]domain.Mention) {
	rows, err := db.db.Query(`SELECT id, status_id, account_id, silent FROM mentions WHERE status_id = ?`, statusId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var mentions []domain.Mention
	for rows.Next() {
		var m domain.Mention
		var silent sql.NullInt64
		if err := rows.Scan(&m.Id, &m.StatusId, &m.AccountId, &silent); err != nil {
			return err, nil
		}
		m.Silent = silent.Int64 == 1
		mentions = append(mentions, m)
	}
	if err := rows.Err(); err != nil {
		return err, &mentions
	}
	return nil, &mentions
}

// Poll queries

func (db *DB) CreatePoll(poll *domain.Poll) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		options, err := json.Marshal(poll.Options)
		if err != nil {
			return err
		}
		tallies, err := json.Marshal(poll.Tallies)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO polls(id, status_id, options, tallies, multiple, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
			poll.Id.String(), poll.StatusId.String(), string(options), string(tallies),
			boolToInt(poll.Multiple), poll.ExpiresAt)
		return err
	})
}

func (db *DB) ReadPollByStatusId(statusId uuid.UUID) (error, *domain.Poll) {
	var poll domain.Poll
	var options, tallies string
	var multiple sql.NullInt64
	var expiresAt sql.NullTime

	row := db.db.QueryRow(`SELECT id, status_id, options, tallies, multiple, expires_at FROM polls WHERE status_id = ?`, statusId.String())
	err := row.Scan(&poll.Id, &poll.StatusId, &options, &tallies, &multiple, &expiresAt)
	if err != nil {
		return err, nil
	}

	if err := json.Unmarshal([]byte(options), &poll.Options); err != nil {
		return err, nil
	}
	if err := json.Unmarshal([]byte(tallies), &poll.Tallies); err != nil {
		return err, nil
	}
	poll.Multiple = multiple.Int64 == 1
	if expiresAt.Valid {
		poll.ExpiresAt = &expiresAt.Time
	}
	return nil, &poll
}

// CreatePollVote inserts a vote unless the (poll, voter) pair already
// voted. Returns false without error for the duplicate case.
func (db *DB) CreatePollVote(vote *domain.PollVote) (bool, error) {
	var created bool
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT OR IGNORE INTO poll_votes(id, poll_id, voter_uri, option_index, created_at) VALUES (?, ?, ?, ?, ?)`,
			vote.Id.String(), vote.PollId.String(), vote.VoterURI, vote.OptionIndex, vote.CreatedAt)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = affected > 0
		return nil
	})
	return created, err
}

// IncrementPollTally bumps one option's cached tally inside the stored
// JSON array.
func (db *DB) IncrementPollTally(pollId uuid.UUID, optionIndex int) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		var tallies string
		if err := tx.QueryRow(`SELECT tallies FROM polls WHERE id = ?`, pollId.String()).Scan(&tallies); err != nil {
			return err
		}
		var counts []int
		if err := json.Unmarshal([]byte(tallies), &counts); err != nil {
			return err
		}
		if optionIndex < 0 || optionIndex >= len(counts) {
			return sql.ErrNoRows
		}
		counts[optionIndex]++
		updated, err := json.Marshal(counts)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE polls SET tallies = ? WHERE id = ?`, string(updated), pollId.String())
		return err
	})
}

// Favourite/reaction queries

func (db *DB) UpsertFavourite(fav *domain.Favourite) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO favourites(id, account_id, status_id, uri, emoji, emoji_image_url, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(account_id, status_id) DO UPDATE SET uri = excluded.uri, emoji = excluded.emoji, emoji_image_url = excluded.emoji_image_url`,
			fav.Id.String(), fav.AccountId.String(), fav.StatusId.String(), fav.URI, fav.Emoji,
			fav.EmojiImageURL, fav.CreatedAt)
		return err
	})
}

func (db *DB) DeleteFavouriteByAccountAndStatus(accountId, statusId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM favourites WHERE account_id = ? AND status_id = ?`,
			accountId.String(), statusId.String())
		return err
	})
}

func (db *DB) IncrementEmojiReactionCount(statusId uuid.UUID, emoji string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO emoji_reactions(status_id, emoji, count) VALUES (?, ?, 1)
			ON CONFLICT(status_id, emoji) DO UPDATE SET count = count + 1`,
			statusId.String(), emoji)
		return err
	})
}

func (db *DB) ReadEmojiReactionCounts(statusId uuid.UUID) (error, map[string]int) {
	rows, err := db.db.Query(`SELECT emoji, count FROM emoji_reactions WHERE status_id = ?`, statusId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var emoji string
		var count int
		if err := rows.Scan(&emoji, &count); err != nil {
			return err, nil
		}
		counts[emoji] = count
	}
	if err := rows.Err(); err != nil {
		return err, counts
	}
	return nil, counts
}

// Nodeinfo counters

func (db *DB) CountLocalAccounts() (int, error) {
	var count int
	err := db.db.QueryRow(`SELECT COUNT(*) FROM accounts WHERE domain = ''`).Scan(&count)
	return count, err
}

func (db *DB) CountLocalStatuses() (int, error) {
	var count int
	err := db.db.QueryRow(`SELECT COUNT(*) FROM statuses
		INNER JOIN accounts ON accounts.id = statuses.account_id
		WHERE accounts.domain = ''`).Scan(&count)
	return count, err
}

func (db *DB) CountActiveAccountsSince(since time.Time) (int, error) {
	var count int
	err := db.db.QueryRow(`SELECT COUNT(DISTINCT statuses.account_id) FROM statuses
		INNER JOIN accounts ON accounts.id = statuses.account_id
		WHERE accounts.domain = '' AND statuses.created_at >= ?`, since).Scan(&count)
	return count, err
}
