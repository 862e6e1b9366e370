package db

import (
	"database/sql"
	"log"
)

// Schema for the federation graph store. Every uri-keyed edge table
// carries a UNIQUE constraint on its natural pair so that concurrent
// delivery of the same activity resolves to a conditional upsert instead
// of a duplicate row.
const (
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		uri TEXT UNIQUE,
		display_name TEXT,
		summary TEXT,
		inbox_uri TEXT,
		shared_inbox_uri TEXT,
		followers_uri TEXT,
		featured_uri TEXT,
		public_key_pem TEXT,
		web_private_key TEXT,
		avatar_url TEXT,
		locked INTEGER DEFAULT 0,
		silenced INTEGER DEFAULT 0,
		also_known_as TEXT,
		moved_to_id TEXT,
		last_fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateAccountsIndices = `
		CREATE INDEX IF NOT EXISTS idx_accounts_uri ON accounts(uri);
		CREATE INDEX IF NOT EXISTS idx_accounts_domain ON accounts(domain);
	`

	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, target_account_id)
	)`

	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_target_account_id ON follows(target_account_id);
		CREATE INDEX IF NOT EXISTS idx_follows_uri ON follows(uri);
	`

	sqlCreateFollowRequestsTable = `CREATE TABLE IF NOT EXISTS follow_requests (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, target_account_id)
	)`

	sqlCreateFollowRequestsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follow_requests_target ON follow_requests(target_account_id);
		CREATE INDEX IF NOT EXISTS idx_follow_requests_uri ON follow_requests(uri);
	`

	sqlCreateStatusesTable = `CREATE TABLE IF NOT EXISTS statuses (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE,
		account_id TEXT NOT NULL,
		text TEXT,
		visibility TEXT NOT NULL DEFAULT 'public',
		sensitive INTEGER DEFAULT 0,
		spoiler_text TEXT,
		reblog_of_id TEXT,
		in_reply_to_id TEXT,
		conversation_uri TEXT,
		quote_policy TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		edited_at TIMESTAMP
	)`

	sqlCreateStatusesIndices = `
		CREATE INDEX IF NOT EXISTS idx_statuses_uri ON statuses(uri);
		CREATE INDEX IF NOT EXISTS idx_statuses_account_id ON statuses(account_id);
		CREATE INDEX IF NOT EXISTS idx_statuses_reblog_of_id ON statuses(reblog_of_id);
		CREATE INDEX IF NOT EXISTS idx_statuses_created_at ON statuses(created_at DESC);
	`

	sqlCreateMentionsTable = `CREATE TABLE IF NOT EXISTS mentions (
		id TEXT NOT NULL PRIMARY KEY,
		status_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		silent INTEGER DEFAULT 0,
		UNIQUE(status_id, account_id)
	)`

	sqlCreateTagsTable = `CREATE TABLE IF NOT EXISTS tags (
		id TEXT NOT NULL PRIMARY KEY,
		status_id TEXT NOT NULL,
		name TEXT NOT NULL,
		UNIQUE(status_id, name)
	)`

	sqlCreateMediaTable = `CREATE TABLE IF NOT EXISTS media_attachments (
		id TEXT NOT NULL PRIMARY KEY,
		status_id TEXT NOT NULL,
		url TEXT NOT NULL,
		media_type TEXT,
		description TEXT,
		focal_point TEXT,
		blurhash TEXT
	)`

	sqlCreateEmojisTable = `CREATE TABLE IF NOT EXISTS emojis (
		id TEXT NOT NULL PRIMARY KEY,
		status_id TEXT NOT NULL,
		shortcode TEXT NOT NULL,
		image_url TEXT NOT NULL,
		UNIQUE(status_id, shortcode)
	)`

	sqlCreatePollsTable = `CREATE TABLE IF NOT EXISTS polls (
		id TEXT NOT NULL PRIMARY KEY,
		status_id TEXT UNIQUE NOT NULL,
		options TEXT NOT NULL,
		tallies TEXT NOT NULL,
		multiple INTEGER DEFAULT 0,
		expires_at TIMESTAMP
	)`

	sqlCreatePollVotesTable = `CREATE TABLE IF NOT EXISTS poll_votes (
		id TEXT NOT NULL PRIMARY KEY,
		poll_id TEXT NOT NULL,
		voter_uri TEXT NOT NULL,
		option_index INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(poll_id, voter_uri)
	)`

	sqlCreateFavouritesTable = `CREATE TABLE IF NOT EXISTS favourites (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		status_id TEXT NOT NULL,
		uri TEXT,
		emoji TEXT,
		emoji_image_url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, status_id)
	)`

	sqlCreateEmojiReactionsTable = `CREATE TABLE IF NOT EXISTS emoji_reactions (
		status_id TEXT NOT NULL,
		emoji TEXT NOT NULL,
		count INTEGER DEFAULT 0,
		PRIMARY KEY(status_id, emoji)
	)`

	sqlCreateBlocksTable = `CREATE TABLE IF NOT EXISTS blocks (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		uri TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, target_account_id)
	)`

	sqlCreateDomainBlocksTable = `CREATE TABLE IF NOT EXISTS domain_blocks (
		id TEXT NOT NULL PRIMARY KEY,
		domain TEXT UNIQUE NOT NULL,
		reject_follows INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateReportsTable = `CREATE TABLE IF NOT EXISTS reports (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		status_ids TEXT,
		comment TEXT,
		uri TEXT UNIQUE,
		resolved INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateStatusPinsTable = `CREATE TABLE IF NOT EXISTS status_pins (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		status_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, status_id)
	)`

	sqlCreateRelaysTable = `CREATE TABLE IF NOT EXISTS relays (
		id TEXT NOT NULL PRIMARY KEY,
		actor_uri TEXT UNIQUE NOT NULL,
		inbox_uri TEXT NOT NULL,
		follow_uri TEXT UNIQUE NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		accepted_at TIMESTAMP
	)`

	sqlCreateGroupsTable = `CREATE TABLE IF NOT EXISTS groups (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		name TEXT,
		inbox_uri TEXT,
		members_uri TEXT,
		locked INTEGER DEFAULT 0,
		suspended INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateMembershipsTable = `CREATE TABLE IF NOT EXISTS memberships (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		uri TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, group_id)
	)`

	sqlCreateMembershipRequestsTable = `CREATE TABLE IF NOT EXISTS membership_requests (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		uri TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, group_id)
	)`

	sqlCreateGroupBlocksTable = `CREATE TABLE IF NOT EXISTS group_blocks (
		id TEXT NOT NULL PRIMARY KEY,
		group_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(group_id, account_id)
	)`

	sqlCreateQuotesTable = `CREATE TABLE IF NOT EXISTS quotes (
		id TEXT NOT NULL PRIMARY KEY,
		status_id TEXT NOT NULL,
		quoted_status_id TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending',
		uri TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(status_id, quoted_status_id)
	)`

	sqlCreateDevicesTable = `CREATE TABLE IF NOT EXISTS devices (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		device_id TEXT UNIQUE NOT NULL,
		name TEXT,
		identity_key TEXT,
		fingerprint_key TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateEncryptedMessagesTable = `CREATE TABLE IF NOT EXISTS encrypted_messages (
		id TEXT NOT NULL PRIMARY KEY,
		device_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		message_type TEXT,
		body TEXT,
		digest TEXT,
		message_franking TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(device_id, message_id)
	)`

	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		object_uri TEXT,
		raw_json TEXT NOT NULL,
		processed INTEGER DEFAULT 0,
		local INTEGER DEFAULT 0,
		from_relay INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_uri ON activities(activity_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
	`

	sqlCreateDeliveryQueueTable = `CREATE TABLE IF NOT EXISTS delivery_queue (
		id TEXT NOT NULL PRIMARY KEY,
		inbox_uri TEXT NOT NULL,
		activity_json TEXT NOT NULL,
		account_id TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateDeliveryQueueIndices = `
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_next_retry ON delivery_queue(next_retry_at);
	`
)

// RunMigrations creates all tables and indices. Every statement is
// idempotent, so running migrations on an existing database is safe.
func (db *DB) RunMigrations() error {
	log.Println("Running database migrations...")

	tables := []string{
		sqlCreateAccountsTable,
		sqlCreateFollowsTable,
		sqlCreateFollowRequestsTable,
		sqlCreateStatusesTable,
		sqlCreateMentionsTable,
		sqlCreateTagsTable,
		sqlCreateMediaTable,
		sqlCreateEmojisTable,
		sqlCreatePollsTable,
		sqlCreatePollVotesTable,
		sqlCreateFavouritesTable,
		sqlCreateEmojiReactionsTable,
		sqlCreateBlocksTable,
		sqlCreateDomainBlocksTable,
		sqlCreateReportsTable,
		sqlCreateStatusPinsTable,
		sqlCreateRelaysTable,
		sqlCreateGroupsTable,
		sqlCreateMembershipsTable,
		sqlCreateMembershipRequestsTable,
		sqlCreateGroupBlocksTable,
		sqlCreateQuotesTable,
		sqlCreateDevicesTable,
		sqlCreateEncryptedMessagesTable,
		sqlCreateActivitiesTable,
		sqlCreateDeliveryQueueTable,
	}
	indices := []string{
		sqlCreateAccountsIndices,
		sqlCreateFollowsIndices,
		sqlCreateFollowRequestsIndices,
		sqlCreateStatusesIndices,
		sqlCreateActivitiesIndices,
		sqlCreateDeliveryQueueIndices,
	}

	return db.wrapTransaction(func(tx *sql.Tx) error {
		for _, stmt := range tables {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		for _, stmt := range indices {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		log.Println("Database migrations complete")
		return nil
	})
}
