package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/google/uuid"
)

// Block queries

func (db *DB) UpsertBlock(block *domain.Block) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO blocks(id, account_id, target_account_id, uri, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id, target_account_id) DO UPDATE SET uri = excluded.uri`,
			block.Id.String(), block.AccountId.String(), block.TargetAccountId.String(),
			block.URI, block.CreatedAt)
		return err
	})
}

func (db *DB) DeleteBlockByAccountIds(accountId, targetAccountId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM blocks WHERE account_id = ? AND target_account_id = ?`,
			accountId.String(), targetAccountId.String())
		return err
	})
}

func (db *DB) ReadDomainBlock(domainName string) (error, *domain.DomainBlock) {
	var block domain.DomainBlock
	var rejectFollows sql.NullInt64
	row := db.db.QueryRow(`SELECT id, domain, reject_follows, created_at FROM domain_blocks WHERE domain = ?`, domainName)
	err := row.Scan(&block.Id, &block.Domain, &rejectFollows, &block.CreatedAt)
	if err != nil {
		return err, nil
	}
	block.RejectFollows = rejectFollows.Int64 == 1
	return nil, &block
}

func (db *DB) UpsertDomainBlock(block *domain.DomainBlock) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO domain_blocks(id, domain, reject_follows, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(domain) DO UPDATE SET reject_follows = excluded.reject_follows`,
			block.Id.String(), block.Domain, boolToInt(block.RejectFollows), block.CreatedAt)
		return err
	})
}

// Report queries

func (db *DB) CreateReport(report *domain.Report) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		statusIds, err := json.Marshal(report.StatusIds)
		if err != nil {
			return err
		}
		// The uri is the idempotency key; re-delivery hits the conflict
		// and leaves the original report untouched
		_, err = tx.Exec(`INSERT INTO reports(id, account_id, target_account_id, status_ids, comment, uri, resolved, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(uri) DO NOTHING`,
			report.Id.String(), report.AccountId.String(), report.TargetAccountId.String(),
			string(statusIds), report.Comment, report.URI, boolToInt(report.Resolved), report.CreatedAt)
		return err
	})
}

func scanReport(row rowScanner) (error, *domain.Report) {
	var report domain.Report
	var statusIds, comment sql.NullString
	var resolved sql.NullInt64
	err := row.Scan(&report.Id, &report.AccountId, &report.TargetAccountId, &statusIds, &comment, &report.URI, &resolved, &report.CreatedAt)
	if err != nil {
		return err, nil
	}
	report.Comment = comment.String
	report.Resolved = resolved.Int64 == 1
	if statusIds.Valid && statusIds.String != "" {
		json.Unmarshal([]byte(statusIds.String), &report.StatusIds)
	}
	return nil, &report
}

// ReadOpenReports lists unresolved reports for the moderation queue.
func (db *DB) ReadOpenReports() (error, *[]domain.Report) {
	rows, err := db.db.Query(`SELECT id, account_id, target_account_id, status_ids, comment, uri, resolved, created_at
		FROM reports WHERE resolved = 0 ORDER BY created_at ASC`)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		err, report := scanReport(rows)
		if err != nil {
			return err, nil
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return err, &reports
	}
	return nil, &reports
}

func (db *DB) ResolveReport(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE reports SET resolved = 1 WHERE id = ?`, id.String())
		return err
	})
}

// Pin queries

func (db *DB) UpsertStatusPin(pin *domain.StatusPin) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR IGNORE INTO status_pins(id, account_id, status_id, created_at) VALUES (?, ?, ?, ?)`,
			pin.Id.String(), pin.AccountId.String(), pin.StatusId.String(), pin.CreatedAt)
		return err
	})
}

func (db *DB) DeleteStatusPin(accountId, statusId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM status_pins WHERE account_id = ? AND status_id = ?`,
			accountId.String(), statusId.String())
		return err
	})
}

// Relay queries

func scanRelay(row rowScanner) (error, *domain.Relay) {
	var relay domain.Relay
	var acceptedAt sql.NullTime
	err := row.Scan(&relay.Id, &relay.ActorURI, &relay.InboxURI, &relay.FollowURI, &relay.State, &relay.CreatedAt, &acceptedAt)
	if err != nil {
		return err, nil
	}
	if acceptedAt.Valid {
		relay.AcceptedAt = &acceptedAt.Time
	}
	return nil, &relay
}

func (db *DB) CreateRelay(relay *domain.Relay) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO relays(id, actor_uri, inbox_uri, follow_uri, state, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			relay.Id.String(), relay.ActorURI, relay.InboxURI, relay.FollowURI, relay.State, relay.CreatedAt)
		return err
	})
}

func (db *DB) ReadRelayByActorURI(actorURI string) (error, *domain.Relay) {
	row := db.db.QueryRow(`SELECT id, actor_uri, inbox_uri, follow_uri, state, created_at, accepted_at FROM relays WHERE actor_uri = ?`, actorURI)
	return scanRelay(row)
}

func (db *DB) ReadRelayByFollowURI(followURI string) (error, *domain.Relay) {
	row := db.db.QueryRow(`SELECT id, actor_uri, inbox_uri, follow_uri, state, created_at, accepted_at FROM relays WHERE follow_uri = ?`, followURI)
	return scanRelay(row)
}

func (db *DB) ReadRelays() (error, *[]domain.Relay) {
	rows, err := db.db.Query(`SELECT id, actor_uri, inbox_uri, follow_uri, state, created_at, accepted_at FROM relays ORDER BY created_at ASC`)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var relays []domain.Relay
	for rows.Next() {
		err, relay := scanRelay(rows)
		if err != nil {
			return err, nil
		}
		relays = append(relays, *relay)
	}
	if err := rows.Err(); err != nil {
		return err, &relays
	}
	return nil, &relays
}

func (db *DB) UpdateRelayState(id uuid.UUID, state string, acceptedAt *time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE relays SET state = ?, accepted_at = ? WHERE id = ?`,
			state, acceptedAt, id.String())
		return err
	})
}

// Group queries

func scanGroup(row rowScanner) (error, *domain.Group) {
	var group domain.Group
	var name, inboxURI, membersURI sql.NullString
	var locked, suspended sql.NullInt64
	err := row.Scan(&group.Id, &group.URI, &group.Domain, &name, &inboxURI, &membersURI, &locked, &suspended, &group.CreatedAt)
	if err != nil {
		return err, nil
	}
	group.Name = name.String
	group.InboxURI = inboxURI.String
	group.MembersURI = membersURI.String
	group.Locked = locked.Int64 == 1
	group.Suspended = suspended.Int64 == 1
	return nil, &group
}

func (db *DB) ReadGroupById(id uuid.UUID) (error, *domain.Group) {
	row := db.db.QueryRow(`SELECT id, uri, domain, name, inbox_uri, members_uri, locked, suspended, created_at FROM groups WHERE id = ?`, id.String())
	return scanGroup(row)
}

func (db *DB) ReadGroupByURI(uri string) (error, *domain.Group) {
	row := db.db.QueryRow(`SELECT id, uri, domain, name, inbox_uri, members_uri, locked, suspended, created_at FROM groups WHERE uri = ?`, uri)
	return scanGroup(row)
}

func (db *DB) CreateGroup(group *domain.Group) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO groups(id, uri, domain, name, inbox_uri, members_uri, locked, suspended, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			group.Id.String(), group.URI, group.Domain, group.Name, group.InboxURI, group.MembersURI,
			boolToInt(group.Locked), boolToInt(group.Suspended), group.CreatedAt)
		return err
	})
}

func (db *DB) UpsertMembership(m *domain.Membership) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO memberships(id, account_id, group_id, uri, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id, group_id) DO UPDATE SET uri = excluded.uri`,
			m.Id.String(), m.AccountId.String(), m.GroupId.String(), m.URI, m.CreatedAt)
		return err
	})
}

func (db *DB) UpsertMembershipRequest(m *domain.MembershipRequest) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO membership_requests(id, account_id, group_id, uri, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id, group_id) DO UPDATE SET uri = excluded.uri`,
			m.Id.String(), m.AccountId.String(), m.GroupId.String(), m.URI, m.CreatedAt)
		return err
	})
}

func (db *DB) DeleteMembershipByAccountAndGroup(accountId, groupId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM memberships WHERE account_id = ? AND group_id = ?`,
			accountId.String(), groupId.String())
		return err
	})
}

func (db *DB) DeleteMembershipRequestByAccountAndGroup(accountId, groupId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM membership_requests WHERE account_id = ? AND group_id = ?`,
			accountId.String(), groupId.String())
		return err
	})
}

func (db *DB) ReadMembershipsByGroupId(groupId uuid.UUID) (error, *[]domain.Membership) {
	rows, err := db.db.Query(`SELECT id, account_id, group_id, uri, created_at FROM memberships WHERE group_id = ?`, groupId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var memberships []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.Id, &m.AccountId, &m.GroupId, &m.URI, &m.CreatedAt); err != nil {
			return err, nil
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return err, &memberships
	}
	return nil, &memberships
}

func (db *DB) IsGroupBlocked(groupId, accountId uuid.UUID) (bool, error) {
	var exists int
	err := db.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM group_blocks WHERE group_id = ? AND account_id = ?)`,
		groupId.String(), accountId.String()).Scan(&exists)
	return exists == 1, err
}

// Quote queries

func (db *DB) UpsertQuote(quote *domain.Quote) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO quotes(id, status_id, quoted_status_id, state, uri, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(status_id, quoted_status_id) DO UPDATE SET state = excluded.state, uri = excluded.uri`,
			quote.Id.String(), quote.StatusId.String(), quote.QuotedStatusId.String(),
			quote.State, quote.URI, quote.CreatedAt)
		return err
	})
}

// Device / encrypted message queries

func (db *DB) ReadDeviceByDeviceId(deviceId string) (error, *domain.Device) {
	var device domain.Device
	var name, identityKey, fingerprintKey sql.NullString
	row := db.db.QueryRow(`SELECT id, account_id, device_id, name, identity_key, fingerprint_key, created_at FROM devices WHERE device_id = ?`, deviceId)
	err := row.Scan(&device.Id, &device.AccountId, &device.DeviceId, &name, &identityKey, &fingerprintKey, &device.CreatedAt)
	if err != nil {
		return err, nil
	}
	device.Name = name.String
	device.IdentityKey = identityKey.String
	device.FingerprintKey = fingerprintKey.String
	return nil, &device
}

func (db *DB) CreateDevice(device *domain.Device) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO devices(id, account_id, device_id, name, identity_key, fingerprint_key, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			device.Id.String(), device.AccountId.String(), device.DeviceId, device.Name,
			device.IdentityKey, device.FingerprintKey, device.CreatedAt)
		return err
	})
}

func (db *DB) CreateEncryptedMessage(msg *domain.EncryptedMessage) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO encrypted_messages(id, device_id, message_id, account_id, target_account_id, message_type, body, digest, message_franking, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.Id.String(), msg.DeviceId, msg.MessageId, msg.AccountId.String(),
			msg.TargetAccountId.String(), msg.Type, msg.Body, msg.Digest, msg.MessageFranking,
			msg.CreatedAt)
		return err
	})
}

// Activity log queries

func (db *DB) CreateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO activities(id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, from_relay, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			activity.Id.String(), activity.ActivityURI, activity.ActivityType, activity.ActorURI,
			activity.ObjectURI, activity.RawJSON, boolToInt(activity.Processed),
			boolToInt(activity.Local), boolToInt(activity.FromRelay), activity.CreatedAt)
		return err
	})
}

func (db *DB) UpdateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE activities SET processed = ?, from_relay = ? WHERE id = ?`,
			boolToInt(activity.Processed), boolToInt(activity.FromRelay), activity.Id.String())
		return err
	})
}

func (db *DB) ReadActivityByURI(uri string) (error, *domain.Activity) {
	var activity domain.Activity
	var objectURI sql.NullString
	var processed, local, fromRelay sql.NullInt64
	row := db.db.QueryRow(`SELECT id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, from_relay, created_at FROM activities WHERE activity_uri = ?`, uri)
	err := row.Scan(&activity.Id, &activity.ActivityURI, &activity.ActivityType, &activity.ActorURI,
		&objectURI, &activity.RawJSON, &processed, &local, &fromRelay, &activity.CreatedAt)
	if err != nil {
		return err, nil
	}
	activity.ObjectURI = objectURI.String
	activity.Processed = processed.Int64 == 1
	activity.Local = local.Int64 == 1
	activity.FromRelay = fromRelay.Int64 == 1
	return nil, &activity
}

// Delivery queue queries

func (db *DB) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO delivery_queue(id, inbox_uri, activity_json, account_id, attempts, next_retry_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.Id.String(), item.InboxURI, item.ActivityJSON, item.AccountId.String(),
			item.Attempts, item.NextRetryAt, item.CreatedAt)
		return err
	})
}

func (db *DB) ReadPendingDeliveries(limit int) (error, *[]domain.DeliveryQueueItem) {
	rows, err := db.db.Query(`SELECT id, inbox_uri, activity_json, account_id, attempts, next_retry_at, created_at
		FROM delivery_queue WHERE next_retry_at <= ? ORDER BY next_retry_at ASC LIMIT ?`,
		time.Now(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var items []domain.DeliveryQueueItem
	for rows.Next() {
		var item domain.DeliveryQueueItem
		if err := rows.Scan(&item.Id, &item.InboxURI, &item.ActivityJSON, &item.AccountId,
			&item.Attempts, &item.NextRetryAt, &item.CreatedAt); err != nil {
			return err, nil
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return err, &items
	}
	return nil, &items
}

func (db *DB) UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE delivery_queue SET attempts = ?, next_retry_at = ? WHERE id = ?`,
			attempts, nextRetry, id.String())
		return err
	})
}

func (db *DB) DeleteDelivery(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM delivery_queue WHERE id = ?`, id.String())
		return err
	})
}
