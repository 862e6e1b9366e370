package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/deemkeen/mammut/domain"
	"github.com/deemkeen/mammut/util"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

func GetDB() *DB {
	dbOnce.Do(func() {
		// Resolve database path (local first, then user config dir)
		dbPath := util.ResolveFilePath("database.db")
		log.Printf("Using database at: %s", dbPath)

		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			panic(err)
		}

		// Configure connection pool for concurrent access
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)

		// Try to enable WAL2 mode, fall back to WAL if not supported
		var journalMode string
		err = db.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
		if err != nil || journalMode == "delete" {
			err = db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
			if err != nil {
				log.Printf("Warning: Failed to enable WAL mode: %v", err)
			} else {
				log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
			}
		} else {
			log.Printf("Database journal mode: %s", journalMode)
		}

		// PRAGMAs tuned for a concurrent federation workload
		db.Exec("PRAGMA synchronous = NORMAL")
		db.Exec("PRAGMA cache_size = -64000")
		db.Exec("PRAGMA temp_store = MEMORY")
		db.Exec("PRAGMA busy_timeout = 5000")
		db.Exec("PRAGMA foreign_keys = ON")
		db.Exec("PRAGMA auto_vacuum = INCREMENTAL")

		dbInstance = &DB{db: db}

		if err := dbInstance.RunMigrations(); err != nil {
			panic(err)
		}
	})

	return dbInstance
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}

// Account queries
const (
	sqlAccountColumns = `id, username, domain, uri, display_name, summary, inbox_uri, shared_inbox_uri,
		followers_uri, featured_uri, public_key_pem, web_private_key, avatar_url, locked, silenced,
		also_known_as, moved_to_id, last_fetched_at, created_at`

	sqlInsertAccount = `INSERT INTO accounts(id, username, domain, uri, display_name, summary, inbox_uri,
		shared_inbox_uri, followers_uri, featured_uri, public_key_pem, web_private_key, avatar_url,
		locked, silenced, also_known_as, moved_to_id, last_fetched_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlUpdateAccount = `UPDATE accounts SET display_name = ?, summary = ?, inbox_uri = ?,
		shared_inbox_uri = ?, followers_uri = ?, featured_uri = ?, public_key_pem = ?, avatar_url = ?,
		locked = ?, silenced = ?, also_known_as = ?, last_fetched_at = ? WHERE id = ?`

	sqlSetAccountMovedTo = `UPDATE accounts SET moved_to_id = ? WHERE id = ? AND moved_to_id IS NULL`

	sqlCountLocalFollowers = `SELECT COUNT(*) FROM follows
		INNER JOIN accounts ON accounts.id = follows.account_id
		WHERE follows.target_account_id = ? AND accounts.domain = ''`

	sqlSelectLocalFollowsOfTarget = `SELECT follows.id, follows.account_id, follows.target_account_id, follows.uri, follows.created_at
		FROM follows INNER JOIN accounts ON accounts.id = follows.account_id
		WHERE follows.target_account_id = ? AND accounts.domain = ''`

	sqlSelectFollowsOfTarget = `SELECT id, account_id, target_account_id, uri, created_at
		FROM follows WHERE target_account_id = ?`

	sqlExistsFollowFromDomain = `SELECT EXISTS(SELECT 1 FROM follows
		INNER JOIN accounts ON accounts.id = follows.account_id
		WHERE follows.target_account_id = ? AND accounts.domain = ?)`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (error, *domain.Account) {
	var acc domain.Account
	var uri, displayName, summary, inboxURI, sharedInboxURI, followersURI, featuredURI sql.NullString
	var publicKeyPem, webPrivateKey, avatarURL, alsoKnownAs, movedToId sql.NullString
	var locked, silenced sql.NullInt64

	err := row.Scan(&acc.Id, &acc.Username, &acc.Domain, &uri, &displayName, &summary, &inboxURI,
		&sharedInboxURI, &followersURI, &featuredURI, &publicKeyPem, &webPrivateKey, &avatarURL,
		&locked, &silenced, &alsoKnownAs, &movedToId, &acc.LastFetchedAt, &acc.CreatedAt)
	if err != nil {
		return err, nil
	}

	acc.URI = uri.String
	acc.DisplayName = displayName.String
	acc.Summary = summary.String
	acc.InboxURI = inboxURI.String
	acc.SharedInboxURI = sharedInboxURI.String
	acc.FollowersURI = followersURI.String
	acc.FeaturedURI = featuredURI.String
	acc.PublicKeyPem = publicKeyPem.String
	acc.WebPrivateKey = webPrivateKey.String
	acc.AvatarURL = avatarURL.String
	acc.Locked = locked.Int64 == 1
	acc.Silenced = silenced.Int64 == 1
	if alsoKnownAs.Valid && alsoKnownAs.String != "" {
		json.Unmarshal([]byte(alsoKnownAs.String), &acc.AlsoKnownAs)
	}
	if movedToId.Valid && movedToId.String != "" {
		if id, err := uuid.Parse(movedToId.String); err == nil {
			acc.MovedToId = &id
		}
	}
	return nil, &acc
}

func (db *DB) ReadAccountById(id uuid.UUID) (error, *domain.Account) {
	row := db.db.QueryRow(`SELECT `+sqlAccountColumns+` FROM accounts WHERE id = ?`, id.String())
	return scanAccount(row)
}

func (db *DB) ReadAccountByURI(uri string) (error, *domain.Account) {
	row := db.db.QueryRow(`SELECT `+sqlAccountColumns+` FROM accounts WHERE uri = ?`, uri)
	return scanAccount(row)
}

func (db *DB) ReadAccountByUsername(username string) (error, *domain.Account) {
	row := db.db.QueryRow(`SELECT `+sqlAccountColumns+` FROM accounts WHERE username = ? AND domain = ''`, username)
	return scanAccount(row)
}

func (db *DB) CreateAccount(acc *domain.Account) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		alsoKnownAs, err := json.Marshal(acc.AlsoKnownAs)
		if err != nil {
			return err
		}
		var movedToId any
		if acc.MovedToId != nil {
			movedToId = acc.MovedToId.String()
		}
		_, err = tx.Exec(sqlInsertAccount,
			acc.Id.String(), acc.Username, acc.Domain, nullIfEmpty(acc.URI), acc.DisplayName, acc.Summary,
			acc.InboxURI, acc.SharedInboxURI, acc.FollowersURI, acc.FeaturedURI, acc.PublicKeyPem,
			acc.WebPrivateKey, acc.AvatarURL, boolToInt(acc.Locked), boolToInt(acc.Silenced),
			string(alsoKnownAs), movedToId, acc.LastFetchedAt, acc.CreatedAt)
		return err
	})
}

func (db *DB) UpdateAccount(acc *domain.Account) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		alsoKnownAs, err := json.Marshal(acc.AlsoKnownAs)
		if err != nil {
			return err
		}
		_, err = tx.Exec(sqlUpdateAccount,
			acc.DisplayName, acc.Summary, acc.InboxURI, acc.SharedInboxURI, acc.FollowersURI,
			acc.FeaturedURI, acc.PublicKeyPem, acc.AvatarURL, boolToInt(acc.Locked),
			boolToInt(acc.Silenced), string(alsoKnownAs), acc.LastFetchedAt, acc.Id.String())
		return err
	})
}

// SetAccountMovedTo marks an account as moved. First write wins: a second
// Move never overwrites the stored successor.
func (db *DB) SetAccountMovedTo(id uuid.UUID, movedToId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlSetAccountMovedTo, movedToId.String(), id.String())
		return err
	})
}

func (db *DB) CountLocalFollowersOf(accountId uuid.UUID) (int, error) {
	var count int
	err := db.db.QueryRow(sqlCountLocalFollowers, accountId.String()).Scan(&count)
	return count, err
}

func (db *DB) ReadLocalFollowsOfTarget(targetAccountId uuid.UUID) (error, *[]domain.Follow) {
	return db.readFollowRows(sqlSelectLocalFollowsOfTarget, targetAccountId.String())
}

func (db *DB) ReadFollowsOfTarget(targetAccountId uuid.UUID) (error, *[]domain.Follow) {
	return db.readFollowRows(sqlSelectFollowsOfTarget, targetAccountId.String())
}

func (db *DB) ExistsFollowFromDomain(targetAccountId uuid.UUID, domainName string) (bool, error) {
	var exists int
	err := db.db.QueryRow(sqlExistsFollowFromDomain, targetAccountId.String(), domainName).Scan(&exists)
	return exists == 1, err
}

// Follow queries. The upserts are conditional on the (account, target)
// pair and refresh the URI on conflict, which is what makes re-sent and
// concurrently-delivered Follows idempotent.
const (
	sqlUpsertFollow = `INSERT INTO follows(id, account_id, target_account_id, uri, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, target_account_id) DO UPDATE SET uri = excluded.uri`

	sqlUpsertFollowRequest = `INSERT INTO follow_requests(id, account_id, target_account_id, uri, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, target_account_id) DO UPDATE SET uri = excluded.uri`

	sqlSelectFollowByPair        = `SELECT id, account_id, target_account_id, uri, created_at FROM follows WHERE account_id = ? AND target_account_id = ?`
	sqlSelectFollowRequestByPair = `SELECT id, account_id, target_account_id, uri, created_at FROM follow_requests WHERE account_id = ? AND target_account_id = ?`
	sqlSelectFollowByURI         = `SELECT id, account_id, target_account_id, uri, created_at FROM follows WHERE uri = ?`
	sqlSelectFollowRequestByURI  = `SELECT id, account_id, target_account_id, uri, created_at FROM follow_requests WHERE uri = ?`
	sqlDeleteFollowByPair        = `DELETE FROM follows WHERE account_id = ? AND target_account_id = ?`
	sqlDeleteFollowRequestByPair = `DELETE FROM follow_requests WHERE account_id = ? AND target_account_id = ?`
	sqlDeleteFollowByURI         = `DELETE FROM follows WHERE uri = ?`
)

func (db *DB) UpsertFollow(follow *domain.Follow) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertFollow, follow.Id.String(), follow.AccountId.String(),
			follow.TargetAccountId.String(), follow.URI, follow.CreatedAt)
		return err
	})
}

func (db *DB) UpsertFollowRequest(req *domain.FollowRequest) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertFollowRequest, req.Id.String(), req.AccountId.String(),
			req.TargetAccountId.String(), req.URI, req.CreatedAt)
		return err
	})
}

func (db *DB) ReadFollowByAccountIds(accountId, targetAccountId uuid.UUID) (error, *domain.Follow) {
	row := db.db.QueryRow(sqlSelectFollowByPair, accountId.String(), targetAccountId.String())
	return scanFollow(row)
}

func (db *DB) ReadFollowRequestByAccountIds(accountId, targetAccountId uuid.UUID) (error, *domain.FollowRequest) {
	row := db.db.QueryRow(sqlSelectFollowRequestByPair, accountId.String(), targetAccountId.String())
	return scanFollowRequest(row)
}

func (db *DB) ReadFollowByURI(uri string) (error, *domain.Follow) {
	row := db.db.QueryRow(sqlSelectFollowByURI, uri)
	return scanFollow(row)
}

func (db *DB) ReadFollowRequestByURI(uri string) (error, *domain.FollowRequest) {
	row := db.db.QueryRow(sqlSelectFollowRequestByURI, uri)
	return scanFollowRequest(row)
}

func (db *DB) DeleteFollowByAccountIds(accountId, targetAccountId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowByPair, accountId.String(), targetAccountId.String())
		return err
	})
}

func (db *DB) DeleteFollowRequestByAccountIds(accountId, targetAccountId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowRequestByPair, accountId.String(), targetAccountId.String())
		return err
	})
}

func (db *DB) DeleteFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowByURI, uri)
		return err
	})
}

func scanFollow(row rowScanner) (error, *domain.Follow) {
	var follow domain.Follow
	err := row.Scan(&follow.Id, &follow.AccountId, &follow.TargetAccountId, &follow.URI, &follow.CreatedAt)
	if err != nil {
		return err, nil
	}
	return nil, &follow
}

func scanFollowRequest(row rowScanner) (error, *domain.FollowRequest) {
	var req domain.FollowRequest
	err := row.Scan(&req.Id, &req.AccountId, &req.TargetAccountId, &req.URI, &req.CreatedAt)
	if err != nil {
		return err, nil
	}
	return nil, &req
}

func (db *DB) readFollowRows(query string, args ...any) (error, *[]domain.Follow) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var follows []domain.Follow
	for rows.Next() {
		var follow domain.Follow
		if err := rows.Scan(&follow.Id, &follow.AccountId, &follow.TargetAccountId, &follow.URI, &follow.CreatedAt); err != nil {
			return err, nil
		}
		follows = append(follows, follow)
	}
	if err := rows.Err(); err != nil {
		return err, &follows
	}
	return nil, &follows
}

// ReadPendingFollowRequests lists all follow requests targeting local
// accounts, for the moderation queue.
func (db *DB) ReadPendingFollowRequests() (error, *[]domain.FollowRequest) {
	rows, err := db.db.Query(`SELECT fr.id, fr.account_id, fr.target_account_id, fr.uri, fr.created_at
		FROM follow_requests fr
		INNER JOIN accounts ON accounts.id = fr.target_account_id
		WHERE accounts.domain = ''
		ORDER BY fr.created_at ASC`)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var reqs []domain.FollowRequest
	for rows.Next() {
		var req domain.FollowRequest
		if err := rows.Scan(&req.Id, &req.AccountId, &req.TargetAccountId, &req.URI, &req.CreatedAt); err != nil {
			return err, nil
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return err, &reqs
	}
	return nil, &reqs
}

// PromoteFollowRequest turns a pending request into an active follow,
// keeping the request's URI as the edge identity.
func (db *DB) PromoteFollowRequest(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		var req domain.FollowRequest
		row := tx.QueryRow(`SELECT id, account_id, target_account_id, uri, created_at FROM follow_requests WHERE id = ?`, id.String())
		if err := row.Scan(&req.Id, &req.AccountId, &req.TargetAccountId, &req.URI, &req.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(sqlUpsertFollow, uuid.New().String(), req.AccountId.String(),
			req.TargetAccountId.String(), req.URI, time.Now())
		if err != nil {
			return err
		}
		_, err = tx.Exec(`DELETE FROM follow_requests WHERE id = ?`, id.String())
		return err
	})
}

// DeleteFollowRequestById removes a pending request (moderation reject).
func (db *DB) DeleteFollowRequestById(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM follow_requests WHERE id = ?`, id.String())
		return err
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
