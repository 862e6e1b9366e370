package domain

import (
	"time"

	"github.com/google/uuid"
)

// Report is a moderation report (Flag activity). URI is the idempotency
// key; when the inbound activity omits one, a deterministic local id is
// minted instead.
type Report struct {
	Id              uuid.UUID
	AccountId       uuid.UUID // reporter
	TargetAccountId uuid.UUID
	StatusIds       []uuid.UUID
	Comment         string
	URI             string
	Resolved        bool
	CreatedAt       time.Time
}
