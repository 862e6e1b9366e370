package domain

import (
	"time"

	"github.com/google/uuid"
)

// Device is an end-to-end encryption device registered by an account.
type Device struct {
	Id             uuid.UUID
	AccountId      uuid.UUID
	DeviceId       string
	Name           string
	IdentityKey    string
	FingerprintKey string
	CreatedAt      time.Time
}

// EncryptedMessage is an E2EE direct message delivery record, keyed by
// (DeviceId, MessageId). MessageFranking is the tamper-evident envelope
// minted by the server on receipt.
type EncryptedMessage struct {
	Id              uuid.UUID
	DeviceId        string
	MessageId       string
	AccountId       uuid.UUID // sender
	TargetAccountId uuid.UUID
	Type            string
	Body            string
	Digest          string
	MessageFranking string
	CreatedAt       time.Time
}
