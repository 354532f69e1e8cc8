package domain

import "time"

// AlertRecord is the normalized alert supplied by the ingest collaborator.
// The engine never sees raw alert payloads; parsing happens upstream.
type AlertRecord struct {
	AlertID      string
	AccountID    string
	Customer     CustomerProfile
	Transactions []Transaction
	RiskRating   string
	Description  string
	ReceivedAt   time.Time
}

type CustomerProfile struct {
	Name          string
	CustomerID    string
	AccountNumber string
	SSN           string
	Address       string
	Email         string
	Phone         string
	DateOfBirth   string
	PEPFlags      []string
}

type TxnDirection string

const (
	TxnDirectionIn  TxnDirection = "in"
	TxnDirectionOut TxnDirection = "out"
)

type Transaction struct {
	TransactionID string
	Amount        float64
	Currency      string
	Direction     TxnDirection
	Counterparty  string
	Country       string
	Timestamp     time.Time
}

// MaskedPlaceholder replaces every sensitive field value in full. Masking is
// total: no prefix or suffix of the original value survives.
const MaskedPlaceholder = "[REDACTED]"

// EvidenceRefCustomerProfile identifies the masked customer profile as a
// citable evidence item.
const EvidenceRefCustomerProfile = "profile:customer"
