package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"argus/internal/domain"
)

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ZeroHash is the chain anchor preceding the first ledger record.
func ZeroHash() string { return zeroHash }

// HashPayload canonicalizes and hashes an audit payload. encoding/json sorts
// map keys, so the digest is stable for identical payloads.
func HashPayload(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return sha256Hex(raw), nil
}

// chainEnvelope fixes the field set and order that a record hash covers.
// Struct field order is the canonical serialization order.
type chainEnvelope struct {
	Version     string `json:"v"`
	Seq         int64  `json:"seq"`
	CaseID      string `json:"case_id"`
	CaseVersion int64  `json:"case_version"`
	Actor       string `json:"actor"`
	Action      string `json:"action"`
	Result      string `json:"result"`
	PayloadHash string `json:"payload_hash"`
	PrevHash    string `json:"prev_hash"`
	CreatedAt   string `json:"created_at"`
}

// HashRecord computes the chain hash for a record whose Seq, PayloadHash and
// PrevHash are already assigned.
func HashRecord(rec domain.AuditRecord) (string, error) {
	if rec.Action == "" || rec.Result == "" {
		return "", fmt.Errorf("audit record missing action or result")
	}
	if rec.PayloadHash == "" || rec.PrevHash == "" {
		return "", fmt.Errorf("audit record missing payload_hash or prev_hash")
	}
	env := chainEnvelope{
		Version:     domain.AuditChainVersion,
		Seq:         rec.Seq,
		CaseID:      rec.CaseID,
		CaseVersion: rec.CaseVersion,
		Actor:       rec.Actor,
		Action:      string(rec.Action),
		Result:      string(rec.Result),
		PayloadHash: rec.PayloadHash,
		PrevHash:    rec.PrevHash,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return sha256Hex(raw), nil
}

// VerifyLedgerChain walks the whole ledger and checks that sequence numbers
// are contiguous from 1 and that every payload hash, prev-hash link and
// record hash verifies. Any mutation or reorder after the fact breaks the
// chain.
func VerifyLedgerChain(ctx context.Context, ledger AuditLedger) error {
	records, err := ledger.ListRange(ctx, 0, 0)
	if err != nil {
		return err
	}
	expectedSeq := int64(1)
	prevHash := zeroHash
	for _, rec := range records {
		if rec.Seq != expectedSeq {
			return fmt.Errorf("ledger seq mismatch: expected %d got %d", expectedSeq, rec.Seq)
		}
		if rec.PrevHash != prevHash {
			return fmt.Errorf("ledger prev hash mismatch at seq %d", rec.Seq)
		}
		payloadHash, err := HashPayload(rec.Payload)
		if err != nil {
			return fmt.Errorf("ledger payload hash failed at seq %d: %w", rec.Seq, err)
		}
		if payloadHash != rec.PayloadHash {
			return fmt.Errorf("ledger payload hash mismatch at seq %d", rec.Seq)
		}
		if rec.CreatedAt.IsZero() {
			return fmt.Errorf("ledger record missing created_at at seq %d", rec.Seq)
		}
		recordHash, err := HashRecord(rec)
		if err != nil {
			return fmt.Errorf("ledger record hash failed at seq %d: %w", rec.Seq, err)
		}
		if recordHash != rec.RecordHash {
			return fmt.Errorf("ledger record hash mismatch at seq %d", rec.Seq)
		}
		prevHash = rec.RecordHash
		expectedSeq++
	}
	return nil
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
