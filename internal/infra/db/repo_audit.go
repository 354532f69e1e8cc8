package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"argus/internal/domain"
	"argus/internal/usecase"
)

// AuditRepository is the Postgres ledger. Sequence numbers come from a
// single-row allocator locked FOR UPDATE inside the append transaction, so
// they are strictly increasing and gap-free.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, rec domain.AuditRecord) (domain.AuditRecord, error) {
	if r.db == nil {
		return domain.AuditRecord{}, errDBUnavailable
	}
	var out domain.AuditRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chained, err := appendRecordTx(ctx, tx, rec)
		if err != nil {
			return err
		}
		out = chained
		return nil
	})
	if err != nil {
		return domain.AuditRecord{}, err
	}
	return out, nil
}

func (r *AuditRepository) ListByCase(ctx context.Context, caseID string) ([]domain.AuditRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditRecordModel
	if err := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return recordsFromModels(models)
}

func (r *AuditRepository) ListRange(ctx context.Context, fromSeq, toSeq int64) ([]domain.AuditRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).Order("seq ASC")
	if fromSeq > 0 {
		q = q.Where("seq >= ?", fromSeq)
	}
	if toSeq > 0 {
		q = q.Where("seq <= ?", toSeq)
	}
	var models []AuditRecordModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return recordsFromModels(models)
}

// appendRecordTx assigns the next sequence number, chains the record and
// inserts it. Callers run it inside a transaction.
func appendRecordTx(ctx context.Context, tx *gorm.DB, rec domain.AuditRecord) (domain.AuditRecord, error) {
	seq, prevHash, err := nextLedgerSeq(ctx, tx)
	if err != nil {
		return domain.AuditRecord{}, err
	}

	payloadHash, err := usecase.HashPayload(rec.Payload)
	if err != nil {
		return domain.AuditRecord{}, err
	}
	rec.Seq = seq
	rec.PayloadHash = payloadHash
	rec.PrevHash = prevHash
	rec.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	recordHash, err := usecase.HashRecord(rec)
	if err != nil {
		return domain.AuditRecord{}, err
	}
	rec.RecordHash = recordHash

	model, err := recordModelFromDomain(rec)
	if err != nil {
		return domain.AuditRecord{}, err
	}
	if err := tx.Create(&model).Error; err != nil {
		return domain.AuditRecord{}, err
	}
	if err := tx.Exec(
		"UPDATE ledger_seq SET seq = ?, head_hash = ? WHERE id = 1",
		rec.Seq, rec.RecordHash,
	).Error; err != nil {
		return domain.AuditRecord{}, err
	}
	return rec, nil
}

func nextLedgerSeq(ctx context.Context, tx *gorm.DB) (int64, string, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO ledger_seq (id, seq, head_hash) VALUES (1, 0, ?) ON CONFLICT (id) DO NOTHING",
		usecase.ZeroHash(),
	).Error; err != nil {
		return 0, "", err
	}

	var row LedgerSeqModel
	if err := tx.WithContext(ctx).Raw(
		"SELECT id, seq, head_hash FROM ledger_seq WHERE id = 1 FOR UPDATE",
	).Scan(&row).Error; err != nil {
		return 0, "", err
	}
	if row.HeadHash == "" {
		return 0, "", fmt.Errorf("ledger allocator missing head hash at seq %d", row.Seq)
	}
	return row.Seq + 1, row.HeadHash, nil
}

func recordModelFromDomain(rec domain.AuditRecord) (AuditRecordModel, error) {
	payload := rec.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return AuditRecordModel{}, err
	}
	return AuditRecordModel{
		Seq:         rec.Seq,
		CaseID:      rec.CaseID,
		CaseVersion: rec.CaseVersion,
		Actor:       rec.Actor,
		Action:      string(rec.Action),
		Result:      string(rec.Result),
		PayloadJSON: payloadJSON,
		PayloadHash: rec.PayloadHash,
		PrevHash:    rec.PrevHash,
		RecordHash:  rec.RecordHash,
		CreatedAt:   rec.CreatedAt.UTC(),
	}, nil
}

func recordsFromModels(models []AuditRecordModel) ([]domain.AuditRecord, error) {
	out := make([]domain.AuditRecord, 0, len(models))
	for _, model := range models {
		var payload map[string]any
		if err := json.Unmarshal(model.PayloadJSON, &payload); err != nil {
			return nil, err
		}
		out = append(out, domain.AuditRecord{
			Seq:         model.Seq,
			CaseID:      model.CaseID,
			CaseVersion: model.CaseVersion,
			Actor:       model.Actor,
			Action:      domain.AuditAction(model.Action),
			Result:      domain.AuditResult(model.Result),
			Payload:     payload,
			PayloadHash: model.PayloadHash,
			PrevHash:    model.PrevHash,
			RecordHash:  model.RecordHash,
			CreatedAt:   model.CreatedAt.UTC(),
		})
	}
	return out, nil
}
