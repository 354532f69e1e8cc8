package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"argus/internal/domain"
)

// CaseRepository stores every case version as an immutable snapshot row.
// Commit serializes on the case head row, so the version plus its audit
// record land in one transaction or not at all.
type CaseRepository struct {
	db *gorm.DB
}

func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

func (r *CaseRepository) CreateCase(ctx context.Context, c domain.Case, rec domain.AuditRecord) (domain.Case, domain.AuditRecord, error) {
	if r.db == nil {
		return domain.Case{}, domain.AuditRecord{}, errDBUnavailable
	}
	c.Version = 0
	var outRec domain.AuditRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		head := CaseHeadModel{
			CaseID:    c.ID,
			Version:   0,
			Status:    string(c.Status),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&head).Error; err != nil {
			return err
		}
		version, err := versionModelFromDomain(c)
		if err != nil {
			return err
		}
		if err := tx.Create(&version).Error; err != nil {
			return err
		}
		rec.CaseID = c.ID
		rec.CaseVersion = 0
		chained, err := appendRecordTx(ctx, tx, rec)
		if err != nil {
			return err
		}
		outRec = chained
		return nil
	})
	if err != nil {
		return domain.Case{}, domain.AuditRecord{}, err
	}
	return c, outRec, nil
}

func (r *CaseRepository) Commit(ctx context.Context, c domain.Case, expectedVersion int64, rec domain.AuditRecord) (domain.Case, domain.AuditRecord, error) {
	if r.db == nil {
		return domain.Case{}, domain.AuditRecord{}, errDBUnavailable
	}
	var outRec domain.AuditRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head CaseHeadModel
		if err := tx.Raw(
			"SELECT case_id, version, status, created_at, updated_at FROM case_heads WHERE case_id = ? FOR UPDATE",
			c.ID,
		).Scan(&head).Error; err != nil {
			return err
		}
		if head.CaseID == "" {
			return domain.ErrNotFound
		}
		if domain.CaseStatus(head.Status).Terminal() {
			return domain.ErrCaseFinalized
		}
		if head.Version != expectedVersion {
			return &domain.StaleVersion{CaseID: c.ID, Expected: expectedVersion, Actual: head.Version}
		}

		c.Version = expectedVersion + 1
		version, err := versionModelFromDomain(c)
		if err != nil {
			return err
		}
		if err := tx.Create(&version).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			"UPDATE case_heads SET version = ?, status = ?, updated_at = ? WHERE case_id = ?",
			c.Version, string(c.Status), time.Now().UTC(), c.ID,
		).Error; err != nil {
			return err
		}
		rec.CaseID = c.ID
		rec.CaseVersion = c.Version
		chained, err := appendRecordTx(ctx, tx, rec)
		if err != nil {
			return err
		}
		outRec = chained
		return nil
	})
	if err != nil {
		return domain.Case{}, domain.AuditRecord{}, err
	}
	return c, outRec, nil
}

func (r *CaseRepository) GetCase(ctx context.Context, caseID string) (domain.Case, error) {
	if r.db == nil {
		return domain.Case{}, errDBUnavailable
	}
	var model CaseVersionModel
	err := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("version DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Case{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Case{}, err
	}
	return caseFromModel(model)
}

func (r *CaseRepository) GetCaseVersion(ctx context.Context, caseID string, version int64) (domain.Case, error) {
	if r.db == nil {
		return domain.Case{}, errDBUnavailable
	}
	var model CaseVersionModel
	err := r.db.WithContext(ctx).
		Where("case_id = ? AND version = ?", caseID, version).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&CaseHeadModel{}).
			Where("case_id = ?", caseID).
			Count(&count).Error; err != nil {
			return domain.Case{}, err
		}
		if count == 0 {
			return domain.Case{}, domain.ErrNotFound
		}
		return domain.Case{}, domain.ErrVersionNotFound
	}
	if err != nil {
		return domain.Case{}, err
	}
	return caseFromModel(model)
}

func (r *CaseRepository) ListCases(ctx context.Context) ([]domain.CaseSummary, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var heads []CaseHeadModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, case_id ASC").
		Find(&heads).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CaseSummary, 0, len(heads))
	for _, head := range heads {
		var model CaseVersionModel
		if err := r.db.WithContext(ctx).
			Where("case_id = ? AND version = ?", head.CaseID, head.Version).
			Take(&model).Error; err != nil {
			return nil, err
		}
		summary := domain.CaseSummary{
			ID:        head.CaseID,
			Status:    domain.CaseStatus(head.Status),
			Version:   head.Version,
			CreatedAt: head.CreatedAt.UTC(),
		}
		if model.RiskLevel != nil {
			summary.RiskLevel = domain.RiskLevel(*model.RiskLevel)
		}
		if model.RiskScore != nil {
			summary.RiskScore = *model.RiskScore
		}
		out = append(out, summary)
	}
	return out, nil
}

func versionModelFromDomain(c domain.Case) (CaseVersionModel, error) {
	stateJSON, err := json.Marshal(c)
	if err != nil {
		return CaseVersionModel{}, err
	}
	model := CaseVersionModel{
		CaseID:    c.ID,
		Version:   c.Version,
		Status:    string(c.Status),
		StateJSON: stateJSON,
		CreatedAt: time.Now().UTC(),
	}
	if c.Risk != nil {
		level := string(c.Risk.Level)
		score := c.Risk.Score
		model.RiskLevel = &level
		model.RiskScore = &score
	}
	return model, nil
}

func caseFromModel(model CaseVersionModel) (domain.Case, error) {
	var c domain.Case
	if err := json.Unmarshal(model.StateJSON, &c); err != nil {
		return domain.Case{}, err
	}
	return c, nil
}
