package db

import "time"

// CaseHeadModel tracks the current version per case. Commits take a row
// lock on it so version assignment is serialized.
type CaseHeadModel struct {
	CaseID    string    `gorm:"type:uuid;primaryKey"`
	Version   int64     `gorm:"not null"`
	Status    string    `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (CaseHeadModel) TableName() string { return "case_heads" }

// CaseVersionModel is one immutable snapshot of a case. Rows are only ever
// inserted.
type CaseVersionModel struct {
	ID        int64  `gorm:"primaryKey"`
	CaseID    string `gorm:"type:uuid;index:idx_case_version,unique,priority:1;not null"`
	Version   int64  `gorm:"index:idx_case_version,unique,priority:2;not null"`
	Status    string `gorm:"not null"`
	RiskLevel *string
	RiskScore *float64
	StateJSON []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (CaseVersionModel) TableName() string { return "case_versions" }

// AuditRecordModel is append-only. No update or delete path exists in this
// package.
type AuditRecordModel struct {
	Seq         int64     `gorm:"primaryKey;autoIncrement:false"`
	CaseID      string    `gorm:"type:uuid;index;not null"`
	CaseVersion int64     `gorm:"not null"`
	Actor       string    `gorm:"not null"`
	Action      string    `gorm:"index;not null"`
	Result      string    `gorm:"not null"`
	PayloadJSON []byte    `gorm:"type:jsonb;not null"`
	PayloadHash string    `gorm:"not null"`
	PrevHash    string    `gorm:"not null"`
	RecordHash  string    `gorm:"uniqueIndex;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (AuditRecordModel) TableName() string { return "audit_records" }

// LedgerSeqModel is the single-row sequence allocator for the audit ledger.
type LedgerSeqModel struct {
	ID       int64  `gorm:"primaryKey"`
	Seq      int64  `gorm:"not null"`
	HeadHash string `gorm:"not null"`
}

func (LedgerSeqModel) TableName() string { return "ledger_seq" }
