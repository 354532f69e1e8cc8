package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrVersionNotFound   = errors.New("version not found")
	ErrCaseFinalized     = errors.New("case finalized")
	ErrLockTimeout       = errors.New("case lock timeout")
	ErrLedgerUnavailable = errors.New("audit ledger unavailable")
)

// BoundaryViolation reports evidence outside the permitted scope or a
// malformed/missing ingest field. It carries enough detail to be actionable
// without exposing raw values.
type BoundaryViolation struct {
	Field  string
	Reason string
}

func (e *BoundaryViolation) Error() string {
	return fmt.Sprintf("boundary violation on %q: %s", e.Field, e.Reason)
}

// InvalidTransition reports a refused workflow action. No mutation happened.
type InvalidTransition struct {
	From   CaseStatus
	Action ReviewAction
	Reason string
}

func (e *InvalidTransition) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid transition: %s from %s", e.Action, e.From)
	}
	return fmt.Sprintf("invalid transition: %s from %s: %s", e.Action, e.From, e.Reason)
}

// StaleVersion reports a concurrent modification detected by the optimistic
// recheck. The caller must reload the case and retry.
type StaleVersion struct {
	CaseID   string
	Expected int64
	Actual   int64
}

func (e *StaleVersion) Error() string {
	return fmt.Sprintf("stale version on case %s: expected %d, found %d", e.CaseID, e.Expected, e.Actual)
}

// ConfigError is fatal at startup: the engine must not serve requests with an
// inconsistent rule or weight set.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error on %q: %s", e.Key, e.Reason)
}

func IsBoundaryViolation(err error) bool {
	var bv *BoundaryViolation
	return errors.As(err, &bv)
}

func IsInvalidTransition(err error) bool {
	var it *InvalidTransition
	return errors.As(err, &it)
}

func IsStaleVersion(err error) bool {
	var sv *StaleVersion
	return errors.As(err, &sv)
}
