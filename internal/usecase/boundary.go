package usecase

import (
	"fmt"
	"sort"
	"strings"

	"argus/internal/config"
	"argus/internal/domain"
)

// BoundaryGuard masks sensitive fields and derives the evidence refs a case
// may cite. Everything downstream sees only its output.
type BoundaryGuard struct {
	required  map[string]bool
	sensitive map[string]bool
}

func NewBoundaryGuard(rules config.Rules) *BoundaryGuard {
	required := make(map[string]bool, len(rules.RequiredAlertFields))
	for _, f := range rules.RequiredAlertFields {
		required[strings.ToLower(f)] = true
	}
	sensitive := make(map[string]bool, len(rules.SensitiveFields))
	for _, f := range rules.SensitiveFields {
		sensitive[strings.ToLower(f)] = true
	}
	return &BoundaryGuard{required: required, sensitive: sensitive}
}

// Apply returns a masked copy of the alert plus the derived evidence refs.
// Masking is total: a sensitive field becomes the fixed placeholder, never a
// partial redaction. A missing required field fails with BoundaryViolation.
func (g *BoundaryGuard) Apply(alert domain.AlertRecord) (domain.AlertRecord, []string, error) {
	if err := g.checkRequired(alert); err != nil {
		return domain.AlertRecord{}, nil, err
	}

	masked := alert
	masked.Customer = g.maskCustomer(alert.Customer)
	masked.Transactions = make([]domain.Transaction, len(alert.Transactions))
	copy(masked.Transactions, alert.Transactions)

	refs := make([]string, 0, len(alert.Transactions)+2)
	for _, txn := range alert.Transactions {
		if strings.TrimSpace(txn.TransactionID) == "" {
			return domain.AlertRecord{}, nil, &domain.BoundaryViolation{
				Field:  "transactions",
				Reason: "transaction with empty identifier",
			}
		}
		refs = append(refs, evidenceRefForTxn(txn.TransactionID))
	}
	refs = append(refs, evidenceRefForAlert(alert.AlertID))
	refs = append(refs, domain.EvidenceRefCustomerProfile)
	sort.Strings(refs)
	refs = dedupe(refs)

	return masked, refs, nil
}

func (g *BoundaryGuard) checkRequired(alert domain.AlertRecord) error {
	missing := func(field string) error {
		return &domain.BoundaryViolation{Field: field, Reason: "required field absent"}
	}
	if g.required["alert_id"] && strings.TrimSpace(alert.AlertID) == "" {
		return missing("alert_id")
	}
	if g.required["account_id"] && strings.TrimSpace(alert.AccountID) == "" {
		return missing("account_id")
	}
	if g.required["customer_name"] && strings.TrimSpace(alert.Customer.Name) == "" {
		return missing("customer_name")
	}
	if g.required["transactions"] && len(alert.Transactions) == 0 {
		return missing("transactions")
	}
	return nil
}

func (g *BoundaryGuard) maskCustomer(c domain.CustomerProfile) domain.CustomerProfile {
	out := c
	if g.sensitive["name"] || g.sensitive["customer_name"] {
		out.Name = maskValue(c.Name)
	}
	if g.sensitive["customer_id"] {
		out.CustomerID = maskValue(c.CustomerID)
	}
	if g.sensitive["account_number"] {
		out.AccountNumber = maskValue(c.AccountNumber)
	}
	if g.sensitive["ssn"] {
		out.SSN = maskValue(c.SSN)
	}
	if g.sensitive["address"] {
		out.Address = maskValue(c.Address)
	}
	if g.sensitive["email"] {
		out.Email = maskValue(c.Email)
	}
	if g.sensitive["phone"] {
		out.Phone = maskValue(c.Phone)
	}
	if g.sensitive["dob"] {
		out.DateOfBirth = maskValue(c.DateOfBirth)
	}
	out.PEPFlags = append([]string(nil), c.PEPFlags...)
	return out
}

// MaskPayload walks an audit payload and masks any key matching a sensitive
// field name. Applied before anything is persisted to the ledger.
func (g *BoundaryGuard) MaskPayload(payload map[string]any) map[string]any {
	out, _ := g.maskAny(payload).(map[string]any)
	return out
}

func (g *BoundaryGuard) maskAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if g.sensitive[strings.ToLower(k)] {
				out[k] = domain.MaskedPlaceholder
			} else {
				out[k] = g.maskAny(inner)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = g.maskAny(inner)
		}
		return out
	default:
		return v
	}
}

func maskValue(v string) string {
	if v == "" {
		return ""
	}
	return domain.MaskedPlaceholder
}

func evidenceRefForTxn(id string) string {
	return "txn:" + id
}

func evidenceRefForAlert(id string) string {
	return "alert:" + id
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}

// Rescope shrinks a case's evidence boundary to keep. Growing the boundary is
// refused: refs are fixed at creation and only shrink via this explicit path.
func Rescope(c *domain.Case, keep []string) error {
	for _, ref := range keep {
		if !c.PermitsEvidence(ref) {
			return &domain.BoundaryViolation{
				Field:  "evidence_refs",
				Reason: fmt.Sprintf("ref %q not inside the existing boundary", ref),
			}
		}
	}
	sorted := append([]string(nil), keep...)
	sort.Strings(sorted)
	c.EvidenceRefs = dedupe(sorted)
	return nil
}
