package usecase

import (
	"sort"
	"testing"

	"argus/internal/domain"
)

func TestBoundaryMasksSensitiveFieldsCompletely(t *testing.T) {
	guard := NewBoundaryGuard(testRules())
	alert := sampleAlert()

	masked, refs, err := guard.Apply(alert)
	if err != nil {
		t.Fatalf("apply boundary: %v", err)
	}

	customer := masked.Customer
	for field, value := range map[string]string{
		"name":           customer.Name,
		"ssn":            customer.SSN,
		"account_number": customer.AccountNumber,
		"address":        customer.Address,
		"email":          customer.Email,
		"phone":          customer.Phone,
		"dob":            customer.DateOfBirth,
	} {
		if value != domain.MaskedPlaceholder {
			t.Fatalf("field %s not fully masked: %q", field, value)
		}
	}
	if alert.Customer.SSN != "123-45-6789" {
		t.Fatal("input alert mutated by masking")
	}

	if !sort.StringsAreSorted(refs) {
		t.Fatalf("evidence refs not sorted: %v", refs)
	}
	want := map[string]bool{
		"alert:ALERT-1001": true,
		"profile:customer": true,
		"txn:T-1":          true,
		"txn:T-2":          true,
		"txn:T-3":          true,
	}
	if len(refs) != len(want) {
		t.Fatalf("unexpected ref count: %v", refs)
	}
	for _, ref := range refs {
		if !want[ref] {
			t.Fatalf("unexpected evidence ref %q", ref)
		}
	}
}

func TestBoundaryRejectsMissingRequiredField(t *testing.T) {
	guard := NewBoundaryGuard(testRules())
	alert := sampleAlert()
	alert.AccountID = "  "

	_, _, err := guard.Apply(alert)
	if !domain.IsBoundaryViolation(err) {
		t.Fatalf("expected boundary violation, got %v", err)
	}
}

func TestBoundaryRejectsTransactionWithoutID(t *testing.T) {
	guard := NewBoundaryGuard(testRules())
	alert := sampleAlert()
	alert.Transactions[1].TransactionID = ""

	_, _, err := guard.Apply(alert)
	if !domain.IsBoundaryViolation(err) {
		t.Fatalf("expected boundary violation, got %v", err)
	}
}

func TestMaskPayloadWalksNestedValues(t *testing.T) {
	guard := NewBoundaryGuard(testRules())
	payload := map[string]any{
		"ssn":    "123-45-6789",
		"amount": 9500.0,
		"customer": map[string]any{
			"name":  "Jordan Avery",
			"notes": []any{map[string]any{"email": "jordan@example.com"}},
		},
	}

	masked := guard.MaskPayload(payload)
	if masked["ssn"] != domain.MaskedPlaceholder {
		t.Fatalf("top-level ssn not masked: %v", masked["ssn"])
	}
	if masked["amount"] != 9500.0 {
		t.Fatal("non-sensitive value altered")
	}
	customer := masked["customer"].(map[string]any)
	if customer["name"] != domain.MaskedPlaceholder {
		t.Fatalf("nested name not masked: %v", customer["name"])
	}
	note := customer["notes"].([]any)[0].(map[string]any)
	if note["email"] != domain.MaskedPlaceholder {
		t.Fatalf("email inside list not masked: %v", note["email"])
	}
	if payload["ssn"] != "123-45-6789" {
		t.Fatal("input payload mutated")
	}
}

func TestRescopeOnlyShrinks(t *testing.T) {
	c := draftCase("case-rescope")

	if err := Rescope(&c, []string{"txn:T-1", "profile:customer"}); err != nil {
		t.Fatalf("shrink rescope: %v", err)
	}
	if len(c.EvidenceRefs) != 2 {
		t.Fatalf("unexpected refs after rescope: %v", c.EvidenceRefs)
	}

	err := Rescope(&c, []string{"txn:T-1", "txn:T-9"})
	if !domain.IsBoundaryViolation(err) {
		t.Fatalf("expected boundary violation growing the scope, got %v", err)
	}
	if len(c.EvidenceRefs) != 2 {
		t.Fatalf("failed rescope mutated refs: %v", c.EvidenceRefs)
	}
}
