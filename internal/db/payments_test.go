package db

import (
	"testing"
)

func newTestPayment(id string) PaymentRow {
	return PaymentRow{
		ID:         id,
		OrderID:    "order-42",
		Network:    "regtest",
		Sender:     "bcrt1qsender",
		Recipient:  "bcrt1qstore",
		AmountSats: 10000,
		State:      "PENDING_SUBMIT",
	}
}

func TestCreateAndGetPayment(t *testing.T) {
	d := setupTestDB(t)

	if err := d.CreatePayment(newTestPayment("pay-001")); err != nil {
		t.Fatalf("CreatePayment() error = %v", err)
	}

	p, err := d.GetPayment("pay-001")
	if err != nil {
		t.Fatalf("GetPayment() error = %v", err)
	}
	if p == nil {
		t.Fatal("expected payment, got nil")
	}
	if p.OrderID != "order-42" {
		t.Errorf("expected order order-42, got %s", p.OrderID)
	}
	if p.AmountSats != 10000 {
		t.Errorf("expected amount 10000, got %d", p.AmountSats)
	}
	if p.State != "PENDING_SUBMIT" {
		t.Errorf("expected state PENDING_SUBMIT, got %s", p.State)
	}
	if p.CreatedAt == "" {
		t.Error("expected created_at to be set")
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	d := setupTestDB(t)

	p, err := d.GetPayment("missing")
	if err != nil {
		t.Fatalf("GetPayment() error = %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for missing payment, got %+v", p)
	}
}

func TestUpdatePaymentStateRecordsTransition(t *testing.T) {
	d := setupTestDB(t)

	if err := d.CreatePayment(newTestPayment("pay-002")); err != nil {
		t.Fatalf("CreatePayment() error = %v", err)
	}

	if err := d.UpdatePaymentState("pay-002", "BROADCASTING", "", "", 350, 0); err != nil {
		t.Fatalf("UpdatePaymentState() error = %v", err)
	}
	if err := d.UpdatePaymentState("pay-002", "AWAITING_CONFIRMATION", "abc123", "", 0, 0); err != nil {
		t.Fatalf("UpdatePaymentState() error = %v", err)
	}
	if err := d.UpdatePaymentState("pay-002", "CONFIRMED", "", "", 0, 3); err != nil {
		t.Fatalf("UpdatePaymentState() error = %v", err)
	}

	p, err := d.GetPayment("pay-002")
	if err != nil {
		t.Fatalf("GetPayment() error = %v", err)
	}
	if p.State != "CONFIRMED" {
		t.Errorf("expected state CONFIRMED, got %s", p.State)
	}
	// Empty txHash must not clear the stored one.
	if p.TxHash != "abc123" {
		t.Errorf("expected tx hash abc123 to survive, got %q", p.TxHash)
	}
	// Zero feeSats must not clear the stored fee.
	if p.FeeSats != 350 {
		t.Errorf("expected fee 350 to survive, got %d", p.FeeSats)
	}
	if p.Confirmations != 3 {
		t.Errorf("expected 3 confirmations, got %d", p.Confirmations)
	}

	transitions, err := d.GetTransitions("pay-002")
	if err != nil {
		t.Fatalf("GetTransitions() error = %v", err)
	}
	if len(transitions) != 3 {
		t.Fatalf("expected 3 transitions, got %d", len(transitions))
	}
	if transitions[0].FromState != "PENDING_SUBMIT" || transitions[0].ToState != "BROADCASTING" {
		t.Errorf("unexpected first transition: %s -> %s", transitions[0].FromState, transitions[0].ToState)
	}
	if transitions[2].ToState != "CONFIRMED" {
		t.Errorf("expected last transition to CONFIRMED, got %s", transitions[2].ToState)
	}
}

func TestUpdatePaymentStateNotFound(t *testing.T) {
	d := setupTestDB(t)

	if err := d.UpdatePaymentState("missing", "FAILED", "", "boom", 0, 0); err == nil {
		t.Error("expected error updating missing payment")
	}
}

func TestGetPaymentByTxHash(t *testing.T) {
	d := setupTestDB(t)

	p := newTestPayment("pay-003")
	p.TxHash = "deadbeef"
	p.State = "AWAITING_CONFIRMATION"
	if err := d.CreatePayment(p); err != nil {
		t.Fatalf("CreatePayment() error = %v", err)
	}

	got, err := d.GetPaymentByTxHash("deadbeef")
	if err != nil {
		t.Fatalf("GetPaymentByTxHash() error = %v", err)
	}
	if got == nil || got.ID != "pay-003" {
		t.Fatalf("expected pay-003, got %+v", got)
	}
}

func TestGetUnsettledPayments(t *testing.T) {
	d := setupTestDB(t)

	states := map[string]string{
		"pay-a": "PENDING_SUBMIT",
		"pay-b": "AWAITING_CONFIRMATION",
		"pay-c": "CONFIRMED",
		"pay-d": "FAILED",
		"pay-e": "VERIFICATION_TIMEOUT",
	}
	for id, state := range states {
		p := newTestPayment(id)
		p.State = state
		if err := d.CreatePayment(p); err != nil {
			t.Fatalf("CreatePayment(%s) error = %v", id, err)
		}
	}

	unsettled, err := d.GetUnsettledPayments()
	if err != nil {
		t.Fatalf("GetUnsettledPayments() error = %v", err)
	}
	if len(unsettled) != 2 {
		t.Fatalf("expected 2 unsettled payments, got %d", len(unsettled))
	}
	for _, p := range unsettled {
		if p.State == "CONFIRMED" || p.State == "FAILED" || p.State == "VERIFICATION_TIMEOUT" {
			t.Errorf("terminal payment %s returned as unsettled", p.ID)
		}
	}
}
