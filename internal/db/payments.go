package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// PaymentRow represents a row in the payments table.
type PaymentRow struct {
	ID            string
	OrderID       string
	Network       string
	Sender        string
	Recipient     string
	AmountSats    int64
	FeeSats       int64
	TxHash        string
	State         string
	Confirmations int64
	Error         string
	CreatedAt     string
	UpdatedAt     string
}

// TransitionRow represents a row in the payment_transitions audit table.
type TransitionRow struct {
	ID        int64
	PaymentID string
	FromState string
	ToState   string
	Detail    string
	CreatedAt string
}

// CreatePayment inserts a new payment attempt.
func (d *DB) CreatePayment(p PaymentRow) error {
	slog.Debug("creating payment",
		"id", p.ID,
		"orderID", p.OrderID,
		"network", p.Network,
		"sender", p.Sender,
		"recipient", p.Recipient,
		"amountSats", p.AmountSats,
		"state", p.State,
	)

	_, err := d.conn.Exec(
		`INSERT INTO payments (id, order_id, network, sender, recipient, amount_sats, fee_sats, tx_hash, state, confirmations, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.OrderID,
		p.Network,
		p.Sender,
		p.Recipient,
		p.AmountSats,
		p.FeeSats,
		p.TxHash,
		p.State,
		p.Confirmations,
		p.Error,
	)
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", p.ID, err)
	}

	slog.Info("payment created",
		"id", p.ID,
		"network", p.Network,
		"amountSats", p.AmountSats,
		"state", p.State,
	)

	return nil
}

// UpdatePaymentState moves a payment to a new state and appends the
// transition to the audit log in the same transaction. txHash and feeSats
// only overwrite when non-empty / non-zero.
func (d *DB) UpdatePaymentState(id, state, txHash, payError string, feeSats, confirmations int64) error {
	slog.Debug("updating payment state",
		"id", id,
		"state", state,
		"txHash", txHash,
		"confirmations", confirmations,
		"error", payError,
	)

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin payment update %s: %w", id, err)
	}
	defer tx.Rollback()

	var prev string
	err = tx.QueryRow(`SELECT state FROM payments WHERE id = ?`, id).Scan(&prev)
	if err == sql.ErrNoRows {
		return fmt.Errorf("update payment %s: not found", id)
	}
	if err != nil {
		return fmt.Errorf("read payment state %s: %w", id, err)
	}

	if _, err := tx.Exec(
		`UPDATE payments
		 SET state = ?,
		     tx_hash = COALESCE(NULLIF(?, ''), tx_hash),
		     fee_sats = CASE WHEN ? > 0 THEN ? ELSE fee_sats END,
		     confirmations = ?,
		     error = ?,
		     updated_at = datetime('now')
		 WHERE id = ?`,
		state, txHash, feeSats, feeSats, confirmations, payError, id,
	); err != nil {
		return fmt.Errorf("update payment %s: %w", id, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO payment_transitions (payment_id, from_state, to_state, detail)
		 VALUES (?, ?, ?, ?)`,
		id, prev, state, payError,
	); err != nil {
		return fmt.Errorf("record payment transition %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment update %s: %w", id, err)
	}

	slog.Info("payment state updated",
		"id", id,
		"fromState", prev,
		"toState", state,
	)

	return nil
}

// GetPayment returns a payment attempt by ID. Returns nil if not found.
func (d *DB) GetPayment(id string) (*PaymentRow, error) {
	row := d.conn.QueryRow(
		paymentSelect+` WHERE id = ?`, id,
	)
	return scanPaymentRow(row)
}

// GetPaymentByTxHash returns the most recent payment attempt carrying the
// given transaction hash. Returns nil if not found.
func (d *DB) GetPaymentByTxHash(txHash string) (*PaymentRow, error) {
	row := d.conn.QueryRow(
		paymentSelect+` WHERE tx_hash = ? ORDER BY created_at DESC LIMIT 1`, txHash,
	)
	return scanPaymentRow(row)
}

// GetUnsettledPayments returns payments whose state is not terminal, oldest
// first. These are the attempts a restarted process should resume watching.
func (d *DB) GetUnsettledPayments() ([]PaymentRow, error) {
	rows, err := d.conn.Query(
		paymentSelect + ` WHERE state IN ('PENDING_SUBMIT', 'BROADCASTING', 'AWAITING_CONFIRMATION')
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unsettled payments: %w", err)
	}
	defer rows.Close()

	return scanPaymentRows(rows)
}

// GetTransitions returns the full transition history for a payment, oldest
// first.
func (d *DB) GetTransitions(paymentID string) ([]TransitionRow, error) {
	rows, err := d.conn.Query(
		`SELECT id, payment_id, from_state, to_state, detail, created_at
		 FROM payment_transitions
		 WHERE payment_id = ?
		 ORDER BY id ASC`,
		paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions for %s: %w", paymentID, err)
	}
	defer rows.Close()

	var results []TransitionRow
	for rows.Next() {
		var t TransitionRow
		if err := rows.Scan(&t.ID, &t.PaymentID, &t.FromState, &t.ToState, &t.Detail, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		results = append(results, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition rows: %w", err)
	}

	return results, nil
}

const paymentSelect = `SELECT id, COALESCE(order_id, '') as order_id, network, sender, recipient,
        amount_sats, fee_sats, COALESCE(tx_hash, '') as tx_hash, state, confirmations,
        COALESCE(error, '') as error, created_at, updated_at
 FROM payments`

func scanPaymentRow(row *sql.Row) (*PaymentRow, error) {
	var p PaymentRow
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Network, &p.Sender, &p.Recipient,
		&p.AmountSats, &p.FeeSats, &p.TxHash, &p.State, &p.Confirmations,
		&p.Error, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment row: %w", err)
	}
	return &p, nil
}

func scanPaymentRows(rows *sql.Rows) ([]PaymentRow, error) {
	var results []PaymentRow
	for rows.Next() {
		var p PaymentRow
		if err := rows.Scan(
			&p.ID, &p.OrderID, &p.Network, &p.Sender, &p.Recipient,
			&p.AmountSats, &p.FeeSats, &p.TxHash, &p.State, &p.Confirmations,
			&p.Error, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		results = append(results, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return results, nil
}
