package models

// PaymentState is the lifecycle state of a payment attempt.
type PaymentState string

const (
	StatePendingSubmit        PaymentState = "PENDING_SUBMIT"
	StateBroadcasting         PaymentState = "BROADCASTING"
	StateAwaitingConfirmation PaymentState = "AWAITING_CONFIRMATION"
	StateConfirmed            PaymentState = "CONFIRMED"
	StateFailed               PaymentState = "FAILED"
	StateVerificationTimeout  PaymentState = "VERIFICATION_TIMEOUT"
)

// Terminal reports whether the state admits no further verifier transitions.
// VERIFICATION_TIMEOUT is terminal for the verifier but not for the payment:
// the transaction may still confirm later, and a manual re-check can move
// the attempt to CONFIRMED.
func (s PaymentState) Terminal() bool {
	switch s {
	case StateConfirmed, StateFailed, StateVerificationTimeout:
		return true
	}
	return false
}

// UTXO is a snapshot of one spendable output at fetch time. It is never
// reused across transaction builds; the builder re-fetches before every
// selection to avoid picking outputs an earlier broadcast already spent.
type UTXO struct {
	TxID        string `json:"txid"`
	Vout        uint32 `json:"vout"`
	ValueSats   int64  `json:"valueSats"`
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"blockHeight,omitempty"`
}

// Balance is the net balance of an address, split the way Esplora reports it.
type Balance struct {
	ConfirmedSats   int64 `json:"confirmedSats"`
	UnconfirmedSats int64 `json:"unconfirmedSats"`
}

// TotalSats returns confirmed plus unconfirmed net balance.
func (b Balance) TotalSats() int64 {
	return b.ConfirmedSats + b.UnconfirmedSats
}

// TxStatus is the confirmation status of a broadcast transaction.
type TxStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"blockHeight,omitempty"`
}

// ChainTx is one entry of an address's on-chain history.
type ChainTx struct {
	TxID          string `json:"txid"`
	Direction     string `json:"direction"` // "incoming" or "outgoing"
	AmountSats    int64  `json:"amountSats"`
	FeeSats       int64  `json:"feeSats,omitempty"`
	Confirmed     bool   `json:"confirmed"`
	Confirmations int64  `json:"confirmations"`
	BlockHeight   int64  `json:"blockHeight,omitempty"`
	BlockTime     int64  `json:"blockTime,omitempty"`
}

// TxOutput is one output of a fetched transaction, used when re-verifying
// that a payment actually reached the store address.
type TxOutput struct {
	Address   string `json:"address"`
	ValueSats int64  `json:"valueSats"`
}

// UnsignedTransaction is the builder's output: a PSBT plus the bookkeeping
// needed to hand it to an external signer and to audit the value equation
// sum(inputs) == amount + fee + change.
type UnsignedTransaction struct {
	Inputs      []UTXO `json:"inputs"`
	Recipient   string `json:"recipient"`
	Sender      string `json:"sender"`
	AmountSats  int64  `json:"amountSats"`
	ChangeSats  int64  `json:"changeSats"` // 0 when below dust and absorbed into fee
	FeeSats     int64  `json:"feeSats"`
	PsbtBase64  string `json:"psbtBase64"`
	SignIndexes []int  `json:"signIndexes"`
}

// TotalInputSats returns the sum of all selected input values.
func (u *UnsignedTransaction) TotalInputSats() int64 {
	var total int64
	for _, in := range u.Inputs {
		total += in.ValueSats
	}
	return total
}

// SignedTransaction is the opaque artifact returned by the external signer.
// Exactly one of PsbtBase64 or RawTxHex is set; the core never inspects it
// beyond finalizing and extracting raw bytes for broadcast.
type SignedTransaction struct {
	PsbtBase64 string `json:"psbtBase64,omitempty"`
	RawTxHex   string `json:"rawTxHex,omitempty"`

	// Unsigned is the transaction this artifact was derived from, kept for
	// traceability only.
	Unsigned *UnsignedTransaction `json:"-"`
}

// PaymentAttempt is the unit of work tracked end to end. Rows are never
// deleted; they are retained as settlement proof.
type PaymentAttempt struct {
	ID            string       `json:"id"`
	OrderID       string       `json:"orderId"`
	Network       string       `json:"network"`
	Sender        string       `json:"sender"`
	Recipient     string       `json:"recipient"`
	AmountSats    int64        `json:"amountSats"`
	FeeSats       int64        `json:"feeSats,omitempty"`
	TxID          string       `json:"txid,omitempty"`
	State         PaymentState `json:"state"`
	Confirmations int64        `json:"confirmations"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     string       `json:"createdAt"`
	UpdatedAt     string       `json:"updatedAt,omitempty"`
}

// VerificationResult is the outcome of an on-chain re-verification of a
// payment: whether a transaction pays the expected address enough sats.
type VerificationResult struct {
	TxID          string `json:"txid"`
	OutputFound   bool   `json:"outputFound"`
	PaidSats      int64  `json:"paidSats"`
	ExpectedSats  int64  `json:"expectedSats"`
	Confirmed     bool   `json:"confirmed"`
	Confirmations int64  `json:"confirmations"`
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
