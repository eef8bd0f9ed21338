package payment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/signing"
)

// Event is a server-sent event pushed to storefront clients.
type Event struct {
	Type string      `json:"type"` // "sign_request", "payment_state", "payment_error"
	Data interface{} `json:"data"` // JSON-serializable payload
}

// SignRequestData is the payload for sign_request events. The storefront
// forwards the PSBT to the customer's wallet extension and posts the result
// back through the signature endpoint.
type SignRequestData struct {
	AttemptID     string `json:"attemptId"`
	PsbtBase64    string `json:"psbt"`
	SenderAddress string `json:"senderAddress"`
	SignIndexes   []int  `json:"signIndexes"`
	SignerNetwork string `json:"signerNetwork"`
}

// PaymentStateData is the payload for payment_state events.
type PaymentStateData struct {
	AttemptID     string `json:"attemptId"`
	TxID          string `json:"txId,omitempty"`
	State         string `json:"state"`
	Confirmations int64  `json:"confirmations"`
	Error         string `json:"error,omitempty"`
}

// EventHub fans out payment events to connected SSE clients. It also serves
// as the signing.RequestPublisher: sign requests reach the customer's
// browser over the same stream as state updates.
type EventHub struct {
	clients map[chan Event]struct{}
	mu      sync.RWMutex
}

// NewEventHub creates a payment event hub.
func NewEventHub() *EventHub {
	slog.Info("payment event hub created")
	return &EventHub{
		clients: make(map[chan Event]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all client channels.
func (h *EventHub) Run(ctx context.Context) {
	slog.Info("payment event hub running")
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}

	slog.Info("payment event hub stopped", "reason", ctx.Err())
}

// Subscribe registers a new client and returns a channel to receive events.
func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, config.EventHubBuffer)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	slog.Info("event client subscribed", "totalClients", clientCount)

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	clientCount := len(h.clients)
	h.mu.Unlock()

	slog.Info("event client unsubscribed", "totalClients", clientCount)
}

// Broadcast sends an event to all connected clients.
// Non-blocking: if a client's channel is full, the event is dropped for that client.
func (h *EventHub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- event:
		default:
			slog.Warn("event dropped for slow client",
				"eventType", event.Type,
			)
		}
	}

	slog.Debug("event broadcast",
		"type", event.Type,
		"clients", len(h.clients),
	)
}

// PublishSignRequest implements signing.RequestPublisher.
func (h *EventHub) PublishSignRequest(req signing.Request) {
	h.Broadcast(Event{
		Type: "sign_request",
		Data: SignRequestData{
			AttemptID:     req.AttemptID,
			PsbtBase64:    req.PsbtBase64,
			SenderAddress: req.SenderAddress,
			SignIndexes:   req.SignIndexes,
			SignerNetwork: req.SignerNetwork,
		},
	})
}

// PublishState broadcasts a payment state change.
func (h *EventHub) PublishState(data PaymentStateData) {
	h.Broadcast(Event{Type: "payment_state", Data: data})
}

// ClientCount returns the number of connected event clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
