package payment

import (
	"context"
	"testing"
	"time"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/signing"
)

func TestEventHubSubscribeBroadcast(t *testing.T) {
	hub := NewEventHub()

	ch1 := hub.Subscribe()
	ch2 := hub.Subscribe()
	defer hub.Unsubscribe(ch1)
	defer hub.Unsubscribe(ch2)

	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount())
	}

	hub.PublishState(PaymentStateData{AttemptID: "a1", State: "BROADCASTING"})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != "payment_state" {
				t.Errorf("client %d: expected payment_state, got %s", i, ev.Type)
			}
			data, ok := ev.Data.(PaymentStateData)
			if !ok {
				t.Fatalf("client %d: unexpected payload type %T", i, ev.Data)
			}
			if data.AttemptID != "a1" {
				t.Errorf("client %d: attemptId = %s", i, data.AttemptID)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %d: no event received", i)
		}
	}
}

func TestEventHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewEventHub()

	ch := hub.Subscribe()
	hub.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("expected channel closed after unsubscribe")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	// Double unsubscribe must not panic.
	hub.Unsubscribe(ch)
}

func TestEventHubSlowClientDropsEvents(t *testing.T) {
	hub := NewEventHub()

	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Fill the buffer and then some; the surplus is dropped, never blocks.
	for i := 0; i < config.EventHubBuffer+10; i++ {
		hub.PublishState(PaymentStateData{AttemptID: "a1", State: "AWAITING_CONFIRMATION"})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received != config.EventHubBuffer {
				t.Errorf("expected %d buffered events, got %d", config.EventHubBuffer, received)
			}
			return
		}
	}
}

func TestEventHubRunClosesClientsOnCancel(t *testing.T) {
	hub := NewEventHub()
	ch := hub.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after cancel")
	}

	if _, open := <-ch; open {
		t.Error("expected client channel closed after hub shutdown")
	}
}

func TestEventHubPublishSignRequest(t *testing.T) {
	hub := NewEventHub()

	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.PublishSignRequest(signing.Request{
		AttemptID:     "a1",
		PsbtBase64:    "cHNidA==",
		SenderAddress: "bcrt1qsender",
		SignIndexes:   []int{0, 1},
		SignerNetwork: "testnet",
	})

	select {
	case ev := <-ch:
		if ev.Type != "sign_request" {
			t.Fatalf("expected sign_request, got %s", ev.Type)
		}
		data, ok := ev.Data.(SignRequestData)
		if !ok {
			t.Fatalf("unexpected payload type %T", ev.Data)
		}
		if data.AttemptID != "a1" || data.PsbtBase64 != "cHNidA==" {
			t.Errorf("payload mismatch: %+v", data)
		}
		if len(data.SignIndexes) != 2 {
			t.Errorf("expected 2 sign indexes, got %v", data.SignIndexes)
		}
		if data.SignerNetwork != "testnet" {
			t.Errorf("signerNetwork = %s", data.SignerNetwork)
		}
	case <-time.After(time.Second):
		t.Fatal("no sign_request event received")
	}
}
