package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fazzatti/cacti/internal/model"
)

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), TopicTransferInitiated, TransferInitiated{})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_Close(t *testing.T) {
	pub := &NoopPublisher{}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicTransferLocked)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	event := TransferLocked{SessionID: "sess-001", AssetID: "AR-42", Proof: `{"tx":"1"}`}
	if err := pub.Publish(context.Background(), TopicTransferLocked, event); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got TransferLocked
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		if got.SessionID != "sess-001" || got.AssetID != "AR-42" {
			t.Errorf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRollbackStartedCarriesPhase(t *testing.T) {
	event := RollbackStarted{
		SessionID: "sess-001",
		Role:      model.RoleClient,
		FromPhase: model.PhaseLocked,
		Reason:    "retries exhausted",
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	_ = json.Unmarshal(data, &got)
	if got["from_phase"] != "locked" {
		t.Errorf("from_phase = %v", got["from_phase"])
	}
}
