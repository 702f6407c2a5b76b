package publishers

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
)

func TestGCPPubSubPublisherDelivers(t *testing.T) {
	// Use the in-memory Pub/Sub emulator.
	server := pstest.NewServer()
	defer server.Close()
	defer os.Unsetenv("PUBSUB_EMULATOR_HOST")
	os.Setenv("PUBSUB_EMULATOR_HOST", server.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if _, err := client.CreateTopic(ctx, "events"); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	pub, err := newGCPPubSubPublisher(ctx, PublisherConfig{
		ID:   "events-topic",
		Type: TypeGCPPubSub,
		PubSub: &GCPPubSubPublisherConfig{
			ProjectID: "test-project",
			TopicID:   "events",
		},
	}, nil)
	if err != nil {
		t.Fatalf("newGCPPubSubPublisher: %v", err)
	}

	evt := Event{Kind: KindFreeGame, Action: ActionAdded, ProviderID: "steam"}
	if err := pub.Publish(ctx, evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(server.Messages()) != 1 {
		t.Fatalf("expected 1 delivered message, got %d", len(server.Messages()))
	}
	msg := server.Messages()[0]
	if msg.Attributes["provider_id"] != "steam" || msg.Attributes["kind"] != KindFreeGame {
		t.Fatalf("unexpected message attributes %v", msg.Attributes)
	}
}

func TestGCPPubSubPublisherRequiresConfig(t *testing.T) {
	if _, err := newGCPPubSubPublisher(context.Background(), PublisherConfig{ID: "x", Type: TypeGCPPubSub}, nil); err == nil {
		t.Fatalf("expected error without gcppubsub configuration")
	}
}
