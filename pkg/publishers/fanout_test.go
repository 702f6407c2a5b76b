package publishers

import (
	"context"
	"errors"
	"testing"
)

type recordingPublisher struct {
	id     string
	typ    string
	err    error
	events []Event
}

func (p *recordingPublisher) ID() string   { return p.id }
func (p *recordingPublisher) Type() string { return p.typ }
func (p *recordingPublisher) Publish(_ context.Context, evt Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func TestFanoutPublishAll(t *testing.T) {
	first := &recordingPublisher{id: "first", typ: TypeHTTP}
	second := &recordingPublisher{id: "second", typ: TypeSQS}
	fanout := NewFanout([]Publisher{first, second, nil})

	if fanout.Size() != 2 {
		t.Fatalf("Size = %d, want 2", fanout.Size())
	}

	evt := Event{Kind: KindFreeGame, Action: ActionAdded, ProviderID: "steam"}
	count, err := fanout.Publish(context.Background(), evt)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if count != 2 {
		t.Fatalf("successful count = %d, want 2", count)
	}
	if len(first.events) != 1 || len(second.events) != 1 {
		t.Fatalf("expected every publisher to receive the event")
	}
	if first.events[0].ProviderID != "steam" {
		t.Fatalf("unexpected event %+v", first.events[0])
	}
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	boom := errors.New("boom")
	healthy := &recordingPublisher{id: "healthy", typ: TypeHTTP}
	broken := &recordingPublisher{id: "broken", typ: TypeSNS, err: boom}
	fanout := NewFanout([]Publisher{healthy, broken})

	count, err := fanout.Publish(context.Background(), Event{Kind: KindArticle, Action: ActionAdded})
	if count != 1 {
		t.Fatalf("successful count = %d, want 1", count)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publisher error, got %v", err)
	}
	if len(healthy.events) != 1 {
		t.Fatalf("healthy publisher should still receive the event")
	}
}

func TestFanoutNilSafe(t *testing.T) {
	var fanout *Fanout
	count, err := fanout.Publish(context.Background(), Event{})
	if count != 0 || err != nil {
		t.Fatalf("nil fanout: count=%d err=%v", count, err)
	}
	if fanout.Size() != 0 {
		t.Fatalf("nil fanout size = %d", fanout.Size())
	}
}

func TestBuildAllWithRegistry(t *testing.T) {
	reg := NewRegistry(map[string]Builder{
		"recording": func(_ context.Context, cfg PublisherConfig, _ Logger) (Publisher, error) {
			return &recordingPublisher{id: cfg.ID, typ: "recording"}, nil
		},
	})

	cfgs := []PublisherConfig{
		{ID: "a", Type: "recording"},
		{ID: "b", Type: "recording"},
	}
	pubs, err := BuildAll(context.Background(), reg, cfgs, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 2 {
		t.Fatalf("expected 2 publishers, got %d", len(pubs))
	}
}

func TestBuildAllUnknownType(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := BuildAll(context.Background(), reg, []PublisherConfig{{ID: "a", Type: "nope"}}, nil)
	if err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}
