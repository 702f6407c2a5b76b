package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{}, nil
}

func TestSQSPublisherSendsMessage(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{
		id:       "events-queue",
		typ:      TypeSQS,
		queueURL: "https://sqs.eu-west-1.amazonaws.com/123/events",
		client:   client,
		log:      ensureLogger(nil),
	}

	evt := Event{Kind: KindFreeGame, Action: ActionAdded, ProviderID: "epic_games"}
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if client.input == nil {
		t.Fatalf("expected a message to be sent")
	}
	if got := *client.input.QueueUrl; got != pub.queueURL {
		t.Fatalf("unexpected queue url %q", got)
	}

	var delivered Event
	if err := json.Unmarshal([]byte(*client.input.MessageBody), &delivered); err != nil {
		t.Fatalf("decode message body: %v", err)
	}
	if delivered.ProviderID != "epic_games" {
		t.Fatalf("unexpected delivered event %+v", delivered)
	}

	if got := *client.input.MessageAttributes["kind"].StringValue; got != KindFreeGame {
		t.Fatalf("unexpected kind attribute %q", got)
	}
	if got := *client.input.MessageAttributes["provider_id"].StringValue; got != "epic_games" {
		t.Fatalf("unexpected provider attribute %q", got)
	}
}

func TestSQSPublisherWrapsSendError(t *testing.T) {
	boom := errors.New("queue gone")
	pub := &sqsPublisher{
		id:       "events-queue",
		typ:      TypeSQS,
		queueURL: "https://sqs.eu-west-1.amazonaws.com/123/events",
		client:   &fakeSQSClient{err: boom},
		log:      ensureLogger(nil),
	}

	if err := pub.Publish(context.Background(), Event{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestSNSPublisherPublishesToTopic(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsPublisher{
		id:       "events-topic",
		typ:      TypeSNS,
		topicARN: "arn:aws:sns:eu-west-1:123:events",
		client:   client,
		log:      ensureLogger(nil),
	}

	evt := Event{Kind: KindArticle, Action: ActionAdded, ProviderID: "gleam.io"}
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if client.input == nil {
		t.Fatalf("expected a publish call")
	}
	if got := *client.input.TopicArn; got != pub.topicARN {
		t.Fatalf("unexpected topic arn %q", got)
	}
	if got := *client.input.MessageAttributes["kind"].StringValue; got != KindArticle {
		t.Fatalf("unexpected kind attribute %q", got)
	}
}

func TestSNSPublisherWrapsPublishError(t *testing.T) {
	boom := errors.New("topic gone")
	pub := &snsPublisher{
		id:       "events-topic",
		typ:      TypeSNS,
		topicARN: "arn:aws:sns:eu-west-1:123:events",
		client:   &fakeSNSClient{err: boom},
		log:      ensureLogger(nil),
	}

	if err := pub.Publish(context.Background(), Event{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}
