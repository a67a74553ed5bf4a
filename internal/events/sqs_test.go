package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap/zaptest"
)

type fakeSQS struct {
	sent     []*sqs.SendMessageInput
	sendErr  error
	inbox    []types.Message
	received bool
	deleted  []string
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.received {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	f.received = true
	return &sqs.ReceiveMessageOutput{Messages: f.inbox}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func message(t *testing.T, handle string, e Event) types.Message {
	t.Helper()
	body, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	return types.Message{MessageId: aws.String(handle), ReceiptHandle: aws.String(handle), Body: aws.String(string(body))}
}

func TestSQSPublisherPublish(t *testing.T) {
	fake := &fakeSQS{}
	p := &SQSPublisher{client: fake, queueURL: "https://sqs.test/queue"}

	err := p.Publish(context.Background(), Event{Type: TypeVideoPublished, VideoID: "v1", OwnerID: "u1", UploadID: "1_abc"})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent messages: got %d want 1", len(fake.sent))
	}
	in := fake.sent[0]
	if got := aws.ToString(in.QueueUrl); got != "https://sqs.test/queue" {
		t.Fatalf("queue: got %q", got)
	}
	if got := aws.ToString(in.MessageAttributes["type"].StringValue); got != TypeVideoPublished {
		t.Fatalf("type attribute: got %q want %q", got, TypeVideoPublished)
	}

	var e Event
	if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &e); err != nil {
		t.Fatalf("body is not an event: %v", err)
	}
	if e.VideoID != "v1" || e.UploadID != "1_abc" || e.OccurredAt.IsZero() {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestSQSPublisherError(t *testing.T) {
	sendErr := errors.New("throttled")
	p := &SQSPublisher{client: &fakeSQS{sendErr: sendErr}, queueURL: "q"}
	if err := p.Publish(context.Background(), Event{Type: TypeVideoDeleted}); !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestSQSConsumerPoll(t *testing.T) {
	fake := &fakeSQS{}
	fake.inbox = []types.Message{
		message(t, "ok", Event{Type: TypeVideoDeleted, VideoID: "v1"}),
		{MessageId: aws.String("poison"), ReceiptHandle: aws.String("poison"), Body: aws.String("{not json")},
		message(t, "retry", Event{Type: TypeVideoDeleted, VideoID: "v2"}),
	}
	c := newSQSConsumer(fake, "q", zaptest.NewLogger(t))

	var seen []string
	err := c.poll(context.Background(), func(_ context.Context, e Event) error {
		seen = append(seen, e.VideoID)
		if e.VideoID == "v2" {
			return errors.New("remote store unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("poll returned error: %v", err)
	}

	if len(seen) != 2 || seen[0] != "v1" || seen[1] != "v2" {
		t.Fatalf("handled events: got %v", seen)
	}
	if len(fake.deleted) != 2 || fake.deleted[0] != "ok" || fake.deleted[1] != "poison" {
		t.Fatalf("deleted messages: got %v want [ok poison]", fake.deleted)
	}
}

func TestSQSConsumerRunStopsOnCancel(t *testing.T) {
	fake := &fakeSQS{inbox: []types.Message{message(t, "a", Event{Type: TypeVideoPublished, VideoID: "v1"})}}
	c := newSQSConsumer(fake, "q", zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(context.Context, Event) error {
			cancel()
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
}

func TestNop(t *testing.T) {
	if err := Nop.Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("Nop.Publish returned error: %v", err)
	}
}
