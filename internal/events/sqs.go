package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func newSQSClient(ctx context.Context, region string) (*sqs.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

// SQSPublisher sends events as JSON message bodies.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

var _ Publisher = (*SQSPublisher)(nil)

func NewSQSPublisher(ctx context.Context, queueURL, region string) (*SQSPublisher, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("SQS queue URL cannot be empty")
	}
	client, err := newSQSClient(ctx, region)
	if err != nil {
		return nil, err
	}
	return &SQSPublisher{client: client, queueURL: queueURL}, nil
}

func (p *SQSPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send %s event: %w", e.Type, err)
	}
	return nil
}

// SQSConsumer long-polls a queue and hands each event to a Handler.
type SQSConsumer struct {
	client   sqsAPI
	queueURL string
	log      *zap.Logger

	// RetryDelay is the pause after a failed receive.
	RetryDelay time.Duration
}

func NewSQSConsumer(ctx context.Context, queueURL, region string, log *zap.Logger) (*SQSConsumer, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("SQS queue URL cannot be empty")
	}
	client, err := newSQSClient(ctx, region)
	if err != nil {
		return nil, err
	}
	return newSQSConsumer(client, queueURL, log), nil
}

func newSQSConsumer(client sqsAPI, queueURL string, log *zap.Logger) *SQSConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQSConsumer{client: client, queueURL: queueURL, log: log, RetryDelay: 5 * time.Second}
}

// Run polls until ctx is done.
func (c *SQSConsumer) Run(ctx context.Context, h Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := c.poll(ctx, h); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("receive message error", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.RetryDelay):
			}
		}
	}
}

func (c *SQSConsumer) poll(ctx context.Context, h Handler) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return err
	}

	for _, m := range out.Messages {
		var e Event
		if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &e); err != nil {
			c.log.Error("invalid message body", zap.String("message_id", aws.ToString(m.MessageId)), zap.Error(err))
			// poison message, drop it
			c.delete(ctx, m)
			continue
		}

		log := c.log.With(zap.String("event_type", e.Type), zap.String("video_id", e.VideoID))
		if err := h(ctx, e); err != nil {
			log.Warn("event handler failed, leaving message for redelivery", zap.Error(err))
			continue
		}
		c.delete(ctx, m)
		log.Debug("event processed")
	}
	return nil
}

func (c *SQSConsumer) delete(ctx context.Context, m types.Message) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		c.log.Warn("failed to delete message", zap.String("message_id", aws.ToString(m.MessageId)), zap.Error(err))
	}
}
