// Package queue publishes post lifecycle events to SQS for downstream
// consumers (notifications, analytics).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"autopost/internal/config"
	"autopost/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EventPublisher sends PostEvents to the post events queue. Messages are
// grouped by record so a FIFO queue keeps per-schedule order.
type EventPublisher struct {
	client   SQSSender
	queueURL string
	fifo     bool
	logger   *slog.Logger
}

// NewEventPublisher creates an EventPublisher for awsCfg.EventQueueURL.
func NewEventPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		client:   client,
		queueURL: awsCfg.EventQueueURL,
		fifo:     strings.HasSuffix(awsCfg.EventQueueURL, ".fifo"),
		logger:   logger,
	}
}

// Publish serializes event and sends it with its type as a message attribute.
func (p *EventPublisher) Publish(ctx context.Context, event types.PostEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal PostEvent: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Type),
			},
		},
	}
	if p.fifo {
		input.MessageGroupId = aws.String(event.RecordID)
		input.MessageDeduplicationId = aws.String(event.ID)
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send %s event to %s: %w", event.Type, p.queueURL, err)
	}

	p.logger.DebugContext(ctx, "post event sent",
		"event_id", event.ID,
		"event_type", event.Type,
		"record_id", event.RecordID,
	)
	return nil
}
