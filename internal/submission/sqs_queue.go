package submission

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client used for publishing.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSQueue publishes to an AWS (or LocalStack) SQS queue.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
}

// NewSQSQueue wraps client for queueURL.
func NewSQSQueue(client SQSAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("submission: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("submission: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

func (q *SQSQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"content_type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
		},
	})
	if err != nil {
		return fmt.Errorf("submission: failed to send SQS message: %w", err)
	}
	return nil
}
