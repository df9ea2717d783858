package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS enqueues the message on an SQS queue.
type SQS struct {
	client   sqsAPI
	queueURL string
}

// NewSQS wraps an SQS client.
func NewSQS(client sqsAPI, queueURL string) *SQS {
	return &SQS{client: client, queueURL: queueURL}
}

func (s *SQS) Notify(ctx context.Context, msg Message) error {
	b, err := msg.encode()
	if err != nil {
		return err
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(b)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"testType": {DataType: aws.String("String"), StringValue: aws.String(msg.TestType)},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send %s: %w", msg.AttemptID, err)
	}
	return nil
}

func (s *SQS) Close() error { return nil }
