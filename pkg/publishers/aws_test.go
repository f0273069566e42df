package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/samvad-hq/jsonfetch/internal/domain"
)

func testEvent() Event {
	obs := domain.NewObservation("kyiv", "weather", map[string]any{"temp": 21.5, "city": "Kyiv"})
	return NewEvent("kyiv", "Kyiv weather", obs)
}

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
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
	return &sns.PublishOutput{MessageId: aws.String("msg-456")}, nil
}

func decodeMessage(t *testing.T, body string) Event {
	t.Helper()
	var evt Event
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		t.Fatalf("message body is not an event: %v", err)
	}
	return evt
}

func TestSQSPublisherSendsEvent(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{id: "queue", queueURL: "https://sqs.example.com/queue", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://sqs.example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["endpoint_id"]
	if !ok || aws.ToString(attr.StringValue) != "kyiv" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("endpoint_id attribute missing or wrong: %#v", attr)
	}
	if kind := client.input.MessageAttributes["kind"]; aws.ToString(kind.StringValue) != "weather" {
		t.Fatalf("kind attribute missing: %#v", kind)
	}
	evt := decodeMessage(t, aws.ToString(client.input.MessageBody))
	if evt.EndpointName != "Kyiv weather" || evt.Observation.Fields["city"] != "Kyiv" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestSQSPublisherSendError(t *testing.T) {
	client := &fakeSQSClient{err: errors.New("boom")}
	pub := &sqsPublisher{id: "queue", queueURL: "https://sqs.example.com/queue", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), testEvent()); err == nil {
		t.Fatalf("expected error from Publish")
	}
}

func TestSNSPublisherSendsEvent(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsPublisher{id: "topic", topicARN: "arn:aws:sns:eu-central-1:123456789012:observations", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:eu-central-1:123456789012:observations" {
		t.Fatalf("TopicArn = %s", got)
	}
	attr, ok := client.input.MessageAttributes["endpoint_id"]
	if !ok || aws.ToString(attr.StringValue) != "kyiv" {
		t.Fatalf("endpoint_id attribute missing or wrong: %#v", attr)
	}
	if evt := decodeMessage(t, aws.ToString(client.input.Message)); evt.EndpointID != "kyiv" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestSNSPublisherSendError(t *testing.T) {
	pub := &snsPublisher{id: "topic", topicARN: "arn", client: &fakeSNSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := pub.Publish(context.Background(), testEvent()); err == nil {
		t.Fatalf("expected error from Publish")
	}
}

func TestAWSBuildersApplyOverrides(t *testing.T) {
	access := AWSAccess{
		Region:          "eu-central-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
	}

	cfg, err := loadAWSConfig(context.Background(), access)
	if err != nil {
		t.Fatalf("loadAWSConfig: %v", err)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "test" || creds.SecretAccessKey != "secret" {
		t.Fatalf("static credentials not applied: %+v", creds)
	}

	pub, err := newSQSPublisher(context.Background(), PublisherConfig{
		ID:   "local",
		Type: TypeSQS,
		SQS:  &SQSPublisherConfig{QueueURL: "http://localhost:4566/000000000000/q", AWSAccess: access},
	}, nil)
	if err != nil {
		t.Fatalf("newSQSPublisher: %v", err)
	}
	if pub.Type() != TypeSQS || pub.ID() != "local" {
		t.Fatalf("unexpected publisher %s/%s", pub.Type(), pub.ID())
	}

	if _, err := newSNSPublisher(context.Background(), PublisherConfig{ID: "missing", Type: TypeSNS}, nil); err == nil {
		t.Fatalf("expected error for missing sns block")
	}
}
