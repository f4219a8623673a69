// Package sqs sends messages to an Amazon SQS queue.
package sqs

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"streamproducer/sink"
)

type Config struct {
	QueueURL        string `koanf:"queue_url"`
	QueueName       string `koanf:"queue_name"` // resolved to a URL when QueueURL is empty
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	SessionToken    string `koanf:"session_token"`
	DelaySeconds    int32  `koanf:"delay_seconds"`
}

type sqsAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type driver struct {
	cfg      Config
	api      sqsAPI
	queueURL string
}

func (d *driver) Configure(ctx context.Context, raw any) error {
	cfg, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("sqs-sink: expected Config, got %T", raw)
	}
	if cfg.QueueURL == "" && cfg.QueueName == "" {
		return errors.New("sqs-sink: queue_url or queue_name is required")
	}
	d.cfg = cfg

	api, err := newClient(ctx, cfg)
	if err != nil {
		return sink.ConnectError("sqs", err)
	}
	return d.bind(ctx, api)
}

func newClient(ctx context.Context, cfg Config) (*sqs.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// bind resolves the queue URL and checks the queue is reachable. Resolving
// by name doubles as the check; an explicit URL is probed for attributes.
func (d *driver) bind(ctx context.Context, api sqsAPI) error {
	d.api = api
	d.queueURL = d.cfg.QueueURL
	if d.queueURL != "" {
		_, err := api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(d.queueURL),
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
		})
		if err != nil {
			return sink.ConnectError("sqs", fmt.Errorf("check queue %s: %w", d.queueURL, err))
		}
		return nil
	}
	out, err := api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(d.cfg.QueueName)})
	if err != nil {
		return sink.ConnectError("sqs", fmt.Errorf("resolve queue %s: %w", d.cfg.QueueName, err))
	}
	d.queueURL = aws.ToString(out.QueueUrl)
	return nil
}

func (d *driver) Send(ctx context.Context, msg []byte) error {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(msg)),
	}
	if d.cfg.DelaySeconds > 0 {
		in.DelaySeconds = d.cfg.DelaySeconds
	}
	if _, err := d.api.SendMessage(ctx, in); err != nil {
		return sink.SendError("sqs", err)
	}
	return nil
}

func (d *driver) Close() error { return nil }

func init() {
	sink.Register("sqs", func() sink.Adapter { return &driver{} })
}
