// Package notify delivers run outcomes out of band.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	appconfig "balancedbuy/config"
	"balancedbuy/logger"
)

// SNSPublisher publishes run summaries and failure notices to an SNS topic.
type SNSPublisher struct {
	client   *sns.Client
	topicArn string
	log      *logger.Log
}

// NewSNSPublisher builds the publisher from configuration. Static credentials
// from the config file take precedence; otherwise the default AWS credential
// chain applies.
func NewSNSPublisher(ctx context.Context, cfg appconfig.SNSConfig) (*SNSPublisher, error) {
	log := logger.GetLogger()

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	publisher := &SNSPublisher{
		client:   sns.NewFromConfig(awsCfg),
		topicArn: cfg.TopicArn,
		log:      log,
	}

	log.WithComponent("sns").WithFields(logger.Fields{
		"topic_arn": cfg.TopicArn,
		"region":    cfg.Region,
	}).Info("SNS publisher initialized")

	return publisher, nil
}

// Publish sends one notification to the configured topic.
func (p *SNSPublisher) Publish(ctx context.Context, subject, body string) error {
	if _, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	}); err != nil {
		return fmt.Errorf("sns publish failed: %w", err)
	}

	p.log.WithComponent("sns").WithFields(logger.Fields{
		"subject": subject,
	}).Info("notification published")

	return nil
}
