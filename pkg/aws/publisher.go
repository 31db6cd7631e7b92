package aws

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	log "github.com/sirupsen/logrus"
)

// CSVContentType is the content type forecast objects are stored with.
const CSVContentType = "text/csv"

// S3Publisher writes report objects to S3.
type S3Publisher struct {
	s3     s3iface.S3API
	logger log.FieldLogger
}

// NewS3Publisher configures an S3 client from the storage credentials.
func NewS3Publisher(logger log.FieldLogger, creds Credentials) (*S3Publisher, error) {
	sess, err := NewSession(creds)
	if err != nil {
		return nil, err
	}
	return NewS3PublisherWithClient(logger, s3.New(sess)), nil
}

// NewS3PublisherWithClient is used by tests to inject a fake S3.
func NewS3PublisherWithClient(logger log.FieldLogger, client s3iface.S3API) *S3Publisher {
	return &S3Publisher{
		s3:     client,
		logger: logger.WithField("component", "s3Publisher"),
	}
}

// Publish stores body at s3://bucket/key, replacing any existing object.
func (p *S3Publisher) Publish(ctx context.Context, bucket, key string, body []byte) error {
	_, err := p.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(CSVContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put 's3://%s/%s': %w", bucket, key, err)
	}
	p.logger.WithFields(log.Fields{
		"bucket": bucket,
		"key":    key,
		"bytes":  len(body),
	}).Info("uploaded object to S3")
	return nil
}
