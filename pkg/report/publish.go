package report

import (
	"context"
	"fmt"
)

//go:generate mockgen -destination=mock/mock_publisher.go -package=mock github.com/maistodos/credit-forecast/pkg/report Publisher

// Publisher stores a finished report, replacing any previous version.
type Publisher interface {
	Publish(ctx context.Context, bucket, key string, body []byte) error
}

// Destination is the object a job's report is written to.
type Destination struct {
	Bucket string `json:"bucket" mapstructure:"bucket"`
	Key    string `json:"key" mapstructure:"key"`
}

func (d Destination) Validate() error {
	if d.Bucket == "" || d.Key == "" {
		return fmt.Errorf("destination bucket and key must be set")
	}
	return nil
}

func (d Destination) String() string {
	return fmt.Sprintf("s3://%s/%s", d.Bucket, d.Key)
}
