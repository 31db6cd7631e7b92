package aws

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
)

const defaultRegion = "us-east-1"

// Credentials is one access key pair plus the region it is used in. The
// warehouse and the storage bucket use different pairs.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	// Endpoint overrides the service endpoint, for S3 compatible stores.
	Endpoint string
}

// NewSession builds an AWS session from explicit credentials. When no key
// pair is set the SDK's default provider chain is used.
func NewSession(creds Credentials) (*session.Session, error) {
	region := creds.Region
	if region == "" {
		region = defaultRegion
	}
	cfg := aws.NewConfig().WithRegion(region)
	if creds.AccessKeyID != "" || creds.SecretAccessKey != "" {
		if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
			return nil, fmt.Errorf("both access key id and secret access key must be set")
		}
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(creds.AccessKeyID, creds.SecretAccessKey, ""))
	}
	if creds.Endpoint != "" {
		cfg = cfg.WithEndpoint(creds.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create AWS session: %w", err)
	}
	return sess, nil
}
