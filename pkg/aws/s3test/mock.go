package s3test

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

func NewMockS3() *MockS3 {
	return &MockS3{
		buckets:      map[string]map[string][]byte{},
		contentTypes: map[string]string{},
	}
}

// MockS3 mimics an S3 blob store for testing.
type MockS3 struct {
	sync.RWMutex
	buckets      map[string]map[string][]byte
	contentTypes map[string]string
	puts         int

	// PutErr, when set, is returned by every put.
	PutErr error

	s3iface.S3API
}

func (m *MockS3) NewBucket(name string) {
	m.Lock()
	defer m.Unlock()
	m.buckets[name] = map[string][]byte{}
}

func (m *MockS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.PutErr != nil {
		return nil, m.PutErr
	}
	data, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	m.Lock()
	defer m.Unlock()

	bucket, ok := m.buckets[*in.Bucket]
	if !ok {
		return nil, fmt.Errorf("bucket '%s' does not exist", *in.Bucket)
	}

	bucket[*in.Key] = data
	m.contentTypes[*in.Bucket+"/"+*in.Key] = aws.StringValue(in.ContentType)
	m.puts++
	return &s3.PutObjectOutput{}, nil
}

func (m *MockS3) GetObject(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	m.RLock()
	defer m.RUnlock()

	bucket, ok := m.buckets[*in.Bucket]
	if !ok {
		return nil, fmt.Errorf("bucket '%s' does not exist", *in.Bucket)
	}

	data, ok := bucket[*in.Key]
	if !ok {
		return nil, fmt.Errorf("key '%s' does not exist in bucket '%s'", *in.Key, *in.Bucket)
	}

	return &s3.GetObjectOutput{
		Body:        ioutil.NopCloser(bytes.NewBuffer(data)),
		ContentType: aws.String(m.contentTypes[*in.Bucket+"/"+*in.Key]),
	}, nil
}

// Object returns the stored bytes and content type of bucket/key.
func (m *MockS3) Object(bucket, key string) ([]byte, string, bool) {
	m.RLock()
	defer m.RUnlock()
	data, ok := m.buckets[bucket][key]
	return data, m.contentTypes[bucket+"/"+key], ok
}

// Puts is the number of successful puts.
func (m *MockS3) Puts() int {
	m.RLock()
	defer m.RUnlock()
	return m.puts
}
