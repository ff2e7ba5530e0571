package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for the S3-backed history log.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
	Prefix          string // Optional: key prefix, defaults to "history"
}

// S3Log wraps a MemoryLog and additionally persists each record as a JSON
// object in S3, so history survives the process.
type S3Log struct {
	*MemoryLog
	client *s3.Client
	bucket string
	prefix string
}

// Compile-time check that S3Log implements Log.
var _ Log = (*S3Log)(nil)

// NewS3Log creates an S3-backed history log.
func NewS3Log(cfg S3Config, limit int) (*S3Log, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("history: load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "history"
	}

	return &S3Log{
		MemoryLog: NewMemoryLogWithLimit(limit),
		client:    s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:    cfg.Bucket,
		prefix:    prefix,
	}, nil
}

// Add appends the sanitized record to the memory log and writes it to S3
// under <prefix>/<id>.json.
func (l *S3Log) Add(ctx context.Context, record Record) error {
	record = sanitize(record)

	if err := l.MemoryLog.Add(ctx, record); err != nil {
		return err
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("history: marshal record: %w", err)
	}

	key := fmt.Sprintf("%s/%s.json", l.prefix, record.ID)
	_, err = l.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(l.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("history: upload record: %w", err)
	}

	return nil
}

// Delete removes the record from the memory log and from S3.
func (l *S3Log) Delete(ctx context.Context, id string) error {
	if err := l.MemoryLog.Delete(ctx, id); err != nil {
		return err
	}

	key := fmt.Sprintf("%s/%s.json", l.prefix, id)
	_, err := l.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("history: delete record: %w", err)
	}

	return nil
}
