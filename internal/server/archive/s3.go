// Package archive uploads a snapshot of the chat history to S3-compatible
// object storage before the history is cleared.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	sc "github.com/dmitrijs2005/gophchat/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes each cleared history as one JSON object under
// history/YYYY/MM/DD/.
type S3Archiver struct {
	client objectPutter
	bucket string
}

// snapshot is the archived document.
type snapshot struct {
	ClearedAt string        `json:"clearedAt"`
	Count     int           `json:"count"`
	Messages  []chat.Record `json:"messages"`
}

// NewS3Archiver builds an archiver from the S3 settings in cfg. Path-style
// addressing is used so that MinIO endpoints work unchanged.
func NewS3Archiver(ctx context.Context, cfg *sc.Config) (*S3Archiver, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Archiver{client: client, bucket: cfg.S3Bucket}, nil
}

// Key returns the object key used for a history cleared at t.
func Key(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("history/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), t.Format("150405.000"))
}

func (a *S3Archiver) Archive(ctx context.Context, msgs []chat.Message, clearedAt time.Time) (string, error) {
	doc := snapshot{
		ClearedAt: clearedAt.UTC().Format(time.RFC3339Nano),
		Count:     len(msgs),
		Messages:  make([]chat.Record, 0, len(msgs)),
	}
	for _, m := range msgs {
		doc.Messages = append(doc.Messages, chat.ToRecord(m))
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	key := Key(clearedAt)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", a.bucket, key, err)
	}
	return key, nil
}
