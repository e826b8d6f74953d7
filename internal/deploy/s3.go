package deploy

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the slice of the S3 client the target needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Target struct { // implements Target
	client s3API
	bucket string
	prefix string
}

// NewS3Target builds a target against any S3-compatible store. An empty
// endpoint means plain AWS S3; R2 and friends pass their own.
func NewS3Target(accessKeyID, accessKeySecret, endpoint, bucket, prefix string) (*S3Target, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &S3Target{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (t *S3Target) Name() string {
	return "s3"
}

func (t *S3Target) Sync(ctx context.Context, files []File) error {
	for _, f := range files {
		key := t.key(f.Path)

		if f.Deleted {
			_, err := t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(t.bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return fmt.Errorf("error deleting %s: %w", key, err)
			}
			deployLogger.Debug().Str("key", key).Msg("Deleted object")
			continue
		}

		_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(t.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(f.Content),
			ContentType: aws.String(contentTypeFor(f.Path)),
		})
		if err != nil {
			return fmt.Errorf("error uploading %s: %w", key, err)
		}
		deployLogger.Debug().Str("key", key).Int("bytes", len(f.Content)).Msg("Uploaded object")
	}

	deployLogger.Info().Int("files", len(files)).Str("bucket", t.bucket).Msg("Deploy synced")
	return nil
}

func (t *S3Target) key(filePath string) string {
	if t.prefix == "" {
		return filePath
	}
	return path.Join(t.prefix, filePath)
}

func contentTypeFor(filePath string) string {
	if ct := mime.TypeByExtension(path.Ext(filePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
