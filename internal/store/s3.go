package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3Sink is an optional archival Sink backed by S3, adapted from the teacher's
// internal/cache/s3.go S3Store: same conditional-PUT idempotency trick (a document is keyed by
// the sink prefix plus the name it is sent under, so a conflicting PUT means another run
// already archived the identical bytes), same unsigned-payload middleware swap to avoid
// buffering the whole body twice for SHA256 signing.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink builds an S3Sink. Credentials, region, and endpoint are resolved via the standard
// AWS SDK default credential chain, exactly as the teacher's NewS3Store documents.
func NewS3Sink(ctx context.Context, bucket, prefix string, forcePathStyle bool) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = forcePathStyle
	})

	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	}

	return &S3Sink{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Sink) fullKey(name string) string {
	return s.prefix + name
}

// Send uploads data under name, via conditional PUT: a 412/409 conflict means the object
// already exists with the same content-addressed key and is treated as success rather than an
// error, matching the teacher's Put.
func (s *S3Sink) Send(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.fullKey(name)),
		Body:        bytes.NewReader(data),
		IfNoneMatch: aws.String("*"),
	},
		s3.WithAPIOptions(func(stack *middleware.Stack) error {
			return v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware(stack)
		}),
	)
	if err != nil {
		if isConditionalPutConflict(err) {
			slog.Debug("document already archived, skipping duplicate upload", "name", name)
			return nil
		}
		return fmt.Errorf("store: putting document to S3: %w", err)
	}
	return nil
}

// isConditionalPutConflict returns true when an S3 PutObject error indicates the object
// already exists (HTTP 412 Precondition Failed or 409 Conflict), copied from the teacher.
func isConditionalPutConflict(err error) bool {
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusPreconditionFailed ||
			re.HTTPStatusCode() == http.StatusConflict
	}
	return false
}
