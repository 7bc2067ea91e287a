package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client S3Archiver depends on, so tests can
// substitute an in-memory fake instead of talking to AWS.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver mirrors turn artifacts under s3://<bucket>/<prefix>/<run_dir
// basename>/turn_<seq:04d>.{json,png}.
type S3Archiver struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Archiver builds an S3Archiver using the default AWS credential chain.
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3Archiver{client: s3.NewFromConfig(awsCfg), bucket: bucket, prefix: prefix}, nil
}

// NewS3ArchiverWithClient builds an S3Archiver against an already-configured
// client, primarily for tests with a fake S3API.
func NewS3ArchiverWithClient(client S3API, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// ArchiveTurn uploads the turn JSON and, when non-empty, the annotated PNG.
func (a *S3Archiver) ArchiveTurn(ctx context.Context, runDir string, seq int, turnJSON, pngBytes []byte) error {
	base := a.key(runDir, fmt.Sprintf("turn_%04d", seq))

	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(base + ".json"),
		Body:        bytes.NewReader(turnJSON),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("upload turn json to s3: %w", err)
	}

	if len(pngBytes) == 0 {
		return nil
	}
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(base + ".png"),
		Body:        bytes.NewReader(pngBytes),
		ContentType: aws.String("image/png"),
	}); err != nil {
		return fmt.Errorf("upload annotated png to s3: %w", err)
	}
	return nil
}

// key builds the S3 key for one turn's artifacts under runDir's basename.
func (a *S3Archiver) key(runDir, name string) string {
	runName := runDir
	if idx := strings.LastIndexByte(runDir, '/'); idx >= 0 {
		runName = runDir[idx+1:]
	}
	if a.prefix == "" {
		return runName + "/" + name
	}
	return a.prefix + "/" + runName + "/" + name
}
