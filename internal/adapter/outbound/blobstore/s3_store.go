// Package blobstore implements the memory-store port against AWS S3.
// Grounded on _examples/Mindburn-Labs-helm/core/pkg/artifacts.S3Store:
// a client loaded via config.LoadDefaultConfig (ambient credentials, no
// static keys in config) with an optional custom endpoint for
// MinIO/LocalStack-style local testing.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/sentinelgate/egressproxy/internal/domain/store"
)

// Config holds the S3Store's configuration.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional custom endpoint (MinIO, LocalStack)
}

// S3Store implements store.Store against an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// New creates an S3-backed Store. Credentials come from the process's
// ambient cloud identity via the default AWS credential chain — none are
// accepted in cfg.
func New(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("blobstore: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put writes data under key using S3's conditional-create (IfNoneMatch:"*")
// to emulate true create-if-not-exists semantics: a concurrent caller
// seeing the key never observes a partial object, and an existing key is
// always rejected rather than blindly overwritten.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string, meta store.Metadata) error {
	metadata := make(map[string]string, len(meta))
	for k, v := range meta {
		metadata[k] = v
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return store.ErrBlobExists
		}
		return fmt.Errorf("blobstore: put %s: %w", key, err)
	}
	return nil
}

// isPreconditionFailed reports whether err is S3's response to a failed
// IfNoneMatch condition (the key already exists).
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "412":
			return true
		}
	}
	return false
}

// Get downloads the object at key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

// ListByPrefix lists every key under prefix. When includeMetadata is true
// each key's user metadata is fetched via a per-key HeadObject call.
func (s *S3Store) ListByPrefix(ctx context.Context, prefix string, includeMetadata bool) ([]store.ListedBlob, error) {
	var blobs []store.ListedBlob

	var continuationToken *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("blobstore: list %s: %w", prefix, err)
		}

		for _, obj := range out.Contents {
			blob := store.ListedBlob{
				Name:         aws.ToString(obj.Key),
				LastModified: aws.ToTime(obj.LastModified),
			}
			if includeMetadata {
				meta, err := s.headMetadata(ctx, blob.Name)
				if err != nil {
					return nil, err
				}
				blob.Metadata = meta
			}
			blobs = append(blobs, blob)
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	sort.Slice(blobs, func(i, j int) bool {
		return blobs[i].LastModified.After(blobs[j].LastModified)
	})

	return blobs, nil
}

func (s *S3Store) headMetadata(ctx context.Context, key string) (store.Metadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: head %s: %w", key, err)
	}
	meta := make(store.Metadata, len(out.Metadata))
	for k, v := range out.Metadata {
		meta[k] = v
	}
	return meta, nil
}

// SetMetadata replaces key's user metadata via a copy-in-place, the
// standard S3 idiom for mutating metadata without rewriting the body.
func (s *S3Store) SetMetadata(ctx context.Context, key string, meta store.Metadata) error {
	metadata := make(map[string]string, len(meta))
	for k, v := range meta {
		metadata[k] = v
	}

	copySource := s.bucket + "/" + key
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(copySource),
		Metadata:          metadata,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return fmt.Errorf("blobstore: set metadata on %s: %w", key, err)
	}
	return nil
}
