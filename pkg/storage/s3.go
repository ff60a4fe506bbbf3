// Package storage stores mirrored asset bytes in S3 and exposes their
// public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/logging"
)

const putAttempts = 3

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds the object store configuration.
type Config struct {
	// Bucket is the target S3 bucket.
	Bucket string

	// Region is used to derive the public URL when PublicBaseURL is unset.
	Region string

	// PublicBaseURL overrides the base under which stored objects are
	// publicly reachable (CDN or website endpoint).
	PublicBaseURL string
}

// S3Store writes publicly readable objects to one bucket.
type S3Store struct {
	client        S3API
	bucket        string
	publicBaseURL string
	logger        zerolog.Logger
}

// NewS3Store creates an object store over an S3 client.
func NewS3Store(client S3API, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	publicBaseURL := cfg.PublicBaseURL
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logging.NewLogger("s3-store"),
	}, nil
}

// Put stores data under objectName with public-read access and returns the
// public URL. Transient failures are retried up to three times.
func (s *S3Store) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var lastErr error
	for attempt := 1; attempt <= putAttempts; attempt++ {
		_, lastErr = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(objectName),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
			ACL:         types.ObjectCannedACLPublicRead,
		})
		if lastErr == nil {
			return s.publicBaseURL + "/" + objectName, nil
		}

		s.logger.Warn().
			Err(lastErr).
			Str("object_name", objectName).
			Int("attempt", attempt).
			Msg("Object upload failed")

		if attempt < putAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
	}

	return "", fmt.Errorf("store object %s after %d attempts: %w", objectName, putAttempts, lastErr)
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *S3Store) Delete(ctx context.Context, objectName string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", objectName, err)
	}
	return nil
}
