// Package s3 implements the object-store contract against any
// S3-compatible endpoint.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// Config holds object-store settings
type Config struct {
	Endpoint   string
	Region     string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PutTimeout time.Duration

	// MaxConcurrentPuts bounds in-flight puts (default: 8)
	MaxConcurrentPuts int
}

// Store uploads objects with a bounded per-call timeout. Failures are
// surfaced as *domain.UpstreamError with operator-diagnosable detail; no
// retry happens here, only a circuit breaker that sheds load once the
// endpoint is clearly down.
type Store struct {
	client     *minio.Client
	bucket     string
	putTimeout time.Duration
	breaker    circuitbreaker.CircuitBreaker[minio.UploadInfo]
	bulkhead   bulkhead.Bulkhead[minio.UploadInfo]
	logger     *slog.Logger
}

// New creates an object store client for cfg
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	putTimeout := cfg.PutTimeout
	if putTimeout <= 0 {
		putTimeout = 30 * time.Second
	}
	maxConcurrent := cfg.MaxConcurrentPuts
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	s := &Store{
		client:     client,
		bucket:     cfg.Bucket,
		putTimeout: putTimeout,
		logger:     logger,
	}

	s.breaker = circuitbreaker.New[minio.UploadInfo](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			s.logger.Warn("object store circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})

	s.bulkhead = bulkhead.New[minio.UploadInfo](bulkhead.Config{
		MaxConcurrent: maxConcurrent,
		MaxQueue:      maxConcurrent * 2,
		QueueTimeout:  putTimeout,
	})

	return s, nil
}

// Bucket returns the configured bucket name
func (s *Store) Bucket() string {
	return s.bucket
}

// Put stores content under key with the given content type and metadata
func (s *Store) Put(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, s.putTimeout)
	defer cancel()

	put := func(ctx context.Context) (minio.UploadInfo, error) {
		return s.bulkhead.Execute(ctx, func(ctx context.Context) (minio.UploadInfo, error) {
			return s.client.PutObject(ctx, s.bucket, key,
				bytes.NewReader(content), int64(len(content)),
				minio.PutObjectOptions{
					ContentType:  contentType,
					UserMetadata: metadata,
				})
		})
	}

	if _, err := s.breaker.Execute(ctx, put); err != nil {
		return &domain.UpstreamError{Op: fmt.Sprintf("object store put %s/%s", s.bucket, key), Err: err}
	}
	return nil
}
