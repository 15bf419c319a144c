package upload

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/audiogate/internal/domain"
	"github.com/felixgeelhaar/audiogate/internal/queue"
)

// ObjectStore is the narrow object-store contract the upload flow needs.
// Implementations own the bounded put timeout; their failures surface as
// *domain.UpstreamError, a distinct class from validation failure.
type ObjectStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) error
	Bucket() string
}

// JobPublisher hands accepted uploads to the transcription pipeline
type JobPublisher interface {
	PublishTranscriptionJob(ctx context.Context, job *queue.TranscriptionJob) error
}

// Receipt describes a stored upload
type Receipt struct {
	Filename    string
	Key         string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// Service validates an upload and stores it. A nil publisher disables the
// transcription handoff.
type Service struct {
	validator *Validator
	store     ObjectStore
	publisher JobPublisher
	logger    *slog.Logger
}

// NewService creates a new upload service
func NewService(validator *Validator, store ObjectStore, publisher JobPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		validator: validator,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Store validates content and puts it into the object store under a
// derived key, tagged with the uploader's identity. After a successful
// put it hands the object to the transcription queue; publish failure is
// logged but never fails the upload, since the object is already durable.
func (s *Service) Store(ctx context.Context, user *domain.User, declaredFilename string, content []byte) (*Receipt, error) {
	validated, err := s.validator.Accept(content, declaredFilename, user.Username)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	metadata := map[string]string{
		"user_id":           user.ID.String(),
		"username":          user.Username,
		"original_filename": declaredFilename,
		"upload_timestamp":  now.Format(time.RFC3339),
	}

	if err := s.store.Put(ctx, validated.Key, validated.Content, validated.ContentType, metadata); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		job := &queue.TranscriptionJob{
			UserID:      user.ID,
			Username:    user.Username,
			Bucket:      s.store.Bucket(),
			ObjectKey:   validated.Key,
			ContentType: validated.ContentType,
			Size:        validated.Size,
		}
		if err := s.publisher.PublishTranscriptionJob(ctx, job); err != nil {
			s.logger.Warn("transcription job publish failed",
				"object_key", validated.Key,
				"error", err,
			)
		}
	}

	return &Receipt{
		Filename:    declaredFilename,
		Key:         validated.Key,
		ContentType: validated.ContentType,
		Size:        validated.Size,
		UploadedAt:  now,
	}, nil
}
