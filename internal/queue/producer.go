package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer publishes transcription jobs to the queue
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishTranscriptionJob publishes a transcription job for an uploaded
// object.
func (p *Producer) PublishTranscriptionJob(ctx context.Context, job *TranscriptionJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, TranscriptionQueueName, job); err != nil {
		return fmt.Errorf("failed to publish transcription job: %w", err)
	}

	slog.Info("published transcription job",
		"job_id", job.ID,
		"user_id", job.UserID,
		"object_key", job.ObjectKey,
		"content_type", job.ContentType,
	)

	return nil
}
