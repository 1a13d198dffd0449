package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"transcriptd/config"
	"transcriptd/models"
)

// ArchiveClient mirrors completed transcripts to S3-compatible object
// storage. The database stays authoritative; the archive is an
// off-box copy written after a job completes.
type ArchiveClient struct {
	client *s3.Client
	bucket string
}

func NewArchiveClient(cfg config.ArchiveConfig) (*ArchiveClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.Endpoint}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}

	return &ArchiveClient{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
	}, nil
}

type archivedTranscript struct {
	JobID      string           `json:"job_id"`
	Segments   []models.Segment `json:"segments"`
	FullText   string           `json:"full_text"`
	Language   string           `json:"language"`
	Duration   float64          `json:"duration"`
	ArchivedAt time.Time        `json:"archived_at"`
}

func archiveKey(jobID string) string {
	return fmt.Sprintf("transcripts/%s.json", jobID)
}

func (a *ArchiveClient) PutTranscript(ctx context.Context, t *models.Transcript) error {
	doc := archivedTranscript{
		JobID:      t.JobID,
		Segments:   t.Segments,
		FullText:   t.FullText,
		Language:   t.Language,
		Duration:   t.Duration,
		ArchivedAt: time.Now().UTC(),
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %v", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(archiveKey(t.JobID)),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive transcript: %v", err)
	}
	return nil
}

func (a *ArchiveClient) GetTranscript(ctx context.Context, jobID string) (*models.Transcript, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(archiveKey(jobID)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archived transcript: %v", err)
	}
	defer result.Body.Close()

	var doc archivedTranscript
	if err := json.NewDecoder(result.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode archived transcript: %v", err)
	}

	return &models.Transcript{
		JobID:    doc.JobID,
		Segments: doc.Segments,
		FullText: doc.FullText,
		Language: doc.Language,
		Duration: doc.Duration,
	}, nil
}
