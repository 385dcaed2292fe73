package transcript

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"

	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// S3Config contains configuration for the S3 transcript archive.
type S3Config struct {
	Bucket        string        `yaml:"bucket"`
	Region        string        `yaml:"region"`
	AccessKeyID   string        `yaml:"access_key_id"`
	SecretKey     string        `yaml:"secret_access_key"`
	Endpoint      string        `yaml:"endpoint"` // MinIO and other S3-compatible stores
	PathPrefix    string        `yaml:"path_prefix"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BatchSize     int           `yaml:"batch_size"`
}

// objectPutter is the subset of the S3 client used by the sink.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink batches records and uploads them as date-partitioned JSONL objects.
type S3Sink struct {
	cfg    S3Config
	client objectPutter
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []types.TurnRecord

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewS3Sink builds an S3 client from cfg and starts the periodic flush.
func NewS3Sink(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return newS3Sink(cfg, s3.NewFromConfig(awsCfg, s3Opts...), logger), nil
}

func newS3Sink(cfg S3Config, client objectPutter, logger *slog.Logger) *S3Sink {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &S3Sink{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		pending: make([]types.TurnRecord, 0, cfg.BatchSize),
		stopCh:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s
}

func (s *S3Sink) Name() string { return "s3" }

// Write buffers rec and uploads the batch once it is full.
func (s *S3Sink) Write(ctx context.Context, rec types.TurnRecord) error {
	s.mu.Lock()
	s.pending = append(s.pending, rec)
	full := len(s.pending) >= s.cfg.BatchSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

func (s *S3Sink) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Flush(context.Background()); err != nil {
				s.logger.Warn("periodic transcript upload failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// Flush uploads every buffered record as one object. A failed upload puts the
// records back so the next flush retries them.
func (s *S3Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = make([]types.TurnRecord, 0, s.cfg.BatchSize)
	s.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range batch {
		if err := enc.Encode(&batch[i]); err != nil {
			return fmt.Errorf("s3: encode record: %w", err)
		}
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.objectKey(s.now())),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		s.mu.Lock()
		s.pending = append(batch, s.pending...)
		s.mu.Unlock()
		return fmt.Errorf("s3: failed to upload transcripts: %w", err)
	}
	return nil
}

// objectKey partitions objects by date, e.g.
// prefix/year=2026/month=01/day=02/hour=03/turns_<nanos>.jsonl.
func (s *S3Sink) objectKey(t time.Time) string {
	datePrefix := fmt.Sprintf("year=%d/month=%02d/day=%02d/hour=%02d",
		t.Year(), t.Month(), t.Day(), t.Hour())
	filename := fmt.Sprintf("turns_%d.jsonl", t.UnixNano())
	if s.cfg.PathPrefix != "" {
		return path.Join(s.cfg.PathPrefix, datePrefix, filename)
	}
	return path.Join(datePrefix, filename)
}

// Close stops the flush loop and uploads what is left.
func (s *S3Sink) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	return s.Flush(ctx)
}
