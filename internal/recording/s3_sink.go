package recording

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Sink streams a recording to object storage via a multipart upload, so
// the whole session never needs to sit in memory before the first byte
// leaves the process.
type S3Sink struct {
	pw       *io.PipeWriter
	mu       sync.Mutex
	uploadWg sync.WaitGroup
	uploadErr error
}

// NewS3Sink starts a background multipart upload to bucket under the key
// prefix/<stamp>.h264, with stamp formatted in UTC to keep keys unique.
func NewS3Sink(ctx context.Context, bucket, region, prefix string, stamp time.Time) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("recording: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client)

	key := fmt.Sprintf("%s/%s.h264", prefix, stamp.UTC().Format("20060102T150405Z"))

	pr, pw := io.Pipe()
	sink := &S3Sink{pw: pw}
	sink.uploadWg.Add(1)
	go func() {
		defer sink.uploadWg.Done()
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		if err != nil {
			sink.mu.Lock()
			sink.uploadErr = err
			sink.mu.Unlock()
			pr.CloseWithError(err)
		}
	}()
	return sink, nil
}

func (s *S3Sink) Write(sample []byte, pts int64) error {
	var header [16]byte
	binary.BigEndian.PutUint64(header[0:8], uint64(pts))
	binary.BigEndian.PutUint64(header[8:16], uint64(len(sample)))
	if _, err := s.pw.Write(header[:]); err != nil {
		return err
	}
	_, err := s.pw.Write(sample)
	return err
}

func (s *S3Sink) Close(ctx context.Context) error {
	if err := s.pw.Close(); err != nil {
		return err
	}
	s.uploadWg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadErr
}

var _ OutputSink = (*S3Sink)(nil)
