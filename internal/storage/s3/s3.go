package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"account_service/internal/config"
	sl "account_service/internal/lib/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrEmptyPath  = errors.New("no file to upload")
	ErrForeignURL = errors.New("url does not belong to this store")
)

type objectAPI interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Store keeps uploaded media in a single bucket and hands out public URLs for it.
type Store struct {
	log     *slog.Logger
	client  objectAPI
	bucket  string
	baseURL string
	now     func() time.Time
}

func New(ctx context.Context, cfg config.S3, log *slog.Logger) (*Store, error) {
	const op = "storage.s3.New"

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return NewWithClient(log, client, cfg.Bucket, baseURL), nil
}

func NewWithClient(log *slog.Logger, client objectAPI, bucket, baseURL string) *Store {
	return &Store{
		log:     log,
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Upload puts the file at localPath into the bucket and returns its public URL.
// localPath is removed before Upload returns, whether or not the upload succeeded.
func (s *Store) Upload(ctx context.Context, localPath string) (string, error) {
	const op = "storage.s3.Upload"

	if localPath == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyPath)
	}

	log := s.log.With(slog.String("op", op))

	defer func() {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove staged file", slog.String("path", localPath), sl.Err(err))
		}
	}()

	mime, err := mimetype.DetectFile(localPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	key := s.objectKey(mime.Extension())

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(mime.String()),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return s.baseURL + "/" + key, nil
}

// Delete removes the object behind url.
func (s *Store) Delete(ctx context.Context, url string) error {
	const op = "storage.s3.Delete"

	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return fmt.Errorf("%s: %w", op, ErrForeignURL)
	}

	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) objectKey(ext string) string {
	t := s.now().UTC()

	return path.Join("media",
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
		uuid.NewString()+ext,
	)
}
