// Package modelstore fetches the feature extractor artifact from a local
// file or an S3-compatible bucket.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxArtifactBytes bounds the size of a fetched artifact.
const MaxArtifactBytes = 256 << 20

// ErrBadURI is returned for model URIs that cannot be interpreted.
var ErrBadURI = errors.New("bad model uri")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}
)

// S3Config describes the S3-compatible endpoint.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

type Store struct {
	s3 S3Config
}

func New(cfg S3Config) *Store {
	return &Store{s3: cfg}
}

// Fetch returns the artifact at uri: "s3://bucket/key", "file:///path" or
// a plain path. An empty uri returns no artifact and no error.
func (s *Store) Fetch(ctx context.Context, uri string) ([]byte, error) {
	switch {
	case uri == "":
		return nil, nil
	case strings.HasPrefix(uri, "s3://"):
		bucket, key, err := ParseS3URI(uri)
		if err != nil {
			return nil, err
		}
		return s.fetchS3(ctx, bucket, key)
	default:
		return readFile(strings.TrimPrefix(uri, "file://"))
	}
}

// ParseS3URI splits "s3://bucket/key" into its bucket and key.
func ParseS3URI(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an s3 uri", ErrBadURI, uri)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs a bucket and a key", ErrBadURI, uri)
	}
	return bucket, key, nil
}

func (s *Store) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.s3.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.s3.AccessKey,
			s.s3.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.s3.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.s3.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

func (s *Store) fetchS3(ctx context.Context, bucket, key string) ([]byte, error) {
	c, err := s.client(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	out, err := getObject(c, ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return readLimited(out.Body)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxArtifactBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxArtifactBytes {
		return nil, fmt.Errorf("artifact exceeds %d bytes", MaxArtifactBytes)
	}
	return data, nil
}
