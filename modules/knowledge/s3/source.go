// Package s3 reads knowledge documents from an S3 (or S3-compatible)
// bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/flemzord/relaybot/internal/knowledge"
)

// Scheme is the URL scheme recognised by IsURL and ParseURL.
const Scheme = "s3://"

// MaxObjectSize caps how much of a single object is read.
const MaxObjectSize = 8 << 20

// ErrInvalidURL is returned for malformed s3:// URLs.
var ErrInvalidURL = errors.New("s3: invalid url")

// API is the subset of the S3 client used by Source.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source lists and reads every supported object under Bucket/Prefix.
type Source struct {
	client API
	Bucket string
	Prefix string
}

var _ knowledge.Source = (*Source)(nil)

// IsURL reports whether location names an S3 location.
func IsURL(location string) bool {
	return strings.HasPrefix(location, Scheme)
}

// ParseURL splits s3://bucket/prefix.
func ParseURL(location string) (bucket, prefix string, err error) {
	if !IsURL(location) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, location)
	}
	rest := strings.TrimPrefix(location, Scheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: missing bucket in %q", ErrInvalidURL, location)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}

// New returns a Source over an existing client.
func New(client API, bucket, prefix string) *Source {
	return &Source{client: client, Bucket: bucket, Prefix: prefix}
}

// Open builds a client from the default AWS credential chain and returns a
// Source for location. AWS_ENDPOINT_URL is honoured for S3-compatible
// stores.
func Open(ctx context.Context, location string) (*Source, error) {
	bucket, prefix, err := ParseURL(location)
	if err != nil {
		return nil, err
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return New(client, bucket, prefix), nil
}

// Documents implements knowledge.Source. Names are keys relative to Prefix.
func (s *Source) Documents(ctx context.Context) ([]knowledge.Document, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]knowledge.Document, 0, len(keys))
	for _, key := range keys {
		content, err := s.read(ctx, key)
		if err != nil {
			return nil, err
		}
		docs = append(docs, knowledge.Document{
			Name:    strings.TrimPrefix(key, s.Prefix),
			Content: content,
			Metadata: map[string]string{
				"path": Scheme + s.Bucket + "/" + key,
			},
		})
	}
	return docs, nil
}

func (s *Source) keys(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.Bucket)}
	if s.Prefix != "" {
		input.Prefix = aws.String(s.Prefix)
	}

	var keys []string
	pages := s3.NewListObjectsV2Paginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: list %s/%s: %w", s.Bucket, s.Prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if supported(key) {
				keys = append(keys, key)
			}
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s%s/%s", knowledge.ErrSourceNotFound, Scheme, s.Bucket, s.Prefix)
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *Source) read(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("s3: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectSize))
	if err != nil {
		return "", fmt.Errorf("s3: read %s: %w", key, err)
	}
	return string(data), nil
}

func supported(key string) bool {
	if strings.HasSuffix(key, "/") {
		return false
	}
	for _, part := range strings.Split(path.Dir(key), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return false
		}
	}
	return slices.Contains(knowledge.SupportedExtensions, strings.ToLower(path.Ext(key)))
}
