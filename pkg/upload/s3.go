// Package upload stores form uploads in S3 compatible object storage.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formdesk/pkg/client"
)

// DefaultMaxSize caps the bytes read from an upload body.
const DefaultMaxSize = 32 << 20

// ErrTooLarge is returned when a body exceeds the configured limit.
var ErrTooLarge = errors.New("upload: file too large")

// Config holds the bucket coordinates. Endpoint targets S3 compatible
// services and implies path style addressing.
type Config struct {
	Bucket          string `yaml:"bucket" env:"FORMDESK_S3_BUCKET"`
	Region          string `yaml:"region" env:"FORMDESK_S3_REGION"`
	Endpoint        string `yaml:"endpoint" env:"FORMDESK_S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"FORMDESK_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"FORMDESK_S3_SECRET_ACCESS_KEY"`
	// CustomDomain replaces the bucket host in returned URLs, e.g. a CDN.
	CustomDomain string `yaml:"custom_domain" env:"FORMDESK_S3_CUSTOM_DOMAIN"`
	PathStyle    bool   `yaml:"path_style" env:"FORMDESK_S3_PATH_STYLE"`
	Prefix       string `yaml:"prefix" env:"FORMDESK_S3_PREFIX" env-default:"uploads"`
	MaxSize      int64  `yaml:"max_size" env:"FORMDESK_S3_MAX_SIZE"`
}

// PutObjectAPI is the part of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// KeyFunc derives the object key for a file.
type KeyFunc func(file client.File, now time.Time) string

// Option customises an Uploader.
type Option func(*Uploader)

// WithAPI replaces the S3 client.
func WithAPI(api PutObjectAPI) Option {
	return func(u *Uploader) { u.api = api }
}

// WithKeyFunc overrides object key generation.
func WithKeyFunc(fn KeyFunc) Option {
	return func(u *Uploader) {
		if fn != nil {
			u.key = fn
		}
	}
}

// WithClock sets the time source used for keys.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		if now != nil {
			u.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(u *Uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// Uploader implements client.Uploader on top of S3.
type Uploader struct {
	cfg      Config
	endpoint *url.URL
	api      PutObjectAPI
	key      KeyFunc
	now      func() time.Time
	logger   *zap.Logger
}

var _ client.Uploader = (*Uploader)(nil)

// New validates cfg and builds an uploader backed by aws-sdk-go-v2.
func New(cfg Config, opts ...Option) (*Uploader, error) {
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Region = strings.TrimSpace(cfg.Region)
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("upload: bucket and region are required")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	} else {
		cfg.PathStyle = true
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	parsed, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("upload: invalid endpoint %q", endpoint)
	}

	u := &Uploader{
		cfg:      cfg,
		endpoint: parsed,
		key:      DefaultKey(cfg.Prefix),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	if u.api == nil {
		s3opts := s3.Options{
			Region:       cfg.Region,
			UsePathStyle: cfg.PathStyle,
		}
		if cfg.AccessKeyID != "" {
			s3opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		}
		if strings.TrimSpace(cfg.Endpoint) != "" {
			s3opts.BaseEndpoint = aws.String(parsed.String())
		}
		u.api = s3.New(s3opts)
	}
	return u, nil
}

// Upload stores the file and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, file client.File) (string, error) {
	if file.Body == nil {
		return "", errors.New("upload: body is required")
	}
	payload, err := io.ReadAll(io.LimitReader(file.Body, u.cfg.MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("upload: read %s: %w", file.Name, err)
	}
	if int64(len(payload)) > u.cfg.MaxSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, file.Name, u.cfg.MaxSize)
	}

	key := normalizeKey(u.key(file, u.now()))
	if key == "" {
		return "", errors.New("upload: empty object key")
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = u.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload: put %s: %w", key, err)
	}

	location := u.PublicURL(key)
	u.logger.Info("file uploaded",
		zap.String("bucket", u.cfg.Bucket),
		zap.String("key", key),
		zap.Int("bytes", len(payload)),
	)
	return location, nil
}

// PublicURL returns the URL an object is served from.
func (u *Uploader) PublicURL(key string) string {
	encoded := encodeKey(key)
	if domain := strings.TrimRight(strings.TrimSpace(u.cfg.CustomDomain), "/"); domain != "" {
		return domain + "/" + encoded
	}
	base := strings.TrimSuffix(u.endpoint.Path, "/")
	if u.cfg.PathStyle {
		return u.endpoint.Scheme + "://" + u.endpoint.Host + base + "/" + u.cfg.Bucket + "/" + encoded
	}
	host := u.endpoint.Host
	if !strings.HasPrefix(strings.ToLower(host), strings.ToLower(u.cfg.Bucket)+".") {
		host = u.cfg.Bucket + "." + host
	}
	return u.endpoint.Scheme + "://" + host + base + "/" + encoded
}

// DefaultKey stores files under prefix/YYYY/MM/<uuid><ext>.
func DefaultKey(prefix string) KeyFunc {
	return func(file client.File, now time.Time) string {
		ext := strings.ToLower(path.Ext(file.Name))
		return path.Join(prefix, now.UTC().Format("2006/01"), uuid.NewString()+ext)
	}
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return key
}

func encodeKey(key string) string {
	parts := strings.Split(normalizeKey(key), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
