// Package storage resolves input and output references: local paths, file://,
// http(s):// and s3://bucket/key.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Options configures the S3 side. Zero values fall back to the default AWS chain.
type Options struct {
	Region    string
	Endpoint  string // S3-compatible endpoint, e.g. MinIO
	AccessKey string
	SecretKey string
	// Password, when set, encrypts uploads and decrypts encrypted downloads.
	Password  string
	HTTP      *http.Client
}

// Client fetches inputs and stores outputs.
type Client struct {
	opts Options

	s3Once sync.Once
	s3     *s3.Client
	s3Err  error
}

// New creates a storage client. The S3 client is built lazily on first s3:// use.
func New(opts Options) *Client {
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{opts: opts}
}

// IsS3 reports whether ref names an S3 object.
func IsS3(ref string) bool { return strings.HasPrefix(ref, "s3://") }

// IsRemote reports whether ref is not a local filesystem path.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "s3://") ||
		strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://")
}

// ParseS3 splits s3://bucket/key.
func ParseS3(ref string) (bucket, key string, err error) {
	if !IsS3(ref) {
		return "", "", fmt.Errorf("not an s3 url: %s", ref)
	}
	p := strings.TrimPrefix(ref, "s3://")
	slash := strings.Index(p, "/")
	if slash <= 0 || slash == len(p)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", ref)
	}
	return p[:slash], p[slash+1:], nil
}

// Fetch makes ref available as a local file. Remote refs are downloaded into dir;
// local refs are returned as-is.
func (c *Client) Fetch(ctx context.Context, ref, dir string) (string, error) {
	// Strip optional #page fragment if present
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}

	switch {
	case IsS3(ref):
		return c.fetchS3(ctx, ref, dir)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return c.fetchHTTP(ctx, ref, dir)
	case strings.HasPrefix(ref, "file://"):
		return strings.TrimPrefix(ref, "file://"), nil
	default:
		return ref, nil
	}
}

func (c *Client) fetchHTTP(ctx context.Context, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.opts.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(dir, "download-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return "", err
	}
	log.Info().Str("url", url).Int64("bytes", n).Msg("downloaded input")
	return f.Name(), nil
}

func (c *Client) fetchS3(ctx context.Context, ref, dir string) (string, error) {
	bucket, key, err := ParseS3(ref)
	if err != nil {
		return "", err
	}
	cli, err := c.client(ctx)
	if err != nil {
		return "", err
	}

	// Ensure .pdf extension for pdfcpu expectations
	f, err := os.CreateTemp(dir, "s3-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()

	n, err := manager.NewDownloader(cli).Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download from S3: %w", err)
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Msg("downloaded s3 pdf")

	if err := c.decryptInPlace(f.Name()); err != nil {
		return "", fmt.Errorf("s3://%s/%s: %w", bucket, key, err)
	}
	return f.Name(), nil
}

// decryptInPlace replaces an encrypted download with its plaintext. Plain
// objects are left alone.
func (c *Client) decryptInPlace(p string) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	if !IsEncrypted(data) {
		return nil
	}
	if c.opts.Password == "" {
		return ErrNoPassword
	}
	plain, err := Decrypt(data, c.opts.Password)
	if err != nil {
		return err
	}
	log.Debug().Int("bytes", len(plain)).Msg("decrypted s3 object")
	return os.WriteFile(p, plain, 0o600)
}

// Put uploads localPath to an s3:// ref.
func (c *Client) Put(ctx context.Context, ref, localPath string) error {
	bucket, key, err := ParseS3(ref)
	if err != nil {
		return err
	}
	cli, err := c.client(ctx)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	if c.opts.Password != "" {
		if data, err = Encrypt(data, c.opts.Password); err != nil {
			return fmt.Errorf("encrypt output: %w", err)
		}
	}

	_, err = manager.NewUploader(cli).Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
		Metadata:    map[string]string{"name": path.Base(filepath.ToSlash(key))},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().Str("bucket", bucket).Str("key", key).Bool("encrypted", c.opts.Password != "").Msg("uploaded output to s3")
	return nil
}

// client builds the S3 client once; concurrent jobs share it.
func (c *Client) client(ctx context.Context) (*s3.Client, error) {
	c.s3Once.Do(func() {
		c.s3, c.s3Err = c.newS3(ctx)
	})
	return c.s3, c.s3Err
}

func (c *Client) newS3(ctx context.Context) (*s3.Client, error) {
	var loaders []func(*awscfg.LoadOptions) error
	if c.opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(c.opts.Region))
	}
	if c.opts.AccessKey != "" && c.opts.SecretKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.opts.AccessKey, c.opts.SecretKey, ""),
		))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
