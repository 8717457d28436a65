// Package artifacts copies generated files to an S3-compatible bucket.
package artifacts

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/zcpi-labs/zcpi/pkg/configuration"
)

// ObjectPutter is the part of *s3.Client the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Published struct {
	Path        string `json:"path"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	logger logrus.FieldLogger
}

// NewS3Client builds a client from opts. Static credentials are used when an
// access key is set, otherwise the default AWS chain applies. A custom
// endpoint switches to path-style addressing.
func NewS3Client(ctx context.Context, opts configuration.ArtifactOptions) (*s3.Client, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, errors.Wrap(err, "load s3 config")
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewPublisher(client ObjectPutter, bucket, prefix string, logger logrus.FieldLogger) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Key maps a local file to its object key: prefix/base name.
func (p *Publisher) Key(file string) string {
	return path.Join(p.prefix, filepath.Base(file))
}

// Publish uploads each file with its detected content type. It stops at the
// first failure and returns what was published so far.
func (p *Publisher) Publish(ctx context.Context, files []string) ([]Published, error) {
	out := make([]Published, 0, len(files))
	for _, file := range files {
		item, err := p.publishOne(ctx, file)
		if err != nil {
			return out, err
		}
		p.logger.WithFields(logrus.Fields{
			"key":          item.Key,
			"content_type": item.ContentType,
			"size":         item.Size,
		}).Info("published artifact")
		out = append(out, item)
	}
	return out, nil
}

func (p *Publisher) publishOne(ctx context.Context, file string) (Published, error) {
	mt, err := mimetype.DetectFile(file)
	if err != nil {
		return Published{}, errors.Wrapf(err, "detect content type of %s", file)
	}
	f, err := os.Open(file)
	if err != nil {
		return Published{}, err
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return Published{}, err
	}

	item := Published{Path: file, Key: p.Key(file), ContentType: mt.String(), Size: st.Size()}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(item.Key),
		Body:          f,
		ContentType:   aws.String(item.ContentType),
		ContentLength: aws.Int64(item.Size),
	})
	if err != nil {
		return Published{}, errors.Wrapf(err, "put s3://%s/%s", p.bucket, item.Key)
	}
	return item, nil
}

// Collect lists the regular files directly inside dir plus any extra paths
// that exist. Missing entries are skipped.
func Collect(dir string, extra ...string) ([]string, error) {
	var files []string
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "read %s", dir)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	for _, f := range extra {
		if st, err := os.Stat(f); err == nil && st.Mode().IsRegular() {
			files = append(files, f)
		}
	}
	return files, nil
}
