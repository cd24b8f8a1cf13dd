// Package images keeps meal photos somewhere that outlives the capture cache.
package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// localPath turns a file:// reference into a plain path.
func localPath(ref string) string {
	return strings.TrimPrefix(ref, "file://")
}

func extOf(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return strings.ToLower(ext)
	}
	return ".jpg"
}

// Documents copies photos into a persistent directory as meal_<id><ext>.
type Documents struct {
	Dir string
}

func (d Documents) Save(_ context.Context, mealID, ref string) (string, error) {
	src := localPath(ref)
	dst := filepath.Join(d.Dir, "meal_"+mealID+extOf(src))
	if filepath.Clean(src) == filepath.Clean(dst) {
		return dst, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}

// putter is the part of the S3 client we use.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Bucket uploads photos to S3 and returns their public URL.
type Bucket struct {
	client    putter
	bucket    string
	publicURL string
}

func NewBucket(ctx context.Context, region, bucket, publicURL string) (*Bucket, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}
	return &Bucket{client: s3.NewFromConfig(cfg), bucket: bucket, publicURL: publicURL}, nil
}

func (b *Bucket) Save(ctx context.Context, mealID, ref string) (string, error) {
	src := localPath(ref)
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}

	ext := extOf(src)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("meals/%s-%s%s", mealID, uuid.NewString(), ext)

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload file to S3: %v", err)
	}

	if b.publicURL == "" {
		return fmt.Sprintf("s3://%s/%s", b.bucket, key), nil
	}
	return strings.TrimSuffix(b.publicURL, "/") + "/" + key, nil
}
