package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSBackend stores objects in a Google Cloud Storage bucket.
type GCSBackend struct {
	client     *storage.Client
	bucket     string
	publicHost string
}

// NewGCSClient builds a storage client. An empty credentials path falls back
// to application default credentials.
func NewGCSClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return client, nil
}

func NewGCSBackend(client *storage.Client, bucket, publicHost string) *GCSBackend {
	return &GCSBackend{
		client:     client,
		bucket:     bucket,
		publicHost: strings.TrimRight(publicHost, "/"),
	}
}

func (b *GCSBackend) Put(ctx context.Context, key string, data []byte, contentType string, opts PutOptions) error {
	obj := b.client.Bucket(b.bucket).Object(key)
	if !opts.Overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = opts.CacheControl
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return ErrExists
		}
		return err
	}
	return nil
}

func (b *GCSBackend) Get(ctx context.Context, key string) (*Object, error) {
	rc, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	contentType := rc.Attrs.ContentType
	if contentType == "" {
		contentType = DetectContentType(key, data)
	}
	return &Object{Key: key, ContentType: contentType, Size: int64(len(data)), Data: data}, nil
}

func (b *GCSBackend) Delete(ctx context.Context, key string) error {
	err := b.client.Bucket(b.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b *GCSBackend) URL(key string) string {
	return fmt.Sprintf("%s/%s/%s", b.publicHost, b.bucket, key)
}
