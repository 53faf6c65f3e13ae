package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorageClient issues download URLs for content binaries kept in an
// object-storage bucket instead of the service's local content directory.
type ObjectStorageClient interface {
	Connect(endpoint, accessKeyID, secretAccessKey string, useSSL bool) error
	PresignedGetURL(objectKey string, expiry time.Duration) (string, error)
}

// ObjectStorage holds the object storage client instance.
type ObjectStorage struct {
	conn   *minio.Client
	bucket string
}

// NewObjectStorage creates a client bound to one content bucket.
func NewObjectStorage(bucket string) *ObjectStorage {
	return &ObjectStorage{bucket: bucket}
}

// Connect establishes the object storage connection.
func (o *ObjectStorage) Connect(endpoint, accessKeyID, secretAccessKey string, useSSL bool) error {
	var err error
	o.conn, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create object storage client: %w", err)
	}

	// Check connection by listing buckets
	if _, err = o.conn.ListBuckets(context.Background()); err != nil {
		return fmt.Errorf("failed to establish object storage connection: %w", err)
	}
	return nil
}

// PresignedGetURL returns a bounded-lifetime download URL for one object.
func (o *ObjectStorage) PresignedGetURL(objectKey string, expiry time.Duration) (string, error) {
	if o.conn == nil {
		return "", fmt.Errorf("object storage not connected")
	}
	u, err := o.conn.PresignedGetObject(context.Background(), o.bucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}
