package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"

	"casecruncher/internal/domain/entity"
	s3client "casecruncher/pkg/client/s3"
)

// skewPad widens presigned-link validity so a client whose clock runs
// ahead of the server can still use a freshly minted URL. S3-style
// presigning cannot backdate the start, so the pad goes on the expiry.
const skewPad = 5 * time.Minute

type ArtifactRepo struct {
	StorageS3 *s3client.StorageS3
}

func NewArtifactRepo(storageS3 *s3client.StorageS3) *ArtifactRepo {
	return &ArtifactRepo{StorageS3: storageS3}
}

// Upload writes one artifact under its session-prefixed key. PutObject
// overwrites in place, which keeps redelivered jobs idempotent.
func (r *ArtifactRepo) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return &entity.TransportError{Op: "s3 upload", Err: fmt.Errorf("client not initialized")}
	}

	_, err := r.StorageS3.Client.PutObject(
		ctx,
		r.StorageS3.Bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return &entity.TransportError{Op: "s3 put object", Err: err}
	}
	return nil
}

// List returns a descriptor for every object under prefix. URLs are left
// empty; callers mint presigned links per request.
func (r *ArtifactRepo) List(ctx context.Context, prefix string) ([]entity.ArtifactDescriptor, error) {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return nil, &entity.TransportError{Op: "s3 list", Err: fmt.Errorf("client not initialized")}
	}

	var files []entity.ArtifactDescriptor
	for obj := range r.StorageS3.Client.ListObjects(ctx, r.StorageS3.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, &entity.TransportError{Op: "s3 list objects", Err: obj.Err}
		}
		files = append(files, entity.ArtifactDescriptor{
			Name:        path.Base(obj.Key),
			ContentType: contentTypeFor(obj.Key),
			Size:        obj.Size,
			Timestamp:   obj.LastModified,
		})
	}
	return files, nil
}

// PresignedURL mints a time-bounded read-only link for one object key.
func (r *ArtifactRepo) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return "", &entity.TransportError{Op: "s3 presign", Err: fmt.Errorf("client not initialized")}
	}

	u, err := r.StorageS3.Client.PresignedGetObject(ctx, r.StorageS3.Bucket, key, ttl+skewPad, url.Values{})
	if err != nil {
		return "", &entity.TransportError{Op: "s3 presigned get", Err: err}
	}
	return u.String(), nil
}

func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
